package offload

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims binds a link token to one artifact.
type Claims struct {
	jwt.RegisteredClaims
	ArtifactID string `json:"aid"`
}

// SignedLinks points requesters at the web interface. With a secret each link
// carries an HS256 token that expires together with the artifact; without
// one the bare base URL is returned.
type SignedLinks struct {
	BaseURL string
	Secret  []byte
}

func NewSignedLinks(baseURL, secret string) *SignedLinks {
	return &SignedLinks{BaseURL: strings.TrimRight(baseURL, "/"), Secret: []byte(secret)}
}

// Link returns <base>/files/<id>?token=<jwt>.
func (l *SignedLinks) Link(_ context.Context, a *models.Artifact) (string, error) {
	if len(l.Secret) == 0 {
		return l.BaseURL, nil
	}
	tok, err := GenerateToken(a.ID, l.Secret, a.ExpiresAt)
	if err != nil {
		return "", err
	}
	return l.BaseURL + "/files/" + url.PathEscape(a.ID) + "?token=" + url.QueryEscape(tok), nil
}

// GenerateToken signs a token for artifactID valid until expires.
func GenerateToken(artifactID string, secret []byte, expires time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			Subject:   "artifact",
		},
		ArtifactID: artifactID,
	})
	return token.SignedString(secret)
}

// ArtifactFromToken validates tokenString and returns the artifact it grants.
func ArtifactFromToken(tokenString string, secret []byte) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", errors.Join(ErrInvalidLink, err)
	}
	if !token.Valid || claims.ArtifactID == "" {
		return "", ErrInvalidLink
	}
	return claims.ArtifactID, nil
}
