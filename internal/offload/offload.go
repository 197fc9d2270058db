// Package offload provides the alternate retrieval path for artifacts that
// exceed the delivery channel's payload ceiling: an object-storage mirror
// with presigned download links, or signed links into the web interface.
package offload

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/vidkeeper/internal/models"
)

// ErrInvalidLink is returned for tampered, expired or foreign link tokens.
var ErrInvalidLink = errors.New("invalid retrieval link")

// Linker produces a URL the requester can fetch the artifact from.
type Linker interface {
	Link(ctx context.Context, a *models.Artifact) (string, error)
}
