package extract

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Platform is a site that may need a cookie bundle.
type Platform struct {
	Domain string
	Name   string
	Bundle string
}

// platforms lists sites with a credential bundle, in match order.
var platforms = []Platform{
	{Domain: "instagram.com", Name: "Instagram", Bundle: "instagram.txt"},
	{Domain: "facebook.com", Name: "Facebook", Bundle: "facebook.txt"},
	{Domain: "twitter.com", Name: "Twitter", Bundle: "twitter.txt"},
	{Domain: "x.com", Name: "Twitter", Bundle: "twitter.txt"},
	{Domain: "tiktok.com", Name: "TikTok", Bundle: "tiktok.txt"},
}

// platformFor returns the platform whose domain is the host of rawURL or a
// parent of it, so www.instagram.com matches but dropbox.com is not x.com.
func platformFor(rawURL string) (Platform, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return Platform{}, false
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range platforms {
		if host == p.Domain || strings.HasSuffix(host, "."+p.Domain) {
			return p, true
		}
	}
	return Platform{}, false
}

// Cookies locates cookie bundles under a directory.
type Cookies struct {
	Dir string
}

// Available reports whether the cookies directory exists.
func (c Cookies) Available() bool {
	if c.Dir == "" {
		return false
	}
	fi, err := os.Stat(c.Dir)
	return err == nil && fi.IsDir()
}

// FileFor returns the bundle path for the URL's platform when the file exists.
func (c Cookies) FileFor(rawURL string) string {
	if !c.Available() {
		return ""
	}
	p, ok := platformFor(rawURL)
	if !ok {
		return ""
	}
	path := filepath.Join(c.Dir, p.Bundle)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
