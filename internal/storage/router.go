package storage

import (
	"context"
	"net/url"
	"strings"

	apperrors "go-crop-inspector/internal/errors"
)

// Router sends blob URLs of the configured Azure account to blob storage
// and everything else to the HTTP fetcher.
type Router struct {
	web     ImageSource
	blob    ImageSource
	account string
}

// NewRouter creates a Router. blob may be nil, in which case every URL is
// fetched over HTTP.
func NewRouter(web, blob ImageSource, account string) *Router {
	return &Router{web: web, blob: blob, account: account}
}

func (r *Router) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if r.blob != nil && r.isAccountBlob(ref) {
		return r.blob.Fetch(ctx, ref)
	}
	if r.web == nil {
		return nil, apperrors.NewInternalError("No image source configured", nil)
	}
	return r.web.Fetch(ctx, ref)
}

func (r *Router) isAccountBlob(ref string) bool {
	if r.account == "" {
		return false
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Hostname(), accountHost(r.account))
}
