package web

import (
	"context"
	"net"
	"net/http"

	"github.com/rtrvrtg/contact-form-connect/internal/core"
)

// WithRequestMetadata stores the submitter of r in ctx. RemoteAddr has
// already been resolved by TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return core.WithSubmitter(ctx, core.Submitter{
		IP:        ip,
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	})
}
