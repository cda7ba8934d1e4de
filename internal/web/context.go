package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/surveyimport/internal/core"
)

// WithRequestMetadata records the requester's IP and User-Agent on ctx for
// the run history. RemoteAddr has already been rewritten by TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
