package signedurl

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/linksigner/internal/ratelimit"
	"github.com/dharsanguruparan/linksigner/internal/signing"
)

// Message is the only body a rejected request ever sees. Which check failed
// is logged, not returned.
const Message = "forbidden"

type paramsKey struct{}

// ParamsFromContext returns the verified parameters stored by Require.
func ParamsFromContext(ctx context.Context) (signing.Params, bool) {
	p, ok := ctx.Value(paramsKey{}).(signing.Params)
	return p, ok
}

// RouteFunc picks the route a request is verified against.
type RouteFunc func(r *http.Request) string

type guard struct {
	signer  *signing.Signer
	logger  *zap.Logger
	limiter *ratelimit.Limiter
	keyFunc func(*http.Request) string
	route   RouteFunc
}

// Option configures Require.
type Option func(*guard)

// WithLogger logs rejections.
func WithLogger(l *zap.Logger) Option {
	return func(g *guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithLimiter throttles verification attempts per key.
func WithLimiter(l *ratelimit.Limiter, keyFunc func(*http.Request) string) Option {
	return func(g *guard) {
		g.limiter = l
		if keyFunc != nil {
			g.keyFunc = keyFunc
		}
	}
}

// WithRoute overrides the route, which defaults to the request path.
func WithRoute(fn RouteFunc) Option {
	return func(g *guard) {
		if fn != nil {
			g.route = fn
		}
	}
}

// Require only lets requests through whose query carries a valid, unexpired
// signature for the request route. Every failure gets the same 403.
func Require(signer *signing.Signer, opts ...Option) func(http.Handler) http.Handler {
	g := &guard{
		signer:  signer,
		logger:  zap.NewNop(),
		keyFunc: ratelimit.ClientIP,
		route:   func(r *http.Request) string { return r.URL.Path },
	}
	for _, opt := range opts {
		opt(g)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !g.limiter.Allow(g.keyFunc(r)) {
				g.logger.Warn("signature check throttled", zap.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			params, err := FromValues(r.URL.Query())
			if err != nil {
				g.deny(w, r, "malformed_query", err)
				return
			}
			if err := g.signer.Verify(params, g.route(r)); err != nil {
				reason := "unknown"
				if kind, ok := signing.VerificationKind(err); ok {
					reason = kind.String()
				}
				g.deny(w, r, reason, err)
				return
			}

			ctx := context.WithValue(r.Context(), paramsKey{}, params)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (g *guard) deny(w http.ResponseWriter, r *http.Request, reason string, err error) {
	g.logger.Warn("signed link rejected",
		zap.String("path", r.URL.Path),
		zap.String("reason", reason),
		zap.NamedError("cause", err),
	)
	http.Error(w, Message, http.StatusForbidden)
}
