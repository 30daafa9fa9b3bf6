package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/storefront/domain"
	appLogger "github.com/fastygo/storefront/pkg/logger"
)

// Key represents a context value key exported for reuse.
type Key string

const (
	KeyRemoteAddr Key = "remote_addr"
	KeyUserAgent  Key = "user_agent"
)

// Adapter converts fasthttp.RequestCtx into a stdlib context with deadlines and metadata.
type Adapter struct {
	timeout      time.Duration
	trustProxies bool
}

type Option func(*Adapter)

// WithTrustedProxy makes the adapter take the client address from X-Forwarded-For.
func WithTrustedProxy() Option {
	return func(a *Adapter) { a.trustProxies = true }
}

func NewAdapter(timeout time.Duration, opts ...Option) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	a := &Adapter{timeout: timeout}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Attach creates a context with the adapter's timeout carrying the request
// id, client address and user agent.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	reqID := getRequestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)
	ctx.Response.Header.Set("X-Request-ID", reqID)

	if addr := a.clientAddr(ctx); addr != "" {
		stdCtx = context.WithValue(stdCtx, KeyRemoteAddr, addr)
	}
	if ua := string(ctx.Request.Header.UserAgent()); ua != "" {
		stdCtx = context.WithValue(stdCtx, KeyUserAgent, ua)
	}

	return stdCtx, cancel
}

// RequestMeta reads the click metadata captured by Attach.
func RequestMeta(ctx context.Context) domain.RequestMeta {
	addr, _ := ctx.Value(KeyRemoteAddr).(string)
	ua, _ := ctx.Value(KeyUserAgent).(string)
	return domain.RequestMeta{IPAddress: addr, UserAgent: ua}
}

func (a *Adapter) clientAddr(ctx *fasthttp.RequestCtx) string {
	if a.trustProxies {
		if fwd := string(ctx.Request.Header.Peek("X-Forwarded-For")); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	if ip := ctx.RemoteIP(); ip != nil && !ip.IsUnspecified() {
		return ip.String()
	}
	return ""
}

func getRequestID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return uuid.NewString()
	}
	if header := strings.TrimSpace(string(ctx.Request.Header.Peek("X-Request-ID"))); header != "" {
		return header
	}
	return uuid.NewString()
}
