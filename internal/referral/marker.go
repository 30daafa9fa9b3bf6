// Package referral encodes the client-held referral marker that binds a shopper
// to an affiliate code between a product visit and checkout.
//
// The signed cookie is the only marker source. It is written on every resolved
// click (last code wins) and read, never refreshed, at order creation.
package referral

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
)

const (
	DefaultCookieName = "affiliate_ref"
	DefaultTTL        = 30 * 24 * time.Hour

	issuer = "storefront-referral"
)

var ErrInvalidMarker = errors.New("invalid referral marker")

type claims struct {
	Code string `json:"code"`
	jwt.RegisteredClaims
}

// Codec signs and verifies referral markers.
type Codec struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

type Option func(*Codec)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// WithSecureCookie marks issued cookies as Secure.
func WithSecureCookie(secure bool) Option {
	return func(c *Codec) { c.secure = secure }
}

func NewCodec(secret string, cookieName string, ttl time.Duration, opts ...Option) *Codec {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Codec{
		secret:     []byte(secret),
		ttl:        ttl,
		cookieName: cookieName,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) CookieName() string { return c.cookieName }

// Encode signs code into a marker value and returns its expiry.
func (c *Codec) Encode(code string) (string, time.Time, error) {
	now := c.now()
	expires := now.Add(c.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Code: code,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Decode verifies the marker and returns the affiliate code it carries.
func (c *Codec) Decode(value string) (string, error) {
	if value == "" {
		return "", ErrInvalidMarker
	}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	var out claims
	token, err := parser.ParseWithClaims(value, &out, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidMarker
	}
	if out.Issuer != issuer || out.Code == "" {
		return "", ErrInvalidMarker
	}
	if out.ExpiresAt == nil || !out.ExpiresAt.After(c.now()) {
		return "", ErrInvalidMarker
	}
	return out.Code, nil
}

// SetCookie writes the marker for code onto the response, replacing any prior marker.
func (c *Codec) SetCookie(ctx *fasthttp.RequestCtx, code string) error {
	value, expires, err := c.Encode(code)
	if err != nil {
		return err
	}
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)

	cookie.SetKey(c.cookieName)
	cookie.SetValue(value)
	cookie.SetPath("/")
	cookie.SetExpire(expires)
	cookie.SetHTTPOnly(true)
	cookie.SetSecure(c.secure)
	cookie.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	ctx.Response.Header.SetCookie(cookie)
	return nil
}

// FromRequest returns the raw marker value attached to the request, if any.
func (c *Codec) FromRequest(ctx *fasthttp.RequestCtx) string {
	return string(ctx.Request.Header.Cookie(c.cookieName))
}
