package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"

	"homenas/pkg/log"
	"homenas/pkg/metrics"
)

// apiKeyAuth checks the shared key from the X-API-Key header. The api_key query
// parameter is accepted too so <video> and <img> tags can authenticate.
func (s *NASServer) apiKeyAuth() echo.MiddlewareFunc {
	matches := keyMatcher(s.cfg.Auth.APIKey)

	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:" + headerAPIKey + ",query:api_key",
		Validator: func(key string, _ echo.Context) (bool, error) {
			ok := matches(key)
			if ok {
				metrics.RecordAuthAttempt(true)
			}
			return ok, nil
		},
		ErrorHandler: func(err error, ctx echo.Context) error {
			metrics.RecordAuthAttempt(false)
			log.Warn().Err(err).
				Str("client_ip", ctx.RealIP()).
				Str("path", ctx.Request().URL.Path).
				Msg("Unauthorized access attempt")
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or missing API key")
		},
	})
}

// keyMatcher compares in constant time, or against a bcrypt hash when the
// configured key is one.
func keyMatcher(configured string) func(string) bool {
	if strings.HasPrefix(configured, "$2") {
		hash := []byte(configured)
		return func(key string) bool {
			return bcrypt.CompareHashAndPassword(hash, []byte(key)) == nil
		}
	}

	want := []byte(configured)
	return func(key string) bool {
		return subtle.ConstantTimeCompare([]byte(key), want) == 1
	}
}
