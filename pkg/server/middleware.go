package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"homenas/pkg/log"
	"homenas/pkg/metrics"
)

const (
	headerProcessTime = "X-Process-Time"
	headerAPIKey      = "X-API-Key"

	gzipMinLength      = 1000
	rateLimiterExpires = 3 * time.Minute
)

func requestIDConfig() middleware.RequestIDConfig {
	return middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}
}

// requestLoggerConfig logs one zerolog line per request and feeds the request
// metrics. Query strings are left out since they may carry an API key.
func requestLoggerConfig() middleware.RequestLoggerConfig {
	return middleware.RequestLoggerConfig{
		LogLatency:      true,
		LogRemoteIP:     true,
		LogMethod:       true,
		LogURIPath:      true,
		LogRequestID:    true,
		LogStatus:       true,
		LogError:        true,
		LogResponseSize: true,
		HandleError:     true,
		LogValuesFunc: func(ctx echo.Context, v middleware.RequestLoggerValues) error {
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordHTTPRequest(v.Method, route, v.Status, v.Latency)

			event := log.Info()
			if v.Status >= http.StatusInternalServerError {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Int64("bytes", v.ResponseSize).
				Float64("process_time_ms", float64(v.Latency.Microseconds())/1000).
				Str("client_ip", v.RemoteIP).
				Msg("Request completed")
			return nil
		},
	}
}

// processTime reports the handler time in seconds before headers are written.
func processTime(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		ctx.Response().Before(func() {
			elapsed := time.Since(start).Seconds()
			ctx.Response().Header().Set(headerProcessTime, strconv.FormatFloat(elapsed, 'f', 6, 64))
		})
		return next(ctx)
	}
}

func corsConfig(origins []string) middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
			echo.HeaderAuthorization, headerAPIKey, "Range",
		},
		ExposeHeaders: []string{
			echo.HeaderContentLength, echo.HeaderContentDisposition, "Content-Range",
			"Accept-Ranges", echo.HeaderXRequestID, headerProcessTime,
		},
	}
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc {
	return next
}

// rateLimiter allows cfg.RateLimit.Requests per window for each client IP as a
// token bucket refilled evenly over the window.
func (s *NASServer) rateLimiter() echo.MiddlewareFunc {
	limits := s.cfg.RateLimit
	if limits.Requests <= 0 || limits.Window <= 0 {
		return passthrough
	}

	perSecond := rate.Limit(float64(limits.Requests) / limits.Window.Seconds())
	memoryStore := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      perSecond,
		Burst:     limits.Requests,
		ExpiresIn: rateLimiterExpires,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: memoryStore,
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(_ echo.Context, err error) error {
			return &echo.HTTPError{Code: http.StatusForbidden, Message: "Unable to identify client", Internal: err}
		},
		DenyHandler: func(_ echo.Context, identifier string, _ error) error {
			metrics.RecordRateLimitHit()
			log.Warn().Str("client_ip", identifier).Msg("Rate limit exceeded")
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests. Please try again later.")
		},
	})
}
