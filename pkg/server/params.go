package server

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// wildcardPath returns the relative path captured by a trailing "*" route. Echo
// matches on the raw path when the request carried escaped slashes, in which
// case the value still needs unescaping.
func wildcardPath(ctx echo.Context) (string, error) {
	value := ctx.Param("*")
	if ctx.Request().URL.RawPath == "" {
		return value, nil
	}
	return url.PathUnescape(value)
}

func queryDefault(ctx echo.Context, name, fallback string) string {
	if value := ctx.QueryParam(name); value != "" {
		return value
	}
	return fallback
}

// queryBool parses an optional boolean query parameter. Missing means false.
func queryBool(ctx echo.Context, name string) (bool, error) {
	value := strings.TrimSpace(ctx.QueryParam(name))
	if value == "" {
		return false, nil
	}
	switch strings.ToLower(value) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q", name, value)
	}
	return b, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(ctx echo.Context, name string, fallback int) (int, error) {
	value := strings.TrimSpace(ctx.QueryParam(name))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q", name, value)
	}
	return n, nil
}
