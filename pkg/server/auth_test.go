package server

import (
	"net/http"
	"net/http/httptest"
	"time"

	"golang.org/x/crypto/bcrypt"

	"homenas/pkg/config"
)

func (s *ServerTestSuite) withKey(target, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if key != "" {
		req.Header.Set(headerAPIKey, key)
	}
	return s.serve(req)
}

func (s *ServerTestSuite) TestAuthPlainKey() {
	s.newServer(func(cfg *config.Config) {
		cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "s3cret"}
	})

	body := s.assertError(s.withKey("/api/files", ""), http.StatusUnauthorized)
	s.Equal("Invalid or missing API key", body.Message)
	s.assertError(s.withKey("/api/files", "wrong"), http.StatusUnauthorized)

	s.Equal(http.StatusOK, s.withKey("/api/files", "s3cret").Code)
	s.Equal(http.StatusOK, s.get("/api/files?api_key=s3cret").Code)

	// System routes stay open for monitoring.
	s.Equal(http.StatusOK, s.get("/health").Code)
	s.Equal(http.StatusOK, s.get("/").Code)
}

func (s *ServerTestSuite) TestAuthBcryptKey() {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	s.Require().NoError(err)

	s.newServer(func(cfg *config.Config) {
		cfg.Auth = config.AuthConfig{Enabled: true, APIKey: string(hash)}
	})

	s.Equal(http.StatusOK, s.withKey("/api/stats", "hunter2").Code)
	s.assertError(s.withKey("/api/stats", string(hash)), http.StatusUnauthorized)
}

func (s *ServerTestSuite) TestAuthCoversStreaming() {
	s.newServer(func(cfg *config.Config) {
		cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "key"}
	})
	s.writeFile("clip.mp4", pattern(64))

	s.assertError(s.get("/api/stream/clip.mp4"), http.StatusUnauthorized)
	s.Equal(http.StatusOK, s.get("/api/stream/clip.mp4?api_key=key").Code)
}

func (s *ServerTestSuite) TestKeyMatcher() {
	plain := keyMatcher("abc")
	s.True(plain("abc"))
	s.False(plain("abcd"))
	s.False(plain(""))

	hash, err := bcrypt.GenerateFromPassword([]byte("abc"), bcrypt.MinCost)
	s.Require().NoError(err)
	hashed := keyMatcher(string(hash))
	s.True(hashed("abc"))
	s.False(hashed("abd"))
}

func (s *ServerTestSuite) TestRateLimit() {
	s.newServer(func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Requests: 2, Window: time.Hour}
	})
	s.writeFile("clip.mp4", pattern(64))

	s.Equal(http.StatusOK, s.get("/api/files").Code)
	s.Equal(http.StatusOK, s.get("/api/stats").Code)

	body := s.assertError(s.get("/api/files"), http.StatusTooManyRequests)
	s.Contains(body.Message, "Too many requests")

	// Streaming and non-API routes are not limited.
	for i := 0; i < 5; i++ {
		s.Equal(http.StatusOK, s.get("/api/stream/clip.mp4").Code)
		s.Equal(http.StatusOK, s.get("/health").Code)
	}
}

func (s *ServerTestSuite) TestRateLimitDisabled() {
	for i := 0; i < 20; i++ {
		s.Require().Equal(http.StatusOK, s.get("/api/files").Code)
	}
}
