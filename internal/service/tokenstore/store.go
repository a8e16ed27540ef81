package tokenstore

import (
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoToken = errors.New("no token stored")

var bearerPrefix = regexp.MustCompile(`(?i)^bearer\s+`)

// Store holds the single Graph bearer token supplied through the dashboard.
// It is process-global and shared by every request; there is no refresh or
// rotation, a new paste replaces the old token. Expiry is read from the JWT
// payload without verifying the signature and is for display only.
type Store struct {
	mu    sync.RWMutex
	token string
}

func New(initial string) *Store {
	return &Store{token: Clean(initial)}
}

// Clean strips whitespace and a leading "Bearer " prefix from a pasted token.
func Clean(token string) string {
	return bearerPrefix.ReplaceAllString(strings.TrimSpace(token), "")
}

func (s *Store) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = Clean(token)
}

func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Expiry returns the token's exp claim. The signature is deliberately not
// verified: Graph validates the token on use, this value only feeds the
// dashboard display.
func (s *Store) Expiry() (time.Time, error) {
	token := s.Get()
	if token == "" {
		return time.Time{}, ErrNoToken
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, jwt.ErrTokenInvalidClaims
	}
	return exp.Time, nil
}

// Masked returns the token trimmed for display, keeping only the edges.
func (s *Store) Masked() string {
	token := s.Get()
	if len(token) <= 16 {
		return token
	}
	return token[:8] + "..." + token[len(token)-8:]
}
