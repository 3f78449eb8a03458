package fixture

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Generator produces a fixture per request instead of serving a static file.
type Generator interface {
	Generate() (*Fixture, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() (*Fixture, error)

func (fn GeneratorFunc) Generate() (*Fixture, error) {
	return fn()
}

// TokenGenerator mints an auth token response shaped like the backend's
// token endpoint: {"success": true, "accessToken": "Bearer …", "refreshToken": "…"}.
type TokenGenerator struct {
	Secret  []byte
	TTL     time.Duration
	Subject string
	Now     func() time.Time
}

// NewTokenGenerator returns a generator with a 20 minute access token.
func NewTokenGenerator(secret string) *TokenGenerator {
	return &TokenGenerator{
		Secret:  []byte(secret),
		TTL:     20 * time.Minute,
		Subject: "uispec",
		Now:     time.Now,
	}
}

func (g *TokenGenerator) Generate() (*Fixture, error) {
	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}

	claims := jwt.RegisteredClaims{
		Subject:   g.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.TTL)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.Secret)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"success":      true,
		"accessToken":  "Bearer " + signed,
		"refreshToken": uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}
	return New("token", body), nil
}

var (
	generatorsMu sync.RWMutex
	generators   = map[string]Generator{
		"token": NewTokenGenerator("uispec-secret"),
	}
)

// RegisterGenerator makes a generator available to scenario files by name.
func RegisterGenerator(name string, g Generator) {
	generatorsMu.Lock()
	defer generatorsMu.Unlock()
	generators[name] = g
}

// LookupGenerator returns a registered generator.
func LookupGenerator(name string) (Generator, bool) {
	generatorsMu.RLock()
	defer generatorsMu.RUnlock()
	g, ok := generators[name]
	return g, ok
}

// GeneratorNames lists the registered generators.
func GeneratorNames() []string {
	generatorsMu.RLock()
	defer generatorsMu.RUnlock()
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
