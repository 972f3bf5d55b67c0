// Package auth protects the HTTP surface with bcrypt-hashed API keys.
// Keys are presented as Bearer tokens.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/crypto/bcrypt"

	"github.com/CristianUrbainski/teammate-android/internal/logging"
)

const (
	// APIKeyPrefix marks teammate-sync API keys.
	APIKeyPrefix = "tm_"

	// apiKeyBytes is the random part of a generated key.
	apiKeyBytes = 32

	// APIKeyMinLen is the shortest key accepted.
	APIKeyMinLen = len(APIKeyPrefix) + 32

	// maxCached bounds the verified-key cache. It is reset when full.
	maxCached = 1024
)

// APIKey is a configured key: the user it authenticates and the bcrypt
// hash of the key.
type APIKey struct {
	UserID string
	Hash   string
}

// GenerateAPIKey returns a new random key.
func GenerateAPIKey() (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}

	return APIKeyPrefix + hex.EncodeToString(b), nil
}

// HashAPIKey bcrypt-hashes key for MCP_API_KEYS.
func HashAPIKey(key string) (string, error) {
	if !strings.HasPrefix(key, APIKeyPrefix) || len(key) < APIKeyMinLen {
		return "", fmt.Errorf("api key must start with %q and be at least %d characters", APIKeyPrefix, APIKeyMinLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing api key: %w", err)
	}

	return string(hash), nil
}

// Verifier checks presented keys against the configured hashes. bcrypt is
// slow by construction, so keys that verified once are remembered by
// their SHA-256 digest.
type Verifier struct {
	keys   atomic.Pointer[[]APIKey]
	cache  *xsync.MapOf[string, string]
	logger *slog.Logger
}

func NewVerifier(keys []APIKey, logger *slog.Logger) *Verifier {
	v := &Verifier{
		cache:  xsync.NewMapOf[string, string](),
		logger: logging.Component(logger, "auth"),
	}
	v.keys.Store(&keys)

	return v
}

// SetKeys replaces the configured keys. Keys verified under the old set
// are forgotten.
func (v *Verifier) SetKeys(keys []APIKey) {
	v.keys.Store(&keys)
	v.cache.Clear()
	v.logger.Info("api keys replaced", slog.Int("keys", len(keys)))
}

// Verify returns the user the key belongs to.
func (v *Verifier) Verify(key string) (string, bool) {
	if !strings.HasPrefix(key, APIKeyPrefix) || len(key) < APIKeyMinLen {
		return "", false
	}

	sum := sha256.Sum256([]byte(key))
	digest := hex.EncodeToString(sum[:])

	if user, ok := v.cache.Load(digest); ok {
		return user, true
	}

	for _, k := range *v.keys.Load() {
		if bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(key)) != nil {
			continue
		}

		if v.cache.Size() >= maxCached {
			v.cache.Clear()
		}

		v.cache.Store(digest, k.UserID)

		return k.UserID, true
	}

	return "", false
}

// Len is the number of configured keys.
func (v *Verifier) Len() int { return len(*v.keys.Load()) }
