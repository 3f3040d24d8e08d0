// Package cache stores prior curation results keyed by a fingerprint of the
// content and the normalized user context.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"curator/internal/models"
)

// Cache is implemented by the in-memory and Redis backends. Implementations
// copy values on the way in and out, so callers never share a result.
type Cache interface {
	Get(ctx context.Context, key string) (models.CurationResult, bool)
	Put(ctx context.Context, key string, result models.CurationResult, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
	Close() error
}

// Fingerprint hashes the text, the source hint and the normalized user
// context. Equivalent contexts (same factors in a different order, lower-case
// jurisdiction) hash the same.
func Fingerprint(item models.ContentItem, uc models.UserContext) string {
	uc = uc.Normalize()
	factors := make([]string, 0, len(uc.VulnerabilityFactors))
	for _, f := range uc.VulnerabilityFactors {
		factors = append(factors, string(f))
	}

	h := sha256.New()
	for _, part := range []string{
		item.Text,
		item.SourceHint,
		string(uc.AgeCategory),
		uc.Jurisdiction,
		strings.Join(factors, ","),
		string(uc.SensitivityLevel),
		string(uc.ParentalControlLevel),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Key namespaces a fingerprint by strategy so a strategy switch never serves
// a decision made under other thresholds.
func Key(strategy, fingerprint string) string {
	return strategy + ":" + fingerprint
}
