package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Cache stores verification verdicts and embedding vectors between calls
// and across runs.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// VerdictKey derives a stable cache key for a verification decision from the
// claim text and its cited evidence bodies. Re-verifying a fact against
// unchanged evidence hits the same key, which is what makes re-verification
// idempotent within and across runs.
func VerdictKey(claim string, evidenceIDs []string, evidenceBodies []string) string {
	ids := append([]string(nil), evidenceIDs...)
	sort.Strings(ids)

	h := sha256.New()
	h.Write([]byte(claim))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(ids, "\x00")))
	h.Write([]byte{0})
	for _, body := range evidenceBodies {
		h.Write([]byte(body))
		h.Write([]byte{0})
	}
	return "factgraph:verdict:v1:" + hex.EncodeToString(h.Sum(nil))
}

// EmbeddingKey derives a cache key for an entity-name embedding vector.
func EmbeddingKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return "factgraph:embed:v1:" + hex.EncodeToString(h[:])
}
