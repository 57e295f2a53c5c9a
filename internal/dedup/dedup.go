// Package dedup implements C10: in-flight request deduplication. Two
// concurrent requests with the same fingerprint share a single upstream
// invocation; a joiner either receives the owner's result or, if the owner
// never finishes in time, falls through to running the request itself
// (fail-open — dedup is a cost optimization, never a correctness
// requirement).
//
// Adapted from the teacher's idempotency manager, extended from a pure
// result cache into true owner-token lock semantics: the teacher's Get/Set
// never coordinated concurrent callers, only cached a finished result.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Deduplicator is the C10 contract. Execute runs fn under fingerprint's
// lock: the first caller to arrive becomes the owner and actually invokes
// fn; later callers with the same fingerprint either receive the owner's
// result or, on timeout/backend failure, invoke fn themselves.
type Deduplicator interface {
	Execute(ctx context.Context, fingerprint string, run func(ctx context.Context) ([]byte, error)) ([]byte, error)
}

// Fingerprint hashes the canonicalized request body together with the scope
// it must not leak across (tenant, endpoint kind) into a stable key.
func Fingerprint(tenantID, endpointKind string, canonicalBody []byte) string {
	h := sha256.New()
	h.Write([]byte(tenantID))
	h.Write([]byte{0})
	h.Write([]byte(endpointKind))
	h.Write([]byte{0})
	h.Write(canonicalBody)
	return hex.EncodeToString(h.Sum(nil))
}
