package storage

import (
	"context"

	"github.com/hexquarry/battle/types"
)

// Store durably persists a finished creature's generation result, keyed
// by fingerprint, once the pipeline commits it. This is the document
// store that owns the result
// after the cache copy is made — distinct from the short-TTL fingerprint
// cache in queue/submitter.go, which is a separate, ephemeral copy.
type Store interface {
	// Put durably persists result under fingerprint. Idempotent: writing
	// the same fingerprint twice with an identical result is a no-op in
	// effect (the second write simply overwrites with the same bytes).
	Put(ctx context.Context, fingerprint string, result *types.JobResult) error

	// Get retrieves a previously persisted result. Returns ErrNotFound if
	// no result was ever persisted for fingerprint.
	Get(ctx context.Context, fingerprint string) (*types.JobResult, error)

	// Close releases backing resources.
	Close() error
}
