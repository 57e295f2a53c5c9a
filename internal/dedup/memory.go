package dedup

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// memoryDedup coordinates in-process callers with singleflight: the first
// caller for a fingerprint runs fn, every concurrent caller with the same
// fingerprint blocks on the same call and shares its result. Once the call
// completes, the group forgets the key so the next request for that
// fingerprint runs fresh — single-process deduplication has no need for an
// explicit TTL the way the distributed variant does.
type memoryDedup struct {
	group singleflight.Group
}

// NewMemory returns an in-process Deduplicator.
func NewMemory() Deduplicator {
	return &memoryDedup{}
}

func (d *memoryDedup) Execute(ctx context.Context, fingerprint string, run func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	v, err, _ := d.group.Do(fingerprint, func() (any, error) {
		return run(ctx)
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.([]byte), nil
}
