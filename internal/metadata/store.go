// Package metadata holds the durable record store written once per asset by
// the optimizer, and the role-gated access layer every read goes through.
package metadata

import (
	"context"
	"errors"
	"sort"

	"github.com/ananthjv/pixlift/internal/model"
)

var (
	// ErrNotFound reports an absent record. Absence is an expected transient
	// state while an asset is still processing, not a failure.
	ErrNotFound = errors.New("metadata record not found")
	// ErrDuplicateKey reports an attempt to write a record for an asset key
	// that already has one. Records are append-once.
	ErrDuplicateKey = errors.New("metadata record already exists")
)

// Store is the persistence contract. The Postgres repository backs production;
// the memory store backs tests and single-binary dev runs. All reads are safe
// to repeat and to run concurrently since records never mutate.
type Store interface {
	Put(ctx context.Context, record *model.MetadataRecord) error
	Get(ctx context.Context, assetKey string) (*model.MetadataRecord, error)
	List(ctx context.Context) ([]*model.MetadataRecord, error)
}

// SortByCreatedDesc orders records newest first. The store delivers records
// unordered; presentation ordering is the caller's job.
func SortByCreatedDesc(records []*model.MetadataRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
