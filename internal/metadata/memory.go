package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ananthjv/pixlift/internal/model"
)

// MemoryStore is an in-memory Store using RWMutex. Records are copied on the
// way in and out so callers can never mutate shared state.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*model.MetadataRecord
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*model.MetadataRecord),
	}
}

// Put inserts a record, enforcing the append-once rule.
func (m *MemoryStore) Put(ctx context.Context, record *model.MetadataRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.AssetKey]; ok {
		return fmt.Errorf("asset %s: %w", record.AssetKey, ErrDuplicateKey)
	}
	stored := cloneRecord(record)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	m.records[record.AssetKey] = stored
	return nil
}

// Get returns a record copy or ErrNotFound.
func (m *MemoryStore) Get(ctx context.Context, assetKey string) (*model.MetadataRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[assetKey]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", assetKey, ErrNotFound)
	}
	return cloneRecord(rec), nil
}

// List returns copies of all records in map order, i.e. unordered.
func (m *MemoryStore) List(ctx context.Context) ([]*model.MetadataRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.MetadataRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

func cloneRecord(rec *model.MetadataRecord) *model.MetadataRecord {
	copied := *rec
	if rec.OutputVariantsKB != nil {
		copied.OutputVariantsKB = make(map[string]float64, len(rec.OutputVariantsKB))
		for k, v := range rec.OutputVariantsKB {
			copied.OutputVariantsKB[k] = v
		}
	}
	return &copied
}
