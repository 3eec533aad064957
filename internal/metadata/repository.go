package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ananthjv/pixlift/internal/model"
)

// Repository is the Postgres-backed Store used in production.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Put inserts the record. The primary key enforces append-once; a second write
// for the same asset key surfaces as ErrDuplicateKey.
func (r *Repository) Put(ctx context.Context, record *model.MetadataRecord) error {
	variants, err := json.Marshal(record.OutputVariantsKB)
	if err != nil {
		return fmt.Errorf("marshal variants: %w", err)
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO image_metadata
			(asset_key, owner_identity, owner_role, file_name, original_size_kb,
			 output_variants_kb, savings_percent, processing_time_ms, quality_used, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, record.AssetKey, record.Owner, record.OwnerRole, record.FileName, record.OriginalSizeKB,
		variants, record.SavingsPercent, record.ProcessingTimeMs, record.QualityUsed, createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 is unique_violation.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("asset %s: %w", record.AssetKey, ErrDuplicateKey)
		}
		return fmt.Errorf("insert metadata: %w", err)
	}
	return nil
}

// Get returns the record for an asset key or ErrNotFound.
func (r *Repository) Get(ctx context.Context, assetKey string) (*model.MetadataRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT asset_key, owner_identity, owner_role, file_name, original_size_kb,
		       output_variants_kb, savings_percent, processing_time_ms, quality_used, created_at
		FROM image_metadata WHERE asset_key=$1
	`, assetKey)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("asset %s: %w", assetKey, ErrNotFound)
		}
		return nil, fmt.Errorf("select metadata: %w", err)
	}
	return rec, nil
}

// List returns every record without any ordering guarantee.
func (r *Repository) List(ctx context.Context) ([]*model.MetadataRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT asset_key, owner_identity, owner_role, file_name, original_size_kb,
		       output_variants_kb, savings_percent, processing_time_ms, quality_used, created_at
		FROM image_metadata
	`)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	defer rows.Close()
	var out []*model.MetadataRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metadata: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.MetadataRecord, error) {
	var (
		rec      model.MetadataRecord
		variants []byte
	)
	if err := row.Scan(&rec.AssetKey, &rec.Owner, &rec.OwnerRole, &rec.FileName, &rec.OriginalSizeKB,
		&variants, &rec.SavingsPercent, &rec.ProcessingTimeMs, &rec.QualityUsed, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &rec.OutputVariantsKB); err != nil {
			return nil, fmt.Errorf("unmarshal variants: %w", err)
		}
	}
	return &rec, nil
}
