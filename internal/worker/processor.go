// Package worker is the asynchronous compute trigger: it consumes optimize
// jobs, recovers the caller context from the uploaded object's metadata,
// produces the renditions, and writes the asset's one immutable record.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ananthjv/pixlift/internal/credential"
	"github.com/ananthjv/pixlift/internal/metadata"
	"github.com/ananthjv/pixlift/internal/model"
	"github.com/ananthjv/pixlift/internal/optimize"
	"github.com/ananthjv/pixlift/internal/queue"
)

// ObjectStore is the slice of the object store the worker touches.
type ObjectStore interface {
	StatRaw(ctx context.Context, objectKey string) (int64, map[string]string, error)
	DownloadRaw(ctx context.Context, objectKey string) ([]byte, error)
	UploadVariant(ctx context.Context, objectKey string, data []byte, contentType string) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	store metadata.Store
	blobs ObjectStore
}

// NewProcessor constructs a worker processor.
func NewProcessor(store metadata.Store, blobs ObjectStore) *Processor {
	return &Processor{store: store, blobs: blobs}
}

// Handler registers the optimize job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.OptimizeImageTask, p.handleOptimize)
	return mux
}

func (p *Processor) handleOptimize(ctx context.Context, task *asynq.Task) error {
	var payload queue.OptimizePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	started := time.Now()
	assetKey := credential.AssetKeyFromObject(payload.ObjectKey)

	_, userMeta, err := p.blobs.StatRaw(ctx, payload.ObjectKey)
	if err != nil {
		return fmt.Errorf("stat %s: %w", payload.ObjectKey, err)
	}
	// The context the issuance service embedded rides on the object itself.
	req, fileName := credential.DecodeContext(userMeta)
	if fileName == "" {
		fileName = payload.ObjectKey
	}

	data, err := p.blobs.DownloadRaw(ctx, payload.ObjectKey)
	if err != nil {
		return fmt.Errorf("download %s: %w", payload.ObjectKey, err)
	}
	renditions, err := optimize.Transcode(data, req.Quality, req.KeepOriginal)
	if err != nil {
		return fmt.Errorf("transcode %s: %w", payload.ObjectKey, err)
	}

	variantsKB := make(map[string]float64, len(renditions))
	totalOutput := 0
	for name, encoded := range renditions {
		key := fmt.Sprintf("%s/%s.jpg", name, assetKey)
		if err := p.blobs.UploadVariant(ctx, key, encoded, optimize.ContentType); err != nil {
			return fmt.Errorf("store rendition %s: %w", key, err)
		}
		variantsKB[name] = optimize.KB(len(encoded))
		totalOutput += len(encoded)
	}

	record := &model.MetadataRecord{
		AssetKey:         assetKey,
		Owner:            req.Identity,
		OwnerRole:        req.Role,
		FileName:         fileName,
		OriginalSizeKB:   optimize.KB(len(data)),
		OutputVariantsKB: variantsKB,
		SavingsPercent:   model.FormatSavings(optimize.SavingsPercent(len(data), totalOutput)),
		ProcessingTimeMs: float64(time.Since(started).Microseconds()) / 1000,
		QualityUsed:      req.Quality,
		CreatedAt:        time.Now().UTC(),
	}
	if err := p.store.Put(ctx, record); err != nil {
		// A redelivered task may race an earlier success; the first record
		// stands and the duplicate write is a no-op.
		if errors.Is(err, metadata.ErrDuplicateKey) {
			log.Printf("record for %s already written, skipping", assetKey)
			return nil
		}
		return fmt.Errorf("write record %s: %w", assetKey, err)
	}
	log.Printf("asset %s processed for %s (%d renditions, %s saved)",
		assetKey, record.Owner, len(renditions), record.SavingsPercent)
	return nil
}
