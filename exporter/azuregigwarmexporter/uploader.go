// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package azuregigwarmexporter // import "github.com/lalitb/otel-azuregigwarm-exporter/exporter/azuregigwarmexporter"

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/lalitb/otel-azuregigwarm-exporter/exporter/azuregigwarmexporter/internal/geneva"
)

// batchUploader uploads encoded batches concurrently and retries failed
// batches individually, so batches that already made it are not re-sent.
// telemetry may be nil; the logs pipeline records no custom metrics.
type batchUploader struct {
	client      *geneva.Client
	retry       BatchRetryConfig
	logger      *zap.Logger
	telemetry   *telemetry
	signal      string
	commonAttrs []attribute.KeyValue
}

// uploadAll uploads every batch concurrently. It returns the first error
// once all uploads have finished.
func (u *batchUploader) uploadAll(ctx context.Context, batches *geneva.EncodedBatches) error {
	type batchResult struct {
		index int
		err   error
	}

	n := batches.Len()
	resultChan := make(chan batchResult, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			if err := u.uploadOne(ctx, batches, index); err != nil {
				resultChan <- batchResult{index: index, err: err}
			}
		}(i)
	}

	wg.Wait()
	close(resultChan)

	var failedBatches []batchResult
	for result := range resultChan {
		failedBatches = append(failedBatches, result)
	}

	if len(failedBatches) > 0 {
		u.logger.Error("Failed to upload batches after retries",
			zap.Int("failed_count", len(failedBatches)),
			zap.Int("total_batches", n),
		)
		// Return the first error
		return failedBatches[0].err
	}

	return nil
}

// uploadOne uploads a single batch, with exponential backoff retry when
// batch retry is enabled.
func (u *batchUploader) uploadOne(ctx context.Context, batches *geneva.EncodedBatches, index int) error {
	if !u.retry.Enabled {
		// Batch retry disabled, upload once
		if err := u.client.UploadBatch(ctx, batches, index); err != nil {
			u.logger.Error("Failed to upload batch to Geneva Warm",
				zap.Int("batch_index", index),
				zap.Error(err),
			)
			if u.telemetry != nil {
				u.telemetry.recordBatchExportError(ctx, append(u.commonAttrs,
					attribute.String("error", "upload_failed"),
					attribute.Bool("retry_enabled", false))...)
			}
			return fmt.Errorf("failed to upload %s batch %d to Geneva Warm: %w", u.signal, index, err)
		}
		if u.telemetry != nil {
			u.telemetry.recordBatchExported(ctx, append(u.commonAttrs,
				attribute.Bool("retry_enabled", false))...)
		}
		return nil
	}

	maxRetries := u.retry.MaxRetries
	if maxRetries < 0 {
		maxRetries = 3
	}

	attempts := 0
	operation := func() error {
		attempts++
		err := u.client.UploadBatch(ctx, batches, index)
		if err != nil {
			u.logger.Warn("Batch upload failed, will retry",
				zap.Int("batch_index", index),
				zap.Int("attempt", attempts),
				zap.Int("max_attempts", maxRetries+1),
				zap.Error(err),
			)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(u.retry.backOff(), uint64(maxRetries)), ctx)
	err := backoff.Retry(operation, policy)
	if err == nil {
		if attempts > 1 {
			u.logger.Info("Batch upload succeeded after retry",
				zap.Int("batch_index", index),
				zap.Int("attempt", attempts),
			)
		}
		if u.telemetry != nil {
			u.telemetry.recordBatchExported(ctx, append(u.commonAttrs,
				attribute.Bool("retry_enabled", true),
				attribute.Int("attempts", attempts))...)
		}
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}

	u.logger.Error("Failed to upload batch after all retries",
		zap.Int("batch_index", index),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	if u.telemetry != nil {
		u.telemetry.recordBatchExportError(ctx, append(u.commonAttrs,
			attribute.String("error", "max_retries_exceeded"),
			attribute.Bool("retry_enabled", true),
			attribute.Int("attempts", attempts))...)
	}
	return fmt.Errorf("failed to upload %s batch %d after %d attempts: %w", u.signal, index, attempts, err)
}
