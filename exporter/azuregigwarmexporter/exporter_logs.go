// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package azuregigwarmexporter // import "github.com/lalitb/otel-azuregigwarm-exporter/exporter/azuregigwarmexporter"

import (
	"context"
	"fmt"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/exporter"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/pdata/plog/plogotlp"
	"go.uber.org/zap"

	"github.com/lalitb/otel-azuregigwarm-exporter/exporter/azuregigwarmexporter/internal/geneva"
)

// logsExporter implements the logs exporter for Azure Geneva Warm (GigWarm).
type logsExporter struct {
	cfg      *Config
	client   *geneva.Client
	logger   *zap.Logger
	uploader *batchUploader
}

// newLogsExporter creates a new GigWarm logs exporter.
func newLogsExporter(set exporter.Settings, cfg *Config) (*logsExporter, error) {
	// Validate early to fail fast
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid azuregigwarm config: %w", err)
	}

	client, err := geneva.NewClient(cfg.clientConfig(), set.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Geneva client: %w", err)
	}

	return &logsExporter{
		cfg:    cfg,
		client: client,
		logger: set.Logger,
		uploader: &batchUploader{
			client: client,
			retry:  cfg.BatchRetryConfig,
			logger: set.Logger,
			signal: "logs",
		},
	}, nil
}

// start is called by the Collector when the exporter is starting.
func (e *logsExporter) start(_ context.Context, _ component.Host) error {
	e.logger.Info("Starting AzureGigWarm exporter",
		zap.String("endpoint", e.cfg.Endpoint),
		zap.String("environment", e.cfg.Environment),
		zap.String("account", e.cfg.Account),
		zap.String("namespace", e.cfg.Namespace),
		zap.String("region", e.cfg.Region),
	)
	return nil
}

// shutdown is called by the Collector when the exporter is shutting down.
func (e *logsExporter) shutdown(_ context.Context) error {
	e.logger.Info("Shutting down AzureGigWarm exporter")
	if e.client != nil {
		e.client.Close()
	}
	return nil
}

// pushLogs implements the push function for exporterhelper.
func (e *logsExporter) pushLogs(ctx context.Context, ld plog.Logs) error {
	// Marshal to OTLP ExportLogsServiceRequest protobuf bytes
	req := plogotlp.NewExportRequestFromLogs(ld)
	data, err := req.MarshalProto()
	if err != nil {
		return fmt.Errorf("failed to marshal logs to protobuf: %w", err)
	}

	// Encode once, then upload each batch.
	batches, err := e.client.EncodeAndCompressLogs(data)
	if err != nil {
		e.logger.Error("Failed to encode logs for Geneva Warm", zap.Error(err))
		return fmt.Errorf("failed to encode logs for Geneva Warm: %w", err)
	}
	defer batches.Close()

	n := batches.Len()

	if err := e.uploader.uploadAll(ctx, batches); err != nil {
		return err
	}

	e.logger.Debug("Successfully uploaded logs to Geneva Warm",
		zap.Int("log_records", ld.LogRecordCount()),
		zap.Int("batches", n),
	)
	return nil
}
