// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package azuregigwarmexporter // import "github.com/lalitb/otel-azuregigwarm-exporter/exporter/azuregigwarmexporter"

import (
	"context"
	"fmt"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/exporter"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/lalitb/otel-azuregigwarm-exporter/exporter/azuregigwarmexporter/internal/geneva"
)

// tracesExporter implements the traces exporter for Azure Geneva Warm (GigWarm).
type tracesExporter struct {
	cfg       *Config
	client    *geneva.Client
	logger    *zap.Logger
	telemetry *telemetry
	uploader  *batchUploader
}

// newTracesExporter creates a new GigWarm traces exporter.
func newTracesExporter(set exporter.Settings, cfg *Config) (*tracesExporter, error) {
	// Validate early to fail fast
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid azuregigwarm config: %w", err)
	}

	telemetryInst, err := newTelemetry(set.TelemetrySettings)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry: %w", err)
	}

	client, err := geneva.NewClient(cfg.clientConfig(), set.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Geneva client: %w", err)
	}

	return &tracesExporter{
		cfg:       cfg,
		client:    client,
		logger:    set.Logger,
		telemetry: telemetryInst,
		uploader: &batchUploader{
			client:      client,
			retry:       cfg.BatchRetryConfig,
			logger:      set.Logger,
			telemetry:   telemetryInst,
			signal:      "spans",
			commonAttrs: commonAttributes(cfg),
		},
	}, nil
}

// start is called by the Collector when the exporter is starting.
func (e *tracesExporter) start(_ context.Context, _ component.Host) error {
	e.logger.Info("Starting AzureGigWarm traces exporter",
		zap.String("endpoint", e.cfg.Endpoint),
		zap.String("environment", e.cfg.Environment),
		zap.String("account", e.cfg.Account),
		zap.String("namespace", e.cfg.Namespace),
		zap.String("region", e.cfg.Region),
	)
	return nil
}

// shutdown is called by the Collector when the exporter is shutting down.
func (e *tracesExporter) shutdown(_ context.Context) error {
	e.logger.Info("Shutting down AzureGigWarm traces exporter")
	if e.client != nil {
		e.client.Close()
	}
	return nil
}

// pushTraces implements the push function for exporterhelper.
func (e *tracesExporter) pushTraces(ctx context.Context, td ptrace.Traces) error {
	spanCount := td.SpanCount()

	commonAttrs := commonAttributes(e.cfg)
	traceAttrs := e.getTraceAttributes(td)

	// Record that we received a trace request
	e.telemetry.recordTracesReceived(ctx, commonAttrs...)

	// Record the number of spans received
	e.telemetry.recordSpansReceived(ctx, int64(spanCount), commonAttrs...)

	// Marshal to OTLP ExportTraceServiceRequest protobuf bytes
	req := ptraceotlp.NewExportRequestFromTraces(td)
	data, err := req.MarshalProto()
	if err != nil {
		e.telemetry.recordSpansExportError(ctx, int64(spanCount), append(commonAttrs,
			attribute.String("error", "marshal_failed"),
			attribute.String("phase", "encoding"))...)

		e.telemetry.recordTracesExportError(ctx, append(traceAttrs,
			attribute.String("error", "marshal_failed"),
			attribute.String("phase", "encoding"))...)

		return fmt.Errorf("failed to marshal traces to protobuf: %w", err)
	}

	// Encode once, then upload each batch.
	batches, err := e.client.EncodeAndCompressSpans(data)
	if err != nil {
		e.logger.Error("Failed to encode spans for Geneva Warm", zap.Error(err))
		e.telemetry.recordSpansExportError(ctx, int64(spanCount), append(commonAttrs,
			attribute.String("error", "encoding_failed"),
			attribute.String("phase", "encoding"))...)

		e.telemetry.recordTracesExportError(ctx, append(traceAttrs,
			attribute.String("error", "encoding_failed"),
			attribute.String("phase", "encoding"))...)

		return fmt.Errorf("failed to encode spans for Geneva Warm: %w", err)
	}
	defer batches.Close()

	n := batches.Len()

	if err := e.uploader.uploadAll(ctx, batches); err != nil {
		e.telemetry.recordSpansExportError(ctx, int64(spanCount), append(commonAttrs,
			attribute.String("error", "upload_failed"),
			attribute.String("phase", "upload"))...)

		e.telemetry.recordTracesExportError(ctx, append(traceAttrs,
			attribute.String("error", "upload_failed"),
			attribute.String("phase", "upload"))...)

		return err
	}

	// Record success
	e.telemetry.recordSpansExported(ctx, int64(spanCount), commonAttrs...)
	e.telemetry.recordTracesExported(ctx, traceAttrs...)

	e.logger.Debug("Successfully uploaded spans to Geneva Warm",
		zap.Int("span_count", spanCount),
		zap.Int("batches", n),
	)
	return nil
}

// commonAttributes returns the common telemetry attributes for an exporter instance
func commonAttributes(cfg *Config) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("exporter", "azuregigwarm"),
		attribute.String("gigwarm_environment", cfg.Environment),
		attribute.String("gigwarm_account", cfg.Account),
		attribute.String("gigwarm_namespace", cfg.Namespace),
		attribute.String("gigwarm_region", cfg.Region),
		attribute.Int("gigwarm_config_major_version", int(cfg.ConfigMajorVersion)),
	}
}

// getTraceAttributes returns attributes specific to a trace payload
func (e *tracesExporter) getTraceAttributes(td ptrace.Traces) []attribute.KeyValue {
	attrs := commonAttributes(e.cfg)

	attrs = append(attrs,
		attribute.Int("spans_count", td.SpanCount()),
		attribute.Int("resource_spans_count", td.ResourceSpans().Len()),
	)

	return attrs
}
