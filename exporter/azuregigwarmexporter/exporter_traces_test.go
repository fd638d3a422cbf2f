// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package azuregigwarmexporter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/component/componenttest"
	"go.opentelemetry.io/collector/exporter"
	"go.opentelemetry.io/collector/exporter/exportertest"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/lalitb/otel-azuregigwarm-exporter/exporter/azuregigwarmexporter"
	"github.com/lalitb/otel-azuregigwarm-exporter/exporter/azuregigwarmexporter/internal/genevatest"
)

func newTestTracesExporter(t *testing.T, backend *genevatest.Server, fns ...func(*azuregigwarmexporter.Config)) exporter.Traces {
	factory := azuregigwarmexporter.NewFactory()
	cfg := withTestConfig(append([]func(*azuregigwarmexporter.Config){withBackend(backend)}, fns...)...)

	exp, err := factory.CreateTraces(context.Background(), exportertest.NewNopSettings(azuregigwarmexporter.Type), cfg)
	require.NoError(t, err)
	require.NoError(t, exp.Start(context.Background(), componenttest.NewNopHost()))

	t.Cleanup(func() { require.NoError(t, exp.Shutdown(context.Background())) })
	return exp
}

func simpleTraces(counts ...int) ptrace.Traces {
	traces := ptrace.NewTraces()
	for _, count := range counts {
		rs := traces.ResourceSpans().AppendEmpty()
		rs.Resource().Attributes().PutStr("service.name", "test-service")
		ss := rs.ScopeSpans().AppendEmpty()
		for i := 0; i < count; i++ {
			span := ss.Spans().AppendEmpty()
			span.SetName("operation")
			span.SetStartTimestamp(pcommon.NewTimestampFromTime(time.Now()))
		}
	}
	return traces
}

func mustPushTraces(t *testing.T, exp exporter.Traces, td ptrace.Traces) {
	require.NoError(t, exp.ConsumeTraces(context.Background(), td))
}

func TestTracesExporterPush(t *testing.T) {
	backend := genevatest.NewServer()
	t.Cleanup(backend.Close)

	exp := newTestTracesExporter(t, backend)

	mustPushTraces(t, exp, simpleTraces(4, 1))
	mustPushTraces(t, exp, simpleTraces(2))

	assert.Equal(t, int64(3), backend.SpanBatches())
	assert.Equal(t, int64(7), backend.Records())
	assert.Equal(t, int64(1), backend.ConfigRequests())
}

func TestTracesExporterRecoversWithBatchRetry(t *testing.T) {
	backend := genevatest.NewServer()
	t.Cleanup(backend.Close)

	exp := newTestTracesExporter(t, backend)

	backend.FailNextUploads(1)
	mustPushTraces(t, exp, simpleTraces(2))

	assert.Equal(t, int64(1), backend.SpanBatches())
	assert.Equal(t, int64(2), backend.Records())
}

func TestTracesExporterFailsWithBatchRetryDisabled(t *testing.T) {
	backend := genevatest.NewServer()
	t.Cleanup(backend.Close)

	exp := newTestTracesExporter(t, backend, func(cfg *azuregigwarmexporter.Config) {
		cfg.BatchRetryConfig.Enabled = false
	})

	backend.FailNextUploads(1)
	err := exp.ConsumeTraces(context.Background(), simpleTraces(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload spans batch 0")
}

func TestTracesExporterCreateRejectsInvalidConfig(t *testing.T) {
	factory := azuregigwarmexporter.NewFactory()
	cfg := withTestConfig(func(cfg *azuregigwarmexporter.Config) {
		cfg.Region = ""
	})

	_, err := factory.CreateTraces(context.Background(), exportertest.NewNopSettings(azuregigwarmexporter.Type), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid azuregigwarm config")
}
