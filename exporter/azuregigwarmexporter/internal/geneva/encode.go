package geneva

import (
	"bytes"
	"fmt"

	"github.com/pierrec/lz4/v4"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/pdata/plog/plogotlp"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"
)

// Event stream names the ingestion gateway distinguishes payloads by.
const (
	eventLog  = "Log"
	eventSpan = "Span"
)

// Batch is one compressed upload unit holding the records of a single
// resource.
type Batch struct {
	// Event is the payload stream, eventLog or eventSpan.
	Event string
	// Data is the LZ4-compressed OTLP payload.
	Data []byte
	// Records is the number of log records or spans in the batch.
	Records int
	// RawSize is the uncompressed payload size in bytes.
	RawSize int
}

// EncodedBatches holds the upload units produced by one encode call.
type EncodedBatches struct {
	batches []Batch
	closed  bool
}

// Len returns the number of batches. A nil or closed value has none.
func (b *EncodedBatches) Len() int {
	if b == nil || b.closed {
		return 0
	}
	return len(b.batches)
}

// Close releases the encoded payloads. Closing twice is fine.
func (b *EncodedBatches) Close() {
	if b == nil {
		return
	}
	b.batches = nil
	b.closed = true
}

// at returns the batch at idx.
func (b *EncodedBatches) at(idx int) (Batch, error) {
	if b == nil || b.closed || idx < 0 || idx >= len(b.batches) {
		return Batch{}, ErrIndexOutOfRange
	}
	return b.batches[idx], nil
}

// encodeLogs splits an OTLP logs request into one compressed batch per
// resource.
func encodeLogs(data []byte) (*EncodedBatches, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	req := plogotlp.NewExportRequest()
	if err := req.UnmarshalProto(data); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecodeFailed, err.Error())
	}

	rls := req.Logs().ResourceLogs()
	batches := make([]Batch, 0, rls.Len())
	for i := 0; i < rls.Len(); i++ {
		single := plog.NewLogs()
		rls.At(i).CopyTo(single.ResourceLogs().AppendEmpty())
		records := single.LogRecordCount()
		if records == 0 {
			continue
		}

		raw, err := plogotlp.NewExportRequestFromLogs(single).MarshalProto()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInternal, err.Error())
		}
		batch, err := newBatch(eventLog, raw, records)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}

	return &EncodedBatches{batches: batches}, nil
}

// encodeSpans splits an OTLP traces request into one compressed batch per
// resource.
func encodeSpans(data []byte) (*EncodedBatches, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	req := ptraceotlp.NewExportRequest()
	if err := req.UnmarshalProto(data); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecodeFailed, err.Error())
	}

	rss := req.Traces().ResourceSpans()
	batches := make([]Batch, 0, rss.Len())
	for i := 0; i < rss.Len(); i++ {
		single := ptrace.NewTraces()
		rss.At(i).CopyTo(single.ResourceSpans().AppendEmpty())
		spans := single.SpanCount()
		if spans == 0 {
			continue
		}

		raw, err := ptraceotlp.NewExportRequestFromTraces(single).MarshalProto()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInternal, err.Error())
		}
		batch, err := newBatch(eventSpan, raw, spans)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}

	return &EncodedBatches{batches: batches}, nil
}

func newBatch(event string, raw []byte, records int) (Batch, error) {
	compressed, err := compress(raw)
	if err != nil {
		return Batch{}, fmt.Errorf("%w: compressing batch: %s", ErrInternal, err.Error())
	}
	return Batch{
		Event:   event,
		Data:    compressed,
		Records: records,
		RawSize: len(raw),
	}, nil
}

// compress wraps the payload in an LZ4 frame.
func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
