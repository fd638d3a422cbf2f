// Package genevatest provides an in-process Geneva backend double for
// exporter and client tests: it serves the config service exchange and the
// ingestion endpoint, decompresses uploads and counts what arrives.
package genevatest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pierrec/lz4/v4"
	"go.opentelemetry.io/collector/pdata/plog/plogotlp"
	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"
)

const defaultAuthToken = "genevatest-ingestion-token"

// Server is a mock Geneva backend.
type Server struct {
	httpServer *httptest.Server

	mu       sync.Mutex
	failures int

	configRequests atomic.Int64
	uploads        atomic.Int64
	logBatches     atomic.Int64
	spanBatches    atomic.Int64
	records        atomic.Int64
	bytesReceived  atomic.Int64
}

// NewServer starts a mock backend. Callers own it and must Close it.
func NewServer() *Server {
	s := &Server{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/agent/v3/", s.handleConfig)
	mux.HandleFunc("/api/v1/ingestion/ingest", s.handleIngest)
	s.httpServer = httptest.NewServer(mux)

	return s
}

// URL is the endpoint to point a client's config service at.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// AuthToken is the ingestion token the config service hands out.
func (s *Server) AuthToken() string {
	return defaultAuthToken
}

// Close shuts the backend down.
func (s *Server) Close() {
	s.httpServer.Close()
}

// FailNextUploads makes the next n upload requests fail with a 500 so retry
// behavior can be exercised.
func (s *Server) FailNextUploads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

// ConfigRequests is the number of config service exchanges served.
func (s *Server) ConfigRequests() int64 { return s.configRequests.Load() }

// Uploads is the number of accepted upload requests.
func (s *Server) Uploads() int64 { return s.uploads.Load() }

// LogBatches is the number of accepted log batches.
func (s *Server) LogBatches() int64 { return s.logBatches.Load() }

// SpanBatches is the number of accepted span batches.
func (s *Server) SpanBatches() int64 { return s.spanBatches.Load() }

// Records is the total number of log records and spans received.
func (s *Server) Records() int64 { return s.records.Load() }

// BytesReceived is the total compressed payload size received.
func (s *Server) BytesReceived() int64 { return s.bytesReceived.Load() }

func (s *Server) handleConfig(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !strings.Contains(req.URL.Path, "MonitoringStorageKeys") {
		http.NotFound(w, req)
		return
	}
	q := req.URL.Query()
	for _, param := range []string{"Namespace", "Region", "Identity", "Version"} {
		if q.Get(param) == "" {
			http.Error(w, fmt.Sprintf("missing query parameter %q", param), http.StatusBadRequest)
			return
		}
	}

	s.configRequests.Add(1)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"IngestionGatewayInfo": map[string]string{
			"Endpoint":            s.httpServer.URL,
			"AuthToken":           defaultAuthToken,
			"AuthTokenExpiryTime": time.Now().Add(time.Hour).Format(time.RFC3339),
		},
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if req.Header.Get("Authorization") != "Bearer "+defaultAuthToken {
		http.Error(w, "bad ingestion token", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return
	}
	s.mu.Unlock()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	raw, err := decompress(body)
	if err != nil {
		http.Error(w, "decompressing body", http.StatusBadRequest)
		return
	}

	switch event := req.URL.Query().Get("event"); event {
	case "Log":
		exportReq := plogotlp.NewExportRequest()
		if err := exportReq.UnmarshalProto(raw); err != nil {
			http.Error(w, "decoding log payload", http.StatusBadRequest)
			return
		}
		s.logBatches.Add(1)
		s.records.Add(int64(exportReq.Logs().LogRecordCount()))
	case "Span":
		exportReq := ptraceotlp.NewExportRequest()
		if err := exportReq.UnmarshalProto(raw); err != nil {
			http.Error(w, "decoding span payload", http.StatusBadRequest)
			return
		}
		s.spanBatches.Add(1)
		s.records.Add(int64(exportReq.Traces().SpanCount()))
	default:
		http.Error(w, fmt.Sprintf("unknown event %q", event), http.StatusBadRequest)
		return
	}

	s.uploads.Add(1)
	s.bytesReceived.Add(int64(len(body)))

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func decompress(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}
