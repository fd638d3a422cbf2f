package geneva

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeConfigService is an inline config service double with a controllable
// ticket expiry and failure switch.
type fakeConfigService struct {
	server *httptest.Server

	hits    atomic.Int64
	failing atomic.Bool
	expiry  atomic.Value
}

func newFakeConfigService(t *testing.T) *fakeConfigService {
	f := &fakeConfigService{}
	f.expiry.Store(time.Now().Add(time.Hour).Format(time.RFC3339))

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		f.hits.Add(1)
		if f.failing.Load() {
			http.Error(w, "storage keys unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"IngestionGatewayInfo": map[string]string{
				"Endpoint":            "https://ingest.example.test",
				"AuthToken":           "ticket-token",
				"AuthTokenExpiryTime": f.expiry.Load().(string),
			},
		})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func newTestConfigService(t *testing.T, endpoint string) *configService {
	cfg := validConfig()
	cfg.Endpoint = endpoint
	svc := newConfigService(cfg, &http.Client{}, zaptest.NewLogger(t))
	t.Cleanup(svc.close)
	return svc
}

func TestIngestionInfoCachesTicket(t *testing.T) {
	fake := newFakeConfigService(t)
	svc := newTestConfigService(t, fake.server.URL)

	first, err := svc.ingestionInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://ingest.example.test", first.Endpoint)
	assert.Equal(t, "ticket-token", first.AuthToken)

	second, err := svc.ingestionInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, int64(1), fake.hits.Load())
}

func TestIngestionInfoRefreshesExpiringTicket(t *testing.T) {
	fake := newFakeConfigService(t)
	fake.expiry.Store(time.Now().Add(time.Minute).Format(time.RFC3339))
	svc := newTestConfigService(t, fake.server.URL)

	_, err := svc.ingestionInfo(context.Background())
	require.NoError(t, err)
	_, err = svc.ingestionInfo(context.Background())
	require.NoError(t, err)

	// A ticket expiring inside the refresh margin is not served from cache.
	assert.Equal(t, int64(2), fake.hits.Load())
}

func TestIngestionInfoFailureClass(t *testing.T) {
	fake := newFakeConfigService(t)
	fake.failing.Store(true)
	svc := newTestConfigService(t, fake.server.URL)

	_, err := svc.ingestionInfo(context.Background())
	require.ErrorIs(t, err, ErrInitializationFailed)

	// Hand out a ticket already inside the refresh margin, so the next call
	// goes back to the config service instead of the cache.
	fake.failing.Store(false)
	fake.expiry.Store(time.Now().Add(time.Minute).Format(time.RFC3339))
	_, err = svc.ingestionInfo(context.Background())
	require.NoError(t, err)

	// Once a ticket has been obtained, later failures are upload failures.
	fake.failing.Store(true)
	_, err = svc.ingestionInfo(context.Background())
	require.ErrorIs(t, err, ErrUploadFailed)
}

func TestFetchRejectsMissingGatewayInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	svc := newTestConfigService(t, server.URL)
	_, err := svc.ingestionInfo(context.Background())
	require.ErrorIs(t, err, ErrInitializationFailed)
	assert.Contains(t, err.Error(), "missing ingestion gateway info")
}

func TestRequestURL(t *testing.T) {
	svc := newTestConfigService(t, "https://gcs.ppe.monitoring.core.windows.net/base")

	rendered, err := svc.requestURL()
	require.NoError(t, err)

	u, err := url.Parse(rendered)
	require.NoError(t, err)
	assert.Equal(t, "/base/api/agent/v3/loadtest/testbed/MonitoringStorageKeys/", u.Path)

	q := u.Query()
	assert.Equal(t, "perftest", q.Get("Namespace"))
	assert.Equal(t, "local", q.Get("Region"))
	assert.Equal(t, "Tenant=test-tenant/Role=testbed-role/RoleInstance=instance-01", q.Get("Identity"))
	assert.Equal(t, "1.0", q.Get("Version"))
}

func TestExpiringSoon(t *testing.T) {
	now := time.Now()
	tests := map[string]struct {
		expiry string
		want   bool
	}{
		"far future":    {expiry: now.Add(time.Hour).Format(time.RFC3339), want: false},
		"inside margin": {expiry: now.Add(time.Minute).Format(time.RFC3339), want: true},
		"already past":  {expiry: now.Add(-time.Minute).Format(time.RFC3339), want: true},
		"unparseable":   {expiry: "sometime tomorrow", want: false},
		"empty":         {expiry: "", want: false},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			info := IngestionGatewayInfo{AuthTokenExpiryTime: test.expiry}
			assert.Equal(t, test.want, info.expiringSoon(now))
		})
	}
}
