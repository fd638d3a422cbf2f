package geneva

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const (
	// ingestionCacheSize bounds the ticket cache. One entry per agent
	// identity; a single client uses exactly one.
	ingestionCacheSize = 8
	// ingestionCacheTTL is the upper bound on how long a ticket is reused
	// when the config service does not state an expiry.
	ingestionCacheTTL = 30 * time.Minute
	// ticketExpiryMargin is how long before the stated expiry a ticket is
	// refreshed instead of reused.
	ticketExpiryMargin = 5 * time.Minute

	// maxResponseSize caps how much of a config service response is read.
	maxResponseSize = 1 << 20
)

// IngestionGatewayInfo locates the ingestion gateway and authorizes uploads
// to it.
type IngestionGatewayInfo struct {
	Endpoint            string `json:"Endpoint"`
	AuthToken           string `json:"AuthToken"`
	AuthTokenExpiryTime string `json:"AuthTokenExpiryTime"`
}

// expiringSoon reports whether the ticket should be refreshed rather than
// reused at t. Tickets without a parseable expiry age out of the cache by
// TTL instead.
func (g IngestionGatewayInfo) expiringSoon(t time.Time) bool {
	exp, err := time.Parse(time.RFC3339, g.AuthTokenExpiryTime)
	if err != nil {
		return false
	}
	return !t.Before(exp.Add(-ticketExpiryMargin))
}

// configService exchanges the account configuration for ingestion gateway
// tickets and caches them until shortly before expiry.
type configService struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	cache *expirable.LRU[string, IngestionGatewayInfo]

	// primed flips once a ticket has been obtained; later failures are
	// upload failures rather than initialization failures.
	primed atomic.Bool
}

func newConfigService(cfg Config, httpClient *http.Client, logger *zap.Logger) *configService {
	return &configService{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		cache:      expirable.NewLRU[string, IngestionGatewayInfo](ingestionCacheSize, nil, ingestionCacheTTL),
	}
}

// ingestionInfo returns a valid ticket, fetching a fresh one when the cached
// ticket is missing or about to expire.
func (s *configService) ingestionInfo(ctx context.Context) (IngestionGatewayInfo, error) {
	key := s.cfg.identity()
	if info, ok := s.cache.Get(key); ok && !info.expiringSoon(time.Now()) {
		return info, nil
	}

	info, err := s.fetch(ctx)
	if err != nil {
		return IngestionGatewayInfo{}, err
	}

	s.primed.Store(true)
	s.cache.Add(key, info)
	s.logger.Debug("Refreshed Geneva ingestion gateway ticket",
		zap.String("endpoint", info.Endpoint),
		zap.String("expiry", info.AuthTokenExpiryTime),
	)
	return info, nil
}

// fetch performs the MonitoringStorageKeys exchange against the config
// service.
func (s *configService) fetch(ctx context.Context) (IngestionGatewayInfo, error) {
	u, err := s.requestURL()
	if err != nil {
		return IngestionGatewayInfo{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return IngestionGatewayInfo{}, fmt.Errorf("%w: building config service request: %s", s.failureClass(), err.Error())
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return IngestionGatewayInfo{}, fmt.Errorf("%w: requesting ingestion info: %s", s.failureClass(), err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return IngestionGatewayInfo{}, fmt.Errorf("%w: reading config service response: %s", s.failureClass(), err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return IngestionGatewayInfo{}, fmt.Errorf("%w: config service returned status %d: %s", s.failureClass(), resp.StatusCode, firstLine(body))
	}

	var envelope struct {
		IngestionGatewayInfo IngestionGatewayInfo `json:"IngestionGatewayInfo"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return IngestionGatewayInfo{}, fmt.Errorf("%w: decoding config service response: %s", s.failureClass(), err.Error())
	}
	info := envelope.IngestionGatewayInfo
	if info.Endpoint == "" || info.AuthToken == "" {
		return IngestionGatewayInfo{}, fmt.Errorf("%w: config service response missing ingestion gateway info", s.failureClass())
	}
	return info, nil
}

// requestURL renders the MonitoringStorageKeys request for the configured
// account.
func (s *configService) requestURL() (string, error) {
	base, err := url.Parse(s.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	base.Path = path.Join(base.Path, "api/agent/v3", s.cfg.Environment, s.cfg.Account, "MonitoringStorageKeys") + "/"

	q := base.Query()
	q.Set("Namespace", s.cfg.Namespace)
	q.Set("Region", s.cfg.Region)
	q.Set("Identity", s.cfg.identity())
	q.Set("Version", fmt.Sprintf("%d.0", s.cfg.ConfigMajorVersion))
	base.RawQuery = q.Encode()

	return base.String(), nil
}

// failureClass picks the error fetch failures wrap: initialization until the
// first ticket has been obtained, upload afterwards.
func (s *configService) failureClass() error {
	if s.primed.Load() {
		return ErrUploadFailed
	}
	return ErrInitializationFailed
}

func (s *configService) close() {
	s.cache.Purge()
	s.httpClient.CloseIdleConnections()
}

// firstLine trims a response body down to something loggable.
func firstLine(body []byte) string {
	const maxDetail = 256
	for i, b := range body {
		if b == '\n' || i == maxDetail {
			return string(body[:i])
		}
	}
	return string(body)
}
