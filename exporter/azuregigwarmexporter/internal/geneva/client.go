package geneva

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// requestTimeout bounds a single config service or ingestion request.
const requestTimeout = 30 * time.Second

// payloadFormat names the wire encoding of upload bodies.
const payloadFormat = "otlp-protobuf-lz4"

// Client uploads OTLP payloads to the Geneva Warm path. It exchanges the
// account configuration for an ingestion gateway ticket, splits payloads
// into per-resource batches and posts them to the gateway.
type Client struct {
	cfg          Config
	logger       *zap.Logger
	uploadClient *http.Client
	configSvc    *configService

	closed atomic.Bool
}

// NewClient validates cfg, prepares the credential material and returns a
// ready client. No network traffic happens until the first upload.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	creds, err := newCredentials(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInitializationFailed, err.Error())
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if creds.certificate != nil {
		transport.TLSClientConfig = &tls.Config{
			Certificates: []tls.Certificate{*creds.certificate},
			MinVersion:   tls.VersionTLS12,
		}
	}

	// The config service authenticates with Entra credentials, uploads with
	// the ticket token, so the two use separate clients over one transport.
	configTransport := http.RoundTripper(transport)
	if creds.token != nil {
		configTransport = &bearerRoundTripper{
			baseTransport: transport,
			credential:    creds.token,
			scope:         creds.scope,
		}
	}

	return &Client{
		cfg:          cfg,
		logger:       logger,
		uploadClient: &http.Client{Transport: transport, Timeout: requestTimeout},
		configSvc: newConfigService(cfg, &http.Client{
			Transport: configTransport,
			Timeout:   requestTimeout,
		}, logger),
	}, nil
}

// EncodeAndCompressLogs turns OTLP logs request bytes into compressed
// upload batches, one per resource.
func (c *Client) EncodeAndCompressLogs(data []byte) (*EncodedBatches, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return encodeLogs(data)
}

// EncodeAndCompressSpans turns OTLP traces request bytes into compressed
// upload batches, one per resource.
func (c *Client) EncodeAndCompressSpans(data []byte) (*EncodedBatches, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return encodeSpans(data)
}

// UploadBatch posts the batch at idx to the ingestion gateway.
func (c *Client) UploadBatch(ctx context.Context, batches *EncodedBatches, idx int) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if batches == nil {
		return fmt.Errorf("%w: nil batches", ErrInvalidData)
	}
	batch, err := batches.at(idx)
	if err != nil {
		return err
	}

	info, err := c.configSvc.ingestionInfo(ctx)
	if err != nil {
		return err
	}

	u, err := uploadURL(info.Endpoint, c.cfg.Namespace, batch)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(batch.Data))
	if err != nil {
		return fmt.Errorf("%w: building upload request: %s", ErrUploadFailed, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+info.AuthToken)
	req.Header.Set("Content-Type", "application/x-lz4")
	req.Header.Set("x-request-id", uuid.NewString())

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUploadFailed, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		return fmt.Errorf("%w: gateway returned status %d: %s", ErrUploadFailed, resp.StatusCode, firstLine(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("Uploaded batch to Geneva Warm",
		zap.String("event", batch.Event),
		zap.Int("records", batch.Records),
		zap.Int("bytes", len(batch.Data)),
	)
	return nil
}

// UploadLogs encodes OTLP logs request bytes and uploads every batch
// sequentially.
func (c *Client) UploadLogs(ctx context.Context, data []byte) error {
	batches, err := c.EncodeAndCompressLogs(data)
	if err != nil {
		return err
	}
	defer batches.Close()

	for i := 0; i < batches.Len(); i++ {
		if err := c.UploadBatch(ctx, batches, i); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the client's connections. The client cannot be used
// afterwards; closing twice is fine.
func (c *Client) Close() {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.uploadClient.CloseIdleConnections()
	c.configSvc.close()
}

// uploadURL renders the ingestion request for one batch.
func uploadURL(endpoint, namespace string, batch Batch) (string, error) {
	base, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: invalid ingestion endpoint: %s", ErrUploadFailed, err.Error())
	}
	base.Path = path.Join(base.Path, "api/v1/ingestion/ingest")

	q := base.Query()
	q.Set("event", batch.Event)
	q.Set("namespace", namespace)
	q.Set("format", payloadFormat)
	base.RawQuery = q.Encode()

	return base.String(), nil
}
