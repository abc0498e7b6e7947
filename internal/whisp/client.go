package whisp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/terratrac/eudr-backend/internal/geojson"
	"github.com/terratrac/eudr-backend/internal/logging"
	"github.com/terratrac/eudr-backend/internal/metrics"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public WHISP deployment.
	DefaultBaseURL = "https://whisp.openforis.org"

	// SubmitPath accepts a GeoJSON FeatureCollection and returns one indicator
	// object per feature, in order.
	SubmitPath = "/api/submit/geojson"

	DefaultChunkSize = 500
	DefaultTimeout   = 20 * time.Minute
)

var (
	ErrNoFeatures       = errors.New("no features found in the data")
	ErrValidationFailed = errors.New("validation against global database failed")
	ErrMisaligned       = errors.New("analysis result count does not match submitted features")
)

// SettingsProvider supplies the runtime chunk size. Zero means unset.
type SettingsProvider interface {
	ChunkSize(ctx context.Context) (int, error)
}

// Indicators is the analysis for one feature, keyed by WHISP indicator name.
type Indicators map[string]json.RawMessage

type submitRequest struct {
	Type     string            `json:"type"`
	Features []geojson.Feature `json:"features"`
}

type submitResponse struct {
	Data struct {
		Features []Indicators `json:"features"`
	} `json:"data"`
}

// Client submits feature collections to WHISP in ordered chunks.
type Client struct {
	http     *resty.Client
	settings SettingsProvider
	logger   *zap.Logger
}

// NewClient creates a WHISP client. timeout applies to each chunk request;
// settings may be nil.
func NewClient(baseURL, apiKey string, timeout time.Duration, settings SettingsProvider, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("X-API-KEY", apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient, settings: settings, logger: logger}
}

// Analyze submits fc chunk by chunk and returns the indicators for every
// feature, index-aligned with fc.Features. Chunks are sent one after another;
// the first failing chunk aborts the rest and yields ErrValidationFailed.
func (c *Client) Analyze(ctx context.Context, fc geojson.FeatureCollection) ([]Indicators, error) {
	n := len(fc.Features)
	if n == 0 {
		return nil, ErrNoFeatures
	}

	size := c.chunkSize(ctx)
	out := make([]Indicators, 0, n)
	for start, chunk := 0, 1; start < n; start, chunk = start+size, chunk+1 {
		end := min(start+size, n)
		res, err := c.submit(ctx, chunk, fc.Features[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

// chunkSize is read once per Analyze call.
func (c *Client) chunkSize(ctx context.Context) int {
	if c.settings == nil {
		return DefaultChunkSize
	}
	n, err := c.settings.ChunkSize(ctx)
	if err != nil {
		logging.LogError(c.logger, "whisp", "read chunk size", err)
		return DefaultChunkSize
	}
	if n <= 0 {
		return DefaultChunkSize
	}
	return n
}

func (c *Client) submit(ctx context.Context, chunk int, features []geojson.Feature) ([]Indicators, error) {
	start := time.Now()
	logging.LogRequest(c.logger, "whisp", http.MethodPost, SubmitPath,
		zap.Int("chunk", chunk), zap.Int("features", len(features)))

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(submitRequest{Type: geojson.TypeFeatureCollection, Features: features}).
		Post(SubmitPath)
	metrics.WhispChunkDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.WhispChunksTotal.WithLabelValues("transport_error").Inc()
		logging.LogError(c.logger, "whisp", "submit", err)
		return nil, fmt.Errorf("%w: chunk %d: %v", ErrValidationFailed, chunk, err)
	}

	if resp.StatusCode() != http.StatusOK {
		metrics.WhispChunksTotal.WithLabelValues("status_error").Inc()
		c.logger.Warn("whisp rejected chunk",
			zap.Int("chunk", chunk),
			zap.Int("status", resp.StatusCode()),
			zap.ByteString("body", truncate(resp.Body(), 512)),
		)
		return nil, fmt.Errorf("%w: chunk %d: status %d", ErrValidationFailed, chunk, resp.StatusCode())
	}

	var body submitResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		metrics.WhispChunksTotal.WithLabelValues("decode_error").Inc()
		return nil, fmt.Errorf("%w: chunk %d: decode response: %v", ErrValidationFailed, chunk, err)
	}
	if len(body.Data.Features) != len(features) {
		metrics.WhispChunksTotal.WithLabelValues("misaligned").Inc()
		return nil, fmt.Errorf("%w: chunk %d: got %d, sent %d", ErrMisaligned, chunk, len(body.Data.Features), len(features))
	}

	metrics.WhispChunksTotal.WithLabelValues("ok").Inc()
	logging.LogResponse(c.logger, "whisp", resp.StatusCode(), time.Since(start), len(body.Data.Features))
	return body.Data.Features, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
