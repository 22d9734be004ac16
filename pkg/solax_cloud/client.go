package solax_cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	maxResponseBytes = 1 << 20
)

// Client talks to the SolaX Cloud realtime endpoint. It holds no per-device
// state and is safe for concurrent use.
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
	instrument []FetcherInstrument
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		endpoint: DEFAULT_ENDPOINT,
		timeout:  DEFAULT_TIMEOUT,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// never mutate a caller provided client
	var hc http.Client
	if c.httpClient != nil {
		hc = *c.httpClient
	}
	hc.Timeout = c.timeout
	c.httpClient = &hc

	c.instrument = append([]FetcherInstrument{debugLoggerInstrumentation(c.logger)}, c.instrument...)
	return c
}

func debugLoggerInstrumentation(logger *zap.Logger) FetcherInstrument {
	return FetcherInstrument{
		RecordTime: func(serialNumber string, fetchTime time.Duration, err error) {
			logger.Debug("solax_cloud@fetch timing",
				zap.String("sn", serialNumber),
				zap.Int64("millis", fetchTime.Milliseconds()),
				zap.Bool("ok", err == nil))
		},
	}
}

func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithTimeout bounds every request. A timeout is reported as a TransportError.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient uses a copy of hc as transport. Its Timeout is replaced
// by the client timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.With(zap.String("target", "solax_cloud"))
	}
}

func WithInstrument(instrument FetcherInstrument) ClientOption {
	return func(c *Client) {
		c.instrument = append(c.instrument, instrument)
	}
}

func (c *Client) Fetch(ctx context.Context, creds Credentials) (snapshot Snapshot, err error) {
	defer recordTimer(creds.SerialNumber, c.instrument, &err)()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(creds), nil)
	if err != nil {
		return Snapshot{}, &TransportError{Message: "could not build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, requestError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Snapshot{}, &TransportError{Message: fmt.Sprintf("unexpected http status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Snapshot{}, &TransportError{Message: "could not read response body", Err: err}
	}
	c.logger.Debug("solax_cloud@fetch response", zap.String("sn", creds.SerialNumber), zap.Int("bytes", len(body)))

	return ParseRealtimeResponse(body)
}

func (c *Client) requestURL(creds Credentials) string {
	q := url.Values{}
	q.Set("tokenId", creds.APIKey)
	q.Set("sn", creds.SerialNumber)
	sep := "?"
	if strings.Contains(c.endpoint, "?") {
		sep = "&"
	}
	return c.endpoint + sep + q.Encode()
}

// ParseRealtimeResponse decodes a getRealtimeInfo.do body. Numeric result
// fields become snapshot values and string fields become attributes; any
// other field type is dropped.
func ParseRealtimeResponse(body []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var env realtimeEnvelope
	if err := dec.Decode(&env); err != nil {
		return Snapshot{}, &TransportError{Message: "malformed response body", Err: err}
	}
	if !env.Success {
		return Snapshot{}, &UpstreamError{Message: exceptionMessage(env.Exception)}
	}

	values := make(map[string]float64, len(env.Result))
	attributes := make(map[string]string)
	for key, raw := range env.Result {
		switch v := raw.(type) {
		case json.Number:
			if f, err := v.Float64(); err == nil {
				values[key] = f
			}
		case string:
			attributes[key] = v
		}
	}
	return NewSnapshot(values, attributes), nil
}

func exceptionMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "no exception reported"
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return msg
	}
	return string(raw)
}

// requestError strips the request URL from client errors, it carries the
// API token in its query string.
func requestError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		msg := fmt.Sprintf("%s request failed", urlErr.Op)
		if urlErr.Timeout() {
			msg = fmt.Sprintf("%s request timed out", urlErr.Op)
		}
		return &TransportError{Message: msg, Err: urlErr.Err}
	}
	return &TransportError{Message: "request failed", Err: err}
}

func recordTimer(serialNumber string, instrument []FetcherInstrument, err *error) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(serialNumber, duration, *err)
		}
	}
}

// ensure interface compliance
var _ Fetcher = (*Client)(nil)
