package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "courier-service/common/errors"
	awspkg "courier-service/pkg/aws"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 15 * time.Second

	// outbound request budget per courier
	defaultRPS   = 10
	defaultBurst = 20

	maxBodyBytes = 4 << 20
)

// MetricsRecorder receives provider call metrics. *aws.MetricsClient
// satisfies it.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error
}

// Client is the HTTP transport shared by every courier adapter. It throttles
// each courier independently and classifies every failure.
type Client struct {
	http    *http.Client
	mu      sync.Mutex
	limits  map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
	metrics MetricsRecorder
	log     *zap.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.rps = rate.Limit(rps)
		c.burst = burst
	}
}

func WithMetrics(m MetricsRecorder) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func NewClient(log *zap.Logger, opts ...ClientOption) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		http:   &http.Client{Timeout: DefaultTimeout},
		limits: make(map[string]*rate.Limiter),
		rps:    defaultRPS,
		burst:  defaultBurst,
		log:    log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) limiter(courier string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limits[courier]
	if !ok {
		l = rate.NewLimiter(c.rps, c.burst)
		c.limits[courier] = l
	}
	return l
}

// call is one outbound request.
type call struct {
	courier string
	op      string
	method  string
	url     string
	header  map[string]string
	body    io.Reader
	ctype   string
}

// do sends the call and returns the raw 2xx body. Non-2xx statuses and
// transport failures come back as classified *apperrors.Error values.
func (c *Client) do(ctx context.Context, cl call) ([]byte, error) {
	if err := c.limiter(cl.courier).Wait(ctx); err != nil {
		return nil, apperrors.Provider(apperrors.KindProviderUnavailable, cl.courier, "outbound rate limit", err)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, cl.url, cl.body)
	if err != nil {
		return nil, apperrors.Provider(apperrors.KindInternal, cl.courier, "create request", err)
	}
	if cl.ctype != "" {
		req.Header.Set("Content-Type", cl.ctype)
	}
	for k, v := range cl.header {
		req.Header.Set(k, v)
	}

	dims := awspkg.CourierDimensions(cl.courier, cl.op)
	start := time.Now()
	resp, err := c.http.Do(req)
	c.record(ctx, awspkg.MetricCourierRequests, dims)
	if c.metrics != nil {
		_ = c.metrics.RecordLatency(ctx, awspkg.MetricCourierLatency, time.Since(start), dims)
	}
	if err != nil {
		c.record(ctx, awspkg.MetricCourierErrors, dims)
		c.log.Warn("courier request failed",
			zap.String("courier", cl.courier), zap.String("op", cl.op), zap.Error(err))
		return nil, apperrors.Normalize(cl.courier, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.record(ctx, awspkg.MetricCourierErrors, dims)
		return nil, apperrors.Normalize(cl.courier, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.record(ctx, awspkg.MetricCourierErrors, dims)
		c.log.Warn("courier returned error status",
			zap.String("courier", cl.courier), zap.String("op", cl.op), zap.Int("status", resp.StatusCode))
		return nil, apperrors.FromHTTPStatus(cl.courier, resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *Client) record(ctx context.Context, metric string, dims map[string]string) {
	if c.metrics == nil {
		return
	}
	if err := c.metrics.RecordCount(ctx, metric, dims); err != nil {
		c.log.Debug("metric publish failed", zap.String("metric", metric), zap.Error(err))
	}
}

// doJSON sends in as a JSON body (nil for none) and decodes a JSON response into out.
func (c *Client) doJSON(ctx context.Context, courier, op, method, endpoint string, header map[string]string, in, out any) error {
	var body io.Reader
	ctype := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return apperrors.Provider(apperrors.KindInternal, courier, "marshal request", err)
		}
		body = bytes.NewReader(b)
		ctype = "application/json"
	}
	raw, err := c.do(ctx, call{courier: courier, op: op, method: method, url: endpoint, header: withAccept(header, "application/json"), body: body, ctype: ctype})
	if err != nil {
		return err
	}
	return decodeJSON(courier, raw, out)
}

// doForm posts form values and decodes the response with decode.
func (c *Client) doForm(ctx context.Context, courier, op, endpoint string, header map[string]string, form url.Values, out any, decode func(string, []byte, any) error) error {
	raw, err := c.do(ctx, call{
		courier: courier, op: op, method: http.MethodPost, url: endpoint, header: header,
		body: strings.NewReader(form.Encode()), ctype: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return err
	}
	return decode(courier, raw, out)
}

// doXML issues a GET and decodes an XML response into out.
func (c *Client) doXML(ctx context.Context, courier, op, endpoint string, header map[string]string, out any) error {
	raw, err := c.do(ctx, call{courier: courier, op: op, method: http.MethodGet, url: endpoint, header: withAccept(header, "application/xml")})
	if err != nil {
		return err
	}
	return decodeXML(courier, raw, out)
}

func withAccept(h map[string]string, accept string) map[string]string {
	out := make(map[string]string, len(h)+1)
	out["Accept"] = accept
	for k, v := range h {
		out[k] = v
	}
	return out
}

func decodeJSON(courier string, raw []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.Provider(apperrors.KindInternal, courier, "decode response", err)
	}
	return nil
}

func decodeXML(courier string, raw []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := xml.Unmarshal(raw, out); err != nil {
		return apperrors.Provider(apperrors.KindInternal, courier, "decode xml response", err)
	}
	return nil
}

// retryOnce runs fn again after a transient failure. Only idempotent reads
// go through here; bookings never do.
func retryOnce(ctx context.Context, log *zap.Logger, courier string, fn func() error) error {
	err := fn()
	if err == nil || !apperrors.Is(err, apperrors.KindProviderUnavailable) || ctx.Err() != nil {
		return err
	}
	log.Info("retrying courier read after transient failure", zap.String("courier", courier), zap.Error(err))
	return fn()
}

// baseURL prefers a "base_url" credential so sandboxes and tests can point an
// adapter elsewhere.
func baseURL(cfgURL, fallback string) string {
	if cfgURL != "" {
		return strings.TrimRight(cfgURL, "/")
	}
	return fallback
}

func requireCredential(courier string, values map[string]string, keys ...string) error {
	for _, k := range keys {
		if values[k] == "" {
			return apperrors.Configuration(courier, "%s credential %q is missing", courier, k)
		}
	}
	return nil
}

func rejected(courier, format string, args ...any) error {
	return apperrors.Provider(apperrors.KindProviderRejected, courier, fmt.Sprintf(format, args...), nil)
}
