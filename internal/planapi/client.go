package planapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"truckplanner/internal/models"
)

const tracerName = "truckplanner/planapi"

// metadataTimeout bounds the health and customer-list calls.
const metadataTimeout = 10 * time.Second

// Timeouts bounds each backend call. Zero means no timeout.
type Timeouts struct {
	Presign  time.Duration
	Preview  time.Duration
	Upload   time.Duration
	Optimize time.Duration
	Export   time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Presign:  10 * time.Second,
		Preview:  15 * time.Second,
		Optimize: 5 * time.Minute,
		Export:   2 * time.Minute,
	}
}

// Client talks to the planning backend and to blob storage. It is built
// explicitly and handed to whatever drives the workflow.
type Client struct {
	baseURL  string
	http     *http.Client
	timeouts Timeouts
	tracer   trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeouts(t Timeouts) Option {
	return func(c *Client) { c.timeouts = t }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", baseURL)
	}
	c := &Client{
		baseURL:  baseURL,
		http:     &http.Client{},
		timeouts: DefaultTimeouts(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Presign(ctx context.Context, req PresignRequest) (PresignResponse, error) {
	if req.ContentType == "" {
		req.ContentType = models.XLSXContentType
	}
	body, err := c.postJSON(ctx, "presign", "/upload/presign", c.timeouts.Presign, req)
	if err != nil {
		return PresignResponse{}, &PresignError{Err: err}
	}
	var out PresignResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return PresignResponse{}, &PresignError{Err: &DecodeError{Op: "presign", Err: err}}
	}
	if err := validatePresign(out); err != nil {
		return PresignResponse{}, &PresignError{Err: err}
	}
	return out, nil
}

func validatePresign(p PresignResponse) error {
	v := &models.ValidationError{Subject: "presign response"}
	if strings.TrimSpace(p.Key) == "" {
		v.Problems = append(v.Problems, "key missing")
	}
	if u, err := url.Parse(p.Presigned.URL); err != nil || u.Scheme == "" || u.Host == "" {
		v.Problems = append(v.Problems, fmt.Sprintf("presigned url %q is not absolute", p.Presigned.URL))
	}
	if len(v.Problems) > 0 {
		return v
	}
	return nil
}

func (c *Client) Preview(ctx context.Context, req PreviewRequest) (models.PreviewResult, error) {
	if req.MaxSampleRows <= 0 {
		req.MaxSampleRows = models.DefaultSampleRows
	}
	body, err := c.postJSON(ctx, "preview", "/upload/preview", c.timeouts.Preview, req)
	if err != nil {
		return models.PreviewResult{}, &PreviewError{Err: err}
	}
	var out models.PreviewResult
	if err := json.Unmarshal(body, &out); err != nil {
		return models.PreviewResult{}, &PreviewError{Err: &DecodeError{Op: "preview", Err: err}}
	}
	if err := out.Validate(); err != nil {
		return models.PreviewResult{}, &PreviewError{Err: err}
	}
	out.StorageKey = req.S3Key
	return out, nil
}

func (c *Client) Optimize(ctx context.Context, req OptimizeRequest) (models.ResultBundle, error) {
	body, err := c.postJSON(ctx, "optimize", "/optimize", c.timeouts.Optimize, req)
	if err != nil {
		return models.ResultBundle{}, &OptimizeError{Err: err}
	}
	var out models.ResultBundle
	if err := json.Unmarshal(body, &out); err != nil {
		return models.ResultBundle{}, &OptimizeError{Err: &DecodeError{Op: "optimize", Err: err}}
	}
	if err := out.Validate(); err != nil {
		return models.ResultBundle{}, &OptimizeError{Err: err}
	}
	return out, nil
}

func (c *Client) Export(ctx context.Context, kind models.ExportKind, req ExportRequest) (Artifact, error) {
	body, err := c.postJSON(ctx, "export", kind.Path(), c.timeouts.Export, req)
	if err != nil {
		return Artifact{}, &ExportError{Kind: kind, Err: err}
	}
	sheets, err := inspectWorkbook(body)
	if err != nil {
		return Artifact{}, &ExportError{Kind: kind, Err: err}
	}
	return Artifact{Kind: kind, Data: body, Sheets: sheets}, nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	body, err := c.do(ctx, "health", http.MethodGet, "/health", metadataTimeout, nil)
	if err != nil {
		return Health{}, err
	}
	var out Health
	if err := json.Unmarshal(body, &out); err != nil {
		return Health{}, &DecodeError{Op: "health", Err: err}
	}
	return out, nil
}

func (c *Client) NoMultiStopCustomers(ctx context.Context) ([]string, error) {
	body, err := c.do(ctx, "customers.list", http.MethodGet, "/no-multi-stop-customers", metadataTimeout, nil)
	if err != nil {
		return nil, err
	}
	var out customersResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &DecodeError{Op: "customers", Err: err}
	}
	return out.Customers, nil
}

func (c *Client) SetNoMultiStopCustomers(ctx context.Context, customers []string) (int, error) {
	body, err := c.postJSON(ctx, "customers.update", "/no-multi-stop-customers", metadataTimeout, customersUpdate{Customers: customers})
	if err != nil {
		return 0, err
	}
	var out customersUpdateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, &DecodeError{Op: "customers", Err: err}
	}
	if !out.OK {
		return 0, fmt.Errorf("customer list update not acknowledged")
	}
	return out.Count, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, timeout time.Duration, in any) ([]byte, error) {
	return c.do(ctx, op, http.MethodPost, path, timeout, in)
}

func (c *Client) do(ctx context.Context, op, method, path string, timeout time.Duration, in any) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "planapi."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, recordSpanError(span, fmt.Errorf("%s request: %w", op, err))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if err != nil {
		return nil, recordSpanError(span, fmt.Errorf("read %s response: %w", op, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, recordSpanError(span, &APIError{
			Status: resp.StatusCode,
			Detail: parseDetail(body),
			Body:   strings.TrimSpace(string(body)),
		})
	}
	span.SetStatus(codes.Ok, "")
	return body, nil
}

func recordSpanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.type", string(Classify(err))))
	return err
}
