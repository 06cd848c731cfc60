package planapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"truckplanner/internal/models"
)

// UploadToBlob posts the file straight to the presigned storage endpoint.
// The planning backend never sees the bytes.
func (c *Client) UploadToBlob(ctx context.Context, target models.UploadTarget, fileName, contentType string, r io.Reader) error {
	ctx, span := c.tracer.Start(ctx, "planapi.upload", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	if c.timeouts.Upload > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeouts.Upload)
		defer cancel()
	}
	if contentType == "" {
		contentType = models.XLSXContentType
	}

	body, formType, err := buildUploadForm(target.Fields, fileName, contentType, r)
	if err != nil {
		return recordSpanError(span, &UploadError{Err: err})
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, body)
	if err != nil {
		return recordSpanError(span, &UploadError{Err: err})
	}
	httpReq.Header.Set("Content-Type", formType)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return recordSpanError(span, &UploadError{Err: err})
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(resp.Body)
		return recordSpanError(span, &UploadError{Status: resp.StatusCode, Body: strings.TrimSpace(string(text))})
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	span.SetStatus(codes.Ok, "")
	return nil
}

// buildUploadForm writes presigned fields in key order, then Content-Type
// if the presign did not pin it, then the file part last.
func buildUploadForm(fields map[string]string, fileName, contentType string, r io.Reader) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	hasContentType := false
	for k := range fields {
		keys = append(keys, k)
		if strings.EqualFold(k, "Content-Type") {
			hasContentType = true
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if !hasContentType {
		if err := mw.WriteField("Content-Type", contentType); err != nil {
			return nil, "", fmt.Errorf("write content type: %w", err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", fmt.Errorf("copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
