// Package planapitest runs an in-process fake of the planning backend and
// blob storage for tests.
package planapitest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/xuri/excelize/v2"
)

const (
	DefaultKey = "uploads/abc123.xlsx"
	BlobPath   = "/blob"
)

type Request struct {
	Method string
	Path   string
	Body   []byte
	// Form is set for multipart blob uploads.
	Form     map[string]string
	FileName string
	FileData []byte
}

// Backend serves /upload/presign, /upload/preview, /optimize, /export/*,
// /health, /no-multi-stop-customers and the blob endpoint. Any route can be
// replaced with Handle.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	requests []Request
	handlers map[string]http.HandlerFunc
}

func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{handlers: map[string]http.HandlerFunc{}}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)

	b.handlers["/upload/presign"] = func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"key": DefaultKey,
			"presigned": map[string]any{
				"url":    b.Server.URL + BlobPath,
				"fields": map[string]string{"key": DefaultKey, "policy": "p0l1cy", "Content-Type": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
			},
		})
	}
	b.handlers[BlobPath] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
	b.handlers["/upload/preview"] = func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, DefaultPreview())
	}
	b.handlers["/optimize"] = func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, DefaultBundle())
	}
	b.handlers["/export/trucks"] = func(w http.ResponseWriter, r *http.Request) {
		WriteWorkbook(w, "Truck Summary")
	}
	b.handlers["/export/dh-load-list"] = func(w http.ResponseWriter, r *http.Request) {
		WriteWorkbook(w, "Late+NearDue", "WithinWindow")
	}
	b.handlers["/health"] = func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "env": "test"})
	}
	b.handlers["/no-multi-stop-customers"] = func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			WriteJSON(w, http.StatusOK, map[string]any{"customers": []string{"gamtex", "sabre"}})
			return
		}
		var in struct {
			Customers []string `json:"customers"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "count": len(in.Customers)})
	}
	return b
}

// URL is the backend base URL to hand to planapi.New.
func (b *Backend) URL() string { return b.Server.URL }

func (b *Backend) Handle(path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[path] = h
}

func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// RequestsTo returns the recorded requests for one path.
func (b *Backend) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range b.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	rec := Request{Method: r.Method, Path: r.URL.Path}
	if r.URL.Path == BlobPath {
		if err := r.ParseMultipartForm(32 << 20); err == nil {
			rec.Form = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				if len(v) > 0 {
					rec.Form[k] = v[0]
				}
			}
			if fhs := r.MultipartForm.File["file"]; len(fhs) > 0 {
				rec.FileName = fhs[0].Filename
				if f, err := fhs[0].Open(); err == nil {
					rec.FileData, _ = io.ReadAll(f)
					_ = f.Close()
				}
			}
		}
	} else {
		rec.Body, _ = io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(rec.Body))
	}

	b.mu.Lock()
	b.requests = append(b.requests, rec)
	h, ok := b.handlers[r.URL.Path]
	b.mu.Unlock()
	if !ok {
		WriteDetail(w, http.StatusNotFound, "Not Found")
		return
	}
	h(w, r)
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDetail writes a FastAPI-style error body.
func WriteDetail(w http.ResponseWriter, code int, detail string) {
	WriteJSON(w, code, map[string]string{"detail": detail})
}

func WriteWorkbook(w http.ResponseWriter, sheets ...string) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	_, _ = w.Write(Workbook(sheets...))
}

// Workbook builds an xlsx with the given sheet names.
func Workbook(sheets ...string) []byte {
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range sheets {
		if i == 0 {
			_ = f.SetSheetName("Sheet1", name)
			continue
		}
		_, _ = f.NewSheet(name)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func DefaultPreview() map[string]any {
	return map[string]any{
		"headers":                []string{"SO", "Line", "Weight"},
		"rowCount":               120,
		"missingRequiredColumns": []string{},
		"sample": []map[string]any{
			{"SO": "1001", "Line": "1", "Weight": 2500.5},
			{"SO": "1001", "Line": "2", "Weight": 1800},
		},
	}
}

func DefaultBundle() map[string]any {
	return map[string]any{
		"trucks": []map[string]any{{
			"truckNumber":      1,
			"customerName":     "Red Dot Corporation",
			"customerCity":     "Houston",
			"customerState":    "TX",
			"totalWeight":      51000.4,
			"minWeight":        47000,
			"maxWeight":        52000,
			"totalOrders":      1,
			"totalLines":       2,
			"totalPieces":      14,
			"maxWidth":         96,
			"percentOverwidth": 50,
			"containsLate":     true,
			"priorityBucket":   "Late",
		}},
		"assignments": []map[string]any{
			{
				"truckNumber": 1, "so": "1001", "line": "1",
				"customerName": "Red Dot Corporation", "customerCity": "Houston", "customerState": "TX",
				"piecesOnTransport": 10, "totalReadyPieces": 10,
				"weightPerPiece": 2500.5, "totalWeight": 25005, "width": 96,
				"isOverwidth": true, "isLate": true, "isPartial": false, "isRemainder": false,
			},
			{
				"truckNumber": 1, "so": "1001", "line": "2",
				"customerName": "Red Dot Corporation", "customerCity": "Houston", "customerState": "TX",
				"piecesOnTransport": 4, "totalReadyPieces": 6,
				"weightPerPiece": 6498.85, "totalWeight": 25995.4, "width": 48,
				"isOverwidth": false, "isLate": false, "isPartial": true, "isRemainder": false,
			},
		},
		"sections": map[string][]int{"Late": {1}, "NearDue": {}, "WithinWindow": {}, "NotDue": {}},
		"metrics":  map[string]any{"rows": 2, "duration_ms": 12},
	}
}
