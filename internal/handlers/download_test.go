package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/linerelay/linerelay/internal/download"
)

type fakeDownloadService struct {
	started []string
	records map[string]download.Record
	err     error
}

func (f *fakeDownloadService) Start(ctx context.Context, url string) (download.Record, error) {
	if f.err != nil {
		return download.Record{}, f.err
	}
	f.started = append(f.started, url)
	rec := download.Record{ID: "d1", URL: url, Status: download.StatusRunning, StartedAt: time.Unix(0, 0)}
	return rec, nil
}

func (f *fakeDownloadService) Get(id string) (download.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return download.Record{}, download.ErrNotFound
	}
	return rec, nil
}

func (f *fakeDownloadService) List() []download.Record {
	out := make([]download.Record, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected echo.HTTPError, got %v", err)
	}
	return he.Code
}

func TestDownloadHandlerCreate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{name: "accepted", body: `{"url":"https://x.com/i/spaces/1"}`, wantStatus: http.StatusAccepted},
		{name: "missing url", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "not a url", body: `{"url":"space one"}`, wantStatus: http.StatusBadRequest},
		{name: "malformed json", body: `{"url":`, wantStatus: http.StatusBadRequest},
		{name: "service stopped", body: `{"url":"https://x.com/i/spaces/1"}`, serviceErr: download.ErrServiceDown, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &fakeDownloadService{err: tt.serviceErr}
			h := newDownloadHandler(nil, svc)
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/downloads", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()

			err := h.Create(e.NewContext(req, rec))
			if tt.wantStatus != http.StatusAccepted {
				if got := httpStatus(t, err); got != tt.wantStatus {
					t.Fatalf("status = %d, want %d", got, tt.wantStatus)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != http.StatusAccepted {
				t.Fatalf("status = %d", rec.Code)
			}
			var got download.Record
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.ID != "d1" || got.Status != download.StatusRunning || len(svc.started) != 1 {
				t.Fatalf("unexpected record: %#v", got)
			}
		})
	}
}

func TestDownloadHandlerGet(t *testing.T) {
	t.Parallel()

	svc := &fakeDownloadService{records: map[string]download.Record{
		"d1": {ID: "d1", URL: "https://x.com/i/spaces/1", Status: download.StatusCompleted},
	}}
	h := newDownloadHandler(nil, svc)
	e := echo.New()

	get := func(id string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodGet, "/downloads/"+id, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues(id)
		return rec, h.Get(c)
	}

	rec, err := get("d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"completed"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	_, err = get("missing")
	if got := httpStatus(t, err); got != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", got)
	}
}

func TestDownloadHandlerList(t *testing.T) {
	t.Parallel()

	svc := &fakeDownloadService{records: map[string]download.Record{
		"d1": {ID: "d1", Status: download.StatusRunning},
	}}
	h := newDownloadHandler(nil, svc)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/downloads", nil)
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []download.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].ID != "d1" {
		t.Fatalf("unexpected items: %#v", items)
	}
}
