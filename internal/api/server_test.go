package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/collection-ingest/internal/auth"
	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/config"
	"github.com/JakeFAU/collection-ingest/internal/export"
	"github.com/JakeFAU/collection-ingest/internal/ingest"
	"github.com/JakeFAU/collection-ingest/internal/metrics"
	"github.com/JakeFAU/collection-ingest/internal/store"
)

func TestServerHealthAndReady(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServerReadyzReportsDependencyFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(_ *config.Config, d *Deps) {
		d.Ready = func(context.Context) error { return errors.New("db down") }
	})
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServerMetricsEndpoint(t *testing.T) {
	t.Parallel()

	metrics.Init()
	f := newFixture(t)
	f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServerOwnerGuard(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *config.Config, _ *Deps) {
		c.Auth = config.AuthConfig{Enabled: true, APIKey: "secret", OwnerEmail: "owner@example.com"}
	})

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/scraper/get-mapping/7", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/scraper/get-mapping/7", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = f.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Downloads are reachable without the key; the token itself is the secret.
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/scraper/download-remaining-csv/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadRemainingIsSingleUse(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	token, err := f.exports.Put("\ufeffURL\nhttps://example.com/a\n")
	require.NoError(t, err)

	path := "/api/scraper/download-remaining-csv/" + token
	rec := f.do(t, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="remaining_urls.csv"`, rec.Header().Get("Content-Disposition"))
	require.Equal(t, "\ufeffURL\nhttps://example.com/a\n", rec.Body.String())

	rec = f.do(t, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", catalog.ErrNotFound), http.StatusNotFound},
		{export.ErrNotFound, http.StatusNotFound},
		{store.ErrNotFound, http.StatusNotFound},
		{auth.ErrForbidden, http.StatusForbidden},
		{ingest.NotCSVError(), http.StatusBadRequest},
		{fmt.Errorf("%w: bad", errInvalidRequest), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestClientMessageUsesInputReason(t *testing.T) {
	t.Parallel()

	require.Equal(t, "CSV 파일만 업로드 가능합니다.", clientMessage(ingest.NotCSVError()))
	require.Equal(t, "boom", clientMessage(errors.New("boom")))
}

func TestDecodeJSONRejectsTrailingData(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"url":"https://a.example","collection_id":1} {}`))
	var dst scrapeURLRequest
	err := decodeJSON(httptest.NewRecorder(), req, &dst)
	require.ErrorIs(t, err, errInvalidRequest)
}
