package cloudflare

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/cloudflare/cloudflare-go"
	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu      sync.Mutex
	zones   [][]map[string]any            // pages of zones
	records map[string][][]map[string]any // zone id -> pages of records
	patches []map[string]any
	token   string

	zoneQueries []zoneQuery
}

type zoneQuery struct {
	Page    int
	PerPage string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /zones", func(w http.ResponseWriter, r *http.Request) {
		page := pageOf(r)
		f.mu.Lock()
		f.zoneQueries = append(f.zoneQueries, zoneQuery{Page: page, PerPage: r.URL.Query().Get("per_page")})
		f.mu.Unlock()
		writePage(w, f.zones, page)
	})
	mux.HandleFunc("GET /zones/{id}/dns_records", func(w http.ResponseWriter, r *http.Request) {
		pages, ok := f.records[r.PathValue("id")]
		if !ok {
			writeFailure(w, http.StatusNotFound, 7003, "Could not route to zone")
			return
		}
		writePage(w, pages, pageOf(r))
	})
	mux.HandleFunc("PATCH /zones/{id}/dns_records/{rid}", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var patch map[string]any
		require.NoError(t, json.Unmarshal(body, &patch))
		patch["zone"] = r.PathValue("id")
		patch["record"] = r.PathValue("rid")

		f.mu.Lock()
		f.patches = append(f.patches, patch)
		f.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"errors":   []any{},
			"messages": []any{},
			"result":   map[string]any{"id": r.PathValue("rid"), "content": patch["content"]},
		})
	})
	mux.HandleFunc("GET /user/tokens/verify", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			writeFailure(w, http.StatusBadRequest, 1000, "Invalid API Token")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"errors":   []any{},
			"messages": []any{map[string]any{"code": 10000, "message": "This API Token is valid and active"}},
			"result":   map[string]any{"id": "tok", "status": "active"},
		})
	})
	return mux
}

func pageOf(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func writePage(w http.ResponseWriter, pages [][]map[string]any, page int) {
	var result []map[string]any
	if page <= len(pages) {
		result = pages[page-1]
	}
	if result == nil {
		result = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"errors":   []any{},
		"messages": []any{},
		"result":   result,
		"result_info": map[string]any{
			"page":        page,
			"per_page":    perPage,
			"count":       len(result),
			"total_pages": len(pages),
		},
	})
}

func writeFailure(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, map[string]any{
		"success":  false,
		"errors":   []any{map[string]any{"code": code, "message": message}},
		"messages": []any{},
		"result":   nil,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func zone(id, name, status string, perms ...string) map[string]any {
	return map[string]any{"id": id, "name": name, "status": status, "permissions": perms}
}

func record(id, name, typ, content string, locked bool) map[string]any {
	return map[string]any{"id": id, "name": name, "type": typ, "content": content, "locked": locked}
}

func newTestProvider(t *testing.T, f *fakeAPI) *CloudflareProvider {
	t.Helper()
	return newTestProviderWithMetrics(t, f, metrics.New(false))
}

func newTestProviderWithMetrics(t *testing.T, f *fakeAPI, m *metrics.Metrics) *CloudflareProvider {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return New(m, cloudflare.BaseURL(srv.URL), cloudflare.UsingRateLimit(1000))
}

func TestZonesFetchesEveryPageAndFilters(t *testing.T) {
	f := &fakeAPI{
		zones: [][]map[string]any{
			{
				zone("z1", "example.com", "active", "#zone:read", "#zone:edit"),
				zone("z2", "pending.com", "pending", "#zone:edit"),
			},
			{
				zone("z3", "readonly.com", "active", "#zone:read"),
				zone("z4", "example.org", "active", "#zone:edit"),
			},
		},
	}
	p := newTestProvider(t, f)

	zones, err := p.Zones(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, []provider.Zone{
		{ID: "z1", Name: "example.com"},
		{ID: "z4", Name: "example.org"},
	}, zones)

	// pages are requested by the SDK at its own page size
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.ElementsMatch(t, []zoneQuery{
		{Page: 1, PerPage: "50"},
		{Page: 2, PerPage: "50"},
	}, f.zoneQueries)
}

func TestZonesSinglePage(t *testing.T) {
	f := &fakeAPI{
		zones: [][]map[string]any{
			{zone("z1", "example.com", "active", "#zone:edit")},
		},
	}
	p := newTestProvider(t, f)

	zones, err := p.Zones(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, []provider.Zone{{ID: "z1", Name: "example.com"}}, zones)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.zoneQueries, 1)
}

func TestRequestMetricsLabelZoneByID(t *testing.T) {
	f := &fakeAPI{
		records: map[string][][]map[string]any{
			"z1": {{record("r1", "www.example.com", "A", "198.51.100.1", false)}},
		},
	}
	m := metrics.New(true)
	p := newTestProviderWithMetrics(t, f, m)

	_, err := p.Records(context.Background(), "token", []provider.Zone{{ID: "z1", Name: "example.com"}})
	require.NoError(t, err)
	require.NoError(t, p.UpdateRecord(context.Background(), "token", "z1", "r1", "203.0.113.1"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `cddns_dns_requests_total{operation="read",status="success",zone="z1"} 1`)
	assert.Contains(t, body, `cddns_dns_requests_total{operation="update",status="success",zone="z1"} 1`)
	assert.NotContains(t, body, `zone="example.com"`)
}

func TestRecordsPaginatesAndFilters(t *testing.T) {
	f := &fakeAPI{
		records: map[string][][]map[string]any{
			"z1": {
				{
					record("r1", "example.com", "A", "1.2.3.4", false),
					record("r2", "example.com", "MX", "mail.example.com", false),
				},
				{
					record("r3", "www.example.com", "AAAA", "::1", false),
					record("r4", "locked.example.com", "A", "1.2.3.4", true),
				},
			},
		},
	}
	p := newTestProvider(t, f)

	records, err := p.Records(context.Background(), "token", []provider.Zone{{ID: "z1", Name: "example.com"}})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, provider.Record{
		ID: "r1", ZoneID: "z1", ZoneName: "example.com", Name: "example.com", Type: "A", Content: "1.2.3.4",
	}, records[0])
	assert.Equal(t, "r3", records[1].ID)
	assert.Equal(t, "AAAA", records[1].Type)

	assert.Equal(t, "@", RelativeName(records[0]))
	assert.Equal(t, "www", RelativeName(records[1]))
}

func TestRecordsProviderError(t *testing.T) {
	p := newTestProvider(t, &fakeAPI{records: map[string][][]map[string]any{}})

	_, err := p.Records(context.Background(), "token", []provider.Zone{{ID: "missing", Name: "missing.com"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrProvider)
	assert.Contains(t, err.Error(), "Could not route to zone")
}

func TestUpdateRecord(t *testing.T) {
	f := &fakeAPI{}
	p := newTestProvider(t, f)

	require.NoError(t, p.UpdateRecord(context.Background(), "token", "z1", "r1", "5.6.7.8"))
	require.NoError(t, p.UpdateRecord(context.Background(), "token", "z1", "r3", "2001:db8::1"))

	require.Len(t, f.patches, 2)
	assert.Equal(t, "5.6.7.8", f.patches[0]["content"])
	assert.Equal(t, "A", f.patches[0]["type"])
	assert.Equal(t, "r1", f.patches[0]["record"])
	assert.Equal(t, "AAAA", f.patches[1]["type"])

	err := p.UpdateRecord(context.Background(), "token", "z1", "r1", "not-an-ip")
	assert.ErrorIs(t, err, provider.ErrProvider)
	assert.Len(t, f.patches, 2)
}

func TestVerify(t *testing.T) {
	f := &fakeAPI{token: "good"}
	p := newTestProvider(t, f)

	status, err := p.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "active", status)

	_, err = p.Verify(context.Background(), "bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrProvider)
	assert.Contains(t, err.Error(), "Invalid API Token")
}

func TestClientCachedPerToken(t *testing.T) {
	p := New(metrics.New(false))

	a, err := p.client("one")
	require.NoError(t, err)
	b, err := p.client("one")
	require.NoError(t, err)
	c, err := p.client("two")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
