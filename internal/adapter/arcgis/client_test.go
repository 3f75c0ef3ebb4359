package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karpatalabs/incident-map-etl/internal/domain"
	"github.com/karpatalabs/incident-map-etl/internal/observability"
)

const testItemID = "item-1"

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// testPortal is a fake ArcGIS portal capturing uploaded features.
type testPortal struct {
	srv         *httptest.Server
	tokenCalls  atomic.Int64
	addCalls    atomic.Int64
	features    [][]feature
	rejectFirst bool // mark the first feature of each chunk as rejected
}

func newTestPortal(t *testing.T) *testPortal {
	t.Helper()
	p := &testPortal{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sharing/rest/generateToken", func(w http.ResponseWriter, r *http.Request) {
		p.tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "operator", r.Form.Get("username"))
		assert.Equal(t, "json", r.Form.Get("f"))
		writeJSON(t, w, map[string]interface{}{
			"token":   fmt.Sprintf("tok-%d", p.tokenCalls.Load()),
			"expires": testNow.Add(time.Hour).UnixMilli(),
		})
	})
	mux.HandleFunc("GET /sharing/rest/content/items/"+testItemID, func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("token"))
		writeJSON(t, w, map[string]interface{}{
			"url": p.srv.URL + "/rest/services/incidents/FeatureServer",
		})
	})
	mux.HandleFunc("POST /rest/services/incidents/FeatureServer/0/addFeatures", func(w http.ResponseWriter, r *http.Request) {
		p.addCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "json", r.Form.Get("f"))
		assert.NotEmpty(t, r.Form.Get("token"))

		var chunk []feature
		require.NoError(t, json.Unmarshal([]byte(r.Form.Get("features")), &chunk))
		p.features = append(p.features, chunk)

		results := make([]map[string]interface{}, len(chunk))
		for i := range chunk {
			success := !(p.rejectFirst && i == 0)
			results[i] = map[string]interface{}{"objectId": i + 1, "success": success}
			if !success {
				results[i]["error"] = map[string]interface{}{"code": 1000, "description": "bad geometry"}
			}
		}
		writeJSON(t, w, map[string]interface{}{"addResults": results})
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func testClient(portalURL string, chunkSize int, clock clockwork.Clock) *Client {
	c := &Client{
		portalURL:  portalURL,
		username:   "operator",
		password:   "secret",
		itemID:     testItemID,
		chunkSize:  chunkSize,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:    observability.NewMetricsForTesting(),
	}
	c.tokens = newTokenCache(c.fetchToken, clock, tokenMargin)
	return c
}

func row(city, lon, lat string, indicators ...int) domain.ExpandedRow {
	r := domain.ExpandedRow{
		Date:   "01.05.2024",
		Region: "Одеська",
		City:   city,
		RawLon: lon,
		RawLat: lat,
	}
	copy(r.Indicators[:], indicators)
	return r
}

func TestUploadRows_MapsAttributesAndGeometry(t *testing.T) {
	portal := newTestPortal(t)
	c := testClient(portal.srv.URL, 200, clockwork.NewFakeClockAt(testNow))

	err := c.UploadRows(context.Background(), []domain.ExpandedRow{
		row("Одеса", "307306393", "464702111", 1, 1),
	})
	require.NoError(t, err)

	require.Equal(t, int64(1), portal.addCalls.Load())
	require.Len(t, portal.features, 1)
	require.Len(t, portal.features[0], 1)

	f := portal.features[0][0]
	assert.InDelta(t, 30.7306393, f.Geometry.X, 1e-9)
	assert.InDelta(t, 46.4702111, f.Geometry.Y, 1e-9)
	assert.Equal(t, wkidWGS84, f.Geometry.SpatialReference.WKID)
	assert.Equal(t, "01.05.2024", f.Attributes["d_date"])
	assert.Equal(t, "Одеська", f.Attributes["t_region"])
	assert.Equal(t, "Одеса", f.Attributes["t_city"])
	// JSON round-trips numbers as float64.
	assert.Equal(t, float64(1), f.Attributes["i_value_1"])
	assert.Equal(t, float64(1), f.Attributes["i_value_2"])
	assert.Equal(t, float64(0), f.Attributes["i_value_3"])
	assert.Contains(t, f.Attributes, "i_value_10")
}

func TestUploadRows_ChunksLargeBatches(t *testing.T) {
	portal := newTestPortal(t)
	c := testClient(portal.srv.URL, 2, clockwork.NewFakeClockAt(testNow))

	rows := []domain.ExpandedRow{
		row("A", "30.1", "46.1"),
		row("B", "30.2", "46.2"),
		row("C", "30.3", "46.3"),
		row("D", "30.4", "46.4"),
		row("E", "30.5", "46.5"),
	}
	require.NoError(t, c.UploadRows(context.Background(), rows))

	assert.Equal(t, int64(3), portal.addCalls.Load())
	assert.Len(t, portal.features[0], 2)
	assert.Len(t, portal.features[1], 2)
	assert.Len(t, portal.features[2], 1)
}

func TestUploadRows_DropsUnusableCoordinates(t *testing.T) {
	portal := newTestPortal(t)
	c := testClient(portal.srv.URL, 200, clockwork.NewFakeClockAt(testNow))

	rows := []domain.ExpandedRow{
		row("Одеса", "30.73", "46.47"),
		row("невідомо", "0", "0"),     // zero sentinel
		row("порожнє", "", ""),        // missing
		row("сміття", "схід", "46.5"), // unparseable
	}
	require.NoError(t, c.UploadRows(context.Background(), rows))

	require.Len(t, portal.features, 1)
	require.Len(t, portal.features[0], 1)
	assert.Equal(t, "Одеса", portal.features[0][0].Attributes["t_city"])
}

func TestUploadRows_AllRowsUnusableSkipsUpload(t *testing.T) {
	portal := newTestPortal(t)
	c := testClient(portal.srv.URL, 200, clockwork.NewFakeClockAt(testNow))

	err := c.UploadRows(context.Background(), []domain.ExpandedRow{row("x", "0", "0")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), portal.addCalls.Load())
}

func TestUploadRows_EmptyInput(t *testing.T) {
	portal := newTestPortal(t)
	c := testClient(portal.srv.URL, 200, clockwork.NewFakeClockAt(testNow))

	require.NoError(t, c.UploadRows(context.Background(), nil))
	assert.Equal(t, int64(0), portal.tokenCalls.Load())
}

func TestUploadRows_RejectedFeaturesDoNotFailBatch(t *testing.T) {
	portal := newTestPortal(t)
	portal.rejectFirst = true
	c := testClient(portal.srv.URL, 200, clockwork.NewFakeClockAt(testNow))

	rows := []domain.ExpandedRow{
		row("A", "30.1", "46.1"),
		row("B", "30.2", "46.2"),
	}
	require.NoError(t, c.UploadRows(context.Background(), rows))
	assert.Equal(t, int64(1), portal.addCalls.Load())
}

func TestTokenCaching(t *testing.T) {
	portal := newTestPortal(t)
	clock := clockwork.NewFakeClockAt(testNow)
	c := testClient(portal.srv.URL, 200, clock)

	rows := []domain.ExpandedRow{row("A", "30.1", "46.1")}

	require.NoError(t, c.UploadRows(context.Background(), rows))
	require.NoError(t, c.UploadRows(context.Background(), rows))
	assert.Equal(t, int64(1), portal.tokenCalls.Load(), "token reused while fresh")

	// Past expiry minus margin the token must be refetched.
	clock.Advance(59 * time.Minute)
	require.NoError(t, c.UploadRows(context.Background(), rows))
	assert.Equal(t, int64(2), portal.tokenCalls.Load())
}

func TestUploadRows_PortalErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{
			"error": map[string]interface{}{"code": 498, "message": "Invalid token"},
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL, 200, clockwork.NewFakeClockAt(testNow))
	err := c.UploadRows(context.Background(), []domain.ExpandedRow{row("A", "30.1", "46.1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid token")
}

func TestUploadRows_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 200, clockwork.NewFakeClockAt(testNow))
	err := c.UploadRows(context.Background(), []domain.ExpandedRow{row("A", "30.1", "46.1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}
