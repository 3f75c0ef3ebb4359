// Package arcgis persists expanded rows as point features on an ArcGIS
// Online hosted feature layer via the portal REST API.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/karpatalabs/incident-map-etl/internal/config"
	"github.com/karpatalabs/incident-map-etl/internal/domain"
	"github.com/karpatalabs/incident-map-etl/internal/observability"
)

// wkidWGS84 is the spatial reference of the target layer.
const wkidWGS84 = 4326

// tokenMargin is how long before expiry a cached token is refreshed.
const tokenMargin = 2 * time.Minute

// Client implements pipeline.FeatureSink against an ArcGIS portal.
type Client struct {
	portalURL  string
	username   string
	password   string
	itemID     string
	chunkSize  int
	normalizer domain.Normalizer
	httpClient *http.Client
	tokens     *tokenCache
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu       sync.Mutex
	layerURL string // resolved once from the item, then reused
}

// NewClient creates a feature-layer sink from the service configuration.
func NewClient(cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Client {
	c := &Client{
		portalURL:  strings.TrimRight(cfg.ArcGISURL, "/"),
		username:   cfg.ArcGISUsername,
		password:   cfg.ArcGISPassword,
		itemID:     cfg.ArcGISItemID,
		chunkSize:  cfg.UploadChunk,
		normalizer: domain.Normalizer{Scale: cfg.CoordScale},
		httpClient: &http.Client{Timeout: cfg.ArcGISTimeout},
		logger:     logger,
		metrics:    metrics,
	}
	c.tokens = newTokenCache(c.fetchToken, clock, tokenMargin)
	return c
}

// UploadRows converts rows to point features and adds them to layer 0 of
// the configured item in chunks. Rows whose coordinates fail normalization
// are logged and skipped; they never abort the batch.
func (c *Client) UploadRows(ctx context.Context, rows []domain.ExpandedRow) error {
	if len(rows) == 0 {
		return nil
	}

	token, err := c.tokens.get(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}

	layerURL, err := c.layer(ctx, token)
	if err != nil {
		return err
	}

	features := c.buildFeatures(rows)
	if len(features) == 0 {
		c.logger.Warn("no rows with usable coordinates, skipping upload", "rows", len(rows))
		return nil
	}

	for start := 0; start < len(features); start += c.chunkSize {
		end := start + c.chunkSize
		if end > len(features) {
			end = len(features)
		}
		if err := c.addFeatures(ctx, layerURL, token, features[start:end]); err != nil {
			return fmt.Errorf("add features [%d:%d]: %w", start, end, err)
		}
	}

	c.logger.Info("features uploaded",
		"features", len(features),
		"skipped", len(rows)-len(features),
	)
	return nil
}

// buildFeatures maps rows to the layer's attribute schema, re-running
// coordinate normalization as the sink contract requires.
func (c *Client) buildFeatures(rows []domain.ExpandedRow) []feature {
	features := make([]feature, 0, len(rows))
	for _, row := range rows {
		pt, err := c.normalizer.Normalize(row.RawLon, row.RawLat)
		if err != nil {
			c.metrics.RowsDropped.WithLabelValues("sink", domain.FailureKind(err)).Inc()
			c.logger.Warn("skipping row without usable coordinates",
				"city", row.City,
				"date", row.Date,
				"error", err,
			)
			continue
		}

		attrs := map[string]interface{}{
			"d_date":   row.Date,
			"t_region": row.Region,
			"t_city":   row.City,
		}
		for k := 0; k < domain.ValueColumns; k++ {
			attrs[fmt.Sprintf("i_value_%d", k+1)] = row.Indicators[k]
		}

		features = append(features, feature{
			Geometry: geometry{
				X:                pt.Lon(),
				Y:                pt.Lat(),
				SpatialReference: spatialReference{WKID: wkidWGS84},
			},
			Attributes: attrs,
		})
	}
	return features
}

// layer resolves the feature service URL of the configured item and points
// at its first layer, memoizing the result.
func (c *Client) layer(ctx context.Context, token string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.layerURL != "" {
		return c.layerURL, nil
	}

	u := fmt.Sprintf("%s/sharing/rest/content/items/%s?f=json&token=%s",
		c.portalURL, url.PathEscape(c.itemID), url.QueryEscape(token))

	var item itemResponse
	if err := c.getJSON(ctx, u, &item); err != nil {
		return "", fmt.Errorf("resolve item %s: %w", c.itemID, err)
	}
	if item.Error != nil {
		return "", fmt.Errorf("resolve item %s: %s", c.itemID, item.Error.Message)
	}
	if item.URL == "" {
		return "", fmt.Errorf("item %s has no feature service url", c.itemID)
	}

	c.layerURL = strings.TrimRight(item.URL, "/") + "/0"
	c.logger.Info("target layer resolved", "layer_url", c.layerURL)
	return c.layerURL, nil
}

// addFeatures posts one chunk to the layer's addFeatures operation and
// inspects the per-feature results.
func (c *Client) addFeatures(ctx context.Context, layerURL, token string, features []feature) error {
	payload, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("serialize features: %w", err)
	}

	form := url.Values{
		"f":        {"json"},
		"token":    {token},
		"features": {string(payload)},
	}

	var result addResponse
	if err := c.postForm(ctx, layerURL+"/addFeatures", form, &result); err != nil {
		return err
	}
	if result.Error != nil {
		return fmt.Errorf("arcgis error %d: %s", result.Error.Code, result.Error.Message)
	}

	c.metrics.UploadBatches.Inc()
	added, rejected := 0, 0
	for _, r := range result.AddResults {
		if r.Success {
			added++
		} else {
			rejected++
			c.logger.Warn("feature rejected by layer", "error", r.Error.Description)
		}
	}
	c.metrics.UploadFeatures.Add(float64(added))
	if rejected > 0 {
		c.metrics.UploadErrors.Add(float64(rejected))
	}

	c.logger.Debug("addFeatures chunk complete", "added", added, "rejected", rejected)
	return nil
}

// fetchToken requests a short-lived token from the portal's generateToken
// endpoint.
func (c *Client) fetchToken(ctx context.Context) (string, time.Time, error) {
	form := url.Values{
		"username":   {c.username},
		"password":   {c.password},
		"referer":    {c.portalURL},
		"expiration": {"60"},
		"f":          {"json"},
	}

	var result tokenResponse
	if err := c.postForm(ctx, c.portalURL+"/sharing/rest/generateToken", form, &result); err != nil {
		return "", time.Time{}, err
	}
	if result.Error != nil {
		return "", time.Time{}, fmt.Errorf("generate token: %s", result.Error.Message)
	}
	if result.Token == "" {
		return "", time.Time{}, fmt.Errorf("generate token: empty token in response")
	}

	return result.Token, time.UnixMilli(result.Expires), nil
}

func (c *Client) getJSON(ctx context.Context, fullURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postForm(ctx context.Context, fullURL string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("arcgis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("arcgis API error: status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ArcGIS REST payload types.

type feature struct {
	Geometry   geometry               `json:"geometry"`
	Attributes map[string]interface{} `json:"attributes"`
}

type geometry struct {
	X                float64          `json:"x"`
	Y                float64          `json:"y"`
	SpatialReference spatialReference `json:"spatialReference"`
}

type spatialReference struct {
	WKID int `json:"wkid"`
}

type itemResponse struct {
	URL   string    `json:"url"`
	Error *apiError `json:"error,omitempty"`
}

type tokenResponse struct {
	Token   string    `json:"token"`
	Expires int64     `json:"expires"` // unix milliseconds
	Error   *apiError `json:"error,omitempty"`
}

type addResponse struct {
	AddResults []addResult `json:"addResults"`
	Error      *apiError   `json:"error,omitempty"`
}

type addResult struct {
	ObjectID int64 `json:"objectId"`
	Success  bool  `json:"success"`
	Error    struct {
		Code        int    `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

type apiError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}
