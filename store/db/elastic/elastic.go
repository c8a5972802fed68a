// Package elastic implements the memory store driver on top of the
// Elasticsearch HTTP API. It speaks raw JSON over net/http; request bodies
// follow the bool/filter/should query DSL with dense_vector kNN clauses.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/memoraai/memora/internal/profile"
	"github.com/memoraai/memora/store"
)

const requestTimeout = 30 * time.Second

type DB struct {
	endpoint string
	index    string
	apiKey   string
	dims     int
	client   *http.Client

	// fusionUnsupported is a runtime capability flag. It starts optimistic
	// and flips after the store rejects a rank-fusion request; later hybrid
	// searches then go straight to the fallback query.
	fusionUnsupported atomic.Bool

	// onFusionFallback, when set, is called each time a hybrid search
	// degrades to the fallback query.
	onFusionFallback func()
}

// OnFusionFallback installs a callback invoked on each fusion degradation.
// The server uses it to feed the fallback counter.
func (d *DB) OnFusionFallback(fn func()) {
	d.onFusionFallback = fn
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if _, err := url.Parse(profile.ElasticURL); err != nil {
		return nil, errors.Wrapf(err, "invalid elasticsearch url %s", profile.ElasticURL)
	}

	driver := &DB{
		endpoint: profile.ElasticURL,
		index:    profile.ElasticIndex,
		apiKey:   profile.ElasticAPIKey,
		dims:     profile.EmbedDims,
		client:   &http.Client{Timeout: requestTimeout},
	}
	return driver, nil
}

func (d *DB) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// do issues one request against the index. elems are joined onto the index
// path, e.g. do(ctx, "POST", body, "_search") hits /{index}/_search.
func (d *DB) do(ctx context.Context, method string, body any, elems ...string) (*esResponse, error) {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return nil, err
	}
	u.Path = path.Join(append([]string{u.Path, d.index}, elems...)...)

	var reader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if d.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	out := &esResponse{status: resp.StatusCode, body: raw}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, fmt.Errorf("elasticsearch %s %s: status %d: %s", method, u.Path, resp.StatusCode, truncate(string(raw), 200))
	}
	return out, nil
}

// esResponse carries the raw reply; callers decode the parts they need.
type esResponse struct {
	status int
	body   []byte
}

func (r *esResponse) decode(v any) error {
	return json.Unmarshal(r.body, v)
}

// errorType extracts the error type from an Elasticsearch error reply, if any.
func (r *esResponse) errorType() string {
	var payload struct {
		Error struct {
			Type string `json:"type"`
			RootCause []struct {
				Type string `json:"type"`
			} `json:"root_cause"`
		} `json:"error"`
	}
	if err := json.Unmarshal(r.body, &payload); err != nil {
		return ""
	}
	if payload.Error.Type != "" {
		return payload.Error.Type
	}
	if len(payload.Error.RootCause) > 0 {
		return payload.Error.RootCause[0].Type
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
