// Package statbank fetches tables from the statistics bank API and turns
// them into series groups.
package statbank

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	json "github.com/goccy/go-json"
	"github.com/soltixdb/statseries/internal/cache"
	"github.com/soltixdb/statseries/internal/config"
	"github.com/soltixdb/statseries/internal/decoder"
	"github.com/soltixdb/statseries/internal/jsonstat"
	"github.com/soltixdb/statseries/internal/logging"
	"github.com/soltixdb/statseries/internal/metrics"
	"github.com/soltixdb/statseries/internal/series"
	"github.com/soltixdb/statseries/internal/utils"
	"github.com/valyala/fasthttp"
)

var (
	// ErrUpstream is returned when the API answers with a non-2xx status
	ErrUpstream = errors.New("statbank request failed")

	// ErrUnknownSelector is returned when a selector names a variable or
	// value text the table does not have
	ErrUnknownSelector = errors.New("unknown selector")
)

const formatJSONStat = "JSONSTAT"

// Client talks to the statistics bank API
type Client struct {
	baseURL    string
	lang       string
	timeout    time.Duration
	maxRetries int
	http       *fasthttp.Client
	cache      cache.Cache
	keyPrefix  string
	decoder    *decoder.Decoder
	metrics    *metrics.Metrics
}

// Option configures a Client
type Option func(*Client)

// WithCache caches raw response bodies under keys namespaced by prefix
func WithCache(c cache.Cache, prefix string) Option {
	return func(cl *Client) {
		cl.cache = c
		if prefix != "" {
			cl.keyPrefix = prefix
		}
	}
}

// WithMetrics counts upstream requests and cache lookups
func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

// WithHTTPClient replaces the underlying fasthttp client
func WithHTTPClient(hc *fasthttp.Client) Option {
	return func(cl *Client) { cl.http = hc }
}

// New creates a client from configuration
func New(cfg config.StatbankConfig, opts ...Option) *Client {
	missing := decoder.ZeroFill
	if cfg.StrictValues {
		missing = decoder.Strict
	}

	c := &Client{
		baseURL:    cfg.BaseURL,
		lang:       cfg.Language,
		timeout:    cfg.Timeout,
		maxRetries: max(cfg.MaxRetries, 1),
		http: &fasthttp.Client{
			Name:                "statseries",
			MaxConnsPerHost:     cfg.MaxConnsPerHost,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
		cache:     cache.Noop{},
		keyPrefix: "statseries",
		decoder:   decoder.New(decoder.Options{Missing: missing}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tableInfoRequest struct {
	Table string `json:"table"`
	Lang  string `json:"lang,omitempty"`
}

// VariableSelection selects value ids of one variable; "*" selects all
type VariableSelection struct {
	Code   string   `json:"code"`
	Values []string `json:"values"`
}

// DataRequest is the body of a data request
type DataRequest struct {
	Table     string              `json:"table"`
	Format    string              `json:"format"`
	Lang      string              `json:"lang,omitempty"`
	Variables []VariableSelection `json:"variables"`
}

// TableInfo fetches the table-info document of a table
func (c *Client) TableInfo(ctx context.Context, table string) (*jsonstat.TableInfo, error) {
	body, err := c.post(ctx, "tableinfo", tableInfoRequest{Table: table, Lang: c.lang})
	if err != nil {
		return nil, err
	}
	return jsonstat.ParseTableInfo(body)
}

// Data fetches a JSON-stat dataset
func (c *Client) Data(ctx context.Context, req DataRequest) (*jsonstat.Dataset, error) {
	req.Format = formatJSONStat
	if req.Lang == "" {
		req.Lang = c.lang
	}
	body, err := c.post(ctx, "data", req)
	if err != nil {
		return nil, err
	}
	return jsonstat.ParseDataset(body)
}

// Fetch downloads a table restricted by selector and builds one series per
// combination of non-time labels. selector maps variable ids to value texts.
func (c *Client) Fetch(ctx context.Context, table string, selector map[string][]string) (series.Group, error) {
	log := logging.FromContext(ctx).WithContext(ctx).With("table", table)

	info, err := c.TableInfo(ctx, table)
	if err != nil {
		return series.Group{}, err
	}

	vars, err := ResolveSelector(info, selector)
	if err != nil {
		return series.Group{}, err
	}

	ds, err := c.Data(ctx, DataRequest{Table: table, Variables: vars})
	if err != nil {
		return series.Group{}, err
	}

	timeID, err := ds.Dimension.TimeID()
	if err != nil {
		tv, tvErr := info.TimeVariable()
		if tvErr != nil {
			return series.Group{}, fmt.Errorf("table %s: %w", table, err)
		}
		timeID = tv.ID
	}

	points, err := c.decoder.Decode(ds.Dimension.Metadata(), ds.Value)
	if err != nil {
		return series.Group{}, fmt.Errorf("table %s: %w", table, err)
	}

	group, err := series.Build(points, timeID, info.Updated.Time)
	if err != nil {
		return series.Group{}, fmt.Errorf("table %s: %w", table, err)
	}

	log.Debug("Fetched table", "points", len(points), "series", group.Len(), "updated", info.Updated.Time)
	return group, nil
}

// ResolveSelector translates display texts into value ids. Every table
// variable missing from selector selects all of its values.
func ResolveSelector(info *jsonstat.TableInfo, selector map[string][]string) ([]VariableSelection, error) {
	for id := range selector {
		if _, ok := info.Variable(id); !ok {
			return nil, fmt.Errorf("%w: table %s has no variable %q", ErrUnknownSelector, info.ID, id)
		}
	}

	out := make([]VariableSelection, 0, len(info.Variables))
	for _, v := range info.Variables {
		texts, ok := selector[v.ID]
		if !ok {
			out = append(out, VariableSelection{Code: v.ID, Values: []string{"*"}})
			continue
		}

		ids := make([]string, 0, len(texts))
		for _, text := range texts {
			if text == "*" {
				ids = []string{"*"}
				break
			}
			id, ok := v.ValueID(text)
			if !ok {
				return nil, fmt.Errorf("%w: variable %s has no value %q", ErrUnknownSelector, v.ID, text)
			}
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		out = append(out, VariableSelection{Code: v.ID, Values: ids})
	}
	return out, nil
}

// post sends payload as JSON to {base}/{endpoint} and returns the body.
// Successful bodies are cached by endpoint and payload.
func (c *Client) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", endpoint, err)
	}

	log := logging.FromContext(ctx).WithContext(ctx)
	key := cache.Key(c.keyPrefix, "statbank", endpoint, string(reqBody))
	body, ok, err := c.cache.Get(ctx, key)
	c.metrics.ObserveCache(ok, err)
	if err != nil {
		log.Warn("Cache read failed", "key", key, "error", err)
	} else if ok {
		log.Debug("Cache hit", "endpoint", endpoint)
		return body, nil
	}

	url := c.baseURL + "/" + endpoint
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := utils.Sleep(ctx, utils.Backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		body, retry, err := c.do(ctx, url, reqBody)
		c.metrics.ObserveUpstream(endpoint, err)
		if err == nil {
			if err := c.cache.Set(ctx, key, body); err != nil {
				log.Warn("Cache write failed", "key", key, "error", err)
			}
			return body, nil
		}
		lastErr = err
		if !retry {
			break
		}
		log.Warn("Statbank request failed, retrying", "url", url, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// do performs one request. retry reports whether the failure is transient.
func (c *Client) do(ctx context.Context, url string, body []byte) (_ []byte, retry bool, _ error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return nil, true, fmt.Errorf("%w: POST %s: %v", ErrUpstream, url, err)
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return nil, status >= 500, fmt.Errorf("%w: POST %s returned status %d: %s",
			ErrUpstream, url, status, truncate(resp.Body(), 200))
	}

	return slices.Clone(resp.Body()), false, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
