package statbank

import (
	"context"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/soltixdb/statseries/internal/cache"
	"github.com/soltixdb/statseries/internal/config"
	"github.com/soltixdb/statseries/internal/decoder"
	"github.com/soltixdb/statseries/internal/jsonstat"
	"github.com/soltixdb/statseries/internal/metrics"
	"github.com/soltixdb/statseries/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

const testTableInfo = `{
  "id": "BIL51",
  "text": "Nyregistrerede personbiler",
  "updated": "2020-04-02T08:00:00",
  "active": true,
  "variables": [
    {"id": "DRIV", "text": "drivmiddel", "elimination": true, "time": false,
     "values": [{"id": "20200", "text": "Benzin"}, {"id": "20225", "text": "El"}]},
    {"id": "Tid", "text": "tid", "elimination": false, "time": true,
     "values": [{"id": "2020M01", "text": "2020M01"}, {"id": "2020M02", "text": "2020M02"}, {"id": "2020M03", "text": "2020M03"}]}
  ]
}`

const testDataset = `{
  "dataset": {
    "dimension": {
      "DRIV": {"label": "drivmiddel", "category": {"index": {"20225": 0}, "label": {"20225": "El"}}},
      "ContentsCode": {"label": "indhold", "category": {"index": {"BIL51": 0}, "label": {"BIL51": "Biler"}}},
      "Tid": {"label": "tid", "category": {
        "index": {"2020M01": 0, "2020M02": 1, "2020M03": 2},
        "label": {"2020M01": "2020M01", "2020M02": "2020M02", "2020M03": "2020M03"}}},
      "id": ["DRIV", "ContentsCode", "Tid"],
      "size": [1, 1, 3],
      "role": {"metric": ["ContentsCode"], "time": ["Tid"]}
    },
    "label": "Biler",
    "source": "Danmarks Statistik",
    "updated": "2020-04-02T06:00:00Z",
    "value": [5, 8, 13]
  }
}`

type fakeAPI struct {
	tableInfoCalls atomic.Int32
	dataCalls      atomic.Int32
	failures       atomic.Int32 // respond 503 while positive
	lastData       atomic.Value // DataRequest
}

func (f *fakeAPI) handle(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		return
	}
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		return
	}

	ctx.SetContentType("application/json")
	switch string(ctx.Path()) {
	case "/v1/tableinfo":
		f.tableInfoCalls.Add(1)
		var req tableInfoRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Table != "BIL51" {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			ctx.SetBodyString(`{"errorTypeCode":"TABLE-NOT-FOUND"}`)
			return
		}
		ctx.SetBodyString(testTableInfo)
	case "/v1/data":
		f.dataCalls.Add(1)
		var req DataRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		f.lastData.Store(req)
		ctx.SetBodyString(testDataset)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func setupTestAPI(t *testing.T, opts ...Option) (*Client, *fakeAPI) {
	t.Helper()

	api := &fakeAPI{}
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: api.handle}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	hc := &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}

	cfg := config.StatbankConfig{
		BaseURL:    "http://statbank.test/v1",
		Language:   "da",
		Timeout:    5 * time.Second,
		MaxRetries: 3,
	}
	return New(cfg, append([]Option{WithHTTPClient(hc)}, opts...)...), api
}

func TestClient_TableInfo(t *testing.T) {
	client, api := setupTestAPI(t)

	info, err := client.TableInfo(context.Background(), "BIL51")
	require.NoError(t, err)
	assert.Equal(t, "BIL51", info.ID)
	assert.Len(t, info.Variables, 2)
	assert.EqualValues(t, 1, api.tableInfoCalls.Load())
}

func TestClient_UpstreamError(t *testing.T) {
	client, api := setupTestAPI(t)

	_, err := client.TableInfo(context.Background(), "NOPE")
	require.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "400")
	assert.EqualValues(t, 1, api.tableInfoCalls.Load(), "4xx is not retried")
}

func TestClient_RetriesServerErrors(t *testing.T) {
	client, api := setupTestAPI(t)
	api.failures.Store(2)

	info, err := client.TableInfo(context.Background(), "BIL51")
	require.NoError(t, err)
	assert.Equal(t, "BIL51", info.ID)
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	client, api := setupTestAPI(t)
	api.failures.Store(10)

	_, err := client.TableInfo(context.Background(), "BIL51")
	require.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "503")
	assert.EqualValues(t, 7, api.failures.Load())
}

func TestClient_Fetch(t *testing.T) {
	client, api := setupTestAPI(t)

	group, err := client.Fetch(context.Background(), "BIL51", map[string][]string{"DRIV": {"El"}})
	require.NoError(t, err)

	req := api.lastData.Load().(DataRequest)
	assert.Equal(t, "JSONSTAT", req.Format)
	assert.Equal(t, "da", req.Lang)
	assert.Equal(t, []VariableSelection{
		{Code: "DRIV", Values: []string{"20225"}},
		{Code: "Tid", Values: []string{"*"}},
	}, req.Variables)

	assert.Equal(t, time.Date(2020, time.April, 2, 8, 0, 0, 0, time.UTC), group.Updated())
	require.Equal(t, 1, group.Len())
	el, ok := group.Find("El")
	require.True(t, ok)
	assert.Equal(t, []series.Point{
		{Date: series.Date(2020, time.January, 1), Value: 5},
		{Date: series.Date(2020, time.February, 1), Value: 8},
		{Date: series.Date(2020, time.March, 1), Value: 13},
	}, el.Points())
}

func TestClient_FetchUsesCache(t *testing.T) {
	mem := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { _ = mem.Close() })
	client, api := setupTestAPI(t, WithCache(mem, ""))

	for i := 0; i < 3; i++ {
		_, err := client.Fetch(context.Background(), "BIL51", map[string][]string{"DRIV": {"El"}})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, api.tableInfoCalls.Load())
	assert.EqualValues(t, 1, api.dataCalls.Load())
}

// keyRecorder remembers the keys written through it
type keyRecorder struct {
	cache.Cache
	keys []string
}

func (k *keyRecorder) Set(ctx context.Context, key string, value []byte) error {
	k.keys = append(k.keys, key)
	return k.Cache.Set(ctx, key, value)
}

func TestClient_CacheKeyPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{name: "configured", prefix: "shared-redis", want: "shared-redis:"},
		{name: "default", prefix: "", want: "statseries:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := cache.NewMemoryCache(time.Minute)
			t.Cleanup(func() { _ = mem.Close() })
			rec := &keyRecorder{Cache: mem}

			client, _ := setupTestAPI(t, WithCache(rec, tt.prefix))
			_, err := client.TableInfo(context.Background(), "BIL51")
			require.NoError(t, err)

			require.Len(t, rec.keys, 1)
			assert.True(t, strings.HasPrefix(rec.keys[0], tt.want), rec.keys[0])
		})
	}
}

func TestClient_FetchUnknownSelector(t *testing.T) {
	client, api := setupTestAPI(t)

	_, err := client.Fetch(context.Background(), "BIL51", map[string][]string{"DRIV": {"Brint"}})
	assert.ErrorIs(t, err, ErrUnknownSelector)
	assert.Zero(t, api.dataCalls.Load())
}

func TestClient_CancelledContext(t *testing.T) {
	client, api := setupTestAPI(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.TableInfo(ctx, "BIL51")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, api.tableInfoCalls.Load())
}

func TestResolveSelector(t *testing.T) {
	info, err := jsonstat.ParseTableInfo([]byte(testTableInfo))
	require.NoError(t, err)

	tests := []struct {
		name     string
		selector map[string][]string
		want     []VariableSelection
		wantErr  error
	}{
		{
			name:     "empty selector selects everything",
			selector: nil,
			want: []VariableSelection{
				{Code: "DRIV", Values: []string{"*"}},
				{Code: "Tid", Values: []string{"*"}},
			},
		},
		{
			name:     "texts become ids without duplicates",
			selector: map[string][]string{"DRIV": {"El", "Benzin", "el"}},
			want: []VariableSelection{
				{Code: "DRIV", Values: []string{"20225", "20200"}},
				{Code: "Tid", Values: []string{"*"}},
			},
		},
		{
			name:     "explicit wildcard",
			selector: map[string][]string{"Tid": {"*"}},
			want: []VariableSelection{
				{Code: "DRIV", Values: []string{"*"}},
				{Code: "Tid", Values: []string{"*"}},
			},
		},
		{
			name:     "unknown variable",
			selector: map[string][]string{"OMR": {"Hovedstaden"}},
			wantErr:  ErrUnknownSelector,
		},
		{
			name:     "unknown value",
			selector: map[string][]string{"DRIV": {"Brint"}},
			wantErr:  ErrUnknownSelector,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSelector(info, tt.selector)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_StrictValues(t *testing.T) {
	c := New(config.StatbankConfig{BaseURL: "http://x", Timeout: time.Second, StrictValues: true})
	_, err := c.decoder.Decode(decoder.Metadata{
		IDs:        []string{"A"},
		Dimensions: map[string]decoder.Dimension{"A": {ID: "A", Categories: []decoder.Category{{ID: "a", Label: "a"}}}},
	}, []*int64{nil})
	assert.ErrorIs(t, err, decoder.ErrMissingValue)
	assert.Equal(t, 1, c.maxRetries)
}

func TestClient_Metrics(t *testing.T) {
	m := metrics.New()
	memory := cache.NewMemoryCache(time.Minute)
	defer func() { _ = memory.Close() }()

	client, api := setupTestAPI(t, WithCache(memory, ""), WithMetrics(m))
	api.failures.Store(2)

	ctx := context.Background()
	_, err := client.TableInfo(ctx, "BIL51")
	require.NoError(t, err)
	_, err = client.TableInfo(ctx, "BIL51")
	require.NoError(t, err)

	expected := `
# HELP statseries_statbank_requests_total Statistics bank API requests by endpoint and outcome, retries included.
# TYPE statseries_statbank_requests_total counter
statseries_statbank_requests_total{endpoint="tableinfo",outcome="error"} 2
statseries_statbank_requests_total{endpoint="tableinfo",outcome="success"} 1
# HELP statseries_cache_lookups_total Payload cache lookups by result (hit, miss, error).
# TYPE statseries_cache_lookups_total counter
statseries_cache_lookups_total{result="hit"} 1
statseries_cache_lookups_total{result="miss"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"statseries_statbank_requests_total", "statseries_cache_lookups_total"))
}
