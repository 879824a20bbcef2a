package workload

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/tradeload/internal/performance"
	"github.com/wesleyorama2/tradeload/internal/performance/config"
	"github.com/wesleyorama2/tradeload/internal/performance/engine"
	"github.com/wesleyorama2/tradeload/internal/performance/metrics"
	"github.com/wesleyorama2/tradeload/internal/performance/payload"
	"github.com/wesleyorama2/tradeload/internal/performance/transport"
)

// fakeTarget records requests and answers with a fixed outcome.
type fakeTarget struct {
	mu     sync.Mutex
	reqs   []transport.Request
	out    transport.Outcome
	closed bool
}

func (f *fakeTarget) Execute(ctx context.Context, req transport.Request) transport.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.out
}

func (f *fakeTarget) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func iteration() *performance.Iteration {
	return &performance.Iteration{
		Scenario: "s",
		WorkerID: 1,
		Number:   1,
		Rand:     rand.New(rand.NewSource(1)),
		Tags:     metrics.Tags{"scenario": "s"},
	}
}

func withIDs(pool *payload.IDPool, targets map[string]transport.Transporter) *Resources {
	res := &Resources{Targets: targets}
	res.SetIDs(pool)
	return res
}

func loadConfig(t *testing.T, doc string) *config.TestConfig {
	t.Helper()
	cfg, err := config.ParseConfig([]byte(doc), "test.yaml")
	require.NoError(t, err)
	config.ApplyDefaults(cfg)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuild(t *testing.T) {
	cfg := loadConfig(t, `
name: mixed
targets:
  reader: { type: http, baseUrl: "http://localhost:8093" }
  bus: { type: kafka, brokers: ["localhost:9092"], topic: trades }
scenarios:
  writes:
    executor: constant-arrival-rate
    exec: publish_trade
    target: bus
    rate: 10
    duration: 10s
    maxVUs: 5
  reads:
    executor: constant-vus
    exec: read_trade
    target: reader
    operation: db_read
    vus: 2
    duration: 10s
    tags: { team: trades }
thresholds:
  db_read_success: ["rate>0.9"]
  "http_req_duration{operation:db_read}": ["p(95)<100", "p(99)<500"]
`)

	plan, err := NewBuilder(metrics.NewSink(), nil).Build(cfg)
	require.NoError(t, err)

	assert.Equal(t, "mixed", plan.Name)
	require.Len(t, plan.Scenarios, 2)
	assert.Equal(t, "reads", plan.Scenarios[0].Config.Name)
	assert.Equal(t, "writes", plan.Scenarios[1].Config.Name)
	assert.Equal(t, "trades", plan.Scenarios[0].Tags["team"])
	require.Len(t, plan.Thresholds, 2)
	var exprs int
	for _, th := range plan.Thresholds {
		exprs += len(th.Expressions)
	}
	assert.Equal(t, 3, exprs)
	assert.Equal(t, 30*time.Second, plan.Scenarios[0].Config.GracefulStop)
	assert.NotNil(t, plan.Setup)
	assert.NotNil(t, plan.Teardown)
}

func TestBuild_BadGenerator(t *testing.T) {
	cfg := loadConfig(t, `
targets:
  bus: { type: kafka, brokers: ["localhost:9092"], topic: trades }
scenarios:
  writes: { executor: constant-vus, exec: publish_trade, target: bus, vus: 1, duration: 1s }
`)
	cfg.Settings.Generator = &payload.GeneratorConfig{}

	_, err := NewBuilder(metrics.NewSink(), nil).Build(cfg)
	assert.ErrorContains(t, err, "choice set is empty")
}

func TestValidate_EmptyGeneratorSetIsAConfigError(t *testing.T) {
	cfg, err := config.ParseConfig([]byte(`
settings:
  generator:
    sides: []
targets:
  bus: { type: kafka, brokers: ["localhost:9092"], topic: trades }
scenarios:
  writes: { executor: constant-vus, exec: publish_trade, target: bus, vus: 1, duration: 1s }
`), "test.yaml")
	require.NoError(t, err)
	config.ApplyDefaults(cfg)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings.generator")
	assert.Contains(t, err.Error(), "choice set is empty")
}

func TestReadTrade_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	var (
		mu      sync.Mutex
		paths   = map[string]int{}
		healthy bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/actuator/health" {
			mu.Lock()
			healthy = true
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
			return
		}
		mu.Lock()
		paths[r.URL.Path]++
		mu.Unlock()

		id := strings.TrimPrefix(r.URL.Path, "/api/trades/")
		if id == "TRD-missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"tradeId":%q,"source":"database"}`, id)
	}))
	defer srv.Close()

	cfg := loadConfig(t, fmt.Sprintf(`
name: reads
settings: { seed: 7 }
targets:
  db_reader:
    type: http
    baseUrl: %q
    successStatus: [200, 404]
    healthPath: /actuator/health
tradeIds:
  source: list
  ids: [TRD-1, TRD-2, TRD-missing]
scenarios:
  db_reads:
    executor: constant-vus
    exec: read_trade
    target: db_reader
    operation: db_read
    expectSource: database
    vus: 2
    duration: 300ms
    pacing: { type: constant, duration: 10ms }
thresholds:
  "http_req_duration{operation:db_read}": ["p(95)<1000"]
  "http_req_failed{operation:db_read}": ["rate==0"]
  db_read_success: ["rate>0.99"]
  checks: ["rate==1"]
`, srv.URL))

	sink := metrics.NewSink()
	plan, err := NewBuilder(sink, nil).Build(cfg)
	require.NoError(t, err)

	eng, err := engine.New(plan, engine.WithSink(sink))
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Passed, "thresholds: %+v", result.Thresholds)

	requests, err := sink.Snapshot("db_read_requests", nil)
	require.NoError(t, err)
	assert.Greater(t, requests.Sum, 2.0)

	duration, err := sink.Snapshot("db_read_duration", metrics.Tags{"operation": "db_read", "scenario": "db_reads"})
	require.NoError(t, err)
	assert.Equal(t, int(requests.Sum), duration.Count)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, healthy, "health endpoint not requested")
	for path := range paths {
		assert.Contains(t, []string{"/api/trades/TRD-1", "/api/trades/TRD-2", "/api/trades/TRD-missing"}, path)
	}
}

func TestReadTrade_Checks(t *testing.T) {
	sink := metrics.NewSink()
	b := NewBuilder(sink, nil)
	pool, err := payload.NewIDPool([]string{"TRD-1"})
	require.NoError(t, err)

	target := &fakeTarget{out: transport.Outcome{
		Success:  true,
		Status:   http.StatusOK,
		Duration: 5 * time.Millisecond,
		Body:     []byte(`{"tradeId":"TRD-1","source":"cache"}`),
	}}
	res := withIDs(pool, map[string]transport.Transporter{"api": target})

	exec := b.readTrade(&config.ScenarioConfig{Target: "api", Operation: "db_read", ExpectSource: "database"})
	require.NoError(t, exec(context.Background(), iteration(), res))

	require.Len(t, target.reqs, 1)
	assert.Equal(t, "/api/trades/TRD-1", target.reqs[0].Path)
	assert.Equal(t, http.MethodGet, target.reqs[0].Method)
	assert.Equal(t, "db_read", target.reqs[0].Operation)

	has, err := sink.Snapshot(MetricChecks, metrics.Tags{"check": "has tradeId"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, has.Rate())

	source, err := sink.Snapshot(MetricChecks, metrics.Tags{"check": "source is database"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, source.Rate())

	success, err := sink.Snapshot("db_read_success", metrics.Tags{"operation": "db_read"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, success.Rate())
}

func TestReadTrade_NotFoundSkipsChecks(t *testing.T) {
	sink := metrics.NewSink()
	b := NewBuilder(sink, nil)
	pool, _ := payload.NewIDPool([]string{"TRD-9"})
	target := &fakeTarget{out: transport.Outcome{Success: true, Status: http.StatusNotFound}}
	res := withIDs(pool, map[string]transport.Transporter{"api": target})

	exec := b.readTrade(&config.ScenarioConfig{Target: "api", Operation: "read", Path: "/trades/{id}/latest"})
	require.NoError(t, exec(context.Background(), iteration(), res))

	assert.Equal(t, "/trades/TRD-9/latest", target.reqs[0].Path)
	_, ok := sink.Lookup(MetricChecks)
	assert.False(t, ok)
}

func TestReadTrade_FailureReturnsError(t *testing.T) {
	sink := metrics.NewSink()
	b := NewBuilder(sink, nil)
	pool, _ := payload.NewIDPool([]string{"TRD-1"})
	target := &fakeTarget{out: transport.Outcome{
		ErrorKind: transport.ErrorKindStatus,
		Status:    http.StatusInternalServerError,
		Err:       &transport.StatusError{Status: 500, Predicate: "2xx"},
	}}
	res := withIDs(pool, map[string]transport.Transporter{"api": target})

	exec := b.readTrade(&config.ScenarioConfig{Target: "api", Operation: "read"})
	err := exec(context.Background(), iteration(), res)
	require.Error(t, err)
	var se *transport.StatusError
	assert.ErrorAs(t, err, &se)

	success, err := sink.Snapshot("read_success", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, success.Rate())
}

func TestIteration_WithoutResources(t *testing.T) {
	b := NewBuilder(metrics.NewSink(), nil)
	gen := payload.MustNewTradeGenerator()

	execs := map[string]engine.ExecFunc{
		"read":    b.readTrade(&config.ScenarioConfig{Target: "api", Operation: "read"}),
		"publish": b.publishTrade(&config.ScenarioConfig{Target: "api", Operation: "pub"}, config.TargetKafka, gen),
		"scrape":  b.scrapeMetrics(&config.ScenarioConfig{Target: "api", Operation: "scrape"}),
	}
	for name, exec := range execs {
		t.Run(name, func(t *testing.T) {
			err := exec(context.Background(), iteration(), nil)
			assert.ErrorIs(t, err, ErrNoResources)

			err = exec(context.Background(), iteration(), &Resources{Targets: map[string]transport.Transporter{}})
			assert.Error(t, err)
		})
	}
}

func TestPublishTrade(t *testing.T) {
	tests := []struct {
		name       string
		targetType string
		encoding   string
		path       string
		wantMethod string
		wantPath   string
	}{
		{"kafka json", config.TargetKafka, "", "", "", ""},
		{"kafka base64", config.TargetKafka, config.EncodingBase64, "", "", ""},
		{"http default path", config.TargetHTTP, "", "", http.MethodPost, DefaultPublishPath},
		{"mqtt topic override", config.TargetMQTT, "", "trades/eu", "", "trades/eu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := metrics.NewSink()
			b := NewBuilder(sink, nil)
			target := &fakeTarget{out: transport.Outcome{Success: true, Duration: time.Millisecond}}
			res := &Resources{Targets: map[string]transport.Transporter{"out": target}}

			sc := &config.ScenarioConfig{Target: "out", Operation: "publish", Encoding: tt.encoding, Path: tt.path}
			exec := b.publishTrade(sc, tt.targetType, payload.MustNewTradeGenerator())
			require.NoError(t, exec(context.Background(), iteration(), res))

			require.Len(t, target.reqs, 1)
			req := target.reqs[0]
			assert.Equal(t, tt.wantMethod, req.Method)
			assert.Equal(t, tt.wantPath, req.Path)

			body := req.Body
			if tt.encoding == config.EncodingBase64 {
				decoded, err := base64.StdEncoding.DecodeString(string(body))
				require.NoError(t, err)
				body = decoded
			}
			var trade payload.Trade
			require.NoError(t, json.Unmarshal(body, &trade))
			assert.True(t, strings.HasPrefix(trade.TradeID, "TRD-"), trade.TradeID)
			assert.Equal(t, trade.TradeID, string(req.Key))

			published, err := sink.Snapshot(MetricTradesPublished, metrics.Tags{"operation": "publish"})
			require.NoError(t, err)
			assert.Equal(t, 1.0, published.Sum)
		})
	}
}

func TestPublishTrade_Failure(t *testing.T) {
	sink := metrics.NewSink()
	b := NewBuilder(sink, nil)
	target := &fakeTarget{out: transport.Outcome{ErrorKind: transport.ErrorKindTransport, Err: errors.New("broker down")}}
	res := &Resources{Targets: map[string]transport.Transporter{"out": target}}

	exec := b.publishTrade(&config.ScenarioConfig{Target: "out", Operation: "publish"}, config.TargetKafka, payload.MustNewTradeGenerator())
	err := exec(context.Background(), iteration(), res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	_, ok := sink.Lookup(MetricTradesPublished)
	assert.False(t, ok)
	requests, err := sink.Snapshot("publish_requests", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, requests.Sum)
}

const exposition = `# HELP trades_processed_total Trades processed.
# TYPE trades_processed_total counter
trades_processed_total{consumer="db"} 1027
trades_processed_total{consumer="cache"} 998
# HELP jvm_threads_live Live threads.
# TYPE jvm_threads_live gauge
jvm_threads_live 42
# HELP http_server_requests_seconds Request latency.
# TYPE http_server_requests_seconds summary
http_server_requests_seconds_count 10
http_server_requests_seconds_sum 1.5
`

func TestScrapeMetrics(t *testing.T) {
	sink := metrics.NewSink()
	b := NewBuilder(sink, nil)
	target := &fakeTarget{out: transport.Outcome{Success: true, Status: 200, Body: []byte(exposition)}}
	res := &Resources{Targets: map[string]transport.Transporter{"writer": target}}

	exec := b.scrapeMetrics(&config.ScenarioConfig{
		Target:    "writer",
		Operation: "monitor",
		Families:  []string{"trades_processed_total"},
	})
	require.NoError(t, exec(context.Background(), iteration(), res))

	assert.Equal(t, DefaultScrapePath, target.reqs[0].Path)

	db, err := sink.Snapshot("trades_processed_total", metrics.Tags{"consumer": "db", "scenario": "s"})
	require.NoError(t, err)
	assert.Equal(t, 1027.0, db.Sum)
	assert.Equal(t, metrics.KindTrend, db.Kind)

	all, err := sink.Snapshot("trades_processed_total", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Count)

	_, ok := sink.Lookup("jvm_threads_live")
	assert.False(t, ok, "unselected family recorded")
}

func TestScrapeMetrics_AllFamilies(t *testing.T) {
	sink := metrics.NewSink()
	b := NewBuilder(sink, nil)
	target := &fakeTarget{out: transport.Outcome{Success: true, Status: 200, Body: []byte(exposition)}}
	res := &Resources{Targets: map[string]transport.Transporter{"writer": target}}

	exec := b.scrapeMetrics(&config.ScenarioConfig{Target: "writer", Operation: "monitor"})
	require.NoError(t, exec(context.Background(), iteration(), res))

	threads, err := sink.Snapshot("jvm_threads_live", nil)
	require.NoError(t, err)
	assert.Equal(t, 42.0, threads.Max)

	// summaries carry no single value
	_, ok := sink.Lookup("http_server_requests_seconds")
	assert.False(t, ok)
}

func TestScrapeMetrics_Malformed(t *testing.T) {
	b := NewBuilder(metrics.NewSink(), nil)
	target := &fakeTarget{out: transport.Outcome{Success: true, Status: 200, Body: []byte("trades_processed_total{consumer=\"db\" 1\n")}}
	res := &Resources{Targets: map[string]transport.Transporter{"writer": target}}

	exec := b.scrapeMetrics(&config.ScenarioConfig{Target: "writer", Operation: "monitor"})
	err := exec(context.Background(), iteration(), res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse metrics")
}

func TestSetup_OpenFailureClosesOpenedTargets(t *testing.T) {
	cfg := loadConfig(t, `
targets:
  a: { type: kafka, brokers: ["localhost:9092"], topic: trades }
  b: { type: kafka, brokers: ["localhost:9092"], topic: trades }
scenarios:
  one: { executor: constant-vus, exec: publish_trade, target: a, vus: 1, duration: 1s }
  two: { executor: constant-vus, exec: publish_trade, target: b, vus: 1, duration: 1s }
`)

	b := NewBuilder(metrics.NewSink(), nil)
	opened := &fakeTarget{}
	b.open = func(ctx context.Context, name string, tc *config.TargetConfig) (transport.Transporter, error) {
		if name == "b" {
			return nil, errors.New("dial tcp: connection refused")
		}
		return opened, nil
	}

	plan, err := b.Build(cfg)
	require.NoError(t, err)

	_, err = plan.Setup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target b")
	assert.True(t, opened.closed)
}

func TestSetupAndTeardown(t *testing.T) {
	cfg := loadConfig(t, `
targets:
  api: { type: http, baseUrl: "http://localhost:8093" }
  unused: { type: kafka, brokers: ["localhost:9092"], topic: trades }
tradeIds: { source: generate, count: 25 }
scenarios:
  reads: { executor: constant-vus, exec: read_trade, target: api, vus: 1, duration: 1s }
`)

	b := NewBuilder(metrics.NewSink(), nil)
	targets := map[string]*fakeTarget{}
	b.open = func(ctx context.Context, name string, tc *config.TargetConfig) (transport.Transporter, error) {
		ft := &fakeTarget{}
		targets[name] = ft
		return ft, nil
	}

	plan, err := b.Build(cfg)
	require.NoError(t, err)

	data, err := plan.Setup(context.Background())
	require.NoError(t, err)
	res, ok := data.(*Resources)
	require.True(t, ok)

	assert.Equal(t, 25, res.IDs().Len())
	assert.Contains(t, res.Targets, "api")
	assert.NotContains(t, targets, "unused", "targets without scenarios are not opened")

	require.NoError(t, plan.Teardown(context.Background(), data))
	assert.True(t, targets["api"].closed)

	assert.ErrorIs(t, plan.Teardown(context.Background(), "junk"), ErrNoResources)
}

func TestSetup_RefreshesPostgresIDs(t *testing.T) {
	cfg := loadConfig(t, `
targets:
  api: { type: http, baseUrl: "http://localhost:8093" }
tradeIds:
  source: postgres
  dsn: "postgres://load@localhost/trades"
  refreshInterval: 20ms
scenarios:
  reads: { executor: constant-vus, exec: read_trade, target: api, vus: 1, duration: 1s }
`)

	b := NewBuilder(metrics.NewSink(), nil)
	b.open = func(ctx context.Context, name string, tc *config.TargetConfig) (transport.Transporter, error) {
		return &fakeTarget{}, nil
	}

	var mu sync.Mutex
	loads := 0
	b.loadIDs = func(ctx context.Context, ids *config.TradeIDsConfig, seed int64) (*payload.IDPool, error) {
		mu.Lock()
		defer mu.Unlock()
		loads++
		switch loads {
		case 1:
			return payload.NewIDPool([]string{"TRD-1"})
		case 2:
			return nil, errors.New("connection reset")
		default:
			return payload.NewIDPool([]string{"TRD-1", "TRD-2", "TRD-3"})
		}
	}

	plan, err := b.Build(cfg)
	require.NoError(t, err)
	data, err := plan.Setup(context.Background())
	require.NoError(t, err)
	res := data.(*Resources)
	assert.Equal(t, 1, res.IDs().Len())

	assert.Eventually(t, func() bool { return res.IDs().Len() == 3 }, 2*time.Second, 5*time.Millisecond,
		"pool should be swapped after a failed refresh")

	require.NoError(t, plan.Teardown(context.Background(), data))
	mu.Lock()
	stopped := loads
	mu.Unlock()

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, stopped, loads, "no refresh after teardown")
}

func TestSetup_NoRefreshForGeneratedIDs(t *testing.T) {
	cfg := loadConfig(t, `
targets:
  api: { type: http, baseUrl: "http://localhost:8093" }
tradeIds: { source: generate, count: 5 }
scenarios:
  reads: { executor: constant-vus, exec: read_trade, target: api, vus: 1, duration: 1s }
`)

	b := NewBuilder(metrics.NewSink(), nil)
	b.open = func(ctx context.Context, name string, tc *config.TargetConfig) (transport.Transporter, error) {
		return &fakeTarget{}, nil
	}

	data, err := mustBuild(t, b, cfg).Setup(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data.(*Resources).stopRefresh)
}

func mustBuild(t *testing.T, b *Builder, cfg *config.TestConfig) engine.Plan {
	t.Helper()
	plan, err := b.Build(cfg)
	require.NoError(t, err)
	return plan
}

func TestLoadTradeIDs(t *testing.T) {
	ctx := context.Background()

	pool, err := LoadTradeIDs(ctx, &config.TradeIDsConfig{Source: config.IDSourceGenerate, Count: 50, MaxAge: config.Duration(time.Hour)}, 1)
	require.NoError(t, err)
	assert.Equal(t, 50, pool.Len())

	pool, err = LoadTradeIDs(ctx, &config.TradeIDsConfig{Source: config.IDSourceList, IDs: []string{"a", "b"}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Len())

	_, err = LoadTradeIDs(ctx, &config.TradeIDsConfig{Source: config.IDSourceList}, 0)
	assert.ErrorIs(t, err, payload.ErrEmptyPool)

	_, err = LoadTradeIDs(ctx, &config.TradeIDsConfig{Source: "s3"}, 0)
	assert.Error(t, err)

	_, err = LoadTradeIDs(ctx, nil, 0)
	assert.Error(t, err)
}

func TestLoadTradeIDs_PostgresUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := LoadTradeIDs(ctx, &config.TradeIDsConfig{
		Source: config.IDSourcePostgres,
		DSN:    "postgres://load@127.0.0.1:1/trades?sslmode=disable&connect_timeout=1",
		Query:  config.DefaultTradeIDQuery,
		Limit:  10,
	}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to database")
}

func TestOpenTarget(t *testing.T) {
	tr, err := OpenTarget(context.Background(), "api", &config.TargetConfig{
		Type:          config.TargetHTTP,
		BaseURL:       "http://localhost:8093",
		SuccessStatus: []int{200, 404},
	})
	require.NoError(t, err)
	defer tr.Close()

	h, ok := tr.(*transport.HTTP)
	require.True(t, ok)
	assert.True(t, h.Success().Match(404))
	assert.False(t, h.Success().Match(500))

	_, err = OpenTarget(context.Background(), "x", &config.TargetConfig{Type: "grpc"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = OpenTarget(ctx, "api", &config.TargetConfig{Type: config.TargetHTTP, BaseURL: "http://localhost"})
	assert.ErrorIs(t, err, context.Canceled)
}
