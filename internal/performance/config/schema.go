// Package config provides configuration parsing and validation for load test plans.
package config

import (
	"time"

	"github.com/wesleyorama2/tradeload/internal/performance/payload"
)

// TestConfig is the root configuration for a load test.
//
// Example YAML:
//
//	name: read-load
//	targets:
//	  db_reader:
//	    type: http
//	    baseUrl: http://trade-consumer-db-reader:8093
//	    successStatus: [200, 404]
//	tradeIds:
//	  source: generate
//	  count: 10000
//	scenarios:
//	  db_reads:
//	    executor: ramping-vus
//	    exec: read_trade
//	    target: db_reader
//	    operation: db_read
//	    stages:
//	      - { duration: 30s, target: 50 }
//	      - { duration: 30s, target: 0 }
//	thresholds:
//	  "http_req_duration{operation:db_read}": ["p(95)<100"]
type TestConfig struct {
	// Name of the test (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Description of the test (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Settings contains run-wide settings
	Settings Settings `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Targets are the systems under test, referenced by scenarios by name
	Targets map[string]*TargetConfig `json:"targets,omitempty" yaml:"targets,omitempty"`

	// TradeIDs configures the pool of IDs read workloads pick from
	TradeIDs *TradeIDsConfig `json:"tradeIds,omitempty" yaml:"tradeIds,omitempty"`

	// Scenarios defines the load profiles to run.
	// Each scenario runs independently with its own executor.
	Scenarios map[string]*ScenarioConfig `json:"scenarios" yaml:"scenarios"`

	// Thresholds map a metric selector to its pass/fail expressions
	Thresholds map[string][]string `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// Settings contains run-wide settings.
type Settings struct {
	// Seed makes worker random sources reproducible; 0 picks one per run
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	// MetricsAddr serves live metrics in Prometheus format when set, e.g. ":9090"
	MetricsAddr string `json:"metricsAddr,omitempty" yaml:"metricsAddr,omitempty"`

	// SetupTimeout bounds the setup phase
	SetupTimeout Duration `json:"setupTimeout,omitempty" yaml:"setupTimeout,omitempty"`

	// TeardownTimeout bounds the teardown phase
	TeardownTimeout Duration `json:"teardownTimeout,omitempty" yaml:"teardownTimeout,omitempty"`

	// Generator overrides the choice sets of generated trades
	Generator *payload.GeneratorConfig `json:"generator,omitempty" yaml:"generator,omitempty"`
}

// Target types.
const (
	TargetHTTP  = "http"
	TargetKafka = "kafka"
	TargetRedis = "redis"
	TargetMQTT  = "mqtt"
)

// TargetConfig describes one system under test. Which fields apply depends
// on Type.
type TargetConfig struct {
	// Type is one of http, kafka, redis, mqtt
	Type string `json:"type" yaml:"type"`

	// Timeout bounds a single request
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// HTTP
	BaseURL            string            `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	SuccessStatus      []int             `json:"successStatus,omitempty" yaml:"successStatus,omitempty"`
	HealthPath         string            `json:"healthPath,omitempty" yaml:"healthPath,omitempty"`
	Headers            map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	MaxConnsPerHost    int               `json:"maxConnsPerHost,omitempty" yaml:"maxConnsPerHost,omitempty"`
	InsecureSkipVerify bool              `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`

	// Kafka
	Brokers      []string `json:"brokers,omitempty" yaml:"brokers,omitempty"`
	Topic        string   `json:"topic,omitempty" yaml:"topic,omitempty"`
	RequiredAcks int      `json:"requiredAcks,omitempty" yaml:"requiredAcks,omitempty"`

	// Redis
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Stream   string `json:"stream,omitempty" yaml:"stream,omitempty"`
	PoolSize int    `json:"poolSize,omitempty" yaml:"poolSize,omitempty"`
	MaxLen   int64  `json:"maxLen,omitempty" yaml:"maxLen,omitempty"`

	// MQTT; Topic is shared with Kafka
	Broker   string `json:"broker,omitempty" yaml:"broker,omitempty"`
	ClientID string `json:"clientId,omitempty" yaml:"clientId,omitempty"`
	QoS      int    `json:"qos,omitempty" yaml:"qos,omitempty"`
	Retain   bool   `json:"retain,omitempty" yaml:"retain,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

// Trade ID sources.
const (
	IDSourceGenerate = "generate"
	IDSourcePostgres = "postgres"
	IDSourceList     = "list"
)

// TradeIDsConfig configures where read workloads get trade IDs from.
type TradeIDsConfig struct {
	// Source is one of generate, postgres, list
	Source string `json:"source" yaml:"source"`

	// generate: Count IDs with timestamps within MaxAge of now
	Count  int      `json:"count,omitempty" yaml:"count,omitempty"`
	MaxAge Duration `json:"maxAge,omitempty" yaml:"maxAge,omitempty"`

	// postgres: rows of Query (first column) from DSN, at most Limit
	DSN   string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Query string `json:"query,omitempty" yaml:"query,omitempty"`
	Limit int    `json:"limit,omitempty" yaml:"limit,omitempty"`

	// RefreshInterval re-runs Query during the run and replaces the pool.
	// Zero loads the pool once.
	RefreshInterval Duration `json:"refreshInterval,omitempty" yaml:"refreshInterval,omitempty"`

	// list: the IDs themselves
	IDs []string `json:"ids,omitempty" yaml:"ids,omitempty"`
}

// Payload encodings of publish_trade.
const (
	EncodingJSON   = "json"
	EncodingBase64 = "base64"
)

// Built-in iteration functions.
const (
	ExecReadTrade     = "read_trade"
	ExecPublishTrade  = "publish_trade"
	ExecScrapeMetrics = "scrape_metrics"
)

// ScenarioConfig defines a single load testing scenario.
type ScenarioConfig struct {
	// Executor specifies the load generation strategy
	// Options: "constant-vus", "ramping-vus", "constant-arrival-rate", "ramping-arrival-rate"
	Executor string `json:"executor" yaml:"executor"`

	// Exec names the iteration function: read_trade, publish_trade, scrape_metrics
	Exec string `json:"exec" yaml:"exec"`

	// Target names the entry of targets the iteration function talks to
	Target string `json:"target" yaml:"target"`

	// Operation tags every request of the scenario and prefixes its custom
	// metrics. Defaults to the scenario name.
	Operation string `json:"operation,omitempty" yaml:"operation,omitempty"`

	// Path overrides the request path of the iteration function. For
	// read_trade "{id}" is replaced by the picked trade ID.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Families lists the metric families scrape_metrics records; empty records all
	Families []string `json:"families,omitempty" yaml:"families,omitempty"`

	// Encoding of published trades: "json" (default) or "base64"
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty"`

	// ExpectSource adds a read_trade check that the body's "source" equals it
	ExpectSource string `json:"expectSource,omitempty" yaml:"expectSource,omitempty"`

	// VUs is the number of workers (for VU-based executors)
	VUs int `json:"vus,omitempty" yaml:"vus,omitempty"`

	// StartVUs is the worker count before the first stage (ramping-vus)
	StartVUs int `json:"startVUs,omitempty" yaml:"startVUs,omitempty"`

	// Duration is how long to run (e.g., "30s", "2m", "1h")
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Rate is iterations per TimeUnit (for arrival-rate executors)
	Rate float64 `json:"rate,omitempty" yaml:"rate,omitempty"`

	// StartRate is the rate before the first stage (ramping-arrival-rate)
	StartRate float64 `json:"startRate,omitempty" yaml:"startRate,omitempty"`

	// TimeUnit is the period rates are expressed in, default "1s"
	TimeUnit string `json:"timeUnit,omitempty" yaml:"timeUnit,omitempty"`

	// PreAllocatedVUs is the number of workers to pre-allocate (for arrival-rate executors)
	PreAllocatedVUs int `json:"preAllocatedVUs,omitempty" yaml:"preAllocatedVUs,omitempty"`

	// MaxVUs is the maximum number of workers to scale up to (for arrival-rate executors)
	MaxVUs int `json:"maxVUs,omitempty" yaml:"maxVUs,omitempty"`

	// Stages defines ramping stages (for ramping executors)
	Stages []StageConfig `json:"stages,omitempty" yaml:"stages,omitempty"`

	// StartTime specifies when this scenario should start (relative to test start)
	StartTime string `json:"startTime,omitempty" yaml:"startTime,omitempty"`

	// GracefulStop is how long to wait for iterations to finish
	GracefulStop string `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// GracefulRampDown is how long a worker removed by a falling target may finish
	GracefulRampDown string `json:"gracefulRampDown,omitempty" yaml:"gracefulRampDown,omitempty"`

	// Pacing controls time between iterations
	Pacing *PacingConfig `json:"pacing,omitempty" yaml:"pacing,omitempty"`

	// Tags are custom tags for this scenario's metrics
	Tags map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// StageConfig defines a single stage in a ramping executor.
type StageConfig struct {
	// Duration of this stage (e.g., "30s", "2m")
	Duration string `json:"duration" yaml:"duration"`

	// Target worker count (for ramping-vus) or rate (for ramping-arrival-rate)
	Target float64 `json:"target" yaml:"target"`

	// Name is an optional name for this stage (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// PacingConfig controls pacing between iterations.
type PacingConfig struct {
	// Type is the pacing strategy: "none", "constant", "random"
	Type string `json:"type" yaml:"type"`

	// Duration is the wait time for constant pacing
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Min is the minimum wait time for random pacing
	Min string `json:"min,omitempty" yaml:"min,omitempty"`

	// Max is the maximum wait time for random pacing
	Max string `json:"max,omitempty" yaml:"max,omitempty"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
