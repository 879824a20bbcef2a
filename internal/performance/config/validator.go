package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/wesleyorama2/tradeload/internal/performance/executor"
	"github.com/wesleyorama2/tradeload/internal/performance/threshold"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate validates the entire test configuration.
//
// Returns nil if valid, or a *ValidationErrors containing all validation
// errors, ordered by scenario and target name.
func (c *TestConfig) Validate() error {
	errs := &ValidationErrors{}

	for _, name := range sortedKeys(c.Targets) {
		validateTarget("targets."+name, c.Targets[name], errs)
	}

	if len(c.Scenarios) == 0 {
		errs.Add("scenarios", "at least one scenario is required")
	}
	for _, name := range sortedKeys(c.Scenarios) {
		validateScenario(name, c.Scenarios[name], c.Targets, errs)
	}

	if c.TradeIDs != nil {
		validateTradeIDs("tradeIds", c.TradeIDs, errs)
	}

	if _, err := c.ParseThresholds(); err != nil {
		for _, e := range unjoin(err) {
			errs.Add("thresholds", e.Error())
		}
	}

	validateSettings(&c.Settings, errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// validateScenario validates a single scenario configuration.
func validateScenario(name string, sc *ScenarioConfig, targets map[string]*TargetConfig, errs *ValidationErrors) {
	prefix := "scenarios." + name
	if sc == nil {
		errs.Add(prefix, "scenario is empty")
		return
	}

	switch sc.Exec {
	case ExecReadTrade, ExecPublishTrade, ExecScrapeMetrics:
	case "":
		errs.Add(prefix+".exec", "exec is required")
	default:
		errs.Add(prefix+".exec", fmt.Sprintf("unknown iteration function: %s", sc.Exec))
	}

	switch sc.Encoding {
	case "", EncodingJSON, EncodingBase64:
	default:
		errs.Add(prefix+".encoding", fmt.Sprintf("unknown encoding: %s", sc.Encoding))
	}

	target, ok := targets[sc.Target]
	switch {
	case sc.Target == "":
		errs.Add(prefix+".target", "target is required")
	case !ok:
		errs.Add(prefix+".target", fmt.Sprintf("unknown target: %s", sc.Target))
	case target != nil && target.Type != TargetHTTP && (sc.Exec == ExecReadTrade || sc.Exec == ExecScrapeMetrics):
		errs.Add(prefix+".target", fmt.Sprintf("%s needs an http target, %s is %s", sc.Exec, sc.Target, target.Type))
	}

	switch {
	case sc.Executor == "":
		errs.Add(prefix+".executor", "executor is required")
		return
	case !executor.IsValidExecutorType(sc.Executor):
		supported := make([]string, 0, 4)
		for _, t := range executor.GetSupportedExecutors() {
			supported = append(supported, string(t))
		}
		errs.Add(prefix+".executor", fmt.Sprintf("unknown executor: %s (supported: %s)", sc.Executor, strings.Join(supported, ", ")))
		return
	}

	ec, err := sc.ExecutorConfig(name)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			errs.Add(prefix+"."+ve.Field, ve.Message)
		} else {
			errs.Add(prefix, err.Error())
		}
		return
	}
	if err := ec.Validate(); err != nil {
		var ve *executor.ValidationError
		if errors.As(err, &ve) {
			errs.Add(prefix+"."+ve.Field, ve.Message)
		} else {
			errs.Add(prefix, err.Error())
		}
	}
}

// validateTarget validates one target for its type.
func validateTarget(prefix string, t *TargetConfig, errs *ValidationErrors) {
	if t == nil {
		errs.Add(prefix, "target is empty")
		return
	}

	switch t.Type {
	case TargetHTTP:
		if t.BaseURL == "" {
			errs.Add(prefix+".baseUrl", "baseUrl is required for http targets")
		} else if u, err := url.Parse(t.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs.Add(prefix+".baseUrl", fmt.Sprintf("invalid URL: %s", t.BaseURL))
		}
		for i, code := range t.SuccessStatus {
			if code < 100 || code > 599 {
				errs.Add(fmt.Sprintf("%s.successStatus[%d]", prefix, i), fmt.Sprintf("invalid status code: %d", code))
			}
		}

	case TargetKafka:
		if len(t.Brokers) == 0 {
			errs.Add(prefix+".brokers", "at least one broker is required for kafka targets")
		}
		if t.Topic == "" {
			errs.Add(prefix+".topic", "topic is required for kafka targets")
		}

	case TargetRedis:
		if t.Addr == "" {
			errs.Add(prefix+".addr", "addr is required for redis targets")
		}
		if t.Stream == "" {
			errs.Add(prefix+".stream", "stream is required for redis targets")
		}

	case TargetMQTT:
		if t.Broker == "" {
			errs.Add(prefix+".broker", "broker is required for mqtt targets")
		}
		if t.Topic == "" {
			errs.Add(prefix+".topic", "topic is required for mqtt targets")
		}
		if t.QoS < 0 || t.QoS > 2 {
			errs.Add(prefix+".qos", "qos must be 0, 1 or 2")
		}

	case "":
		errs.Add(prefix+".type", "type is required")
	default:
		errs.Add(prefix+".type", fmt.Sprintf("unknown target type: %s", t.Type))
	}

	if t.Timeout < 0 {
		errs.Add(prefix+".timeout", "timeout cannot be negative")
	}
}

// validateTradeIDs validates the trade ID source.
func validateTradeIDs(prefix string, ids *TradeIDsConfig, errs *ValidationErrors) {
	switch ids.Source {
	case IDSourceGenerate:
		if ids.Count <= 0 {
			errs.Add(prefix+".count", "count must be greater than 0")
		}
	case IDSourcePostgres:
		if ids.DSN == "" {
			errs.Add(prefix+".dsn", "dsn is required for the postgres source")
		}
		if ids.Limit < 0 {
			errs.Add(prefix+".limit", "limit cannot be negative")
		}
		if ids.RefreshInterval < 0 {
			errs.Add(prefix+".refreshInterval", "cannot be negative")
		}
	case IDSourceList:
		if len(ids.IDs) == 0 {
			errs.Add(prefix+".ids", "at least one id is required for the list source")
		}
	default:
		errs.Add(prefix+".source", fmt.Sprintf("unknown trade id source: %s", ids.Source))
	}
	if ids.RefreshInterval != 0 && ids.Source != IDSourcePostgres {
		errs.Add(prefix+".refreshInterval", "refreshInterval applies only to the postgres source")
	}
}

// validateSettings validates run-wide settings.
func validateSettings(s *Settings, errs *ValidationErrors) {
	switch s.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs.Add("settings.logLevel", fmt.Sprintf("invalid log level: %s", s.LogLevel))
	}
	if s.SetupTimeout < 0 {
		errs.Add("settings.setupTimeout", "cannot be negative")
	}
	if s.TeardownTimeout < 0 {
		errs.Add("settings.teardownTimeout", "cannot be negative")
	}
	if s.Generator != nil {
		if err := s.Generator.Validate(); err != nil {
			errs.Add("settings.generator", err.Error())
		}
	}
}

// unjoin flattens an errors.Join result.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseThresholds parses the thresholds section.
func (c *TestConfig) ParseThresholds() ([]*threshold.Threshold, error) {
	return threshold.ParseAll(c.Thresholds)
}
