package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/tradeload/internal/performance/executor"
	"github.com/wesleyorama2/tradeload/pkg/jsonschema"
)

//go:embed schema.json
var schemaJSON []byte

var documentSchema = jsonschema.MustCompile("schema.json", schemaJSON)

// Load reads, parses, defaults and validates a configuration file.
// Any problem with the document is returned as *ValidationErrors.
func Load(path string) (*TestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseConfig(data, path)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig parses configuration data after checking it against the
// embedded JSON schema.
//
// The format is determined by the file extension in path:
//   - .json -> JSON
//   - anything else -> YAML
func ParseConfig(data []byte, path string) (*TestConfig, error) {
	isJSON := strings.EqualFold(filepath.Ext(path), ".json")

	doc, err := decodeGeneric(data, isJSON)
	if err != nil {
		return nil, err
	}
	if err := documentSchema.Validate(doc); err != nil {
		return nil, schemaErrors(err)
	}

	var config TestConfig
	if isJSON {
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	return &config, nil
}

// decodeGeneric decodes data into the plain JSON shapes the schema
// validator expects. YAML documents are normalized through JSON.
func decodeGeneric(data []byte, isJSON bool) (any, error) {
	var doc any
	if isJSON {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
		return doc, nil
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if doc == nil {
		return nil, errors.New("failed to parse YAML config: document is empty")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return normalized, nil
}

// schemaErrors converts schema violations into ValidationErrors keyed by
// dotted field paths.
func schemaErrors(err error) error {
	var violations jsonschema.ValidationErrors
	if !errors.As(err, &violations) {
		return err
	}

	errs := &ValidationErrors{}
	for _, v := range violations {
		var violation *jsonschema.Violation
		if errors.As(v, &violation) {
			errs.Add(pointerToField(violation.Location), violation.Message)
			continue
		}
		errs.Add("", v.Error())
	}
	return errs
}

// pointerToField turns "/scenarios/reads/stages/0/target" into
// "scenarios.reads.stages[0].target".
func pointerToField(pointer string) string {
	var sb strings.Builder
	for _, part := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		if part == "" {
			continue
		}
		part = strings.ReplaceAll(strings.ReplaceAll(part, "~1", "/"), "~0", "~")
		if isIndex(part) {
			sb.WriteString("[" + part + "]")
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func isIndex(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
//
// Returns the parsed duration or an error.
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	if isIndex(s) {
		var seconds int64
		if _, err := fmt.Sscanf(s, "%d", &seconds); err == nil {
			return time.Duration(seconds) * time.Second, nil
		}
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// Defaults applied by ApplyDefaults.
const (
	DefaultTradeIDCount = 10000
	DefaultTradeIDAge   = time.Hour
	DefaultTradeIDQuery = "SELECT id FROM trades ORDER BY created_at DESC LIMIT $1"
	DefaultLogLevel     = "info"
	DefaultHookTimeout  = time.Minute
)

// ApplyDefaults applies default values to a TestConfig.
func ApplyDefaults(config *TestConfig) {
	if config.Settings.LogLevel == "" {
		config.Settings.LogLevel = DefaultLogLevel
	}
	if config.Settings.SetupTimeout == 0 {
		config.Settings.SetupTimeout = Duration(DefaultHookTimeout)
	}
	if config.Settings.TeardownTimeout == 0 {
		config.Settings.TeardownTimeout = Duration(DefaultHookTimeout)
	}

	if config.TradeIDs == nil {
		config.TradeIDs = &TradeIDsConfig{Source: IDSourceGenerate}
	}
	ids := config.TradeIDs
	switch ids.Source {
	case IDSourceGenerate:
		if ids.Count == 0 {
			ids.Count = DefaultTradeIDCount
		}
		if ids.MaxAge == 0 {
			ids.MaxAge = Duration(DefaultTradeIDAge)
		}
	case IDSourcePostgres:
		if ids.Query == "" {
			ids.Query = DefaultTradeIDQuery
		}
		if ids.Limit == 0 {
			ids.Limit = DefaultTradeIDCount
		}
	}

	for name, sc := range config.Scenarios {
		if sc == nil {
			continue
		}
		if sc.Operation == "" {
			sc.Operation = name
		}
		// An explicit "0s" is kept: it force-stops without a grace window.
		if sc.GracefulStop == "" {
			sc.GracefulStop = executor.DefaultGracefulStop.String()
		}
		if sc.GracefulRampDown == "" {
			sc.GracefulRampDown = executor.DefaultGracefulRampDown.String()
		}
	}
}
