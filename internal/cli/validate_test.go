package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	path := writeConfig(t, "http://localhost:8080", "30s", `
thresholds:
  "http_req_duration{operation:reads}": ["p(95)<100"]
`)

	code, stdout, _ := runArgs(t, "validate", "-c", path, "--no-color")
	if code != ExitOK {
		t.Fatalf("exit code = %d, want %d\n%s", code, ExitOK, stdout)
	}
	if !strings.Contains(stdout, "cli-reads: configuration is valid") {
		t.Errorf("output = %q", stdout)
	}
	if !strings.Contains(stdout, "constant-vus") {
		t.Errorf("output should list scenarios: %q", stdout)
	}
}

func TestValidate_Invalid(t *testing.T) {
	path := writeConfig(t, "ftp://localhost", "30s", "")

	code, stdout, _ := runArgs(t, "validate", "-c", path, "--no-color")
	if code != ExitConfigError {
		t.Errorf("exit code = %d, want %d", code, ExitConfigError)
	}
	if !strings.Contains(stdout, "targets.reader.baseUrl") {
		t.Errorf("output should name the bad field: %q", stdout)
	}
}

func TestValidate_EmptyGeneratorSet(t *testing.T) {
	doc := `
settings:
  generator:
    instruments: [{ symbol: "SBER", type: EQUITY, exchange: MOEX }]
    sides: []
    orderTypes: [MARKET]
    clientIds: [CLI-1]
    counterpartyIds: [CP-1]
    brokers: [ABC]
    minQuantity: 1
    maxQuantity: 10
targets:
  bus: { type: kafka, brokers: ["localhost:9092"], topic: trades }
scenarios:
  publish: { executor: constant-vus, exec: publish_trade, target: bus, vus: 1, duration: 1s }
`
	path := filepath.Join(t.TempDir(), "gen.yaml")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	code, stdout, _ := runArgs(t, "validate", "-c", path, "--no-color")
	if code != ExitConfigError {
		t.Errorf("exit code = %d, want %d", code, ExitConfigError)
	}
	if !strings.Contains(stdout, "settings.generator") || !strings.Contains(stdout, "sides: choice set is empty") {
		t.Errorf("output should name the empty set: %q", stdout)
	}
}
