package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"

	"github.com/wesleyorama2/tradeload/internal/performance/config"
	"github.com/wesleyorama2/tradeload/internal/performance/engine"
	"github.com/wesleyorama2/tradeload/internal/performance/threshold"
	"github.com/wesleyorama2/tradeload/internal/performance/transport"
)

// PrintSummary prints the end-of-run report: scenarios, metric aggregates
// and threshold results with observed against required values.
func (c *Console) PrintSummary(result *engine.TestResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endProgress()

	if c.quiet {
		c.writeln(c.verdict(result))
		return
	}

	line := strings.Repeat(rule, ruleWidth)
	c.writeln("")
	c.writeln(c.p.rule.Sprint(line))
	c.writeln(fmt.Sprintf("%s - %s", c.p.title.Sprint(result.Name), c.verdict(result)))
	c.writeln(c.p.rule.Sprint(line))
	c.writeln(fmt.Sprintf("Duration:  %s", c.p.accent.Sprint(formatDuration(result.Duration))))
	if result.Error != "" {
		c.writeln(fmt.Sprintf("Error:     %s", c.p.fail.Sprint(result.Error)))
	}
	c.writeln("")

	if len(result.Scenarios) > 0 {
		c.writeln(c.p.section.Sprint("Scenarios"))
		names := make([]string, 0, len(result.Scenarios))
		for name := range result.Scenarios {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c.writeln("  " + c.scenarioLine(result.Scenarios[name]))
		}
		c.writeln("")
	}

	if len(result.Metrics) > 0 {
		c.writeln(c.p.section.Sprint("Metrics"))
		for _, m := range result.Metrics {
			c.writeln("  " + c.metricLine(m))
		}
		c.writeln("")
	}

	if result.Thresholds != nil && len(result.Thresholds.Results) > 0 {
		c.writeln(c.p.section.Sprint("Thresholds"))
		for _, r := range result.Thresholds.Results {
			c.writeln("  " + c.thresholdLine(r))
		}
		c.writeln("")
	}
}

func (c *Console) verdict(result *engine.TestResult) string {
	switch {
	case result.Error != "":
		return c.p.fail.Sprint("ERROR ✗")
	case result.Aborted && result.Passed:
		return c.p.warn.Sprint("ABORTED (thresholds passed)")
	case result.Aborted:
		return c.p.fail.Sprint("ABORTED ✗")
	case result.Passed:
		return c.p.ok.Sprint("PASSED ✓")
	default:
		return c.p.fail.Sprint("FAILED ✗")
	}
}

func (c *Console) scenarioLine(s *engine.ScenarioResult) string {
	if s.Skipped {
		return fmt.Sprintf("%-24s %s", s.Name, c.p.dim.Sprint("skipped"))
	}
	line := fmt.Sprintf("%-24s %-22s %s iterations  %s dropped  max %d VUs  %s",
		s.Name,
		c.p.dim.Sprint(s.Executor),
		formatNumber(s.Iterations),
		formatNumber(s.Dropped),
		s.MaxVUs,
		formatDuration(s.Duration))
	if s.Error != "" {
		line += "  " + c.p.fail.Sprint(s.Error)
	}
	return line
}

// metricLine renders one metric in the dotted k6 style.
func (c *Console) metricLine(m engine.MetricSummary) string {
	name := m.Name + strings.Repeat(".", max(2, 32-len(m.Name)))

	var value string
	switch m.Kind {
	case "counter":
		if isByteCounter(m.Name) {
			value = c.p.accent.Sprint(bytefmt.ByteSize(uint64(m.Sum)))
		} else {
			value = c.p.accent.Sprint(formatFloat(m.Sum))
		}
	case "rate":
		trues := int(m.Sum)
		value = fmt.Sprintf("%s  %s ✓ %s ✗",
			c.p.accent.Sprintf("%.2f%%", m.Rate*100),
			formatNumber(int64(trues)),
			formatNumber(int64(m.Count-trues)))
	case "trend":
		f := formatFloat
		if isDuration(m.Name) {
			f = formatMillis
		}
		value = fmt.Sprintf("avg=%s min=%s med=%s p(90)=%s p(95)=%s p(99)=%s max=%s",
			c.p.accent.Sprint(f(m.Avg)), f(m.Min), f(m.Med), f(m.P90), f(m.P95), f(m.P99), f(m.Max))
	default:
		value = formatFloat(m.Sum)
	}
	return c.p.dim.Sprint(name) + ": " + value
}

func (c *Console) thresholdLine(r threshold.Result) string {
	if r.Err != nil {
		return fmt.Sprintf("%s %s %s  %s",
			c.p.fail.Sprint("✗"), r.Selector, r.Expression, c.p.warn.Sprintf("(%v)", r.Err))
	}
	mark := c.p.ok.Sprint("✓")
	if !r.Passed {
		mark = c.p.fail.Sprint("✗")
	}
	return fmt.Sprintf("%s %s %s  observed %s, required %s %s",
		mark, r.Selector, r.Expression,
		formatFloat(r.Observed), r.Operator, formatFloat(r.Required))
}

// PrintError prints a failure that happened before or outside the run,
// listing each configuration problem on its own line.
func (c *Console) PrintError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endProgress()

	var verrs *config.ValidationErrors
	if errors.As(err, &verrs) {
		c.writeln(c.p.fail.Sprintf("Configuration error (%d):", len(verrs.Errors)))
		for _, e := range verrs.Errors {
			field := e.Field
			if field == "" {
				field = "(document)"
			}
			c.writeln(fmt.Sprintf("  %s %s: %s", c.p.fail.Sprint("✗"), field, e.Message))
		}
		return
	}
	c.writeln(c.p.fail.Sprint("Error: ") + err.Error())
}

// WriteJSON writes result as indented JSON.
func WriteJSON(w io.Writer, result *engine.TestResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to write JSON result: %w", err)
	}
	return nil
}

func isByteCounter(name string) bool {
	return name == transport.MetricDataSent || name == transport.MetricDataReceived
}

// isDuration reports whether a trend holds milliseconds.
func isDuration(name string) bool {
	return strings.HasSuffix(name, "duration")
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatMillis formats a millisecond value.
func formatMillis(ms float64) string {
	switch {
	case ms <= 0:
		return "0ms"
	case ms < 1:
		return fmt.Sprintf("%.0fµs", ms*1000)
	case ms < 1000:
		return fmt.Sprintf("%.2fms", ms)
	case ms < 60000:
		return fmt.Sprintf("%.2fs", ms/1000)
	default:
		return fmt.Sprintf("%.1fm", ms/60000)
	}
}

func formatFloat(v float64) string {
	if v == float64(int64(v)) && v < 1e15 && v > -1e15 {
		return formatNumber(int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}
