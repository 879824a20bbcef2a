// Package output renders live progress and the end-of-run summary.
package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/wesleyorama2/tradeload/internal/performance/engine"
)

const (
	clearLine = "\r\033[2K"

	ruleWidth = 56
	rule      = "━"

	progressFilled = "█"
	progressEmpty  = "░"
)

// palette holds the colors used by the console.
type palette struct {
	title   *color.Color
	rule    *color.Color
	accent  *color.Color
	dim     *color.Color
	ok      *color.Color
	warn    *color.Color
	fail    *color.Color
	section *color.Color
}

func newPalette(enabled bool) *palette {
	p := &palette{
		title:   color.New(color.Bold),
		rule:    color.New(color.FgCyan),
		accent:  color.New(color.FgCyan),
		dim:     color.New(color.Faint),
		ok:      color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed, color.Bold),
		section: color.New(color.Bold, color.Underline),
	}
	for _, c := range []*color.Color{p.title, p.rule, p.accent, p.dim, p.ok, p.warn, p.fail, p.section} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Config configures a Console.
type Config struct {
	// Writer defaults to os.Stdout.
	Writer io.Writer

	// Quiet prints only the final verdict.
	Quiet bool

	// NoColor disables colors even on a terminal.
	NoColor bool

	// ForceTTY treats Writer as a terminal, redrawing the progress line in place.
	ForceTTY bool
}

// Console writes progress and summaries for one run.
type Console struct {
	w     io.Writer
	isTTY bool
	quiet bool
	p     *palette

	mu       sync.Mutex
	drawn    bool
	lastLine time.Time
}

// NewConsole creates a console.
func NewConsole(cfg Config) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	isTTY := cfg.ForceTTY || isTerminal(cfg.Writer)
	return &Console{
		w:     cfg.Writer,
		isTTY: isTTY,
		quiet: cfg.Quiet,
		p:     newPalette(!cfg.NoColor && isTTY && supportsColors()),
	}
}

// IsTTY reports whether progress is redrawn in place.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the run name and its scenarios.
func (c *Console) PrintHeader(name string, scenarios []engine.ScenarioStatus, maxDuration time.Duration) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == "" {
		name = "load test"
	}
	line := strings.Repeat(rule, ruleWidth)
	c.writeln(c.p.rule.Sprint(line))
	c.writeln(c.p.title.Sprintf("%s - Running", name))
	c.writeln(c.p.rule.Sprint(line))
	for _, s := range scenarios {
		c.writeln(fmt.Sprintf("  %-24s %s", s.Name, c.p.dim.Sprint(s.Type)))
	}
	c.writeln(fmt.Sprintf("  %-24s %s", "max duration", c.p.accent.Sprint(formatDuration(maxDuration))))
	c.writeln("")
}

// Update shows p. On a terminal the progress line is redrawn in place;
// otherwise one line is printed at most every 10 seconds.
func (c *Console) Update(p Progress) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isTTY {
		c.write(clearLine + c.renderProgress(p))
		c.drawn = true
		return
	}
	if !c.lastLine.IsZero() && time.Since(c.lastLine) < nonInteractiveInterval {
		return
	}
	c.lastLine = time.Now()
	c.writeln(c.renderPlain(p))
}

// nonInteractiveInterval spaces progress lines written to files and CI logs.
const nonInteractiveInterval = 10 * time.Second

// Watch calls Update with fresh progress from src every interval until ctx
// is done.
func (c *Console) Watch(ctx context.Context, src Source, interval time.Duration) {
	if c.quiet {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Update(ProgressFrom(src))
		}
	}
}

func (c *Console) renderProgress(p Progress) string {
	return fmt.Sprintf("%s %s  %s / %s  vus %s  iters %s  reqs %s  fail %s  p95 %s",
		c.p.ok.Sprint(progressBar(p.Fraction, 24)),
		c.p.title.Sprintf("%3.0f%%", p.Fraction*100),
		formatDuration(p.Elapsed),
		formatDuration(p.Total),
		c.p.accent.Sprint(p.ActiveVUs),
		formatNumber(p.Iterations),
		formatNumber(p.Requests),
		c.failColor(p.FailRate).Sprintf("%.1f%%", p.FailRate*100),
		formatMillis(p.IterationP95))
}

func (c *Console) renderPlain(p Progress) string {
	return fmt.Sprintf("[%s] progress %.0f%% | vus %d | iterations %d | dropped %d | requests %d | failed %.1f%% | iteration p95 %s",
		formatDuration(p.Elapsed),
		p.Fraction*100,
		p.ActiveVUs,
		p.Iterations,
		p.Dropped,
		p.Requests,
		p.FailRate*100,
		formatMillis(p.IterationP95))
}

func (c *Console) failColor(rate float64) *color.Color {
	switch {
	case rate > 0.05:
		return c.p.fail
	case rate > 0.01:
		return c.p.warn
	default:
		return c.p.ok
	}
}

// endProgress moves past a progress line drawn in place.
func (c *Console) endProgress() {
	if c.drawn {
		c.write(clearLine)
		c.drawn = false
	}
}

func (c *Console) write(s string) {
	fmt.Fprint(c.w, s)
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.w, s)
}

func progressBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}
