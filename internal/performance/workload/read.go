package workload

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/wesleyorama2/tradeload/internal/performance"
	"github.com/wesleyorama2/tradeload/internal/performance/config"
	"github.com/wesleyorama2/tradeload/internal/performance/engine"
	"github.com/wesleyorama2/tradeload/internal/performance/transport"
	"github.com/wesleyorama2/tradeload/pkg/jsonpath"
)

// DefaultReadPath is the reader services' lookup endpoint.
const DefaultReadPath = "/api/trades/{id}"

var (
	tradeIDPath = jsonpath.MustParse("$.tradeId")
	sourcePath  = jsonpath.MustParse("$.source")
)

// readTrade fetches a random trade from the ID pool. A 200 response is
// additionally checked for a tradeId and, when configured, its source.
func (b *Builder) readTrade(sc *config.ScenarioConfig) engine.ExecFunc {
	op := sc.Operation
	target := sc.Target
	path := sc.Path
	if path == "" {
		path = DefaultReadPath
	}
	expectSource := sc.ExpectSource

	return func(ctx context.Context, it *performance.Iteration, data any) error {
		res, err := resourcesFrom(data)
		if err != nil {
			return err
		}
		pool := res.IDs()
		if pool == nil {
			return fmt.Errorf("%s: no trade ID pool", op)
		}
		t, err := res.Target(target)
		if err != nil {
			return err
		}

		id := pool.Pick(it.Rand)
		tags := operationTags(it.Tags, op)

		out := t.Execute(ctx, transport.Request{
			Operation: op,
			Method:    http.MethodGet,
			Path:      strings.ReplaceAll(path, "{id}", url.PathEscape(id)),
			Tags:      it.Tags,
		})
		recordOperation(b.sink, op, out, tags)

		if out.Status == http.StatusOK {
			check(b.sink, "has tradeId", tradeIDPath.Exists(out.Body), tags)
			if expectSource != "" {
				check(b.sink, "source is "+expectSource, sourcePath.Equals(out.Body, expectSource), tags)
			}
		}

		if !out.Success {
			return fmt.Errorf("%s %s: %w", op, id, out.Err)
		}
		return nil
	}
}
