package workload

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/wesleyorama2/tradeload/internal/performance/config"
	"github.com/wesleyorama2/tradeload/internal/performance/payload"
)

// LoadTradeIDs builds the pool read workloads pick from.
func LoadTradeIDs(ctx context.Context, ids *config.TradeIDsConfig, seed int64) (*payload.IDPool, error) {
	if ids == nil {
		return nil, errors.New("trade IDs: no source configured")
	}

	switch ids.Source {
	case config.IDSourceGenerate:
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))
		return payload.NewIDPool(payload.GenerateIDs(rng, ids.Count, time.Now(), time.Duration(ids.MaxAge)))

	case config.IDSourceList:
		return payload.NewIDPool(ids.IDs)

	case config.IDSourcePostgres:
		list, err := queryTradeIDs(ctx, ids.DSN, ids.Query, ids.Limit)
		if err != nil {
			return nil, fmt.Errorf("trade IDs: %w", err)
		}
		return payload.NewIDPool(list)

	default:
		return nil, fmt.Errorf("trade IDs: unknown source %s", ids.Source)
	}
}

// queryTradeIDs reads the first column of query. limit is bound to $1 when
// the query references it.
func queryTradeIDs(ctx context.Context, dsn, query string, limit int) ([]string, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	var rows *sql.Rows
	if strings.Contains(query, "$1") {
		rows, err = db.QueryContext(ctx, query, limit)
	} else {
		rows, err = db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("query trade IDs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan trade ID: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read trade IDs: %w", err)
	}
	return out, nil
}

// startRefresh re-queries the trade IDs every interval and swaps the pool
// in res. A failed or empty query keeps the current pool. The returned
// function stops the refresher and waits for it.
func (b *Builder) startRefresh(res *Resources, ids *config.TradeIDsConfig, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			qctx, qcancel := context.WithTimeout(ctx, interval)
			pool, err := b.loadIDs(qctx, ids, 0)
			qcancel()
			if err != nil {
				if ctx.Err() == nil {
					b.logger.Warn("trade ID refresh failed, keeping the current pool", zap.Error(err))
				}
				continue
			}
			res.SetIDs(pool)
			b.logger.Debug("trade ID pool refreshed", zap.Int("ids", pool.Len()))
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
