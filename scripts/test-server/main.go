// Stub trade service for running tradeload locally.
//
// It accepts published trades on POST /api/trades, serves them back on
// GET /api/trades/{id}, and exposes health and Prometheus endpoints in the
// same places as the real services:
//
//	go run ./scripts/test-server -addr :8080
//	tradeload run -c scripts/local.yaml
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"math/rand"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type store struct {
	mu     sync.RWMutex
	trades map[string]json.RawMessage
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	latency := flag.Duration("latency", 0, "maximum random latency added to reads")
	flag.Parse()

	runtime.GOMAXPROCS(runtime.NumCPU())

	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trades_processed_total",
		Help: "Trades accepted by the stub.",
	}, []string{"source"})
	reads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trades_read_total",
		Help: "Trade reads by result.",
	}, []string{"result"})
	reg := prometheus.NewRegistry()
	reg.MustRegister(processed, reads)

	s := &store{trades: make(map[string]json.RawMessage)}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/trades", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var trade struct {
			TradeID string `json:"tradeId"`
		}
		if err := json.Unmarshal(body, &trade); err != nil || trade.TradeID == "" {
			http.Error(w, "tradeId is required", http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.trades[trade.TradeID] = body
		s.mu.Unlock()
		processed.WithLabelValues("http").Inc()
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("GET /api/trades/{id}", func(w http.ResponseWriter, r *http.Request) {
		if *latency > 0 {
			time.Sleep(time.Duration(rand.Int63n(int64(*latency))))
		}
		id := r.PathValue("id")
		s.mu.RLock()
		trade, ok := s.trades[id]
		s.mu.RUnlock()

		w.Header().Set("Content-Type", "application/json")
		if ok {
			reads.WithLabelValues("hit").Inc()
			w.Write(trade)
			return
		}
		// Unknown IDs are synthesized so generated ID pools read successfully.
		reads.WithLabelValues("synthesized").Inc()
		json.NewEncoder(w).Encode(map[string]any{
			"tradeId": id,
			"source":  "database",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("GET /actuator/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"UP"}`))
	})

	mux.Handle("GET /actuator/prometheus", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	log.Printf("Starting stub trade service on %s", *addr)
	log.Printf("Endpoints: POST /api/trades, GET /api/trades/{id}, GET /actuator/health, GET /actuator/prometheus")

	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
