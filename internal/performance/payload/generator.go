package payload

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Instrument is one tradable symbol and its venue.
type Instrument struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Type     string `json:"type" yaml:"type"`
	Exchange string `json:"exchange" yaml:"exchange"`
}

// Instrument classes that drive price ranges.
const (
	InstrumentFXSpot = "FX_SPOT"
	InstrumentCrypto = "CRYPTO"
	InstrumentEquity = "EQUITY"
)

// GeneratorConfig holds the choice sets a TradeGenerator draws from.
type GeneratorConfig struct {
	Instruments     []Instrument `json:"instruments,omitempty" yaml:"instruments,omitempty"`
	Sides           []string     `json:"sides,omitempty" yaml:"sides,omitempty"`
	OrderTypes      []string     `json:"orderTypes,omitempty" yaml:"orderTypes,omitempty"`
	ClientIDs       []string     `json:"clientIds,omitempty" yaml:"clientIds,omitempty"`
	CounterpartyIDs []string     `json:"counterpartyIds,omitempty" yaml:"counterpartyIds,omitempty"`
	Brokers         []string     `json:"brokers,omitempty" yaml:"brokers,omitempty"`

	// MinQuantity and MaxQuantity bound the traded quantity.
	MinQuantity float64 `json:"minQuantity,omitempty" yaml:"minQuantity,omitempty"`
	MaxQuantity float64 `json:"maxQuantity,omitempty" yaml:"maxQuantity,omitempty"`
}

// DefaultGeneratorConfig returns the instrument universe and reference data
// used by the trade ingestion load tests.
func DefaultGeneratorConfig() GeneratorConfig {
	clients := make([]string, 100)
	for i := range clients {
		clients[i] = fmt.Sprintf("CLI-%09d", i+1)
	}
	counterparties := make([]string, 20)
	for i := range counterparties {
		counterparties[i] = fmt.Sprintf("CP-%09d", i+1)
	}

	return GeneratorConfig{
		Instruments: []Instrument{
			{Symbol: "USD/RUB", Type: InstrumentFXSpot, Exchange: "MOEX"},
			{Symbol: "EUR/USD", Type: InstrumentFXSpot, Exchange: "MOEX"},
			{Symbol: "GBP/USD", Type: InstrumentFXSpot, Exchange: "MOEX"},
			{Symbol: "USD/JPY", Type: InstrumentFXSpot, Exchange: "MOEX"},
			{Symbol: "BTC/USD", Type: InstrumentCrypto, Exchange: "BINANCE"},
			{Symbol: "ETH/USD", Type: InstrumentCrypto, Exchange: "BINANCE"},
			{Symbol: "SBER", Type: InstrumentEquity, Exchange: "MOEX"},
			{Symbol: "GAZP", Type: InstrumentEquity, Exchange: "MOEX"},
			{Symbol: "YNDX", Type: InstrumentEquity, Exchange: "MOEX"},
			{Symbol: "ROSN", Type: InstrumentEquity, Exchange: "MOEX"},
		},
		Sides:           []string{"BUY", "SELL"},
		OrderTypes:      []string{"LIMIT", "MARKET", "STOP", "STOP_LIMIT"},
		ClientIDs:       clients,
		CounterpartyIDs: counterparties,
		Brokers:         []string{"ABC", "XYZ", "DEF", "GHI"},
		MinQuantity:     1000,
		MaxQuantity:     1000000,
	}
}

var (
	clientTypes    = []string{"INSTITUTIONAL", "RETAIL", "PROPRIETARY"}
	venueSegments  = []string{"MAIN", "DARK", "AUCTION"}
	sources        = []string{"FIX", "REST", "WS"}
	decisionMakers = []string{"ALGO", "HUMAN", "HYBRID"}
)

// TradeGenerator builds Trade records.
//
// Generate takes all randomness from the caller's source, so a worker that
// owns its *rand.Rand never contends with other workers, and a fixed seed
// reproduces the same trades.
type TradeGenerator struct {
	cfg GeneratorConfig
}

// Validate reports the first problem with cfg. Every choice set must be
// non-empty and the quantity range must be positive.
func (cfg GeneratorConfig) Validate() error {
	sets := []struct {
		name string
		size int
	}{
		{"instruments", len(cfg.Instruments)},
		{"sides", len(cfg.Sides)},
		{"orderTypes", len(cfg.OrderTypes)},
		{"clientIds", len(cfg.ClientIDs)},
		{"counterpartyIds", len(cfg.CounterpartyIDs)},
		{"brokers", len(cfg.Brokers)},
	}
	for _, set := range sets {
		if set.size == 0 {
			return fmt.Errorf("%s: choice set is empty", set.name)
		}
	}

	if cfg.MinQuantity <= 0 || cfg.MaxQuantity < cfg.MinQuantity {
		return fmt.Errorf("invalid quantity range [%v, %v]", cfg.MinQuantity, cfg.MaxQuantity)
	}
	for i, inst := range cfg.Instruments {
		if inst.Symbol == "" || inst.Exchange == "" {
			return fmt.Errorf("instruments[%d]: symbol and exchange are required", i)
		}
		switch inst.Type {
		case InstrumentFXSpot, InstrumentCrypto, InstrumentEquity:
		default:
			return fmt.Errorf("instruments[%d]: unknown type %q", i, inst.Type)
		}
	}
	return nil
}

// NewTradeGenerator validates cfg and returns a generator.
func NewTradeGenerator(cfg GeneratorConfig) (*TradeGenerator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TradeGenerator{cfg: cfg}, nil
}

// MustNewTradeGenerator is NewTradeGenerator for the default configuration.
func MustNewTradeGenerator() *TradeGenerator {
	g, err := NewTradeGenerator(DefaultGeneratorConfig())
	if err != nil {
		panic(err)
	}
	return g
}

// Generate builds one trade at time now.
func (g *TradeGenerator) Generate(rng *rand.Rand, now time.Time) Trade {
	inst := pick(rng, g.cfg.Instruments)
	quantity := round(uniform(rng, g.cfg.MinQuantity, g.cfg.MaxQuantity), 2)
	price := priceFor(rng, inst)
	amount := round(quantity*price, 2)

	commissionType := "TAKER"
	if rng.Float64() > 0.5 {
		commissionType = "MAKER"
	}

	currency := "RUB"
	if strings.Contains(inst.Symbol, "USD") {
		currency = "USD"
	}

	mic := "XNAS"
	if inst.Exchange == "MOEX" {
		mic = "MISX"
	}

	venue := inst.Exchange
	if len(venue) > 4 {
		venue = venue[:4]
	}

	stamp := now.UTC().Format(time.RFC3339Nano)

	return Trade{
		TradeID:         fmt.Sprintf("TRD-%s-%s", now.Format("20060102"), hexID(rng, 12)),
		ExchangeTradeID: fmt.Sprintf("EXCH-%s-%s", inst.Exchange, hexID(rng, 16)),
		Timestamp:       stamp,
		ExecutionTime:   stamp,
		Instrument: TradeSymbol{
			Symbol:   inst.Symbol,
			Type:     inst.Type,
			Exchange: inst.Exchange,
			Currency: currency,
		},
		Side:      pick(rng, g.cfg.Sides),
		OrderType: pick(rng, g.cfg.OrderTypes),
		Quantity:  quantity,
		Price:     price,
		Amount:    amount,
		Commission: Commission{
			Value:    round(amount*0.002, 2),
			Currency: "USD",
			Type:     commissionType,
		},
		Counterparty: Counterparty{
			ID:   pick(rng, g.cfg.CounterpartyIDs),
			Name: "BROKER_" + pick(rng, g.cfg.Brokers),
			LEI:  "549300" + hexID(rng, 12),
		},
		Client: Client{
			ID:      pick(rng, g.cfg.ClientIDs),
			Account: fmt.Sprintf("ACC-%03d", rng.Intn(1000)+1),
			Type:    pick(rng, clientTypes),
		},
		Settlement: Settlement{
			Date:   now.Format("2006-01-02"),
			Type:   "T+2",
			Status: "PENDING",
		},
		Venue: Venue{
			MIC:     mic,
			Segment: pick(rng, venueSegments),
			Session: "MAIN",
		},
		Fees: []Fee{
			{Type: "EXCHANGE_FEE", Value: round(uniform(rng, 5, 20), 2), Currency: "USD"},
			{Type: "CLEARING_FEE", Value: round(uniform(rng, 2, 10), 2), Currency: "USD"},
		},
		Metadata: Metadata{
			Source:         pick(rng, sources),
			Version:        "1.0",
			SequenceNumber: 1000000 + rng.Int63n(99999999-1000000+1),
			MatchingEngine: fmt.Sprintf("ME%02d", rng.Intn(5)+1),
			LatencyMs:      round(uniform(rng, 0.5, 10), 3),
		},
		Regulatory: Regulatory{
			ReportingRequired: true,
			MiFID2: MiFID2{
				TradingVenue:       venue,
				InvestmentDecision: pick(rng, decisionMakers),
				ExecutionWithin:    "FIRM",
			},
		},
	}
}

// priceFor draws a price in the range typical for the instrument class.
func priceFor(rng *rand.Rand, inst Instrument) float64 {
	switch inst.Type {
	case InstrumentFXSpot:
		if strings.Contains(inst.Symbol, "RUB") {
			return round(uniform(rng, 85, 95), 4)
		}
		return round(uniform(rng, 0.8, 1.5), 4)
	case InstrumentCrypto:
		if strings.Contains(inst.Symbol, "BTC") {
			return round(uniform(rng, 40000, 70000), 2)
		}
		return round(uniform(rng, 2000, 4000), 2)
	default:
		return round(uniform(rng, 100, 500), 2)
	}
}

// hexID returns n upper-case hex characters of a random UUID drawn from rng.
func hexID(rng *rand.Rand, n int) string {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		// *rand.Rand reads never fail.
		panic(errors.Join(errors.New("payload: random source failed"), err))
	}
	hex := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	if n > len(hex) {
		n = len(hex)
	}
	return hex[:n]
}

func pick[T any](rng *rand.Rand, choices []T) T {
	return choices[rng.Intn(len(choices))]
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
