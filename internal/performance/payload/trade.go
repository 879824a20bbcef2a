// Package payload generates synthetic trade records and trade-ID pools.
package payload

// Trade is the record published to the ingestion pipeline and served back
// by the reader services.
type Trade struct {
	TradeID         string       `json:"tradeId"`
	ExchangeTradeID string       `json:"exchangeTradeId"`
	Timestamp       string       `json:"timestamp"`
	ExecutionTime   string       `json:"executionTime"`
	Instrument      TradeSymbol  `json:"instrument"`
	Side            string       `json:"side"`
	OrderType       string       `json:"orderType"`
	Quantity        float64      `json:"quantity"`
	Price           float64      `json:"price"`
	Amount          float64      `json:"amount"`
	Commission      Commission   `json:"commission"`
	Counterparty    Counterparty `json:"counterparty"`
	Client          Client       `json:"client"`
	Settlement      Settlement   `json:"settlement"`
	Venue           Venue        `json:"venue"`
	Fees            []Fee        `json:"fees"`
	Metadata        Metadata     `json:"metadata"`
	Regulatory      Regulatory   `json:"regulatory"`
}

// TradeSymbol identifies the traded instrument.
type TradeSymbol struct {
	Symbol   string `json:"symbol"`
	Type     string `json:"type"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
}

type Commission struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
	Type     string  `json:"type"`
}

type Counterparty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	LEI  string `json:"lei"`
}

type Client struct {
	ID      string `json:"id"`
	Account string `json:"account"`
	Type    string `json:"type"`
}

type Settlement struct {
	Date   string `json:"date"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

type Venue struct {
	MIC     string `json:"mic"`
	Segment string `json:"segment"`
	Session string `json:"session"`
}

type Fee struct {
	Type     string  `json:"type"`
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

type Metadata struct {
	Source         string  `json:"source"`
	Version        string  `json:"version"`
	SequenceNumber int64   `json:"sequenceNumber"`
	MatchingEngine string  `json:"matchingEngine"`
	LatencyMs      float64 `json:"latencyMs"`
}

type Regulatory struct {
	ReportingRequired bool   `json:"reportingRequired"`
	MiFID2            MiFID2 `json:"mifid2"`
}

type MiFID2 struct {
	TradingVenue       string `json:"tradingVenue"`
	InvestmentDecision string `json:"investmentDecision"`
	ExecutionWithin    string `json:"executionWithin"`
}
