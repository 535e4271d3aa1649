package stubs

import (
	"hash/fnv"
	"math"
	"time"
)

// ---- payload shapes (trimmed copies of the NSE responses) ----

type IndexRow struct {
	Symbol        string  `json:"symbol"`
	Open          float64 `json:"open"`
	DayHigh       float64 `json:"dayHigh"`
	DayLow        float64 `json:"dayLow"`
	LastPrice     float64 `json:"lastPrice"`
	PreviousClose float64 `json:"previousClose"`
	Change        float64 `json:"change"`
	PChange       float64 `json:"pChange"`
}

type IndexPayload struct {
	Name      string     `json:"name"`
	Timestamp string     `json:"timestamp"`
	Data      []IndexRow `json:"data"`
}

type PriceInfo struct {
	LastPrice     float64 `json:"lastPrice"`
	Change        float64 `json:"change"`
	PChange       float64 `json:"pChange"`
	PreviousClose float64 `json:"previousClose"`
	Open          float64 `json:"open"`
	Close         float64 `json:"close"`
}

type QuoteInfo struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	Isin        string `json:"isin"`
}

type QuotePayload struct {
	Info      QuoteInfo `json:"info"`
	PriceInfo PriceInfo `json:"priceInfo"`
}

type TradeInfo struct {
	TotalTradedVolume float64 `json:"totalTradedVolume"`
	TotalTradedValue  float64 `json:"totalTradedValue"`
	TotalMarketCap    float64 `json:"totalMarketCap"`
}

type TradeInfoPayload struct {
	MarketDeptOrderBook struct {
		TradeInfo TradeInfo `json:"tradeInfo"`
	} `json:"marketDeptOrderBook"`
}

// niftyConstituents is a short, fixed slice of the index for fixtures
var niftyConstituents = []string{"RELIANCE", "TCS", "HDFCBANK", "INFY", "ICICIBANK"}

// basePrice derives a stable pseudo price from the symbol so fixtures are
// deterministic across runs
func basePrice(symbol string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return 100 + float64(h.Sum32()%400000)/100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// IndexFixture builds the NIFTY 50 snapshot served by the stub
func IndexFixture(name string, now time.Time) IndexPayload {
	p := IndexPayload{Name: name, Timestamp: now.UTC().Format(time.RFC3339)}
	for _, sym := range append([]string{name}, niftyConstituents...) {
		last := basePrice(sym)
		prev := round2(last * 0.99)
		p.Data = append(p.Data, IndexRow{
			Symbol:        sym,
			Open:          prev,
			DayHigh:       round2(last * 1.01),
			DayLow:        round2(last * 0.985),
			LastPrice:     last,
			PreviousClose: prev,
			Change:        round2(last - prev),
			PChange:       round2((last - prev) / prev * 100),
		})
	}
	return p
}

// QuoteFixture builds the plain equity quote for symbol
func QuoteFixture(symbol string) QuotePayload {
	last := basePrice(symbol)
	prev := round2(last * 0.995)
	return QuotePayload{
		Info: QuoteInfo{
			Symbol:      symbol,
			CompanyName: symbol + " Limited",
			Isin:        "INE000" + symbol,
		},
		PriceInfo: PriceInfo{
			LastPrice:     last,
			Change:        round2(last - prev),
			PChange:       round2((last - prev) / prev * 100),
			PreviousClose: prev,
			Open:          prev,
			Close:         0,
		},
	}
}

// TradeInfoFixture builds the trade_info section for symbol
func TradeInfoFixture(symbol string) TradeInfoPayload {
	var p TradeInfoPayload
	last := basePrice(symbol)
	p.MarketDeptOrderBook.TradeInfo = TradeInfo{
		TotalTradedVolume: round2(last * 1000),
		TotalTradedValue:  round2(last * last * 10),
		TotalMarketCap:    round2(last * 1e7),
	}
	return p
}
