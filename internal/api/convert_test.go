package api

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestScaledToDecimal(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{500000, "0.5"},
		{1000000, "1"},
		{0, "0"},
		{123456, "0.123456"},
		{1, "0.000001"},
	}

	for _, tt := range tests {
		got := ScaledToDecimal(tt.input)
		if got.String() != tt.want {
			t.Errorf("ScaledToDecimal(%d) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestDecimalToScaled(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"0.5", 500000},
		{"1", 1000000},
		{"0", 0},
		{"0.123456", 123456},
		{"0.1234567", 123456}, // sub-scale precision truncated
	}

	for _, tt := range tests {
		got := DecimalToScaled(decimal.RequireFromString(tt.input))
		if got != tt.want {
			t.Errorf("DecimalToScaled(%s) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestScaledRoundtrip(t *testing.T) {
	original := int64(750000)
	back := DecimalToScaled(ScaledToDecimal(original))
	if back != original {
		t.Errorf("roundtrip = %d, want %d", back, original)
	}
}

func TestDeriveOrderbookID(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		quote string
		want  string
	}{
		{
			name:  "full pubkeys",
			base:  "7BgBvyjrZX1YKz4oh9mjb8ZScatkkwb8DzFx7LoiVkM3",
			quote: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			want:  "7BgBvyjr_EPjFWdd5",
		},
		{name: "short tokens", base: "ABCD", quote: "XYZ", want: "ABCD_XYZ"},
		{name: "exact length", base: "12345678", quote: "ABCDEFGH", want: "12345678_ABCDEFGH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveOrderbookID(tt.base, tt.quote)
			if got != tt.want {
				t.Errorf("DeriveOrderbookID(%q, %q) = %q, want %q", tt.base, tt.quote, got, tt.want)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	if got := ParseTimestamp(""); !got.IsZero() {
		t.Errorf("ParseTimestamp(\"\") = %v, want zero time", got)
	}
	if got := ParseTimestamp("invalid"); !got.IsZero() {
		t.Errorf("ParseTimestamp(\"invalid\") = %v, want zero time", got)
	}

	got := ParseTimestamp("2026-01-15T12:30:45Z")
	if got.IsZero() {
		t.Fatal("ParseTimestamp(\"2026-01-15T12:30:45Z\") = zero, want non-zero")
	}
	if got.UnixMilli() != 1768480245000 {
		t.Errorf("UnixMilli = %d, want 1768480245000", got.UnixMilli())
	}

	// Timezone-less fallback
	if got := ParseTimestamp("2026-01-15T12:30:45"); got.IsZero() {
		t.Error("ParseTimestamp without zone = zero, want non-zero")
	}
}

func TestOrderbookResponseToBookUpdate(t *testing.T) {
	resp := &OrderbookResponse{
		MarketPubkey: "Mkt1Pubkey",
		OrderbookID:  "ob1",
		Bids: []BookLevel{
			{Price: 500000, Size: 1500, Orders: 2},
			{Price: 490000, Size: 3000, Orders: 1},
		},
		Asks: []BookLevel{{Price: 510000, Size: 1000, Orders: 1}},
	}

	update := resp.ToBookUpdate()

	if update.OrderbookID != "ob1" {
		t.Errorf("OrderbookID = %q, want %q", update.OrderbookID, "ob1")
	}
	if !update.IsSnapshot {
		t.Error("IsSnapshot = false, want true")
	}
	if update.Seq != 0 {
		t.Errorf("Seq = %d, want 0", update.Seq)
	}
	if len(update.Bids) != 2 || len(update.Asks) != 1 {
		t.Fatalf("levels = %d bids / %d asks, want 2/1", len(update.Bids), len(update.Asks))
	}
	if update.Bids[0].Price.String() != "0.5" {
		t.Errorf("Bids[0].Price = %s, want 0.5", update.Bids[0].Price)
	}
	if update.Bids[0].Size.String() != "0.0015" {
		t.Errorf("Bids[0].Size = %s, want 0.0015", update.Bids[0].Size)
	}
	if update.Bids[0].Side != "bid" || update.Asks[0].Side != "ask" {
		t.Errorf("sides = %q/%q, want bid/ask", update.Bids[0].Side, update.Asks[0].Side)
	}
}

func TestAPITradeToWire(t *testing.T) {
	trade := APITrade{
		ID:          42,
		OrderbookID: "ob1",
		Side:        "BID",
		Size:        decimal.RequireFromString("0.0015"),
		Price:       decimal.RequireFromString("0.52"),
		ExecutedAt:  1700000000000,
	}

	w := trade.ToWire()

	if w.TradeID != "42" {
		t.Errorf("TradeID = %q, want %q", w.TradeID, "42")
	}
	if w.Side != "buy" {
		t.Errorf("Side = %q, want %q", w.Side, "buy")
	}
	if w.Price.String() != "0.52" {
		t.Errorf("Price = %s, want 0.52", w.Price)
	}
	if w.Timestamp != "2023-11-14T22:13:20Z" {
		t.Errorf("Timestamp = %q, want %q", w.Timestamp, "2023-11-14T22:13:20Z")
	}

	trade.Side = "ASK"
	if got := trade.ToWire().Side; got != "sell" {
		t.Errorf("Side for ASK = %q, want %q", got, "sell")
	}
}

func TestTradesResponseToWireTrades(t *testing.T) {
	// REST pages are newest first; the converter reverses to oldest first.
	resp := &TradesResponse{
		Trades: []APITrade{
			{ID: 300, Side: "BID"},
			{ID: 200, Side: "ASK"},
			{ID: 100, Side: "BID"},
		},
	}

	trades := resp.ToWireTrades()

	if len(trades) != 3 {
		t.Fatalf("len = %d, want 3", len(trades))
	}
	if trades[0].TradeID != "100" || trades[2].TradeID != "300" {
		t.Errorf("order = [%s %s %s], want oldest first [100 200 300]",
			trades[0].TradeID, trades[1].TradeID, trades[2].TradeID)
	}
}

func TestPricePointToCandle(t *testing.T) {
	open := int64(490000)
	vol := int64(2500000)
	p := PricePoint{T: 1700000000000, M: 500000, O: &open, V: &vol}

	c := p.ToCandle()

	if c.T != 1700000000000 {
		t.Errorf("T = %d, want 1700000000000", c.T)
	}
	if c.M == nil || c.M.String() != "0.5" {
		t.Errorf("M = %v, want 0.5", c.M)
	}
	if c.O == nil || c.O.String() != "0.49" {
		t.Errorf("O = %v, want 0.49", c.O)
	}
	if c.V == nil || c.V.String() != "2.5" {
		t.Errorf("V = %v, want 2.5", c.V)
	}
	if c.H != nil || c.L != nil || c.C != nil || c.BB != nil || c.BA != nil {
		t.Error("absent OHLCV fields should stay nil")
	}
}

func TestPriceHistoryResponseToCandles(t *testing.T) {
	resp := &PriceHistoryResponse{
		Prices: []PricePoint{
			{T: 1000, M: 400000},
			{T: 2000, M: 410000},
		},
	}

	candles := resp.ToCandles()

	if len(candles) != 2 {
		t.Fatalf("len = %d, want 2", len(candles))
	}
	if candles[0].T != 1000 || candles[1].T != 2000 {
		t.Errorf("order = [%d %d], want [1000 2000]", candles[0].T, candles[1].T)
	}
}
