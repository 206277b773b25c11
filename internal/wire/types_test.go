package wire

import (
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

func TestParseEnvelope(t *testing.T) {
	raw := []byte(`{"type":"book_update","version":0.1,"data":{"orderbook_id":"ob1","seq":7,"is_snapshot":false,"bids":[{"side":"bid","price":"0.50","size":"0.0015"}]}}`)

	env, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	if env.Type != TypeBookUpdate {
		t.Errorf("Type = %s, want %s", env.Type, TypeBookUpdate)
	}

	var update BookUpdate
	if err := json.Unmarshal(env.Data, &update); err != nil {
		t.Fatalf("unmarshal book update: %v", err)
	}
	if update.OrderbookID != "ob1" {
		t.Errorf("OrderbookID = %s, want ob1", update.OrderbookID)
	}
	if update.Seq != 7 {
		t.Errorf("Seq = %d, want 7", update.Seq)
	}
	if len(update.Bids) != 1 {
		t.Fatalf("len(Bids) = %d, want 1", len(update.Bids))
	}
	if !update.Bids[0].Price.Equal(decimal.RequireFromString("0.50")) {
		t.Errorf("Bids[0].Price = %s, want 0.50", update.Bids[0].Price)
	}
	if !update.Bids[0].Size.Equal(decimal.RequireFromString("0.0015")) {
		t.Errorf("Bids[0].Size = %s, want 0.0015", update.Bids[0].Size)
	}
}

func TestRequestEncoding(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		contains []string
		absent   []string
	}{
		{
			name:     "subscribe books",
			req:      Subscribe(BookParams([]string{"ob1", "ob2"})),
			contains: []string{`"type":"subscribe"`, `"type":"book_update"`, `"orderbook_ids":["ob1","ob2"]`},
			absent:   []string{"user", "resolution", "market_pubkey"},
		},
		{
			name:     "subscribe user",
			req:      Subscribe(UserParams("wallet123")),
			contains: []string{`"type":"user"`, `"user":"wallet123"`},
			absent:   []string{"orderbook_ids", "include_ohlcv"},
		},
		{
			name:     "subscribe price history",
			req:      Subscribe(PriceHistoryParams("ob1", Resolution1m, false)),
			contains: []string{`"type":"price_history"`, `"orderbook_id":"ob1"`, `"resolution":"1m"`, `"include_ohlcv":false`},
			absent:   []string{"orderbook_ids"},
		},
		{
			name:     "unsubscribe trades",
			req:      Unsubscribe(TradesParams([]string{"ob1"})),
			contains: []string{`"type":"unsubscribe"`, `"type":"trades"`},
		},
		{
			name:     "ping",
			req:      Ping(),
			contains: []string{`"type":"ping"`},
			absent:   []string{"params"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.req.Encode()
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			s := string(data)
			for _, want := range tt.contains {
				if !strings.Contains(s, want) {
					t.Errorf("encoded frame missing %s: %s", want, s)
				}
			}
			for _, avoid := range tt.absent {
				if strings.Contains(s, avoid) {
					t.Errorf("encoded frame should not contain %s: %s", avoid, s)
				}
			}
		})
	}
}

func TestPriceHistoryToCandle(t *testing.T) {
	open := decimal.RequireFromString("0.45")
	ph := PriceHistory{
		EventType:   PriceHistoryUpdate,
		OrderbookID: "ob1",
		T:           1704067200000,
		O:           &open,
	}

	candle, ok := ph.ToCandle()
	if !ok {
		t.Fatal("ToCandle() ok = false, want true")
	}
	if candle.T != 1704067200000 {
		t.Errorf("T = %d, want 1704067200000", candle.T)
	}
	if candle.O == nil || !candle.O.Equal(open) {
		t.Errorf("O = %v, want %s", candle.O, open)
	}
	if candle.H != nil {
		t.Errorf("H = %v, want nil", candle.H)
	}

	heartbeat := PriceHistory{EventType: PriceHistoryHeartbeat, ServerTime: 1704067200}
	if _, ok := heartbeat.ToCandle(); ok {
		t.Error("heartbeat ToCandle() ok = true, want false")
	}
}

func TestResolutionValid(t *testing.T) {
	for _, r := range []Resolution{Resolution1m, Resolution5m, Resolution15m, Resolution1h, Resolution4h, Resolution1d} {
		if !r.Valid() {
			t.Errorf("Resolution(%s).Valid() = false, want true", r)
		}
	}
	if Resolution("2h").Valid() {
		t.Error("Resolution(2h).Valid() = true, want false")
	}
}

func TestUserEventDecoding(t *testing.T) {
	raw := []byte(`{
		"event_type": "order_update",
		"market_pubkey": "mkt1",
		"orderbook_id": "ob1",
		"order": {
			"order_hash": "hash1",
			"price": "0.52",
			"fill_amount": "0.10",
			"remaining": "0",
			"filled": "1.00",
			"side": 0,
			"is_maker": true,
			"created_at": 1704067200000
		}
	}`)

	var ev UserEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("unmarshal user event: %v", err)
	}
	if ev.EventType != UserEventOrderUpdate {
		t.Errorf("EventType = %s, want %s", ev.EventType, UserEventOrderUpdate)
	}
	if ev.Order == nil {
		t.Fatal("Order = nil, want populated")
	}
	if !ev.Order.Remaining.IsZero() {
		t.Errorf("Remaining = %s, want exact zero", ev.Order.Remaining)
	}
	if ev.Order.Side != SideBuy {
		t.Errorf("Side = %d, want %d", ev.Order.Side, SideBuy)
	}
}
