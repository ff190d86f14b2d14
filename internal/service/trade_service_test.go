package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/algorand"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain/domaintest"
)

const (
	walletA = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFKQ"
	walletB = "AAAQEAYEAUDAOCAJBIFQYDIOB4IBCEQTCQKRMFYYDENBWHA5DYP7MUPJQE"
)

type tradeFixture struct {
	svc     *TradeService
	cache   *domaintest.Cache
	trades  *domaintest.Trades
	markets *domaintest.Markets
	bus     *domaintest.Bus
	audit   *domaintest.Audit
}

func newTradeFixture(chain TxReader, trades ...domain.Trade) tradeFixture {
	open := market("m1", "grid", "energy", domain.MarketStatusOpen)
	open.Volume = decimal.NewFromInt(10)
	f := tradeFixture{
		trades:  &domaintest.Trades{Items: trades},
		markets: domaintest.NewMarkets(open, market("m2", "poll", "elections", domain.MarketStatusClosed)),
		bus:     &domaintest.Bus{},
		audit:   &domaintest.Audit{},
		cache:   domaintest.NewCache(),
	}
	f.svc = NewTradeService(f.trades, f.markets, f.cache, chain, f.bus, f.audit, 10*time.Minute, discardLogger())
	f.svc.now = func() time.Time { return testNow }
	return f
}

func TestTradeServiceRecord(t *testing.T) {
	valid := TradeInput{TxID: "TX1", Wallet: walletA, MarketID: "m1", Side: "YES", Amount: decimal.NewFromInt(5)}

	tests := []struct {
		name    string
		mutate  func(*TradeInput)
		wantErr error
	}{
		{"valid", func(*TradeInput) {}, nil},
		{"bad wallet", func(in *TradeInput) { in.Wallet = "not-an-address" }, domain.ErrInvalidInput},
		{"bad side", func(in *TradeInput) { in.Side = "maybe" }, domain.ErrInvalidInput},
		{"zero amount", func(in *TradeInput) { in.Amount = decimal.Zero }, domain.ErrInvalidInput},
		{"six places", func(in *TradeInput) { in.Amount = decimal.RequireFromString("1.000001") }, nil},
		{"trailing zeros", func(in *TradeInput) { in.Amount = decimal.RequireFromString("2.50000000") }, nil},
		{"seven places", func(in *TradeInput) { in.Amount = decimal.RequireFromString("1.0000001") }, domain.ErrInvalidInput},
		{"missing tx", func(in *TradeInput) { in.TxID = " " }, domain.ErrInvalidInput},
		{"unknown market", func(in *TradeInput) { in.MarketID = "m9" }, domain.ErrInvalidInput},
		{"closed market", func(in *TradeInput) { in.MarketID = "m2" }, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTradeFixture(&stubChain{})
			in := valid
			tt.mutate(&in)
			tr, err := f.svc.Record(context.Background(), in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if len(f.trades.Items) != 0 {
					t.Errorf("trade stored on error")
				}
				return
			}
			if tr.Status != domain.TradePending || tr.Side != domain.SideYes || tr.ID == "" {
				t.Errorf("trade = %+v", tr)
			}
			if diff := cmp.Diff([]string{"trade_recorded"}, f.bus.Types()); diff != "" {
				t.Errorf("events (-want +got):\n%s", diff)
			}
			if got := f.bus.Events[0].Scope; got != domain.ForCategory("energy") {
				t.Errorf("event scope = %+v, want energy category", got)
			}
		})
	}
}

func TestTradeServiceRecordDuplicate(t *testing.T) {
	f := newTradeFixture(&stubChain{})
	in := TradeInput{TxID: "TX1", Wallet: walletA, MarketID: "m1", Side: domain.SideNo, Amount: decimal.NewFromInt(1)}
	if _, err := f.svc.Record(context.Background(), in); err != nil {
		t.Fatalf("first Record: %v", err)
	}
	if _, err := f.svc.Record(context.Background(), in); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("second Record: err = %v, want ErrAlreadyExists", err)
	}
}

func TestTradeServiceConfirmPending(t *testing.T) {
	pending := func(id, tx string, age time.Duration) domain.Trade {
		return domain.Trade{
			ID: id, TxID: tx, Wallet: walletA, MarketID: "m1", Side: domain.SideYes,
			Amount: decimal.NewFromInt(4), Status: domain.TradePending, CreatedAt: testNow.Add(-age),
		}
	}
	chain := &stubChain{pending: map[string]algorand.PendingTx{
		"CONFIRMED": {ConfirmedRound: 1234},
		"REJECTED":  {PoolError: "overspend"},
		"WAITING":   {},
		"STALE":     {},
	}}
	f := newTradeFixture(chain,
		pending("t1", "CONFIRMED", time.Minute),
		pending("t2", "REJECTED", time.Minute),
		pending("t3", "WAITING", time.Minute),
		pending("t4", "STALE", time.Hour),
		pending("t5", "UNKNOWN", time.Minute),
		pending("t6", "GONE", time.Hour),
	)

	res, err := f.svc.ConfirmPending(context.Background())
	if err != nil {
		t.Fatalf("ConfirmPending: %v", err)
	}
	if diff := cmp.Diff(ConfirmResult{Confirmed: 1, Failed: 3, Pending: 2}, res); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}

	want := map[string]domain.TradeStatus{
		"CONFIRMED": domain.TradeConfirmed,
		"REJECTED":  domain.TradeFailed,
		"WAITING":   domain.TradePending,
		"STALE":     domain.TradeFailed,
		"UNKNOWN":   domain.TradePending,
		"GONE":      domain.TradeFailed,
	}
	for tx, status := range want {
		tr, _ := f.trades.GetByTxID(context.Background(), tx)
		if tr.Status != status {
			t.Errorf("%s status = %s, want %s", tx, tr.Status, status)
		}
	}
	confirmed, _ := f.trades.GetByTxID(context.Background(), "CONFIRMED")
	if confirmed.ConfirmedRound != 1234 {
		t.Errorf("confirmed round = %d", confirmed.ConfirmedRound)
	}

	m, _ := f.markets.GetByID(context.Background(), "m1")
	if !m.Volume.Equal(decimal.NewFromInt(14)) {
		t.Errorf("volume = %s, want 14", m.Volume)
	}
	if got := len(f.audit.Events()); got != 3 {
		t.Errorf("audit entries = %d, want 3", got)
	}
	if diff := cmp.Diff([]string{"trade_confirmed", "trade_failed", "trade_failed", "trade_failed"}, f.bus.Types()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	for _, e := range f.bus.Events {
		if e.Scope != domain.ForCategory("energy") {
			t.Errorf("%s scope = %+v, want energy category", e.Type, e.Scope)
		}
	}
}

func TestTradeServiceConfirmCacheFailure(t *testing.T) {
	chain := &stubChain{pending: map[string]algorand.PendingTx{"TX": {ConfirmedRound: 7}}}
	f := newTradeFixture(chain, domain.Trade{
		ID: "t1", TxID: "TX", Wallet: walletA, MarketID: "m1", Side: domain.SideNo,
		Amount: decimal.NewFromInt(1), Status: domain.TradePending, CreatedAt: testNow,
	})
	f.cache.InvalidateErr = errors.New("redis down")

	res, err := f.svc.ConfirmPending(context.Background())
	if err != nil {
		t.Fatalf("ConfirmPending: %v", err)
	}
	if res.Confirmed != 1 {
		t.Errorf("confirmed = %d, want 1", res.Confirmed)
	}
	if diff := cmp.Diff([]string{"trade_confirmed"}, f.bus.Types()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestTradeServicePositions(t *testing.T) {
	f := newTradeFixture(&stubChain{},
		domain.Trade{ID: "t1", TxID: "A", Wallet: walletB, MarketID: "m1", Side: domain.SideYes, Amount: decimal.NewFromInt(3), Status: domain.TradeConfirmed},
		domain.Trade{ID: "t2", TxID: "B", Wallet: walletB, MarketID: "m1", Side: domain.SideNo, Amount: decimal.NewFromInt(2), Status: domain.TradeConfirmed},
		domain.Trade{ID: "t3", TxID: "C", Wallet: walletB, MarketID: "m1", Side: domain.SideYes, Amount: decimal.NewFromInt(9), Status: domain.TradePending},
	)
	ctx := context.Background()

	if _, err := f.svc.Positions(ctx, "bogus"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("bogus wallet: err = %v", err)
	}

	ps, err := f.svc.Positions(ctx, walletB)
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(ps) != 1 || !ps[0].YesAmount.Equal(decimal.NewFromInt(3)) || !ps[0].NoAmount.Equal(decimal.NewFromInt(2)) || ps[0].TradeCount != 2 {
		t.Errorf("positions = %+v", ps)
	}

	empty, err := f.svc.Positions(ctx, walletA)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("empty wallet positions = %v, %v", empty, err)
	}

	trades, err := f.svc.ListByWallet(ctx, walletB, domain.ListOpts{Limit: 2})
	if err != nil || len(trades) != 2 {
		t.Errorf("ListByWallet = %d trades, %v", len(trades), err)
	}
}
