package desk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/chartdesk/internal/domain"
	"github.com/assist-by/chartdesk/internal/scheduler"
)

type fakeFetcher struct{}

func (fakeFetcher) Fetch(ctx context.Context, symbol string, interval domain.TimeInterval, limit int) (domain.CandleList, error) {
	list := make(domain.CandleList, limit)
	for i := range list {
		list[i] = domain.Candle{OpenTime: time.UnixMilli(int64(i) * 60_000), Close: 100, Symbol: symbol, Interval: interval}
	}
	return list, nil
}

func (fakeFetcher) FetchOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	return domain.OrderBook{Symbol: symbol, Bids: []domain.Level{{Price: 99, Qty: 1}}}, nil
}

func (fakeFetcher) FetchMarkPrice(ctx context.Context, symbol string) (domain.PriceTick, error) {
	return domain.PriceTick{Symbol: symbol, MarkPrice: 100}, nil
}

func (fakeFetcher) FetchAccount(ctx context.Context) (domain.AccountSnapshot, error) {
	return domain.AccountSnapshot{WalletBalance: 500}, nil
}

func TestRegisterStreamsWithRealScheduler(t *testing.T) {
	store := domain.NewSelectionStore("BTCUSDT", domain.Interval15m)
	sched := scheduler.NewScheduler(store)

	err := RegisterStreams(sched, fakeFetcher{}, StreamConfig{
		CandleLimit:      50,
		OrderBookDepth:   25,
		ChartRefresh:     10 * time.Millisecond,
		TickerRefresh:    10 * time.Millisecond,
		OrderBookRefresh: 10 * time.Millisecond,
		AccountRefresh:   10 * time.Millisecond,
		Timeout:          time.Second,
		WithAccount:      true,
	})
	require.NoError(t, err)

	stream := newFakeStream()
	d := New(store, sched, stream, &fakeDisplay{}, testOrderConfig)
	go func() { _ = d.Run(context.Background()) }()
	defer d.Shutdown()

	require.Eventually(t, func() bool {
		v := d.View()
		return len(v.Candles) == 50 && len(v.OrderBook.Bids) == 1 && v.HasPrice && v.Account.WalletBalance == 500
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, d.SetSymbol("ETHUSDT"))
	require.Eventually(t, func() bool {
		v := d.View()
		return len(v.Candles) == 50 && v.Candles[0].Symbol == "ETHUSDT"
	}, 2*time.Second, 5*time.Millisecond)

	d.Shutdown()
	for _, name := range []string{StreamChart, StreamTicker, StreamOrderBook, StreamAccount} {
		assert.Equal(t, scheduler.StateCancelled, sched.State(name), name)
		assert.Equal(t, 0, sched.InFlight(name), name)
	}
	assert.Equal(t, int32(1), stream.closes.Load())
}

func TestRegisterStreamsWithoutAccount(t *testing.T) {
	store := domain.NewSelectionStore("BTCUSDT", domain.Interval15m)
	sched := scheduler.NewScheduler(store)
	defer sched.Stop()

	require.NoError(t, RegisterStreams(sched, fakeFetcher{}, StreamConfig{
		CandleLimit:      10,
		OrderBookDepth:   5,
		ChartRefresh:     time.Second,
		TickerRefresh:    time.Second,
		OrderBookRefresh: time.Second,
	}))
	assert.Equal(t, scheduler.StateIdle, sched.State(StreamAccount))

	err := RegisterStreams(sched, fakeFetcher{}, StreamConfig{ChartRefresh: time.Second, TickerRefresh: time.Second, OrderBookRefresh: time.Second})
	assert.Error(t, err, "중복 등록은 실패")
}
