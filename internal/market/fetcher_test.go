package market

import (
	"context"
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/chartdesk/internal/domain"
)

type fakeMarket struct {
	rows      []domain.KlineRow
	book      domain.RawOrderBook
	ticker    domain.Ticker
	symbols   []string
	err       error
	failFirst int
	calls     int
}

func (f *fakeMarket) GetServerTime(context.Context) (time.Time, error) { return time.Now(), nil }

func (f *fakeMarket) GetKlines(_ context.Context, _ string, _ domain.TimeInterval, _ int) ([]domain.KlineRow, error) {
	f.calls++
	return f.rows, f.err
}

func (f *fakeMarket) GetOrderBook(context.Context, string, int) (domain.RawOrderBook, error) {
	return f.book, f.err
}

func (f *fakeMarket) GetTicker(context.Context, string) (domain.Ticker, error) {
	return f.ticker, f.err
}

func (f *fakeMarket) GetInstrumentInfo(context.Context, string) (domain.InstrumentInfo, error) {
	return domain.InstrumentInfo{}, f.err
}

func (f *fakeMarket) GetSymbols(context.Context) ([]string, error) {
	f.calls++
	if f.calls <= f.failFirst {
		return nil, domain.NewError(domain.ErrDataUnavailable, "", "tickers", errors.New("일시적 오류"))
	}
	return f.symbols, f.err
}

type fakeAccount struct {
	balance   domain.Balance
	positions []domain.Position
	pnl       []domain.ClosedPnL
	err       error
}

func (f *fakeAccount) GetBalance(context.Context) (domain.Balance, error) { return f.balance, f.err }
func (f *fakeAccount) GetPositions(context.Context) ([]domain.Position, error) { return f.positions, f.err }
func (f *fakeAccount) GetClosedPnL(context.Context, int) ([]domain.ClosedPnL, error) {
	return f.pnl, f.err
}

// 바이비트처럼 최신 캔들부터 내려오는 행 생성
func descendingRows(n int, start time.Time, step time.Duration) []domain.KlineRow {
	rows := make([]domain.KlineRow, 0, n)
	for i := n - 1; i >= 0; i-- {
		ts := start.Add(time.Duration(i) * step).UnixMilli()
		price := strconv.Itoa(100 + i)
		rows = append(rows, domain.KlineRow{strconv.FormatInt(ts, 10), price, price, price, price, "10", "1000"})
	}
	return rows
}

func TestFetchAscendingAndBounded(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	fm := &fakeMarket{rows: descendingRows(60, start, 15*time.Minute)}
	f := NewFetcher(fm)

	candles, err := f.Fetch(context.Background(), "BTCUSDT", domain.Interval15m, 50)
	require.NoError(t, err)
	require.Len(t, candles, 50)
	assert.True(t, candles.IsAscending())

	// 최신 50개만 남음
	last, _ := candles.GetLastCandle()
	assert.Equal(t, start.Add(59*15*time.Minute), last.OpenTime)
	assert.Equal(t, "BTCUSDT", last.Symbol)
	assert.Equal(t, domain.Interval15m, last.Interval)
	for _, c := range candles {
		assert.False(t, math.IsNaN(c.Close))
	}
}

func TestNormalizeKlinesDropsBadRows(t *testing.T) {
	rows := []domain.KlineRow{
		{"1700000900000", "101", "102", "100", "101.5", "12", "1"},
		{"1700000000000", "100", "101", "99", "abc", "10", "1"},    // 숫자 아님
		{"1700000000000", "100", "101", "99", "NaN", "10", "1"},    // NaN
		{"1700001800000", "100", "101", "99", "100", "-1", "1"},    // 음수 거래량
		{"1700002700000", "100", "101"},                            // 필드 부족
		{"bad-ts", "100", "101", "99", "100", "1", "1"},            // 타임스탬프 오류
		{"1700000900000", "103", "104", "102", "103.5", "20", "1"}, // 중복 - 마지막 값 사용
	}

	candles, dropped := NormalizeKlines(rows, "BTCUSDT", domain.Interval15m, 50)
	assert.Equal(t, 5, dropped)
	require.Len(t, candles, 1)
	assert.Equal(t, 103.5, candles[0].Close)
}

func TestFetchRejectsInvalidArguments(t *testing.T) {
	f := NewFetcher(&fakeMarket{})

	_, err := f.Fetch(context.Background(), "BTCUSDT", domain.Interval15m, 0)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)

	_, err = f.Fetch(context.Background(), "BTCUSDT", domain.Interval15m, MaxCandleLimit+1)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)

	_, err = f.Fetch(context.Background(), "BTCUSDT", domain.TimeInterval("7"), 10)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestFetchClassifiesErrors(t *testing.T) {
	transport := &fakeMarket{err: errors.New("connection reset")}
	_, err := NewFetcher(transport).Fetch(context.Background(), "BTCUSDT", domain.Interval15m, 10)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)

	schema := &fakeMarket{err: domain.NewError(domain.ErrMalformedResponse, "", "/v5/market/kline", errors.New("bad list"))}
	_, err = NewFetcher(schema).Fetch(context.Background(), "BTCUSDT", domain.Interval15m, 10)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.Equal(t, 1, schema.calls)
}

func TestFetchOrderBookSorted(t *testing.T) {
	fm := &fakeMarket{book: domain.RawOrderBook{
		Symbol:    "BTCUSDT",
		Asks:      []domain.BookRow{{"101", "1"}, {"100.5", "2"}, {"x", "1"}},
		Bids:      []domain.BookRow{{"99", "1"}, {"99.5", "3"}, {"98"}},
		Timestamp: 1700000000000,
	}}

	book, err := NewFetcher(fm).FetchOrderBook(context.Background(), "BTCUSDT", 25)
	require.NoError(t, err)
	require.Len(t, book.Asks, 2)
	require.Len(t, book.Bids, 2)
	assert.Equal(t, 100.5, book.Asks[0].Price)
	assert.Equal(t, 99.5, book.Bids[0].Price)
}

func TestFetchMarkPrice(t *testing.T) {
	ok := &fakeMarket{ticker: domain.Ticker{Symbol: "BTCUSDT", MarkPrice: 65000.5}}
	tick, err := NewFetcher(ok).FetchMarkPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 65000.5, tick.MarkPrice)

	zero := &fakeMarket{ticker: domain.Ticker{Symbol: "BTCUSDT"}}
	_, err = NewFetcher(zero).FetchMarkPrice(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestFetchAccount(t *testing.T) {
	acc := &fakeAccount{
		balance:   domain.Balance{Coin: "USDT", WalletBalance: 500},
		positions: []domain.Position{{Symbol: "BTCUSDT", Quantity: 0.01}},
		pnl:       []domain.ClosedPnL{{ClosedPnL: 1.5}, {ClosedPnL: -0.5}},
	}

	snap, err := NewFetcher(&fakeMarket{}, WithAccount(acc)).FetchAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 500.0, snap.WalletBalance)
	assert.Len(t, snap.Positions, 1)
	assert.InDelta(t, 1.0, snap.ClosedPnL, 1e-9)

	_, err = NewFetcher(&fakeMarket{}).FetchAccount(context.Background())
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestSymbolsRetriesTransientErrors(t *testing.T) {
	fm := &fakeMarket{symbols: []string{"XRPUSDT", "BTCUSDT"}, failFirst: 2}
	f := NewFetcher(fm, WithRetryConfig(RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Factor:     2,
	}))

	symbols, err := f.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "XRPUSDT"}, symbols)
	assert.Equal(t, 3, fm.calls)
}
