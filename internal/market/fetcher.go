package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/assist-by/chartdesk/internal/domain"
	"github.com/assist-by/chartdesk/internal/exchange"
)

// MaxCandleLimit은 한 번에 요청할 수 있는 최대 캔들 개수입니다
const MaxCandleLimit = 1000

// closedPnLWindow는 계정 요약에 합산하는 최근 청산 기록 수입니다
const closedPnLWindow = 50

// RetryConfig는 재시도 설정을 정의합니다
type RetryConfig struct {
	MaxRetries int           // 최대 재시도 횟수
	BaseDelay  time.Duration // 기본 대기 시간
	MaxDelay   time.Duration // 최대 대기 시간
	Factor     float64       // 대기 시간 증가 계수
}

// Fetcher는 시장 데이터를 조회하고 정규화합니다
// 주기적 갱신 경로에서는 재시도하지 않으며, 실패하면 다음 주기에 다시 조회합니다
type Fetcher struct {
	market  exchange.MarketData
	account exchange.Account
	logger  *zap.Logger
	retry   RetryConfig
}

// Option은 Fetcher 옵션입니다
type Option func(*Fetcher)

// WithLogger는 로거를 설정합니다
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// WithAccount는 계정 조회 소스를 설정합니다
func WithAccount(a exchange.Account) Option {
	return func(f *Fetcher) {
		f.account = a
	}
}

// WithRetryConfig는 일회성 조회의 재시도 설정을 지정합니다
func WithRetryConfig(config RetryConfig) Option {
	return func(f *Fetcher) {
		f.retry = config
	}
}

// NewFetcher는 새로운 Fetcher를 생성합니다
func NewFetcher(market exchange.MarketData, opts ...Option) *Fetcher {
	f := &Fetcher{
		market: market,
		logger: zap.NewNop(),
		retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  500 * time.Millisecond,
			MaxDelay:   5 * time.Second,
			Factor:     2,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch는 캔들을 한 번 조회해 시간 오름차순의 중복 없는 목록으로 반환합니다
// 숫자로 변환할 수 없거나 음수/NaN인 행은 버립니다
func (f *Fetcher) Fetch(ctx context.Context, symbol string, interval domain.TimeInterval, limit int) (domain.CandleList, error) {
	if limit < 1 || limit > MaxCandleLimit {
		return nil, domain.NewError(domain.ErrMalformedResponse, symbol, "fetch_klines",
			fmt.Errorf("limit은 1 이상 %d 이하이어야 합니다: %d", MaxCandleLimit, limit))
	}
	if !interval.Valid() {
		return nil, domain.NewError(domain.ErrMalformedResponse, symbol, "fetch_klines",
			fmt.Errorf("지원하지 않는 간격: %q", interval))
	}

	rows, err := f.market.GetKlines(ctx, symbol, interval, limit)
	if err != nil {
		return nil, classify(err, symbol, "fetch_klines")
	}

	candles, dropped := NormalizeKlines(rows, symbol, interval, limit)
	if dropped > 0 {
		f.logger.Debug("잘못된 캔들 행 제외",
			zap.String("symbol", symbol),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(candles)))
	}
	return candles, nil
}

// NormalizeKlines는 원본 행을 검증된 캔들 목록으로 변환합니다
// 같은 시각의 행이 여러 개면 마지막 행을 사용하고, 최신 limit개만 남깁니다
func NormalizeKlines(rows []domain.KlineRow, symbol string, interval domain.TimeInterval, limit int) (domain.CandleList, int) {
	byTime := make(map[int64]domain.Candle, len(rows))
	dropped := 0

	for _, row := range rows {
		c, ok := parseKline(row)
		if !ok {
			dropped++
			continue
		}
		c.Symbol = symbol
		c.Interval = interval
		byTime[c.OpenTime.UnixMilli()] = c
	}

	candles := make(domain.CandleList, 0, len(byTime))
	for _, c := range byTime {
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})

	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, dropped
}

func parseKline(row domain.KlineRow) (domain.Candle, bool) {
	if len(row) < 6 {
		return domain.Candle{}, false
	}
	ts, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil || ts <= 0 {
		return domain.Candle{}, false
	}

	var vals [5]float64
	for i := range vals {
		v, ok := parseNonNegative(row[i+1])
		if !ok {
			return domain.Candle{}, false
		}
		vals[i] = v
	}

	return domain.Candle{
		OpenTime: time.UnixMilli(ts).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, true
}

func parseNonNegative(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// FetchOrderBook은 호가창을 조회해 정렬된 형태로 반환합니다
func (f *Fetcher) FetchOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	raw, err := f.market.GetOrderBook(ctx, symbol, depth)
	if err != nil {
		return domain.OrderBook{}, classify(err, symbol, "fetch_orderbook")
	}
	if raw.Symbol != "" && raw.Symbol != symbol {
		return domain.OrderBook{}, domain.NewError(domain.ErrMalformedResponse, symbol, "fetch_orderbook",
			fmt.Errorf("다른 심볼의 호가 응답: %s", raw.Symbol))
	}

	book := domain.OrderBook{
		Symbol:    symbol,
		Asks:      parseLevels(raw.Asks),
		Bids:      parseLevels(raw.Bids),
		Timestamp: time.UnixMilli(raw.Timestamp).UTC(),
	}
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	return book, nil
}

func parseLevels(rows []domain.BookRow) []domain.Level {
	levels := make([]domain.Level, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		price, ok := parseNonNegative(row[0])
		if !ok || price == 0 {
			continue
		}
		qty, ok := parseNonNegative(row[1])
		if !ok {
			continue
		}
		levels = append(levels, domain.Level{Price: price, Qty: qty})
	}
	return levels
}

// FetchMarkPrice는 심볼의 현재 마크 가격을 조회합니다
func (f *Fetcher) FetchMarkPrice(ctx context.Context, symbol string) (domain.PriceTick, error) {
	ticker, err := f.market.GetTicker(ctx, symbol)
	if err != nil {
		return domain.PriceTick{}, classify(err, symbol, "fetch_mark_price")
	}
	if ticker.MarkPrice <= 0 || math.IsNaN(ticker.MarkPrice) {
		return domain.PriceTick{}, domain.NewError(domain.ErrMalformedResponse, symbol, "fetch_mark_price",
			fmt.Errorf("마크 가격이 올바르지 않음: %v", ticker.MarkPrice))
	}
	return domain.PriceTick{
		Symbol:     symbol,
		MarkPrice:  ticker.MarkPrice,
		ObservedAt: time.Now().UTC(),
	}, nil
}

// FetchAccount는 잔고, 열린 포지션, 최근 청산 손익 합계를 조회합니다
func (f *Fetcher) FetchAccount(ctx context.Context) (domain.AccountSnapshot, error) {
	if f.account == nil {
		return domain.AccountSnapshot{}, domain.NewError(domain.ErrDataUnavailable, "", "fetch_account",
			errors.New("계정 조회 소스가 설정되지 않았습니다"))
	}

	balance, err := f.account.GetBalance(ctx)
	if err != nil {
		return domain.AccountSnapshot{}, classify(err, "", "fetch_balance")
	}
	positions, err := f.account.GetPositions(ctx)
	if err != nil {
		return domain.AccountSnapshot{}, classify(err, "", "fetch_positions")
	}
	records, err := f.account.GetClosedPnL(ctx, closedPnLWindow)
	if err != nil {
		return domain.AccountSnapshot{}, classify(err, "", "fetch_closed_pnl")
	}

	var pnl float64
	for _, r := range records {
		pnl += r.ClosedPnL
	}

	return domain.AccountSnapshot{
		WalletBalance: balance.WalletBalance,
		Positions:     positions,
		ClosedPnL:     pnl,
	}, nil
}

// Symbols는 거래 가능한 USDT 심볼 목록을 조회합니다
// 시작 시 한 번 호출되는 조회이므로 일시적 오류는 재시도합니다
func (f *Fetcher) Symbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := f.withRetry(ctx, "심볼 목록 조회", func() error {
		var err error
		symbols, err = f.market.GetSymbols(ctx)
		return err
	})
	if err != nil {
		return nil, classify(err, "", "fetch_symbols")
	}
	sort.Strings(symbols)
	return symbols, nil
}

// classify는 분류되지 않은 에러를 ErrDataUnavailable로 감쌉니다
func classify(err error, symbol, op string) error {
	kind := domain.KindOf(err, domain.ErrDataUnavailable)
	var de *domain.Error
	if errors.As(err, &de) && de.Symbol == symbol && de.Op == op {
		return err
	}
	return domain.NewError(kind, symbol, op, err)
}

// IsRetryableError는 재시도할 가치가 있는 에러인지 확인합니다
func IsRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return domain.KindOf(err, domain.ErrDataUnavailable) == domain.ErrDataUnavailable
}

// withRetry는 재시도 로직을 구현한 래퍼 함수입니다
func (f *Fetcher) withRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	delay := f.retry.BaseDelay

	for attempt := 0; attempt <= f.retry.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		// 재시도가 필요 없는 오류는 바로 반환
		if !IsRetryableError(err) {
			f.logger.Warn(operation+" 실패 (재시도 불필요)", zap.Error(err))
			return err
		}
		if attempt == f.retry.MaxRetries {
			return fmt.Errorf("최대 재시도 횟수 초과: %w", lastErr)
		}

		f.logger.Warn(operation+" 실패",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", f.retry.MaxRetries),
			zap.Error(err))

		// 다음 재시도 전 대기
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			// 대기 시간을 증가시키되, 최대 대기 시간을 넘지 않도록 함
			delay = time.Duration(float64(delay) * f.retry.Factor)
			if delay > f.retry.MaxDelay {
				delay = f.retry.MaxDelay
			}
		}
	}
	return lastErr
}
