package desk

import (
	"context"
	"time"

	"github.com/assist-by/chartdesk/internal/domain"
	"github.com/assist-by/chartdesk/internal/scheduler"
)

// 갱신 스트림 이름
const (
	StreamChart     = "chart"
	StreamTicker    = "ticker"
	StreamOrderBook = "orderbook"
	StreamAccount   = "account"
)

// Fetcher는 스트림 작업이 사용하는 조회 기능입니다
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, interval domain.TimeInterval, limit int) (domain.CandleList, error)
	FetchOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error)
	FetchMarkPrice(ctx context.Context, symbol string) (domain.PriceTick, error)
	FetchAccount(ctx context.Context) (domain.AccountSnapshot, error)
}

// StreamConfig는 갱신 주기와 조회 크기입니다
type StreamConfig struct {
	CandleLimit      int
	OrderBookDepth   int
	ChartRefresh     time.Duration
	TickerRefresh    time.Duration
	OrderBookRefresh time.Duration
	AccountRefresh   time.Duration
	Timeout          time.Duration
	// WithAccount가 false면 계좌 스트림을 등록하지 않습니다 (API 키 없음)
	WithAccount bool
}

// RegisterStreams는 차트, 티커, 호가, 계좌 스트림을 스케줄러에 등록합니다
func RegisterStreams(s *scheduler.Scheduler, f Fetcher, cfg StreamConfig) error {
	specs := []scheduler.StreamSpec{
		{
			Name:     StreamChart,
			Interval: cfg.ChartRefresh,
			Timeout:  cfg.Timeout,
			Task: scheduler.TaskFunc(func(ctx context.Context, sel domain.Selection) (any, error) {
				return f.Fetch(ctx, sel.Symbol, sel.Interval, cfg.CandleLimit)
			}),
		},
		{
			Name:     StreamTicker,
			Interval: cfg.TickerRefresh,
			Timeout:  cfg.Timeout,
			Task: scheduler.TaskFunc(func(ctx context.Context, sel domain.Selection) (any, error) {
				return f.FetchMarkPrice(ctx, sel.Symbol)
			}),
		},
		{
			Name:     StreamOrderBook,
			Interval: cfg.OrderBookRefresh,
			Timeout:  cfg.Timeout,
			Task: scheduler.TaskFunc(func(ctx context.Context, sel domain.Selection) (any, error) {
				return f.FetchOrderBook(ctx, sel.Symbol, cfg.OrderBookDepth)
			}),
		},
	}
	if cfg.WithAccount {
		specs = append(specs, scheduler.StreamSpec{
			Name:     StreamAccount,
			Interval: cfg.AccountRefresh,
			Timeout:  cfg.Timeout,
			Task: scheduler.TaskFunc(func(ctx context.Context, _ domain.Selection) (any, error) {
				return f.FetchAccount(ctx)
			}),
		})
	}

	for _, spec := range specs {
		if err := s.Register(spec); err != nil {
			return err
		}
	}
	return nil
}
