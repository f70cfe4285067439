// internal/exchange/exchange.go
package exchange

import (
	"context"
	"time"

	"github.com/assist-by/chartdesk/internal/domain"
)

// MarketData는 인증이 필요 없는 시장 데이터 조회 기능입니다
type MarketData interface {
	GetServerTime(ctx context.Context) (time.Time, error)
	GetKlines(ctx context.Context, symbol string, interval domain.TimeInterval, limit int) ([]domain.KlineRow, error)
	GetOrderBook(ctx context.Context, symbol string, depth int) (domain.RawOrderBook, error)
	GetTicker(ctx context.Context, symbol string) (domain.Ticker, error)
	GetInstrumentInfo(ctx context.Context, symbol string) (domain.InstrumentInfo, error)
	GetSymbols(ctx context.Context) ([]string, error)
}

// Account는 계정 데이터 조회 기능입니다
type Account interface {
	GetBalance(ctx context.Context) (domain.Balance, error)
	GetPositions(ctx context.Context) ([]domain.Position, error)
	GetClosedPnL(ctx context.Context, limit int) ([]domain.ClosedPnL, error)
}

// Trading은 주문 및 포지션 설정 기능입니다
type Trading interface {
	PlaceOrder(ctx context.Context, params domain.PlaceOrderParams) (domain.PlaceOrderResponse, error)
	SetMarginMode(ctx context.Context, symbol string, mode domain.MarginMode, leverage int) error
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

// Exchange는 거래소와의 상호작용을 위한 인터페이스입니다.
type Exchange interface {
	MarketData
	Account
	Trading

	// 시간 동기화
	SyncTime(ctx context.Context) error
}
