package bybit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/assist-by/chartdesk/internal/domain"
	"github.com/assist-by/chartdesk/internal/exchange"
	"github.com/assist-by/chartdesk/internal/metrics"
	"github.com/assist-by/chartdesk/internal/position"
)

// PrecisionSource는 심볼 정밀도를 제공합니다
type PrecisionSource interface {
	Resolve(ctx context.Context, symbol string) (domain.InstrumentPrecision, error)
}

// PriceSource는 현재 마크 가격을 제공합니다
type PriceSource interface {
	FetchMarkPrice(ctx context.Context, symbol string) (domain.PriceTick, error)
}

// Executor는 바이비트 선물 시장가 주문을 실행합니다
type Executor struct {
	trading   exchange.Trading
	precision PrecisionSource
	prices    PriceSource
	logger    *zap.Logger
	newLinkID func() string
}

var _ position.Executor = (*Executor)(nil)

// Option은 Executor 설정 함수입니다
type Option func(*Executor)

// WithLogger는 로거를 설정합니다
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithLinkIDGenerator는 클라이언트 주문 ID 생성기를 교체합니다
func WithLinkIDGenerator(fn func() string) Option {
	return func(e *Executor) {
		e.newLinkID = fn
	}
}

// NewExecutor는 새로운 주문 실행기를 생성합니다
func NewExecutor(trading exchange.Trading, precision PrecisionSource, prices PriceSource, opts ...Option) *Executor {
	e := &Executor{
		trading:   trading,
		precision: precision,
		prices:    prices,
		logger:    zap.NewNop(),
		newLinkID: newLinkID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute는 주문을 한 번만 제출합니다. 실패해도 재시도하지 않습니다
func (e *Executor) Execute(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	result := domain.OrderResult{
		Symbol: req.Symbol,
		Side:   req.Side,
	}

	res, err := e.execute(ctx, req, result)
	metrics.OrdersTotal.WithLabelValues(req.Symbol, string(req.Side), resultLabel(err)).Inc()
	if err != nil {
		res.Accepted = false
		res.Error = err.Error()
		e.logger.Error("주문 실패",
			zap.String("symbol", req.Symbol),
			zap.String("side", string(req.Side)),
			zap.Error(err),
		)
		return res, err
	}

	e.logger.Info("주문 접수",
		zap.String("symbol", res.Symbol),
		zap.String("side", string(res.Side)),
		zap.String("orderId", res.OrderID),
		zap.String("qty", res.Quantity.String()),
		zap.String("takeProfit", res.TakeProfit.String()),
		zap.String("stopLoss", res.StopLoss.String()),
	)
	return res, nil
}

func (e *Executor) execute(ctx context.Context, req domain.OrderRequest, result domain.OrderResult) (domain.OrderResult, error) {
	symbol := req.Symbol

	// 1. 입력 검증
	if !req.Side.Valid() {
		return result, domain.NewError(domain.ErrInvalidSide, symbol, "validate",
			fmt.Errorf("알 수 없는 주문 방향: %q", req.Side))
	}
	if req.NotionalUSDT <= 0 {
		return result, domain.NewError(domain.ErrSizing, symbol, "validate",
			fmt.Errorf("명목 가치는 0보다 커야 합니다: %v", req.NotionalUSDT))
	}
	if req.Leverage < 1 {
		return result, domain.NewError(domain.ErrSizing, symbol, "validate",
			fmt.Errorf("레버리지는 1 이상이어야 합니다: %d", req.Leverage))
	}

	// 2. 정밀도 조회
	prec, err := e.precision.Resolve(ctx, symbol)
	if err != nil {
		return result, domain.NewError(domain.ErrSizing, symbol, "resolve_precision", err)
	}

	// 3. 최대 레버리지 확인
	if float64(req.Leverage) > prec.MaxLeverage {
		return result, domain.NewError(domain.ErrSizing, symbol, "check_leverage",
			fmt.Errorf("레버리지 %d가 최대 %.0f배를 초과합니다", req.Leverage, prec.MaxLeverage))
	}

	// 4. 기준 가격
	tick, err := e.prices.FetchMarkPrice(ctx, symbol)
	if err != nil {
		return result, domain.NewError(domain.ErrSizing, symbol, "mark_price", err)
	}
	result.MarkPrice = tick.MarkPrice

	// 5. 수량 및 익절/손절 계산
	qty, err := position.SizeOrder(req.NotionalUSDT, tick.MarkPrice, prec.QtyPrecision)
	if err != nil {
		return result, domain.NewError(domain.ErrSizing, symbol, "size_order", err)
	}
	tp, sl, err := position.ComputeBracket(tick.MarkPrice, req.Side, req.TakeProfitPct, req.StopLossPct, prec.PricePrecision)
	if err != nil {
		return result, domain.NewError(domain.KindOf(err, domain.ErrSizing), symbol, "compute_bracket", err)
	}
	result.Quantity = qty
	result.TakeProfit = tp
	result.StopLoss = sl

	// 6. 마진 모드 및 레버리지 설정
	mode := req.MarginMode
	if mode == "" {
		mode = domain.MarginIsolated
	}
	if err := e.trading.SetMarginMode(ctx, symbol, mode, req.Leverage); err != nil {
		return result, domain.NewError(domain.ErrExecutionRejected, symbol, "set_margin_mode", err)
	}
	if err := e.trading.SetLeverage(ctx, symbol, req.Leverage); err != nil {
		return result, domain.NewError(domain.ErrExecutionRejected, symbol, "set_leverage", err)
	}

	// 7. 주문 제출 (한 번만)
	params := domain.PlaceOrderParams{
		Symbol:      symbol,
		Side:        req.Side,
		Type:        domain.Market,
		Quantity:    qty,
		TakeProfit:  tp,
		StopLoss:    sl,
		QtyDecimals: prec.QtyPrecision,
		PxDecimals:  prec.PricePrecision,
		LinkID:      e.newLinkID(),
	}
	result.LinkID = params.LinkID

	resp, err := e.trading.PlaceOrder(ctx, params)
	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) {
			e.logger.Warn("주문 결과를 확인할 수 없음",
				zap.String("symbol", symbol),
				zap.String("linkId", params.LinkID),
			)
		}
		return result, domain.NewError(domain.ErrExecutionRejected, symbol, "place_order", err)
	}

	result.Accepted = true
	result.OrderID = resp.OrderID
	if resp.LinkID != "" {
		result.LinkID = resp.LinkID
	}
	return result, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, domain.ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, domain.ErrSizing):
		return "sizing"
	default:
		return "rejected"
	}
}

// newLinkID는 바이비트 orderLinkId 규격(36자 이하)의 무작위 ID를 만듭니다
func newLinkID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return "cd-" + hex.EncodeToString(b[:])
}
