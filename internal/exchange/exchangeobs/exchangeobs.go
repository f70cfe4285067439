// Package exchangeobs는 거래소 호출에 로깅, 트레이싱, 지표를 덧붙입니다.
package exchangeobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/assist-by/chartdesk/internal/domain"
	"github.com/assist-by/chartdesk/internal/exchange"
	"github.com/assist-by/chartdesk/internal/metrics"
	"github.com/assist-by/chartdesk/internal/trace"
)

type observableExchange struct {
	next   exchange.Exchange
	logger *zap.Logger
}

var _ exchange.Exchange = (*observableExchange)(nil)

// Wrap은 거래소 구현을 관측 가능한 구현으로 감쌉니다
func Wrap(next exchange.Exchange, logger *zap.Logger) exchange.Exchange {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &observableExchange{next: next, logger: logger}
}

// observe는 스팬을 열고 결과를 기록합니다
func observe[T any](ctx context.Context, o *observableExchange, op, symbol string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := trace.StartSpan(ctx, "exchange."+op)
	defer span.End()
	if symbol != "" {
		span.SetAttributes(attribute.String("symbol", symbol))
	}

	start := time.Now()
	v, err := fn(ctx)
	elapsed := time.Since(start)

	metrics.ExchangeCalls.WithLabelValues(op, metrics.Result(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Debug("거래소 호출 실패",
			zap.String("op", op),
			zap.String("symbol", symbol),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return v, err
	}

	o.logger.Debug("거래소 호출",
		zap.String("op", op),
		zap.String("symbol", symbol),
		zap.Duration("elapsed", elapsed),
	)
	return v, nil
}

func observeErr(ctx context.Context, o *observableExchange, op, symbol string, fn func(context.Context) error) error {
	_, err := observe(ctx, o, op, symbol, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (o *observableExchange) GetServerTime(ctx context.Context) (time.Time, error) {
	return observe(ctx, o, "GetServerTime", "", o.next.GetServerTime)
}

func (o *observableExchange) GetKlines(ctx context.Context, symbol string, interval domain.TimeInterval, limit int) ([]domain.KlineRow, error) {
	return observe(ctx, o, "GetKlines", symbol, func(ctx context.Context) ([]domain.KlineRow, error) {
		return o.next.GetKlines(ctx, symbol, interval, limit)
	})
}

func (o *observableExchange) GetOrderBook(ctx context.Context, symbol string, depth int) (domain.RawOrderBook, error) {
	return observe(ctx, o, "GetOrderBook", symbol, func(ctx context.Context) (domain.RawOrderBook, error) {
		return o.next.GetOrderBook(ctx, symbol, depth)
	})
}

func (o *observableExchange) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	return observe(ctx, o, "GetTicker", symbol, func(ctx context.Context) (domain.Ticker, error) {
		return o.next.GetTicker(ctx, symbol)
	})
}

func (o *observableExchange) GetInstrumentInfo(ctx context.Context, symbol string) (domain.InstrumentInfo, error) {
	return observe(ctx, o, "GetInstrumentInfo", symbol, func(ctx context.Context) (domain.InstrumentInfo, error) {
		return o.next.GetInstrumentInfo(ctx, symbol)
	})
}

func (o *observableExchange) GetSymbols(ctx context.Context) ([]string, error) {
	return observe(ctx, o, "GetSymbols", "", o.next.GetSymbols)
}

func (o *observableExchange) GetBalance(ctx context.Context) (domain.Balance, error) {
	return observe(ctx, o, "GetBalance", "", o.next.GetBalance)
}

func (o *observableExchange) GetPositions(ctx context.Context) ([]domain.Position, error) {
	return observe(ctx, o, "GetPositions", "", o.next.GetPositions)
}

func (o *observableExchange) GetClosedPnL(ctx context.Context, limit int) ([]domain.ClosedPnL, error) {
	return observe(ctx, o, "GetClosedPnL", "", func(ctx context.Context) ([]domain.ClosedPnL, error) {
		return o.next.GetClosedPnL(ctx, limit)
	})
}

// PlaceOrder는 주문이므로 INFO 수준으로 남깁니다
func (o *observableExchange) PlaceOrder(ctx context.Context, params domain.PlaceOrderParams) (domain.PlaceOrderResponse, error) {
	o.logger.Info("주문 제출",
		zap.String("symbol", params.Symbol),
		zap.String("side", string(params.Side)),
		zap.String("qty", params.Quantity.String()),
		zap.String("linkId", params.LinkID),
	)
	return observe(ctx, o, "PlaceOrder", params.Symbol, func(ctx context.Context) (domain.PlaceOrderResponse, error) {
		return o.next.PlaceOrder(ctx, params)
	})
}

func (o *observableExchange) SetMarginMode(ctx context.Context, symbol string, mode domain.MarginMode, leverage int) error {
	return observeErr(ctx, o, "SetMarginMode", symbol, func(ctx context.Context) error {
		return o.next.SetMarginMode(ctx, symbol, mode, leverage)
	})
}

func (o *observableExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return observeErr(ctx, o, "SetLeverage", symbol, func(ctx context.Context) error {
		return o.next.SetLeverage(ctx, symbol, leverage)
	})
}

func (o *observableExchange) SyncTime(ctx context.Context) error {
	return observeErr(ctx, o, "SyncTime", "", o.next.SyncTime)
}
