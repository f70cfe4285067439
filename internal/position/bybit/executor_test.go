package bybit

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/chartdesk/internal/domain"
)

type fakeTrading struct {
	placed      []domain.PlaceOrderParams
	marginCalls []domain.MarginMode
	leverage    []int
	marginErr   error
	leverageErr error
	placeErr    error
}

func (f *fakeTrading) PlaceOrder(ctx context.Context, params domain.PlaceOrderParams) (domain.PlaceOrderResponse, error) {
	f.placed = append(f.placed, params)
	if f.placeErr != nil {
		return domain.PlaceOrderResponse{}, f.placeErr
	}
	return domain.PlaceOrderResponse{OrderID: "ord-1", LinkID: params.LinkID}, nil
}

func (f *fakeTrading) SetMarginMode(ctx context.Context, symbol string, mode domain.MarginMode, leverage int) error {
	f.marginCalls = append(f.marginCalls, mode)
	return f.marginErr
}

func (f *fakeTrading) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	f.leverage = append(f.leverage, leverage)
	return f.leverageErr
}

type fakePrecision struct {
	prec domain.InstrumentPrecision
	err  error
}

func (f fakePrecision) Resolve(ctx context.Context, symbol string) (domain.InstrumentPrecision, error) {
	return f.prec, f.err
}

type fakePrice struct {
	price float64
	err   error
}

func (f fakePrice) FetchMarkPrice(ctx context.Context, symbol string) (domain.PriceTick, error) {
	if f.err != nil {
		return domain.PriceTick{}, f.err
	}
	return domain.PriceTick{Symbol: symbol, MarkPrice: f.price}, nil
}

var btcPrecision = domain.InstrumentPrecision{
	Symbol:         "BTCUSDT",
	PricePrecision: 2,
	QtyPrecision:   3,
	MaxLeverage:    100,
}

func baseRequest() domain.OrderRequest {
	return domain.OrderRequest{
		Symbol:        "BTCUSDT",
		Side:          domain.Buy,
		NotionalUSDT:  50,
		Leverage:      10,
		MarginMode:    domain.MarginIsolated,
		TakeProfitPct: 0.012,
		StopLossPct:   0.009,
	}
}

func newTestExecutor(trading *fakeTrading, prec fakePrecision, price fakePrice) *Executor {
	return NewExecutor(trading, prec, price, WithLinkIDGenerator(func() string { return "cd-test" }))
}

func TestExecuteLong(t *testing.T) {
	trading := &fakeTrading{}
	e := newTestExecutor(trading, fakePrecision{prec: btcPrecision}, fakePrice{price: 65000})

	res, err := e.Execute(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.Equal(t, "ord-1", res.OrderID)
	assert.Equal(t, "cd-test", res.LinkID)
	assert.True(t, res.Quantity.Equal(decimal.RequireFromString("0.001")))
	assert.True(t, res.TakeProfit.Equal(decimal.RequireFromString("65780")), res.TakeProfit.String())
	assert.True(t, res.StopLoss.Equal(decimal.RequireFromString("64415")), res.StopLoss.String())
	assert.Empty(t, res.Error)

	require.Len(t, trading.placed, 1)
	p := trading.placed[0]
	assert.Equal(t, domain.Market, p.Type)
	assert.Equal(t, domain.Buy, p.Side)
	assert.Equal(t, 3, p.QtyDecimals)
	assert.Equal(t, 2, p.PxDecimals)
	assert.Equal(t, []domain.MarginMode{domain.MarginIsolated}, trading.marginCalls)
	assert.Equal(t, []int{10}, trading.leverage)
}

func TestExecuteShortWithoutBracket(t *testing.T) {
	trading := &fakeTrading{}
	e := newTestExecutor(trading, fakePrecision{prec: btcPrecision}, fakePrice{price: 65000})

	req := baseRequest()
	req.Side = domain.Sell
	req.TakeProfitPct = 0
	req.StopLossPct = 0
	req.MarginMode = ""

	res, err := e.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.TakeProfit.IsZero())
	assert.True(t, res.StopLoss.IsZero())
	assert.Equal(t, []domain.MarginMode{domain.MarginIsolated}, trading.marginCalls)
}

func TestExecuteFailures(t *testing.T) {
	transport := domain.NewError(domain.ErrDataUnavailable, "BTCUSDT", "/v5/order/create", errors.New("timeout"))

	tests := []struct {
		name      string
		mutate    func(*domain.OrderRequest)
		trading   *fakeTrading
		precision fakePrecision
		price     fakePrice
		kinds     []error
		placed    int
	}{
		{
			name:      "잘못된 방향",
			mutate:    func(r *domain.OrderRequest) { r.Side = "HOLD" },
			trading:   &fakeTrading{},
			precision: fakePrecision{prec: btcPrecision},
			price:     fakePrice{price: 65000},
			kinds:     []error{domain.ErrInvalidSide},
		},
		{
			name:      "명목 가치 0",
			mutate:    func(r *domain.OrderRequest) { r.NotionalUSDT = 0 },
			trading:   &fakeTrading{},
			precision: fakePrecision{prec: btcPrecision},
			price:     fakePrice{price: 65000},
			kinds:     []error{domain.ErrSizing},
		},
		{
			name:      "레버리지 0",
			mutate:    func(r *domain.OrderRequest) { r.Leverage = 0 },
			trading:   &fakeTrading{},
			precision: fakePrecision{prec: btcPrecision},
			price:     fakePrice{price: 65000},
			kinds:     []error{domain.ErrSizing},
		},
		{
			name:      "정밀도 조회 실패",
			trading:   &fakeTrading{},
			precision: fakePrecision{err: domain.NewError(domain.ErrMetadataUnavailable, "BTCUSDT", "resolve", nil)},
			price:     fakePrice{price: 65000},
			kinds:     []error{domain.ErrSizing, domain.ErrMetadataUnavailable},
		},
		{
			name:      "최대 레버리지 초과",
			mutate:    func(r *domain.OrderRequest) { r.Leverage = 125 },
			trading:   &fakeTrading{},
			precision: fakePrecision{prec: btcPrecision},
			price:     fakePrice{price: 65000},
			kinds:     []error{domain.ErrSizing},
		},
		{
			name:      "가격 조회 실패",
			trading:   &fakeTrading{},
			precision: fakePrecision{prec: btcPrecision},
			price:     fakePrice{err: domain.NewError(domain.ErrDataUnavailable, "BTCUSDT", "ticker", nil)},
			kinds:     []error{domain.ErrSizing, domain.ErrDataUnavailable},
		},
		{
			name:      "수량이 0으로 반올림",
			mutate:    func(r *domain.OrderRequest) { r.NotionalUSDT = 1 },
			trading:   &fakeTrading{},
			precision: fakePrecision{prec: btcPrecision},
			price:     fakePrice{price: 65000},
			kinds:     []error{domain.ErrSizing},
		},
		{
			name:      "마진 모드 설정 실패",
			trading:   &fakeTrading{marginErr: errors.New("API 에러")},
			precision: fakePrecision{prec: btcPrecision},
			price:     fakePrice{price: 65000},
			kinds:     []error{domain.ErrExecutionRejected},
		},
		{
			name:      "레버리지 설정 실패",
			trading:   &fakeTrading{leverageErr: errors.New("API 에러")},
			precision: fakePrecision{prec: btcPrecision},
			price:     fakePrice{price: 65000},
			kinds:     []error{domain.ErrExecutionRejected},
		},
		{
			name:      "거래소 거부",
			trading:   &fakeTrading{placeErr: errors.New("insufficient balance")},
			precision: fakePrecision{prec: btcPrecision},
			price:     fakePrice{price: 65000},
			kinds:     []error{domain.ErrExecutionRejected},
			placed:    1,
		},
		{
			name:      "전송 실패는 재시도하지 않음",
			trading:   &fakeTrading{placeErr: transport},
			precision: fakePrecision{prec: btcPrecision},
			price:     fakePrice{price: 65000},
			kinds:     []error{domain.ErrExecutionRejected, domain.ErrDataUnavailable},
			placed:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			if tt.mutate != nil {
				tt.mutate(&req)
			}
			e := newTestExecutor(tt.trading, tt.precision, tt.price)

			res, err := e.Execute(context.Background(), req)
			require.Error(t, err)
			for _, kind := range tt.kinds {
				assert.ErrorIs(t, err, kind)
			}
			assert.False(t, res.Accepted)
			assert.NotEmpty(t, res.Error)
			assert.Len(t, tt.trading.placed, tt.placed)
		})
	}
}

func TestNewLinkID(t *testing.T) {
	a, b := newLinkID(), newLinkID()
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, len(a), 36)
	assert.Contains(t, a, "cd-")
}
