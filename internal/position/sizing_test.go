package position

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/chartdesk/internal/domain"
)

func TestSizeOrder(t *testing.T) {
	tests := []struct {
		name      string
		notional  float64
		price     float64
		precision int
		want      string
	}{
		{name: "BTC 50달러 3자리", notional: 50, price: 65000.1234, precision: 3, want: "0.001"},
		{name: "정수 수량", notional: 50, price: 0.12, precision: 0, want: "417"},
		{name: "0.5 올림", notional: 25, price: 10, precision: 0, want: "3"},
		{name: "ETH 100달러 2자리", notional: 100, price: 3000, precision: 2, want: "0.03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qty, err := SizeOrder(tt.notional, tt.price, tt.precision)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(qty), "got %s", qty)
		})
	}
}

func TestSizeOrderWithinOneUnit(t *testing.T) {
	prices := []float64{0.0123, 1.5, 27.3, 3011.5, 65000.1234}
	for _, price := range prices {
		for precision := 0; precision <= 4; precision++ {
			qty, err := SizeOrder(1000, price, precision)
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrSizing)
				continue
			}
			// 소수점 자릿수가 정밀도를 넘지 않음
			assert.LessOrEqual(t, -qty.Exponent(), int32(precision))

			// qty×price 와 notional의 차이는 한 단위 반올림 이내
			unit := math.Pow10(-precision) * price
			got := qty.InexactFloat64() * price
			assert.LessOrEqual(t, math.Abs(got-1000), unit/2+1e-9, "price %v precision %d", price, precision)
		}
	}
}

func TestSizeOrderErrors(t *testing.T) {
	_, err := SizeOrder(50, 100, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidPrecision)

	_, err = SizeOrder(50, 0, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidPrecision)

	_, err = SizeOrder(0, 100, 2)
	assert.ErrorIs(t, err, domain.ErrSizing)

	// 반올림 결과가 0이면 주문할 수 없음
	_, err = SizeOrder(1, 65000, 3)
	assert.ErrorIs(t, err, domain.ErrSizing)
}

func TestComputeBracket(t *testing.T) {
	tests := []struct {
		name      string
		price     float64
		side      domain.OrderSide
		tp, sl    float64
		precision int
		wantTP    string
		wantSL    string
	}{
		{name: "롱 2자리", price: 65000, side: domain.Buy, tp: 0.012, sl: 0.009, precision: 2, wantTP: "65780", wantSL: "64415"},
		{name: "숏 2자리", price: 65000, side: domain.Sell, tp: 0.012, sl: 0.009, precision: 2, wantTP: "64220", wantSL: "65585"},
		{name: "롱 반올림", price: 1.2345, side: domain.Buy, tp: 0.01, sl: 0.01, precision: 3, wantTP: "1.247", wantSL: "1.222"},
		{name: "손절 없음", price: 100, side: domain.Buy, tp: 0.05, sl: 0, precision: 1, wantTP: "105", wantSL: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, sl, err := ComputeBracket(tt.price, tt.side, tt.tp, tt.sl, tt.precision)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.wantTP).Equal(tp), "tp %s", tp)
			assert.True(t, decimal.RequireFromString(tt.wantSL).Equal(sl), "sl %s", sl)
		})
	}
}

func TestComputeBracketSymmetry(t *testing.T) {
	price := 3011.37
	longTP, longSL, err := ComputeBracket(price, domain.Buy, 0.02, 0.01, 2)
	require.NoError(t, err)
	shortTP, shortSL, err := ComputeBracket(price, domain.Sell, 0.01, 0.02, 2)
	require.NoError(t, err)

	// 롱의 익절은 같은 비율을 손절로 쓰는 숏의 손절과 같음
	assert.True(t, longTP.Equal(shortSL))
	assert.True(t, longSL.Equal(shortTP))
	assert.True(t, longTP.GreaterThan(decimal.NewFromFloat(price)))
	assert.True(t, longSL.LessThan(decimal.NewFromFloat(price)))
}

func TestComputeBracketErrors(t *testing.T) {
	_, _, err := ComputeBracket(100, domain.OrderSide("Hold"), 0.01, 0.01, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidSide)

	_, _, err = ComputeBracket(100, domain.Buy, 0.01, 0.01, -2)
	assert.ErrorIs(t, err, domain.ErrInvalidPrecision)

	_, _, err = ComputeBracket(-1, domain.Sell, 0.01, 0.01, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidPrecision)

	_, _, err = ComputeBracket(100, domain.Buy, 1.5, 0.01, 2)
	assert.ErrorIs(t, err, domain.ErrSizing)
}

func TestPositionSideFor(t *testing.T) {
	assert.Equal(t, domain.LongPosition, PositionSideFor(domain.Buy))
	assert.Equal(t, domain.ShortPosition, PositionSideFor(domain.Sell))
}
