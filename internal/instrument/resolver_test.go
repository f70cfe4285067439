package instrument

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/chartdesk/internal/domain"
)

type fakeSource struct {
	infos map[string]domain.InstrumentInfo
	err   error
	calls atomic.Int32
}

func (f *fakeSource) GetInstrumentInfo(_ context.Context, symbol string) (domain.InstrumentInfo, error) {
	f.calls.Add(1)
	if f.err != nil {
		return domain.InstrumentInfo{}, f.err
	}
	info, ok := f.infos[symbol]
	if !ok {
		return domain.InstrumentInfo{}, errors.New("심볼 없음")
	}
	return info, nil
}

func TestDecimalPlaces(t *testing.T) {
	tests := []struct {
		name string
		step string
		want int
	}{
		{name: "정수 단위", step: "1", want: 0},
		{name: "소수 2자리", step: "0.01", want: 2},
		{name: "끝자리 0 포함", step: "0.10", want: 2},
		{name: "소수 5자리", step: "0.00001", want: 5},
		{name: "큰 정수 단위", step: "100", want: 0},
		{name: "빈 문자열", step: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecimalPlaces(tt.step))
		})
	}
}

func TestResolveCachesPerSymbol(t *testing.T) {
	src := &fakeSource{infos: map[string]domain.InstrumentInfo{
		"BTCUSDT":  {Symbol: "BTCUSDT", TickSize: "0.10", QtyStep: "0.001", MaxLeverage: 100},
		"DOGEUSDT": {Symbol: "DOGEUSDT", TickSize: "0.00001", QtyStep: "1", MaxLeverage: 50},
	}}
	r := NewResolver(src)

	btc, err := r.Resolve(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2, btc.PricePrecision)
	assert.Equal(t, 3, btc.QtyPrecision)

	_, err = r.Resolve(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.calls.Load())

	doge, err := r.Resolve(context.Background(), "DOGEUSDT")
	require.NoError(t, err)
	assert.Equal(t, 5, doge.PricePrecision)
	assert.Equal(t, 0, doge.QtyPrecision)
	assert.EqualValues(t, 2, src.calls.Load())

	r.Invalidate("BTCUSDT")
	_, err = r.Resolve(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.EqualValues(t, 3, src.calls.Load())
}

func TestResolveFailures(t *testing.T) {
	tests := []struct {
		name string
		src  *fakeSource
	}{
		{name: "알 수 없는 심볼", src: &fakeSource{infos: map[string]domain.InstrumentInfo{}}},
		{name: "엔드포인트 에러", src: &fakeSource{err: errors.New("timeout")}},
		{name: "최대 레버리지 0", src: &fakeSource{infos: map[string]domain.InstrumentInfo{
			"BTCUSDT": {Symbol: "BTCUSDT", TickSize: "0.1", QtyStep: "0.001"},
		}}},
		{name: "다른 심볼 응답", src: &fakeSource{infos: map[string]domain.InstrumentInfo{
			"BTCUSDT": {Symbol: "ETHUSDT", TickSize: "0.1", QtyStep: "0.001", MaxLeverage: 10},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.src)
			_, err := r.Resolve(context.Background(), "BTCUSDT")
			assert.ErrorIs(t, err, domain.ErrMetadataUnavailable)

			// 실패는 캐시하지 않음
			_, _ = r.Resolve(context.Background(), "BTCUSDT")
			assert.EqualValues(t, 2, tt.src.calls.Load())
		})
	}
}

func TestResolveOrDefault(t *testing.T) {
	r := NewResolver(&fakeSource{err: errors.New("down")})

	p, fellBack := r.ResolveOrDefault(context.Background(), "BTCUSDT")
	assert.True(t, fellBack)
	assert.Equal(t, 0, p.PricePrecision)
	assert.Equal(t, 0, p.QtyPrecision)
	assert.Equal(t, 1.0, p.MaxLeverage)
}
