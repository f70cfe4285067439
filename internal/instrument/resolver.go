// Package instrument은 심볼별 가격/수량 정밀도를 조회하고 캐시합니다.
package instrument

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/assist-by/chartdesk/internal/domain"
)

// MetadataSource는 상품 메타데이터 조회 기능입니다
type MetadataSource interface {
	GetInstrumentInfo(ctx context.Context, symbol string) (domain.InstrumentInfo, error)
}

// Resolver는 심볼 정밀도를 세션 동안 캐시합니다
// 캐시 키가 심볼이므로 심볼이 바뀌면 다른 심볼의 값이 재사용되지 않습니다
type Resolver struct {
	source MetadataSource
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]domain.InstrumentPrecision
}

// Option은 Resolver 옵션입니다
type Option func(*Resolver)

// WithLogger는 로거를 설정합니다
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver는 새로운 Resolver를 생성합니다
func NewResolver(source MetadataSource, opts ...Option) *Resolver {
	r := &Resolver{
		source: source,
		logger: zap.NewNop(),
		cache:  make(map[string]domain.InstrumentPrecision),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve는 심볼의 정밀도를 반환합니다
// 실패한 조회는 캐시하지 않습니다
func (r *Resolver) Resolve(ctx context.Context, symbol string) (domain.InstrumentPrecision, error) {
	r.mu.RLock()
	p, ok := r.cache[symbol]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	info, err := r.source.GetInstrumentInfo(ctx, symbol)
	if err != nil {
		return domain.InstrumentPrecision{}, domain.NewError(domain.ErrMetadataUnavailable, symbol, "resolve_precision", err)
	}
	if info.Symbol != "" && info.Symbol != symbol {
		return domain.InstrumentPrecision{}, domain.NewError(domain.ErrMetadataUnavailable, symbol, "resolve_precision",
			fmt.Errorf("다른 심볼의 메타데이터 응답: %s", info.Symbol))
	}
	if info.TickSize == "" || info.QtyStep == "" {
		return domain.InstrumentPrecision{}, domain.NewError(domain.ErrMetadataUnavailable, symbol, "resolve_precision",
			fmt.Errorf("tickSize/qtyStep 누락"))
	}
	if info.MaxLeverage <= 0 {
		return domain.InstrumentPrecision{}, domain.NewError(domain.ErrMetadataUnavailable, symbol, "resolve_precision",
			fmt.Errorf("최대 레버리지가 올바르지 않음: %v", info.MaxLeverage))
	}

	p = domain.InstrumentPrecision{
		Symbol:         symbol,
		PricePrecision: DecimalPlaces(info.TickSize),
		QtyPrecision:   DecimalPlaces(info.QtyStep),
		MaxLeverage:    info.MaxLeverage,
		TickSize:       info.TickSize,
		QtyStep:        info.QtyStep,
		MinOrderQty:    info.MinOrderQty,
	}

	r.mu.Lock()
	r.cache[symbol] = p
	r.mu.Unlock()

	r.logger.Debug("정밀도 조회 완료",
		zap.String("symbol", symbol),
		zap.Int("price_precision", p.PricePrecision),
		zap.Int("qty_precision", p.QtyPrecision),
		zap.Float64("max_leverage", p.MaxLeverage))
	return p, nil
}

// ResolveOrDefault는 조회 실패 시 정밀도 0, 레버리지 1로 대체합니다
// 두 번째 반환값은 대체값 사용 여부입니다
func (r *Resolver) ResolveOrDefault(ctx context.Context, symbol string) (domain.InstrumentPrecision, bool) {
	p, err := r.Resolve(ctx, symbol)
	if err != nil {
		r.logger.Warn("정밀도 조회 실패, 기본값 사용",
			zap.String("symbol", symbol),
			zap.Error(err))
		return domain.DefaultPrecision(symbol), true
	}
	return p, false
}

// Invalidate는 심볼 캐시를 제거합니다
func (r *Resolver) Invalidate(symbol string) {
	r.mu.Lock()
	delete(r.cache, symbol)
	r.mu.Unlock()
}

// DecimalPlaces는 단위 문자열의 소수점 이하 자릿수를 반환합니다
// "0.01" -> 2, "1" -> 0
func DecimalPlaces(step string) int {
	step = strings.TrimSpace(step)
	idx := strings.IndexByte(step, '.')
	if idx < 0 {
		return 0
	}
	return len(step) - idx - 1
}
