package position

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/assist-by/chartdesk/internal/domain"
)

var one = decimal.NewFromInt(1)

// SizeOrder는 명목 가치(USDT)를 거래소 규격에 맞는 수량으로 변환합니다
// 수량 = notional / price 를 qtyPrecision 자리로 반올림(0.5 올림)합니다
func SizeOrder(notional, referencePrice float64, qtyPrecision int) (decimal.Decimal, error) {
	if err := checkInputs(referencePrice, qtyPrecision); err != nil {
		return decimal.Zero, err
	}
	if notional <= 0 || math.IsNaN(notional) || math.IsInf(notional, 0) {
		return decimal.Zero, domain.NewError(domain.ErrSizing, "", "size_order",
			fmt.Errorf("명목 가치는 0보다 커야 합니다: %v", notional))
	}

	qty := decimal.NewFromFloat(notional).
		Div(decimal.NewFromFloat(referencePrice)).
		Round(int32(qtyPrecision))

	if !qty.IsPositive() {
		return decimal.Zero, domain.NewError(domain.ErrSizing, "", "size_order",
			fmt.Errorf("계산된 수량이 최소 단위보다 작습니다 (명목 %.4f, 가격 %.4f, 자릿수 %d)",
				notional, referencePrice, qtyPrecision))
	}
	return qty, nil
}

// ComputeBracket은 기준 가격과 비율로 익절/손절가를 계산합니다
// 매수: TP = p×(1+tp), SL = p×(1−sl) / 매도: TP = p×(1−tp), SL = p×(1+sl)
// 비율이 0이면 해당 가격은 0으로 반환됩니다
func ComputeBracket(referencePrice float64, side domain.OrderSide, tpPct, slPct float64, pricePrecision int) (tp, sl decimal.Decimal, err error) {
	if err := checkInputs(referencePrice, pricePrecision); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if !side.Valid() {
		return decimal.Zero, decimal.Zero, domain.NewError(domain.ErrInvalidSide, "", "compute_bracket",
			fmt.Errorf("알 수 없는 주문 방향: %q", side))
	}
	if !validPct(tpPct) || !validPct(slPct) {
		return decimal.Zero, decimal.Zero, domain.NewError(domain.ErrSizing, "", "compute_bracket",
			fmt.Errorf("익절/손절 비율은 0 이상 1 미만이어야 합니다 (tp %v, sl %v)", tpPct, slPct))
	}

	price := decimal.NewFromFloat(referencePrice)
	tpOffset := decimal.NewFromFloat(tpPct)
	slOffset := decimal.NewFromFloat(slPct)
	places := int32(pricePrecision)

	if side == domain.Buy {
		tp = price.Mul(one.Add(tpOffset)).Round(places)
		sl = price.Mul(one.Sub(slOffset)).Round(places)
	} else {
		tp = price.Mul(one.Sub(tpOffset)).Round(places)
		sl = price.Mul(one.Add(slOffset)).Round(places)
	}

	if tpPct == 0 {
		tp = decimal.Zero
	}
	if slPct == 0 {
		sl = decimal.Zero
	}
	return tp, sl, nil
}

func checkInputs(price float64, precision int) error {
	if precision < 0 {
		return domain.NewError(domain.ErrInvalidPrecision, "", "check_precision",
			fmt.Errorf("정밀도는 음수일 수 없습니다: %d", precision))
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return domain.NewError(domain.ErrInvalidPrecision, "", "check_price",
			fmt.Errorf("기준 가격은 0보다 커야 합니다: %v", price))
	}
	return nil
}

func validPct(p float64) bool {
	return p >= 0 && p < 1 && !math.IsNaN(p)
}
