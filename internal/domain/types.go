package domain

import "fmt"

// OrderSide는 주문 방향을 정의합니다 (바이비트 v5 표기)
type OrderSide string

const (
	Buy  OrderSide = "Buy"
	Sell OrderSide = "Sell"
)

// Valid는 지원하는 주문 방향인지 확인합니다
func (s OrderSide) Valid() bool {
	return s == Buy || s == Sell
}

// ParseOrderSide는 사용자 입력을 주문 방향으로 변환합니다
func ParseOrderSide(v string) (OrderSide, error) {
	switch v {
	case "Buy", "buy", "BUY", "long", "LONG":
		return Buy, nil
	case "Sell", "sell", "SELL", "short", "SHORT":
		return Sell, nil
	default:
		return "", NewError(ErrInvalidSide, "", "parse_side", fmt.Errorf("알 수 없는 주문 방향: %q", v))
	}
}

// PositionSide는 포지션 방향을 정의합니다
type PositionSide string

const (
	LongPosition  PositionSide = "LONG"
	ShortPosition PositionSide = "SHORT"
)

// OrderType은 주문 유형을 정의합니다
type OrderType string

const (
	Market OrderType = "Market"
	Limit  OrderType = "Limit"
)

// MarginMode는 마진 모드를 정의합니다
type MarginMode string

const (
	MarginIsolated MarginMode = "isolated"
	MarginCross    MarginMode = "cross"
)

// Valid는 알려진 마진 모드인지 확인합니다
func (m MarginMode) Valid() bool {
	return m == MarginIsolated || m == MarginCross
}

// TradeMode는 바이비트 switch-isolated 요청의 tradeMode 값을 반환합니다
func (m MarginMode) TradeMode() int {
	if m == MarginIsolated {
		return 1
	}
	return 0
}

// TimeInterval은 캔들 차트의 시간 간격을 정의합니다 (바이비트 kline interval 값)
type TimeInterval string

const (
	Interval1m  TimeInterval = "1"
	Interval3m  TimeInterval = "3"
	Interval5m  TimeInterval = "5"
	Interval15m TimeInterval = "15"
	Interval30m TimeInterval = "30"
	Interval1h  TimeInterval = "60"
	Interval2h  TimeInterval = "120"
	Interval4h  TimeInterval = "240"
	Interval6h  TimeInterval = "360"
	Interval12h TimeInterval = "720"
	Interval1d  TimeInterval = "D"
	Interval1w  TimeInterval = "W"
	Interval1M  TimeInterval = "M"
)

var validIntervals = map[TimeInterval]struct{}{
	Interval1m: {}, Interval3m: {}, Interval5m: {}, Interval15m: {}, Interval30m: {},
	Interval1h: {}, Interval2h: {}, Interval4h: {}, Interval6h: {}, Interval12h: {},
	Interval1d: {}, Interval1w: {}, Interval1M: {},
}

// Valid는 바이비트에서 지원하는 간격인지 확인합니다
func (i TimeInterval) Valid() bool {
	_, ok := validIntervals[i]
	return ok
}

// NotificationColor는 알림 색상 코드를 정의합니다
const (
	ColorSuccess = 0x00FF00 // 녹색
	ColorError   = 0xFF0000 // 빨간색
	ColorInfo    = 0x0000FF // 파란색
	ColorWarning = 0xFFA500 // 주황색
)
