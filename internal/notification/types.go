package notification

import (
	"github.com/shopspring/decimal"

	"github.com/assist-by/chartdesk/internal/domain"
	"github.com/assist-by/chartdesk/internal/position"
)

const (
	ColorSuccess = domain.ColorSuccess
	ColorError   = domain.ColorError
	ColorInfo    = domain.ColorInfo
	ColorWarning = domain.ColorWarning
)

// Notifier는 알림 전송 인터페이스를 정의합니다
type Notifier interface {
	// SendError는 에러 알림을 전송합니다
	SendError(err error) error

	// SendInfo는 일반 정보 알림을 전송합니다
	SendInfo(message string) error

	// SendTradeInfo는 거래 실행 정보를 전송합니다
	SendTradeInfo(info TradeInfo) error
}

// TradeInfo는 거래 실행 정보를 정의합니다
type TradeInfo struct {
	Symbol       string          // 심볼 (예: BTCUSDT)
	PositionType string          // "LONG" or "SHORT"
	Notional     float64         // 주문 명목 가치 (USDT)
	Quantity     decimal.Decimal // 주문 수량 (코인)
	MarkPrice    float64         // 기준 마크 가격
	StopLoss     decimal.Decimal // 손절가 (0이면 없음)
	TakeProfit   decimal.Decimal // 익절가 (0이면 없음)
	Leverage     int             // 사용 레버리지
	OrderID      string          // 거래소 주문 ID
}

// TradeInfoFrom은 주문 결과로 거래 정보를 만듭니다
func TradeInfoFrom(req domain.OrderRequest, res domain.OrderResult) TradeInfo {
	return TradeInfo{
		Symbol:       res.Symbol,
		PositionType: string(position.PositionSideFor(res.Side)),
		Notional:     req.NotionalUSDT,
		Quantity:     res.Quantity,
		MarkPrice:    res.MarkPrice,
		StopLoss:     res.StopLoss,
		TakeProfit:   res.TakeProfit,
		Leverage:     req.Leverage,
		OrderID:      res.OrderID,
	}
}

// GetColorForPosition은 포지션 타입에 따른 색상을 반환합니다
func GetColorForPosition(positionType string) int {
	switch positionType {
	case string(domain.LongPosition):
		return ColorSuccess
	case string(domain.ShortPosition):
		return ColorError
	default:
		return ColorInfo
	}
}
