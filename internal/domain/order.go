package domain

import "github.com/shopspring/decimal"

// OrderRequest는 사용자가 요청한 시장가 주문을 표현합니다
type OrderRequest struct {
	Symbol        string    // 심볼 (예: BTCUSDT)
	Side          OrderSide // 매수/매도
	NotionalUSDT  float64   // 주문 명목 가치 (USDT 기준, 0보다 커야 함)
	Leverage      int       // 레버리지 (1 이상, 심볼 최대 레버리지 이하)
	MarginMode    MarginMode
	TakeProfitPct float64 // 익절 비율 (0이면 익절 주문 없음)
	StopLossPct   float64 // 손절 비율 (0이면 손절 주문 없음)
}

// OrderResult는 주문 실행 결과를 표현합니다
type OrderResult struct {
	Accepted   bool            // 거래소 접수 여부
	OrderID    string          // 거래소 주문 ID
	LinkID     string          // 클라이언트 측 주문 ID
	Symbol     string          // 심볼
	Side       OrderSide       // 매수/매도
	Quantity   decimal.Decimal // 제출된 수량 (시장가 주문이므로 체결 수량으로 간주)
	TakeProfit decimal.Decimal // 익절가 (없으면 0)
	StopLoss   decimal.Decimal // 손절가 (없으면 0)
	MarkPrice  float64         // 계산 기준 마크 가격
	Error      string          // 실패 시 사유
}

// PlaceOrderParams는 거래소에 전달되는 정규화된 주문 파라미터입니다
type PlaceOrderParams struct {
	Symbol      string
	Side        OrderSide
	Type        OrderType
	Quantity    decimal.Decimal
	TakeProfit  decimal.Decimal // 0이면 생략
	StopLoss    decimal.Decimal // 0이면 생략
	QtyDecimals int             // 수량 문자열 소수점 자릿수
	PxDecimals  int             // 가격 문자열 소수점 자릿수
	LinkID      string
}

// PlaceOrderResponse는 주문 생성 응답입니다
type PlaceOrderResponse struct {
	OrderID string
	LinkID  string
}

// Position은 포지션 정보를 표현합니다
type Position struct {
	Symbol        string       // 심볼 (예: BTCUSDT)
	PositionSide  PositionSide // 롱/숏 포지션
	Quantity      float64      // 포지션 수량
	EntryPrice    float64      // 평균 진입가
	Leverage      int          // 레버리지
	MarkPrice     float64      // 마크 가격
	UnrealizedPnL float64      // 미실현 손익
}
