package domain

// Balance는 계정 잔고 정보를 표현합니다
type Balance struct {
	Coin             string  // 자산 심볼 (예: USDT)
	WalletBalance    float64 // 지갑 잔고
	Available        float64 // 출금/주문 가능 잔고
	UnrealizedProfit float64 // 미실현 손익
}

// ClosedPnL은 청산된 포지션의 실현 손익 기록입니다
type ClosedPnL struct {
	Symbol    string
	Side      OrderSide
	ClosedPnL float64
	UpdatedAt int64 // ms
}

// AccountSnapshot은 계정 현황 요약입니다
type AccountSnapshot struct {
	WalletBalance float64
	Positions     []Position
	ClosedPnL     float64 // 최근 청산 손익 합계
}
