package domain

import "time"

// KlineRow는 거래소 kline 응답의 원본 행입니다
// [시작시간(ms), 시가, 고가, 저가, 종가, 거래량, 거래대금]
type KlineRow []string

// BookRow는 호가 원본 행입니다 [가격, 수량]
type BookRow []string

// RawOrderBook은 거래소 호가 원본 응답입니다
type RawOrderBook struct {
	Symbol    string
	Asks      []BookRow
	Bids      []BookRow
	Timestamp int64 // ms
}

// Level은 호가 한 단계입니다
type Level struct {
	Price float64
	Qty   float64
}

// OrderBook은 정규화된 호가창입니다
// Asks는 가격 오름차순, Bids는 가격 내림차순입니다
type OrderBook struct {
	Symbol    string
	Asks      []Level
	Bids      []Level
	Timestamp time.Time
}

// Clone은 복사본을 반환합니다
func (b OrderBook) Clone() OrderBook {
	out := b
	out.Asks = append([]Level(nil), b.Asks...)
	out.Bids = append([]Level(nil), b.Bids...)
	return out
}

// Ticker는 거래소 티커 응답입니다
type Ticker struct {
	Symbol    string
	MarkPrice float64
	LastPrice float64
}

// PriceTick은 선택된 심볼의 최신 마크 가격입니다
type PriceTick struct {
	Symbol     string
	MarkPrice  float64
	ObservedAt time.Time
}
