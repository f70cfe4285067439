package domain

// InstrumentInfo는 거래소에서 조회한 원본 상품 메타데이터입니다
type InstrumentInfo struct {
	Symbol      string
	Status      string
	TickSize    string // 가격 최소 단위 (예: "0.10")
	QtyStep     string // 수량 최소 단위 (예: "0.001")
	MinOrderQty string
	MaxLeverage float64
}

// InstrumentPrecision은 주문 수량/가격 반올림에 사용하는 정밀도입니다
type InstrumentPrecision struct {
	Symbol         string
	PricePrecision int // 가격 소수점 자릿수
	QtyPrecision   int // 수량 소수점 자릿수
	MaxLeverage    float64
	TickSize       string
	QtyStep        string
	MinOrderQty    string
}

// DefaultPrecision은 메타데이터를 얻지 못했을 때 사용하는 명시적 대체값입니다
func DefaultPrecision(symbol string) InstrumentPrecision {
	return InstrumentPrecision{
		Symbol:      symbol,
		MaxLeverage: 1,
	}
}
