package domain

import (
	"errors"
	"fmt"
)

// 에러 종류 - errors.Is로 판별합니다
var (
	ErrMetadataUnavailable = errors.New("상품 메타데이터를 조회할 수 없습니다")
	ErrInvalidPrecision    = errors.New("잘못된 정밀도 또는 기준 가격입니다")
	ErrDataUnavailable     = errors.New("시장 데이터를 조회할 수 없습니다")
	ErrMalformedResponse   = errors.New("응답 형식이 올바르지 않습니다")
	ErrInvalidSide         = errors.New("잘못된 주문 방향입니다")
	ErrSizing              = errors.New("주문 수량 계산에 실패했습니다")
	ErrExecutionRejected   = errors.New("주문이 거부되었습니다")
	ErrSubscription        = errors.New("스트림 구독 오류입니다")
)

var kinds = []error{
	ErrMetadataUnavailable,
	ErrInvalidPrecision,
	ErrDataUnavailable,
	ErrMalformedResponse,
	ErrInvalidSide,
	ErrSizing,
	ErrExecutionRejected,
	ErrSubscription,
}

// Error는 에러 종류와 발생 위치를 함께 담는 구조체입니다
type Error struct {
	Kind   error
	Symbol string
	Op     string
	Err    error
}

// Error는 error 인터페이스를 구현합니다
func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Symbol != "" {
		return fmt.Sprintf("[%s, 작업: %s] %s", e.Symbol, e.Op, msg)
	}
	return fmt.Sprintf("[작업: %s] %s", e.Op, msg)
}

// Unwrap은 에러 종류와 원인 에러를 모두 반환합니다 (errors.Is/As 지원을 위함)
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError는 새로운 Error를 생성합니다
func NewError(kind error, symbol, op string, err error) *Error {
	return &Error{
		Kind:   kind,
		Symbol: symbol,
		Op:     op,
		Err:    err,
	}
}

// KindOf는 에러 체인에서 가장 바깥쪽 에러 종류를 찾습니다
// 분류되지 않은 에러라면 fallback을 반환합니다
func KindOf(err error, fallback error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return fallback
}

// FromPanic은 작업 경계에서 복구한 panic 값을 분류된 에러로 변환합니다
func FromPanic(kind error, symbol, op string, r any) *Error {
	return NewError(kind, symbol, op, fmt.Errorf("예기치 않은 실패: %v", r))
}
