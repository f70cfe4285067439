package position

import (
	"context"

	"github.com/assist-by/chartdesk/internal/domain"
)

// Executor는 시장가 주문 실행을 담당하는 인터페이스입니다
// 주문은 멱등하지 않으므로 구현체와 호출자 모두 재시도하지 않습니다
type Executor interface {
	// Execute는 정밀도 조회, 수량 계산, 익절/손절 계산 후 주문을 한 번 제출합니다
	Execute(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
}
