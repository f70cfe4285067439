package position

import (
	"github.com/assist-by/chartdesk/internal/domain"
)

// PositionSideFor는 진입 주문 방향에 따른 포지션 방향을 반환합니다
func PositionSideFor(side domain.OrderSide) domain.PositionSide {
	if side == domain.Buy {
		return domain.LongPosition
	}
	return domain.ShortPosition
}
