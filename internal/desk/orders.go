package desk

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/assist-by/chartdesk/internal/domain"
	"github.com/assist-by/chartdesk/internal/notification"
)

// startOrder는 주문을 작업자 풀에 넘깁니다. 조정 고루틴을 막지 않습니다
func (d *Desk) startOrder(side domain.OrderSide) {
	req := domain.OrderRequest{
		Symbol:        d.store.Snapshot().Symbol,
		Side:          side,
		NotionalUSDT:  d.orderCfg.NotionalUSDT,
		Leverage:      d.orderCfg.Leverage,
		MarginMode:    d.orderCfg.MarginMode,
		TakeProfitPct: d.orderCfg.TakeProfitPct,
		StopLossPct:   d.orderCfg.StopLossPct,
	}

	if d.executor == nil {
		err := domain.NewError(domain.ErrExecutionRejected, req.Symbol, "place_order", errors.New("주문 실행기가 설정되지 않음"))
		d.applyOrder(orderOutcome{
			req: req,
			res: domain.OrderResult{Symbol: req.Symbol, Side: side, Error: err.Error()},
			err: err,
		})
		return
	}

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()

		select {
		case d.sem <- struct{}{}:
		case <-d.workerCtx.Done():
			return
		}
		defer func() { <-d.sem }()

		out := d.execute(req)

		select {
		case d.orders <- out:
		case <-d.workerCtx.Done():
		}
	}()
}

// execute는 주문 하나를 실행합니다. 진행 중인 주문은 종료 시에도 끝까지 기다립니다
func (d *Desk) execute(req domain.OrderRequest) (out orderOutcome) {
	out.req = req
	defer func() {
		if r := recover(); r != nil {
			err := domain.FromPanic(domain.ErrExecutionRejected, req.Symbol, "place_order", r)
			d.logger.Error("주문 작업자 panic", zap.Any("panic", r))
			out.res = domain.OrderResult{Symbol: req.Symbol, Side: req.Side, Error: err.Error()}
			out.err = err
		}
	}()

	ctx := context.WithoutCancel(d.workerCtx)
	out.res, out.err = d.executor.Execute(ctx, req)
	return out
}

func (d *Desk) applyOrder(out orderOutcome) {
	res := out.res
	d.updateView(func(v *View) { v.LastOrder = &res })
	d.display.ShowOrderResult(res)

	if out.err != nil {
		d.display.ShowError("order", out.err)
		d.notify(func(n notification.Notifier) error { return n.SendError(out.err) })
		return
	}
	info := notification.TradeInfoFrom(out.req, res)
	d.notify(func(n notification.Notifier) error { return n.SendTradeInfo(info) })
}

// notify는 알림을 별도 고루틴에서 보냅니다
func (d *Desk) notify(send func(notification.Notifier) error) {
	if d.notifier == nil {
		return
	}
	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		if err := send(d.notifier); err != nil {
			d.logger.Warn("알림 전송 실패", zap.Error(err))
		}
	}()
}
