package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/assist-by/chartdesk/internal/domain"
	"github.com/assist-by/chartdesk/internal/metrics"
)

// State는 갱신 핸들의 상태입니다
// Idle → Scheduled → Fetching → Scheduled → … → Cancelled
type State int32

const (
	StateIdle State = iota
	StateScheduled
	StateFetching
	StateCancelled
)

// String은 State의 문자열 표현을 반환합니다
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateScheduled:
		return "Scheduled"
	case StateFetching:
		return "Fetching"
	case StateCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Handle은 스트림 하나의 예약된 갱신 작업을 소유합니다
// Stop은 타이머를 해제하고, Abort는 진행 중인 조회의 컨텍스트를 취소합니다
type Handle struct {
	st    *stream
	state atomic.Int32

	stopCh   chan struct{}
	stopOnce sync.Once

	ctx   context.Context
	abort context.CancelFunc
	done  chan struct{}
}

func newHandle(st *stream) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{
		st:     st,
		stopCh: make(chan struct{}),
		ctx:    ctx,
		abort:  cancel,
		done:   make(chan struct{}),
	}
}

// State는 현재 상태를 반환합니다
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Stop은 어느 상태에서든 즉시 Cancelled로 전이합니다
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.state.Store(int32(StateCancelled))
		close(h.stopCh)
	})
}

// Abort는 진행 중인 조회를 중단하고 결과를 버리도록 합니다
func (h *Handle) Abort() {
	h.abort()
}

// Done은 핸들 루프가 끝나면 닫히는 채널을 반환합니다
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) stopped() bool {
	select {
	case <-h.stopCh:
		return true
	default:
		return false
	}
}

// transition은 Cancelled가 아닐 때만 상태를 바꿉니다
func (h *Handle) transition(to State) bool {
	for {
		cur := h.state.Load()
		if State(cur) == StateCancelled {
			return false
		}
		if h.state.CompareAndSwap(cur, int32(to)) {
			return true
		}
	}
}

func (s *Scheduler) run(h *Handle) {
	defer s.wg.Done()
	defer close(h.done)
	defer h.abort()

	name := h.st.spec.Name
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		if !h.transition(StateScheduled) {
			return
		}

		select {
		case <-h.stopCh:
			return
		case <-s.done:
			return
		case <-timer.C:
		}

		// 이전 핸들의 조회가 아직 끝나지 않았다면 끝날 때까지 대기
		select {
		case h.st.slot <- struct{}{}:
		case <-h.stopCh:
			return
		case <-s.done:
			return
		}
		if !h.transition(StateFetching) {
			<-h.st.slot
			return
		}

		res := s.fetch(h)
		<-h.st.slot
		s.deliver(h, res)

		if h.stopped() {
			return
		}
		timer.Reset(h.st.spec.Interval)
		s.logger.Debug("다음 갱신 예약",
			zap.String("stream", name),
			zap.Duration("after", h.st.spec.Interval))
	}
}

// fetch는 작업을 한 번 실행합니다
// 작업 내부의 panic은 여기서 복구되어 ErrDataUnavailable로 변환됩니다
func (s *Scheduler) fetch(h *Handle) (res Result) {
	spec := h.st.spec
	sel := s.store.Snapshot()
	res = Result{Stream: spec.Name, Selection: sel, StartedAt: time.Now()}

	gauge := metrics.FetchInFlight.WithLabelValues(spec.Name)
	gauge.Inc()
	defer func() {
		if r := recover(); r != nil {
			res.Value = nil
			res.Err = domain.FromPanic(domain.ErrDataUnavailable, sel.Symbol, spec.Name, r)
			s.logger.Error("갱신 작업 panic 복구", zap.String("stream", spec.Name), zap.Any("panic", r))
		}
		gauge.Dec()
		res.FinishedAt = time.Now()
		metrics.FetchTotal.WithLabelValues(spec.Name, metrics.Result(res.Err)).Inc()
	}()

	ctx := h.ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	res.Value, res.Err = spec.Task.Execute(ctx, sel)
	return res
}

func staleDiscarded(stream string) {
	metrics.StaleDiscarded.WithLabelValues(stream).Inc()
}
