package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/assist-by/chartdesk/internal/domain"
)

// Task는 스케줄러가 실행할 작업을 정의하는 인터페이스입니다
// sel은 해당 주기 시작 시점에 한 번 읽은 선택 스냅샷입니다
type Task interface {
	Execute(ctx context.Context, sel domain.Selection) (any, error)
}

// TaskFunc는 함수를 Task로 사용하기 위한 어댑터입니다
type TaskFunc func(ctx context.Context, sel domain.Selection) (any, error)

// Execute는 Task 인터페이스를 구현합니다
func (f TaskFunc) Execute(ctx context.Context, sel domain.Selection) (any, error) {
	return f(ctx, sel)
}

// StreamSpec은 주기적으로 갱신되는 데이터 스트림 하나를 정의합니다
type StreamSpec struct {
	Name     string        // 스트림 이름 (예: chart, ticker, orderbook)
	Interval time.Duration // 조회 완료 후 다음 조회까지의 간격
	Timeout  time.Duration // 조회 한 번의 제한 시간 (0이면 제한 없음)
	Task     Task
}

// Result는 조회 한 번의 결과입니다
type Result struct {
	Stream     string
	Selection  domain.Selection
	Value      any
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// IsStale은 결과가 현재 선택보다 오래된 것인지 확인합니다
func (r Result) IsStale(current domain.Selection) bool {
	return r.Selection.Version != current.Version
}

type stream struct {
	spec   StreamSpec
	slot   chan struct{} // 스트림당 진행 중인 조회는 최대 하나
	handle *Handle
}

// Scheduler는 스트림별 주기적 조회를 관리합니다
type Scheduler struct {
	store   *domain.SelectionStore
	logger  *zap.Logger
	results chan Result

	mu      sync.Mutex
	streams map[string]*stream
	order   []string
	active  bool
	started bool
	closed  bool

	done chan struct{}
	wg   sync.WaitGroup
}

// Option은 Scheduler 옵션입니다
type Option func(*Scheduler)

// WithLogger는 로거를 설정합니다
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithResultBuffer는 결과 채널 버퍼 크기를 설정합니다
func WithResultBuffer(n int) Option {
	return func(s *Scheduler) {
		s.results = make(chan Result, n)
	}
}

// NewScheduler는 새로운 스케줄러를 생성합니다
func NewScheduler(store *domain.SelectionStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:   store,
		logger:  zap.NewNop(),
		results: make(chan Result, 16),
		streams: make(map[string]*stream),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register는 스트림을 등록합니다
// 이미 시작된 스케줄러에 등록하면 바로 예약됩니다
func (s *Scheduler) Register(spec StreamSpec) error {
	if spec.Name == "" || spec.Task == nil {
		return fmt.Errorf("스트림 이름과 작업은 필수입니다")
	}
	if spec.Interval <= 0 {
		return fmt.Errorf("스트림 %s의 간격은 0보다 커야 합니다", spec.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("종료된 스케줄러입니다")
	}
	if _, exists := s.streams[spec.Name]; exists {
		return fmt.Errorf("이미 등록된 스트림: %s", spec.Name)
	}

	st := &stream{spec: spec, slot: make(chan struct{}, 1)}
	s.streams[spec.Name] = st
	s.order = append(s.order, spec.Name)

	if s.started && s.active {
		s.arm(st)
	}
	return nil
}

// Start는 등록된 모든 스트림의 첫 조회를 즉시 예약합니다
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.started {
		return
	}
	s.started = true
	s.active = true
	for _, name := range s.order {
		s.arm(s.streams[name])
	}
}

// Reschedule은 선택 변경 시 호출됩니다
// 기존 핸들을 모두 취소(타이머 해제, 진행 중 조회 중단)한 뒤 새 핸들을 예약합니다
func (s *Scheduler) Reschedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.started {
		return
	}
	for _, name := range s.order {
		st := s.streams[name]
		if st.handle != nil {
			st.handle.Stop()
			st.handle.Abort()
		}
		if s.active {
			s.arm(st)
		}
	}
	s.logger.Debug("갱신 재예약", zap.Uint64("version", s.store.Snapshot().Version))
}

// SetActive는 소비자(화면) 활성 상태를 설정합니다
// 비활성화 시 새 조회는 예약하지 않지만 진행 중인 조회는 중단하지 않습니다
func (s *Scheduler) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.started || s.active == active {
		return
	}
	s.active = active

	for _, name := range s.order {
		st := s.streams[name]
		if !active {
			if st.handle != nil {
				st.handle.Stop()
			}
			continue
		}
		s.arm(st)
	}
	s.logger.Info("갱신 활성 상태 변경", zap.Bool("active", active))
}

// Stop은 모든 핸들을 취소하고 루프가 끝날 때까지 기다립니다
// 여러 번 호출해도 안전합니다
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, name := range s.order {
		st := s.streams[name]
		if st.handle != nil {
			st.handle.Stop()
			st.handle.Abort()
		}
	}
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	close(s.results)
	s.logger.Info("스케줄러 종료")
}

// Results는 조회 결과 채널을 반환합니다
// Stop 이후 모든 루프가 끝나면 닫힙니다
func (s *Scheduler) Results() <-chan Result {
	return s.results
}

// InFlight는 스트림에서 진행 중인 조회 수를 반환합니다 (0 또는 1)
func (s *Scheduler) InFlight(name string) int {
	s.mu.Lock()
	st, ok := s.streams[name]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return len(st.slot)
}

// State는 스트림 현재 핸들의 상태를 반환합니다
func (s *Scheduler) State(name string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[name]
	if !ok || st.handle == nil {
		return StateIdle
	}
	return st.handle.State()
}

// Handles는 현재 살아 있는 핸들 수를 반환합니다
func (s *Scheduler) Handles() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, st := range s.streams {
		if st.handle != nil && st.handle.State() != StateCancelled {
			n++
		}
	}
	return n
}

// arm은 스트림에 새 핸들을 만들고 루프를 시작합니다. s.mu를 잡은 상태에서 호출합니다
func (s *Scheduler) arm(st *stream) {
	h := newHandle(st)
	st.handle = h
	s.wg.Add(1)
	go s.run(h)
}

func (s *Scheduler) deliver(h *Handle, res Result) {
	name := h.st.spec.Name
	if h.ctx.Err() != nil {
		// 선택 변경 또는 종료로 중단된 조회의 결과는 버림
		staleDiscarded(name)
		return
	}
	if res.Err != nil {
		s.logger.Warn("갱신 실패",
			zap.String("stream", name),
			zap.String("symbol", res.Selection.Symbol),
			zap.Error(res.Err))
	}

	select {
	case s.results <- res:
	case <-h.ctx.Done():
		staleDiscarded(name)
	case <-s.done:
	}
}
