// Package desk는 조회 결과, 가격 스트림, 주문 결과, 사용자 명령을 하나의 고루틴에서 조정합니다.
package desk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/assist-by/chartdesk/internal/domain"
	"github.com/assist-by/chartdesk/internal/metrics"
	"github.com/assist-by/chartdesk/internal/notification"
	"github.com/assist-by/chartdesk/internal/position"
	"github.com/assist-by/chartdesk/internal/scheduler"
)

// ErrClosed는 종료된 데스크에 명령을 보낼 때 반환됩니다
var ErrClosed = errors.New("데스크가 종료되었습니다")

// Display는 화면 갱신을 담당합니다. 모든 메서드는 조정 고루틴에서만 호출됩니다
type Display interface {
	ShowCandles(sel domain.Selection, candles domain.CandleList)
	ShowOrderBook(book domain.OrderBook)
	ShowPrice(tick domain.PriceTick)
	ShowAccount(account domain.AccountSnapshot)
	ShowReady(symbol string)
	ShowOrderResult(result domain.OrderResult)
	ShowError(source string, err error)
}

// Scheduler는 주기 조회 스케줄러 기능입니다
type Scheduler interface {
	Start()
	Reschedule()
	SetActive(active bool)
	Results() <-chan scheduler.Result
	Stop()
}

// PriceStream은 실시간 가격 스트림 기능입니다
type PriceStream interface {
	Subscribe(ctx context.Context, symbol string) error
	Ticks() <-chan domain.PriceTick
	Ready() <-chan string
	Close() error
}

// OrderConfig는 주문 명령에 사용되는 고정 값입니다
type OrderConfig struct {
	NotionalUSDT  float64
	Leverage      int
	MarginMode    domain.MarginMode
	TakeProfitPct float64
	StopLossPct   float64
	Workers       int
}

// View는 화면 상태의 사본입니다
type View struct {
	Selection  domain.Selection
	Candles    domain.CandleList
	OrderBook  domain.OrderBook
	Price      domain.PriceTick
	HasPrice   bool
	Account    domain.AccountSnapshot
	Ready      bool
	Active     bool
	LastOrder  *domain.OrderResult
	LastErrors map[string]string
}

func (v View) clone() View {
	c := v
	c.Candles = v.Candles.Clone()
	c.OrderBook = v.OrderBook.Clone()
	c.Account.Positions = append([]domain.Position(nil), v.Account.Positions...)
	if v.LastOrder != nil {
		o := *v.LastOrder
		c.LastOrder = &o
	}
	c.LastErrors = make(map[string]string, len(v.LastErrors))
	for k, e := range v.LastErrors {
		c.LastErrors[k] = e
	}
	return c
}

type commandKind int

const (
	cmdSetSymbol commandKind = iota
	cmdSetInterval
	cmdSetActive
	cmdPlaceOrder
)

type command struct {
	kind     commandKind
	symbol   string
	interval domain.TimeInterval
	active   bool
	side     domain.OrderSide
}

type orderOutcome struct {
	req domain.OrderRequest
	res domain.OrderResult
	err error
}

// Desk는 차트 데스크의 조정 컨텍스트입니다
type Desk struct {
	store    *domain.SelectionStore
	sched    Scheduler
	stream   PriceStream
	executor position.Executor
	notifier notification.Notifier
	display  Display
	logger   *zap.Logger
	orderCfg OrderConfig

	commands chan command
	orders   chan orderOutcome
	subReq   chan string
	sem      chan struct{}

	viewMu sync.RWMutex
	view   View

	workerCtx    context.Context
	cancelWork   context.CancelFunc
	workers      sync.WaitGroup
	running      atomic.Bool
	quit         chan struct{}
	loopDone     chan struct{}
	shutdownOnce sync.Once
}

// Option은 Desk 설정 함수입니다
type Option func(*Desk)

// WithLogger는 로거를 설정합니다
func WithLogger(l *zap.Logger) Option {
	return func(d *Desk) {
		d.logger = l
	}
}

// WithNotifier는 주문 결과 알림을 설정합니다
func WithNotifier(n notification.Notifier) Option {
	return func(d *Desk) {
		d.notifier = n
	}
}

// WithExecutor는 주문 실행기를 설정합니다. 없으면 주문 명령은 거부됩니다
func WithExecutor(e position.Executor) Option {
	return func(d *Desk) {
		d.executor = e
	}
}

// New는 새로운 데스크를 생성합니다
func New(store *domain.SelectionStore, sched Scheduler, stream PriceStream, display Display, orderCfg OrderConfig, opts ...Option) *Desk {
	if orderCfg.Workers < 1 {
		orderCfg.Workers = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Desk{
		store:      store,
		sched:      sched,
		stream:     stream,
		display:    display,
		logger:     zap.NewNop(),
		orderCfg:   orderCfg,
		commands:   make(chan command, 16),
		orders:     make(chan orderOutcome, orderCfg.Workers),
		subReq:     make(chan string, 1),
		sem:        make(chan struct{}, orderCfg.Workers),
		workerCtx:  ctx,
		cancelWork: cancel,
		quit:       make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.view = View{
		Selection:  store.Snapshot(),
		Active:     true,
		LastErrors: make(map[string]string),
	}
	return d
}

// Run은 조정 루프를 실행합니다. ctx가 끝나거나 Shutdown이 호출되면 반환합니다
func (d *Desk) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("데스크가 이미 실행 중입니다")
	}
	defer d.Shutdown()
	defer close(d.loopDone)

	select {
	case <-d.quit:
		return ErrClosed
	default:
	}

	d.sched.Start()
	d.requestSubscribe(d.store.Snapshot().Symbol)

	d.workers.Add(1)
	go d.subscribeLoop()

	results := d.sched.Results()
	ticks := d.stream.Ticks()
	ready := d.stream.Ready()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.quit:
			return nil

		case cmd := <-d.commands:
			d.handleCommand(cmd)

		case res, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			d.applyResult(res)

		case tick, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			d.applyTick(tick)

		case sym, ok := <-ready:
			if !ok {
				ready = nil
				continue
			}
			d.applyReady(sym)

		case out := <-d.orders:
			d.applyOrder(out)
		}
	}
}

// Shutdown은 스케줄러와 스트림을 멈추고 작업자를 기다립니다. 여러 번 호출해도 안전합니다
func (d *Desk) Shutdown() {
	d.shutdownOnce.Do(func() {
		close(d.quit)
		// 작업자 추가는 조정 고루틴에서만 일어나므로 루프가 끝난 뒤 기다림
		if d.running.Load() {
			<-d.loopDone
		}
		d.cancelWork()
		d.sched.Stop()
		if err := d.stream.Close(); err != nil {
			d.logger.Warn("스트림 종료 실패", zap.Error(err))
		}
		d.workers.Wait()
		d.logger.Info("데스크 종료")
	})
}

// View는 현재 화면 상태의 사본을 반환합니다
func (d *Desk) View() View {
	d.viewMu.RLock()
	defer d.viewMu.RUnlock()
	return d.view.clone()
}

// SetSymbol은 심볼을 변경합니다
func (d *Desk) SetSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("빈 심볼")
	}
	return d.send(command{kind: cmdSetSymbol, symbol: symbol})
}

// SetInterval은 차트 간격을 변경합니다
func (d *Desk) SetInterval(interval domain.TimeInterval) error {
	if !interval.Valid() {
		return fmt.Errorf("지원하지 않는 간격: %q", interval)
	}
	return d.send(command{kind: cmdSetInterval, interval: interval})
}

// SetActive는 화면 활성 상태를 변경합니다
func (d *Desk) SetActive(active bool) error {
	return d.send(command{kind: cmdSetActive, active: active})
}

// PlaceOrder는 현재 심볼에 설정된 명목 가치로 시장가 주문을 요청합니다
func (d *Desk) PlaceOrder(side domain.OrderSide) error {
	if !side.Valid() {
		return domain.NewError(domain.ErrInvalidSide, "", "place_order", fmt.Errorf("알 수 없는 주문 방향: %q", side))
	}
	return d.send(command{kind: cmdPlaceOrder, side: side})
}

func (d *Desk) send(cmd command) error {
	select {
	case <-d.quit:
		return ErrClosed
	default:
	}
	select {
	case d.commands <- cmd:
		return nil
	case <-d.quit:
		return ErrClosed
	}
}

func (d *Desk) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdSetSymbol:
		if cmd.symbol == d.store.Snapshot().Symbol {
			return
		}
		sel := d.store.SetSymbol(cmd.symbol)
		d.updateView(func(v *View) {
			v.Selection = sel
			v.Candles = nil
			v.OrderBook = domain.OrderBook{}
			v.Price = domain.PriceTick{}
			v.HasPrice = false
			v.Ready = false
			v.LastErrors = make(map[string]string)
		})
		d.sched.Reschedule()
		d.requestSubscribe(cmd.symbol)
		d.logger.Info("심볼 변경", zap.String("symbol", cmd.symbol), zap.Uint64("version", sel.Version))

	case cmdSetInterval:
		if cmd.interval == d.store.Snapshot().Interval {
			return
		}
		sel := d.store.SetInterval(cmd.interval)
		d.updateView(func(v *View) {
			v.Selection = sel
			v.Candles = nil
			delete(v.LastErrors, StreamChart)
		})
		d.sched.Reschedule()
		d.logger.Info("간격 변경", zap.String("interval", string(cmd.interval)), zap.Uint64("version", sel.Version))

	case cmdSetActive:
		d.sched.SetActive(cmd.active)
		d.updateView(func(v *View) { v.Active = cmd.active })

	case cmdPlaceOrder:
		d.startOrder(cmd.side)
	}
}

func (d *Desk) applyResult(res scheduler.Result) {
	current := d.store.Snapshot()
	if res.IsStale(current) {
		metrics.StaleDiscarded.WithLabelValues(res.Stream).Inc()
		d.logger.Debug("지난 선택의 결과 폐기",
			zap.String("stream", res.Stream),
			zap.Uint64("resultVersion", res.Selection.Version),
			zap.Uint64("currentVersion", current.Version),
		)
		return
	}

	if res.Err != nil {
		d.updateView(func(v *View) { v.LastErrors[res.Stream] = res.Err.Error() })
		d.display.ShowError(res.Stream, res.Err)
		return
	}

	switch value := res.Value.(type) {
	case domain.CandleList:
		d.updateView(func(v *View) {
			v.Candles = value
			delete(v.LastErrors, res.Stream)
		})
		d.display.ShowCandles(res.Selection, value)
	case domain.OrderBook:
		d.updateView(func(v *View) {
			v.OrderBook = value
			delete(v.LastErrors, res.Stream)
		})
		d.display.ShowOrderBook(value)
	case domain.PriceTick:
		d.applyTick(value)
	case domain.AccountSnapshot:
		d.updateView(func(v *View) {
			v.Account = value
			delete(v.LastErrors, res.Stream)
		})
		d.display.ShowAccount(value)
	default:
		d.logger.Error("알 수 없는 결과 타입",
			zap.String("stream", res.Stream),
			zap.String("type", fmt.Sprintf("%T", res.Value)),
		)
	}
}

func (d *Desk) applyTick(tick domain.PriceTick) {
	if tick.Symbol != d.store.Snapshot().Symbol {
		metrics.StaleDiscarded.WithLabelValues(StreamTicker).Inc()
		return
	}
	d.updateView(func(v *View) {
		v.Price = tick
		v.HasPrice = true
	})
	d.display.ShowPrice(tick)
}

func (d *Desk) applyReady(symbol string) {
	if symbol != d.store.Snapshot().Symbol {
		return
	}
	d.updateView(func(v *View) { v.Ready = true })
	d.display.ShowReady(symbol)
}

func (d *Desk) updateView(fn func(v *View)) {
	d.viewMu.Lock()
	defer d.viewMu.Unlock()
	fn(&d.view)
}

// requestSubscribe는 가장 최근 요청만 남기고 구독 고루틴에 넘깁니다
func (d *Desk) requestSubscribe(symbol string) {
	for {
		select {
		case d.subReq <- symbol:
			return
		default:
		}
		select {
		case <-d.subReq:
		default:
		}
	}
}

// subscribeLoop는 구독 전환을 조정 고루틴 밖에서 순서대로 처리합니다
func (d *Desk) subscribeLoop() {
	defer d.workers.Done()
	for {
		select {
		case <-d.workerCtx.Done():
			return
		case symbol := <-d.subReq:
			if err := d.stream.Subscribe(d.workerCtx, symbol); err != nil {
				if d.workerCtx.Err() != nil {
					return
				}
				d.logger.Warn("가격 스트림 구독 실패", zap.String("symbol", symbol), zap.Error(err))
			}
		}
	}
}
