package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/assist-by/chartdesk/internal/domain"
	"github.com/assist-by/chartdesk/internal/metrics"
)

const (
	DefaultURL          = "wss://stream.bybit.com/v5/public/linear"
	TestnetURL          = "wss://stream-testnet.bybit.com/v5/public/linear"
	defaultGrace        = 500 * time.Millisecond
	defaultPingInterval = 20 * time.Second
	defaultReadTimeout  = 60 * time.Second
	tickBuffer          = 64
)

// Manager는 선택된 심볼 하나의 실시간 마크 가격 구독을 관리합니다
type Manager struct {
	url          string
	dialer       Dialer
	logger       *zap.Logger
	grace        time.Duration
	pingInterval time.Duration
	readTimeout  time.Duration
	initialWait  time.Duration
	maxWait      time.Duration

	mu     sync.Mutex
	sub    *subscription
	closed bool

	gen atomic.Uint64

	latestMu  sync.RWMutex
	latest    domain.PriceTick
	hasLatest bool

	ticks chan domain.PriceTick
	ready chan string
}

type subscription struct {
	symbol    string
	gen       uint64
	cancel    context.CancelFunc
	done      chan struct{}
	readyOnce sync.Once
}

// Option은 Manager 설정 함수입니다
type Option func(*Manager)

// WithURL은 웹소켓 주소를 설정합니다
func WithURL(url string) Option {
	return func(m *Manager) {
		if url != "" {
			m.url = url
		}
	}
}

// WithDialer는 연결 생성기를 교체합니다
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dialer = d
	}
}

// WithLogger는 로거를 설정합니다
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithGrace는 재구독 전 대기 시간을 설정합니다
func WithGrace(d time.Duration) Option {
	return func(m *Manager) {
		m.grace = d
	}
}

// WithPingInterval은 핑 주기를 설정합니다
func WithPingInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.pingInterval = d
	}
}

// WithReadTimeout은 읽기 제한 시간을 설정합니다 (0이면 해제)
func WithReadTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.readTimeout = d
	}
}

// WithBackoff는 재연결 대기 범위를 설정합니다
func WithBackoff(initial, maxWait time.Duration) Option {
	return func(m *Manager) {
		m.initialWait = initial
		m.maxWait = maxWait
	}
}

// NewManager는 새로운 스트림 매니저를 생성합니다
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		url:          DefaultURL,
		dialer:       WSDialer{},
		logger:       zap.NewNop(),
		grace:        defaultGrace,
		pingInterval: defaultPingInterval,
		readTimeout:  defaultReadTimeout,
		initialWait:  500 * time.Millisecond,
		maxWait:      30 * time.Second,
		ticks:        make(chan domain.PriceTick, tickBuffer),
		ready:        make(chan string, 4),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ticks는 검증된 가격 틱 채널을 반환합니다
func (m *Manager) Ticks() <-chan domain.PriceTick {
	return m.ticks
}

// Ready는 구독마다 첫 유효 틱이 도착하면 심볼을 한 번 보냅니다
func (m *Manager) Ready() <-chan string {
	return m.ready
}

// Subscribe는 이전 구독을 완전히 닫은 뒤 새 심볼을 구독합니다
func (m *Manager) Subscribe(ctx context.Context, symbol string) error {
	if symbol == "" {
		return domain.NewError(domain.ErrSubscription, symbol, "subscribe", errors.New("빈 심볼"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return domain.NewError(domain.ErrSubscription, symbol, "subscribe", errors.New("매니저가 종료됨"))
	}

	if prev := m.sub; prev != nil {
		m.sub = nil
		m.stopLocked(prev)

		if m.grace > 0 {
			timer := time.NewTimer(m.grace)
			select {
			case <-ctx.Done():
				timer.Stop()
				return domain.NewError(domain.ErrSubscription, symbol, "subscribe", ctx.Err())
			case <-timer.C:
			}
		}
	}

	sub := &subscription{
		symbol: symbol,
		gen:    m.gen.Add(1),
		done:   make(chan struct{}),
	}
	subCtx, cancel := context.WithCancel(context.Background())
	sub.cancel = cancel
	m.sub = sub

	go m.run(subCtx, sub)

	m.logger.Info("가격 스트림 구독",
		zap.String("symbol", symbol),
		zap.Uint64("generation", sub.gen),
	)
	return nil
}

// Unsubscribe는 현재 구독을 닫습니다
func (m *Manager) Unsubscribe() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sub == nil {
		return
	}
	prev := m.sub
	m.sub = nil
	m.stopLocked(prev)
}

// Close는 구독을 닫고 채널을 정리합니다. 여러 번 호출해도 안전합니다
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.sub != nil {
		prev := m.sub
		m.sub = nil
		m.stopLocked(prev)
	}
	close(m.ticks)
	close(m.ready)
	return nil
}

// Symbol은 현재 구독 중인 심볼을 반환합니다
func (m *Manager) Symbol() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sub == nil {
		return ""
	}
	return m.sub.symbol
}

// Latest는 현재 구독의 마지막 가격 사본을 반환합니다
func (m *Manager) Latest() (domain.PriceTick, bool) {
	m.latestMu.RLock()
	defer m.latestMu.RUnlock()
	return m.latest, m.hasLatest
}

// stopLocked는 구독 고루틴이 끝날 때까지 기다립니다. mu를 잡은 상태에서 호출합니다
func (m *Manager) stopLocked(sub *subscription) {
	// 세대를 먼저 올려서 종료 중 도착한 메시지도 버리게 함
	m.gen.Add(1)
	sub.cancel()
	<-sub.done

	m.latestMu.Lock()
	m.latest = domain.PriceTick{}
	m.hasLatest = false
	m.latestMu.Unlock()
}

// run은 연결이 끊기면 지수 백오프로 재연결합니다
func (m *Manager) run(ctx context.Context, sub *subscription) {
	defer close(sub.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.initialWait
	bo.MaxInterval = m.maxWait

	for {
		if ctx.Err() != nil {
			return
		}

		connected, err := m.connect(ctx, sub)
		if ctx.Err() != nil {
			return
		}
		if connected {
			bo.Reset()
		}

		m.logger.Warn("가격 스트림 연결 끊김",
			zap.String("symbol", sub.symbol),
			zap.Error(domain.NewError(domain.ErrSubscription, sub.symbol, "stream", err)),
		)
		metrics.Reconnects.Inc()

		wait := bo.NextBackOff()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connect는 연결 하나의 수명 동안 메시지를 읽습니다
func (m *Manager) connect(ctx context.Context, sub *subscription) (bool, error) {
	raw, err := m.dialer.Dial(ctx, m.url)
	if err != nil {
		return false, fmt.Errorf("연결 실패: %w", err)
	}
	conn := &onceCloser{conn: raw}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	req, err := json.Marshal(subscribeRequest{Op: "subscribe", Args: []string{topicFor(sub.symbol)}})
	if err != nil {
		return false, err
	}
	if err := raw.WriteMessage(websocket.TextMessage, req); err != nil {
		return false, fmt.Errorf("구독 요청 실패: %w", err)
	}

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go m.pingLoop(pingCtx, raw)

	for {
		if m.readTimeout > 0 {
			_ = raw.SetReadDeadline(time.Now().Add(m.readTimeout))
		}
		_, data, err := raw.ReadMessage()
		if err != nil {
			return true, err
		}
		m.handleMessage(sub, data)
	}
}

// pingLoop는 연결 유지를 위해 주기적으로 핑을 보냅니다
func (m *Manager) pingLoop(ctx context.Context, conn Conn) {
	if m.pingInterval <= 0 {
		return
	}
	ping, _ := json.Marshal(subscribeRequest{Op: "ping"})

	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				m.logger.Debug("핑 전송 실패", zap.Error(err))
				return
			}
		}
	}
}

// handleMessage는 메시지를 검증하고 유효한 틱만 내보냅니다
func (m *Manager) handleMessage(sub *subscription, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		m.drop(dropDecode, sub.symbol)
		return
	}

	if env.Op != "" {
		if env.Op == "subscribe" && env.Success != nil && !*env.Success {
			m.logger.Warn("구독 거부",
				zap.String("symbol", sub.symbol),
				zap.String("reason", env.RetMsg),
			)
		}
		return
	}

	points, ok := decodePoints(env.Data)
	if !ok || len(points) == 0 {
		m.drop(dropEmpty, sub.symbol)
		return
	}

	for _, p := range points {
		if p.Symbol == "" {
			m.drop(dropNoSymbol, sub.symbol)
			continue
		}
		price, ok := parsePrice(p.MarkPrice)
		if !ok {
			m.drop(dropNoPrice, p.Symbol)
			continue
		}
		if p.Symbol != sub.symbol {
			m.drop(dropOtherSymbol, p.Symbol)
			continue
		}
		if m.gen.Load() != sub.gen {
			m.drop(dropStale, p.Symbol)
			continue
		}
		m.publish(sub, domain.PriceTick{
			Symbol:     p.Symbol,
			MarkPrice:  price,
			ObservedAt: time.Now(),
		})
	}
}

func (m *Manager) publish(sub *subscription, tick domain.PriceTick) {
	m.latestMu.Lock()
	// 구독 전환과 경쟁할 수 있으므로 잠금 안에서 세대를 다시 확인
	if m.gen.Load() != sub.gen {
		m.latestMu.Unlock()
		m.drop(dropStale, tick.Symbol)
		return
	}
	m.latest = tick
	m.hasLatest = true
	m.latestMu.Unlock()

	metrics.TicksTotal.WithLabelValues(tick.Symbol).Inc()

	sub.readyOnce.Do(func() {
		select {
		case m.ready <- tick.Symbol:
		default:
		}
	})

	// 소비자가 느리면 가장 오래된 틱을 버림
	select {
	case m.ticks <- tick:
	default:
		select {
		case <-m.ticks:
		default:
		}
		select {
		case m.ticks <- tick:
		default:
		}
	}
}

func (m *Manager) drop(reason, symbol string) {
	metrics.DroppedMessages.WithLabelValues(reason).Inc()
	m.logger.Debug("메시지 폐기",
		zap.String("reason", reason),
		zap.String("symbol", symbol),
	)
}
