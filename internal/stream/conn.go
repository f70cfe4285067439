package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn은 스트림 매니저가 사용하는 웹소켓 연결 기능입니다
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer는 웹소켓 연결을 엽니다
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer는 gorilla/websocket 기반 Dialer입니다
type WSDialer struct {
	HandshakeTimeout time.Duration
	ReadLimit        int64
}

// Dial은 웹소켓 연결을 엽니다
func (d WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout <= 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	limit := d.ReadLimit
	if limit <= 0 {
		limit = 1 << 20
	}
	conn.SetReadLimit(limit)
	return conn, nil
}

// onceCloser는 연결을 정확히 한 번만 닫습니다
type onceCloser struct {
	conn Conn
	once sync.Once
	err  error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() {
		c.err = c.conn.Close()
	})
	return c.err
}
