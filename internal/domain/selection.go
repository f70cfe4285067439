package domain

import (
	"sync"
	"sync/atomic"
)

// Selection은 현재 선택된 심볼과 간격의 불변 스냅샷입니다
// Version은 변경될 때마다 증가하며 오래된 결과 판별에 쓰입니다
type Selection struct {
	Symbol   string
	Interval TimeInterval
	Version  uint64
}

// SelectionStore는 선택 상태를 보관합니다
// 읽기는 잠금 없이 스냅샷을 반환하고, 쓰기는 직렬화됩니다
type SelectionStore struct {
	mu  sync.Mutex
	cur atomic.Pointer[Selection]
}

// NewSelectionStore는 초기 선택으로 저장소를 생성합니다
func NewSelectionStore(symbol string, interval TimeInterval) *SelectionStore {
	s := &SelectionStore{}
	s.cur.Store(&Selection{Symbol: symbol, Interval: interval, Version: 1})
	return s
}

// Snapshot은 현재 선택을 반환합니다
func (s *SelectionStore) Snapshot() Selection {
	return *s.cur.Load()
}

// SetSymbol은 심볼을 변경하고 새 스냅샷을 반환합니다
func (s *SelectionStore) SetSymbol(symbol string) Selection {
	return s.update(func(sel *Selection) { sel.Symbol = symbol })
}

// SetInterval은 간격을 변경하고 새 스냅샷을 반환합니다
func (s *SelectionStore) SetInterval(interval TimeInterval) Selection {
	return s.update(func(sel *Selection) { sel.Interval = interval })
}

// IsCurrent는 주어진 스냅샷이 최신인지 확인합니다
func (s *SelectionStore) IsCurrent(sel Selection) bool {
	return s.cur.Load().Version == sel.Version
}

func (s *SelectionStore) update(fn func(*Selection)) Selection {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.cur.Load()
	fn(&next)
	next.Version++
	s.cur.Store(&next)
	return next
}
