// Package session holds the mutable state of one trading session: the
// position, the number of price samples seen, and trade/bar timestamps. One
// session exists per symbol per process; nothing is persisted across
// restarts. All fields sit behind a single mutex so a concurrent caller
// (signal handler, metrics reader) always observes a consistent snapshot.
package session

import (
	"sync"
	"time"
)

type Position struct {
	Qty      int
	AvgEntry float64
}

type Snapshot struct {
	Position      Position
	SamplesSeen   int
	LastTradeTime time.Time
	LastBarTime   time.Time
}

type Session struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

func New() *Session {
	return &Session{}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Session) PositionQty() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Position.Qty
}

func (s *Session) SamplesSeen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.SamplesSeen
}

// RecordSample counts one observed price and stamps the bar time.
func (s *Session) RecordSample(barTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.SamplesSeen++
	s.snapshot.LastBarTime = barTime
}

// ApplyBuy increases the position after a confirmed buy. The average entry
// uses the reference price when the fill price is not yet known.
func (s *Session) ApplyBuy(qty int, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := s.snapshot.Position
	newQty := pos.Qty + qty
	if newQty > 0 {
		pos.AvgEntry = (pos.AvgEntry*float64(pos.Qty) + price*float64(qty)) / float64(newQty)
	}
	pos.Qty = newQty
	s.snapshot.Position = pos
	s.snapshot.LastTradeTime = time.Now().UTC()
}

// ApplySell decreases the position after a confirmed sell.
func (s *Session) ApplySell(qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := s.snapshot.Position
	pos.Qty -= qty
	if pos.Qty <= 0 {
		pos = Position{}
	}
	s.snapshot.Position = pos
	s.snapshot.LastTradeTime = time.Now().UTC()
}
