package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Event はトリガーから届く変更通知（pg_notifyのpayload）
type Event struct {
	Table   string `json:"table"`
	Op      string `json:"op"`
	StoreID string `json:"store_id"`
	OrderID string `json:"order_id"`
}

func ParseEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("parse event: %w", err)
	}
	if ev.StoreID == "" {
		return Event{}, fmt.Errorf("parse event: store_id missing")
	}
	return ev, nil
}

const defaultBuffer = 16

// Hub は店舗ごとの購読者に通知を配る。
// 受信側は毎回一覧を取り直すので、詰まった購読者への通知は捨てても良い。
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	log    *slog.Logger
}

func NewHub(buffer int, log *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

type Subscription struct {
	StoreID string

	ch   chan Event
	hub  *Hub
	once sync.Once
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close は何度呼んでも良い
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

func (h *Hub) Subscribe(storeID string) *Subscription {
	s := &Subscription{
		StoreID: storeID,
		ch:      make(chan Event, h.buffer),
		hub:     h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[storeID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[storeID] = set
	}
	set[s] = struct{}{}
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[s.StoreID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.StoreID)
		}
	}
	close(s.ch)
}

// Publish はブロックしない
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[ev.StoreID] {
		select {
		case s.ch <- ev:
		default:
			h.log.Debug("realtime subscriber slow, event dropped", "store_id", ev.StoreID, "table", ev.Table)
		}
	}
}

// Subscribers は店舗ごとの購読数
func (h *Hub) Subscribers(storeID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[storeID])
}
