package selfplay

import (
	"sync"

	"xiangqi/internal/xiangqi"
)

const (
	EventGameStarted  = "game_started"
	EventMove         = "move"
	EventGameFinished = "game_finished"
	EventStopped      = "stopped"
)

type Event struct {
	Type     string        `json:"type"`
	GameID   string        `json:"game_id,omitempty"`
	Ply      int           `json:"ply,omitempty"`
	Move     *xiangqi.Move `json:"move,omitempty"`
	Source   string        `json:"source,omitempty"`
	Result   *GameResult   `json:"result,omitempty"`
	Progress Progress      `json:"progress"`
}

const subscriberBuffer = 64

// hub 非阻塞广播：订阅者跟不上就丢事件，不能拖慢对弈
type hub struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *hub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
