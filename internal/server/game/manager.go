package game

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	xgame "xiangqi/internal/game"
	"xiangqi/internal/xiangqi"
)

var ErrGameNotFound = errors.New("game not found")

type Manager struct {
	mu     sync.RWMutex
	games  map[string]*GameState
	limits xgame.Limits
}

func NewManager(limits xgame.Limits) *Manager {
	return &Manager{games: make(map[string]*GameState), limits: limits}
}

// NewGame start 为空时从开局开始
func (m *Manager) NewGame(start *xiangqi.Position) *GameState {
	if start == nil {
		start = xiangqi.NewInitialPosition()
	}
	id := uuid.NewString()
	sess := xgame.NewSessionFrom(start, m.limits)
	sess.ID = id
	now := time.Now()
	g := &GameState{
		ID:        id,
		Session:   sess,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.games[id] = g
	m.mu.Unlock()
	return g
}

func (m *Manager) Get(id string) (*GameState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return g, nil
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[id]; !ok {
		return ErrGameNotFound
	}
	delete(m.games, id)
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}

// Prune 清掉超过 maxIdle 没动过的对局，返回清掉的数量
func (m *Manager) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, g := range m.games {
		g.mu.Lock()
		idle := g.UpdatedAt.Before(cutoff)
		g.mu.Unlock()
		if idle {
			delete(m.games, id)
			n++
		}
	}
	return n
}
