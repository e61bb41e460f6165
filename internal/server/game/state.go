package game

import (
	"sync"
	"time"

	xgame "xiangqi/internal/game"
	"xiangqi/internal/learn"
)

// GameState 一局交互对局。读写 Session 之前必须 Lock
type GameState struct {
	mu sync.Mutex

	ID      string
	Session *xgame.Session
	// Record AI 着法的经验序号，终局时回填奖励
	Record    learn.GameRecord
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (g *GameState) Lock()   { g.mu.Lock() }
func (g *GameState) Unlock() { g.mu.Unlock() }

// Touch 调用方需持有锁
func (g *GameState) Touch() { g.UpdatedAt = time.Now() }
