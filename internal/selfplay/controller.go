// Package selfplay 自对弈训练：一局一局地让引擎自己下，记录经验、回填奖励、训练、定期存盘。
package selfplay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"xiangqi/internal/engine"
	"xiangqi/internal/game"
	"xiangqi/internal/learn"
	"xiangqi/internal/xiangqi"
)

var (
	ErrAlreadyRunning = errors.New("self-play already running")
	ErrNotRunning     = errors.New("self-play not running")
)

const (
	DefaultGameTimeout    = 30 * time.Second
	DefaultSaveEveryGames = 10

	busyRetry = 20 * time.Millisecond
)

// Phase 单局状态机
type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhasePlaying  Phase = "playing"
	PhaseTerminal Phase = "terminal"
)

type Options struct {
	RedDifficulty   engine.Difficulty
	BlackDifficulty engine.Difficulty
	Limits          game.Limits
	GameTimeout     time.Duration
	SaveEveryGames  int
	// MaxGames 为 0 时一直下到 Stop
	MaxGames int
	// Start 非空时每局从这个局面开始（残局训练）
	Start *xiangqi.Position
	// Learn 关掉时只下棋不记录经验
	Learn  bool
	Logger zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.Limits == (game.Limits{}) {
		o.Limits = game.DefaultLimits()
	}
	if o.GameTimeout <= 0 {
		o.GameTimeout = DefaultGameTimeout
	}
	if o.SaveEveryGames <= 0 {
		o.SaveEveryGames = DefaultSaveEveryGames
	}
}

// Progress 训练进度，随事件推给订阅者
type Progress struct {
	Running     bool      `json:"running"`
	GamesPlayed int       `json:"games_played"`
	RedWins     int       `json:"red_wins"`
	BlackWins   int       `json:"black_wins"`
	Draws       int       `json:"draws"`
	Errors      int       `json:"errors"`
	Experiences int       `json:"experiences"`
	LastLoss    float64   `json:"last_loss"`
	LastSave    time.Time `json:"last_save"`
	CurrentGame string    `json:"current_game,omitempty"`
	Phase       Phase     `json:"phase,omitempty"`
}

type GameResult struct {
	ID       string         `json:"id"`
	Status   game.Status    `json:"-"`
	Result   string         `json:"result"`
	Reason   string         `json:"reason"`
	Plies    int            `json:"plies"`
	Duration time.Duration  `json:"duration"`
	Moves    []xiangqi.Move `json:"moves"`
}

// Controller 自对弈控制器。自己持有一个引擎实例，不和交互对局抢置换表。
type Controller struct {
	opts    Options
	eng     *engine.Engine
	learner *learn.Learner
	log     zerolog.Logger
	learn   atomic.Bool
	// choose 选着入口，默认是 eng.ChooseMove
	choose func(*xiangqi.Position, engine.SearchConfig) (engine.SearchResult, error)

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	progress Progress

	hub *hub
}

// New learner 可以为空，此时只下棋不学习
func New(eng *engine.Engine, learner *learn.Learner, opts Options) *Controller {
	opts.setDefaults()
	c := &Controller{
		opts:    opts,
		eng:     eng,
		learner: learner,
		log:     opts.Logger.With().Str("component", "selfplay").Logger(),
		hub:     newHub(),
	}
	c.choose = eng.ChooseMove
	c.learn.Store(opts.Learn)
	return c
}

// Engine 自对弈用的引擎，控制面切换学习评估时要一起改
func (c *Controller) Engine() *engine.Engine { return c.eng }

// SetLearning 运行中也可以切换，下一步生效
func (c *Controller) SetLearning(v bool) { c.learn.Store(v) }

func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Controller) Progress() Progress {
	c.mu.Lock()
	p := c.progress
	c.mu.Unlock()
	if c.learner != nil {
		st := c.learner.Stats()
		p.Experiences = st.Experiences
		p.LastLoss = st.LastLoss
		p.LastSave = st.LastSave
	}
	return p
}

// Subscribe 订阅进度事件；返回的函数用于退订
func (c *Controller) Subscribe() (<-chan Event, func()) {
	return c.hub.subscribe()
}

// Start 后台开始自对弈，重复调用返回 ErrAlreadyRunning
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.progress.Running = true
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		if err := c.loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Error().Err(err).Msg("self-play loop stopped")
		}
	}()
	return nil
}

// Stop 停下并等后台循环退出（当前这一局作废）
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Run 前台跑，直到 ctx 结束或下满 MaxGames
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.progress.Running = true
	done := c.done
	c.mu.Unlock()

	defer close(done)
	return c.loop(ctx)
}

func (c *Controller) loop(ctx context.Context) error {
	defer c.finish()
	c.log.Info().
		Str("red", c.opts.RedDifficulty.String()).
		Str("black", c.opts.BlackDifficulty.String()).
		Bool("learn", c.learning()).
		Msg("self-play started")

	for n := 0; c.opts.MaxGames == 0 || n < c.opts.MaxGames; n++ {
		res, err := c.PlayGame(ctx)
		if err != nil {
			return err
		}
		c.afterGame(ctx, res)
	}
	return nil
}

func (c *Controller) finish() {
	c.mu.Lock()
	played := c.progress.GamesPlayed
	c.running = false
	c.progress.Running = false
	c.progress.CurrentGame = ""
	c.progress.Phase = ""
	c.mu.Unlock()

	// 停止时至少下完过一局才存
	if c.learning() && played > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.learner.Save(ctx); err != nil {
			c.log.Error().Err(err).Msg("save on stop failed")
		}
	}
	c.hub.publish(Event{Type: EventStopped, Progress: c.Progress()})
	c.log.Info().Int("games", played).Msg("self-play stopped")
}

func (c *Controller) learning() bool {
	return c.learner != nil && c.learn.Load()
}

func (c *Controller) setPhase(id string, p Phase) {
	c.mu.Lock()
	c.progress.CurrentGame = id
	c.progress.Phase = p
	c.mu.Unlock()
}

// afterGame 终局之后：回填奖励 → 训练 → 计数 → 定期存盘 → 推事件
func (c *Controller) afterGame(ctx context.Context, res GameResult) {
	c.mu.Lock()
	c.progress.GamesPlayed++
	switch res.Status {
	case game.StatusRedWin:
		c.progress.RedWins++
	case game.StatusBlackWin:
		c.progress.BlackWins++
	case game.StatusError:
		c.progress.Errors++
		c.progress.Draws++
	default:
		c.progress.Draws++
	}
	played := c.progress.GamesPlayed
	c.mu.Unlock()

	if c.learning() {
		if _, err := c.learner.Learn(); err != nil && !errors.Is(err, learn.ErrNotEnoughSamples) {
			// 训练失败不影响下一局
			c.log.Warn().Err(err).Str("game", res.ID).Msg("learning after game skipped")
		}
		if played%c.opts.SaveEveryGames == 0 {
			if err := c.learner.Save(ctx); err != nil {
				c.log.Error().Err(err).Msg("autosave failed")
			}
		}
	}

	c.log.Info().
		Str("game", res.ID).
		Str("result", res.Result).
		Str("reason", res.Reason).
		Int("plies", res.Plies).
		Dur("took", res.Duration).
		Msg("game finished")
	c.hub.publish(Event{Type: EventGameFinished, GameID: res.ID, Result: &res, Progress: c.Progress()})
}

// PlayGame 下一整局。ctx 结束时返回 ctx 的错误，这局不计。
// 规则层出现异常（包括 panic）时这局按 StatusError 结束，按和棋计。
func (c *Controller) PlayGame(ctx context.Context) (res GameResult, err error) {
	// Setup
	id := uuid.NewString()
	var sess *game.Session
	if c.opts.Start != nil {
		sess = game.NewSessionFrom(c.opts.Start.Clone(), c.opts.Limits)
	} else {
		sess = game.NewSession(c.opts.Limits)
	}
	sess.ID = id
	rec := &learn.GameRecord{}
	start := time.Now()
	deadline := start.Add(c.opts.GameTimeout)
	c.setPhase(id, PhaseSetup)
	c.eng.ClearTT()
	c.hub.publish(Event{Type: EventGameStarted, GameID: id, Progress: c.Progress()})

	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("game", id).Msg("corrupted game state")
			sess.Abort(game.StatusError, fmt.Sprintf("corrupted state: %v", r))
			err = nil
		}
		if err != nil {
			return
		}
		c.setPhase(id, PhaseTerminal)
		c.assignFinalRewards(rec, sess.Status())
		res = GameResult{
			ID:       id,
			Status:   sess.Status(),
			Result:   sess.Status().String(),
			Reason:   sess.Reason(),
			Plies:    sess.Ply(),
			Duration: time.Since(start),
			Moves:    movesOf(sess),
		}
	}()

	c.setPhase(id, PhasePlaying)
	for !sess.Status().Terminal() {
		if err := ctx.Err(); err != nil {
			return GameResult{}, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			sess.Abort(game.StatusDraw, game.ReasonTimeout)
			break
		}

		side := sess.SideToMove()
		cfg := engine.ConfigFor(c.difficulty(side), sess.Ply())
		cfg.TimeLimit = min(cfg.TimeLimit, remaining)
		cfg.NodeTimeLimit = min(cfg.NodeTimeLimit, remaining)

		// GenerateMove
		result, err := c.choose(sess.Pos, cfg)
		if errors.Is(err, engine.ErrEngineBusy) {
			time.Sleep(busyRetry)
			continue
		}
		if err != nil {
			// 没有合法着法但状态还是 playing，说明局面有问题
			sess.Abort(game.StatusError, err.Error())
			break
		}

		// Validate + Apply
		before := sess.Pos.Clone()
		if _, err := sess.Play(result.BestMove); err != nil {
			sess.Abort(game.StatusError, fmt.Sprintf("engine produced %v: %v", result.BestMove, err))
			break
		}

		// RecordExperience
		if c.learning() {
			c.learner.Record(ctx, before, result.BestMove, side, sess.Pos, sess.Status(), sess.Ply()-1, rec)
		}
		c.hub.publish(Event{Type: EventMove, GameID: id, Ply: sess.Ply(), Move: &result.BestMove, Source: string(result.Source)})
	}
	return res, nil
}

func (c *Controller) difficulty(side xiangqi.Side) engine.Difficulty {
	if side == xiangqi.Black {
		return c.opts.BlackDifficulty
	}
	return c.opts.RedDifficulty
}

// assignFinalRewards 双方各自按自己的胜负回填
func (c *Controller) assignFinalRewards(rec *learn.GameRecord, st game.Status) {
	if !c.learning() {
		return
	}
	for _, side := range []xiangqi.Side{xiangqi.Red, xiangqi.Black} {
		final := float64(st.Outcome(side) * learn.TerminalReward)
		c.learner.AssignFinalRewards(rec, final, side)
	}
}

func movesOf(sess *game.Session) []xiangqi.Move {
	out := make([]xiangqi.Move, len(sess.History))
	for i, r := range sess.History {
		out[i] = r.Move
	}
	return out
}
