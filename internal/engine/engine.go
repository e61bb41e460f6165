package engine

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"xiangqi/internal/xiangqi"
)

var (
	ErrEngineBusy = errors.New("engine busy")
	ErrNoMoves    = errors.New("no legal moves")
)

const (
	// LearnedScale 网络输出 [-1,1] 乘这个数，和传统评估同量级
	LearnedScale = 1000.0

	learnedCacheCap = 500_000
)

// ValueModel 学习型评估：输入 90 维特征，输出红方视角 [-1,1]
type ValueModel interface {
	Predict(features []float64) (float64, error)
}

// versioned 模型权重更新后版本号变化，缓存随之失效
type versioned interface {
	Version() uint64
}

type learnedCache struct {
	mu      sync.RWMutex
	m       map[uint64]float64
	version uint64
}

type Engine struct {
	tt    map[uint64]ttEntry
	nodes int64

	busy atomic.Bool

	useLearned  atomic.Bool
	model       ValueModel
	experiences func() int

	// 每次搜索重置；学习评估出错一次后本次搜索全部回退传统评估
	learnedFailed atomic.Bool
	warned        atomic.Bool

	cache *learnedCache
}

func NewEngine() *Engine {
	return &Engine{
		tt:    make(map[uint64]ttEntry, 1<<16),
		cache: &learnedCache{m: make(map[uint64]float64, 1<<16)},
	}
}

// AttachLearned 挂上学习型评估；experiences 返回当前经验数，用于混合权重
func (e *Engine) AttachLearned(m ValueModel, experiences func() int) {
	e.model = m
	e.experiences = experiences
	e.resetLearnedCache()
}

func (e *Engine) SetUseLearned(v bool) { e.useLearned.Store(v) }

func (e *Engine) UseLearned() bool { return e.useLearned.Load() }

func (e *Engine) Busy() bool { return e.busy.Load() }

// BlendWeight 学习评估的权重：min(0.8, 0.3 + n/1000)
func BlendWeight(experienceCount int) float64 {
	return math.Min(0.8, 0.3+float64(experienceCount)/1000)
}

func (e *Engine) beginSearch() {
	atomic.StoreInt64(&e.nodes, 0)
	e.learnedFailed.Store(false)
	e.warned.Store(false)
	if v, ok := e.model.(versioned); ok {
		e.cache.mu.RLock()
		stale := e.cache.version != v.Version()
		e.cache.mu.RUnlock()
		if stale {
			e.resetLearnedCache()
		}
	}
}

func (e *Engine) resetLearnedCache() {
	e.cache.mu.Lock()
	e.cache.m = make(map[uint64]float64, 1<<16)
	if v, ok := e.model.(versioned); ok {
		e.cache.version = v.Version()
	}
	e.cache.mu.Unlock()
}

// 搜索层调用这个：开启学习评估时按经验数混合两种分数
func (e *Engine) eval(pos *xiangqi.Position) int {
	classical := Evaluate(pos)
	if !e.useLearned.Load() || e.learnedFailed.Load() {
		return classical
	}
	if e.model == nil {
		e.warnOnce(errors.New("learned evaluator not initialized"))
		return classical
	}
	v, err := e.learnedValue(pos)
	if err != nil {
		e.learnedFailed.Store(true)
		e.warnOnce(err)
		return classical
	}
	n := 0
	if e.experiences != nil {
		n = e.experiences()
	}
	w := BlendWeight(n)
	return int(math.Round(w*v*LearnedScale + (1-w)*float64(classical)))
}

func (e *Engine) learnedValue(pos *xiangqi.Position) (float64, error) {
	key := pos.EnsureHash()
	e.cache.mu.RLock()
	v, ok := e.cache.m[key]
	e.cache.mu.RUnlock()
	if ok {
		return v, nil
	}
	v, err := e.model.Predict(pos.FeatureVector())
	if err != nil {
		return 0, err
	}
	e.cache.mu.Lock()
	if len(e.cache.m) > learnedCacheCap {
		e.cache.m = make(map[uint64]float64, 1<<16)
	}
	e.cache.m[key] = v
	e.cache.mu.Unlock()
	return v, nil
}

func (e *Engine) warnOnce(err error) {
	if e.warned.CompareAndSwap(false, true) {
		log.Warn().Err(err).Msg("learned evaluator unavailable, falling back to classical evaluation")
	}
}
