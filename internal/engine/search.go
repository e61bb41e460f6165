package engine

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"xiangqi/internal/xiangqi"
)

const (
	// 一个足够大的值，当成正负无穷
	scoreInf = 1_000_000_000

	// MateScore 杀棋分，离根越近绝对值越大
	MateScore = 10000
)

// 搜索配置
type SearchConfig struct {
	MaxDepth      int           // 最大搜索深度（ply）
	RootMoves     int           // 根节点最多完整搜索的着法数，0 表示全部
	TimeLimit     time.Duration // 根节点时间上限，0 表示不限
	NodeTimeLimit time.Duration // 树内时间上限，超时返回静态评估，0 表示不限
	RandomProb    float64       // 直接随机走子的概率
	Ply           int           // 对局已走步数，开局库用
	UseBook       bool
	UseTactics    bool
}

type Source string

const (
	SourceBook    Source = "book"
	SourceMate    Source = "mate"
	SourceDefense Source = "defense"
	SourceRandom  Source = "random"
	SourceSearch  Source = "search"
)

// 搜索结果
type SearchResult struct {
	BestMove xiangqi.Move   // 最佳着法
	Score    int            // 评估分（正：红方好，负：黑方好）
	Depth    int            // 完整搜完的深度
	Nodes    int64          // 节点数
	TimeUsed time.Duration  // 花费时间
	PV       []xiangqi.Move // 只放根节点最佳着法
	Source   Source
	BookName string
	TimedOut bool // 超时提前返回，不算错误
}

// ChooseMove 完整选着流程：开局库 → 一步杀 → 防一步杀 → 随机 → alpha-beta。
// 正在计算时再次调用直接返回 ErrEngineBusy，不做任何事。
func (e *Engine) ChooseMove(pos *xiangqi.Position, cfg SearchConfig) (SearchResult, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return SearchResult{}, ErrEngineBusy
	}
	defer e.busy.Store(false)

	start := time.Now()
	moves := pos.GenerateLegalMoves()
	if len(moves) == 0 {
		return SearchResult{}, ErrNoMoves
	}
	quick := func(mv xiangqi.Move, src Source) SearchResult {
		return SearchResult{BestMove: mv, Source: src, TimeUsed: time.Since(start), PV: []xiangqi.Move{mv}}
	}

	if cfg.UseBook {
		if entry, ok := BookMove(pos, cfg.Ply); ok {
			res := quick(entry.Move(), SourceBook)
			res.BookName = entry.Name
			return res, nil
		}
	}
	if cfg.UseTactics {
		if mv, ok := FindMatingMove(pos); ok {
			res := quick(mv, SourceMate)
			res.Score = pos.SideToMove.Sign() * (MateScore - 1)
			return res, nil
		}
		if mv, ok := FindDefensiveMove(pos); ok {
			return quick(mv, SourceDefense), nil
		}
	}
	if cfg.RandomProb > 0 && frand.Float64() < cfg.RandomProb {
		return quick(moves[frand.Intn(len(moves))], SourceRandom), nil
	}

	res := e.Search(pos, cfg)
	if res.BestMove.IsZero() {
		// 时间太紧一层都没搜完，按排序取第一个
		orderMoves(pos, moves, xiangqi.Move{})
		res.BestMove = moves[0]
		res.PV = []xiangqi.Move{moves[0]}
	}
	log.Debug().
		Str("move", res.BestMove.String()).
		Int("score", res.Score).
		Int("depth", res.Depth).
		Int64("nodes", res.Nodes).
		Bool("timed_out", res.TimedOut).
		Dur("took", res.TimeUsed).
		Msg("search done")
	return res, nil
}

// Search 迭代加深 alpha-beta。某一层没搜完就用上一层的结果。
func (e *Engine) Search(pos *xiangqi.Position, cfg SearchConfig) SearchResult {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	e.beginSearch()
	start := time.Now()

	s := &searchState{}
	if cfg.TimeLimit > 0 {
		s.rootDeadline = start.Add(cfg.TimeLimit)
	}
	if cfg.NodeTimeLimit > 0 {
		s.nodeDeadline = start.Add(cfg.NodeTimeLimit)
	}

	res := SearchResult{Source: SourceSearch}
	for depth := 1; depth <= cfg.MaxDepth; depth++ {
		score, move, complete := e.alphaBetaRoot(pos, depth, cfg.RootMoves, s)
		if move.IsZero() {
			break
		}
		if !complete {
			res.TimedOut = true
			if res.BestMove.IsZero() {
				res.BestMove, res.Score, res.Depth = move, score, depth
			}
			break
		}
		res.BestMove, res.Score, res.Depth = move, score, depth
		// 已经找到最快的杀，不用再加深
		if score >= MateScore-depth || score <= -(MateScore-depth) {
			break
		}
	}
	res.Nodes = atomic.LoadInt64(&e.nodes)
	res.TimeUsed = time.Since(start)
	res.PV = []xiangqi.Move{res.BestMove}
	return res
}

type searchState struct {
	rootDeadline time.Time
	nodeDeadline time.Time
	timedOut     bool
}

func (s *searchState) rootExpired() bool {
	return !s.rootDeadline.IsZero() && time.Now().After(s.rootDeadline)
}

func (s *searchState) nodeExpired() bool {
	if !s.nodeDeadline.IsZero() && time.Now().After(s.nodeDeadline) {
		s.timedOut = true
	}
	return s.timedOut
}

// 根节点：红方取最大，黑方取最小
func (e *Engine) alphaBetaRoot(pos *xiangqi.Position, depth, rootMoves int, s *searchState) (int, xiangqi.Move, bool) {
	moves := pos.GenerateLegalMoves()
	if len(moves) == 0 {
		return 0, xiangqi.Move{}, true
	}
	key := pos.EnsureHash()
	orderMoves(pos, moves, e.ttMove(key))
	if rootMoves > 0 && len(moves) > rootMoves {
		moves = moves[:rootMoves]
	}

	maximizing := pos.SideToMove == xiangqi.Red
	alpha, beta := -scoreInf, scoreInf
	best := xiangqi.Move{}
	bestScore := 0
	complete := true

	for i, mv := range moves {
		if i > 0 && s.rootExpired() {
			complete = false
			break
		}
		child, ok := pos.ApplyMove(mv)
		if !ok {
			continue
		}
		score := e.alphaBeta(child, depth-1, 1, alpha, beta, s)
		if s.timedOut {
			complete = false
		}
		if best.IsZero() || (maximizing && score > bestScore) || (!maximizing && score < bestScore) {
			best, bestScore = mv, score
		}
		if maximizing && score > alpha {
			alpha = score
		}
		if !maximizing && score < beta {
			beta = score
		}
		if s.timedOut {
			break
		}
	}
	if complete && !best.IsZero() {
		e.storeTT(key, depth, best)
	}
	return bestScore, best, complete
}

// 内部递归：标准 alpha-beta，红方极大、黑方极小
func (e *Engine) alphaBeta(pos *xiangqi.Position, depth, ply int, alpha, beta int, s *searchState) int {
	e.nodes++

	if depth <= 0 {
		return e.eval(pos)
	}
	if s.nodeExpired() {
		// 超时：返回当前静态评估
		return e.eval(pos)
	}

	// 合法着法已经排除了送将，被将军时只剩解将的着法
	moves := pos.GenerateLegalMoves()
	side := pos.SideToMove
	if len(moves) == 0 {
		if pos.IsInCheck(side) {
			// 按离根步数扣分，与剩余深度无关：同一个杀在任何搜索深度下分数相同
			return -side.Sign() * (MateScore - ply)
		}
		return 0 // 困毙在搜索里按 0 分
	}

	key := pos.EnsureHash()
	orderMoves(pos, moves, e.ttMove(key))

	var bestScore int
	var bestMove xiangqi.Move
	if side == xiangqi.Red {
		bestScore = -scoreInf
		for _, mv := range moves {
			child, ok := pos.ApplyMove(mv)
			if !ok {
				continue
			}
			score := e.alphaBeta(child, depth-1, ply+1, alpha, beta, s)
			if score > bestScore {
				bestScore, bestMove = score, mv
			}
			if score > alpha {
				alpha = score
			}
			if alpha >= beta {
				break
			}
		}
	} else {
		bestScore = scoreInf
		for _, mv := range moves {
			child, ok := pos.ApplyMove(mv)
			if !ok {
				continue
			}
			score := e.alphaBeta(child, depth-1, ply+1, alpha, beta, s)
			if score < bestScore {
				bestScore, bestMove = score, mv
			}
			if score < beta {
				beta = score
			}
			if alpha >= beta {
				break
			}
		}
	}

	if !s.timedOut {
		e.storeTT(key, depth, bestMove)
	}
	return bestScore
}

// orderMoves 置换表着法最先，吃子按被吃子价值从大到小，再是不吃子的
func orderMoves(pos *xiangqi.Position, moves []xiangqi.Move, first xiangqi.Move) {
	for i := range moves {
		target := pos.Board.Squares[moves[i].To]
		moves[i].Score = 0
		if target != 0 {
			moves[i].Score = PieceValue(target.Kind())
		}
		if !first.IsZero() && moves[i].Same(first) {
			moves[i].Score = scoreInf
		}
	}
	sort.SliceStable(moves, func(i, j int) bool { return moves[i].Score > moves[j].Score })
}
