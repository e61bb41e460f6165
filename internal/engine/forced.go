package engine

import (
	"sort"

	"xiangqi/internal/xiangqi"
)

const (
	forcedDepthCap         = 15
	forcedDefaultDepth     = 7
	forcedNodeBudgetBase   = 32000
	forcedNodeBudgetPerPly = 8000

	// 子力多的时候连将杀很少见，不浪费时间
	forcedMaxPieces = 20
)

const (
	forcedModeAttack uint64 = 0xA5A5A5A5A5A5A5A5
	forcedModeDefend uint64 = 0x5A5A5A5A5A5A5A5A
)

type forcedTTEntry struct {
	Depth  int
	Result bool
	Move   xiangqi.Move
}

type forcedContext struct {
	tt         map[uint64]forcedTTEntry
	inPath     map[uint64]bool
	nodes      int
	nodeBudget int
}

// ForcedMateResult 连将杀搜索结果
type ForcedMateResult struct {
	Found bool         `json:"found"`
	Move  xiangqi.Move `json:"move"`
	// Depth 找到时的搜索层数（双方合计，奇数）
	Depth int `json:"depth"`
	Nodes int `json:"nodes"`
}

// FindForcedMate 只走将军的杀棋搜索：攻方每步都将军，守方任意应将，
// 在 maxDepth 层（双方合计）内守方无路可走即为杀。
func FindForcedMate(pos *xiangqi.Position, maxDepth int) ForcedMateResult {
	if maxDepth <= 0 {
		maxDepth = forcedDefaultDepth
	}
	if maxDepth > forcedDepthCap {
		maxDepth = forcedDepthCap
	}
	red, black := pos.PieceCount()
	if red+black > forcedMaxPieces {
		return ForcedMateResult{}
	}

	ctx := &forcedContext{
		tt:         make(map[uint64]forcedTTEntry, 1<<12),
		inPath:     make(map[uint64]bool, 1<<8),
		nodeBudget: forcedNodeBudgetBase + maxDepth*forcedNodeBudgetPerPly,
	}
	// 迭代加深，浅层的结果给深层排序用
	for d := 1; d <= maxDepth; d += 2 {
		if mv, ok := ctx.attackerCanForce(pos, d); ok {
			return ForcedMateResult{Found: true, Move: mv, Depth: d, Nodes: ctx.nodes}
		}
		if ctx.overBudget() {
			break
		}
	}
	return ForcedMateResult{Nodes: ctx.nodes}
}

// checkingMoves 攻方所有将军着法，置换表着法优先，其次吃子、车炮马
func (ctx *forcedContext) checkingMoves(pos *xiangqi.Position, key uint64) []xiangqi.Move {
	ttMove := ctx.tt[key].Move
	var out []xiangqi.Move
	for _, mv := range pos.GenerateLegalMoves() {
		next, ok := pos.ApplyMove(mv)
		if !ok || !next.IsInCheck(next.SideToMove) {
			continue
		}
		switch {
		case mv.Same(ttMove):
			mv.Score = 1000
		default:
			if target := pos.Board.Squares[mv.To]; !target.IsEmpty() {
				mv.Score = 100 + PieceValue(target.Kind())/100
			}
			switch pos.Board.Squares[mv.From].Kind() {
			case xiangqi.KindChariot:
				mv.Score += 80
			case xiangqi.KindCannon:
				mv.Score += 60
			case xiangqi.KindHorse:
				mv.Score += 40
			case xiangqi.KindSoldier:
				mv.Score += 20
			}
		}
		out = append(out, mv)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (ctx *forcedContext) attackerCanForce(pos *xiangqi.Position, depth int) (xiangqi.Move, bool) {
	if depth <= 0 || ctx.overBudget() {
		return xiangqi.Move{}, false
	}
	key := pos.EnsureHash() ^ forcedModeAttack
	if ctx.inPath[key] {
		return xiangqi.Move{}, false
	}
	if entry, ok := ctx.tt[key]; ok && entry.Depth >= depth && !entry.Result {
		return xiangqi.Move{}, false
	}
	ctx.inPath[key] = true
	defer delete(ctx.inPath, key)

	var best xiangqi.Move
	result := false
	for _, mv := range ctx.checkingMoves(pos, key) {
		next, _ := pos.ApplyMove(mv)
		if !ctx.defenderCanEscape(next, depth-1) {
			best, result = mv, true
			break
		}
	}
	ctx.tt[key] = forcedTTEntry{Depth: depth, Result: result, Move: best}
	return best, result
}

func (ctx *forcedContext) defenderCanEscape(pos *xiangqi.Position, depth int) bool {
	moves := pos.GenerateLegalMoves()
	if len(moves) == 0 {
		return false
	}
	if depth <= 0 || ctx.overBudget() {
		return true
	}
	key := pos.EnsureHash() ^ forcedModeDefend
	if ctx.inPath[key] {
		return true
	}
	if entry, ok := ctx.tt[key]; ok && entry.Depth >= depth && entry.Result {
		return true
	}
	ctx.inPath[key] = true
	defer delete(ctx.inPath, key)

	result := false
	var escape xiangqi.Move
	for _, mv := range moves {
		next, ok := pos.ApplyMove(mv)
		if !ok {
			continue
		}
		// 守方只要有一步不被连将杀就算逃脱
		if _, forced := ctx.attackerCanForce(next, depth-1); !forced {
			result, escape = true, mv
			break
		}
	}
	ctx.tt[key] = forcedTTEntry{Depth: depth, Result: result, Move: escape}
	return result
}

func (ctx *forcedContext) overBudget() bool {
	ctx.nodes++
	return ctx.nodes > ctx.nodeBudget
}
