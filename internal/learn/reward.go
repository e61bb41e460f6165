package learn

import (
	"math"

	"xiangqi/internal/engine"
	"xiangqi/internal/game"
	"xiangqi/internal/xiangqi"
)

const (
	CenterReward   = 20
	ForwardReward  = 5
	TerminalReward = 1000

	// FinalRewardDecay 终局奖励往前每一步衰减的比例
	FinalRewardDecay = 0.9
)

// inCenterRing 中间四行的三列
func inCenterRing(sq int) bool {
	c := xiangqi.CoordOf(sq)
	return c.Row >= 3 && c.Row <= 6 && c.Col >= 3 && c.Col <= 5
}

// ShapeReward 行棋方视角的单步奖励：吃子得子力分，进中心 +20，向前 +5，
// 棋局因此结束时胜 +1000、负 -1000。before 是走之前的局面
func ShapeReward(before *xiangqi.Position, mv xiangqi.Move, side xiangqi.Side, status game.Status) float64 {
	var reward float64
	if target := before.Board.Squares[mv.To]; !target.IsEmpty() {
		reward += float64(engine.PieceValue(target.Kind()))
	}
	if inCenterRing(mv.To) {
		reward += CenterReward
	}
	fromRow, toRow := xiangqi.CoordOf(mv.From).Row, xiangqi.CoordOf(mv.To).Row
	if (side == xiangqi.Red && toRow < fromRow) || (side == xiangqi.Black && toRow > fromRow) {
		reward += ForwardReward
	}
	if status.Terminal() {
		reward += float64(status.Outcome(side) * TerminalReward)
	}
	return reward
}

// GameRecord 一局里推进回放池的经验序号、行棋方和步序，按走子顺序。
// 交互对局只记引擎的着法，所以 plies 可以不连续。
type GameRecord struct {
	seqs  []uint64
	sides []xiangqi.Side
	plies []int
}

func (g *GameRecord) add(seq uint64, side xiangqi.Side, ply int) {
	g.seqs = append(g.seqs, seq)
	g.sides = append(g.sides, side)
	g.plies = append(g.plies, ply)
}

func (g *GameRecord) Len() int { return len(g.seqs) }

func (g *GameRecord) Reset() {
	g.seqs = g.seqs[:0]
	g.sides = g.sides[:0]
	g.plies = g.plies[:0]
}

// Truncate 悔棋后调用：只留下步序小于 plies 的记录
func (g *GameRecord) Truncate(plies int) {
	n := len(g.plies)
	for n > 0 && g.plies[n-1] >= plies {
		n--
	}
	g.seqs = g.seqs[:n]
	g.sides = g.sides[:n]
	g.plies = g.plies[:n]
}

// FinalRewardCredits 从最后一步往前，学习方的每步得到 final × 0.9^距终局步数。
// learner 为 NoSide 时双方所有步都记。返回与 sides 等长的增量
func FinalRewardCredits(sides []xiangqi.Side, final float64, learner xiangqi.Side) []float64 {
	credits := make([]float64, len(sides))
	for i := len(sides) - 1; i >= 0; i-- {
		if learner != xiangqi.NoSide && sides[i] != learner {
			continue
		}
		credits[i] = final * math.Pow(FinalRewardDecay, float64(len(sides)-1-i))
	}
	return credits
}

// targetFor 红方视角的自举目标：reward 先换到红方视角，除以 1000 截到 [-1,1]；
// 非终局再加 γ·V(next)
func targetFor(e Experience, discount float64, nextValue float64) float64 {
	r := e.Reward / TerminalReward
	if e.Side == xiangqi.Black {
		r = -r
	}
	r = clamp(r)
	if e.Terminal {
		return r
	}
	return clamp(r + discount*nextValue)
}

func clamp(v float64) float64 {
	return max(-1, min(1, v))
}
