package engine

import (
	"testing"

	"xiangqi/internal/xiangqi"
)

// mirror 上下翻转并交换红黑
func mirror(pos *xiangqi.Position) *xiangqi.Position {
	out := xiangqi.NewEmptyPosition(pos.SideToMove.Opponent())
	for sq, pc := range pos.Board.Squares {
		if pc == 0 {
			continue
		}
		c := xiangqi.CoordOf(sq)
		m := xiangqi.Coordinate{Row: xiangqi.Rows - 1 - c.Row, Col: c.Col}
		out.Board.Squares[m.Square()] = -pc
	}
	out.Hash = out.CalculateHash()
	return out
}

var evalFENs = []string{
	xiangqi.StartFEN,
	"3k5/4a4/4b4/p3p3p/2c6/9/P3P3P/4C4/4A4/3AK1B2 w",
	"r1bakab1r/9/1cn3nc1/p1p1p1p1p/9/9/P1P1P1P1P/1C2C1N2/9/RNBAKAB1R b",
	"4k4/9/9/9/9/R8/9/7r1/8r/3K5 w",
}

func TestEvaluateInitialIsBalanced(t *testing.T) {
	if got := Evaluate(xiangqi.NewInitialPosition()); got != 0 {
		t.Fatalf("initial evaluation should be 0, got %d", got)
	}
}

func TestEvaluateIsSymmetric(t *testing.T) {
	for _, fen := range evalFENs {
		pos := xiangqi.MustDecode(fen)
		a, b := Evaluate(pos), Evaluate(mirror(pos))
		if a != -b {
			t.Errorf("%s: eval=%d mirrored=%d", fen, a, b)
		}
	}
}

func TestEvaluateDoesNotMutate(t *testing.T) {
	for _, fen := range evalFENs {
		pos := xiangqi.MustDecode(fen)
		key, hash := pos.Key(), pos.Hash
		Evaluate(pos)
		if pos.Key() != key || pos.Hash != hash {
			t.Fatalf("%s: Evaluate mutated the position", fen)
		}
	}
}

func TestEvaluateRewardsMaterialAndCheck(t *testing.T) {
	base := xiangqi.MustDecode("3k5/9/9/9/9/9/9/9/9/4K4 w")
	withChariot := xiangqi.MustDecode("3k5/9/9/9/9/9/9/9/R8/4K4 w")
	if Evaluate(withChariot)-Evaluate(base) < PieceValue(xiangqi.KindChariot) {
		t.Fatalf("extra chariot should be worth at least its material value")
	}
	// 车在第 0 行将军
	checking := xiangqi.MustDecode("3k4R/9/9/9/9/9/9/9/9/4K4 b")
	quiet := xiangqi.MustDecode("3k5/9/9/9/9/9/9/9/8R/4K4 b")
	if Evaluate(checking)-Evaluate(quiet) < checkBonus {
		t.Fatalf("check bonus missing: checking=%d quiet=%d", Evaluate(checking), Evaluate(quiet))
	}
}

func TestBlendWeight(t *testing.T) {
	cases := map[int]float64{0: 0.3, 100: 0.4, 500: 0.8, 10000: 0.8}
	for n, want := range cases {
		if got := BlendWeight(n); got < want-1e-9 || got > want+1e-9 {
			t.Errorf("BlendWeight(%d)=%v want %v", n, got, want)
		}
	}
}
