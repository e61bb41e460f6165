package engine

import (
	"testing"

	"xiangqi/internal/xiangqi"
)

func TestForcedMate(t *testing.T) {
	t.Run("mate in one", func(t *testing.T) {
		pos := xiangqi.MustDecode("3k5/8R/7R1/9/9/9/9/9/9/4K4 w")
		res := FindForcedMate(pos, 5)
		if !res.Found || res.Depth != 1 {
			t.Fatalf("result %+v", res)
		}
		if !givesMate(pos, res.Move) {
			t.Fatalf("move %v does not mate", res.Move)
		}
	})

	t.Run("chariot ladder", func(t *testing.T) {
		pos := xiangqi.MustDecode("4k4/9/9/9/9/R8/8R/9/9/3K5 w")
		if _, ok := FindMatingMove(pos); ok {
			t.Fatal("position should not have a mate in one")
		}
		res := FindForcedMate(pos, 7)
		if !res.Found || res.Depth < 3 || res.Depth > 5 {
			t.Fatalf("result %+v", res)
		}
		next, ok := pos.ApplyMove(res.Move)
		if !ok || !next.IsInCheck(xiangqi.Black) {
			t.Fatalf("first move %v is not a check", res.Move)
		}
	})

	t.Run("no checks available", func(t *testing.T) {
		pos := xiangqi.MustDecode("3k5/9/9/9/9/9/9/9/9/4K4 w")
		if res := FindForcedMate(pos, 7); res.Found {
			t.Fatalf("found %+v", res)
		}
	})

	t.Run("crowded board skipped", func(t *testing.T) {
		if res := FindForcedMate(xiangqi.NewInitialPosition(), 7); res.Found || res.Nodes != 0 {
			t.Fatalf("result %+v", res)
		}
	})
}
