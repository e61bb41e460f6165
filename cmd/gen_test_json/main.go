package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"lukechampine.com/frand"

	"xiangqi/internal/game"
	"xiangqi/internal/xiangqi"
)

// TestCase 随机对局里的一个局面，给别的实现（前端、其他语言的引擎）对拍走法生成用
type TestCase struct {
	FEN     string `json:"fen"`
	Ply     int    `json:"ply"`
	InCheck bool   `json:"in_check"`
	Status  string `json:"status"`
	// Stage 0：能动的棋子；Stage 1：选中 From 之后的落点
	Stage    int       `json:"stage"`
	From     string    `json:"from,omitempty"`
	Mask     []int8    `json:"mask"`
	Legal    []string  `json:"legal,omitempty"`
	Features []float64 `json:"features,omitempty"`
}

func main() {
	numGames := flag.Int("games", 10, "random games to sample")
	out := flag.String("out", "move_gen_test_data.json", "output file")
	features := flag.Bool("features", false, "include the 90-value feature vector")
	flag.Parse()

	var testCases []TestCase
	for g := 0; g < *numGames; g++ {
		sess := game.NewSession(game.DefaultLimits())
		for !sess.Status().Terminal() {
			pos := sess.Pos
			legalMoves := sess.LegalMoves(sess.SideToMove())
			base := TestCase{
				FEN:     pos.Encode(),
				Ply:     sess.Ply(),
				InCheck: pos.IsInCheck(pos.SideToMove),
				Status:  sess.Status().String(),
			}

			mask0 := make([]int8, xiangqi.NumSquares)
			legal := make([]string, len(legalMoves))
			for i, mv := range legalMoves {
				mask0[mv.From] = 1
				legal[i] = mv.String()
			}
			tc := base
			tc.Stage = 0
			tc.Mask = mask0
			tc.Legal = legal
			if *features {
				tc.Features = pos.FeatureVector()
			}
			testCases = append(testCases, tc)

			// 随机选一步
			chosen := legalMoves[frand.Intn(len(legalMoves))]

			mask1 := make([]int8, xiangqi.NumSquares)
			for _, mv := range legalMoves {
				if mv.From == chosen.From {
					mask1[mv.To] = 1
				}
			}
			tc = base
			tc.Stage = 1
			tc.From = xiangqi.CoordOf(chosen.From).String()
			tc.Mask = mask1
			testCases = append(testCases, tc)

			if _, err := sess.Play(chosen); err != nil {
				fmt.Fprintln(os.Stderr, "play:", err)
				break
			}
		}
	}

	data, err := json.MarshalIndent(testCases, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Generated %d test cases from %d random games to %s\n", len(testCases), *numGames, *out)
}
