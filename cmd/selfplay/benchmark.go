package main

import (
	"context"
	"flag"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"xiangqi/internal/engine"
	"xiangqi/internal/game"
	"xiangqi/internal/selfplay"
)

type PlayerConfig struct {
	Name       string
	Difficulty engine.Difficulty
}

type tally struct {
	mu      sync.Mutex
	winsA   int
	winsB   int
	draws   int
	errors  int
	plies   int
	elapsed time.Duration
}

func (t *tally) add(res selfplay.GameResult, aIsRed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.plies += res.Plies
	t.elapsed += res.Duration
	switch res.Status {
	case game.StatusRedWin:
		if aIsRed {
			t.winsA++
		} else {
			t.winsB++
		}
	case game.StatusBlackWin:
		if aIsRed {
			t.winsB++
		} else {
			t.winsA++
		}
	case game.StatusError:
		t.errors++
		t.draws++
	default:
		t.draws++
	}
}

// runBenchmark 两个难度对打，轮流执红。每个 worker 自己一个引擎
func runBenchmark(args []string) error {
	fs := flag.NewFlagSet("benchmark", flag.ExitOnError)
	totalGames := fs.Int("games", 10, "number of games to play")
	a := fs.String("a", "easy", "difficulty of player A")
	b := fs.String("b", "medium", "difficulty of player B")
	workers := fs.Int("workers", runtime.NumCPU(), "games played in parallel")
	timeout := fs.Duration("timeout", 30*time.Second, "per-game wall clock limit")
	maxPlies := fs.Int("max-plies", 150, "draw after this many plies")
	_ = fs.Parse(args)

	diffA, err := engine.ParseDifficulty(*a)
	if err != nil {
		return err
	}
	diffB, err := engine.ParseDifficulty(*b)
	if err != nil {
		return err
	}
	playerA := PlayerConfig{Name: "A (" + diffA.String() + ")", Difficulty: diffA}
	playerB := PlayerConfig{Name: "B (" + diffB.String() + ")", Difficulty: diffB}

	limits := game.DefaultLimits()
	limits.MaxPlies = *maxPlies

	var t tally
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(max(1, *workers))
	for i := 0; i < *totalGames; i++ {
		aIsRed := i%2 == 0
		red, black := playerA, playerB
		if !aIsRed {
			red, black = playerB, playerA
		}
		g.Go(func() error {
			ctrl := selfplay.New(engine.NewEngine(), nil, selfplay.Options{
				RedDifficulty:   red.Difficulty,
				BlackDifficulty: black.Difficulty,
				Limits:          limits,
				GameTimeout:     *timeout,
				Logger:          zerolog.Nop(),
			})
			res, err := ctrl.PlayGame(ctx)
			if err != nil {
				return err
			}
			t.add(res, aIsRed)
			log.Info().
				Int("game", i+1).
				Str("red", red.Name).
				Str("black", black.Name).
				Str("result", res.Result).
				Str("reason", res.Reason).
				Int("plies", res.Plies).
				Msg("game finished")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Printf("\n=== Final Score (%d games) ===\n", *totalGames)
	fmt.Printf("%s: %d\n", playerA.Name, t.winsA)
	fmt.Printf("%s: %d\n", playerB.Name, t.winsB)
	fmt.Printf("Draws: %d (errors %d)\n", t.draws, t.errors)
	if *totalGames > 0 {
		fmt.Printf("Avg plies: %.1f, avg game time: %v\n",
			float64(t.plies)/float64(*totalGames), t.elapsed/time.Duration(*totalGames))
	}
	return nil
}
