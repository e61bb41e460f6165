package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"xiangqi/internal/config"
	"xiangqi/internal/engine"
	"xiangqi/internal/learn"
	"xiangqi/internal/nn"
	"xiangqi/internal/selfplay"
	"xiangqi/internal/store"
	"xiangqi/internal/xiangqi"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	if len(os.Args) > 1 && os.Args[1] == "benchmark" {
		if err := runBenchmark(os.Args[2:]); err != nil {
			log.Fatal().Err(err).Msg("benchmark")
		}
		return
	}
	if err := runTraining(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("selfplay")
	}
}

// runTraining 无界面自对弈训练，Ctrl-C 停止并存盘
func runTraining(args []string) error {
	fs := flag.NewFlagSet("selfplay", flag.ExitOnError)
	cfgPath := fs.String("config", "xiangqi.json", "path to JSON config file")
	games := fs.Int("games", 0, "number of games to play (0 = until interrupted)")
	red := fs.String("red", "", "red difficulty (default: selfplay_difficulty)")
	black := fs.String("black", "", "black difficulty (default: selfplay_difficulty)")
	dataDir := fs.String("data", "", "directory for the persisted model (overrides config)")
	fen := fs.String("fen", "", "start every game from this position")
	noLearn := fs.Bool("no-learn", false, "play only, do not record or train")
	useLearned := fs.Bool("learned", false, "blend the learned evaluator into search")
	_ = fs.Parse(args)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	zerolog.SetGlobalLevel(cfg.Level())

	redDiff, err := difficultyOr(*red, cfg.SelfPlayDifficulty)
	if err != nil {
		return err
	}
	blackDiff, err := difficultyOr(*black, cfg.SelfPlayDifficulty)
	if err != nil {
		return err
	}
	var start *xiangqi.Position
	if *fen != "" {
		if start, err = xiangqi.DecodePosition(*fen); err != nil {
			return fmt.Errorf("fen: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		return err
	}
	learner, err := learn.New(learn.Options{
		Capacity:     cfg.ReplayCapacity,
		BatchSize:    cfg.BatchSize,
		MinSamples:   cfg.MinSamples,
		SaveEvery:    cfg.SaveEveryExperiences,
		LearningRate: cfg.LearningRate,
		Discount:     cfg.Discount,
		Topology:     nn.NewTopology(xiangqi.FeatureSize, cfg.HiddenLayers),
		Seed:         time.Now().UnixNano(),
		Store:        st,
		Logger:       log.Logger,
	})
	if err != nil {
		return err
	}
	loaded, err := learner.Load(ctx)
	if err != nil {
		return err
	}
	if !loaded {
		learner.SeedFromBook()
	}

	eng := engine.NewEngine()
	eng.AttachLearned(learner.Model(), learner.ExperienceCount)
	eng.SetUseLearned(*useLearned)

	ctrl := selfplay.New(eng, learner, selfplay.Options{
		RedDifficulty:   redDiff,
		BlackDifficulty: blackDiff,
		Limits:          cfg.Limits(),
		GameTimeout:     cfg.GameTimeout.Duration,
		SaveEveryGames:  cfg.SaveEveryGames,
		MaxGames:        *games,
		Start:           start,
		Learn:           !*noLearn,
		Logger:          log.Logger,
	})

	began := time.Now()
	err = ctrl.Run(ctx)
	p := ctrl.Progress()
	log.Info().
		Int("games", p.GamesPlayed).
		Int("red_wins", p.RedWins).
		Int("black_wins", p.BlackWins).
		Int("draws", p.Draws).
		Int("errors", p.Errors).
		Int("experiences", p.Experiences).
		Float64("last_loss", p.LastLoss).
		Dur("took", time.Since(began)).
		Msg("selfplay finished")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func difficultyOr(s string, def engine.Difficulty) (engine.Difficulty, error) {
	if s == "" {
		return def, nil
	}
	return engine.ParseDifficulty(s)
}
