package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"xiangqi/internal/config"
	"xiangqi/internal/engine"
	"xiangqi/internal/learn"
	"xiangqi/internal/nn"
	"xiangqi/internal/selfplay"
	"xiangqi/internal/server/game"
	httpserver "xiangqi/internal/server/http"
	"xiangqi/internal/store"
	"xiangqi/internal/xiangqi"
)

func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default: // linux / bsd
		cmd = exec.Command("xdg-open", url)
	}

	_ = cmd.Start() // 服务器环境可能没有图形界面，忽略错误
}

func main() {
	cfgPath := flag.String("config", "xiangqi.json", "path to JSON config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	webDir := flag.String("web", "", "directory with index.html / js / svg")
	dataDir := flag.String("data", "", "directory for the persisted model (overrides config)")
	modelPath := flag.String("model", "", "optional frozen ONNX value model")
	libPath := flag.String("lib", "", "path to the onnxruntime shared library")
	train := flag.Bool("train", false, "start self-play training immediately")
	open := flag.Bool("open", false, "open the browser once listening")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *modelPath != "" {
		cfg.ONNXModel = *modelPath
	}
	if *libPath != "" {
		cfg.ONNXLib = *libPath
	}
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("open data dir")
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
		Store:        fs,
		Logger:       log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create learner")
	}
	loaded, err := learner.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load model")
	}
	if !loaded {
		learner.SeedFromBook()
	}

	// 交互对局和自对弈各用一个引擎，置换表不共享
	interactive := engine.NewEngine()
	training := engine.NewEngine()
	interactive.AttachLearned(learner.Model(), learner.ExperienceCount)
	training.AttachLearned(learner.Model(), learner.ExperienceCount)
	if cfg.ONNXModel != "" {
		m, err := nn.NewONNXModel(nn.ONNXOptions{ModelPath: cfg.ONNXModel, LibPath: cfg.ONNXLib})
		if err != nil {
			log.Fatal().Err(err).Msg("load onnx model")
		}
		defer m.Close()
		// 冻结模型只给交互对局用，自对弈继续用在线学习的网络
		interactive.AttachLearned(m, learner.ExperienceCount)
		log.Info().Str("model", cfg.ONNXModel).Msg("onnx value model attached")
	}
	interactive.SetUseLearned(cfg.UseLearnedEval)
	training.SetUseLearned(cfg.UseLearnedEval)

	ctrl := selfplay.New(training, learner, selfplay.Options{
		RedDifficulty:   cfg.SelfPlayDifficulty,
		BlackDifficulty: cfg.SelfPlayDifficulty,
		Limits:          cfg.Limits(),
		GameTimeout:     cfg.GameTimeout.Duration,
		SaveEveryGames:  cfg.SaveEveryGames,
		Learn:           cfg.LearningEnabled,
		Logger:          log.Logger,
	})

	srv := httpserver.New(httpserver.Deps{
		Games:       game.NewManager(cfg.Limits()),
		Engine:      interactive,
		Learner:     learner,
		Controller:  ctrl,
		Config:      config.NewConfigStore(cfg),
		Logger:      log.Logger,
		WebDir:      *webDir,
		BaseContext: ctx,
	})
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Str("web", *webDir).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctrl.Running() {
			_ = ctrl.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	if *train {
		if err := ctrl.Start(gctx); err != nil {
			log.Fatal().Err(err).Msg("start self-play")
		}
	}
	if *open {
		go func() {
			time.Sleep(100 * time.Millisecond)
			openBrowser("http://127.0.0.1" + cfg.ListenAddr + "/web/")
		}()
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("bye")
}
