package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"xiangqi/internal/config"
	"xiangqi/internal/engine"
	"xiangqi/internal/learn"
	"xiangqi/internal/selfplay"
	"xiangqi/internal/server/game"
)

// Deps 服务依赖。Learner 和 Controller 可以为空，对应接口返回 503
type Deps struct {
	Games      *game.Manager
	Engine     *engine.Engine
	Learner    *learn.Learner
	Controller *selfplay.Controller
	Config     *config.ConfigStore
	Logger     zerolog.Logger

	// WebDir 前端静态文件目录，可为空
	WebDir      string
	// BaseContext 后台自对弈挂在这个 ctx 上，不跟请求走
	BaseContext context.Context
}

type Server struct {
	games      *game.Manager
	eng        *engine.Engine
	learner    *learn.Learner
	controller *selfplay.Controller
	cfg        *config.ConfigStore
	log        zerolog.Logger
	baseCtx    context.Context
	webDir     string
	upgrader   websocket.Upgrader
}

func New(d Deps) *Server {
	if d.BaseContext == nil {
		d.BaseContext = context.Background()
	}
	if d.Config == nil {
		d.Config = config.NewConfigStore(config.DefaultConfig())
	}
	if d.Games == nil {
		d.Games = game.NewManager(d.Config.Get().Limits())
	}
	if d.Engine == nil {
		d.Engine = engine.NewEngine()
	}
	return &Server{
		games:      d.Games,
		eng:        d.Engine,
		learner:    d.Learner,
		controller: d.Controller,
		cfg:        d.Config,
		log:        d.Logger.With().Str("component", "http").Logger(),
		baseCtx:    d.BaseContext,
		webDir:     d.WebDir,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes /api/* 和 /ws/*
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/label", s.handleLabel)

	r.Route("/api/games", func(r chi.Router) {
		r.Post("/", s.handleNewGame)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleState)
			r.Delete("/", s.handleDeleteGame)
			r.Get("/status", s.handleStatus)
			r.Get("/moves", s.handleMoves)
			r.Post("/valid", s.handleValid)
			r.Post("/move", s.handlePlay)
			r.Post("/undo", s.handleUndo)
			r.Post("/ai_move", s.handleAiMove)
			r.Get("/forced_mate", s.handleForcedMate)
		})
	})

	r.Get("/api/settings", s.handleGetSettings)
	r.Put("/api/settings", s.handlePutSettings)

	r.Route("/api/training", func(r chi.Router) {
		r.Get("/", s.handleTrainingStatus)
		r.Delete("/", s.handleTrainingClear)
		r.Post("/start", s.handleTrainingStart)
		r.Post("/stop", s.handleTrainingStop)
		r.Post("/save", s.handleTrainingSave)
	})

	r.Get("/ws/training", s.handleTrainingWS)
	mountStatic(r, s.webDir)
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Debug().
				Str("req_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON 空 body 不算错
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
