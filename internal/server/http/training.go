package httpserver

import (
	"errors"
	"net/http"

	"xiangqi/internal/config"
	"xiangqi/internal/engine"
	"xiangqi/internal/learn"
	"xiangqi/internal/selfplay"
)

type TrainingResponse struct {
	Progress selfplay.Progress `json:"progress"`
	Learner  *learn.Stats      `json:"learner,omitempty"`
}

func settingsOf(c config.Config) SettingsDTO {
	return SettingsDTO{
		Difficulty:      c.Difficulty.String(),
		UseLearnedEval:  c.UseLearnedEval,
		LearningEnabled: c.LearningEnabled,
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, settingsOf(s.cfg.Get()))
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var p SettingsPatch
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	var diff engine.Difficulty
	if p.Difficulty != nil {
		d, err := engine.ParseDifficulty(*p.Difficulty)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		diff = d
	}
	cfg := s.cfg.Update(func(c *config.Config) {
		if p.Difficulty != nil {
			c.Difficulty = diff
		}
		if p.UseLearnedEval != nil {
			c.UseLearnedEval = *p.UseLearnedEval
		}
		if p.LearningEnabled != nil {
			c.LearningEnabled = *p.LearningEnabled
		}
	})
	s.applySettings(cfg)
	s.log.Info().
		Str("difficulty", cfg.Difficulty.String()).
		Bool("use_learned_eval", cfg.UseLearnedEval).
		Bool("learning_enabled", cfg.LearningEnabled).
		Msg("settings updated")
	writeJSON(w, http.StatusOK, settingsOf(cfg))
}

// applySettings 交互引擎和自对弈引擎一起切换
func (s *Server) applySettings(c config.Config) {
	s.eng.SetUseLearned(c.UseLearnedEval)
	if s.controller != nil {
		s.controller.Engine().SetUseLearned(c.UseLearnedEval)
		s.controller.SetLearning(c.LearningEnabled)
	}
}

func (s *Server) handleTrainingStatus(w http.ResponseWriter, r *http.Request) {
	var resp TrainingResponse
	if s.controller != nil {
		resp.Progress = s.controller.Progress()
	}
	if s.learner != nil {
		st := s.learner.Stats()
		resp.Learner = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrainingStart(w http.ResponseWriter, r *http.Request) {
	if s.controller == nil {
		writeError(w, http.StatusServiceUnavailable, "self-play is not configured")
		return
	}
	if err := s.controller.Start(s.baseCtx); err != nil {
		if errors.Is(err, selfplay.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, s.controller.Progress())
}

func (s *Server) handleTrainingStop(w http.ResponseWriter, r *http.Request) {
	if s.controller == nil {
		writeError(w, http.StatusServiceUnavailable, "self-play is not configured")
		return
	}
	if err := s.controller.Stop(); err != nil {
		if errors.Is(err, selfplay.ErrNotRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Progress())
}

func (s *Server) handleTrainingSave(w http.ResponseWriter, r *http.Request) {
	if s.learner == nil {
		writeError(w, http.StatusServiceUnavailable, "learning is not configured")
		return
	}
	if err := s.learner.Save(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("forced save failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.learner.Stats())
}

func (s *Server) handleTrainingClear(w http.ResponseWriter, r *http.Request) {
	if s.learner == nil {
		writeError(w, http.StatusServiceUnavailable, "learning is not configured")
		return
	}
	if s.controller != nil && s.controller.Running() {
		writeError(w, http.StatusConflict, "stop self-play before clearing")
		return
	}
	if err := s.learner.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.learner.Stats())
}
