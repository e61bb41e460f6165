package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"xiangqi/internal/engine"
	"xiangqi/internal/game"
)

// Duration JSON 里写成 "30s" 这种形式
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type Config struct {
	Difficulty         engine.Difficulty `json:"difficulty"`
	SelfPlayDifficulty engine.Difficulty `json:"selfplay_difficulty"`
	UseLearnedEval     bool              `json:"use_learned_eval"`
	LearningEnabled    bool              `json:"learning_enabled"`

	// 和棋判定
	MaxPlies        int `json:"max_plies"`
	NoCaptureLimit  int `json:"no_capture_limit"`
	RepetitionLimit int `json:"repetition_limit"`

	// 自对弈
	GameTimeout    Duration `json:"game_timeout"`
	SaveEveryGames int      `json:"save_every_games"`

	// 学习
	SaveEveryExperiences int     `json:"save_every_experiences"`
	ReplayCapacity       int     `json:"replay_capacity"`
	BatchSize            int     `json:"batch_size"`
	MinSamples           int     `json:"min_samples"`
	LearningRate         float64 `json:"learning_rate"`
	Discount             float64 `json:"discount"`
	HiddenLayers         []int   `json:"hidden_layers"`

	DataDir    string `json:"data_dir"`
	ONNXModel  string `json:"onnx_model"`
	ONNXLib    string `json:"onnx_lib"`
	ListenAddr string `json:"listen_addr"`
	LogLevel   string `json:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		Difficulty:         engine.Medium,
		SelfPlayDifficulty: engine.Easy,
		UseLearnedEval:     false,
		LearningEnabled:    false,

		MaxPlies:        150,
		NoCaptureLimit:  50,
		RepetitionLimit: 3,

		GameTimeout:    Duration{30 * time.Second},
		SaveEveryGames: 10,

		SaveEveryExperiences: 50,
		ReplayCapacity:       10000,
		BatchSize:            32,
		MinSamples:           5,
		LearningRate:         0.001,
		Discount:             0.95,
		HiddenLayers:         []int{512, 256, 128},

		DataDir:    "data",
		ListenAddr: ":8080",
		LogLevel:   "info",
	}
}

// Load 在默认值上叠加 JSON 文件；文件不存在时直接返回默认值
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.MaxPlies <= 0:
		return fmt.Errorf("max_plies must be positive")
	case c.NoCaptureLimit <= 0:
		return fmt.Errorf("no_capture_limit must be positive")
	case c.RepetitionLimit < 2:
		return fmt.Errorf("repetition_limit must be at least 2")
	case c.ReplayCapacity <= 0:
		return fmt.Errorf("replay_capacity must be positive")
	case c.BatchSize <= 0:
		return fmt.Errorf("batch_size must be positive")
	case c.MinSamples <= 0:
		return fmt.Errorf("min_samples must be positive")
	case c.LearningRate <= 0:
		return fmt.Errorf("learning_rate must be positive")
	case c.Discount < 0 || c.Discount > 1:
		return fmt.Errorf("discount must be in [0,1]")
	case c.GameTimeout.Duration <= 0:
		return fmt.Errorf("game_timeout must be positive")
	}
	for _, h := range c.HiddenLayers {
		if h <= 0 {
			return fmt.Errorf("hidden_layers entries must be positive")
		}
	}
	return nil
}

func (c Config) Limits() game.Limits {
	return game.Limits{MaxPlies: c.MaxPlies, NoCaptureLimit: c.NoCaptureLimit, RepetitionLimit: c.RepetitionLimit}
}

// Level 解析 log_level，无法识别时用 info
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// ConfigStore 运行时可改的配置（控制面改难度、开关学习）
type ConfigStore struct {
	mu     sync.RWMutex
	config Config
}

func NewConfigStore(cfg Config) *ConfigStore {
	return &ConfigStore{config: cfg}
}

func (c *ConfigStore) Get() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

func (c *ConfigStore) Update(fn func(*Config)) Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.config)
	return c.config
}
