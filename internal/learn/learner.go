package learn

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"xiangqi/internal/engine"
	"xiangqi/internal/game"
	"xiangqi/internal/nn"
	"xiangqi/internal/store"
	"xiangqi/internal/xiangqi"
)

var (
	ErrTrainingBusy     = errors.New("training already in progress")
	ErrNotEnoughSamples = errors.New("not enough samples to learn")
	ErrTrainingFailure  = errors.New("training failure")
)

// 持久化键
const (
	KeyModel       = "xiangqi-ai-model"
	KeyMetadata    = "xiangqi-ai-training-data"
	KeyExperiences = "xiangqi-ai-experiences"
)

const (
	DefaultCapacity   = 10000
	DefaultBatchSize  = 32
	DefaultMinSamples = 5
	DefaultSaveEvery  = 50
	DefaultDiscount   = 0.95

	// 只持久化最近这么多条经验
	persistedExperiences = 1000
	maxEpochs            = 3
	metadataVersion      = "1"
)

type Options struct {
	Capacity     int
	BatchSize    int
	MinSamples   int
	SaveEvery    int // 每记录这么多条经验存一次盘，0 关闭
	LearningRate float64
	Discount     float64
	Topology     nn.Topology
	Seed         int64
	Store        store.Store
	Logger       zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MinSamples <= 0 {
		o.MinSamples = DefaultMinSamples
	}
	if o.LearningRate <= 0 {
		o.LearningRate = nn.DefaultLearningRate
	}
	if o.Discount < 0 || o.Discount > 1 {
		o.Discount = DefaultDiscount
	}
	if o.Topology.Inputs == 0 {
		o.Topology = nn.DefaultTopology()
	}
	if o.Store == nil {
		o.Store = store.NewMemoryStore()
	}
}

// Metadata 随模型一起存的训练信息
type Metadata struct {
	ExperienceCount int       `json:"experienceCount"`
	LearningRate    float64   `json:"learningRate"`
	BatchSize       int       `json:"batchSize"`
	SaveTime        time.Time `json:"saveTime"`
	Version         string    `json:"version"`
}

type Stats struct {
	Experiences int       `json:"experiences"`
	Recorded    int64     `json:"recorded"`
	Batches     int64     `json:"batches"`
	Failures    int64     `json:"failures"`
	LastLoss    float64   `json:"last_loss"`
	LastSave    time.Time `json:"last_save"`
	Training    bool      `json:"training"`
	BlendWeight float64   `json:"blend_weight"`
}

// Learner 回放池 + 价值网络 + 持久化节奏
type Learner struct {
	opts  Options
	net   *nn.Network
	buf   *Buffer
	store store.Store
	log   zerolog.Logger

	training atomic.Bool

	mu        sync.Mutex
	sinceSave int
	recorded  int64
	batches   int64
	failures  int64
	lastLoss  float64
	lastSave  time.Time
}

func New(opts Options) (*Learner, error) {
	opts.setDefaults()
	net, err := nn.NewNetwork(opts.Topology, opts.LearningRate, opts.Seed)
	if err != nil {
		return nil, err
	}
	return &Learner{
		opts:  opts,
		net:   net,
		buf:   NewBuffer(opts.Capacity),
		store: opts.Store,
		log:   opts.Logger.With().Str("component", "learner").Logger(),
	}, nil
}

// Model 挂给引擎做学习型评估
func (l *Learner) Model() *nn.Network { return l.net }

func (l *Learner) Buffer() *Buffer { return l.buf }

func (l *Learner) ExperienceCount() int { return l.buf.Len() }

func (l *Learner) Training() bool { return l.training.Load() }

// Record 记录一步棋。before/after 是走前走后的局面，status 是走完后的对局状态，
// ply 是这步在对局里的序号（从 0 起）。rec 非空时登记序号供终局回填。
func (l *Learner) Record(ctx context.Context, before *xiangqi.Position, mv xiangqi.Move, side xiangqi.Side,
	after *xiangqi.Position, status game.Status, ply int, rec *GameRecord) Experience {
	e := Experience{
		State:     before.FeatureVector(),
		Action:    mv,
		Side:      side,
		Reward:    ShapeReward(before, mv, side, status),
		NextState: after.FeatureVector(),
		Terminal:  status.Terminal(),
	}
	seq := l.buf.Push(e)
	if rec != nil {
		rec.add(seq, side, ply)
	}

	l.mu.Lock()
	l.recorded++
	l.sinceSave++
	due := l.opts.SaveEvery > 0 && l.sinceSave >= l.opts.SaveEvery
	l.mu.Unlock()

	if due {
		if err := l.Save(ctx); err != nil {
			l.log.Error().Err(err).Msg("periodic save failed")
		}
	}
	return e
}

// AssignFinalRewards 终局后按衰减回填奖励，返回实际改到的经验条数（被挤出回放池的跳过）
func (l *Learner) AssignFinalRewards(rec *GameRecord, final float64, learner xiangqi.Side) int {
	if rec == nil || rec.Len() == 0 || final == 0 {
		return 0
	}
	credits := FinalRewardCredits(rec.sides, final, learner)
	n := 0
	for i, delta := range credits {
		if delta == 0 {
			continue
		}
		if l.buf.AddReward(rec.seqs[i], delta) {
			n++
		}
	}
	l.log.Debug().Float64("final", final).Str("learner", learner.String()).Int("moves", rec.Len()).Int("credited", n).Msg("final rewards assigned")
	return n
}

// Learn 抽一批样本训练。正在训练时返回 ErrTrainingBusy，样本不足返回 ErrNotEnoughSamples。
// 训练中的 panic 被转成 ErrTrainingFailure，训练标志一定会清掉。
func (l *Learner) Learn() (loss float64, err error) {
	if !l.training.CompareAndSwap(false, true) {
		return 0, ErrTrainingBusy
	}
	defer l.training.Store(false)

	n := l.buf.Len()
	if n < l.opts.MinSamples {
		return 0, ErrNotEnoughSamples
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTrainingFailure, r)
		}
		if err != nil {
			l.mu.Lock()
			l.failures++
			l.mu.Unlock()
			l.log.Warn().Err(err).Msg("training batch failed")
		}
	}()

	batchSize := min(l.opts.BatchSize, n)
	batch := l.buf.Sample(batchSize)

	next := make([][]float64, 0, len(batch))
	for _, e := range batch {
		if !e.Terminal {
			next = append(next, e.NextState)
		}
	}
	nextValues, err := l.net.PredictBatch(next)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTrainingFailure, err)
	}

	inputs := make([][]float64, len(batch))
	targets := make([]float64, len(batch))
	j := 0
	for i, e := range batch {
		inputs[i] = e.State
		var v float64
		if !e.Terminal {
			v = nextValues[j]
			j++
		}
		targets[i] = targetFor(e, l.opts.Discount, v)
	}

	epochs := min(maxEpochs, max(1, batchSize/10))
	loss, err = l.net.Fit(inputs, targets, epochs, min(batchSize, nn.DefaultFitBatch))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTrainingFailure, err)
	}

	l.mu.Lock()
	l.batches++
	l.lastLoss = loss
	l.mu.Unlock()
	l.log.Debug().Int("batch", batchSize).Int("epochs", epochs).Float64("loss", loss).Msg("learned")
	return loss, nil
}

func (l *Learner) Stats() Stats {
	n := l.buf.Len()
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Experiences: n,
		Recorded:    l.recorded,
		Batches:     l.batches,
		Failures:    l.failures,
		LastLoss:    l.lastLoss,
		LastSave:    l.lastSave,
		Training:    l.training.Load(),
		BlendWeight: engine.BlendWeight(n),
	}
}

// Save 存权重、元数据和最近 1000 条经验
func (l *Learner) Save(ctx context.Context) error {
	weights, err := l.net.MarshalBinary()
	if err != nil {
		return err
	}
	now := time.Now()
	meta, err := json.Marshal(Metadata{
		ExperienceCount: l.buf.Len(),
		LearningRate:    l.net.LearningRate(),
		BatchSize:       l.opts.BatchSize,
		SaveTime:        now,
		Version:         metadataVersion,
	})
	if err != nil {
		return err
	}
	var exps bytes.Buffer
	if err := gob.NewEncoder(&exps).Encode(l.buf.Tail(persistedExperiences)); err != nil {
		return fmt.Errorf("encode experiences: %w", err)
	}

	if err := l.store.Save(ctx, KeyModel, weights); err != nil {
		return err
	}
	if err := l.store.Save(ctx, KeyMetadata, meta); err != nil {
		return err
	}
	if err := l.store.Save(ctx, KeyExperiences, exps.Bytes()); err != nil {
		return err
	}

	l.mu.Lock()
	l.sinceSave = 0
	l.lastSave = now
	l.mu.Unlock()
	l.log.Info().Int("experiences", l.buf.Len()).Msg("training state saved")
	return nil
}

// Load 读回持久化的训练状态。没有存档时返回 (false, nil)。
// 权重损坏或拓扑不符时丢弃存档用新网络，只记警告。
func (l *Learner) Load(ctx context.Context) (bool, error) {
	weights, ok, err := l.store.Load(ctx, KeyModel)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := l.net.UnmarshalBinary(weights); err != nil {
		l.log.Warn().Err(err).Msg("discarding stored model")
		return false, nil
	}

	if raw, ok, err := l.store.Load(ctx, KeyMetadata); err != nil {
		return true, err
	} else if ok {
		var meta Metadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			l.log.Warn().Err(err).Msg("bad training metadata")
		} else {
			l.mu.Lock()
			l.lastSave = meta.SaveTime
			l.mu.Unlock()
		}
	}

	raw, ok, err := l.store.Load(ctx, KeyExperiences)
	if err != nil {
		return true, err
	}
	if ok {
		var exps []Experience
		if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&exps); err != nil {
			l.log.Warn().Err(err).Msg("bad stored experiences")
		} else {
			for _, e := range exps {
				if len(e.State) != l.opts.Topology.Inputs || len(e.NextState) != l.opts.Topology.Inputs {
					continue
				}
				l.buf.Push(e)
			}
		}
	}
	l.log.Info().Int("experiences", l.buf.Len()).Msg("training state loaded")
	return true, nil
}

// Clear 删除存档并把网络和回放池恢复到初始状态
func (l *Learner) Clear(ctx context.Context) error {
	for _, k := range []string{KeyModel, KeyMetadata, KeyExperiences} {
		if err := l.store.Delete(ctx, k); err != nil {
			return err
		}
	}
	l.buf.Clear()
	l.net.Reinit()
	l.mu.Lock()
	l.sinceSave = 0
	l.recorded = 0
	l.batches = 0
	l.failures = 0
	l.lastLoss = 0
	l.lastSave = time.Time{}
	l.mu.Unlock()
	l.log.Info().Msg("training state cleared")
	return nil
}

// SeedFromBook 没有存档时，用开局库里的着法预先填一些经验
func (l *Learner) SeedFromBook() int {
	pos := xiangqi.NewInitialPosition()
	n := 0
	for ply := 0; ply < engine.BookPlies; ply++ {
		cands := engine.BookCandidates(pos, ply)
		if len(cands) == 0 {
			break
		}
		for _, c := range cands {
			after, ok := pos.ApplyMove(c.Move())
			if !ok {
				continue
			}
			l.buf.Push(Experience{
				State:     pos.FeatureVector(),
				Action:    c.Move(),
				Side:      pos.SideToMove,
				Reward:    ShapeReward(pos, c.Move(), pos.SideToMove, game.StatusPlaying),
				NextState: after.FeatureVector(),
			})
			n++
		}
		next, _ := pos.ApplyMove(cands[0].Move())
		pos = next
	}
	l.log.Info().Int("seeded", n).Msg("replay buffer seeded from opening book")
	return n
}
