package engine

import (
	"fmt"
	"strings"
	"time"
)

type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
	Expert
)

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	case Expert:
		return "expert"
	}
	return fmt.Sprintf("difficulty(%d)", int(d))
}

func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return Easy, nil
	case "medium", "":
		return Medium, nil
	case "hard":
		return Hard, nil
	case "expert":
		return Expert, nil
	}
	return Medium, fmt.Errorf("unknown difficulty %q", s)
}

func (d Difficulty) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Difficulty) UnmarshalText(b []byte) error {
	v, err := ParseDifficulty(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Tier 每个难度的搜索参数
type Tier struct {
	Depth      int           // 搜索深度
	RootMoves  int           // 根节点最多搜几个着法，0 表示全部
	RootTime   time.Duration // 根节点时间预算
	NodeTime   time.Duration // 树内时间预算，超时回退静态评估
	RandomProb float64       // 直接随机走子的概率
}

var tiers = map[Difficulty]Tier{
	Easy:   {Depth: 2, RootMoves: 20, RootTime: 8 * time.Second, NodeTime: 10 * time.Second, RandomProb: 0.25},
	Medium: {Depth: 4, RootMoves: 20, RootTime: 8 * time.Second, NodeTime: 10 * time.Second},
	Hard:   {Depth: 5, RootMoves: 30, RootTime: 8 * time.Second, NodeTime: 10 * time.Second},
	Expert: {Depth: 7, RootMoves: 0, RootTime: 12 * time.Second, NodeTime: 15 * time.Second},
}

func (d Difficulty) Tier() Tier {
	if t, ok := tiers[d]; ok {
		return t
	}
	return tiers[Medium]
}

// ConfigFor 按难度生成完整的选着配置；ply 为当前对局已走步数
func ConfigFor(d Difficulty, ply int) SearchConfig {
	t := d.Tier()
	return SearchConfig{
		MaxDepth:      t.Depth,
		RootMoves:     t.RootMoves,
		TimeLimit:     t.RootTime,
		NodeTimeLimit: t.NodeTime,
		RandomProb:    t.RandomProb,
		Ply:           ply,
		UseBook:       true,
		UseTactics:    true,
	}
}
