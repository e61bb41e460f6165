package learn

import (
	"sync"

	"lukechampine.com/frand"

	"xiangqi/internal/xiangqi"
)

// Experience 一步棋的训练样本。State/NextState 是 90 维特征，Reward 是行棋方视角
type Experience struct {
	State     []float64
	Action    xiangqi.Move
	Side      xiangqi.Side
	Reward    float64
	NextState []float64
	Terminal  bool
}

// Buffer 固定容量的环形回放池，满了挤掉最旧的。
// 每条经验有一个递增序号，对局结束回填奖励时按序号找回（可能已被挤掉）。
type Buffer struct {
	mu    sync.Mutex
	items []Experience
	start int
	size  int
	next  uint64 // 下一条经验的序号
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{items: make([]Experience, capacity)}
}

func (b *Buffer) Cap() int { return len(b.items) }

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Push 追加一条经验，返回它的序号
func (b *Buffer) Push(e Experience) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == len(b.items) {
		b.items[b.start] = e
		b.start = (b.start + 1) % len(b.items)
	} else {
		b.items[(b.start+b.size)%len(b.items)] = e
		b.size++
	}
	seq := b.next
	b.next++
	return seq
}

// slot 序号对应的位置；已被挤掉或还不存在返回 false
func (b *Buffer) slot(seq uint64) (int, bool) {
	oldest := b.next - uint64(b.size)
	if seq < oldest || seq >= b.next {
		return 0, false
	}
	return (b.start + int(seq-oldest)) % len(b.items), true
}

// AddReward 给序号 seq 的经验加奖励
func (b *Buffer) AddReward(seq uint64, delta float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.slot(seq)
	if !ok {
		return false
	}
	b.items[i].Reward += delta
	return true
}

func (b *Buffer) Get(seq uint64) (Experience, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.slot(seq)
	if !ok {
		return Experience{}, false
	}
	return b.items[i], true
}

// Oldest 第 i 旧的经验，0 是最旧
func (b *Buffer) Oldest(i int) Experience {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items[(b.start+i)%len(b.items)]
}

// Sample 有放回均匀抽样 n 条
func (b *Buffer) Sample(n int) []Experience {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == 0 || n <= 0 {
		return nil
	}
	out := make([]Experience, n)
	for i := range out {
		out[i] = b.items[(b.start+frand.Intn(b.size))%len(b.items)]
	}
	return out
}

// Tail 最新的 n 条，按从旧到新排列
func (b *Buffer) Tail(n int) []Experience {
	b.mu.Lock()
	defer b.mu.Unlock()
	n = min(n, b.size)
	out := make([]Experience, 0, n)
	for i := b.size - n; i < b.size; i++ {
		out = append(out, b.items[(b.start+i)%len(b.items)])
	}
	return out
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.items)
	b.start = 0
	b.size = 0
}
