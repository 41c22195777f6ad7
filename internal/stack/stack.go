package stack

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxDepth   = 64
	DefaultMaxTextLen = 1024
	DefaultMarker     = "...<truncated>"
)

// Options 栈的容量和文本长度上限
type Options struct {
	// MaxDepth 最多记录多少层帧，超过的部分直接不记录
	MaxDepth int
	// MaxTextLen 单个帧文本的最大字节数，超过就截断并追加 Marker
	MaxTextLen int
	Marker     string
}

func DefaultOptions() Options {
	return Options{
		MaxDepth:   DefaultMaxDepth,
		MaxTextLen: DefaultMaxTextLen,
		Marker:     DefaultMarker,
	}
}

// Entry 栈里面的一帧
type Entry struct {
	text      string
	truncated bool
	seq       uint64
}

func (e Entry) Text() string {
	return e.text
}

// Truncated 文本是否是截断后的副本
func (e Entry) Truncated() bool {
	return e.truncated
}

func (e Entry) Seq() uint64 {
	return e.seq
}

// Stack 代表一个会话里面正在执行的帧
// 下标 0 是最外层的帧，最后一个元素是最近开始、尚未结束的帧。
// Stack 不是线程安全的，它只会被所属会话的 goroutine 使用。
type Stack struct {
	opts    Options
	entries []Entry
	// nextSeq 用于给每一次 Push 分配唯一标识
	nextSeq uint64
	dropped uint64
}

func New(opts Options) *Stack {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxTextLen <= 0 {
		opts.MaxTextLen = DefaultMaxTextLen
	}
	return &Stack{
		opts:    opts,
		entries: make([]Entry, 0, min(opts.MaxDepth, 8)),
	}
}

// Push 记录一个新开始的帧
// 已经到达 MaxDepth 的时候不做任何修改，返回 false，调用方照常执行即可。
func (s *Stack) Push(text string) (uint64, bool) {
	if len(s.entries) >= s.opts.MaxDepth {
		s.dropped++
		return 0, false
	}
	s.nextSeq++
	e := Entry{text: text, seq: s.nextSeq}
	if len(text) > s.opts.MaxTextLen {
		e.text = s.truncate(text)
		e.truncated = true
	}
	s.entries = append(s.entries, e)
	return e.seq, true
}

func (s *Stack) truncate(text string) string {
	n := s.opts.MaxTextLen
	// 不要把一个多字节字符切成两半
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	var sb strings.Builder
	sb.Grow(n + len(s.opts.Marker))
	sb.WriteString(text[:n])
	sb.WriteString(s.opts.Marker)
	return sb.String()
}

// Pop 移除栈顶的帧，空栈的时候什么也不做
func (s *Stack) Pop() {
	if len(s.entries) == 0 {
		return
	}
	s.Truncate(len(s.entries) - 1)
}

// Remove 移除 seq 对应的帧，在它之上的帧保持不变
// 正常嵌套的情况下，它就是 Pop。同一个连接上的游标可以不按打开的顺序关闭，
// 所以外层的帧先结束的时候，内层的帧还留在栈上。
// 如果 seq 已经不在栈里面了（被 Reset 或者 Truncate 清理掉了），返回 false。
func (s *Stack) Remove(seq uint64) bool {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].seq == seq {
			last := len(s.entries) - 1
			copy(s.entries[i:], s.entries[i+1:])
			s.entries[last] = Entry{}
			s.entries = s.entries[:last]
			return true
		}
		if s.entries[i].seq < seq {
			break
		}
	}
	return false
}

// Truncate 只保留前 depth 个帧
func (s *Stack) Truncate(depth int) {
	if depth < 0 {
		depth = 0
	}
	if depth >= len(s.entries) {
		return
	}
	clear(s.entries[depth:])
	s.entries = s.entries[:depth]
}

// Reset 一次性清空整个栈
func (s *Stack) Reset() {
	s.Truncate(0)
}

func (s *Stack) Depth() int {
	return len(s.entries)
}

func (s *Stack) Cap() int {
	return s.opts.MaxDepth
}

// Dropped 因为超出容量而没有记录的帧的数量
func (s *Stack) Dropped() uint64 {
	return s.dropped
}

// Entries 返回 [0, n) 的帧的副本
func (s *Stack) Entries(n int) []Entry {
	n = max(0, min(n, len(s.entries)))
	res := make([]Entry, n)
	copy(res, s.entries[:n])
	return res
}
