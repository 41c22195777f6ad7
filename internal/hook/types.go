//go:generate mockgen -source=./types.go -destination=mocks/handler.mock.go -package=hookmocks Handler
package hook

import (
	"context"

	"github.com/meoying/querystack/internal/session"
)

// Frame 代表一次帧开始或者结束的通知
// 同一个帧的开始和结束通知使用的是同一个 Frame 对象
type Frame struct {
	Ctx     context.Context
	Text    string
	Session *session.Session
	// Err 宿主执行语句时遇到的错误，只用于观察
	Err error

	marks map[any]uint64
}

func NewFrame(ctx context.Context, text string, s *session.Session) *Frame {
	return &Frame{Ctx: ctx, Text: text, Session: s}
}

// Secondary 辅助 worker 里面的帧不参与追踪
func (f *Frame) Secondary() bool {
	return f.Session.Secondary() || session.IsSecondary(f.Ctx)
}

// Mark 观察者记录自己在开始的时候对这个帧做了什么
func (f *Frame) Mark(key any, seq uint64) {
	if f.marks == nil {
		f.marks = make(map[any]uint64, 1)
	}
	f.marks[key] = seq
}

// Unmark 取出并删除标记，保证一个标记只会被消费一次
func (f *Frame) Unmark(key any) (uint64, bool) {
	seq, ok := f.marks[key]
	if ok {
		delete(f.marks, key)
	}
	return seq, ok
}

// Handler 处理帧的开始和结束
// 每一个实现都必须把通知继续传递给下一个 Handler，不管成功还是失败
type Handler interface {
	Begin(f *Frame) error
	End(f *Frame) error
}

// Hook 代表一个观察者
type Hook interface {
	// Name 名字，同一条链上不能重复
	Name() string
	// Join 加入处理链条。你需要返回你当前处理步骤
	Join(next Handler) Handler
}

// HandlerFuncs 用两个方法拼出一个 Handler，nil 表示什么也不做
type HandlerFuncs struct {
	BeginFunc func(f *Frame) error
	EndFunc   func(f *Frame) error
}

func (h HandlerFuncs) Begin(f *Frame) error {
	if h.BeginFunc == nil {
		return nil
	}
	return h.BeginFunc(f)
}

func (h HandlerFuncs) End(f *Frame) error {
	if h.EndFunc == nil {
		return nil
	}
	return h.EndFunc(f)
}

// Nop 什么也不做的 Handler，一般作为链条的末端
var Nop Handler = HandlerFuncs{}
