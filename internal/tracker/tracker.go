package tracker

import (
	"sync"

	"github.com/meoying/querystack/internal/errs"
	"github.com/meoying/querystack/internal/hook"
	"github.com/meoying/querystack/internal/session"
)

const Name = "querystack"

var _ hook.Hook = &Tracker{}
var _ hook.TxListener = &Tracker{}

// Tracker 维护每个会话的帧栈
// 它作为 Hook 加入处理链条，在帧开始的时候入栈，结束的时候出栈；
// 同时作为 TxListener 在事务边界清理没有成对出现的帧。
type Tracker struct {
	registry *session.Registry

	mu          sync.Mutex
	chain       *hook.Chain
	unsubscribe func()
}

func New(registry *session.Registry) *Tracker {
	if registry == nil {
		registry = session.NewRegistry()
	}
	return &Tracker{registry: registry}
}

func (t *Tracker) Name() string {
	return Name
}

func (t *Tracker) Join(next hook.Handler) hook.Handler {
	return &interceptor{key: t, next: next}
}

// Install 加入处理链条并且订阅事务事件，只能安装一次
func (t *Tracker) Install(chain *hook.Chain, bus *hook.Bus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.chain != nil {
		return errs.ErrAlreadyInstalled
	}
	if err := chain.Register(t); err != nil {
		return err
	}
	t.chain = chain
	t.unsubscribe = bus.Subscribe(t)
	return nil
}

// Uninstall 恢复安装之前的链条，并且清理所有会话里面残留的帧
// 调用的时候不应该有会话正在执行语句
func (t *Tracker) Uninstall() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.chain == nil {
		return errs.ErrNotInstalled
	}
	err := t.chain.Deregister(t.Name())
	t.unsubscribe()
	t.chain, t.unsubscribe = nil, nil

	t.registry.Range(func(s *session.Session) bool {
		if depth := s.Stack().Depth(); depth > 0 {
			s.Logger().Debug("卸载追踪器，清理残留的帧", "深度", depth)
		}
		s.Stack().Reset()
		s.ClearSavepoints()
		return true
	})
	return err
}

type interceptor struct {
	// key 用于在 Frame 上标记本追踪器压入的帧
	key  any
	next hook.Handler
}

func (i *interceptor) Begin(f *hook.Frame) (err error) {
	s := f.Session
	if !s.Enabled() || f.Secondary() {
		return i.next.Begin(f)
	}
	st := s.Stack()
	seq, ok := st.Push(f.Text)
	if !ok {
		if s.WarnOnce() {
			s.Logger().Warn("帧栈已满，后续的帧不再记录", "容量", st.Cap())
		}
		return i.next.Begin(f)
	}
	f.Mark(i.key, seq)
	defer func() {
		if r := recover(); r != nil {
			i.compensate(f)
			panic(r)
		}
		if err != nil {
			i.compensate(f)
		}
	}()
	return i.next.Begin(f)
}

func (i *interceptor) End(f *hook.Frame) (err error) {
	// 开始的时候入栈了，结束的时候就一定要出栈，不管开关现在是什么状态
	seq, ok := f.Unmark(i.key)
	if !ok {
		return i.next.End(f)
	}
	defer func() {
		f.Session.Stack().Remove(seq)
		if err != nil {
			f.Session.Logger().Warn("帧结束失败，已出栈", "语句", f.Text, "错误", err)
		}
	}()
	return i.next.End(f)
}

// compensate 委托失败，当前帧不会再有结束通知了，在这里出栈
func (i *interceptor) compensate(f *hook.Frame) {
	seq, ok := f.Unmark(i.key)
	if !ok {
		return
	}
	f.Session.Stack().Remove(seq)
	f.Session.Logger().Warn("帧开始失败，已出栈", "语句", f.Text)
}
