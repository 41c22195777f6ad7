package hook

import (
	"sync"

	"github.com/meoying/querystack/internal/session"
)

// TxEvent 事务结束的方式
type TxEvent int

const (
	TxCommit TxEvent = iota
	TxAbort
)

func (e TxEvent) String() string {
	switch e {
	case TxCommit:
		return "commit"
	case TxAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// SubTxEvent 子事务（保存点）事件
type SubTxEvent int

const (
	// SubTxBegin SAVEPOINT
	SubTxBegin SubTxEvent = iota
	// SubTxCommit RELEASE SAVEPOINT
	SubTxCommit
	// SubTxAbort ROLLBACK TO SAVEPOINT
	SubTxAbort
)

func (e SubTxEvent) String() string {
	switch e {
	case SubTxBegin:
		return "begin"
	case SubTxCommit:
		return "commit"
	case SubTxAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// TxListener 监听事务边界
// 它和 Handler 链条是相互独立的，开始、结束通知没有成对出现的时候，依赖它来兜底
type TxListener interface {
	OnTxEnd(s *session.Session, ev TxEvent)
	OnSubTx(s *session.Session, ev SubTxEvent, name string)
}

// Bus 按照订阅的顺序把事务事件分发给所有的监听者
type Bus struct {
	mu        sync.RWMutex
	listeners []*subscription
}

type subscription struct {
	l TxListener
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe 返回的函数用于取消订阅，重复调用没有副作用
func (b *Bus) Subscribe(l TxListener) func() {
	sub := &subscription{l: l}
	b.mu.Lock()
	b.listeners = append(b.listeners, sub)
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.listeners {
				if s == sub {
					b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *Bus) snapshot() []*subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.listeners
}

func (b *Bus) TxEnded(s *session.Session, ev TxEvent) {
	for _, sub := range b.snapshot() {
		sub.l.OnTxEnd(s, ev)
	}
}

func (b *Bus) SubTx(s *session.Session, ev SubTxEvent, name string) {
	for _, sub := range b.snapshot() {
		sub.l.OnSubTx(s, ev, name)
	}
}
