package session

import (
	"sync/atomic"

	"github.com/ecodeclub/ekit/syncx"
)

// Registry 记录所有存活的会话
// 会话之间互不可见，Registry 只用于卸载追踪器时清理残留的帧。
// 会话由所属的连接自己关闭，Registry 不会关闭还在使用的会话。
type Registry struct {
	sessions syncx.Map[string, *Session]
	cnt      atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Add(s *Session) {
	if _, loaded := r.sessions.LoadOrStore(s.ID(), s); !loaded {
		r.cnt.Add(1)
	}
}

func (r *Registry) Remove(s *Session) {
	if _, ok := r.sessions.LoadAndDelete(s.ID()); ok {
		r.cnt.Add(-1)
	}
}

func (r *Registry) Get(id string) (*Session, bool) {
	return r.sessions.Load(id)
}

func (r *Registry) Range(fn func(s *Session) bool) {
	r.sessions.Range(func(_ string, s *Session) bool {
		return fn(s)
	})
}

func (r *Registry) Len() int {
	return int(r.cnt.Load())
}
