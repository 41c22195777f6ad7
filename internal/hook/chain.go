package hook

import (
	"fmt"
	"sync"

	"github.com/meoying/querystack/internal/errs"
)

// Chain 是一条有序的观察者链
// 先注册的先执行，每一个观察者负责调用下一个，最后一个调用的是宿主的默认处理。
// 注册和注销是对称的：注销之后，链条和注册之前完全一样。
type Chain struct {
	mu       sync.RWMutex
	hooks    []Hook
	terminal Handler
	head     Handler
}

func NewChain(terminal Handler) *Chain {
	if terminal == nil {
		terminal = Nop
	}
	return &Chain{
		terminal: terminal,
		head:     terminal,
	}
}

func (c *Chain) Register(h Hook) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, hk := range c.hooks {
		if hk.Name() == h.Name() {
			return fmt.Errorf("%w: %s", errs.ErrDuplicateHook, h.Name())
		}
	}
	c.hooks = append(c.hooks, h)
	c.rebuild()
	return nil
}

func (c *Chain) Deregister(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, hk := range c.hooks {
		if hk.Name() == name {
			c.hooks = append(c.hooks[:i], c.hooks[i+1:]...)
			c.rebuild()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", errs.ErrHookNotFound, name)
}

func (c *Chain) rebuild() {
	hdl := c.terminal
	for i := len(c.hooks) - 1; i >= 0; i-- {
		hdl = c.hooks[i].Join(hdl)
	}
	c.head = hdl
}

// Names 按照执行顺序返回所有观察者的名字
func (c *Chain) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := make([]string, 0, len(c.hooks))
	for _, hk := range c.hooks {
		res = append(res, hk.Name())
	}
	return res
}

// Handler 返回当前链条的入口
// 同一个帧的开始和结束应该使用同一个入口
func (c *Chain) Handler() Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.head
}

func (c *Chain) Begin(f *Frame) error {
	return c.Handler().Begin(f)
}

func (c *Chain) End(f *Frame) error {
	return c.Handler().End(f)
}
