package session

import (
	"context"
	"log/slog"

	"github.com/meoying/querystack/internal/errs"
	"github.com/meoying/querystack/internal/stack"
	"github.com/rs/xid"
)

// Session 代表一个会话，也就是一个底层连接。
// 帧栈、开关和保存点都挂在 Session 上，会话之间完全隔离。
// Session 不是线程安全的，database/sql 保证了同一个连接同一时刻只会被一个 goroutine 使用。
type Session struct {
	id        string
	stack     *stack.Stack
	enabled   bool
	secondary bool
	logger    *slog.Logger

	savepoints []Savepoint
	// warned 超出容量的告警只打一次
	warned bool
	closed bool
}

// Savepoint 记录了创建保存点那一刻的栈深度
type Savepoint struct {
	Name  string
	Depth int
}

type Option func(s *Session)

func WithEnabled(enabled bool) Option {
	return func(s *Session) {
		s.enabled = enabled
	}
}

// WithSecondary 标记为辅助会话，辅助会话里面的帧不会被追踪
func WithSecondary(secondary bool) Option {
	return func(s *Session) {
		s.secondary = secondary
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

func New(opts stack.Options, options ...Option) *Session {
	s := &Session{
		id:      xid.New().String(),
		stack:   stack.New(opts),
		enabled: true,
		logger:  slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id)
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Stack() *stack.Stack {
	return s.stack
}

func (s *Session) Enabled() bool {
	return s.enabled
}

// SetEnabled 只影响之后开始的帧
func (s *Session) SetEnabled(enabled bool) {
	s.enabled = enabled
}

func (s *Session) Secondary() bool {
	return s.secondary
}

func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// AddSavepoint 记录保存点，同名的保存点以最近创建的为准
func (s *Session) AddSavepoint(name string, depth int) {
	s.savepoints = append(s.savepoints, Savepoint{Name: name, Depth: depth})
}

// FindSavepoint 找到最近一个同名的保存点，并且丢弃在它之后创建的保存点
// keep 表示是否保留这个保存点本身，ROLLBACK TO 会保留，RELEASE 不会
func (s *Session) FindSavepoint(name string, keep bool) (Savepoint, bool) {
	for i := len(s.savepoints) - 1; i >= 0; i-- {
		if s.savepoints[i].Name != name {
			continue
		}
		sp := s.savepoints[i]
		if keep {
			i++
		}
		clear(s.savepoints[i:])
		s.savepoints = s.savepoints[:i]
		return sp, true
	}
	return Savepoint{}, false
}

func (s *Session) ClearSavepoints() {
	s.savepoints = nil
}

func (s *Session) Savepoints() []Savepoint {
	res := make([]Savepoint, len(s.savepoints))
	copy(res, s.savepoints)
	return res
}

// WarnOnce 返回 true 表示这是第一次告警
func (s *Session) WarnOnce() bool {
	if s.warned {
		return false
	}
	s.warned = true
	return true
}

// Close 结束会话，释放栈上的所有帧
// 只能由会话所属的连接调用，重复关闭返回 errs.ErrSessionClosed
func (s *Session) Close() error {
	if s.closed {
		return errs.ErrSessionClosed
	}
	s.closed = true
	s.stack.Reset()
	s.savepoints = nil
	return nil
}

type secondaryKey struct{}

// WithSecondaryContext 标记当前上下文来自辅助 worker
// 用这个上下文打开的连接、执行的语句都不会被追踪
func WithSecondaryContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, secondaryKey{}, true)
}

func IsSecondary(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(secondaryKey{}).(bool)
	return v
}
