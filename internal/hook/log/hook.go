package log

import (
	"context"
	"log/slog"

	"github.com/meoying/querystack/internal/hook"
)

const Name = "log"

var _ hook.Hook = &Hook{}

// Hook 在 debug 级别记录每一个帧的开始和结束，不会影响帧的执行
type Hook struct {
	logger *slog.Logger
	level  slog.Level
}

type Option func(h *Hook)

func WithLogger(l *slog.Logger) Option {
	return func(h *Hook) {
		h.logger = l
	}
}

// WithLevel 日志级别，默认是 debug
func WithLevel(level slog.Level) Option {
	return func(h *Hook) {
		h.level = level
	}
}

func New(opts ...Option) *Hook {
	h := &Hook{
		logger: slog.Default(),
		level:  slog.LevelDebug,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hook) Name() string {
	return Name
}

func (h *Hook) Join(next hook.Handler) hook.Handler {
	return hook.HandlerFuncs{
		BeginFunc: func(f *hook.Frame) error {
			h.log(f, "帧开始", slog.String("语句", f.Text))
			return next.Begin(f)
		},
		EndFunc: func(f *hook.Frame) error {
			if f.Err != nil {
				h.log(f, "帧结束", slog.String("语句", f.Text), slog.Any("错误", f.Err))
			} else {
				h.log(f, "帧结束", slog.String("语句", f.Text))
			}
			return next.End(f)
		},
	}
}

func (h *Hook) log(f *hook.Frame, msg string, attrs ...slog.Attr) {
	ctx := f.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if !h.logger.Enabled(ctx, h.level) {
		return
	}
	attrs = append(attrs, slog.String("会话", f.Session.ID()))
	h.logger.LogAttrs(ctx, h.level, msg, attrs...)
}
