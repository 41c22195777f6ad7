package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/meoying/querystack/internal/hook"
	"github.com/meoying/querystack/internal/session"
	"github.com/meoying/querystack/internal/stack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHook(t *testing.T) {
	testcases := []struct {
		name     string
		level    slog.Level
		frameErr error

		wantContains    []string
		wantNotContains []string
	}{
		{
			name:  "记录开始和结束",
			level: slog.LevelDebug,
			wantContains: []string{
				"帧开始", "帧结束", "SELECT 1",
			},
			wantNotContains: []string{"错误"},
		},
		{
			name:     "记录执行错误",
			level:    slog.LevelDebug,
			frameErr: errors.New("mock exec error"),
			wantContains: []string{
				"帧结束", "mock exec error",
			},
		},
		{
			name:            "级别不够不输出",
			level:           slog.LevelInfo,
			wantNotContains: []string{"帧开始", "帧结束"},
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			l := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: tc.level}))

			var begins, ends int
			next := hook.HandlerFuncs{
				BeginFunc: func(f *hook.Frame) error {
					begins++
					return nil
				},
				EndFunc: func(f *hook.Frame) error {
					ends++
					return nil
				},
			}
			hdl := New(WithLogger(l)).Join(next)

			s := session.New(stack.DefaultOptions())
			f := hook.NewFrame(context.Background(), "SELECT 1", s)
			require.NoError(t, hdl.Begin(f))
			f.Err = tc.frameErr
			require.NoError(t, hdl.End(f))

			// 不管是否输出日志，都要继续传递
			assert.Equal(t, 1, begins)
			assert.Equal(t, 1, ends)
			out := buf.String()
			for _, s := range tc.wantContains {
				assert.Contains(t, out, s)
			}
			for _, s := range tc.wantNotContains {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestHook_PropagatesError(t *testing.T) {
	wantErr := errors.New("mock begin error")
	next := hook.HandlerFuncs{
		BeginFunc: func(f *hook.Frame) error {
			return wantErr
		},
	}
	hdl := New(WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))).Join(next)
	f := hook.NewFrame(context.Background(), "SELECT 1", session.New(stack.DefaultOptions()))
	assert.Same(t, wantErr, hdl.Begin(f))
}
