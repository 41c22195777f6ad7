package session

import (
	"context"
	"testing"

	"github.com/meoying/querystack/internal/errs"
	"github.com/meoying/querystack/internal/stack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Defaults(t *testing.T) {
	s := New(stack.DefaultOptions())
	assert.NotEmpty(t, s.ID())
	assert.True(t, s.Enabled())
	assert.False(t, s.Secondary())
	assert.Equal(t, 0, s.Stack().Depth())

	s2 := New(stack.DefaultOptions(), WithEnabled(false), WithSecondary(true))
	assert.NotEqual(t, s.ID(), s2.ID())
	assert.False(t, s2.Enabled())
	assert.True(t, s2.Secondary())
}

func TestSession_Savepoints(t *testing.T) {
	testcases := []struct {
		name  string
		find  string
		keep  bool
		found bool

		wantDepth int
		wantLeft  []string
	}{
		{
			name:      "回滚到保存点会保留保存点本身",
			find:      "b",
			keep:      true,
			found:     true,
			wantDepth: 2,
			wantLeft:  []string{"a", "b"},
		},
		{
			name:      "释放保存点会一起丢弃",
			find:      "b",
			found:     true,
			wantDepth: 2,
			wantLeft:  []string{"a"},
		},
		{
			name:      "同名保存点以最近的为准",
			find:      "a",
			keep:      true,
			found:     true,
			wantDepth: 3,
			wantLeft:  []string{"a", "b", "a"},
		},
		{
			name:     "不存在的保存点",
			find:     "x",
			wantLeft: []string{"a", "b", "a"},
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(stack.DefaultOptions())
			s.AddSavepoint("a", 1)
			s.AddSavepoint("b", 2)
			s.AddSavepoint("a", 3)
			sp, ok := s.FindSavepoint(tc.find, tc.keep)
			require.Equal(t, tc.found, ok)
			assert.Equal(t, tc.wantDepth, sp.Depth)
			var names []string
			for _, p := range s.Savepoints() {
				names = append(names, p.Name)
			}
			assert.Equal(t, tc.wantLeft, names)
		})
	}
}

func TestSession_Close(t *testing.T) {
	s := New(stack.DefaultOptions())
	_, _ = s.Stack().Push("SELECT 1")
	s.AddSavepoint("a", 1)
	require.NoError(t, s.Close())
	assert.Equal(t, 0, s.Stack().Depth())
	assert.Empty(t, s.Savepoints())
	assert.ErrorIs(t, s.Close(), errs.ErrSessionClosed)
}

func TestSession_WarnOnce(t *testing.T) {
	s := New(stack.DefaultOptions())
	assert.True(t, s.WarnOnce())
	assert.False(t, s.WarnOnce())
}

func TestSecondaryContext(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsSecondary(ctx))
	assert.True(t, IsSecondary(WithSecondaryContext(ctx)))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	s1 := New(stack.DefaultOptions())
	s2 := New(stack.DefaultOptions())
	r.Add(s1)
	r.Add(s2)
	r.Add(s1)
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get(s1.ID())
	require.True(t, ok)
	assert.Same(t, s1, got)

	r.Remove(s1)
	r.Remove(s1)
	assert.Equal(t, 1, r.Len())

	var ids []string
	r.Range(func(s *Session) bool {
		ids = append(ids, s.ID())
		return true
	})
	assert.Equal(t, []string{s2.ID()}, ids)
}
