package hook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/meoying/querystack/internal/errs"
	"github.com/meoying/querystack/internal/hook"
	hookmocks "github.com/meoying/querystack/internal/hook/mocks"
	"github.com/meoying/querystack/internal/session"
	"github.com/meoying/querystack/internal/stack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// recordHook 记录调用顺序
type recordHook struct {
	name  string
	calls *[]string
}

func (r *recordHook) Name() string {
	return r.name
}

func (r *recordHook) Join(next hook.Handler) hook.Handler {
	return hook.HandlerFuncs{
		BeginFunc: func(f *hook.Frame) error {
			*r.calls = append(*r.calls, r.name+".begin")
			return next.Begin(f)
		},
		EndFunc: func(f *hook.Frame) error {
			*r.calls = append(*r.calls, r.name+".end")
			return next.End(f)
		},
	}
}

func newFrame() *hook.Frame {
	return hook.NewFrame(context.Background(), "SELECT 1", session.New(stack.DefaultOptions()))
}

func TestChain_Order(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var calls []string
	terminal := hookmocks.NewMockHandler(ctrl)
	terminal.EXPECT().Begin(gomock.Any()).DoAndReturn(func(f *hook.Frame) error {
		calls = append(calls, "terminal.begin")
		return nil
	})
	terminal.EXPECT().End(gomock.Any()).DoAndReturn(func(f *hook.Frame) error {
		calls = append(calls, "terminal.end")
		return nil
	})

	c := hook.NewChain(terminal)
	require.NoError(t, c.Register(&recordHook{name: "a", calls: &calls}))
	require.NoError(t, c.Register(&recordHook{name: "b", calls: &calls}))
	assert.Equal(t, []string{"a", "b"}, c.Names())

	f := newFrame()
	require.NoError(t, c.Begin(f))
	require.NoError(t, c.End(f))
	assert.Equal(t, []string{
		"a.begin", "b.begin", "terminal.begin",
		"a.end", "b.end", "terminal.end",
	}, calls)
}

func TestChain_Duplicate(t *testing.T) {
	var calls []string
	c := hook.NewChain(nil)
	require.NoError(t, c.Register(&recordHook{name: "a", calls: &calls}))
	err := c.Register(&recordHook{name: "a", calls: &calls})
	assert.ErrorIs(t, err, errs.ErrDuplicateHook)
	assert.ErrorIs(t, c.Deregister("x"), errs.ErrHookNotFound)
}

func TestChain_DeregisterRestores(t *testing.T) {
	var calls []string
	c := hook.NewChain(nil)
	require.NoError(t, c.Register(&recordHook{name: "a", calls: &calls}))
	require.NoError(t, c.Register(&recordHook{name: "b", calls: &calls}))
	require.NoError(t, c.Register(&recordHook{name: "c", calls: &calls}))
	require.NoError(t, c.Deregister("c"))
	require.NoError(t, c.Deregister("b"))

	f := newFrame()
	require.NoError(t, c.Begin(f))
	require.NoError(t, c.End(f))
	assert.Equal(t, []string{"a.begin", "a.end"}, calls)

	require.NoError(t, c.Deregister("a"))
	assert.Equal(t, hook.Nop, c.Handler())
}

func TestChain_ErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	wantErr := errors.New("mock begin error")
	terminal := hookmocks.NewMockHandler(ctrl)
	terminal.EXPECT().Begin(gomock.Any()).Return(wantErr)

	var calls []string
	c := hook.NewChain(terminal)
	require.NoError(t, c.Register(&recordHook{name: "a", calls: &calls}))
	err := c.Begin(newFrame())
	assert.Same(t, wantErr, err)
}

func TestFrame_Marks(t *testing.T) {
	f := newFrame()
	_, ok := f.Unmark("k")
	assert.False(t, ok)
	f.Mark("k", 3)
	seq, ok := f.Unmark("k")
	assert.True(t, ok)
	assert.Equal(t, uint64(3), seq)
	_, ok = f.Unmark("k")
	assert.False(t, ok)
}

func TestFrame_Secondary(t *testing.T) {
	f := newFrame()
	assert.False(t, f.Secondary())
	f.Ctx = session.WithSecondaryContext(f.Ctx)
	assert.True(t, f.Secondary())

	f2 := hook.NewFrame(context.Background(), "SELECT 1",
		session.New(stack.DefaultOptions(), session.WithSecondary(true)))
	assert.True(t, f2.Secondary())
}

type countListener struct {
	tx    []hook.TxEvent
	subTx []string
}

func (c *countListener) OnTxEnd(s *session.Session, ev hook.TxEvent) {
	c.tx = append(c.tx, ev)
}

func (c *countListener) OnSubTx(s *session.Session, ev hook.SubTxEvent, name string) {
	c.subTx = append(c.subTx, ev.String()+":"+name)
}

func TestBus(t *testing.T) {
	b := hook.NewBus()
	l1, l2 := &countListener{}, &countListener{}
	unsub1 := b.Subscribe(l1)
	_ = b.Subscribe(l2)
	s := session.New(stack.DefaultOptions())

	b.TxEnded(s, hook.TxCommit)
	b.SubTx(s, hook.SubTxBegin, "sp")
	unsub1()
	unsub1()
	b.TxEnded(s, hook.TxAbort)

	assert.Equal(t, []hook.TxEvent{hook.TxCommit}, l1.tx)
	assert.Equal(t, []string{"begin:sp"}, l1.subTx)
	assert.Equal(t, []hook.TxEvent{hook.TxCommit, hook.TxAbort}, l2.tx)
}
