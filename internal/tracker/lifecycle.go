package tracker

import (
	"github.com/meoying/querystack/internal/hook"
	"github.com/meoying/querystack/internal/session"
)

// OnTxEnd 事务提交或者回滚之后，不可能还有帧在执行，直接清空
// 这是开始、结束通知没有成对出现时的兜底手段
func (t *Tracker) OnTxEnd(s *session.Session, ev hook.TxEvent) {
	if depth := s.Stack().Depth(); depth > 0 {
		s.Logger().Debug("事务结束，清空帧栈", "事件", ev.String(), "深度", depth)
	}
	s.Stack().Reset()
	s.ClearSavepoints()
}

// OnSubTx 处理保存点
// 回滚到保存点的时候，只移除保存点之后入栈的帧；找不到保存点的时候退化为全部清空
func (t *Tracker) OnSubTx(s *session.Session, ev hook.SubTxEvent, name string) {
	switch ev {
	case hook.SubTxBegin:
		s.AddSavepoint(name, s.Stack().Depth())
	case hook.SubTxCommit:
		s.FindSavepoint(name, false)
	case hook.SubTxAbort:
		sp, ok := s.FindSavepoint(name, true)
		if !ok {
			s.Logger().Debug("未找到保存点，清空帧栈", "保存点", name)
			s.Stack().Reset()
			return
		}
		s.Stack().Truncate(sp.Depth)
	}
}
