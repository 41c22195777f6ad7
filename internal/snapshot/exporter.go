package snapshot

import (
	"github.com/ecodeclub/ekit/slice"
	"github.com/meoying/querystack/internal/stack"
)

const (
	// DefaultSkip 默认跳过调用 stack_snapshot 本身的那一帧
	DefaultSkip = 1
	Placeholder = "<unnamed query>"

	ColumnFrameNumber = "frame_number"
	ColumnFrameText   = "frame_text"
)

var Columns = []string{ColumnFrameNumber, ColumnFrameText}

// Row 快照里面的一行
type Row struct {
	FrameNumber int32
	FrameText   string
}

type state int

const (
	stateUninitialized state = iota
	stateIterating
	stateDone
)

// Exporter 导出帧栈的快照
// 第一次调用 Next 的时候复制栈的前缀，之后按顺序逐行返回，返回完毕之后释放快照。
// 一个 Exporter 只能遍历一次，不能在多次调用之间共享。
type Exporter struct {
	st    *stack.Stack
	skip  int
	state state

	snap  []string
	idx   int
	total int
}

func NewExporter(st *stack.Stack, skip int) *Exporter {
	return &Exporter{st: st, skip: skip}
}

func (e *Exporter) init() {
	skip := max(0, min(e.skip, e.st.Cap()))
	effective := max(0, e.st.Depth()-skip)
	// 复制一份，之后栈怎么变化都不会影响正在进行的导出
	e.snap = slice.Map(e.st.Entries(effective), func(idx int, src stack.Entry) string {
		return src.Text()
	})
	e.total = len(e.snap)
	e.state = stateIterating
}

// Next 返回下一行，没有更多的行时返回 false
func (e *Exporter) Next() (Row, bool) {
	switch e.state {
	case stateUninitialized:
		e.init()
	case stateDone:
		return Row{}, false
	}
	if e.idx >= e.total {
		e.Close()
		return Row{}, false
	}
	text := e.snap[e.idx]
	if text == "" {
		text = Placeholder
	}
	row := Row{FrameNumber: int32(e.idx), FrameText: text}
	e.idx++
	return row, true
}

// Len 总行数，在第一次调用 Next 之前是 0
func (e *Exporter) Len() int {
	return e.total
}

// Close 释放快照，可以重复调用
func (e *Exporter) Close() {
	e.snap = nil
	e.state = stateDone
}

// Collect 一次性取出所有的行
func (e *Exporter) Collect() []Row {
	var rows []Row
	for {
		row, ok := e.Next()
		if !ok {
			return rows
		}
		rows = append(rows, row)
	}
}
