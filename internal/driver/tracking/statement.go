package tracking

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ecodeclub/ekit/slice"
	"github.com/meoying/querystack/internal/errs"
	"github.com/meoying/querystack/internal/snapshot"
)

type kind int

const (
	// kindQuery 普通语句，一次执行就是一个帧
	kindQuery kind = iota
	// kindSnapshot stack_snapshot 查询，由导出器应答，本身也是一个帧
	kindSnapshot
	kindSetEnabled
	kindShowEnabled

	// 下面是事务控制语句，转发给底层驱动，成功之后通知追踪器，不算帧
	kindBegin
	kindCommit
	kindRollback
	kindSavepoint
	kindRelease
	kindRollbackTo
)

func (k kind) isTxControl() bool {
	return k >= kindBegin
}

// isControl 完全由本驱动处理，不会转发给底层驱动
func (k kind) isControl() bool {
	return k == kindSnapshot || k == kindSetEnabled || k == kindShowEnabled
}

const (
	identifier = "[`\"']?([A-Za-z_][A-Za-z0-9_]*)[`\"']?"
	// frameNumber 允许带上表的别名，例如 s.frame_number
	frameNumber = `(?:[a-z_]\w*\.)?frame_number`
	predicate   = frameNumber + `\s*(?:<=|>=|<>|!=|=|<|>)\s*[+-]?\d+`
)

var (
	// stack_snapshot 后面只支持 WHERE frame_number 比较、ORDER BY frame_number 和 LIMIT，
	// 其他写法，包括作为子查询，都原样转发给底层驱动
	snapshotPattern = regexp.MustCompile(`(?is)^\s*select\s+.+?\s+from\s+stack_snapshot\s*\(\s*(\?|[+-]?\d+|null)?\s*\)` +
		`(?:\s+(?:as\s+)?[a-z_]\w*)?` +
		`(?:\s+where\s+(` + predicate + `(?:\s+and\s+` + predicate + `)*))?` +
		`(?:\s+order\s+by\s+` + frameNumber + `(?:\s+(asc|desc))?)?` +
		`(?:\s+limit\s+(\d+))?\s*;?\s*$`)
	predicatePattern = regexp.MustCompile(`(?i)frame_number\s*(<=|>=|<>|!=|=|<|>)\s*([+-]?\d+)`)
	setPattern       = regexp.MustCompile(`(?i)^\s*set\s+(?:session\s+)?querystack\.enabled\s*(?:=|\s+to\s+)\s*'?(\w+)'?\s*;?\s*$`)
	showPattern      = regexp.MustCompile(`(?i)^\s*show\s+querystack\.enabled\s*;?\s*$`)

	beginPattern      = regexp.MustCompile(`(?i)^\s*(?:begin|start\s+transaction)\b`)
	commitPattern     = regexp.MustCompile(`(?i)^\s*commit\b`)
	rollbackToPattern = regexp.MustCompile(`(?i)^\s*rollback\s+(?:(?:transaction|work)\s+)?to\s+(?:savepoint\s+)?` + identifier)
	rollbackPattern   = regexp.MustCompile(`(?i)^\s*rollback\b`)
	savepointPattern  = regexp.MustCompile(`(?i)^\s*savepoint\s+` + identifier)
	releasePattern    = regexp.MustCompile(`(?i)^\s*release\s+(?:savepoint\s+)?` + identifier)

	txPatterns = []struct {
		kind    kind
		pattern *regexp.Regexp
	}{
		{kind: kindRollbackTo, pattern: rollbackToPattern},
		{kind: kindRollback, pattern: rollbackPattern},
		{kind: kindBegin, pattern: beginPattern},
		{kind: kindCommit, pattern: commitPattern},
		{kind: kindSavepoint, pattern: savepointPattern},
		{kind: kindRelease, pattern: releasePattern},
	}
)

// statement 分类之后的语句
type statement struct {
	kind kind
	text string
	// arg 保存点名字，开关的取值，或者 stack_snapshot 的参数
	arg    string
	clause clause
}

// clause stack_snapshot 后面的 WHERE、ORDER BY 和 LIMIT
type clause struct {
	preds    []condition
	desc     bool
	limit    int64
	hasLimit bool
}

// condition frame_number 和常量的比较
type condition struct {
	op  string
	val int64
}

func (c condition) match(n int64) bool {
	switch c.op {
	case "=":
		return n == c.val
	case "<>", "!=":
		return n != c.val
	case "<":
		return n < c.val
	case "<=":
		return n <= c.val
	case ">":
		return n > c.val
	default:
		return n >= c.val
	}
}

func (c clause) empty() bool {
	return len(c.preds) == 0 && !c.desc && !c.hasLimit
}

// apply 依次过滤、排序、截取，rows 会被原地修改
func (c clause) apply(rows []snapshot.Row) []snapshot.Row {
	if len(c.preds) > 0 {
		rows = slice.FindAll(rows, func(row snapshot.Row) bool {
			for _, p := range c.preds {
				if !p.match(int64(row.FrameNumber)) {
					return false
				}
			}
			return true
		})
	}
	if c.desc {
		slice.ReverseSelf(rows)
	}
	if c.hasLimit && int64(len(rows)) > c.limit {
		rows = rows[:c.limit]
	}
	return rows
}

func parseClause(where, order, limit string) clause {
	var c clause
	for _, m := range predicatePattern.FindAllStringSubmatch(where, -1) {
		c.preds = append(c.preds, condition{op: m[1], val: parseInt(m[2])})
	}
	c.desc = strings.EqualFold(order, "desc")
	if limit != "" {
		c.limit, c.hasLimit = parseInt(limit), true
	}
	return c
}

// parseInt 超出 int64 的数字取最大值或者最小值
func parseInt(str string) int64 {
	n, err := strconv.ParseInt(str, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(str, "-") {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return n
}

func classify(query string) statement {
	st := statement{kind: kindQuery, text: query}
	if m := snapshotPattern.FindStringSubmatch(query); m != nil {
		st.kind, st.arg = kindSnapshot, m[1]
		st.clause = parseClause(m[2], m[3], m[4])
		return st
	}
	if m := setPattern.FindStringSubmatch(query); m != nil {
		st.kind, st.arg = kindSetEnabled, m[1]
		return st
	}
	if showPattern.MatchString(query) {
		st.kind = kindShowEnabled
		return st
	}
	// 按顺序匹配，ROLLBACK TO 要在 ROLLBACK 之前判断
	for _, p := range txPatterns {
		if m := p.pattern.FindStringSubmatch(query); m != nil {
			st.kind = p.kind
			if len(m) > 1 {
				st.arg = m[1]
			}
			return st
		}
	}
	return st
}

// numInput stack_snapshot 带占位符的时候需要一个参数
func (st statement) numInput() int {
	if st.kind == kindSnapshot && st.arg == "?" {
		return 1
	}
	return 0
}

// skip 解析 stack_snapshot 的参数
// 缺省的时候使用默认值，NULL 等同于 0，也就是包含 stack_snapshot 自身
func (st statement) skip(args []driver.NamedValue) (int, error) {
	switch strings.ToLower(st.arg) {
	case "":
		return snapshot.DefaultSkip, nil
	case "null":
		return 0, nil
	case "?":
		if len(args) != 1 {
			return 0, fmt.Errorf("%w: stack_snapshot 需要 1 个参数，实际 %d 个", errs.ErrInvalidArgument, len(args))
		}
		return skipValue(args[0].Value)
	default:
		return skipValue(st.arg)
	}
}

func skipValue(v driver.Value) (int, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return clampInt(val), nil
	case float64:
		if val == math.Trunc(val) {
			return int(max(min(val, math.MaxInt32), math.MinInt32)), nil
		}
	case []byte:
		return skipValue(string(val))
	case string:
		str := strings.TrimSpace(val)
		// 超出 int64 的数字，导出的时候一样会被截断
		if _, err := strconv.ParseInt(str, 10, 64); err == nil || errors.Is(err, strconv.ErrRange) {
			return clampInt(parseInt(str)), nil
		}
	}
	return 0, fmt.Errorf("%w: stack_snapshot 的参数必须是整数，实际是 %v", errs.ErrInvalidArgument, v)
}

func clampInt(n int64) int {
	return int(max(min(n, math.MaxInt32), math.MinInt32))
}

// parseSwitch 解析开关的取值
func parseSwitch(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("%w: querystack.enabled 不接受 %q", errs.ErrInvalidArgument, v)
}
