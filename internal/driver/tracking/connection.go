package tracking

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/meoying/querystack/internal/errs"
	"github.com/meoying/querystack/internal/hook"
	"github.com/meoying/querystack/internal/session"
	"github.com/meoying/querystack/internal/snapshot"
)

var _ driver.Conn = &connWrapper{}
var _ driver.ExecerContext = &connWrapper{}
var _ driver.QueryerContext = &connWrapper{}
var _ driver.ConnPrepareContext = &connWrapper{}
var _ driver.ConnBeginTx = &connWrapper{}
var _ driver.SessionResetter = &connWrapper{}
var _ driver.Validator = &connWrapper{}
var _ driver.NamedValueChecker = &connWrapper{}
var _ driver.Pinger = &connWrapper{}

const enabledColumn = "querystack.enabled"

// connWrapper 一个底层连接，也就是一个会话
type connWrapper struct {
	conn      driver.Conn
	sess      *session.Session
	connector *Connector
}

func (c *connWrapper) Ping(ctx context.Context) error {
	if p, ok := c.conn.(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *connWrapper) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	st := classify(query)
	switch st.kind {
	case kindSetEnabled:
		return driver.RowsAffected(0), c.setEnabled(st)
	case kindShowEnabled, kindSnapshot:
		rows, err := c.queryControl(ctx, st, args)
		if err != nil {
			return nil, err
		}
		return driver.RowsAffected(0), rows.Close()
	}
	execer, ok := c.conn.(driver.ExecerContext)
	if !ok {
		// database/sql 会退化为 Prepare 再执行
		return nil, driver.ErrSkip
	}
	return c.exec(ctx, st, func() (driver.Result, error) {
		return execer.ExecContext(ctx, query, args)
	})
}

func (c *connWrapper) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	st := classify(query)
	if st.kind.isControl() {
		return c.queryControl(ctx, st, args)
	}
	queryer, ok := c.conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	return c.query(ctx, st, func() (driver.Rows, error) {
		return queryer.QueryContext(ctx, query, args)
	})
}

func (c *connWrapper) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	st := classify(query)
	if st.kind.isControl() {
		return &controlStmt{conn: c, st: st}, nil
	}
	var (
		stmt driver.Stmt
		err  error
	)
	if pc, ok := c.conn.(driver.ConnPrepareContext); ok {
		stmt, err = pc.PrepareContext(ctx, query)
	} else {
		stmt, err = c.conn.Prepare(query)
	}
	if err != nil {
		c.sess.Logger().Debug("预编译语句失败", "语句", query, "错误", err)
		return nil, err
	}
	return &stmtWrapper{stmt: stmt, conn: c, st: st}, nil
}

func (c *connWrapper) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *connWrapper) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	var (
		tx  driver.Tx
		err error
	)
	if bt, ok := c.conn.(driver.ConnBeginTx); ok {
		tx, err = bt.BeginTx(ctx, opts)
	} else {
		if opts.Isolation != driver.IsolationLevel(0) || opts.ReadOnly {
			return nil, fmt.Errorf("%w: 底层驱动不支持事务选项", errs.ErrUnsupported)
		}
		tx, err = c.conn.Begin()
	}
	if err != nil {
		c.sess.Logger().Error("开启事务失败", "错误", err)
		return nil, err
	}
	return &txWrapper{tx: tx, conn: c}, nil
}

// Begin starts and returns a new transaction.
//
// Deprecated: Drivers should implement ConnBeginTx instead (or additionally).
func (c *connWrapper) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// ResetSession 连接被放回连接池之后再次使用之前调用，清理残留的帧
func (c *connWrapper) ResetSession(ctx context.Context) error {
	c.drain("重置会话")
	if sr, ok := c.conn.(driver.SessionResetter); ok {
		return sr.ResetSession(ctx)
	}
	return nil
}

func (c *connWrapper) IsValid() bool {
	if v, ok := c.conn.(driver.Validator); ok {
		return v.IsValid()
	}
	return true
}

func (c *connWrapper) CheckNamedValue(value *driver.NamedValue) error {
	if checker, ok := c.conn.(driver.NamedValueChecker); ok {
		return checker.CheckNamedValue(value)
	}
	return driver.ErrSkip
}

func (c *connWrapper) Close() error {
	c.drain("关闭连接")
	c.connector.registry.Remove(c.sess)
	var err *multierror.Error
	err = multierror.Append(err, c.conn.Close(), c.sess.Close())
	return err.ErrorOrNil()
}

func (c *connWrapper) drain(reason string) {
	if depth := c.sess.Stack().Depth(); depth > 0 {
		c.sess.Logger().Debug("清理残留的帧", "原因", reason, "深度", depth)
	}
	c.sess.Stack().Reset()
	c.sess.ClearSavepoints()
}

// exec 普通语句是一个帧；事务控制语句执行成功之后通知追踪器
func (c *connWrapper) exec(ctx context.Context, st statement, fn func() (driver.Result, error)) (driver.Result, error) {
	if st.kind.isTxControl() {
		res, err := fn()
		if err == nil {
			c.notify(st)
		}
		return res, err
	}
	f, err := c.begin(ctx, st.text)
	if err != nil {
		return nil, err
	}
	res, err := fn()
	endErr := c.end(f, err)
	if err != nil {
		return nil, err
	}
	if endErr != nil {
		return nil, endErr
	}
	return res, nil
}

// query 和 exec 类似，不过帧要等到结果集关闭的时候才结束
func (c *connWrapper) query(ctx context.Context, st statement, fn func() (driver.Rows, error)) (driver.Rows, error) {
	if st.kind.isTxControl() {
		rows, err := fn()
		if err == nil {
			c.notify(st)
		}
		return rows, err
	}
	f, err := c.begin(ctx, st.text)
	if err != nil {
		return nil, err
	}
	rows, err := fn()
	if err != nil {
		_ = c.end(f, err)
		return nil, err
	}
	return &rowsWrapper{rows: rows, onClose: func(err error) error {
		return c.end(f, err)
	}}, nil
}

// queryControl 应答 stack_snapshot 和 SHOW/SET querystack.enabled，不会发给底层驱动
func (c *connWrapper) queryControl(ctx context.Context, st statement, args []driver.NamedValue) (driver.Rows, error) {
	switch st.kind {
	case kindSetEnabled:
		if err := c.setEnabled(st); err != nil {
			return nil, err
		}
		return &valueRows{}, nil
	case kindShowEnabled:
		val := "off"
		if c.sess.Enabled() {
			val = "on"
		}
		return &valueRows{columns: []string{enabledColumn}, values: [][]driver.Value{{val}}}, nil
	}

	skip, err := st.skip(args)
	if err != nil {
		return nil, err
	}
	f, err := c.begin(ctx, st.text)
	if err != nil {
		return nil, err
	}
	// 导出器在读取第一行的时候才复制栈，此时 stack_snapshot 自己的帧已经在栈顶了
	return &snapshotRows{
		exporter: snapshot.NewExporter(c.sess.Stack(), skip),
		clause:   st.clause,
		onClose: func() error {
			return c.end(f, nil)
		},
	}, nil
}

func (c *connWrapper) setEnabled(st statement) error {
	enabled, err := parseSwitch(st.arg)
	if err != nil {
		return err
	}
	c.sess.SetEnabled(enabled)
	c.sess.Logger().Debug("设置帧栈追踪开关", "开启", enabled)
	return nil
}

func (c *connWrapper) begin(ctx context.Context, text string) (*hook.Frame, error) {
	f := hook.NewFrame(ctx, text, c.sess)
	if err := c.connector.chain.Begin(f); err != nil {
		return nil, err
	}
	return f, nil
}

// end 不管语句执行成功与否都要通知结束
func (c *connWrapper) end(f *hook.Frame, execErr error) error {
	f.Err = execErr
	err := c.connector.chain.End(f)
	if err != nil {
		c.sess.Logger().Warn("帧结束通知失败", "语句", f.Text, "错误", err)
	}
	return err
}

// notify 把文本形式的事务控制语句转换成事务事件
func (c *connWrapper) notify(st statement) {
	bus := c.connector.bus
	switch st.kind {
	case kindCommit:
		bus.TxEnded(c.sess, hook.TxCommit)
	case kindRollback:
		bus.TxEnded(c.sess, hook.TxAbort)
	case kindSavepoint:
		bus.SubTx(c.sess, hook.SubTxBegin, st.arg)
	case kindRelease:
		bus.SubTx(c.sess, hook.SubTxCommit, st.arg)
	case kindRollbackTo:
		bus.SubTx(c.sess, hook.SubTxAbort, st.arg)
	}
}
