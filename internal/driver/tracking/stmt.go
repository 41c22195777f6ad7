package tracking

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/ecodeclub/ekit/slice"
	"github.com/meoying/querystack/internal/errs"
)

var _ driver.StmtExecContext = &stmtWrapper{}
var _ driver.StmtQueryContext = &stmtWrapper{}
var _ driver.NamedValueChecker = &stmtWrapper{}

// stmtWrapper 预编译语句，每一次执行都是一个独立的帧
type stmtWrapper struct {
	stmt driver.Stmt
	conn *connWrapper
	st   statement
}

func (s *stmtWrapper) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.conn.exec(ctx, s.st, func() (driver.Result, error) {
		if ec, ok := s.stmt.(driver.StmtExecContext); ok {
			return ec.ExecContext(ctx, args)
		}
		values, err := namedValuesToValues(args)
		if err != nil {
			return nil, err
		}
		return s.stmt.Exec(values)
	})
}

func (s *stmtWrapper) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.conn.query(ctx, s.st, func() (driver.Rows, error) {
		if qc, ok := s.stmt.(driver.StmtQueryContext); ok {
			return qc.QueryContext(ctx, args)
		}
		values, err := namedValuesToValues(args)
		if err != nil {
			return nil, err
		}
		return s.stmt.Query(values)
	})
}

func (s *stmtWrapper) CheckNamedValue(value *driver.NamedValue) error {
	if checker, ok := s.stmt.(driver.NamedValueChecker); ok {
		return checker.CheckNamedValue(value)
	}
	return driver.ErrSkip
}

func (s *stmtWrapper) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), valuesToNamedValues(args))
}

func (s *stmtWrapper) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), valuesToNamedValues(args))
}

func (s *stmtWrapper) NumInput() int {
	return s.stmt.NumInput()
}

func (s *stmtWrapper) Close() error {
	return s.stmt.Close()
}

// controlStmt 预编译的控制语句，不会发给底层驱动
type controlStmt struct {
	conn *connWrapper
	st   statement
}

func (s *controlStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	rows, err := s.conn.queryControl(ctx, s.st, args)
	if err != nil {
		return nil, err
	}
	return driver.RowsAffected(0), rows.Close()
}

func (s *controlStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.conn.queryControl(ctx, s.st, args)
}

func (s *controlStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), valuesToNamedValues(args))
}

func (s *controlStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), valuesToNamedValues(args))
}

func (s *controlStmt) NumInput() int {
	return s.st.numInput()
}

func (s *controlStmt) Close() error {
	return nil
}

func namedValuesToValues(args []driver.NamedValue) ([]driver.Value, error) {
	for _, arg := range args {
		if arg.Name != "" {
			return nil, fmt.Errorf("%w: 底层驱动不支持命名参数 %s", errs.ErrUnsupported, arg.Name)
		}
	}
	return slice.Map(args, func(idx int, src driver.NamedValue) driver.Value {
		return src.Value
	}), nil
}

func valuesToNamedValues(args []driver.Value) []driver.NamedValue {
	return slice.Map(args, func(idx int, src driver.Value) driver.NamedValue {
		return driver.NamedValue{Ordinal: idx + 1, Value: src}
	})
}
