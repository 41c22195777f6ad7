package tracking

import (
	"database/sql/driver"
	"io"
	"reflect"

	"github.com/meoying/querystack/internal/snapshot"
)

var _ driver.RowsNextResultSet = &rowsWrapper{}
var _ driver.RowsColumnTypeScanType = &rowsWrapper{}
var _ driver.RowsColumnTypeDatabaseTypeName = &rowsWrapper{}
var _ driver.RowsColumnTypeNullable = &rowsWrapper{}
var _ driver.RowsColumnTypePrecisionScale = &rowsWrapper{}
var _ driver.RowsColumnTypeLength = &rowsWrapper{}

var anyType = reflect.TypeOf(new(any)).Elem()

// rowsWrapper 结果集关闭的时候，对应的帧才结束
type rowsWrapper struct {
	rows    driver.Rows
	onClose func(err error) error
	closed  bool
}

func (r *rowsWrapper) Columns() []string {
	return r.rows.Columns()
}

func (r *rowsWrapper) Next(dest []driver.Value) error {
	return r.rows.Next(dest)
}

func (r *rowsWrapper) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.rows.Close()
	endErr := r.onClose(err)
	if err != nil {
		return err
	}
	return endErr
}

func (r *rowsWrapper) HasNextResultSet() bool {
	if rs, ok := r.rows.(driver.RowsNextResultSet); ok {
		return rs.HasNextResultSet()
	}
	return false
}

func (r *rowsWrapper) NextResultSet() error {
	if rs, ok := r.rows.(driver.RowsNextResultSet); ok {
		return rs.NextResultSet()
	}
	return io.EOF
}

func (r *rowsWrapper) ColumnTypeScanType(index int) reflect.Type {
	if ct, ok := r.rows.(driver.RowsColumnTypeScanType); ok {
		return ct.ColumnTypeScanType(index)
	}
	return anyType
}

func (r *rowsWrapper) ColumnTypeDatabaseTypeName(index int) string {
	if ct, ok := r.rows.(driver.RowsColumnTypeDatabaseTypeName); ok {
		return ct.ColumnTypeDatabaseTypeName(index)
	}
	return ""
}

func (r *rowsWrapper) ColumnTypeNullable(index int) (nullable, ok bool) {
	if ct, is := r.rows.(driver.RowsColumnTypeNullable); is {
		return ct.ColumnTypeNullable(index)
	}
	return false, false
}

func (r *rowsWrapper) ColumnTypePrecisionScale(index int) (precision, scale int64, ok bool) {
	if ct, is := r.rows.(driver.RowsColumnTypePrecisionScale); is {
		return ct.ColumnTypePrecisionScale(index)
	}
	return 0, 0, false
}

func (r *rowsWrapper) ColumnTypeLength(index int) (length int64, ok bool) {
	if ct, is := r.rows.(driver.RowsColumnTypeLength); is {
		return ct.ColumnTypeLength(index)
	}
	return 0, false
}

var _ driver.RowsColumnTypeScanType = &snapshotRows{}
var _ driver.RowsColumnTypeDatabaseTypeName = &snapshotRows{}

// snapshotRows stack_snapshot 的结果集
// 带了 WHERE、ORDER BY 或者 LIMIT 的时候，读取第一行时一次性导出再处理
type snapshotRows struct {
	exporter *snapshot.Exporter
	clause   clause
	rows     []snapshot.Row
	buffered bool
	onClose  func() error
	closed   bool
}

func (r *snapshotRows) Columns() []string {
	return snapshot.Columns
}

func (r *snapshotRows) Next(dest []driver.Value) error {
	row, ok := r.next()
	if !ok {
		return io.EOF
	}
	dest[0] = int64(row.FrameNumber)
	dest[1] = row.FrameText
	return nil
}

func (r *snapshotRows) next() (snapshot.Row, bool) {
	if r.clause.empty() {
		return r.exporter.Next()
	}
	if !r.buffered {
		r.rows = r.clause.apply(r.exporter.Collect())
		r.buffered = true
	}
	if len(r.rows) == 0 {
		return snapshot.Row{}, false
	}
	row := r.rows[0]
	r.rows = r.rows[1:]
	return row, true
}

func (r *snapshotRows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.exporter.Close()
	return r.onClose()
}

func (r *snapshotRows) ColumnTypeScanType(index int) reflect.Type {
	if index == 0 {
		return reflect.TypeOf(int64(0))
	}
	return reflect.TypeOf("")
}

func (r *snapshotRows) ColumnTypeDatabaseTypeName(index int) string {
	if index == 0 {
		return "INTEGER"
	}
	return "TEXT"
}

// valueRows 固定内容的结果集
type valueRows struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *valueRows) Columns() []string {
	return r.columns
}

func (r *valueRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func (r *valueRows) Close() error {
	return nil
}
