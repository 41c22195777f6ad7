package tracking

import (
	"database/sql/driver"

	"github.com/meoying/querystack/internal/hook"
)

type txWrapper struct {
	tx   driver.Tx
	conn *connWrapper
}

// Commit 提交失败也意味着事务结束了，按照回滚处理
func (t *txWrapper) Commit() error {
	err := t.tx.Commit()
	if err != nil {
		t.conn.sess.Logger().Error("提交事务失败", "错误", err)
		t.conn.connector.bus.TxEnded(t.conn.sess, hook.TxAbort)
		return err
	}
	t.conn.connector.bus.TxEnded(t.conn.sess, hook.TxCommit)
	return nil
}

func (t *txWrapper) Rollback() error {
	err := t.tx.Rollback()
	if err != nil {
		t.conn.sess.Logger().Error("回滚事务失败", "错误", err)
	}
	t.conn.connector.bus.TxEnded(t.conn.sess, hook.TxAbort)
	return err
}
