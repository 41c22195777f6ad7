//go:build e2e

package tracking_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ecodeclub/ekit/retry"
	"github.com/go-sql-driver/mysql"
	"github.com/meoying/querystack/internal/driver/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const mysqlDSN = "root:root@tcp(127.0.0.1:13306)/mysql?charset=utf8mb4&parseTime=True&loc=Local"

func TestMySQLTestSuite(t *testing.T) {
	suite.Run(t, new(mysqlTestSuite))
}

// mysqlTestSuite 在真实的 MySQL 上验证
// MySQL 同一个连接上不能同时读两个结果集，所以嵌套的只有 stack_snapshot 这一层
type mysqlTestSuite struct {
	suite.Suite
	connector *tracking.Connector
	db        *sql.DB
}

func (s *mysqlTestSuite) SetupSuite() {
	l := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	var err error
	s.connector, err = tracking.NewConnector(&mysql.MySQLDriver{}, mysqlDSN, tracking.WithLogger(l))
	require.NoError(s.T(), err)
	s.db = sql.OpenDB(s.connector)
	waitForMySQLSetup(s.db)

	_, err = s.db.Exec("CREATE DATABASE IF NOT EXISTS `querystack`")
	require.NoError(s.T(), err)
	_, err = s.db.Exec("CREATE TABLE IF NOT EXISTS `querystack`.`users` (`id` BIGINT PRIMARY KEY AUTO_INCREMENT, `name` VARCHAR(64))")
	require.NoError(s.T(), err)
}

func (s *mysqlTestSuite) TearDownSuite() {
	_, _ = s.db.Exec("DROP DATABASE IF EXISTS `querystack`")
	require.NoError(s.T(), s.db.Close())
}

func (s *mysqlTestSuite) TestSnapshotInsideCursor() {
	t := s.T()
	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, "SELECT 1")
	require.NoError(t, err)
	var (
		number int64
		text   string
	)
	err = conn.QueryRowContext(ctx, "SELECT * FROM stack_snapshot()").Scan(&number, &text)
	require.NoError(t, err)
	assert.Equal(t, int64(0), number)
	assert.Equal(t, "SELECT 1", text)
	require.NoError(t, rows.Close())
}

func (s *mysqlTestSuite) TestSavepoint() {
	t := s.T()
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, "INSERT INTO `querystack`.`users` (`name`) VALUES (?)", "Tom")
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, "SAVEPOINT sp1")
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, "INSERT INTO `querystack`.`users` (`name`) VALUES (?)", "Jerry")
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT sp1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	var cnt int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM `querystack`.`users` WHERE `name` = 'Jerry'").Scan(&cnt)
	require.NoError(t, err)
	assert.Equal(t, 0, cnt)
}

// waitForMySQLSetup 检查MySQL是否启动
func waitForMySQLSetup(db *sql.DB) {
	const maxInterval = 10 * time.Second
	const maxRetries = 10
	strategy, err := retry.NewExponentialBackoffRetryStrategy(time.Second, maxInterval, maxRetries)
	if err != nil {
		panic(err)
	}
	const timeout = 5 * time.Second
	for {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			return
		}
		next, ok := strategy.Next()
		if !ok {
			panic("waitForMySQLSetup 重试失败......")
		}
		time.Sleep(next)
	}
}
