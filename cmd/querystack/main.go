package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/meoying/querystack/pkg/querystack"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

func main() {
	cfile := pflag.String("config", "", "配置文件路径")
	execs := pflag.StringArray("exec", nil, "要执行的语句，可以指定多次")
	nested := pflag.Bool("nested", false, "前面语句的结果集保持打开，后面的语句嵌套在里面执行")
	pflag.Parse()

	if err := run(context.Background(), os.Stdout, *cfile, *execs, *nested); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, cfile string, execs []string, nested bool) (err error) {
	cfg, err := loadConfig(viper.New(), cfile)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	d, err := openDriver(cfg.Datasource.Driver)
	if err != nil {
		return err
	}

	builder := &querystack.ConnectorBuilder{}
	builder.SetConfig(cfg)
	builder.SetLogger(logger)
	db, err := builder.BuildDB(d, cfg.Datasource.DSN)
	if err != nil {
		return err
	}
	// 所有语句都在同一个连接，也就是同一个会话里面执行
	conn, err := db.Conn(ctx)
	if err != nil {
		return multierr.Append(err, db.Close())
	}
	defer func() {
		err = multierr.Combine(err, conn.Close(), db.Close())
	}()

	var open []*result
	defer func() {
		// 嵌套执行的时候，按照和执行相反的顺序关闭结果集
		for i := len(open) - 1; i >= 0; i-- {
			err = multierr.Append(err, open[i].print(out))
		}
	}()
	for _, query := range execs {
		rows, qerr := conn.QueryContext(ctx, query)
		if qerr != nil {
			return fmt.Errorf("执行 %s 失败: %w", query, qerr)
		}
		res := &result{query: query, rows: rows}
		if nested {
			open = append(open, res)
			continue
		}
		if err = res.print(out); err != nil {
			return err
		}
	}
	return nil
}

type result struct {
	query string
	rows  *sql.Rows
}

// print 输出全部结果之后关闭结果集
func (r *result) print(out io.Writer) (err error) {
	defer func() {
		err = multierr.Append(err, r.rows.Close())
	}()
	cols, err := r.rows.Columns()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "> %s\n", r.query)
	if len(cols) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(cols, "\t"))
	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	for r.rows.Next() {
		if err = r.rows.Scan(dest...); err != nil {
			return err
		}
		line := make([]string, len(values))
		for i, v := range values {
			line[i] = v.String
			if !v.Valid {
				line[i] = "NULL"
			}
		}
		fmt.Fprintln(w, strings.Join(line, "\t"))
	}
	if err = r.rows.Err(); err != nil {
		return err
	}
	return w.Flush()
}
