package main

import (
	"database/sql/driver"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/meoying/querystack/config"
	"github.com/spf13/viper"
)

// loadConfig 读取配置文件，没有指定文件的时候使用默认配置
// 支持 viper 能识别的所有格式，包括 yaml 和 properties
func loadConfig(v *viper.Viper, path string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("初始化读取配置文件失败 %w", err)
		}
		if err := v.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("解析配置文件失败 %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func openDriver(name string) (driver.Driver, error) {
	switch name {
	case config.DriverSQLite3:
		return &sqlite3.SQLiteDriver{}, nil
	case config.DriverMySQL:
		return &mysql.MySQLDriver{}, nil
	}
	return nil, fmt.Errorf("不支持的驱动 %s", name)
}
