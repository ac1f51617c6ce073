package mysql

import (
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

var Db *sqlx.DB

// Init 初始化MySQL连接
func Init(dsn string) (err error) {
	// "user:password@tcp(host:port)/dbname?parseTime=true&loc=Local"
	Db, err = sqlx.Connect("mysql", dsn)
	if err != nil {
		return
	}
	Db.SetMaxOpenConns(32)
	Db.SetMaxIdleConns(16)
	return
}

// Close 关闭MySQL连接
func Close() {
	if Db != nil {
		_ = Db.Close()
	}
}
