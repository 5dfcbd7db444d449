package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const (
	DriverMysql  = "mysql"
	DriverSqlite = "sqlite3"
)

type DatabaseConfig struct {
	DriverType string
	DriverArgs string
	LogSQL     bool
}

type MysqlOptions struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// MysqlDSN builds a driver DSN in the form user:password@tcp(host:port)/database?params.
func MysqlDSN(o MysqlOptions) string {
	c := mysql.NewConfig()
	c.User = o.User
	c.Passwd = o.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", o.Host, o.Port)
	c.DBName = o.Database
	c.ParseTime = true
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// PrepareMysqlDatabase creates the database named in the DSN when it does not exist yet.
func PrepareMysqlDatabase(driverArgs string) error {
	c, err := mysql.ParseDSN(driverArgs)
	if err != nil {
		return err
	}
	databaseName := c.DBName
	if databaseName == "" {
		return errors.New("database name is missing in DSN")
	}
	if strings.ContainsAny(databaseName, "`;") {
		return fmt.Errorf("illegal database name %q", databaseName)
	}
	c.DBName = ""

	db, err := sql.Open(DriverMysql, c.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec("CREATE DATABASE IF NOT EXISTS `" + databaseName + "` DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci")
	return err
}
