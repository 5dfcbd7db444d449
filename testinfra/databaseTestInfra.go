package testinfra

import (
	"context"
	"log"
	"os"
	"strings"

	"blogapi/persistence"

	"github.com/google/uuid"
)

type TestDatabase struct {
	TestDatabaseName string
	DS               *persistence.DataSourceManager
}

// StartTestDatabase creates an isolated database for one test case.
// With TEST_MYSQL_SERVICE=root:root@(127.0.0.1:3306) a MySQL database is created, otherwise a private in-memory sqlite database.
func StartTestDatabase(baseName string) *TestDatabase {
	databaseName := baseName + "_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	var dbConfig *persistence.DatabaseConfig
	mysqlSvc := os.Getenv("TEST_MYSQL_SERVICE")
	if mysqlSvc != "" {
		dbConfig = &persistence.DatabaseConfig{
			DriverType: persistence.DriverMysql,
			DriverArgs: mysqlSvc + "/" + databaseName + "?charset=utf8mb4&parseTime=True&loc=Local&timeout=5s",
		}
		// create database (no conflict)
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			log.Fatalf("failed to prepare database %v\n", err)
		}
	} else {
		dbConfig = &persistence.DatabaseConfig{
			DriverType: persistence.DriverSqlite,
			DriverArgs: "file:" + databaseName + "?mode=memory&cache=shared",
		}
	}

	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	// connect
	if err := ds.Start(); err != nil {
		defer ds.Stop()
		log.Fatalf("database connection failed %v\n", err)
	}

	return &TestDatabase{TestDatabaseName: databaseName, DS: ds}
}

func StopTestDatabase(testDatabase *TestDatabase) {
	if testDatabase == nil || testDatabase.DS == nil {
		return
	}
	db := testDatabase.DS.GormDB(context.Background())
	if db != nil && testDatabase.DS.DatabaseConfig.DriverType == persistence.DriverMysql {
		if err := db.Exec("DROP DATABASE " + testDatabase.TestDatabaseName).Error; err != nil {
			log.Println("failed to drop test database: " + testDatabase.TestDatabaseName)
		} else {
			log.Println("test database " + testDatabase.TestDatabaseName + " dropped")
		}
	}

	// close connection, the in-memory database goes with it
	testDatabase.DS.Stop()
}
