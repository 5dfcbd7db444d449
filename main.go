package main

import (
	"context"
	"io"

	"blogapi/account"
	"blogapi/assertion"
	"blogapi/client/es"
	"blogapi/comment"
	"blogapi/common"
	"blogapi/config"
	"blogapi/credential"
	"blogapi/event"
	"blogapi/indices"
	"blogapi/indices/search"
	"blogapi/infra/tracing"
	"blogapi/persistence"
	"blogapi/post"
	"blogapi/role"
	"blogapi/security"
	"blogapi/servehttp"
	"blogapi/sessions"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("service stopped")
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	common.ConfigureLogger(cfg.LogLevel, cfg.IsRelease())
	logrus.Infof("service start, env %s", cfg.AppEnv)

	if err := credential.SetCost(cfg.Bcrypt.Cost); err != nil {
		return err
	}

	tracerCloser, err := tracing.InitGlobalTracer(cfg.Tracing)
	if err != nil {
		return err
	}

	dbConfig := cfg.DataSource()
	// create database (no conflict)
	if dbConfig.DriverType == persistence.DriverMysql {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			return err
		}
	}
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		return err
	}
	persistence.ActiveDataSourceManager = ds
	closers := []io.Closer{servehttp.CloserFunc(func() error { ds.Stop(); return nil }), tracerCloser}

	err = ds.GormDB(context.Background()).AutoMigrate(&account.User{}, &account.RoleBinding{}, &role.Role{},
		&event.EventRecord{}, &post.Post{}, &comment.Comment{}).Error
	if err != nil {
		return err
	}

	if err := account.DefaultSecurityConfiguration(cfg.Admin); err != nil {
		return err
	}

	codec := assertion.NewCodec(cfg.JWT.Secret, cfg.JWT.Expires, cfg.JWT.Issuer)
	gate := security.BearerAuthFilter(codec)
	limiter := sessions.NewRateLimiter(cfg.Login.RatePerMinute, cfg.Login.Burst)

	engine := servehttp.NewEngine(cfg)
	sessions.RegisterSessionsRestAPI(engine, codec, limiter.Middleware(), gate)
	account.RegisterUsersRestAPI(engine, gate)
	role.RegisterRolesRestAPI(engine, gate)
	post.RegisterPostsRestAPI(engine, gate)
	comment.RegisterCommentsRestAPI(engine, gate)

	if cfg.Search.ElasticsearchURL != "" {
		if _, err := es.CreateClient(cfg.Search.ElasticsearchURL); err != nil {
			return err
		}
		event.EventHandlers = append(event.EventHandlers, indices.IndexPostEventHandle)
		indices.RegisterIndicesRestAPI(engine, gate)
		search.RegisterSearchRestAPI(engine, gate)

		crontab, err := indices.StartCron(cfg.Search.ReindexCron)
		if err != nil {
			return err
		}
		closers = append([]io.Closer{servehttp.CloserFunc(func() error { <-crontab.Stop().Done(); return nil })}, closers...)
	} else {
		logrus.Info("ELASTICSEARCH_URL is not set, post search disabled")
	}

	return servehttp.StartHTTPServer(engine, cfg.HTTP, closers...)
}
