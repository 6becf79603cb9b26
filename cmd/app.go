package cmd

import (
	"context"
	"fmt"
	"time"

	"db-relay/internal/config"
	"db-relay/internal/convert"
	"db-relay/internal/dialect"
	"db-relay/internal/engine"
	"db-relay/internal/logger"
	"db-relay/internal/metrics"
	"db-relay/internal/resultlog"
	"db-relay/internal/schema"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// app holds everything a command needs, built from the loaded config.
type app struct {
	cfg          *config.Config
	log          *logrus.Logger
	metrics      *metrics.Collector
	catalog      *config.Catalog
	runner       *engine.Runner
	orchestrator *engine.Orchestrator
	introspector *schema.Introspector
	redis        *resultlog.RedisPublisher
}

func newApp() (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	m, err := metrics.New()
	if err != nil {
		return nil, err
	}

	conn := dialect.DriverConnector{}
	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: m,
		catalog: config.NewCatalog(cfg),
	}

	a.runner = engine.NewRunner(conn, convert.New(convert.NewRegistry()), log)
	a.runner.Metrics = m
	a.runner.ReadTimeout = cfg.Settings.ReadTimeout
	a.runner.WriteTimeout = cfg.Settings.WriteTimeout

	sinks := resultlog.Multi{resultlog.LogSink{Log: log}}
	if cfg.ResultLog.Redis.Address != "" {
		a.redis = resultlog.NewRedisPublisher(cfg.ResultLog.Redis)
		sinks = append(sinks, a.redis)
	}

	a.orchestrator = engine.NewOrchestrator(a.catalog, a.runner, log)
	a.orchestrator.Recorder = sinks
	a.orchestrator.Metrics = m

	a.introspector = schema.NewIntrospector(conn)
	a.introspector.Timeout = cfg.Settings.ProbeTimeout

	return a, nil
}

// connection finds a connection by id or name.
func (a *app) connection(ref string) (dialectRef, error) {
	c, ok := a.cfg.Connection(ref)
	if !ok {
		return dialectRef{}, fmt.Errorf("connection '%s' not found in config", ref)
	}
	return dialectRef{databaseType: c.DatabaseType, connStr: c.ConnectionString, name: c.Name}, nil
}

type dialectRef struct {
	name         string
	databaseType string
	connStr      string
}

// close pushes metrics when a Pushgateway is configured and releases Redis.
func (a *app) close() {
	if url := a.cfg.Metrics.Pushgateway.URL; url != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.metrics.Push(ctx, url, a.cfg.Metrics.Pushgateway.Job); err != nil {
			a.log.WithError(err).Warn("metrics push failed")
		}
		cancel()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Debug("redis close")
		}
	}
}
