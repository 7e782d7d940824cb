package cmd

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rustyeddy/tradegate/broker"
	"github.com/rustyeddy/tradegate/broker/paper"
	"github.com/rustyeddy/tradegate/config"
	"github.com/rustyeddy/tradegate/execution"
	"github.com/rustyeddy/tradegate/journal"
	"github.com/rustyeddy/tradegate/metrics"
	"github.com/rustyeddy/tradegate/risk"
	"github.com/rustyeddy/tradegate/store"
)

// app is everything a command needs, built from the loaded config.
type app struct {
	store    risk.Store
	engine   *risk.Engine
	journal  journal.Journal
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	orch     *execution.Orchestrator
}

func newApp(c *config.Config) (*app, error) {
	cal, err := c.Calendar()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(c.Store, log)
	if err != nil {
		return nil, err
	}

	j, err := journal.Open(c.Journal)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	engine := risk.NewEngine(st,
		risk.WithLimits(c.Policy()),
		risk.WithCalendar(cal),
		risk.WithLogger(log.With("component", "risk")),
		risk.WithObserver(m.ObserveDecision),
	)

	factory := paper.NewFactory(
		paper.WithLive(!c.Broker.Paper),
		paper.WithLogger(log.With("component", "paper")),
	)

	orch := execution.New(engine, factory,
		execution.WithCredentials(broker.EnvCredentials{}),
		execution.WithJournal(j),
		execution.WithMetrics(m),
		execution.WithLogger(log.With("component", "execution")),
		execution.WithDefaultExchange(c.Broker.DefaultExchange),
	)

	return &app{
		store:    st,
		engine:   engine,
		journal:  j,
		registry: reg,
		metrics:  m,
		orch:     orch,
	}, nil
}

func (a *app) Close() error {
	var errs []error
	if err := a.journal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close journal: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
