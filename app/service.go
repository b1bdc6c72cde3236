package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kilianp07/smartcharge/api/charging"
	"github.com/kilianp07/smartcharge/config"
	"github.com/kilianp07/smartcharge/core/control"
	"github.com/kilianp07/smartcharge/core/journal"
	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	coremon "github.com/kilianp07/smartcharge/core/monitoring"
	"github.com/kilianp07/smartcharge/core/persistence"
	"github.com/kilianp07/smartcharge/infra/logger"
	"github.com/kilianp07/smartcharge/infra/metrics"
	"github.com/kilianp07/smartcharge/infra/monitoring"
	"github.com/kilianp07/smartcharge/infra/mqtt"
	infrapersist "github.com/kilianp07/smartcharge/infra/persistence"
	"github.com/kilianp07/smartcharge/internal/eventbus"
)

// Service wires the controller to MQTT, storage, metrics and the HTTP API.
type Service struct {
	cfg *config.Config
	log logger.Logger

	Controller *control.Controller
	client     *mqtt.Client
	publisher  *mqtt.StatePublisher
	bus        *eventbus.TypedBus[control.Update]
	sink       coremetrics.MetricsSink
	monitor    coremon.Monitor
	journal    journal.Store
	store      persistence.Store
	persist    *persistence.Debouncer

	closeOnce sync.Once
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	jr, err := journal.Open(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	store, err := infrapersist.Open(cfg.Storage)
	if err != nil {
		_ = jr.Close()
		return nil, fmt.Errorf("state store: %w", err)
	}
	persist := persistence.NewDebouncer(store, time.Duration(cfg.Storage.DebounceMS)*time.Millisecond, logger.New("persistence"))

	client, err := mqtt.NewClient(cfg.MQTT)
	if err != nil {
		_ = jr.Close()
		_ = store.Close()
		return nil, fmt.Errorf("mqtt client: %w", err)
	}
	svc := &Service{
		cfg:     cfg,
		log:     logg,
		client:  client,
		bus:     eventbus.NewTyped[control.Update](),
		sink:    sink,
		monitor: mon,
		journal: jr,
		store:   store,
		persist: persist,
	}
	if err := svc.wire(); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

func (s *Service) wire() error {
	topics := s.cfg.MQTT.Topics
	src, err := mqtt.NewSensorSource(s.client, topics)
	if err != nil {
		return fmt.Errorf("sensor source: %w", err)
	}
	ctrl, err := control.New(s.cfg.Charging, control.Deps{
		Source:   src,
		Calendar: src,
		Port:     mqtt.NewPort(s.client, topics, s.cfg.Charging.CarRefreshTarget),
		Logger:   logger.New("control"),
		Metrics:  s.sink,
		Monitor:  s.monitor,
		Bus:      s.bus,
		Journal:  s.journal,
		Store:    s.store,
		Persist:  s.persist,
	})
	if err != nil {
		return err
	}
	if _, err := mqtt.NewCommandListener(s.client, topics, ctrl); err != nil {
		return fmt.Errorf("command listener: %w", err)
	}
	s.Controller = ctrl
	s.publisher = mqtt.NewStatePublisher(s.client, topics)
	return nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	defer s.monitor.Recover()
	if err := s.Controller.Restore(ctx); err != nil {
		s.log.Errorf("restore: %v", err)
	}
	if err := mqtt.PublishDiscovery(ctx, s.client, s.cfg.MQTT.Topics, s.cfg.Charging.Currency); err != nil {
		s.log.Errorf("discovery: %v", err)
	}

	var wg sync.WaitGroup
	updates := s.bus.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.publisher.Run(ctx, updates); err != nil {
			s.log.Errorf("state publisher: %v", err)
		}
	}()
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if addr := s.cfg.API.Addr; addr != "" {
		h := charging.NewHandler(s.Controller, s.journal, s.cfg.API.Token)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := serveHTTP(ctx, addr, h, s.log); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}

	err := s.Controller.Run(ctx)
	wg.Wait()
	return err
}

func serveHTTP(ctx context.Context, addr string, h http.Handler, log logger.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("api server shutdown: %v", err)
		}
		cancel()
	}()
	log.Infof("serving charging api on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close flushes pending state and releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.persist.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush state: %w", err))
		}
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close state store: %w", err))
		}
		if err := s.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
		if c, ok := s.sink.(interface{ Close() }); ok {
			c.Close()
		}
		s.bus.Close()
		s.client.Disconnect()
		s.monitor.Flush(2 * time.Second)
	})
	return errors.Join(errs...)
}
