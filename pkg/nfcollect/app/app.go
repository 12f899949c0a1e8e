// Package app wires the receiver, the dispatcher and the sinks of the nfc
// collector.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nfcollect/nfcollect/decoders/netflow"
	"github.com/nfcollect/nfcollect/metrics"
	"github.com/nfcollect/nfcollect/pkg/nfcollect/builder"
	"github.com/nfcollect/nfcollect/pkg/nfcollect/config"
	"github.com/nfcollect/nfcollect/pkg/nfcollect/httpserver"
	"github.com/nfcollect/nfcollect/pkg/nfcollect/listen"
	"github.com/nfcollect/nfcollect/state"
	"github.com/nfcollect/nfcollect/utils"
)

const DefaultShutdownTimeout = 30 * time.Second

// App wires and runs the nfc collector.
type App struct {
	cfg        config.Config
	logger     logrus.FieldLogger
	listener   listen.ListenerConfig
	cache      *netflow.TemplateCache
	templates  *state.TemplateStore
	built      *builder.Built
	dispatcher *utils.Dispatcher
	receiver   *utils.UDPReceiver
	server     *http.Server
	collecting atomic.Bool
	ready      chan struct{}

	ShutdownTimeout time.Duration
}

// New constructs a new App from config. Store connections are opened
// lazily by the pool workers.
func New(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	listener, err := listen.ParseListenAddress(cfg.Listen)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:             cfg,
		logger:          logger,
		listener:        listener,
		ready:           make(chan struct{}),
		ShutdownTimeout: DefaultShutdownTimeout,
	}

	var persister netflow.TemplatePersister
	if cfg.Templates.State != "" {
		a.templates, err = state.OpenTemplateStore(cfg.Templates.State)
		if err != nil {
			return nil, fmt.Errorf("open template state: %w", err)
		}
		persister = a.templates
	}
	a.cache = netflow.NewTemplateCache(netflow.WithPersister(metrics.NewPromTemplatePersister(persister)))
	if a.templates != nil {
		n := a.templates.Restore(a.cache)
		logger.WithField("templates", n).Info("restored templates")
	}

	decoder := netflow.NewDecoder(9, a.cache)
	a.built, err = builder.BuildSinks(ctx, cfg.Sinks, decoder, logger)
	if err != nil {
		a.closeTemplates()
		return nil, err
	}
	a.dispatcher = utils.NewDispatcher(utils.DispatcherConfig{
		Logger: logger,
		ErrCnt: cfg.ErrCnt,
		ErrInt: cfg.ErrInt,
	}, a.built.Sinks...)

	rcfg := listener.ReceiverConfig()
	rcfg.Logger = logger
	a.receiver, err = utils.NewUDPReceiver(rcfg)
	if err != nil {
		_ = a.built.Close(ctx)
		a.closeTemplates()
		return nil, err
	}

	if cfg.Addr != "" {
		mux := httpserver.New(httpserver.Config{
			Addr:         cfg.Addr,
			TemplatePath: cfg.Templates.Path,
			Logger:       logger,
		}, httpserver.CacheTemplates(a.cache), a.collecting.Load)
		a.server = &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: time.Second * 5,
		}
	}
	return a, nil
}

// Templates returns the template cache shared by the store sinks.
func (a *App) Templates() *netflow.TemplateCache {
	return a.cache
}

// Ready is closed once the receiver is bound.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// LocalAddr returns the bound receiver address, nil before Ready.
func (a *App) LocalAddr() net.Addr {
	return a.receiver.LocalAddr()
}

func (a *App) closeTemplates() {
	if a.templates == nil {
		return
	}
	if err := a.templates.Close(); err != nil {
		a.logger.WithError(err).Error("error closing template state")
	}
}

func (a *App) sweepTemplates(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Templates.Sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			removed, err := a.cache.ExpireBefore(now.Add(-a.cfg.Templates.TTL))
			if err != nil {
				a.logger.WithError(err).Warn("failed to remove expired templates")
			}
			for _, key := range removed {
				a.logger.WithField("exporter", key).Info("expired templates")
			}
		}
	}
}

func (a *App) logReceiverErrors(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-a.receiver.Errors():
			a.logger.WithError(err).Error("receiver error")
		}
	}
}

// Run starts the collector and blocks until ctx is cancelled or a component
// fails. Queued datagrams and partial batches are written before it
// returns.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting nfc")
	err := a.receiver.Start(a.listener.Hostname, a.listener.Port, a.dispatcher.OnDatagram)
	if err != nil {
		a.shutdown()
		return err
	}
	a.collecting.Store(true)
	close(a.ready)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.dispatcher.RunStats(gctx, a.cfg.StatsInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	for _, s := range a.built.Batching {
		g.Go(func() error { return s.RunFlusher(gctx) })
	}
	if a.cfg.Templates.TTL > 0 {
		g.Go(func() error { return a.sweepTemplates(gctx) })
	}
	g.Go(func() error { return a.logReceiverErrors(gctx) })
	if a.server != nil {
		g.Go(func() error {
			err := a.server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			a.logger.WithField("http", a.cfg.Addr).Info("closed HTTP server")
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				a.logger.WithError(err).Error("error shutting-down HTTP server")
			}
			return nil
		})
	}

	err = g.Wait()
	return errors.Join(err, a.shutdown())
}

// shutdown stops the receiver, then flushes and closes every sink and pool.
func (a *App) shutdown() error {
	a.collecting.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), a.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.receiver.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop receiver: %w", err))
	}
	if err := a.dispatcher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close sinks: %w", err))
	}
	for _, p := range a.built.Pools {
		if err := p.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		stats := p.Stats()
		a.logger.WithFields(logrus.Fields{
			"store":     p.Name(),
			"committed": stats.Committed,
			"dropped":   stats.Dropped,
		}).Info("store closed")
	}
	a.closeTemplates()
	return errors.Join(errs...)
}
