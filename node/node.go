package node

import (
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	abciserver "github.com/tendermint/tendermint/abci/server"
	"github.com/tendermint/tendermint/libs/events"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
	tmdb "github.com/tendermint/tm-db"

	"roundabci/app"
	cfg "roundabci/config"
	"roundabci/store"
	"roundabci/types"
)

const historySubscriber = "history-store"

type Provider func(*cfg.Config, log.Logger) (*Node, error)

// Node 把ABCI application、事件总线、历史存储和metrics组装成一个服务
type Node struct {
	service.BaseService

	// config
	config *cfg.Config

	// application
	driver      *app.Driver
	application *app.Application
	eventSwitch events.EventSwitch

	// services
	abciServer service.Service
	history    *store.HistoryStore

	// metrics
	metrics         *Metrics
	promRegistry    *prometheus.Registry
	prometheusSrv   *http.Server
	prometheusLAddr net.Addr
}

// DefaultNewNode returns a node with the default driver options.
func DefaultNewNode(config *cfg.Config, logger log.Logger) (*Node, error) {
	return NewNode(config, logger)
}

// NewNode wires the application stack. Extra driver options, e.g. a custom
// verifier or initial state, are applied after the event switch.
func NewNode(config *cfg.Config, logger log.Logger, options ...app.DriverOption) (*Node, error) {
	if err := config.ValidateBasic(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	params, err := types.NewConsensusParams(config.Consensus.MaxParticipants)
	if err != nil {
		return nil, err
	}

	eventSwitch := events.NewEventSwitch()
	eventSwitch.SetLogger(logger.With("module", "events"))

	driver := app.NewDriver(params, append([]app.DriverOption{app.WithEventSwitch(eventSwitch)}, options...)...)
	driver.SetLogger(logger.With("module", "driver"))

	application, err := app.NewApplication(driver, types.DefaultRegistry(), config.Consensus.VerifiedTxCacheSize)
	if err != nil {
		return nil, err
	}
	application.SetLogger(logger.With("module", "abci-app"))

	abciServer, err := abciserver.NewServer(config.ProxyApp, config.ABCI, application)
	if err != nil {
		return nil, errors.Wrap(err, "create abci server")
	}
	abciServer.SetLogger(logger.With("module", "abci-server"))

	history, err := store.OpenHistoryStore("history", tmdb.BackendType(config.DBBackend), config.DBDir())
	if err != nil {
		return nil, err
	}
	history.SetLogger(logger.With("module", "store"))

	promRegistry := prometheus.NewRegistry()
	metrics := NewMetrics(config.Instrumentation.Namespace, driver)
	if err := metrics.Register(promRegistry); err != nil {
		if cerr := history.Close(); cerr != nil {
			logger.Error("Error closing history store", "err", cerr)
		}
		return nil, err
	}

	node := &Node{
		config:       config,
		driver:       driver,
		application:  application,
		eventSwitch:  eventSwitch,
		abciServer:   abciServer,
		history:      history,
		metrics:      metrics,
		promRegistry: promRegistry,
	}
	node.BaseService = *service.NewBaseService(logger, "Node", node)
	return node, nil
}

func (n *Node) OnStart() error {
	if err := n.eventSwitch.Start(); err != nil {
		return err
	}

	// 每次round切换都写进历史存储并更新metrics
	err := n.eventSwitch.AddListenerForEvent(historySubscriber, app.EventRoundTransition, func(data events.EventData) {
		td, ok := data.(app.TransitionData)
		if !ok {
			return
		}
		n.metrics.ObserveTransition(td)
		if _, err := n.history.SaveTransition(store.Record{
			Height:    td.Height,
			From:      td.From.String(),
			To:        td.To.String(),
			OutOfBand: td.OutOfBand,
			AppHash:   td.AppHash,
			State:     td.State,
		}); err != nil {
			n.Logger.Error("failed to save transition", "err", err)
		}
	})
	if err != nil {
		return err
	}

	if n.config.Instrumentation.Prometheus {
		if err := n.startPrometheusServer(); err != nil {
			return err
		}
	}

	if err := n.abciServer.Start(); err != nil {
		return err
	}

	n.Logger.Info("node started",
		"proxy_app", n.config.ProxyApp,
		"max_participants", n.config.Consensus.MaxParticipants,
		"round", n.driver.CurrentRoundID())
	return nil
}

func (n *Node) OnStop() {
	n.Logger.Info("Stopping Node")

	if err := n.abciServer.Stop(); err != nil {
		n.Logger.Error("Error stopping abci server", "err", err)
	}

	n.eventSwitch.RemoveListener(historySubscriber)
	if err := n.eventSwitch.Stop(); err != nil {
		n.Logger.Error("Error stopping event switch", "err", err)
	}

	if n.prometheusSrv != nil {
		if err := n.prometheusSrv.Close(); err != nil {
			n.Logger.Error("Prometheus HTTP server Close", "err", err)
		}
	}

	if err := n.history.Close(); err != nil {
		n.Logger.Error("Error closing history store", "err", err)
	}
}

func (n *Node) startPrometheusServer() error {
	listener, err := net.Listen("tcp", n.config.Instrumentation.PrometheusListenAddr)
	if err != nil {
		return errors.Wrap(err, "prometheus listen")
	}
	n.prometheusLAddr = listener.Addr()
	n.prometheusSrv = &http.Server{
		Handler:           n.MetricsHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := n.prometheusSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			n.Logger.Error("Prometheus HTTP server ListenAndServe", "err", err)
		}
	}()
	return nil
}

// MetricsHandler serves the node metrics in the Prometheus text format.
func (n *Node) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(
		n.promRegistry, promhttp.HandlerFor(n.promRegistry, promhttp.HandlerOpts{}),
	))
	return mux
}

func (n *Node) Config() *cfg.Config {
	return n.config
}

func (n *Node) Driver() *app.Driver {
	return n.driver
}

func (n *Node) Application() *app.Application {
	return n.application
}

func (n *Node) EventSwitch() events.EventSwitch {
	return n.eventSwitch
}

func (n *Node) History() *store.HistoryStore {
	return n.history
}

// PrometheusAddr returns the bound metrics address, nil when the exporter is
// disabled.
func (n *Node) PrometheusAddr() net.Addr {
	return n.prometheusLAddr
}
