// Package app wires one relay process's components together: config and
// topology loading, the egress pool, per-PQKD key stores, the shared
// inter-relay server, and one ETSI frontend per hosted PQKD.
package app

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qkd-trust/pqkd-relay/internal/config"
	"github.com/qkd-trust/pqkd-relay/internal/egress"
	"github.com/qkd-trust/pqkd-relay/internal/etsifrontend"
	"github.com/qkd-trust/pqkd-relay/internal/health"
	"github.com/qkd-trust/pqkd-relay/internal/interrelay"
	"github.com/qkd-trust/pqkd-relay/internal/keystore"
	"github.com/qkd-trust/pqkd-relay/internal/logger"
	"github.com/qkd-trust/pqkd-relay/internal/metrics"
	"github.com/qkd-trust/pqkd-relay/internal/relayerr"
	"github.com/qkd-trust/pqkd-relay/internal/topology"
)

// Options selects the two configuration files a relay process starts from.
type Options struct {
	ConfigPath    string
	HypercubePath string
	MetricsAddr   string // empty disables the metrics server
	Logger        logger.Logger
}

// App holds every wired component for one relay process: the shared
// inter-relay server plus one ETSI frontend per hosted PQKD (§2).
type App struct {
	relayCfg  *config.RelayConfig
	hypercube *topology.Hypercube
	pqkds     []topology.PQKD
	egress    *egress.Pool
	stores    map[string]*keystore.Store
	relay     *interrelay.Server
	frontends map[string]*etsifrontend.Server
	health    *health.HealthChecker
	metrics   string
	log       logger.Logger
}

// Load reads both configuration files and builds every component, without
// starting any listener.
func Load(opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	relayCfg, err := config.LoadRelayConfig(opts.ConfigPath)
	if err != nil {
		return nil, relayerr.Configf("loading relay config: %v", err)
	}
	topoCfg, err := config.LoadTopologyConfig(opts.HypercubePath)
	if err != nil {
		return nil, relayerr.Configf("loading topology config: %v", err)
	}

	relays := make([]topology.Relay, len(topoCfg.Relay))
	for i, r := range topoCfg.Relay {
		relays[i] = topology.Relay{ID: r.ID, PQKDs: r.PQKDs}
	}
	conns := make([]topology.Connection, len(topoCfg.Connection))
	for i, c := range topoCfg.Connection {
		conns[i] = topology.Connection{First: c.First, Second: c.Second}
	}

	hypercube, err := topology.Build(topoCfg.Dimension, topoCfg.N, relays, conns)
	if err != nil {
		return nil, relayerr.Configf("building hypercube topology: %v", err)
	}

	pqkdList := make([]topology.PQKD, len(relayCfg.PQKDs))
	pqkds := make(map[string]topology.PQKD, len(relayCfg.PQKDs))
	for i, p := range relayCfg.PQKDs {
		tp := topology.PQKD{
			SAEID:              p.SAEID,
			Port:               p.Port,
			KMEAddress:         p.KMEAddress,
			RemoteSAEID:        p.RemoteSAEID,
			RemoteProxyAddress: p.RemoteProxyAddress,
			CACert:             p.CACert,
			ClientCert:         p.ClientCert,
			ClientKey:          p.ClientKey,
		}
		pqkdList[i] = tp
		pqkds[p.SAEID] = tp
	}

	pool, err := egress.Build(pqkdList)
	if err != nil {
		return nil, relayerr.Configf("building egress pool: %v", err)
	}

	stores := make(map[string]*keystore.Store, len(pqkdList))
	for _, p := range pqkdList {
		stores[p.SAEID] = keystore.New()
	}

	relay := interrelay.NewServer(interrelay.Deps{
		PQKDs:  pqkds,
		Stores: stores,
		Egress: pool,
		Logger: log,
	})

	frontends := make(map[string]*etsifrontend.Server, len(pqkdList))
	for _, p := range pqkdList {
		frontends[p.SAEID] = etsifrontend.NewServer(etsifrontend.Deps{
			Local:     p,
			Hypercube: hypercube,
			PQKDs:     pqkds,
			Egress:    pool,
			Store:     stores[p.SAEID],
			Relay:     relay,
			FanoutN:   topoCfg.N,
			Logger:    log,
		})
	}

	a := &App{
		relayCfg:  relayCfg,
		hypercube: hypercube,
		pqkds:     pqkdList,
		egress:    pool,
		stores:    stores,
		relay:     relay,
		frontends: frontends,
		metrics:   opts.MetricsAddr,
		log:       log,
	}
	a.registerHealthChecks()
	return a, nil
}

// registerHealthChecks wires one KME-reachability check and one key-store
// check per hosted PQKD, per the teacher's health.HealthChecker shape.
func (a *App) registerHealthChecks() {
	a.health = health.NewHealthChecker(5 * time.Second)
	a.health.SetLogger(a.log)

	for _, p := range a.pqkds {
		p := p
		client, _ := a.egress.ClientFor(p.SAEID)
		kme := egress.NewKMEClient(client, p.KMEAddress)

		a.health.RegisterCheck("kme:"+p.SAEID, health.KMEHealthCheck(func(ctx context.Context) error {
			_, err := kme.Status(ctx, p.RemoteSAEID)
			return err
		}))

		store := a.stores[p.SAEID]
		a.health.RegisterCheck("keystore:"+p.SAEID, health.KeyStoreHealthCheck(func() error {
			store.Len()
			return nil
		}))
	}
}

// Run starts one HTTP listener per hosted PQKD (ETSI frontend), one shared
// inter-relay listener, and optionally a metrics listener, and blocks until
// ctx is cancelled or any listener fails. Mirrors the reference's pattern of
// spawning one task per server and joining all of them (original_source's
// main.rs), replacing tokio::task::JoinHandle joins with an errgroup.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, p := range a.pqkds {
		p := p
		srv := &http.Server{
			Addr:              portAddr(p.Port),
			Handler:           a.frontends[p.SAEID].Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			return runServer(gctx, srv, a.log, "etsi frontend for "+p.SAEID)
		})
	}

	relaySrv := &http.Server{
		Addr:              portAddr(a.relayCfg.Port),
		Handler:           a.relay.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		return runServer(gctx, relaySrv, a.log, "inter-relay server for "+a.relayCfg.ID)
	})

	if a.metrics != "" {
		metricsSrv := &http.Server{
			Addr:              a.metrics,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			return runServer(gctx, metricsSrv, a.log, "metrics server")
		})
	}

	return g.Wait()
}

// runServer runs one HTTP server until ctx is cancelled, then shuts it down
// gracefully. A bind failure (ListenAndServe returning before ctx is done)
// is reported as relayerr.KindBind per §6's exit-status requirement.
func runServer(ctx context.Context, srv *http.Server, log logger.Logger, label string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting "+label, logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- relayerr.Bindf("%s: %v", label, err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func portAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
