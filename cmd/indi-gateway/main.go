// Command indi-gateway is the gateway's entrypoint: it parses configuration
// (internal/config), connects to Redis, and wires exactly one of the six
// topologies SPEC_FULL.md §4.7 names into a running internal/bridge.Bridge
// (one per spawned subprocess, for --driver), then serves /metrics and
// /healthz if configured.
//
// Grounded on ClusterCockpit-cc-backend's cmd/cc-backend/main.go for the
// overall shape (parse config, build dependencies, block on signal) and on
// original_source/indiredis's four topology scripts (i_to_r.py, d_to_r.py,
// m_to_r.py, m_to_p.py) for which pairing each flag combination selects -
// this binary picks one topology per process, the same granularity the
// original's four separate scripts did, rather than multiplexing every
// topology into one process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rickbassham/logging"
	"github.com/spf13/afero"

	"github.com/astrogateway/indi-gateway/internal/blobpolicy"
	"github.com/astrogateway/indi-gateway/internal/blobsink"
	"github.com/astrogateway/indi-gateway/internal/bridge"
	"github.com/astrogateway/indi-gateway/internal/command"
	"github.com/astrogateway/indi-gateway/internal/config"
	"github.com/astrogateway/indi-gateway/internal/ingest"
	"github.com/astrogateway/indi-gateway/internal/metrics"
	"github.com/astrogateway/indi-gateway/internal/store"
	"github.com/astrogateway/indi-gateway/internal/store/redisstore"
	"github.com/astrogateway/indi-gateway/internal/storeduplex"
	"github.com/astrogateway/indi-gateway/internal/transport"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.NewLogger(os.Stdout, logging.JSONFormatter{}, parseLogLevel(cfg.LogLevel))

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("indi-gateway: fatal")
		os.Exit(1)
	}
}

func parseLogLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}

func run(cfg config.Config, log logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("indi-gateway: shutting down")
		cancel()
	}()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RHost + ":" + cfg.RPort})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("indi-gateway: connect redis: %w", err)
	}
	defer rdb.Close()
	st := redisstore.New(rdb, cfg.Prefix)

	if err := checkBLOBFolder(cfg.BLOBFolder); err != nil {
		return err
	}
	sink := blobsink.New(afero.NewOsFs(), cfg.BLOBFolder, log)
	policy := blobpolicy.New()

	var reg *metrics.Registry
	if cfg.MetricsAddr != "" {
		reg = metrics.NewRegistry()
		go func() {
			if err := reg.Serve(cfg.MetricsAddr); err != nil {
				log.WithError(err).Warn("indi-gateway: metrics server stopped")
			}
		}()
	}

	switch {
	case cfg.ListenPort != "":
		return runListeningPort(ctx, log, cfg, reg)
	case len(cfg.Drivers) > 0:
		return runDrivers(ctx, log, cfg, st, policy, sink, reg)
	case cfg.ClientOnly:
		return runMQTTRedis(ctx, log, cfg, st, policy, sink, reg)
	default:
		return runIndiserver(ctx, log, cfg, st, policy, sink, reg)
	}
}

func checkBLOBFolder(folder string) error {
	info, err := os.Stat(folder)
	if os.IsNotExist(err) {
		return os.MkdirAll(folder, 0o755)
	}
	if err != nil {
		return fmt.Errorf("indi-gateway: blob folder %s: %w", folder, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("indi-gateway: blob folder %s is not a directory", folder)
	}
	return nil
}

// redisSide constructs the storeduplex.Duplex wrapping the to-indi/from-indi
// channels, and the ingest/command Handlers that give it meaning: frames
// arriving from upstream are ingested into the store (C2/C3 semantics) and
// published as an alert; payloads received on to-indi are resolved into
// wire frames and forwarded upstream, setting Busy along the way (C8).
func redisSide(ctx context.Context, log logging.Logger, cfg config.Config, st store.Store, policy *blobpolicy.Policy, sink *blobsink.Sink, reg *metrics.Registry, upstreamName string) (*storeduplex.Duplex, bridge.Handler, bridge.Handler, error) {
	d, err := storeduplex.New(ctx, st, cfg.ToIndiPub, cfg.FromIndiPub)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("indi-gateway: store duplex: %w", err)
	}

	in := ingest.New(st, store.Keys{Prefix: cfg.Prefix}, policy, sink, reg, log, upstreamName)
	sender := command.NewSender(st, noopTransmitter{}, log)

	return d, in.Handle, sender.Handle, nil
}

// noopTransmitter satisfies command.Transmitter for a Sender whose Send
// path is never used directly - Sender.Handle is invoked as a
// bridge.Handler instead, and the bridge itself performs the actual Send
// against the upstream Duplex.
type noopTransmitter struct{}

func (noopTransmitter) Send([]byte) error { return nil }

// runIndiserver wires the canonical INDI<->Redis topology (or INDI<->MQTT,
// if --mqttbroker is set, in place of Redis as the upstream's counterpart)
// - grounded on original_source/indiredis/i_to_r.py.
func runIndiserver(ctx context.Context, log logging.Logger, cfg config.Config, st store.Store, policy *blobpolicy.Policy, sink *blobsink.Sink, reg *metrics.Registry) error {
	addr := cfg.IHost + ":" + cfg.IPort
	upstream, err := transport.DialTCP(log, transport.NetworkDialer{}, "tcp", addr, 16)
	if err != nil {
		return fmt.Errorf("indi-gateway: dial indiserver %s: %w", addr, err)
	}

	reconnect := func(ctx context.Context) (transport.Duplex, error) {
		return transport.DialTCP(log, transport.NetworkDialer{}, "tcp", addr, 16)
	}

	return runUpstreamTopology(ctx, log, cfg, st, policy, sink, reg, "indi", upstream, reconnect)
}

// runDrivers wires the drivers<->Redis (or drivers<->MQTT) topology for
// every configured --driver, one Bridge per spawned subprocess - grounded
// on original_source/indiredis/d_to_r.py.
func runDrivers(ctx context.Context, log logging.Logger, cfg config.Config, st store.Store, policy *blobpolicy.Policy, sink *blobsink.Sink, reg *metrics.Registry) error {
	for _, path := range cfg.Drivers {
		driver, err := transport.StartDriver(log, path, nil, 16)
		if err != nil {
			return fmt.Errorf("indi-gateway: start driver %s: %w", path, err)
		}
		go func(name string, d transport.Duplex) {
			if err := runUpstreamTopology(ctx, log, cfg, st, driver.Policy, sink, reg, name, d, nil); err != nil {
				log.WithError(err).WithField("driver", name).Warn("indi-gateway: driver bridge stopped")
			}
		}(path, driver)
	}
	<-ctx.Done()
	return nil
}

// runUpstreamTopology pairs upstream (an INDI-frame-carrying Duplex - TCP,
// driver, or MQTT) with the store, unless --mqttbroker is set, in which
// case upstream is paired with MQTT directly instead (a raw passthrough,
// since both sides already speak the same wire frames and no store
// semantics apply).
func runUpstreamTopology(ctx context.Context, log logging.Logger, cfg config.Config, st store.Store, policy *blobpolicy.Policy, sink *blobsink.Sink, reg *metrics.Registry, name string, upstream transport.Duplex, reconnect bridgeReconnector) error {
	if cfg.MQTTBroker != "" {
		mqttClient, err := transport.DialMQTT(log, cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTToIndi, cfg.MQTTFromIndi, true, 16)
		if err != nil {
			return fmt.Errorf("indi-gateway: dial mqtt: %w", err)
		}

		handleUp := passthrough
		if snoop, err := startSnoopRelay(ctx, log, cfg, upstream); err != nil {
			log.WithError(err).Warn("indi-gateway: snoop relay disabled")
		} else if snoop != nil {
			handleUp = mirrorTo(passthrough, snoop)
		}

		br := bridge.New(log,
			bridge.Side{Name: name, Duplex: upstream, Reconnect: reconnect},
			bridge.Side{Name: "mqtt", Duplex: mqttClient},
			handleUp, passthrough, reg,
		)
		br.Run(ctx)
		return nil
	}

	d, handleUp, handleDown, err := redisSide(ctx, log, cfg, st, policy, sink, reg, name)
	if err != nil {
		return err
	}
	br := bridge.New(log,
		bridge.Side{Name: name, Duplex: upstream, Reconnect: reconnect},
		bridge.Side{Name: "redis", Duplex: d},
		handleUp, handleDown, reg,
	)
	br.Run(ctx)
	return nil
}

type bridgeReconnector = func(ctx context.Context) (transport.Duplex, error)

func passthrough(frm []byte) ([]byte, bool) { return frm, true }

// mirrorTo wraps a Handler so that, whenever it forwards a frame, a copy is
// also sent out on mirror - used to shadow every upstream->mqtt frame onto
// the snoop-data topic.
func mirrorTo(next bridge.Handler, mirror transport.Duplex) bridge.Handler {
	return func(frm []byte) ([]byte, bool) {
		fwd, ok := next(frm)
		if ok {
			_ = mirror.Send(fwd)
		}
		return fwd, ok
	}
}

// startSnoopRelay dials a second MQTT connection on the snoop-control/
// snoop-data topic pair (spec.md §6's four-topic MQTT surface) and relays
// snoop-control messages straight into upstream, so a remote client can
// issue a getProperties for a device upstream doesn't own on its own and
// have the response surface on the same stream the primary bridge already
// carries. Returns a nil Duplex, no error, if snoop topics aren't
// configured - snooping is optional ambient surface, not every deployment
// needs it.
func startSnoopRelay(ctx context.Context, log logging.Logger, cfg config.Config, upstream transport.Duplex) (transport.Duplex, error) {
	if cfg.MQTTSnoopControl == "" || cfg.MQTTSnoopData == "" {
		return nil, nil
	}
	snoop, err := transport.DialMQTT(log, cfg.MQTTBroker, cfg.MQTTClientID+"-snoop", cfg.MQTTSnoopControl, cfg.MQTTSnoopData, true, 16)
	if err != nil {
		return nil, fmt.Errorf("dial mqtt snoop topics: %w", err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-snoop.Done():
				return
			case frm, ok := <-snoop.Recv():
				if !ok {
					return
				}
				if err := upstream.Send(frm); err != nil {
					log.WithError(err).Warn("indi-gateway: forward snoop-control frame")
				}
			}
		}
	}()
	return snoop, nil
}

// runMQTTRedis wires the MQTT<->Redis topology (--clientonly with
// --mqttbroker, no local driver/indiserver connection) - grounded on
// original_source/indiredis/m_to_r.py.
func runMQTTRedis(ctx context.Context, log logging.Logger, cfg config.Config, st store.Store, policy *blobpolicy.Policy, sink *blobsink.Sink, reg *metrics.Registry) error {
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("indi-gateway: --clientonly requires --mqttbroker")
	}
	mqttClient, err := transport.DialMQTT(log, cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTToIndi, cfg.MQTTFromIndi, true, 16)
	if err != nil {
		return fmt.Errorf("indi-gateway: dial mqtt: %w", err)
	}

	d, handleUp, handleDown, err := redisSide(ctx, log, cfg, st, policy, sink, reg, "mqtt")
	if err != nil {
		return err
	}

	br := bridge.New(log,
		bridge.Side{Name: "mqtt", Duplex: mqttClient},
		bridge.Side{Name: "redis", Duplex: d},
		handleUp, handleDown, reg,
	)
	br.Run(ctx)
	return nil
}

// runListeningPort wires the MQTT<->listening-port topology: each TCP
// client accepted on --listenport is bridged, as a raw passthrough, to an
// MQTT connection dialed for that client alone (no connection is shared
// between clients) - grounded on
// original_source/indiredis/m_to_p.py.
func runListeningPort(ctx context.Context, log logging.Logger, cfg config.Config, reg *metrics.Registry) error {
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("indi-gateway: --listenport requires --mqttbroker")
	}

	ln, err := transport.Listen(log, ":"+cfg.ListenPort, 16)
	if err != nil {
		return fmt.Errorf("indi-gateway: listen: %w", err)
	}
	defer ln.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case client, ok := <-ln.Accepted():
			if !ok {
				return nil
			}
			go func(c transport.Duplex) {
				mqttClient, err := transport.DialMQTT(log, cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTFromIndi, cfg.MQTTToIndi, true, 16)
				if err != nil {
					log.WithError(err).Warn("indi-gateway: dial mqtt for accepted client")
					c.Close()
					return
				}
				br := bridge.New(log,
					bridge.Side{Name: "client", Duplex: c},
					bridge.Side{Name: "mqtt", Duplex: mqttClient},
					passthrough, passthrough, reg,
				)
				br.Run(ctx)
			}(client)
		}
	}
}
