package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/canbusgo/decoder/decoder"
	"github.com/canbusgo/decoder/internal/metrics"
	"github.com/canbusgo/decoder/internal/rules"
	"github.com/canbusgo/decoder/internal/server"
)

// Helper implementations moved to dedicated files: version.go, config.go, logger.go, hub_init.go, metrics_logger.go, backend.go.

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("candecode %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)

	db, err := rules.Load(cfg.rulesFile)
	if err != nil {
		l.Error("rules_load_error", "error", err)
		return
	}
	if cfg.protocol != "" && db.Protocol() != cfg.protocol {
		l.Warn("protocol_mismatch", "rules_protocol", db.Protocol(), "flag_protocol", cfg.protocol)
	}
	l.Info("rules_loaded", "file", cfg.rulesFile, "protocol", db.Protocol(), "frames", len(db.Frames), "signals", len(db.Signals()))

	h := initHub(cfg, l)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	recordCh := make(chan decoder.Record, recordQueueSize)
	var backendWG sync.WaitGroup
	cleanup, berr := initBackend(ctx, cfg, recordCh, l, &backendWG)
	if berr != nil {
		l.Error("backend_init_error", "error", berr)
		return
	}
	if err := runDecodeLoop(ctx, recordCh, db, h, l, &wg); err != nil {
		l.Error("decode_loop_init_error", "error", err)
		cleanup()
		return
	}

	srv := server.NewServer(
		server.WithHub(h),
		server.WithLogger(l),
		server.WithMaxClients(cfg.maxClients),
		server.WithReadDeadline(cfg.clientReadTO),
	)
	srv.SetListenAddr(cfg.listenAddr)
	go func() {
		if err := srv.Serve(ctx); err != nil {
			l.Error("tcp_server_error", "error", err)
			cancel()
		}
	}()

	// Start mDNS advertisement once listener is ready.
	go func() {
		if !cfg.mdnsEnable {
			return
		}
		select {
		case <-srv.Ready():
		case <-ctx.Done():
			return
		}
		addr := srv.Addr()
		var portNum int
		if _, p, err := net.SplitHostPort(addr); err == nil {
			if pn, perr := strconv.Atoi(p); perr == nil {
				portNum = pn
			}
		}
		if portNum == 0 {
			lastColon := strings.LastIndex(addr, ":")
			if lastColon >= 0 {
				if pn, perr := strconv.Atoi(addr[lastColon+1:]); perr == nil {
					portNum = pn
				}
			}
		}
		cleanupMDNS, err := startMDNS(ctx, cfg, portNum)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", portNum)
		go func() { <-ctx.Done(); cleanupMDNS() }()
	}()

	metrics.SetReadinessFunc(func() bool {
		select {
		case <-srv.Ready():
		default:
			return false
		}
		return ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for {
		s := <-sigCh
		if s == syscall.SIGHUP {
			l.Info("summary", "counters", summaryLine())
			continue
		}
		l.Info("shutdown_signal", "signal", s.String())
		break
	}
	cancel()
	cleanup()
	backendWG.Wait() // all senders on recordCh have stopped
	close(recordCh)
	wg.Wait()
	l.Info("summary", "counters", summaryLine())
}
