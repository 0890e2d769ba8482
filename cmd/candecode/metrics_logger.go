package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/canbusgo/decoder/internal/metrics"
	"github.com/dustin/go-humanize"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				logMetricsSnapshot(l)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func logMetricsSnapshot(l *slog.Logger) {
	snap := metrics.Snap()
	l.Info("metrics_snapshot",
		"serial_rx", snap.SerialRx,
		"socketcan_rx", snap.SocketCANRx,
		"decoded", snap.Decoded,
		"warnings", snap.Warnings,
		"j1939_dropped", snap.J1939Dropped,
		"tcp_tx", snap.TCPTx,
		"hub_drops", snap.HubDrops,
		"hub_kicks", snap.HubKicks,
		"hub_rejects", snap.HubRejects,
		"hub_clients", snap.HubClients,
		"errors", snap.Errors,
	)
}

// summaryLine renders a one-line human-readable recap of decode activity,
// printed on exit or SIGHUP rather than the structured snapshot above.
func summaryLine() string {
	snap := metrics.Snap()
	return "decoded " + humanize.Comma(int64(snap.Decoded)) + " signals from " +
		humanize.Comma(int64(snap.SerialRx+snap.SocketCANRx)) + " frames, " +
		humanize.Comma(int64(snap.Warnings)) + " warnings, " +
		humanize.Comma(int64(snap.J1939Dropped)) + " J1939 values dropped"
}
