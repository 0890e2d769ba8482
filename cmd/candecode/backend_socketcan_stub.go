//go:build !linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/canbusgo/decoder/decoder"
)

// Placeholder so non-linux builds compile; socketcan not supported.
func initSocketCANBackend(ctx context.Context, cfg *appConfig, recordCh chan<- decoder.Record, l *slog.Logger, wg *sync.WaitGroup) (func(), error) {
	return func() {}, fmt.Errorf("socketcan backend unsupported on this platform")
}
