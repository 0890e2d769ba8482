package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/canbusgo/decoder/decoder"
	"github.com/canbusgo/decoder/internal/can"
	"github.com/canbusgo/decoder/internal/hub"
	"github.com/canbusgo/decoder/internal/metrics"
	"github.com/canbusgo/decoder/signal"
)

// toRecord converts a raw can.Frame (as produced by the serial and
// SocketCAN RX loops) into a decoder.Record, splitting the EFF flag back
// out of the compound CAN ID.
func toRecord(fr can.Frame, nowNanos int64) decoder.Record {
	ide := fr.CANID&can.CAN_EFF_FLAG != 0
	var id uint32
	if ide {
		id = fr.CANID & can.CAN_EFF_MASK
	} else {
		id = fr.CANID & can.CAN_SFF_MASK
	}
	return decoder.Record{
		TimeStamp: nowNanos,
		ID:        id,
		IDE:       ide,
		DataBytes: append([]byte(nil), fr.Data[:fr.Len]...),
	}
}

// initBackend selects the record source, starts its RX loop feeding
// records into recordCh and returns a cleanup function. It returns an
// error instead of exiting the process to allow graceful handling by the
// caller.
func initBackend(ctx context.Context, cfg *appConfig, recordCh chan<- decoder.Record, l *slog.Logger, wg *sync.WaitGroup) (func(), error) {
	switch cfg.backend {
	case "serial":
		return initSerialBackend(ctx, cfg, recordCh, l, wg)
	case "socketcan":
		return initSocketCANBackend(ctx, cfg, recordCh, l, wg)
	default:
		return func() {}, fmt.Errorf("unknown backend %q (use serial|socketcan)", cfg.backend)
	}
}

// runDecodeLoop pulls records from recordCh through a streaming decoder
// over db and broadcasts each decoded signal to h, until recordCh is
// closed. Warnings are logged; decode errors for a single record abort
// only that record (spec.md §4.5's error contract).
func runDecodeLoop(ctx context.Context, recordCh <-chan decoder.Record, db *signal.SignalDB, h *hub.Hub[decoder.DecodedSignal], l *slog.Logger, wg *sync.WaitGroup) error {
	sd, err := decoder.NewStreamDecoder(decoder.NewChanSource(recordCh), db)
	if err != nil {
		return fmt.Errorf("build stream decoder: %w", err)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("decode_loop_end")
		for {
			ds, ok, err := sd.Next()
			for _, w := range sd.Warnings() {
				if w.Kind == decoder.J1939Invalid {
					metrics.IncJ1939Dropped()
				} else {
					metrics.IncWarning(w.Kind.String())
				}
				l.Warn("decode_warning", "kind", w.Kind, "frame_id", w.FrameID, "detail", w.Detail)
			}
			if err != nil {
				metrics.IncError(metrics.ErrDecode)
				l.Warn("decode_error", "error", err)
				continue
			}
			if !ok {
				if ctx.Err() != nil {
					return
				}
				// recordCh closed with no shutdown in progress: nothing left to decode.
				return
			}
			metrics.IncDecoded()
			h.Broadcast(ds)
		}
	}()
	return nil
}
