package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/canbusgo/decoder/decoder"
	"github.com/canbusgo/decoder/internal/hub"
	"github.com/canbusgo/decoder/internal/metrics"
)

// wireSignal is the NDJSON record sent to subscribers for each decoded
// signal (spec.md §6 external interface).
type wireSignal struct {
	TimeStamp     time.Time `json:"timestamp"`
	CanID         uint32    `json:"can_id"`
	Signal        string    `json:"signal"`
	Raw           int64     `json:"raw"`
	Physical      float64   `json:"physical"`
	PGN           uint32    `json:"pgn,omitempty"`
	SourceAddress uint8     `json:"source_address,omitempty"`
}

func toWire(d decoder.DecodedSignal) wireSignal {
	w := wireSignal{
		TimeStamp: d.TimeStamp,
		CanID:     d.CanID,
		Signal:    d.Signal,
		Raw:       d.SignalValueRaw,
		Physical:  d.SignalValuePhysical,
	}
	if d.HasPGN {
		w.PGN = d.PGN
		w.SourceAddress = d.SourceAddress
	}
	return w
}

// startWriter launches the goroutine pushing decoded signals to a single
// subscriber connection as newline-delimited JSON, batched on a timer.
func (s *Server) startWriter(ctxDone <-chan struct{}, conn net.Conn, cl *hub.Client[decoder.DecodedSignal], logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			_ = conn.Close()
			if s.Hub != nil {
				s.Hub.Remove(cl)
			}
			s.totalDisconnected.Add(1)
			logger.Info("client_disconnected")
		}()
		t := time.NewTicker(s.flushInterval)
		defer t.Stop()
		bw := bufio.NewWriter(conn)
		pending := 0
		enc := json.NewEncoder(bw)
		flush := func() error {
			if pending == 0 {
				return nil
			}
			n := pending
			pending = 0
			if err := bw.Flush(); err != nil {
				wrap := fmt.Errorf("%w: %v", ErrConnWrite, err)
				metrics.IncError(mapErrToMetric(wrap))
				s.setError(wrap)
				return wrap
			}
			metrics.AddTCPTx(n)
			return nil
		}
		for {
			select {
			case ds := <-cl.Out:
				if err := enc.Encode(toWire(ds)); err != nil {
					wrap := fmt.Errorf("%w: %v", ErrConnWrite, err)
					metrics.IncError(mapErrToMetric(wrap))
					s.setError(wrap)
					return
				}
				pending++
				if pending >= s.batchSize {
					if err := flush(); err != nil {
						return
					}
				}
			case <-t.C:
				if err := flush(); err != nil {
					return
				}
			case <-cl.Closed:
				_ = flush()
				return
			case <-ctxDone:
				_ = flush()
				return
			}
		}
	}()
}
