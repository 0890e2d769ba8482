package server

import (
	"log/slog"
	"net"
	"time"

	"github.com/canbusgo/decoder/decoder"
	"github.com/canbusgo/decoder/internal/hub"
)

// startReader watches a subscriber connection for closure. Subscribers are
// read-only: nothing they send is interpreted, the reader exists solely to
// notice when the client hangs up so the writer goroutine can be torn down.
func (s *Server) startReader(ctxDone <-chan struct{}, conn net.Conn, cl *hub.Client[decoder.DecodedSignal], logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		buf := make([]byte, 256)
		for {
			select {
			case <-ctxDone:
				return
			case <-cl.Closed:
				return
			default:
			}
			_ = conn.SetReadDeadline(time.Now().Add(s.readDeadline))
			if _, err := conn.Read(buf); err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				logger.Debug("client_read_closed", "error", err)
				if s.Hub != nil {
					s.Hub.Remove(cl)
				}
				return
			}
		}
	}()
}
