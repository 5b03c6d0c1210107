package ipc

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/confluentinc/ducktape-core/pkg/log"
	"github.com/confluentinc/ducktape-core/pkg/metrics"
	"github.com/confluentinc/ducktape-core/pkg/types"
	"github.com/rs/zerolog"
)

// Receiver is the supervisor-side IPC endpoint: it binds once to a random
// port within a configured range and accepts one connection per worker.
// Incoming events from every connection are funneled into a single channel
// so the run loop's single-threaded recv/handle cycle never needs to know
// how many workers are currently connected.
type Receiver struct {
	listener net.Listener
	events   chan types.Event

	mu    sync.Mutex
	conns map[string]net.Conn // source_id -> connection

	logger zerolog.Logger
}

// Listen binds a TCP listener to a random free port in [minPort, maxPort],
// trying the ports in random order until one binds, and starts accepting
// worker connections in the background.
func Listen(minPort, maxPort int) (*Receiver, error) {
	var listener net.Listener
	var lastErr error

	n := maxPort - minPort + 1
	if n < 0 {
		n = 0
	}
	for _, offset := range rand.Perm(n) {
		port := minPort + offset
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			listener = l
			break
		}
		lastErr = err
	}
	if listener == nil {
		return nil, fmt.Errorf("ipc: no free port in [%d, %d]: %w", minPort, maxPort, lastErr)
	}

	r := &Receiver{
		listener: listener,
		events:   make(chan types.Event, 64),
		conns:    make(map[string]net.Conn),
		logger:   log.WithComponent("ipc-receiver"),
	}
	go r.acceptLoop()
	return r, nil
}

// Addr returns the bound address workers should connect to.
func (r *Receiver) Addr() string {
	return r.listener.Addr().String()
}

func (r *Receiver) acceptLoop() {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			return // listener closed
		}
		go r.handleConn(conn)
	}
}

func (r *Receiver) handleConn(conn net.Conn) {
	for {
		var event types.Event
		if err := readFrame(conn, &event); err != nil {
			r.logger.Debug().Err(err).Msg("worker connection closed")
			return
		}

		r.mu.Lock()
		r.conns[event.SourceID] = conn
		r.mu.Unlock()

		metrics.IPCEventsTotal.WithLabelValues(string(event.EventType)).Inc()
		r.events <- event
	}
}

// Recv blocks until the next event arrives or timeout elapses, in which case
// it returns ErrTimeout — fatal for the run per the transport's semantics.
func (r *Receiver) Recv(timeout time.Duration) (types.Event, error) {
	select {
	case event := <-r.events:
		return event, nil
	case <-time.After(timeout):
		return types.Event{}, ErrTimeout
	}
}

// Send writes reply to the connection identified by reply.SourceID. Fails if
// no connection is known for that source (it disconnected or never sent an
// event).
func (r *Receiver) Send(reply types.Reply) error {
	r.mu.Lock()
	conn, ok := r.conns[reply.SourceID]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("ipc: no known connection for source %q", reply.SourceID)
	}
	return writeFrame(conn, reply)
}

// Close shuts down the listener and every tracked connection.
func (r *Receiver) Close() error {
	r.mu.Lock()
	for _, conn := range r.conns {
		_ = conn.Close()
	}
	r.mu.Unlock()
	return r.listener.Close()
}
