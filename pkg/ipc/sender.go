package ipc

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/confluentinc/ducktape-core/pkg/log"
	"github.com/confluentinc/ducktape-core/pkg/metrics"
	"github.com/confluentinc/ducktape-core/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// NumRetries is the number of logical send attempts before a worker
	// gives up and exits non-zero.
	NumRetries = 3
	// RequestTimeout is the per-attempt deadline for a reply to arrive.
	RequestTimeout = 10 * time.Second
)

// Sender is the worker-side IPC endpoint: a single synchronous send(event)
// with retry. A deadline expiry closes and reopens the socket and retries
// with a freshly minted event id, matching spec.md's explicit "retries reuse
// source_id but get a new event_id" identity rule.
type Sender struct {
	addr     string
	sourceID string

	mu        sync.Mutex
	conn      net.Conn
	nextEvent int

	logger zerolog.Logger
}

// Dial connects to the supervisor's receiver endpoint.
func Dial(addr, sourceID string) (*Sender, error) {
	conn, err := net.DialTimeout("tcp", addr, RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("ipc: dial %s: %w", addr, err)
	}
	return &Sender{
		addr:     addr,
		sourceID: sourceID,
		conn:     conn,
		logger:   log.WithComponent("ipc-sender"),
	}, nil
}

// Send transmits event and waits for its reply, retrying on timeout up to
// NumRetries times with a fresh event id and a reopened connection each
// time. Returns ErrRetriesExhausted if every attempt times out.
func (s *Sender) Send(event types.Event) (types.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.SourceID = s.sourceID

	var lastErr error
	for attempt := 0; attempt < NumRetries; attempt++ {
		event.EventID = s.nextEvent
		s.nextEvent++

		reply, err := s.attempt(event)
		if err == nil {
			return reply, nil
		}

		lastErr = err
		metrics.IPCRetriesTotal.Inc()
		s.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("ipc send failed, retrying")

		if reconnectErr := s.reconnect(); reconnectErr != nil {
			lastErr = reconnectErr
			break
		}
	}

	return types.Reply{}, fmt.Errorf("%w: %v", ErrRetriesExhausted, lastErr)
}

func (s *Sender) attempt(event types.Event) (types.Reply, error) {
	if err := s.conn.SetDeadline(time.Now().Add(RequestTimeout)); err != nil {
		return types.Reply{}, err
	}
	if err := writeFrame(s.conn, event); err != nil {
		return types.Reply{}, err
	}

	var reply types.Reply
	if err := readFrame(s.conn, &reply); err != nil {
		return types.Reply{}, err
	}
	return reply, nil
}

func (s *Sender) reconnect() error {
	_ = s.conn.Close()
	conn, err := net.DialTimeout("tcp", s.addr, RequestTimeout)
	if err != nil {
		return fmt.Errorf("ipc: reconnect to %s: %w", s.addr, err)
	}
	s.conn = conn
	return nil
}

// Close closes the underlying connection.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
