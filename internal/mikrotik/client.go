package mikrotik

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-routeros/routeros/v3"
)

// Sentinel causes distinguished by the connector so callers can produce
// the right user-facing message.
var (
	ErrUnreachable = errors.New("could not reach device")
	ErrAuthFailed  = errors.New("authentication rejected")
)

// Session is one authenticated RouterOS API connection, good for a
// single logical unit of work. Callers own the lifecycle and must close
// it on every exit path.
type Session interface {
	Run(args ...string) (*routeros.Reply, error)
	Close() error
}

// Connector opens authenticated sessions against the RouterOS API.
type Connector interface {
	Connect(ctx context.Context, addr, username, password string) (Session, error)
}

type apiSession struct {
	client *routeros.Client

	mu     sync.Mutex
	closed bool
}

func (s *apiSession) Run(args ...string) (*routeros.Reply, error) {
	return s.client.RunArgs(args)
}

// Close is idempotent; a session already closed is a no-op.
func (s *apiSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// APIConnector dials the RouterOS binary API with a bounded total wait
// time covering both the TCP handshake and the login exchange.
type APIConnector struct {
	Timeout time.Duration
}

func NewAPIConnector(timeout time.Duration) *APIConnector {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIConnector{Timeout: timeout}
}

func (c *APIConnector) Connect(ctx context.Context, addr, username, password string) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	type dialResult struct {
		client *routeros.Client
		err    error
	}
	resultCh := make(chan dialResult, 1)

	go func() {
		dialer := &net.Dialer{Timeout: c.Timeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			resultCh <- dialResult{nil, fmt.Errorf("%w: %v", ErrUnreachable, err)}
			return
		}

		client, err := routeros.NewClient(conn)
		if err != nil {
			conn.Close()
			resultCh <- dialResult{nil, fmt.Errorf("%w: %v", ErrUnreachable, err)}
			return
		}

		if err := client.Login(username, password); err != nil {
			client.Close()
			resultCh <- dialResult{nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)}
			return
		}

		resultCh <- dialResult{client, nil}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		return &apiSession{client: res.client}, nil
	case <-ctx.Done():
		// The dial goroutine will observe the canceled context or fail
		// its login and clean up after itself.
		go func() {
			if res := <-resultCh; res.client != nil {
				res.client.Close()
			}
		}()
		return nil, fmt.Errorf("%w: connect timeout after %s", ErrUnreachable, c.Timeout)
	}
}

// APIAddr joins a device IP with the RouterOS API port.
func APIAddr(ip string, port int) string {
	if port <= 0 {
		port = 8728 // Default RouterOS API port
	}
	return net.JoinHostPort(strings.TrimSpace(ip), fmt.Sprintf("%d", port))
}
