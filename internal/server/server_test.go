package server

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"rate_server/internal/domain"
	"rate_server/internal/eventlog"
	"rate_server/internal/protocol"

	"github.com/shopspring/decimal"
)

// stubResolver returns fixed quotes for whatever is asked.
type stubResolver struct {
	mu    sync.Mutex
	calls int
	rates map[string]string
}

func (r *stubResolver) Resolve(ctx context.Context, date time.Time, symbols []string) ([]domain.RateQuote, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	var quotes []domain.RateQuote
	for _, sym := range symbols {
		if rate, ok := r.rates[sym]; ok {
			quotes = append(quotes, domain.RateQuote{Date: date, Symbol: sym, Rate: decimal.RequireFromString(rate)})
		}
	}
	return quotes, nil
}

// memEvents collects event rows in memory.
type memEvents struct {
	mu   sync.Mutex
	rows [][2]string // session id, kind
}

func (m *memEvents) Record(sessionID, host string, port int, kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, [2]string{sessionID, kind})
	return nil
}

func (m *memEvents) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r[1])
	}
	return out
}

func startTestServer(t *testing.T, resolver Resolver, events EventRecorder) *Supervisor {
	t.Helper()

	if events == nil {
		events = &memEvents{}
	}
	sup := NewSupervisor("127.0.0.1:0", resolver, events, &ConnCounter{}, nil)
	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("failed to start supervisor: %v", err)
	}
	t.Cleanup(sup.Stop)
	return sup
}

func dialTestServer(t *testing.T, sup *Supervisor) (net.Conn, *bufio.Reader) {
	t.Helper()

	conn, err := net.Dial("tcp", sup.Addr().String())
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn, bufio.NewReader(conn)
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read response line: %v", err)
	}
	return line[:len(line)-1]
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSessionProtocolFlow(t *testing.T) {
	resolver := &stubResolver{rates: map[string]string{"USD": "1.00", "EUR": "0.92"}}
	sup := startTestServer(t, resolver, nil)

	client, reader := dialTestServer(t, sup)
	if got := readLine(t, reader); got != protocol.Greeting {
		t.Fatalf("greeting = %q", got)
	}

	// Malformed line keeps the connection open.
	client.Write([]byte("nonsense\n"))
	if got := readLine(t, reader); got != protocol.MsgInvalidFormat {
		t.Errorf("response = %q, want %q", got, protocol.MsgInvalidFormat)
	}

	// Well-formed but unknown command.
	client.Write([]byte("FETCH 2023-01-01 USD\n"))
	if got := readLine(t, reader); got != protocol.MsgInvalidName {
		t.Errorf("response = %q, want %q", got, protocol.MsgInvalidName)
	}

	// Valid GET: one line per resolved quote, in resolver order.
	client.Write([]byte("GET 2023-01-01 USD,EUR\n"))
	if got := readLine(t, reader); got != "USD: 1" {
		t.Errorf("first line = %q, want %q", got, "USD: 1")
	}
	if got := readLine(t, reader); got != "EUR: 0.92" {
		t.Errorf("second line = %q, want %q", got, "EUR: 0.92")
	}

	// Nothing resolvable: an empty response, not an error string.
	client.Write([]byte("GET 2023-01-01 XXX\n"))
	if got := readLine(t, reader); got != "" {
		t.Errorf("response = %q, want empty", got)
	}
}

func TestSessionEventsAndCounter(t *testing.T) {
	events := &memEvents{}
	resolver := &stubResolver{}
	sup := startTestServer(t, resolver, events)

	conn, r := dialTestServer(t, sup)
	readLine(t, r)

	waitFor(t, func() bool { return sup.Connections() == 1 }, "counter never reached 1")

	conn.Close()
	waitFor(t, func() bool { return sup.Connections() == 0 }, "counter never returned to 0")

	kinds := events.kinds()
	if len(kinds) != 2 || kinds[0] != eventlog.Connect || kinds[1] != eventlog.Disconnect {
		t.Errorf("events = %v, want [connect disconnect]", kinds)
	}

	events.mu.Lock()
	defer events.mu.Unlock()
	if events.rows[0][0] != events.rows[1][0] {
		t.Error("connect and disconnect must carry the same session id")
	}
}

func TestSupervisorStopForceClosesSessions(t *testing.T) {
	events := &memEvents{}
	sup := startTestServer(t, &stubResolver{}, events)

	conn, r := dialTestServer(t, sup)
	readLine(t, r)
	waitFor(t, func() bool { return sup.Connections() == 1 }, "counter never reached 1")

	sup.Stop()

	// The peer observes the cut connection.
	if _, err := r.ReadString('\n'); err == nil {
		t.Error("expected read to fail after forced stop")
	}
	conn.Close()

	if sup.Connections() != 0 {
		t.Errorf("counter = %d after stop, want 0", sup.Connections())
	}

	kinds := events.kinds()
	disconnects := 0
	for _, k := range kinds {
		if k == eventlog.Disconnect {
			disconnects++
		}
	}
	if disconnects != 1 {
		t.Errorf("disconnect events = %d, want exactly 1", disconnects)
	}
}

func TestConnCounter(t *testing.T) {
	var c ConnCounter

	const m, n = 200, 150
	var wg sync.WaitGroup
	for i := 0; i < m; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); c.Inc() }()
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); c.Dec() }()
	}
	wg.Wait()

	if c.Value() != m-n {
		t.Errorf("counter = %d after %d connects and %d disconnects, want %d", c.Value(), m, n, m-n)
	}
}

func TestConcurrentSessions(t *testing.T) {
	resolver := &stubResolver{rates: map[string]string{"USD": "1.00"}}
	sup := startTestServer(t, resolver, nil)

	const k = 8
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			conn, err := net.Dial("tcp", sup.Addr().String())
			if err != nil {
				t.Errorf("dial failed: %v", err)
				return
			}
			defer conn.Close()
			conn.SetDeadline(time.Now().Add(5 * time.Second))

			r := bufio.NewReader(conn)
			if _, err := r.ReadString('\n'); err != nil {
				t.Errorf("greeting read failed: %v", err)
				return
			}

			conn.Write([]byte("GET 2023-01-01 USD\n"))
			line, err := r.ReadString('\n')
			if err != nil {
				t.Errorf("response read failed: %v", err)
				return
			}
			if line != "USD: 1\n" {
				t.Errorf("response = %q, want %q", line, "USD: 1\n")
			}
		}()
	}
	wg.Wait()

	waitFor(t, func() bool { return sup.Connections() == 0 }, "counter never drained")
}
