package eventlog

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"
)

// Event kinds recorded per session.
const (
	Connect    = "connect"
	Disconnect = "disconnect"
)

// Log is an append-only CSV record of connection events:
// session id, timestamp, remote host, remote port, event kind.
// Appends are mutex-serialized so rows from concurrent sessions never
// interleave mid-record.
type Log struct {
	mu   sync.Mutex
	path string
}

// New creates a Log writing to the given CSV file path. The file is created
// on first append.
func New(path string) *Log {
	return &Log{path: path}
}

// Record appends one event row.
func (l *Log) Record(sessionID, host string, port int, kind string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		sessionID,
		time.Now().Format(time.RFC3339),
		host,
		strconv.Itoa(port),
		kind,
	}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
