package protocol

import (
	"regexp"
	"strings"
	"time"

	"rate_server/internal/domain"
)

// Wire protocol literals. The greeting is sent once per connection; the two
// error strings are the only failure text a client ever sees.
const (
	Greeting         = "Connected to the Rate Server"
	MsgInvalidFormat = "Invalid Command Format"
	MsgInvalidName   = "Invalid Command Name"

	// CommandGet is the only dispatchable command name.
	CommandGet = "GET"
)

var (
	commandRegex = regexp.MustCompile(`^([A-Z]+) ([0-9]{4}-[0-9]{2}-[0-9]{2}) ([A-Z,:;|]+)$`)
	symbolSplit  = regexp.MustCompile(`[,:;|]`)
)

// Request is one decoded client command. Immutable after Decode; discarded
// once the response is sent.
type Request struct {
	Name    string
	Date    time.Time
	Symbols []string
}

// Decode parses one client line into a Request.
//
// A valid line is exactly: an uppercase command name, a space, a
// YYYY-MM-DD date, a space, and a non-empty symbols field of uppercase
// letters separated by any of , : ; | with no trailing content. Any
// deviation yields domain.ErrInvalidFormat. A command name other than GET
// still decodes; rejecting it is the dispatcher's job.
func Decode(line string) (*Request, error) {
	m := commandRegex.FindStringSubmatch(line)
	if m == nil {
		return nil, domain.ErrInvalidFormat
	}

	date, err := time.Parse(domain.DateLayout, m[2])
	if err != nil {
		return nil, domain.ErrInvalidFormat
	}

	symbols := symbolSplit.Split(m[3], -1)
	for _, s := range symbols {
		if s == "" {
			return nil, domain.ErrInvalidFormat
		}
	}

	return &Request{Name: m[1], Date: date, Symbols: symbols}, nil
}

// Encode renders quotes as newline-joined "SYMBOL: RATE" lines, preserving
// the order the resolver supplied. An empty slice encodes to "".
func Encode(quotes []domain.RateQuote) string {
	if len(quotes) == 0 {
		return ""
	}

	lines := make([]string, 0, len(quotes))
	for _, q := range quotes {
		lines = append(lines, q.Symbol+": "+q.Rate.String())
	}
	return strings.Join(lines, "\n")
}
