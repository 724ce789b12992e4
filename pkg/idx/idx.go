// Package idx generates the sortable identifiers used for vault records and
// login attempts.
package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type ID string

// Zero is the empty ID.
const Zero ID = ""

// ErrInvalid reports a malformed ULID string.
var ErrInvalid = errors.New("idx: invalid ulid")

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a ULID for the current UTC time. IDs generated by one process
// are strictly increasing, which keeps attempt logs in insertion order.
func New() ID {
	return NewAt(time.Now().UTC())
}

// NewAt returns a ULID carrying the given timestamp.
func NewAt(t time.Time) ID {
	mu.Lock()
	defer mu.Unlock()
	return ID(ulid.MustNew(ulid.Timestamp(t), entropy).String())
}

// Parse validates s as a canonical ULID.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalid
	}
	if _, err := ulid.ParseStrict(s); err != nil {
		return Zero, ErrInvalid
	}
	return ID(s), nil
}

func (id ID) IsZero() bool { return id == Zero }

func (id ID) String() string { return string(id) }

// Short is the random tail of the ID, handy as a log correlation key.
func (id ID) Short() string {
	if len(id) < 8 {
		return string(id)
	}
	return string(id[len(id)-8:])
}

// Time extracts the embedded timestamp, or the zero time for invalid IDs.
func (id ID) Time() time.Time {
	u, err := ulid.ParseStrict(id.String())
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time()).UTC()
}
