package numbering

import (
	"time"

	"github.com/google/uuid"
)

// Terminal is a physical workstation with a reserved block of integer
// identifiers for offline registration. Cursor is the last issued value;
// 0 means the range has never been used.
type Terminal struct {
	ID         uuid.UUID `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	RangeStart int64     `json:"range_start"`
	RangeEnd   int64     `json:"range_end"`
	Cursor     int64     `json:"cursor"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Remaining returns how many numbers the terminal can still issue.
func (t *Terminal) Remaining() int64 {
	if t.Cursor == 0 {
		return t.RangeEnd - t.RangeStart + 1
	}
	if t.Cursor >= t.RangeEnd {
		return 0
	}
	return t.RangeEnd - t.Cursor
}

// SequenceCounter is the per-day per-prefix counter backing online
// identifier generation. Bucket is "<PREFIX>-<YYYYMMDD>".
type SequenceCounter struct {
	Bucket    string    `json:"bucket"`
	Value     int64     `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AllocateRequest selects the numbering strategy for one new record.
type AllocateRequest struct {
	Prefix             string
	Offline            bool
	OriginTerminalCode string
}

// Allocation is the outcome of one allocation: the identifier string plus
// its provenance. Terminal is nil for online identifiers. Callers must
// persist Identifier, IsOfflineEntry and the terminal reference in the same
// transaction that produced them.
type Allocation struct {
	Identifier     string
	Terminal       *Terminal
	IsOfflineEntry bool
}
