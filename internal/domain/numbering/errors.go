package numbering

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors for the allocation subsystem. Callers match with errors.Is;
// the structured variants below carry range detail for logging and audit.
var (
	ErrMissingRangeCode    = errors.New("offline allocation requires a terminal code")
	ErrRangeUnavailable    = errors.New("terminal range not found or inactive")
	ErrRangeExhausted      = errors.New("terminal range exhausted")
	ErrDateBucketExhausted = errors.New("daily sequence exhausted")
	ErrDuplicateIdentifier = errors.New("identifier already exists")
	ErrRangeOverlap        = errors.New("range bounds overlap an existing terminal")
	ErrNotFound            = errors.New("terminal not found")
)

// RangeExhaustedError reports which terminal ran out of numbers and its bounds.
type RangeExhaustedError struct {
	Code       string
	RangeStart int64
	RangeEnd   int64
}

func (e *RangeExhaustedError) Error() string {
	return fmt.Sprintf("terminal %s exhausted its range [%d, %d]", e.Code, e.RangeStart, e.RangeEnd)
}

func (e *RangeExhaustedError) Is(target error) bool { return target == ErrRangeExhausted }

// DateBucketExhaustedError reports which day bucket hit the 9999 ceiling.
type DateBucketExhaustedError struct {
	Bucket string
}

func (e *DateBucketExhaustedError) Error() string {
	return fmt.Sprintf("sequence for bucket %s exhausted at %d", e.Bucket, maxDailySequence)
}

func (e *DateBucketExhaustedError) Is(target error) bool { return target == ErrDateBucketExhausted }

// RangeOverlapError reports the first terminal whose bounds conflict.
type RangeOverlapError struct {
	ConflictingCode string
}

func (e *RangeOverlapError) Error() string {
	return fmt.Sprintf("range overlaps terminal %s", e.ConflictingCode)
}

func (e *RangeOverlapError) Is(target error) bool { return target == ErrRangeOverlap }

// TranslateDuplicate converts a unique constraint violation into
// ErrDuplicateIdentifier. Every other error passes through untouched so
// infrastructure failures keep their original shape. Duplicates are never
// retried here: they indicate overlapping ranges or an offline record synced
// twice, both of which need operator attention.
func TranslateDuplicate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w (constraint %s)", ErrDuplicateIdentifier, pgErr.ConstraintName)
	}
	return err
}
