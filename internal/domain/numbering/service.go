package numbering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medlab/lims/internal/platform/metrics"
)

const (
	// maxDailySequence is the per-day ceiling for online identifiers. The
	// counter never wraps past it.
	maxDailySequence = 9999

	dateLayout = "20060102"
)

type Service struct {
	terminals TerminalRepository
	counters  CounterRepository
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(terminals TerminalRepository, counters CounterRepository) *Service {
	return &Service{
		terminals: terminals,
		counters:  counters,
		now:       time.Now,
	}
}

// SetMetrics attaches optional allocation metrics to the service.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// -- Sequential Allocator --

// AllocateNext issues the next number from the named terminal range. It must
// run inside the caller's transaction: the row lock taken here is held until
// that transaction commits, which serializes concurrent allocations against
// the same range and rolls the cursor back together with the record that
// consumed the number.
func (s *Service) AllocateNext(ctx context.Context, code string) (int64, *Terminal, error) {
	t, err := s.terminals.GetActiveForUpdate(ctx, code)
	if err != nil {
		return 0, nil, err
	}

	candidate := t.RangeStart
	if t.Cursor != 0 {
		candidate = t.Cursor + 1
	}
	if candidate > t.RangeEnd {
		return 0, nil, &RangeExhaustedError{Code: t.Code, RangeStart: t.RangeStart, RangeEnd: t.RangeEnd}
	}

	if err := s.terminals.UpdateCursor(ctx, t.ID, candidate); err != nil {
		return 0, nil, err
	}
	t.Cursor = candidate
	return candidate, t, nil
}

// -- Date-Bucketed Generator --

// Generate issues the next online identifier for the given prefix, formatted
// "<PREFIX>-<YYYYMMDD>-<NNNN>". The day bucket is a single counter row locked
// for the rest of the caller's transaction, the same discipline AllocateNext
// uses on terminal rows.
func (s *Service) Generate(ctx context.Context, prefix string) (string, error) {
	bucket := fmt.Sprintf("%s-%s", prefix, s.now().Format(dateLayout))

	value, err := s.counters.GetForUpdate(ctx, bucket)
	if err != nil {
		return "", err
	}

	next := value + 1
	if next > maxDailySequence {
		return "", &DateBucketExhaustedError{Bucket: bucket}
	}

	if err := s.counters.Set(ctx, bucket, next); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d", bucket, next), nil
}

// ParseIdentifier splits a date-bucketed identifier back into its prefix,
// date and sequence parts.
func ParseIdentifier(identifier string) (prefix string, date time.Time, seq int, err error) {
	parts := strings.Split(identifier, "-")
	if len(parts) != 3 {
		return "", time.Time{}, 0, fmt.Errorf("malformed identifier %q", identifier)
	}
	date, err = time.Parse(dateLayout, parts[1])
	if err != nil {
		return "", time.Time{}, 0, fmt.Errorf("malformed date in identifier %q: %w", identifier, err)
	}
	seq, err = strconv.Atoi(parts[2])
	if err != nil {
		return "", time.Time{}, 0, fmt.Errorf("malformed sequence in identifier %q: %w", identifier, err)
	}
	return parts[0], date, seq, nil
}

// -- Allocation Orchestrator --

// Allocate picks the numbering strategy for one new record. Online requests
// go to the date-bucketed generator; offline requests draw from the named
// terminal range and return the bare decimal value. Offline identifiers carry
// no prefix: provenance lives in IsOfflineEntry and the terminal reference,
// which callers persist alongside the identifier.
func (s *Service) Allocate(ctx context.Context, req AllocateRequest) (*Allocation, error) {
	start := s.now()
	alloc, err := s.allocate(ctx, req)
	s.observe(req, alloc, err, time.Since(start))
	return alloc, err
}

func (s *Service) allocate(ctx context.Context, req AllocateRequest) (*Allocation, error) {
	if !req.Offline {
		identifier, err := s.Generate(ctx, req.Prefix)
		if err != nil {
			return nil, err
		}
		return &Allocation{Identifier: identifier}, nil
	}

	if strings.TrimSpace(req.OriginTerminalCode) == "" {
		return nil, ErrMissingRangeCode
	}

	value, terminal, err := s.AllocateNext(ctx, req.OriginTerminalCode)
	if err != nil {
		return nil, err
	}
	return &Allocation{
		Identifier:     strconv.FormatInt(value, 10),
		Terminal:       terminal,
		IsOfflineEntry: true,
	}, nil
}

func (s *Service) observe(req AllocateRequest, alloc *Allocation, err error, d time.Duration) {
	if s.metrics == nil {
		return
	}
	kind := strings.ToLower(req.Prefix)
	if kind == "" {
		kind = "range"
	}
	if err == nil {
		mode := "online"
		if alloc.IsOfflineEntry {
			mode = "offline"
		}
		s.metrics.IncrementAllocation(kind, mode)
		s.metrics.ObserveAllocateLatency(d)
		return
	}
	s.metrics.IncrementAllocationFailure(kind, failureReason(err))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingRangeCode):
		return "missing_code"
	case errors.Is(err, ErrRangeUnavailable):
		return "unavailable"
	case errors.Is(err, ErrRangeExhausted):
		return "exhausted"
	case errors.Is(err, ErrDateBucketExhausted):
		return "bucket_exhausted"
	case errors.Is(err, ErrDuplicateIdentifier):
		return "duplicate"
	default:
		return "infrastructure"
	}
}

// -- Terminal administration --

func (s *Service) CreateTerminal(ctx context.Context, t *Terminal) error {
	if err := s.validateTerminal(ctx, t, uuid.Nil); err != nil {
		return err
	}
	t.Cursor = 0
	if err := s.terminals.Create(ctx, t); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("terminal code %s already exists", t.Code)
		}
		return err
	}
	return nil
}

func (s *Service) UpdateTerminal(ctx context.Context, id uuid.UUID, t *Terminal) error {
	existing, err := s.terminals.GetByID(ctx, id)
	if err != nil {
		return err
	}
	// Code is immutable: issued identifiers reference it.
	t.Code = existing.Code
	if err := s.validateTerminal(ctx, t, id); err != nil {
		return err
	}
	existing.Name = t.Name
	existing.RangeStart = t.RangeStart
	existing.RangeEnd = t.RangeEnd
	existing.Active = t.Active
	*t = *existing
	return s.terminals.Update(ctx, existing)
}

// DeactivateTerminal soft-disables a terminal. Terminals are never deleted:
// issued identifiers keep referencing them.
func (s *Service) DeactivateTerminal(ctx context.Context, id uuid.UUID) (*Terminal, error) {
	t, err := s.terminals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Active = false
	if err := s.terminals.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) GetTerminal(ctx context.Context, id uuid.UUID) (*Terminal, error) {
	return s.terminals.GetByID(ctx, id)
}

func (s *Service) ListTerminals(ctx context.Context, limit, offset int) ([]*Terminal, int, error) {
	return s.terminals.List(ctx, limit, offset)
}

func (s *Service) validateTerminal(ctx context.Context, t *Terminal, excludeID uuid.UUID) error {
	if strings.TrimSpace(t.Code) == "" {
		return fmt.Errorf("code is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if t.RangeStart <= 0 {
		return fmt.Errorf("range_start must be positive")
	}
	if t.RangeStart >= t.RangeEnd {
		return fmt.Errorf("range_start must be less than range_end")
	}

	// Overlap is checked against every terminal, active or not, so a later
	// reactivation cannot collide with numbers issued meanwhile.
	conflict, err := s.terminals.FindOverlapping(ctx, t.RangeStart, t.RangeEnd, excludeID)
	if err != nil {
		return err
	}
	if conflict != nil {
		return &RangeOverlapError{ConflictingCode: conflict.Code}
	}
	return nil
}
