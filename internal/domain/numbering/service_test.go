package numbering

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// mockTerminalRepo mirrors the row-lock semantics of the Postgres repo: a
// GetActiveForUpdate holds the terminal's lock until UpdateCursor releases
// it, so concurrent allocations against the same code serialize exactly the
// way FOR UPDATE serializes them.
type mockTerminalRepo struct {
	mu        sync.Mutex
	terminals map[string]*Terminal
	locks     map[string]*sync.Mutex
	calls     int
}

func newMockTerminalRepo(terminals ...*Terminal) *mockTerminalRepo {
	r := &mockTerminalRepo{
		terminals: make(map[string]*Terminal),
		locks:     make(map[string]*sync.Mutex),
	}
	for _, t := range terminals {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		r.terminals[t.Code] = t
		r.locks[t.Code] = &sync.Mutex{}
	}
	return r
}

func (r *mockTerminalRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *mockTerminalRepo) Create(ctx context.Context, t *Terminal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.terminals[t.Code]; ok {
		return &pgconn.PgError{Code: "23505", ConstraintName: "lab_terminals_code_key"}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	r.terminals[t.Code] = &cp
	r.locks[t.Code] = &sync.Mutex{}
	return nil
}

func (r *mockTerminalRepo) Update(ctx context.Context, t *Terminal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.terminals {
		if existing.ID == t.ID {
			existing.Name = t.Name
			existing.RangeStart = t.RangeStart
			existing.RangeEnd = t.RangeEnd
			existing.Active = t.Active
			return nil
		}
	}
	return ErrNotFound
}

func (r *mockTerminalRepo) GetByID(ctx context.Context, id uuid.UUID) (*Terminal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.terminals {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *mockTerminalRepo) GetByCode(ctx context.Context, code string) (*Terminal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.terminals[code]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r *mockTerminalRepo) GetActiveForUpdate(ctx context.Context, code string) (*Terminal, error) {
	r.mu.Lock()
	r.calls++
	t, ok := r.terminals[code]
	if !ok || !t.Active {
		r.mu.Unlock()
		return nil, ErrRangeUnavailable
	}
	lock := r.locks[code]
	r.mu.Unlock()

	lock.Lock()

	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.terminals[code]
	return &cp, nil
}

func (r *mockTerminalRepo) UpdateCursor(ctx context.Context, id uuid.UUID, cursor int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for code, t := range r.terminals {
		if t.ID == id {
			t.Cursor = cursor
			r.locks[code].Unlock()
			return nil
		}
	}
	return ErrNotFound
}

func (r *mockTerminalRepo) List(ctx context.Context, limit, offset int) ([]*Terminal, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*Terminal
	for _, t := range r.terminals {
		cp := *t
		items = append(items, &cp)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Code < items[j].Code })
	return items, len(items), nil
}

func (r *mockTerminalRepo) FindOverlapping(ctx context.Context, start, end int64, excludeID uuid.UUID) (*Terminal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var codes []string
	for code := range r.terminals {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		t := r.terminals[code]
		if t.ID == excludeID {
			continue
		}
		if t.RangeStart <= end && t.RangeEnd >= start {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

// mockCounterRepo applies the same lock discipline to day buckets.
type mockCounterRepo struct {
	mu     sync.Mutex
	values map[string]int64
	locks  map[string]*sync.Mutex
	calls  int
}

func newMockCounterRepo() *mockCounterRepo {
	return &mockCounterRepo{
		values: make(map[string]int64),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (r *mockCounterRepo) seed(bucket string, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[bucket] = value
	r.locks[bucket] = &sync.Mutex{}
}

func (r *mockCounterRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *mockCounterRepo) GetForUpdate(ctx context.Context, bucket string) (int64, error) {
	r.mu.Lock()
	r.calls++
	if _, ok := r.values[bucket]; !ok {
		r.values[bucket] = 0
		r.locks[bucket] = &sync.Mutex{}
	}
	lock := r.locks[bucket]
	r.mu.Unlock()

	lock.Lock()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[bucket], nil
}

func (r *mockCounterRepo) Set(ctx context.Context, bucket string, value int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[bucket] = value
	r.locks[bucket].Unlock()
	return nil
}

func newTestService(terminals *mockTerminalRepo, counters *mockCounterRepo) *Service {
	svc := NewService(terminals, counters)
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

// -- Sequential Allocator --

func TestAllocateNext_FirstAllocationStartsAtRangeStart(t *testing.T) {
	repo := newMockTerminalRepo(&Terminal{Code: "LAB1-PC", Name: "Front desk", RangeStart: 710000, RangeEnd: 719999, Active: true})
	svc := newTestService(repo, newMockCounterRepo())

	value, terminal, err := svc.AllocateNext(context.Background(), "LAB1-PC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 710000 {
		t.Errorf("expected first value 710000, got %d", value)
	}
	if terminal.Cursor != 710000 {
		t.Errorf("expected cursor 710000, got %d", terminal.Cursor)
	}

	stored, _ := repo.GetByCode(context.Background(), "LAB1-PC")
	if stored.Cursor != 710000 {
		t.Errorf("expected persisted cursor 710000, got %d", stored.Cursor)
	}
}

func TestAllocateNext_SequentialValues(t *testing.T) {
	repo := newMockTerminalRepo(&Terminal{Code: "LAB1-PC", Name: "Front desk", RangeStart: 710000, RangeEnd: 719999, Active: true})
	svc := newTestService(repo, newMockCounterRepo())

	want := []int64{710000, 710001, 710002}
	for i, expected := range want {
		value, _, err := svc.AllocateNext(context.Background(), "LAB1-PC")
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if value != expected {
			t.Errorf("call %d: expected %d, got %d", i, expected, value)
		}
	}
}

func TestAllocateNext_ExhaustionBoundary(t *testing.T) {
	repo := newMockTerminalRepo(&Terminal{Code: "LAB2-PC", Name: "Back office", RangeStart: 800000, RangeEnd: 800002, Cursor: 800001, Active: true})
	svc := newTestService(repo, newMockCounterRepo())

	value, _, err := svc.AllocateNext(context.Background(), "LAB2-PC")
	if err != nil {
		t.Fatalf("unexpected error at cursor range_end-1: %v", err)
	}
	if value != 800002 {
		t.Errorf("expected last value 800002, got %d", value)
	}

	_, _, err = svc.AllocateNext(context.Background(), "LAB2-PC")
	if !errors.Is(err, ErrRangeExhausted) {
		t.Fatalf("expected ErrRangeExhausted, got %v", err)
	}

	var exhausted *RangeExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *RangeExhaustedError, got %T", err)
	}
	if exhausted.Code != "LAB2-PC" || exhausted.RangeStart != 800000 || exhausted.RangeEnd != 800002 {
		t.Errorf("exhaustion error missing detail: %+v", exhausted)
	}

	stored, _ := repo.GetByCode(context.Background(), "LAB2-PC")
	if stored.Cursor != 800002 {
		t.Errorf("expected cursor unchanged at 800002, got %d", stored.Cursor)
	}
}

func TestAllocateNext_ConcurrentDistinctContiguous(t *testing.T) {
	const n = 50
	repo := newMockTerminalRepo(&Terminal{Code: "LAB1-PC", Name: "Front desk", RangeStart: 710000, RangeEnd: 719999, Active: true})
	svc := newTestService(repo, newMockCounterRepo())

	values := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value, _, err := svc.AllocateNext(context.Background(), "LAB1-PC")
			if err != nil {
				t.Errorf("goroutine %d: unexpected error: %v", i, err)
				return
			}
			values[i] = value
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for _, v := range values {
		if seen[v] {
			t.Errorf("duplicate value %d", v)
		}
		seen[v] = true
		if v < 710000 || v > 710000+n-1 {
			t.Errorf("value %d outside contiguous set [710000, %d]", v, 710000+n-1)
		}
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct values, got %d", n, len(seen))
	}
}

func TestAllocateNext_RangesDoNotInterfere(t *testing.T) {
	const n = 20
	repo := newMockTerminalRepo(
		&Terminal{Code: "LAB1-PC", Name: "Front desk", RangeStart: 710000, RangeEnd: 719999, Active: true},
		&Terminal{Code: "LAB2-PC", Name: "Back office", RangeStart: 720000, RangeEnd: 729999, Active: true},
	)
	svc := newTestService(repo, newMockCounterRepo())

	results := make(map[string][]int64)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, code := range []string{"LAB1-PC", "LAB2-PC"} {
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(code string) {
				defer wg.Done()
				value, terminal, err := svc.AllocateNext(context.Background(), code)
				if err != nil {
					t.Errorf("%s: unexpected error: %v", code, err)
					return
				}
				if terminal.Code != code {
					t.Errorf("expected terminal %s, got %s", code, terminal.Code)
				}
				mu.Lock()
				results[code] = append(results[code], value)
				mu.Unlock()
			}(code)
		}
	}
	wg.Wait()

	bounds := map[string][2]int64{
		"LAB1-PC": {710000, 719999},
		"LAB2-PC": {720000, 729999},
	}
	for code, values := range results {
		if len(values) != n {
			t.Errorf("%s: expected %d values, got %d", code, n, len(values))
		}
		lo, hi := bounds[code][0], bounds[code][1]
		for _, v := range values {
			if v < lo || v > hi {
				t.Errorf("%s: value %d outside its range [%d, %d]", code, v, lo, hi)
			}
		}
	}
}

// -- Date-Bucketed Generator --

func TestGenerate_FirstOfDay(t *testing.T) {
	counters := newMockCounterRepo()
	svc := newTestService(newMockTerminalRepo(), counters)

	id, err := svc.Generate(context.Background(), "PAT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "PAT-20250115-0001" {
		t.Errorf("expected PAT-20250115-0001, got %s", id)
	}
}

func TestGenerate_ContinuesSequence(t *testing.T) {
	counters := newMockCounterRepo()
	counters.seed("PAT-20250115", 7)
	svc := newTestService(newMockTerminalRepo(), counters)

	id, err := svc.Generate(context.Background(), "PAT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "PAT-20250115-0008" {
		t.Errorf("expected PAT-20250115-0008, got %s", id)
	}
}

func TestGenerate_BucketExhausted(t *testing.T) {
	counters := newMockCounterRepo()
	counters.seed("ORD-20250115", 9999)
	svc := newTestService(newMockTerminalRepo(), counters)

	_, err := svc.Generate(context.Background(), "ORD")
	if !errors.Is(err, ErrDateBucketExhausted) {
		t.Fatalf("expected ErrDateBucketExhausted, got %v", err)
	}

	var exhausted *DateBucketExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *DateBucketExhaustedError, got %T", err)
	}
	if exhausted.Bucket != "ORD-20250115" {
		t.Errorf("expected bucket ORD-20250115, got %s", exhausted.Bucket)
	}
}

func TestGenerate_ConcurrentDistinct(t *testing.T) {
	const n = 30
	counters := newMockCounterRepo()
	svc := newTestService(newMockTerminalRepo(), counters)

	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := svc.Generate(context.Background(), "SAM")
			if err != nil {
				t.Errorf("goroutine %d: unexpected error: %v", i, err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate identifier %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct identifiers, got %d", n, len(seen))
	}
}

func TestParseIdentifier_RoundTrip(t *testing.T) {
	prefix, date, seq, err := ParseIdentifier("PAT-20250115-0007")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prefix != "PAT" {
		t.Errorf("expected prefix PAT, got %s", prefix)
	}
	if date.Year() != 2025 || date.Month() != time.January || date.Day() != 15 {
		t.Errorf("expected date 2025-01-15, got %v", date)
	}
	if seq != 7 {
		t.Errorf("expected sequence 7, got %d", seq)
	}
}

func TestParseIdentifier_Malformed(t *testing.T) {
	for _, id := range []string{"", "PAT", "PAT-20250115", "PAT-notadate-0007", "PAT-20250115-abcd"} {
		if _, _, _, err := ParseIdentifier(id); err == nil {
			t.Errorf("expected error for %q", id)
		}
	}
}

// -- Allocation Orchestrator --

func TestAllocate_OnlineDelegatesToGenerator(t *testing.T) {
	terminals := newMockTerminalRepo(&Terminal{Code: "LAB1-PC", Name: "Front desk", RangeStart: 710000, RangeEnd: 719999, Active: true})
	counters := newMockCounterRepo()
	svc := newTestService(terminals, counters)

	alloc, err := svc.Allocate(context.Background(), AllocateRequest{Prefix: "PAT", Offline: false, OriginTerminalCode: "LAB1-PC"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alloc.Identifier != "PAT-20250115-0001" {
		t.Errorf("expected PAT-20250115-0001, got %s", alloc.Identifier)
	}
	if alloc.IsOfflineEntry {
		t.Error("expected IsOfflineEntry false for online allocation")
	}
	if alloc.Terminal != nil {
		t.Error("expected nil terminal for online allocation")
	}
	if terminals.callCount() != 0 {
		t.Errorf("online allocation touched terminal ranges %d times", terminals.callCount())
	}
}

func TestAllocate_OfflineFirstValue(t *testing.T) {
	terminals := newMockTerminalRepo(&Terminal{Code: "LAB1-PC", Name: "Front desk", RangeStart: 710000, RangeEnd: 719999, Active: true})
	counters := newMockCounterRepo()
	svc := newTestService(terminals, counters)

	alloc, err := svc.Allocate(context.Background(), AllocateRequest{Prefix: "PAT", Offline: true, OriginTerminalCode: "LAB1-PC"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alloc.Identifier != "710000" {
		t.Errorf("expected bare decimal 710000, got %s", alloc.Identifier)
	}
	if !alloc.IsOfflineEntry {
		t.Error("expected IsOfflineEntry true")
	}
	if alloc.Terminal == nil || alloc.Terminal.Code != "LAB1-PC" {
		t.Errorf("expected terminal LAB1-PC in allocation, got %+v", alloc.Terminal)
	}
	if counters.callCount() != 0 {
		t.Errorf("offline allocation touched day buckets %d times", counters.callCount())
	}
}

func TestAllocate_OfflineSequential(t *testing.T) {
	terminals := newMockTerminalRepo(&Terminal{Code: "LAB1-PC", Name: "Front desk", RangeStart: 710000, RangeEnd: 719999, Active: true})
	svc := newTestService(terminals, newMockCounterRepo())

	want := []string{"710000", "710001", "710002"}
	for i, expected := range want {
		alloc, err := svc.Allocate(context.Background(), AllocateRequest{Offline: true, OriginTerminalCode: "LAB1-PC"})
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if alloc.Identifier != expected {
			t.Errorf("call %d: expected %s, got %s", i, expected, alloc.Identifier)
		}
	}
}

func TestAllocate_OfflineExhausted(t *testing.T) {
	terminals := newMockTerminalRepo(&Terminal{Code: "LAB2-PC", Name: "Back office", RangeStart: 800000, RangeEnd: 800002, Cursor: 800002, Active: true})
	svc := newTestService(terminals, newMockCounterRepo())

	_, err := svc.Allocate(context.Background(), AllocateRequest{Offline: true, OriginTerminalCode: "LAB2-PC"})
	if !errors.Is(err, ErrRangeExhausted) {
		t.Fatalf("expected ErrRangeExhausted, got %v", err)
	}

	stored, _ := terminals.GetByCode(context.Background(), "LAB2-PC")
	if stored.Cursor != 800002 {
		t.Errorf("expected cursor unchanged at 800002, got %d", stored.Cursor)
	}
}

func TestAllocate_OfflineMissingCode(t *testing.T) {
	terminals := newMockTerminalRepo(&Terminal{Code: "LAB1-PC", Name: "Front desk", RangeStart: 710000, RangeEnd: 719999, Active: true})
	svc := newTestService(terminals, newMockCounterRepo())

	for _, code := range []string{"", "   "} {
		_, err := svc.Allocate(context.Background(), AllocateRequest{Offline: true, OriginTerminalCode: code})
		if !errors.Is(err, ErrMissingRangeCode) {
			t.Fatalf("expected ErrMissingRangeCode for code %q, got %v", code, err)
		}
	}
	if terminals.callCount() != 0 {
		t.Errorf("missing-code failure touched terminal ranges %d times", terminals.callCount())
	}
}

func TestAllocate_InactiveIndistinguishableFromMissing(t *testing.T) {
	terminals := newMockTerminalRepo(&Terminal{Code: "LAB3-PC", Name: "Retired", RangeStart: 730000, RangeEnd: 739999, Active: false})
	svc := newTestService(terminals, newMockCounterRepo())

	_, errInactive := svc.Allocate(context.Background(), AllocateRequest{Offline: true, OriginTerminalCode: "LAB3-PC"})
	_, errMissing := svc.Allocate(context.Background(), AllocateRequest{Offline: true, OriginTerminalCode: "NO-SUCH-PC"})

	if !errors.Is(errInactive, ErrRangeUnavailable) {
		t.Errorf("expected ErrRangeUnavailable for inactive terminal, got %v", errInactive)
	}
	if !errors.Is(errMissing, ErrRangeUnavailable) {
		t.Errorf("expected ErrRangeUnavailable for missing terminal, got %v", errMissing)
	}
	if errInactive.Error() != errMissing.Error() {
		t.Errorf("inactive and missing must be indistinguishable: %q vs %q", errInactive, errMissing)
	}
}

// -- Terminal administration --

func TestCreateTerminal_Valid(t *testing.T) {
	repo := newMockTerminalRepo()
	svc := newTestService(repo, newMockCounterRepo())

	term := &Terminal{Code: "LAB1-PC", Name: "Front desk", RangeStart: 710000, RangeEnd: 719999, Active: true}
	if err := svc.CreateTerminal(context.Background(), term); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if term.Cursor != 0 {
		t.Errorf("expected new terminal cursor 0, got %d", term.Cursor)
	}
}

func TestCreateTerminal_InvalidBounds(t *testing.T) {
	svc := newTestService(newMockTerminalRepo(), newMockCounterRepo())

	cases := []*Terminal{
		{Code: "A", Name: "a", RangeStart: 100, RangeEnd: 100},
		{Code: "B", Name: "b", RangeStart: 200, RangeEnd: 100},
		{Code: "C", Name: "c", RangeStart: 0, RangeEnd: 100},
		{Code: "", Name: "d", RangeStart: 1, RangeEnd: 100},
		{Code: "E", Name: "", RangeStart: 1, RangeEnd: 100},
	}
	for _, tc := range cases {
		if err := svc.CreateTerminal(context.Background(), tc); err == nil {
			t.Errorf("expected validation error for %+v", tc)
		}
	}
}

func TestCreateTerminal_OverlapReportsConflictingCode(t *testing.T) {
	repo := newMockTerminalRepo(&Terminal{Code: "LAB1-PC", Name: "Front desk", RangeStart: 710000, RangeEnd: 719999, Active: true})
	svc := newTestService(repo, newMockCounterRepo())

	err := svc.CreateTerminal(context.Background(), &Terminal{Code: "LAB2-PC", Name: "Back office", RangeStart: 715000, RangeEnd: 725000, Active: true})
	if !errors.Is(err, ErrRangeOverlap) {
		t.Fatalf("expected ErrRangeOverlap, got %v", err)
	}

	var overlap *RangeOverlapError
	if !errors.As(err, &overlap) {
		t.Fatalf("expected *RangeOverlapError, got %T", err)
	}
	if overlap.ConflictingCode != "LAB1-PC" {
		t.Errorf("expected conflicting code LAB1-PC, got %s", overlap.ConflictingCode)
	}
}

func TestCreateTerminal_OverlapAgainstInactive(t *testing.T) {
	repo := newMockTerminalRepo(&Terminal{Code: "OLD-PC", Name: "Retired", RangeStart: 710000, RangeEnd: 719999, Active: false})
	svc := newTestService(repo, newMockCounterRepo())

	err := svc.CreateTerminal(context.Background(), &Terminal{Code: "NEW-PC", Name: "New", RangeStart: 710000, RangeEnd: 710100, Active: true})
	if !errors.Is(err, ErrRangeOverlap) {
		t.Fatalf("expected overlap against inactive terminal, got %v", err)
	}
}

func TestUpdateTerminal_CodeImmutable(t *testing.T) {
	repo := newMockTerminalRepo(&Terminal{Code: "LAB1-PC", Name: "Front desk", RangeStart: 710000, RangeEnd: 719999, Active: true})
	svc := newTestService(repo, newMockCounterRepo())

	existing, _ := repo.GetByCode(context.Background(), "LAB1-PC")
	upd := &Terminal{Code: "RENAMED", Name: "Front desk 2", RangeStart: 710000, RangeEnd: 719999, Active: true}
	if err := svc.UpdateTerminal(context.Background(), existing.ID, upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.Code != "LAB1-PC" {
		t.Errorf("expected code to stay LAB1-PC, got %s", upd.Code)
	}
}

func TestDeactivateTerminal(t *testing.T) {
	repo := newMockTerminalRepo(&Terminal{Code: "LAB1-PC", Name: "Front desk", RangeStart: 710000, RangeEnd: 719999, Active: true})
	svc := newTestService(repo, newMockCounterRepo())

	existing, _ := repo.GetByCode(context.Background(), "LAB1-PC")
	deactivated, err := svc.DeactivateTerminal(context.Background(), existing.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deactivated.Active {
		t.Error("expected terminal to be inactive")
	}

	_, err = svc.Allocate(context.Background(), AllocateRequest{Offline: true, OriginTerminalCode: "LAB1-PC"})
	if !errors.Is(err, ErrRangeUnavailable) {
		t.Errorf("expected deactivated terminal to be unavailable, got %v", err)
	}
}

// -- Uniqueness guard --

func TestTranslateDuplicate(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "patients_mrn_key"}
	err := TranslateDuplicate(fmt.Errorf("insert patient: %w", pgErr))
	if !errors.Is(err, ErrDuplicateIdentifier) {
		t.Errorf("expected ErrDuplicateIdentifier, got %v", err)
	}

	other := &pgconn.PgError{Code: "23503"}
	if err := TranslateDuplicate(other); errors.Is(err, ErrDuplicateIdentifier) {
		t.Error("foreign key violation must not translate to duplicate identifier")
	}

	plain := errors.New("connection reset")
	if got := TranslateDuplicate(plain); got != plain {
		t.Errorf("infrastructure errors must pass through, got %v", got)
	}

	if TranslateDuplicate(nil) != nil {
		t.Error("nil must stay nil")
	}
}

func TestTerminal_Remaining(t *testing.T) {
	tests := []struct {
		cursor int64
		want   int64
	}{
		{0, 10000},
		{710000, 9999},
		{719998, 1},
		{719999, 0},
	}
	for _, tt := range tests {
		term := &Terminal{RangeStart: 710000, RangeEnd: 719999, Cursor: tt.cursor}
		if got := term.Remaining(); got != tt.want {
			t.Errorf("Remaining() with cursor %d = %d, want %d", tt.cursor, got, tt.want)
		}
	}
}
