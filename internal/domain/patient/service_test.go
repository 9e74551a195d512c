package patient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medlab/lims/internal/domain/numbering"
)

// mockRepo enforces the mrn and cnic uniqueness constraints the way the
// patients table does, returning the same SQLSTATE the driver would.
type mockRepo struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (r *mockRepo) Create(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.patients {
		if existing.MRN == p.MRN {
			return &pgconn.PgError{Code: "23505", ConstraintName: "patients_mrn_key"}
		}
		if existing.CNIC == p.CNIC {
			return &pgconn.PgError{Code: "23505", ConstraintName: "patients_cnic_key"}
		}
	}
	p.ID = uuid.New()
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.patients[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r *mockRepo) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.patients {
		if p.MRN == mrn {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *mockRepo) Update(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *mockRepo) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*Patient
	for _, p := range r.patients {
		if mrn, ok := params["mrn"]; ok && p.MRN != mrn {
			continue
		}
		if cnic, ok := params["cnic"]; ok && p.CNIC != cnic {
			continue
		}
		cp := *p
		items = append(items, &cp)
	}
	return items, len(items), nil
}

// mockTerminals is a plain map-backed numbering.TerminalRepository.
type mockTerminals struct {
	mu        sync.Mutex
	terminals map[string]*numbering.Terminal
}

func newMockTerminals(terminals ...*numbering.Terminal) *mockTerminals {
	r := &mockTerminals{terminals: make(map[string]*numbering.Terminal)}
	for _, t := range terminals {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		r.terminals[t.Code] = t
	}
	return r
}

func (r *mockTerminals) Create(ctx context.Context, t *numbering.Terminal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = uuid.New()
	r.terminals[t.Code] = t
	return nil
}

func (r *mockTerminals) Update(ctx context.Context, t *numbering.Terminal) error { return nil }

func (r *mockTerminals) GetByID(ctx context.Context, id uuid.UUID) (*numbering.Terminal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.terminals {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, numbering.ErrNotFound
}

func (r *mockTerminals) GetByCode(ctx context.Context, code string) (*numbering.Terminal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.terminals[code]; ok {
		return t, nil
	}
	return nil, numbering.ErrNotFound
}

func (r *mockTerminals) GetActiveForUpdate(ctx context.Context, code string) (*numbering.Terminal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.terminals[code]
	if !ok || !t.Active {
		return nil, numbering.ErrRangeUnavailable
	}
	cp := *t
	return &cp, nil
}

func (r *mockTerminals) UpdateCursor(ctx context.Context, id uuid.UUID, cursor int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.terminals {
		if t.ID == id {
			t.Cursor = cursor
			return nil
		}
	}
	return numbering.ErrNotFound
}

func (r *mockTerminals) List(ctx context.Context, limit, offset int) ([]*numbering.Terminal, int, error) {
	return nil, 0, nil
}

func (r *mockTerminals) FindOverlapping(ctx context.Context, start, end int64, excludeID uuid.UUID) (*numbering.Terminal, error) {
	return nil, nil
}

type mockCounters struct {
	mu     sync.Mutex
	values map[string]int64
}

func newMockCounters() *mockCounters {
	return &mockCounters{values: make(map[string]int64)}
}

func (r *mockCounters) GetForUpdate(ctx context.Context, bucket string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[bucket], nil
}

func (r *mockCounters) Set(ctx context.Context, bucket string, value int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[bucket] = value
	return nil
}

func newTestService(terminals ...*numbering.Terminal) (*Service, *mockRepo) {
	repo := newMockRepo()
	num := numbering.NewService(newMockTerminals(terminals...), newMockCounters())
	return NewService(repo, num, nil, "PAT"), repo
}

func validPatient() *Patient {
	return &Patient{
		FullName:   "Ahmed Khan",
		FatherName: "Iqbal Khan",
		DOB:        time.Date(1990, 5, 20, 0, 0, 0, 0, time.UTC),
		Sex:        "M",
		Phone:      "03001234567",
		CNIC:       "12345-1234567-1",
		Address:    "House 12, Street 4",
	}
}

func TestRegister_OnlineAssignsDateBucketedMRN(t *testing.T) {
	svc, _ := newTestService()

	p := validPatient()
	if err := svc.Register(context.Background(), p, false, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "PAT-" + time.Now().Format("20060102") + "-0001"
	if p.MRN != expected {
		t.Errorf("expected MRN %s, got %s", expected, p.MRN)
	}
	if p.IsOfflineEntry {
		t.Error("expected IsOfflineEntry false for online registration")
	}
	if p.OriginTerminalID != nil {
		t.Error("expected no origin terminal for online registration")
	}
}

func TestRegister_OfflineAssignsRangeMRN(t *testing.T) {
	svc, _ := newTestService(&numbering.Terminal{
		Code: "LAB1-PC", Name: "Front desk", RangeStart: 710000, RangeEnd: 719999, Active: true,
	})

	p := validPatient()
	if err := svc.Register(context.Background(), p, true, "LAB1-PC"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.MRN != "710000" {
		t.Errorf("expected bare decimal MRN 710000, got %s", p.MRN)
	}
	if !p.IsOfflineEntry {
		t.Error("expected IsOfflineEntry true")
	}
	if p.OriginTerminalID == nil {
		t.Error("expected origin terminal to be recorded")
	}
	if p.SyncedAt == nil {
		t.Error("expected synced_at to be set on offline entry")
	}
}

func TestRegister_OfflineWithoutCode(t *testing.T) {
	svc, repo := newTestService()

	err := svc.Register(context.Background(), validPatient(), true, "")
	if !errors.Is(err, numbering.ErrMissingRangeCode) {
		t.Fatalf("expected ErrMissingRangeCode, got %v", err)
	}
	if len(repo.patients) != 0 {
		t.Error("expected no patient to be created")
	}
}

func TestRegister_DuplicateCNIC(t *testing.T) {
	svc, _ := newTestService()

	first := validPatient()
	if err := svc.Register(context.Background(), first, false, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := validPatient()
	second.FullName = "Other Person"
	err := svc.Register(context.Background(), second, false, "")
	if !errors.Is(err, numbering.ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService()

	cases := []struct {
		name   string
		mutate func(*Patient)
	}{
		{"missing name", func(p *Patient) { p.FullName = "" }},
		{"future dob", func(p *Patient) { p.DOB = time.Now().Add(48 * time.Hour) }},
		{"bad sex", func(p *Patient) { p.Sex = "X" }},
		{"bad cnic", func(p *Patient) { p.CNIC = "1234512345671" }},
		{"bad phone", func(p *Patient) { p.Phone = "12345" }},
	}
	for _, tc := range cases {
		p := validPatient()
		tc.mutate(p)
		if err := svc.Register(context.Background(), p, false, ""); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestPatient_Age(t *testing.T) {
	p := &Patient{DOB: time.Date(1990, 5, 20, 0, 0, 0, 0, time.UTC)}
	at := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	years, months, days := p.Age(at)
	if years != 34 || months != 7 || days != 26 {
		t.Errorf("expected 34y 7m 26d, got %dy %dm %dd", years, months, days)
	}
}

func TestPatient_Age_Birthday(t *testing.T) {
	p := &Patient{DOB: time.Date(2000, 3, 10, 0, 0, 0, 0, time.UTC)}
	at := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	years, months, days := p.Age(at)
	if years != 25 || months != 0 || days != 0 {
		t.Errorf("expected exactly 25y, got %dy %dm %dd", years, months, days)
	}
}
