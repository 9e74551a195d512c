package result

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medlab/lims/internal/domain/catalog"
	"github.com/medlab/lims/internal/domain/settings"
)

type mockRepo struct {
	results map[uuid.UUID]*Result
}

func newMockRepo() *mockRepo {
	return &mockRepo{results: make(map[uuid.UUID]*Result)}
}

func (m *mockRepo) Create(ctx context.Context, r *Result) error {
	r.ID = uuid.New()
	cp := *r
	m.results[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Result, error) {
	r, ok := m.results[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) Update(ctx context.Context, r *Result) error {
	if _, ok := m.results[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.results[r.ID] = &cp
	return nil
}

func (m *mockRepo) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Result, int, error) {
	var out []*Result
	for _, r := range m.results {
		if v, ok := params["status"]; ok && r.Status != v {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]*Result, error) {
	var out []*Result
	for _, r := range m.results {
		if r.OrderItemID == orderItemID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// stubPerms grants everything unless a specific action is revoked.
type stubPerms struct {
	denyEnter   bool
	denyVerify  bool
	denyPublish bool
}

func (p *stubPerms) CanEnterResult(ctx context.Context, roles []string) bool { return !p.denyEnter }
func (p *stubPerms) CanVerify(ctx context.Context, roles []string) bool      { return !p.denyVerify }
func (p *stubPerms) CanPublish(ctx context.Context, roles []string) bool     { return !p.denyPublish }

type stubWorkflow struct {
	verification bool
}

func (w *stubWorkflow) Workflow(ctx context.Context) (*settings.WorkflowSettings, error) {
	return &settings.WorkflowSettings{
		EnableSampleCollection: true,
		EnableSampleReceive:    true,
		EnableVerification:     w.verification,
	}, nil
}

type stubRanges struct {
	rr *catalog.ReferenceRange
}

func (s *stubRanges) RangeFor(ctx context.Context, parameterID uuid.UUID, sex string, ageYears int) (*catalog.ReferenceRange, error) {
	return s.rr, nil
}

type stubPatients struct{}

func (stubPatients) PatientForItem(ctx context.Context, itemID uuid.UUID) (string, int, error) {
	return "F", 30, nil
}

type stubItems struct {
	statuses map[uuid.UUID]string
}

func (s *stubItems) SetItemStatus(ctx context.Context, itemID uuid.UUID, status string) error {
	s.statuses[itemID] = status
	return nil
}

type fixture struct {
	svc    *Service
	repo   *mockRepo
	perms  *stubPerms
	wf     *stubWorkflow
	ranges *stubRanges
	items  *stubItems
}

func newFixture() *fixture {
	repo := newMockRepo()
	perms := &stubPerms{}
	wf := &stubWorkflow{verification: true}
	ranges := &stubRanges{}
	items := &stubItems{statuses: make(map[uuid.UUID]string)}

	svc := NewService(repo, perms, wf, ranges, stubPatients{}, items)
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC) }
	return &fixture{svc: svc, repo: repo, perms: perms, wf: wf, ranges: ranges, items: items}
}

func (f *fixture) draft(t *testing.T) *Result {
	t.Helper()
	itemID := uuid.New()
	if err := f.svc.CreateDraft(context.Background(), itemID); err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	for _, r := range f.repo.results {
		if r.OrderItemID == itemID {
			return r
		}
	}
	t.Fatal("draft not created")
	return nil
}

func ptr(v float64) *float64 { return &v }

func TestEnter_RecordsValueAndActor(t *testing.T) {
	f := newFixture()
	draft := f.draft(t)
	actor := uuid.New()

	res, err := f.svc.Enter(context.Background(), draft.ID, EnterInput{Value: " 13.2 ", Unit: "g/dL"}, &actor, nil)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if res.Status != StatusEntered {
		t.Errorf("status = %q, want ENTERED", res.Status)
	}
	if res.Value != "13.2" {
		t.Errorf("value = %q, want trimmed", res.Value)
	}
	if res.EnteredBy == nil || *res.EnteredBy != actor {
		t.Error("entered_by should record the actor")
	}
	if res.EnteredAt == nil {
		t.Error("entered_at should be set")
	}
}

func TestEnter_EmptyValueRejected(t *testing.T) {
	f := newFixture()
	draft := f.draft(t)

	if _, err := f.svc.Enter(context.Background(), draft.ID, EnterInput{Value: "   "}, nil, nil); err == nil {
		t.Error("expected error for empty value")
	}
}

func TestEnter_PermissionDenied(t *testing.T) {
	f := newFixture()
	f.perms.denyEnter = true
	draft := f.draft(t)

	_, err := f.svc.Enter(context.Background(), draft.ID, EnterInput{Value: "1"}, nil, nil)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestEnter_FlagsAgainstReferenceRange(t *testing.T) {
	f := newFixture()
	f.ranges.rr = &catalog.ReferenceRange{
		Sex: "Female", AgeMin: 18, AgeMax: 999, Unit: "g/dL",
		NormalLow: ptr(12.0), NormalHigh: ptr(15.5),
		CriticalLow: ptr(7.0), CriticalHigh: ptr(20.0),
	}
	paramID := uuid.New()

	cases := []struct {
		value string
		flag  string
	}{
		{"13.0", FlagNormal},
		{"11.0", FlagLow},
		{"16.0", FlagHigh},
		{"6.5", FlagCriticalLow},
		{"21.0", FlagCriticalHigh},
	}
	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			draft := f.draft(t)
			res, err := f.svc.Enter(context.Background(), draft.ID, EnterInput{Value: tc.value, ParameterID: &paramID}, nil, nil)
			if err != nil {
				t.Fatalf("Enter: %v", err)
			}
			if res.Flags != tc.flag {
				t.Errorf("flag = %q, want %q", res.Flags, tc.flag)
			}
			if res.ReferenceRange != "12-15.5 g/dL" {
				t.Errorf("reference_range = %q", res.ReferenceRange)
			}
		})
	}
}

func TestEnter_NonNumericValueUnflagged(t *testing.T) {
	f := newFixture()
	f.ranges.rr = &catalog.ReferenceRange{NormalLow: ptr(1), NormalHigh: ptr(2)}
	paramID := uuid.New()
	draft := f.draft(t)

	res, err := f.svc.Enter(context.Background(), draft.ID, EnterInput{Value: "Positive", ParameterID: &paramID}, nil, nil)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if res.Flags != "" {
		t.Errorf("flag = %q, want empty for text value", res.Flags)
	}
}

func TestVerify_RequiresEntered(t *testing.T) {
	f := newFixture()
	draft := f.draft(t)

	if _, err := f.svc.Verify(context.Background(), draft.ID, nil, nil); err == nil {
		t.Error("expected error verifying a draft")
	}

	if _, err := f.svc.Enter(context.Background(), draft.ID, EnterInput{Value: "5"}, nil, nil); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	actor := uuid.New()
	res, err := f.svc.Verify(context.Background(), draft.ID, &actor, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Status != StatusVerified {
		t.Errorf("status = %q, want VERIFIED", res.Status)
	}
	if res.VerifiedBy == nil || *res.VerifiedBy != actor {
		t.Error("verified_by should record the actor")
	}
	if f.items.statuses[draft.OrderItemID] != "VERIFIED" {
		t.Error("order item should advance to VERIFIED")
	}
}

func TestPublish_RequiresVerification(t *testing.T) {
	f := newFixture()
	draft := f.draft(t)

	if _, err := f.svc.Enter(context.Background(), draft.ID, EnterInput{Value: "5"}, nil, nil); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	// Verification enabled: publishing an entered result fails.
	if _, err := f.svc.Publish(context.Background(), draft.ID, nil); err == nil {
		t.Error("expected error publishing unverified result")
	}

	if _, err := f.svc.Verify(context.Background(), draft.ID, nil, nil); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	res, err := f.svc.Publish(context.Background(), draft.ID, nil)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if res.Status != StatusPublished {
		t.Errorf("status = %q, want PUBLISHED", res.Status)
	}
	if res.PublishedAt == nil {
		t.Error("published_at should be set")
	}
	if f.items.statuses[draft.OrderItemID] != "PUBLISHED" {
		t.Error("order item should advance to PUBLISHED")
	}
}

func TestPublish_VerificationDisabled(t *testing.T) {
	f := newFixture()
	f.wf.verification = false
	draft := f.draft(t)

	if _, err := f.svc.Enter(context.Background(), draft.ID, EnterInput{Value: "5"}, nil, nil); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	res, err := f.svc.Publish(context.Background(), draft.ID, nil)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if res.Status != StatusPublished {
		t.Errorf("status = %q, want PUBLISHED straight from ENTERED", res.Status)
	}
}

func TestPublish_DraftNeverPublishable(t *testing.T) {
	f := newFixture()
	f.wf.verification = false
	draft := f.draft(t)

	if _, err := f.svc.Publish(context.Background(), draft.ID, nil); err == nil {
		t.Error("expected error publishing a draft even with verification disabled")
	}
}
