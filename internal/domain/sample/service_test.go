package sample

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medlab/lims/internal/domain/settings"
)

type mockRepo struct {
	samples map[uuid.UUID]*Sample
}

func newMockRepo() *mockRepo {
	return &mockRepo{samples: make(map[uuid.UUID]*Sample)}
}

func (m *mockRepo) Create(ctx context.Context, s *Sample) error {
	s.ID = uuid.New()
	cp := *s
	m.samples[s.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Sample, error) {
	s, ok := m.samples[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) GetByBarcode(ctx context.Context, barcode string) (*Sample, error) {
	for _, s := range m.samples {
		if s.Barcode == barcode {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(ctx context.Context, s *Sample) error {
	if _, ok := m.samples[s.ID]; !ok {
		return ErrNotFound
	}
	cp := *s
	m.samples[s.ID] = &cp
	return nil
}

func (m *mockRepo) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Sample, int, error) {
	var out []*Sample
	for _, s := range m.samples {
		if v, ok := params["status"]; ok && s.Status != v {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type stubGenerator struct{ n int }

func (g *stubGenerator) Generate(ctx context.Context, prefix string) (string, error) {
	g.n++
	return fmt.Sprintf("%s-20250115-%04d", prefix, g.n), nil
}

type stubWorkflow struct {
	collection bool
	receive    bool
}

func (w *stubWorkflow) Workflow(ctx context.Context) (*settings.WorkflowSettings, error) {
	return &settings.WorkflowSettings{
		EnableSampleCollection: w.collection,
		EnableSampleReceive:    w.receive,
		EnableVerification:     true,
	}, nil
}

type stubItems struct {
	statuses map[uuid.UUID]string
}

func (s *stubItems) SetItemStatus(ctx context.Context, itemID uuid.UUID, status string) error {
	s.statuses[itemID] = status
	return nil
}

type fixture struct {
	svc   *Service
	repo  *mockRepo
	wf    *stubWorkflow
	items *stubItems
}

func newFixture() *fixture {
	repo := newMockRepo()
	wf := &stubWorkflow{collection: true, receive: true}
	items := &stubItems{statuses: make(map[uuid.UUID]string)}
	svc := NewService(repo, &stubGenerator{}, wf, items, "SAM")
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC) }
	return &fixture{svc: svc, repo: repo, wf: wf, items: items}
}

func (f *fixture) createSample(t *testing.T) *Sample {
	t.Helper()
	itemID := uuid.New()
	if err := f.svc.CreateForOrderItem(context.Background(), itemID, "Whole Blood"); err != nil {
		t.Fatalf("CreateForOrderItem: %v", err)
	}
	for _, s := range f.repo.samples {
		if s.OrderItemID == itemID {
			return s
		}
	}
	t.Fatal("sample not created")
	return nil
}

func TestCreateForOrderItem_PendingWithBarcode(t *testing.T) {
	f := newFixture()
	sm := f.createSample(t)

	if sm.Status != StatusPending {
		t.Errorf("status = %q, want PENDING", sm.Status)
	}
	if sm.Barcode != "SAM-20250115-0001" {
		t.Errorf("barcode = %q", sm.Barcode)
	}
	if sm.CollectedAt != nil || sm.ReceivedAt != nil {
		t.Error("timestamps should be unset for a pending sample")
	}
}

func TestCreateForOrderItem_CollectionDisabled(t *testing.T) {
	f := newFixture()
	f.wf.collection = false

	sm := f.createSample(t)
	if sm.Status != StatusCollected {
		t.Errorf("status = %q, want COLLECTED", sm.Status)
	}
	if sm.CollectedAt == nil {
		t.Error("collected_at should be set")
	}
	if sm.ReceivedAt != nil {
		t.Error("received_at should not be set")
	}
}

func TestCreateForOrderItem_BothStepsDisabled(t *testing.T) {
	f := newFixture()
	f.wf.collection = false
	f.wf.receive = false

	sm := f.createSample(t)
	if sm.Status != StatusReceived {
		t.Errorf("status = %q, want RECEIVED", sm.Status)
	}
	if sm.CollectedAt == nil || sm.ReceivedAt == nil {
		t.Error("both timestamps should be set")
	}
}

func TestCollect(t *testing.T) {
	f := newFixture()
	sm := f.createSample(t)
	actor := uuid.New()

	got, err := f.svc.Collect(context.Background(), sm.ID, &actor)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got.Status != StatusCollected {
		t.Errorf("status = %q, want COLLECTED", got.Status)
	}
	if got.CollectedBy == nil || *got.CollectedBy != actor {
		t.Error("collected_by should record the actor")
	}
	if got.CollectedAt == nil {
		t.Error("collected_at should be set")
	}
	if f.items.statuses[sm.OrderItemID] != "COLLECTED" {
		t.Error("order item should advance to COLLECTED")
	}

	// A second collect attempt is rejected.
	if _, err := f.svc.Collect(context.Background(), sm.ID, &actor); err == nil {
		t.Error("expected error collecting twice")
	}
}

func TestReceive_RequiresCollected(t *testing.T) {
	f := newFixture()
	sm := f.createSample(t)

	if _, err := f.svc.Receive(context.Background(), sm.ID, nil); err == nil {
		t.Error("expected error receiving a pending sample")
	}

	if _, err := f.svc.Collect(context.Background(), sm.ID, nil); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	got, err := f.svc.Receive(context.Background(), sm.ID, nil)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got.Status != StatusReceived {
		t.Errorf("status = %q, want RECEIVED", got.Status)
	}
	if f.items.statuses[sm.OrderItemID] != "IN_PROCESS" {
		t.Error("order item should advance to IN_PROCESS")
	}
}

func TestReject(t *testing.T) {
	f := newFixture()
	sm := f.createSample(t)

	if _, err := f.svc.Reject(context.Background(), sm.ID, "  "); err == nil {
		t.Error("expected error for empty reason")
	}

	got, err := f.svc.Reject(context.Background(), sm.ID, "hemolyzed specimen")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got.Status != StatusRejected {
		t.Errorf("status = %q, want REJECTED", got.Status)
	}
	if got.RejectionReason != "hemolyzed specimen" {
		t.Errorf("reason = %q", got.RejectionReason)
	}

	if _, err := f.svc.Reject(context.Background(), sm.ID, "again"); err == nil {
		t.Error("expected error rejecting twice")
	}
}

func TestGetByBarcode(t *testing.T) {
	f := newFixture()
	sm := f.createSample(t)

	got, err := f.svc.GetByBarcode(context.Background(), sm.Barcode)
	if err != nil {
		t.Fatalf("GetByBarcode: %v", err)
	}
	if got.ID != sm.ID {
		t.Error("wrong sample returned")
	}

	if _, err := f.svc.GetByBarcode(context.Background(), "SAM-19990101-0001"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
