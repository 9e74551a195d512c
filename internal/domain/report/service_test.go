package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medlab/lims/internal/domain/order"
	"github.com/medlab/lims/internal/domain/patient"
	"github.com/medlab/lims/internal/domain/result"
)

type mockRepo struct {
	byOrder map[uuid.UUID]*Report
}

func newMockRepo() *mockRepo {
	return &mockRepo{byOrder: make(map[uuid.UUID]*Report)}
}

func (m *mockRepo) Upsert(ctx context.Context, r *Report) error {
	if existing, ok := m.byOrder[r.OrderID]; ok {
		r.ID = existing.ID
	} else if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.GeneratedAt = time.Now()
	cp := *r
	m.byOrder[r.OrderID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	for _, r := range m.byOrder {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetByOrder(ctx context.Context, orderID uuid.UUID) (*Report, error) {
	r, ok := m.byOrder[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]*Report, int, error) {
	var out []*Report
	for _, r := range m.byOrder {
		cp := *r
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type stubOrders struct {
	orders map[uuid.UUID]*order.Order
}

func (s *stubOrders) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

type stubPatients struct {
	p *patient.Patient
}

func (s *stubPatients) Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	return s.p, nil
}

type stubResults struct {
	byItem map[uuid.UUID][]*result.Result
}

func (s *stubResults) ListByOrderItem(ctx context.Context, itemID uuid.UUID) ([]*result.Result, error) {
	return s.byItem[itemID], nil
}

type fixture struct {
	svc     *Service
	orders  *stubOrders
	results *stubResults
	order   *order.Order
}

func newFixture() *fixture {
	itemID := uuid.New()
	o := &order.Order{
		ID:        uuid.New(),
		OrderNo:   "ORD-20250115-0001",
		PatientID: uuid.New(),
		Priority:  order.PriorityRoutine,
		Status:    order.StatusInProcess,
		Items: []*order.OrderItem{
			{ID: itemID, TestCode: "CBC", TestName: "Complete Blood Count", Status: order.StatusPublished},
		},
	}

	orders := &stubOrders{orders: map[uuid.UUID]*order.Order{o.ID: o}}
	patients := &stubPatients{p: &patient.Patient{
		MRN:      "PAT-20250101-0001",
		FullName: "Ayesha Khan",
		Sex:      "F",
		DOB:      time.Date(1990, 6, 1, 0, 0, 0, 0, time.UTC),
	}}
	results := &stubResults{byItem: map[uuid.UUID][]*result.Result{
		itemID: {{
			OrderItemID:    itemID,
			Value:          "13.2",
			Unit:           "g/dL",
			ReferenceRange: "12-15.5 g/dL",
			Flags:          "N",
			Status:         result.StatusPublished,
		}},
	}}

	svc := NewService(newMockRepo(), orders, patients, results)
	return &fixture{svc: svc, orders: orders, results: results, order: o}
}

func TestGenerate_PublishedOrder(t *testing.T) {
	f := newFixture()
	actor := uuid.New()

	rep, err := f.svc.Generate(context.Background(), f.order.ID, &actor)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rep.OrderID != f.order.ID {
		t.Error("report should reference the order")
	}
	if rep.GeneratedBy == nil || *rep.GeneratedBy != actor {
		t.Error("generated_by should record the actor")
	}
}

func TestGenerate_UnpublishedResultRefused(t *testing.T) {
	f := newFixture()
	itemID := f.order.Items[0].ID
	f.results.byItem[itemID][0].Status = result.StatusVerified

	_, err := f.svc.Generate(context.Background(), f.order.ID, nil)
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("err = %v, want ErrNotReady", err)
	}
}

func TestGenerate_CancelledOrderRefused(t *testing.T) {
	f := newFixture()
	f.order.Status = order.StatusCancelled

	if _, err := f.svc.Generate(context.Background(), f.order.ID, nil); err == nil {
		t.Error("expected error for cancelled order")
	}
}

func TestGenerate_CancelledItemsIgnored(t *testing.T) {
	f := newFixture()
	f.order.Items = append(f.order.Items, &order.OrderItem{
		ID:       uuid.New(),
		TestCode: "LIPID",
		Status:   order.StatusCancelled,
	})

	if _, err := f.svc.Generate(context.Background(), f.order.ID, nil); err != nil {
		t.Errorf("cancelled items should not block generation: %v", err)
	}
}

func TestGenerate_Regenerate_KeepsSingleReport(t *testing.T) {
	f := newFixture()

	first, err := f.svc.Generate(context.Background(), f.order.ID, nil)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := f.svc.Generate(context.Background(), f.order.ID, nil)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if first.ID != second.ID {
		t.Error("regeneration should reuse the existing report row")
	}
}

func TestRender_ProducesPDF(t *testing.T) {
	f := newFixture()

	rep, err := f.svc.Generate(context.Background(), f.order.ID, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	pdf, got, err := f.svc.Render(context.Background(), rep.ID)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got.ID != rep.ID {
		t.Error("wrong report returned")
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Error("output should be a PDF document")
	}
	if len(pdf) < 500 {
		t.Errorf("pdf suspiciously small: %d bytes", len(pdf))
	}
}
