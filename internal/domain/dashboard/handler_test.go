package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type mockRepo struct {
	stats Stats
}

func (m *mockRepo) Collect(ctx context.Context) (*Stats, error) {
	cp := m.stats
	return &cp, nil
}

func TestStats(t *testing.T) {
	repo := &mockRepo{stats: Stats{
		PatientsRegisteredToday: 12,
		OrdersCreatedToday:      9,
		SamplesPendingCollect:   3,
		ResultsAwaitingVerify:   5,
	}}
	h := NewHandler(NewService(repo))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.stats(c); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != repo.stats {
		t.Errorf("got %+v, want %+v", got, repo.stats)
	}
}
