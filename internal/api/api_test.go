package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/opsfloor/lineplan/internal/events"
	"github.com/opsfloor/lineplan/internal/models"
	"github.com/opsfloor/lineplan/internal/optimizer"
	"github.com/opsfloor/lineplan/internal/scheduling"
	"github.com/opsfloor/lineplan/internal/store"
)

// futureDay keeps wall-clock checks out of the way. 2030-01-01 is a Tuesday.
var futureDay = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

func futureAt(hour, min int) time.Time {
	return time.Date(2030, 1, 1, hour, min, 0, 0, time.UTC)
}

func testRouter(t *testing.T) (chi.Router, *store.Store) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Equipment{},
		&models.Product{},
		&models.ProductionLine{},
		&models.ScheduledRun{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	st := store.New(db, nil, zerolog.Nop())
	bus := events.NewBus()
	opt := optimizer.New(st, bus, time.UTC, zerolog.Nop())
	validator := scheduling.NewValidator(st, bus, zerolog.Nop())

	router := chi.NewRouter()
	New(st, opt, validator, bus, nil, time.UTC, zerolog.Nop()).Routes(router)

	seedCatalog(t, db)
	return router, st
}

func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()

	if err := db.Create(&models.Equipment{ID: "press", Name: "Press 1", Type: "press"}).Error; err != nil {
		t.Fatalf("seed equipment: %v", err)
	}
	products := []models.Product{
		{ID: "widget", Name: "Widget", Classification: models.ClassNormal, Profile: map[string]int{"press": 1}},
		{ID: "flagship", Name: "Flagship", Classification: models.ClassTopSeller, Profile: map[string]int{"press": 1}},
	}
	if err := db.Create(&products).Error; err != nil {
		t.Fatalf("seed products: %v", err)
	}
	line := models.ProductionLine{ID: "line-a", Name: "Line A", EquipmentIDs: []string{"press"}}
	for d := time.Monday; d <= time.Friday; d++ {
		line.Calendar[int(d)] = models.OperatingWindow{Active: true, Start: "08:00", End: "18:00"}
	}
	if err := db.Create(&line).Error; err != nil {
		t.Fatalf("seed line: %v", err)
	}
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	router, _ := testRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRunLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	router, _ := testRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/runs/", map[string]any{
		"product_id": "widget",
		"line_id":    "line-a",
		"starts_at":  futureAt(8, 0),
		"ends_at":    futureAt(10, 0),
		"quantity":   120,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created models.ScheduledRun
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created run: %v", err)
	}
	if created.Status != models.RunPending {
		t.Fatalf("expected pending, got %s", created.Status)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/runs/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/runs/?date=2030-01-01", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var listed []models.ScheduledRun
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 run on the day, got %d", len(listed))
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/runs/"+created.ID+"/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rec.Code)
	}
	// Cancelled is terminal.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/runs/"+created.ID+"/cancel", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double cancel: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/runs/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/api/v1/runs/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", rec.Code)
	}
}

func TestRunCreateValidation(t *testing.T) {
	t.Parallel()

	router, _ := testRouter(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing ids", map[string]any{"starts_at": futureAt(8, 0), "ends_at": futureAt(10, 0), "quantity": 10}},
		{"zero quantity", map[string]any{"product_id": "widget", "line_id": "line-a",
			"starts_at": futureAt(8, 0), "ends_at": futureAt(10, 0), "quantity": 0}},
		{"inverted interval", map[string]any{"product_id": "widget", "line_id": "line-a",
			"starts_at": futureAt(10, 0), "ends_at": futureAt(8, 0), "quantity": 10}},
	}
	for _, tc := range cases {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/runs/", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}
}

func TestOptimizeEndpointPacksDay(t *testing.T) {
	t.Parallel()

	router, st := testRouter(t)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/runs/", map[string]any{
			"product_id": "widget",
			"line_id":    "line-a",
			"starts_at":  futureAt(8, 0),
			"ends_at":    futureAt(10, 0),
			"quantity":   120,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %d: got %d", i, rec.Code)
		}
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/planning/optimize", map[string]any{
		"date": "2030-01-01",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("optimize: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result optimizer.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Relocated != 1 {
		t.Fatalf("expected 1 relocation, got %d", result.Relocated)
	}

	// The relocation is persisted.
	day := futureDay
	runs, err := st.ListRuns(context.Background(), &day, time.UTC)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if !runs[0].StartsAt.Equal(futureAt(8, 0)) || !runs[1].StartsAt.Equal(futureAt(10, 0)) {
		t.Fatalf("runs not packed back to back: %v, %v", runs[0].StartsAt, runs[1].StartsAt)
	}
}

func TestValidateAndMoveEndpoints(t *testing.T) {
	t.Parallel()

	router, _ := testRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/runs/", map[string]any{
		"product_id": "widget",
		"line_id":    "line-a",
		"starts_at":  futureAt(8, 0),
		"ends_at":    futureAt(10, 0),
		"quantity":   120,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d", rec.Code)
	}
	var created models.ScheduledRun
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Advisory validation never mutates, even when the move is fine.
	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/runs/%s/validate-move", created.ID),
		map[string]any{"line_id": "line-a", "starts_at": futureAt(12, 0)})
	if rec.Code != http.StatusOK {
		t.Fatalf("validate-move: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var verdict scheduling.Verdict
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if !verdict.Allowed {
		t.Fatalf("expected allowed verdict, got %+v", verdict)
	}

	// A rejected move comes back 409 with the structured verdict.
	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/runs/%s/move", created.ID),
		map[string]any{"line_id": "no-such-line", "starts_at": futureAt(12, 0)})
	if rec.Code != http.StatusConflict {
		t.Fatalf("move to unknown line: expected 409, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if verdict.Reason != scheduling.ReasonLineNotFound {
		t.Fatalf("expected line_not_found, got %+v", verdict)
	}

	// An accepted move commits.
	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/v1/runs/%s/move", created.ID),
		map[string]any{"line_id": "line-a", "starts_at": futureAt(12, 0)})
	if rec.Code != http.StatusOK {
		t.Fatalf("move: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodGet, "/api/v1/runs/"+created.ID, nil)
	var moved models.ScheduledRun
	if err := json.Unmarshal(rec.Body.Bytes(), &moved); err != nil {
		t.Fatalf("decode moved run: %v", err)
	}
	if !moved.StartsAt.Equal(futureAt(12, 0)) || !moved.EndsAt.Equal(futureAt(14, 0)) {
		t.Fatalf("move not persisted: %v-%v", moved.StartsAt, moved.EndsAt)
	}
}

func TestDurationEndpoint(t *testing.T) {
	t.Parallel()

	router, _ := testRouter(t)

	rec := doJSON(t, router, http.MethodGet,
		"/api/v1/planning/duration?product_id=widget&line_id=line-a&quantity=90", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Minutes int `json:"minutes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Minutes != 90 {
		t.Fatalf("expected 90 minutes, got %d", resp.Minutes)
	}

	rec = doJSON(t, router, http.MethodGet,
		"/api/v1/planning/duration?product_id=ghost&line_id=line-a&quantity=1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rec.Code)
	}
}
