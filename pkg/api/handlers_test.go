package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/srivatsav09/JobScheduler/pkg/jobs"
	"github.com/srivatsav09/JobScheduler/pkg/logging"
	"github.com/srivatsav09/JobScheduler/pkg/models"
	"github.com/srivatsav09/JobScheduler/pkg/queue"
	"github.com/srivatsav09/JobScheduler/pkg/store"
)

func newTestAPI(t *testing.T) (*mux.Router, *store.MemoryStore, *queue.MemoryTransport) {
	t.Helper()
	s := store.NewMemoryStore()
	tr := queue.NewMemoryTransport()
	logger := logging.NewLogger(logging.FATAL, false)
	logger.SetOutput(io.Discard)

	h := NewHandler(s, tr, jobs.NewRegistry(), logger, nil)
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r, s, tr
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestSubmitAndGetJob(t *testing.T) {
	r, _, _ := newTestAPI(t)

	rr := doJSON(t, r, "POST", "/jobs", models.JobRequest{
		Name:    "hello",
		JobType: models.JobTypeSleep,
		Payload: map[string]interface{}{"duration": 0.5},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST /jobs status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var created models.Job
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.ID == "" || created.Status != models.JobStatusPending {
		t.Errorf("created = %+v, want PENDING with id", created)
	}
	if created.Priority != models.DefaultPriority {
		t.Errorf("priority = %d, want default %d", created.Priority, models.DefaultPriority)
	}

	rr = doJSON(t, r, "GET", "/jobs/"+created.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /jobs/{id} status = %d", rr.Code)
	}
	var fetched models.Job
	json.Unmarshal(rr.Body.Bytes(), &fetched)
	if fetched.ID != created.ID || fetched.Name != "hello" {
		t.Errorf("fetched = %+v", fetched)
	}
}

func TestSubmitJobValidation(t *testing.T) {
	r, _, _ := newTestAPI(t)

	tests := []struct {
		name string
		req  models.JobRequest
	}{
		{"missing name", models.JobRequest{JobType: models.JobTypeSleep}},
		{"unknown type", models.JobRequest{Name: "j", JobType: "transcode"}},
		{"bad priority", models.JobRequest{Name: "j", JobType: models.JobTypeSleep, Priority: 99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, r, "POST", "/jobs", tt.req)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

// downStore fails every write, standing in for an unreachable database
type downStore struct {
	*store.MemoryStore
}

func (d *downStore) CreateJob(job *models.Job) error {
	return fmt.Errorf("connection refused")
}

func TestSubmitJobStoreDown(t *testing.T) {
	logger := logging.NewLogger(logging.FATAL, false)
	logger.SetOutput(io.Discard)

	h := NewHandler(&downStore{store.NewMemoryStore()}, queue.NewMemoryTransport(),
		jobs.NewRegistry(), logger, nil)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	rr := doJSON(t, r, "POST", "/jobs", models.JobRequest{
		Name:    "orphan",
		JobType: models.JobTypeSleep,
	})
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("POST /jobs with down store status = %d, want 503", rr.Code)
	}
}

func TestListJobs(t *testing.T) {
	r, s, _ := newTestAPI(t)

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		job := &models.Job{
			ID: fmt.Sprintf("job-%d", i), Name: "j", JobType: models.JobTypeSleep,
			Priority: 5, Status: models.JobStatusPending, MaxRetries: 3,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.CreateJob(job); err != nil {
			t.Fatalf("CreateJob() error = %v", err)
		}
	}

	rr := doJSON(t, r, "GET", "/jobs?page=1&page_size=2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /jobs status = %d", rr.Code)
	}
	var resp struct {
		Jobs  []models.Job `json:"jobs"`
		Total int          `json:"total"`
	}
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Total != 3 || len(resp.Jobs) != 2 {
		t.Errorf("total = %d len = %d, want 3/2", resp.Total, len(resp.Jobs))
	}

	rr = doJSON(t, r, "GET", "/jobs?status=BOGUS", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bogus status filter: status = %d, want 400", rr.Code)
	}
}

func TestCancelJob(t *testing.T) {
	r, s, _ := newTestAPI(t)

	job := &models.Job{
		ID: "c1", Name: "j", JobType: models.JobTypeSleep, Priority: 5,
		Status: models.JobStatusPending, MaxRetries: 3, CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	rr := doJSON(t, r, "DELETE", "/jobs/c1", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", rr.Code)
	}

	// Canceling again is a 404
	rr = doJSON(t, r, "DELETE", "/jobs/c1", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want 404", rr.Code)
	}

	// Running jobs cannot be canceled
	running := &models.Job{
		ID: "c2", Name: "j", JobType: models.JobTypeSleep, Priority: 5,
		Status: models.JobStatusRunning, MaxRetries: 3, CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateJob(running); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	rr = doJSON(t, r, "DELETE", "/jobs/c2", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("DELETE running status = %d, want 409", rr.Code)
	}
}

func TestSetPolicy(t *testing.T) {
	r, _, tr := newTestAPI(t)

	rr := doJSON(t, r, "PUT", "/scheduler/policy", map[string]string{"policy": "sjf"})
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT /scheduler/policy status = %d", rr.Code)
	}

	name, err := tr.ActivePolicy(context.Background())
	if err != nil || name != "sjf" {
		t.Errorf("ActivePolicy() = %q, %v, want sjf", name, err)
	}

	rr = doJSON(t, r, "PUT", "/scheduler/policy", map[string]string{"policy": "lottery"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown policy status = %d, want 400", rr.Code)
	}
}

func TestSchedulerStatus(t *testing.T) {
	r, _, tr := newTestAPI(t)
	ctx := context.Background()

	tr.SetPolicy(ctx, "priority")
	tr.PushReady(ctx, "x")
	tr.PushDeadLetter(ctx, queue.DeadLetterEntry{JobID: "dead"})

	rr := doJSON(t, r, "GET", "/scheduler/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /scheduler/status status = %d", rr.Code)
	}

	var resp struct {
		Policy          string `json:"policy"`
		ReadyQueueDepth int64  `json:"ready_queue_depth"`
		DeadLetterCount int64  `json:"dead_letter_count"`
	}
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Policy != "priority" || resp.ReadyQueueDepth != 1 || resp.DeadLetterCount != 1 {
		t.Errorf("status = %+v", resp)
	}
}

func TestDeadLetterListing(t *testing.T) {
	r, _, tr := newTestAPI(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tr.PushDeadLetter(ctx, queue.DeadLetterEntry{JobID: fmt.Sprintf("d%d", i), Error: "boom"})
	}

	rr := doJSON(t, r, "GET", "/scheduler/dead-letter?offset=1&limit=1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /scheduler/dead-letter status = %d", rr.Code)
	}
	var resp struct {
		Entries []queue.DeadLetterEntry `json:"entries"`
		Total   int64                   `json:"total"`
	}
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Total != 3 || len(resp.Entries) != 1 || resp.Entries[0].JobID != "d1" {
		t.Errorf("dead letters = %+v", resp)
	}
}

func TestHealth(t *testing.T) {
	r, _, _ := newTestAPI(t)

	rr := doJSON(t, r, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d", rr.Code)
	}
	var resp struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Status != "healthy" || resp.Components["store"] != "up" || resp.Components["transport"] != "up" {
		t.Errorf("health = %+v", resp)
	}
}
