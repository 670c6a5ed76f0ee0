package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/srivatsav09/JobScheduler/pkg/jobs"
	"github.com/srivatsav09/JobScheduler/pkg/logging"
	"github.com/srivatsav09/JobScheduler/pkg/metrics"
	"github.com/srivatsav09/JobScheduler/pkg/models"
	"github.com/srivatsav09/JobScheduler/pkg/queue"
	"github.com/srivatsav09/JobScheduler/pkg/store"
)

// Handler serves the job management API
type Handler struct {
	store     store.Store
	transport queue.Transport
	registry  *jobs.Registry
	logger    *logging.Logger
	metrics   *metrics.Collector
}

// NewHandler creates an API handler
func NewHandler(s store.Store, t queue.Transport, registry *jobs.Registry,
	logger *logging.Logger, m *metrics.Collector) *Handler {
	return &Handler{store: s, transport: t, registry: registry, logger: logger, metrics: m}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Register specific routes before parameterized routes
	r.HandleFunc("/jobs/stats", h.JobStats).Methods("GET")
	r.HandleFunc("/jobs", h.SubmitJob).Methods("POST")
	r.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	r.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")
	r.HandleFunc("/jobs/{id}", h.CancelJob).Methods("DELETE")

	r.HandleFunc("/scheduler/policy", h.SetPolicy).Methods("PUT")
	r.HandleFunc("/scheduler/status", h.SchedulerStatus).Methods("GET")
	r.HandleFunc("/scheduler/dead-letter", h.DeadLetters).Methods("GET")

	r.HandleFunc("/health", h.Health).Methods("GET")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// SubmitJob accepts a new job and stores it as PENDING
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req models.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	normalized, err := req.Validate(h.registry.Known)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := models.NewJob(normalized)
	if err := h.store.CreateJob(job); err != nil {
		// Either the row is durably PENDING or the caller learns the
		// store is unavailable; there is no accepted-but-lost state
		h.logger.Error("Failed to create job", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	h.metrics.JobSubmitted()
	h.logger.Info("Job submitted", map[string]interface{}{
		"job_id": job.ID, "name": job.Name, "type": string(job.JobType),
	})
	writeJSON(w, http.StatusCreated, job)
}

// ListJobs returns a filtered page of jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ListFilter{
		Status:  models.JobStatus(q.Get("status")),
		JobType: models.JobType(q.Get("job_type")),
	}
	if filter.Status != "" && !models.IsValidStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "unknown status filter")
		return
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(q.Get("page_size")); err == nil {
		filter.PageSize = size
	}
	filter.Normalize()

	list, total, err := h.store.ListJobs(filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":      list,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

// GetJob returns a single job by ID
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := h.store.GetJob(id)
	if errors.Is(err, store.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelJob removes a job that has not started running
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.store.DeleteJob(id)
	if errors.Is(err, store.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if errors.Is(err, store.ErrConflict) {
		writeError(w, http.StatusConflict, "job already running or finished")
		return
	}
	if err != nil {
		h.logger.Error("Failed to cancel job", map[string]interface{}{"job_id": id, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}

	h.logger.Info("Job canceled", map[string]interface{}{"job_id": id})
	w.WriteHeader(http.StatusNoContent)
}

// JobStats returns job counts by status
func (h *Handler) JobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to aggregate jobs")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// SetPolicy switches the active scheduling policy
func (h *Handler) SetPolicy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Policy string `json:"policy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := models.ValidatePolicy(body.Policy); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.transport.SetPolicy(r.Context(), body.Policy); err != nil {
		h.logger.Error("Failed to set policy", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to set policy")
		return
	}

	h.logger.Info("Scheduling policy set", map[string]interface{}{"policy": body.Policy})
	writeJSON(w, http.StatusOK, map[string]string{"policy": body.Policy})
}

// SchedulerStatus reports the active policy and queue depths
func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policy, err := h.transport.ActivePolicy(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read active policy")
		return
	}
	depth, err := h.transport.QueueDepth(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read queue depth")
		return
	}
	dlqCount, err := h.transport.DeadLetterCount(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read dead letter count")
		return
	}
	stats, err := h.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to aggregate jobs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"policy":            policy,
		"ready_queue_depth": depth,
		"dead_letter_count": dlqCount,
		"jobs":              stats.ByStatus,
	})
}

// DeadLetters returns a page of dead letter records
func (h *Handler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var offset, limit int64 = 0, 20
	if v, err := strconv.ParseInt(q.Get("offset"), 10, 64); err == nil && v >= 0 {
		offset = v
	}
	if v, err := strconv.ParseInt(q.Get("limit"), 10, 64); err == nil && v > 0 {
		limit = v
	}

	entries, err := h.transport.DeadLetters(ctx, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read dead letters")
		return
	}
	total, err := h.transport.DeadLetterCount(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count dead letters")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   total,
		"offset":  offset,
		"limit":   limit,
	})
}

// Health reports store and transport connectivity
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{"store": "up", "transport": "up"}
	status := http.StatusOK

	if err := h.store.HealthCheck(); err != nil {
		components["store"] = "down"
		status = http.StatusServiceUnavailable
	}
	if err := h.transport.Ping(r.Context()); err != nil {
		components["transport"] = "down"
		status = http.StatusServiceUnavailable
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	writeJSON(w, status, map[string]interface{}{
		"status":     state,
		"components": components,
	})
}
