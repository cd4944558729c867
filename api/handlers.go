package api

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"tcpsweep/scanner"
)

// Server bundles dependencies for HTTP handlers.
type Server struct {
	store  TaskStore
	limits ScanLimits
}

// ScanLimits holds the defaults and bounds applied to submitted scans.
type ScanLimits struct {
	DefaultWorkers int
	MaxWorkers     int
	DefaultTimeout time.Duration
}

// NewServer creates a new API server instance.
func NewServer(store TaskStore, limits ScanLimits) *Server {
	return &Server{store: store, limits: limits}
}

// RegisterRoutes attaches handlers to the provided Gin router group.
func (s *Server) RegisterRoutes(routes gin.IRoutes) {
	routes.POST("/scans", s.createScanHandler)
	routes.GET("/scans/:id", s.getScanHandler)
}

var uuidV4Pattern = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-4[a-fA-F0-9]{3}-[abAB89][a-fA-F0-9]{3}-[a-fA-F0-9]{12}$`)

// @Summary      Create a new scan task
// @Description  Validates the request, stores a pending task and queues it for the background workers. Poll GET /scans/{id} until the status is completed or failed.
// @Tags         Scans
// @Accept       json
// @Produce      json
// @Param        scanRequest  body      CreateScanRequest     true  "Scan request parameters"
// @Success      202          {object}  ScanAcceptedResponse
// @Failure      400          {object}  ErrorResponse
// @Failure      401          {object}  ErrorResponse
// @Failure      429          {object}  ErrorResponse
// @Failure      500          {object}  ErrorResponse
// @Failure      503          {object}  ErrorResponse
// @Security     ApiKeyAuth
// @Router       /scans [post]
func (s *Server) createScanHandler(c *gin.Context) {
	var req CreateScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request payload: %v", err)})
		return
	}

	task, err := s.newTask(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := s.store.CreateTask(ctx, task); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to persist task"})
		return
	}

	if err := s.store.PushToQueue(ctx, task.ID); err != nil {
		task.Status = StatusFailed
		task.Error = "failed to queue task"
		now := time.Now().UTC()
		task.CompletedAt = &now
		_ = s.store.UpdateTask(ctx, task)

		if errors.Is(err, ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "scan queue is full, retry later"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to queue task"})
		return
	}

	c.JSON(http.StatusAccepted, ScanAcceptedResponse{ID: task.ID, Status: task.Status})
}

// newTask applies defaults and rejects requests the scanner would refuse.
func (s *Server) newTask(req CreateScanRequest) (*ScanTask, error) {
	ports, err := scanner.ParsePorts(req.Ports)
	if err != nil {
		return nil, fmt.Errorf("invalid ports: %w", err)
	}

	workers := req.Workers
	switch {
	case workers == 0:
		// The server default never exceeds the client-facing cap.
		workers = s.limits.DefaultWorkers
		if s.limits.MaxWorkers > 0 {
			workers = min(workers, s.limits.MaxWorkers)
		}
	case s.limits.MaxWorkers > 0 && workers > s.limits.MaxWorkers:
		return nil, fmt.Errorf("workers must not exceed %d", s.limits.MaxWorkers)
	}

	timeout := s.limits.DefaultTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	if err := scanner.ValidateRequest(ports, workers, timeout); err != nil {
		return nil, err
	}

	id, err := generateUUID()
	if err != nil {
		return nil, fmt.Errorf("generate task id: %w", err)
	}

	return &ScanTask{
		ID:        id,
		Status:    StatusPending,
		Host:      req.Host,
		Ports:     req.Ports,
		Workers:   workers,
		TimeoutMs: timeout.Milliseconds(),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// @Summary      Get scan status and results
// @Description  Returns a snapshot of the task. open_ports is null until the task completes, then lists the open ports (empty when none were found).
// @Tags         Scans
// @Produce      json
// @Param        id   path      string  true  "Scan Task ID (UUID v4)"
// @Success      200  {object}  ScanTask
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      429  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Security     ApiKeyAuth
// @Router       /scans/{id} [get]
func (s *Server) getScanHandler(c *gin.Context) {
	id := c.Param("id")
	if !uuidV4Pattern.MatchString(id) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid task id format"})
		return
	}
	task, err := s.store.GetTask(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load task"})
		return
	}

	c.JSON(http.StatusOK, task)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func generateUUID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// Variant bits; version 4 UUID.
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}
