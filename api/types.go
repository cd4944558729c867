package api

import (
	"time"
)

// Task lifecycle states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ScanTask represents a scanning job managed by the API service.
type ScanTask struct {
	// ID is the immutable identifier of the scan task (UUID v4).
	ID string `json:"id" format:"uuid" example:"a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"`
	// Status reflects the asynchronous lifecycle state of the task.
	Status string `json:"status" enums:"pending,running,completed,failed" example:"pending"`
	// Host is the hostname or IP literal submitted by the client.
	Host string `json:"host" example:"scanme.nmap.org"`
	// IP is the address the host resolved to; set once the task starts running.
	IP string `json:"ip,omitempty" example:"45.33.32.156"`
	// Ports is the port expression as submitted.
	Ports string `json:"ports" example:"22,80,443,1000-1100"`
	// Workers is the number of concurrent connection attempts used for the scan.
	Workers int `json:"workers" example:"256"`
	// TimeoutMs is the per-connection timeout in milliseconds.
	TimeoutMs int64 `json:"timeout_ms" example:"2000"`
	// OpenPorts lists the ports that accepted a connection, ascending. It is
	// null until the task completes and empty when no port was open.
	OpenPorts []uint16 `json:"open_ports" example:"22,80"`
	CreatedAt time.Time `json:"created_at" format:"date-time" example:"2024-01-02T15:04:05Z"`
	// CompletedAt is set once the task transitions to a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty" format:"date-time" example:"2024-01-02T15:06:30Z"`
	// Error contains context when a task fails.
	Error string `json:"error,omitempty" example:"cannot resolve host \"nope.invalid\""`
}

// Timeout returns the per-connection timeout as a duration.
func (t *ScanTask) Timeout() time.Duration {
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// CreateScanRequest is the payload for creating new scan tasks.
type CreateScanRequest struct {
	// Host is a hostname or IPv4/IPv6 literal.
	Host string `json:"host" binding:"required" example:"scanme.nmap.org"`
	// Ports combines single ports and inclusive ranges, e.g. 22,80,1000-1050.
	Ports string `json:"ports" binding:"required" example:"22,80,443,8000-8100"`
	// Workers overrides the server's default concurrency.
	Workers int `json:"workers,omitempty" binding:"omitempty,min=1" example:"256"`
	// TimeoutMs overrides the server's default per-connection timeout.
	TimeoutMs int64 `json:"timeout_ms,omitempty" binding:"omitempty,min=1,max=60000" example:"2000"`
}

// ScanAcceptedResponse is returned after a scan has been queued.
type ScanAcceptedResponse struct {
	ID     string `json:"id" format:"uuid" example:"a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"`
	Status string `json:"status" enums:"pending" example:"pending"`
}

// ErrorResponse provides a consistent structure for API error payloads.
type ErrorResponse struct {
	Error string `json:"error" example:"task not found"`
}
