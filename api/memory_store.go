package api

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is a process-local TaskStore used when no Redis address is
// configured. Tasks are copied in and out so callers never share state.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]ScanTask
	queue chan string
}

// NewMemoryStore creates a store whose queue holds up to queueSize pending IDs.
func NewMemoryStore(queueSize int) *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]ScanTask),
		queue: make(chan string, queueSize),
	}
}

func (s *MemoryStore) CreateTask(_ context.Context, task *ScanTask) error {
	s.put(task)
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (*ScanTask, error) {
	s.mu.RLock()
	task, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrTaskNotFound
	}
	task.OpenPorts = slices.Clone(task.OpenPorts)
	return &task, nil
}

func (s *MemoryStore) UpdateTask(_ context.Context, task *ScanTask) error {
	s.mu.RLock()
	_, ok := s.tasks[task.ID]
	s.mu.RUnlock()
	if !ok {
		return ErrTaskNotFound
	}
	s.put(task)
	return nil
}

func (s *MemoryStore) put(task *ScanTask) {
	stored := *task
	stored.OpenPorts = slices.Clone(task.OpenPorts)
	s.mu.Lock()
	s.tasks[task.ID] = stored
	s.mu.Unlock()
}

// PushToQueue fails with ErrQueueFull instead of waiting for room.
func (s *MemoryStore) PushToQueue(_ context.Context, taskID string) error {
	select {
	case s.queue <- taskID:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *MemoryStore) PopFromQueue(ctx context.Context) (string, error) {
	select {
	case id := <-s.queue:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
