package task

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// AgentTask is a subagent run by the Task tool's run_in_background mode
// (spec §4.8): it tracks the child agent's turn count and token usage
// alongside the output every BackgroundTask exposes.
type AgentTask struct {
	ID          string
	AgentName   string
	Description string
	Status      TaskStatus
	StartTime   time.Time
	EndTime     time.Time
	TurnCount   int
	TokenUsage  int
	Error       string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	output bytes.Buffer
}

var _ BackgroundTask = (*AgentTask)(nil)

func NewAgentTask(id, agentName, description string, ctx context.Context, cancel context.CancelFunc) *AgentTask {
	return &AgentTask{
		ID:          id,
		AgentName:   agentName,
		Description: description,
		Status:      StatusRunning,
		StartTime:   time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (t *AgentTask) GetID() string          { return t.ID }
func (t *AgentTask) GetType() TaskType      { return TaskTypeAgent }
func (t *AgentTask) GetDescription() string { return t.Description }

func (t *AgentTask) AppendOutput(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.output.Write(data)
}

// GetOutput returns the current output
func (t *AgentTask) GetOutput() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.output.String()
}

// Complete marks the task as completed or failed depending on err.
func (t *AgentTask) Complete(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.EndTime = time.Now()
	if err != nil {
		t.Status = StatusFailed
		t.Error = err.Error()
	} else {
		t.Status = StatusCompleted
	}
}

// MarkKilled marks the task as killed (internal use)
func (t *AgentTask) MarkKilled() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Status = StatusKilled
	t.EndTime = time.Now()
}

// IsRunning returns true if the task is still running
func (t *AgentTask) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status == StatusRunning
}

// WaitForCompletion waits until the task completes or timeout
// Returns true if completed, false if timeout
func (t *AgentTask) WaitForCompletion(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for {
		t.mu.RLock()
		status := t.Status
		t.mu.RUnlock()

		if status != StatusRunning {
			return true // completed
		}

		if time.Now().After(deadline) {
			return false // timeout
		}

		// Poll with small sleep
		time.Sleep(100 * time.Millisecond)
	}
}

// Stop gracefully stops the task by canceling the context
func (t *AgentTask) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

// Kill forcefully terminates the task
func (t *AgentTask) Kill() error {
	if t.cancel != nil {
		t.cancel()
	}
	t.MarkKilled()
	return nil
}

// GetStatus returns the current task status info
func (t *AgentTask) GetStatus() TaskInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return TaskInfo{
		ID:          t.ID,
		Type:        TaskTypeAgent,
		Description: t.Description,
		Status:      t.Status,
		StartTime:   t.StartTime,
		EndTime:     t.EndTime,
		Error:       t.Error,
		Output:      t.output.String(),
		AgentName:   t.AgentName,
		TurnCount:   t.TurnCount,
		TokenUsage:  t.TokenUsage,
	}
}

// UpdateProgress updates the turn count and token usage
func (t *AgentTask) UpdateProgress(turnCount, tokenUsage int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TurnCount = turnCount
	t.TokenUsage = tokenUsage
}
