package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	forgeerrors "github.com/mrz1836/forge/internal/errors"
	"github.com/mrz1836/forge/internal/tool"
)

// execution tracks one in-flight recipe run for cancellation. tools holds
// the instances currently backing running steps, refcounted because steps
// in a phase may share a cached instance.
type execution struct {
	id         string
	recipeName string
	startedAt  time.Time
	cancel     context.CancelFunc
	cancelled  atomic.Bool

	toolsMu sync.Mutex
	tools   map[tool.Tool]int
}

func (ex *execution) trackTool(inst tool.Tool) {
	ex.toolsMu.Lock()
	if ex.tools == nil {
		ex.tools = make(map[tool.Tool]int)
	}
	ex.tools[inst]++
	ex.toolsMu.Unlock()
}

func (ex *execution) untrackTool(inst tool.Tool) {
	ex.toolsMu.Lock()
	if n := ex.tools[inst]; n <= 1 {
		delete(ex.tools, inst)
	} else {
		ex.tools[inst] = n - 1
	}
	ex.toolsMu.Unlock()
}

// drainTools empties the tracked set and returns each distinct instance
// once, so cancellation cleans up an instance a single time no matter how
// many steps it backs.
func (ex *execution) drainTools() []tool.Tool {
	ex.toolsMu.Lock()
	insts := make([]tool.Tool, 0, len(ex.tools))
	for inst := range ex.tools {
		insts = append(insts, inst)
	}
	ex.tools = nil
	ex.toolsMu.Unlock()
	return insts
}

// ExecutionInfo is a snapshot of one in-flight execution.
type ExecutionInfo struct {
	ExecutionID string    `json:"execution_id"`
	RecipeName  string    `json:"recipe_name"`
	StartedAt   time.Time `json:"started_at"`
}

// CancelExecution cancels a running execution by id. Cancellation is
// cooperative: the execution's context is cancelled so no further phase
// dispatches and in-flight tools observe ctx.Done(). Steps interrupted
// this way end cancelled and are never retried. Tool instances backing
// still-running steps get their Cleanup called.
func (e *Engine) CancelExecution(id string) error {
	e.mu.Lock()
	ex, ok := e.executions[id]
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", forgeerrors.ErrExecutionNotFound, id)
	}

	ex.cancelled.Store(true)
	ex.cancel()

	for _, inst := range ex.drainTools() {
		if err := inst.Cleanup(context.Background()); err != nil {
			e.logger.Warn().
				Str("execution_id", id).
				Err(err).
				Msg("tool cleanup failed during cancellation")
		}
	}

	e.logger.Info().
		Str("execution_id", id).
		Str("recipe", ex.recipeName).
		Msg("execution cancelled")

	e.emit(ProgressEvent{
		Type:        EventExecutionCancelled,
		ExecutionID: id,
		RecipeName:  ex.recipeName,
	})
	return nil
}

// CancelAllExecutions cancels every in-flight execution and returns how
// many were cancelled.
func (e *Engine) CancelAllExecutions() int {
	e.mu.Lock()
	ids := make([]string, 0, len(e.executions))
	for id := range e.executions {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	n := 0
	for _, id := range ids {
		if err := e.CancelExecution(id); err == nil {
			n++
		}
	}
	return n
}

// Executions returns a snapshot of in-flight executions, ordered by start
// time then id.
func (e *Engine) Executions() []ExecutionInfo {
	e.mu.Lock()
	infos := make([]ExecutionInfo, 0, len(e.executions))
	for _, ex := range e.executions {
		infos = append(infos, ExecutionInfo{
			ExecutionID: ex.id,
			RecipeName:  ex.recipeName,
			StartedAt:   ex.startedAt,
		})
	}
	e.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].StartedAt.Equal(infos[j].StartedAt) {
			return infos[i].StartedAt.Before(infos[j].StartedAt)
		}
		return infos[i].ExecutionID < infos[j].ExecutionID
	})
	return infos
}

func (e *Engine) registerExecution(id, recipeName string, cancel context.CancelFunc) *execution {
	ex := &execution{
		id:         id,
		recipeName: recipeName,
		startedAt:  time.Now().UTC(),
		cancel:     cancel,
	}

	e.mu.Lock()
	e.executions[id] = ex
	e.mu.Unlock()
	return ex
}

func (e *Engine) unregisterExecution(id string) {
	e.mu.Lock()
	delete(e.executions, id)
	e.mu.Unlock()
}
