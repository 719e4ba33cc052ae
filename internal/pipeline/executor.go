package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/prodwatch/veriscan/internal/models"
)

// NodeRegistry maps node types to their implementation. Node types are
// globally unique within a workflow.
type NodeRegistry struct {
	mu    sync.RWMutex
	nodes map[string]Node
}

// NewNodeRegistry creates an empty node registry.
func NewNodeRegistry() *NodeRegistry {
	return &NodeRegistry{nodes: make(map[string]Node)}
}

// Register adds a node implementation.
func (r *NodeRegistry) Register(n Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[n.Type()] = n
}

// Get returns the node for a type.
func (r *NodeRegistry) Get(nodeType string) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[nodeType]
	return n, ok
}

// Executor runs a job's workflow graph node by node. A node failure aborts
// the pipeline, rolls back executed nodes in reverse order, and surfaces the
// node error to the worker loop.
type Executor struct {
	nodes     *NodeRegistry
	workflows *WorkflowRegistry
	logger    arbor.ILogger
}

// NewExecutor wires the pipeline executor.
func NewExecutor(nodes *NodeRegistry, workflows *WorkflowRegistry, logger arbor.ILogger) *Executor {
	return &Executor{nodes: nodes, workflows: workflows, logger: logger}
}

// ExecuteJob resolves the job's workflow and runs it against a fresh shared
// state. Output of each successful node is merged into the input of the
// next; shared-state writes are visible to all subsequent nodes.
func (e *Executor) ExecuteJob(ctx context.Context, job *models.Job, platformCfg *models.PlatformConfig) error {
	wf, err := e.workflows.Resolve(job.WorkflowID)
	if err != nil {
		return err
	}

	logger := e.logger.WithCorrelationId(job.JobID)
	state := NewSharedState()

	input := make(map[string]interface{}, len(job.Params))
	for k, v := range job.Params {
		input[k] = v
	}

	var executed []executedNode
	defer func() {
		// The writer is owned by the pipeline; never leave an open file
		// behind when the job aborts mid-flight.
		if w := state.ResultWriter(); w != nil && state.SaveResult() == nil {
			w.Cleanup()
		}
	}()

	for i, ref := range wf.Nodes {
		node, ok := e.nodes.Get(ref.Type)
		if !ok {
			e.rollback(ctx, executed)
			return fmt.Errorf("workflow %s references unknown node %q", wf.ID, ref.Type)
		}

		nc := &NodeContext{
			JobID:          job.JobID,
			WorkflowID:     job.WorkflowID,
			Platform:       job.Platform,
			PlatformConfig: platformCfg,
			Config:         ref.Config,
			Params:         job.Params,
			Logger:         logger,
			State:          state,
		}
		if nc.Config == nil {
			nc.Config = map[string]interface{}{}
		}

		if v := node.Validate(input); !v.Valid {
			e.rollback(ctx, executed)
			return &NodeError{
				Code:    CodeValidationError,
				Message: fmt.Sprintf("node %s input invalid: %s", ref.Type, strings.Join(v.Errors, "; ")),
			}
		}

		logger.Info().
			Str("workflow", wf.ID).
			Str("node", ref.Type).
			Int("step", i+1).
			Int("steps", len(wf.Nodes)).
			Msg("Executing pipeline node")

		result := node.Execute(ctx, input, nc)
		if result == nil {
			result = Fail(CodeValidationError, fmt.Sprintf("node %s returned no result", ref.Type))
		}
		if !result.Success {
			logger.Error().
				Str("node", ref.Type).
				Str("code", result.Error.Code).
				Str("error", result.Error.Message).
				Msg("Pipeline node failed")
			e.rollback(ctx, executed)
			return result.Error
		}

		executed = append(executed, executedNode{node: node, nc: nc})
		for k, v := range result.Data {
			input[k] = v
		}
	}

	return nil
}

type executedNode struct {
	node Node
	nc   *NodeContext
}

func (e *Executor) rollback(ctx context.Context, executed []executedNode) {
	for i := len(executed) - 1; i >= 0; i-- {
		en := executed[i]
		e.logger.Debug().Str("node", en.node.Type()).Msg("Rolling back node")
		en.node.Rollback(ctx, en.nc)
	}
}
