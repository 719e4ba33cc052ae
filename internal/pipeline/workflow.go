package pipeline

import (
	"fmt"
	"sync"
)

// Built-in workflow IDs.
const (
	WorkflowProductValidation = "product-validation"
	WorkflowExtractURL        = "extract-by-url"
	WorkflowExtractProductSet = "extract-by-product-set"
	WorkflowExtractMulti      = "extract-multi-platform"
	WorkflowBannerMonitor     = "banner-monitor"
	WorkflowPickMonitor       = "pick-section-monitor"
	WorkflowCollaboMonitor    = "collabo-monitor"
)

// NodeRef is one step in a workflow: a node type plus its static config.
type NodeRef struct {
	Type   string
	Config map[string]interface{}
}

// Workflow is the statically declared node sequence executed for a job.
// Composition is sequential; parallelism lives inside nodes.
type Workflow struct {
	ID    string
	Nodes []NodeRef
}

// WorkflowRegistry resolves workflow IDs to their node graphs.
type WorkflowRegistry struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow
}

// NewWorkflowRegistry creates a registry preloaded with the built-in graphs.
func NewWorkflowRegistry() *WorkflowRegistry {
	r := &WorkflowRegistry{workflows: make(map[string]*Workflow)}

	r.Register(&Workflow{
		ID: WorkflowProductValidation,
		Nodes: []NodeRef{
			{Type: "fetch"},
			{Type: "scan"},
			{Type: "validate"},
			{Type: "compare"},
			{Type: "save"},
			{Type: "update"},
			{Type: "notify"},
		},
	})
	r.Register(&Workflow{
		ID: WorkflowExtractURL,
		Nodes: []NodeRef{
			{Type: "extract_url"},
			{Type: "save"},
			{Type: "notify", Config: map[string]interface{}{"failure_only": true}},
		},
	})
	r.Register(&Workflow{
		ID: WorkflowExtractProductSet,
		Nodes: []NodeRef{
			{Type: "fetch", Config: map[string]interface{}{"single": true}},
			{Type: "scan"},
			{Type: "validate"},
			{Type: "save"},
			{Type: "notify", Config: map[string]interface{}{"failure_only": true}},
		},
	})
	r.Register(&Workflow{
		ID: WorkflowExtractMulti,
		Nodes: []NodeRef{
			{Type: "extract_multi"},
			{Type: "save"},
			{Type: "notify", Config: map[string]interface{}{"failure_only": true}},
		},
	})
	r.Register(&Workflow{
		ID: WorkflowBannerMonitor,
		Nodes: []NodeRef{
			{Type: "monitor", Config: map[string]interface{}{"source": "banners"}},
		},
	})
	r.Register(&Workflow{
		ID: WorkflowPickMonitor,
		Nodes: []NodeRef{
			{Type: "monitor", Config: map[string]interface{}{"source": "pick_sections"}},
		},
	})
	r.Register(&Workflow{
		ID: WorkflowCollaboMonitor,
		Nodes: []NodeRef{
			{Type: "monitor", Config: map[string]interface{}{"source": "collabo_banners"}},
		},
	})

	return r
}

// Register adds or replaces a workflow.
func (r *WorkflowRegistry) Register(wf *Workflow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[wf.ID] = wf
}

// Resolve returns the workflow for an ID.
func (r *WorkflowRegistry) Resolve(id string) (*Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.workflows[id]
	if !ok {
		return nil, fmt.Errorf("unknown workflow: %s", id)
	}
	return wf, nil
}
