package pipeline

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/prodwatch/veriscan/internal/models"
)

// Stable node error codes.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeConfigMissing   = "CONFIG_MISSING"
	CodeFetchError      = "FETCH_PRODUCT_ERROR"
	CodeScanError       = "SCAN_PRODUCT_ERROR"
	CodeCompareError    = "COMPARE_PRODUCT_ERROR"
	CodeSaveError       = "SAVE_RESULT_ERROR"
	CodeUpdateError     = "UPDATE_PRODUCT_ERROR"
	CodeNotifyError     = "NOTIFY_ERROR"
	CodeMonitorError    = "MONITOR_ERROR"
	CodeExtractError    = "EXTRACT_PRODUCT_ERROR"
)

// NodeError is a structured node failure with a stable code.
type NodeError struct {
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

func (e *NodeError) Error() string {
	return e.Code + ": " + e.Message
}

// Result is the outcome of one node execution: either success with data or
// a coded error, optionally with partial data attached.
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *NodeError             `json:"error,omitempty"`
}

// OK builds a success result.
func OK(data map[string]interface{}) *Result {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Result{Success: true, Data: data}
}

// Fail builds a failure result with a stable code.
func Fail(code, message string) *Result {
	return &Result{Success: false, Error: &NodeError{Code: code, Message: message}}
}

// FailWith attaches partial data to a failure.
func FailWith(code, message string, data map[string]interface{}) *Result {
	r := Fail(code, message)
	r.Data = data
	return r
}

// ValidationResult is the outcome of a node's pure input check.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Valid returns a passing validation result.
func ValidInput() ValidationResult {
	return ValidationResult{Valid: true}
}

// Invalid returns a failing validation result with reasons.
func Invalid(errors ...string) ValidationResult {
	return ValidationResult{Valid: false, Errors: errors}
}

// NodeContext carries everything a node needs for one pipeline invocation.
type NodeContext struct {
	JobID          string
	WorkflowID     string
	Platform       string
	PlatformConfig *models.PlatformConfig
	Config         map[string]interface{} // per-node, from the workflow descriptor
	Params         map[string]interface{} // per-job
	Logger         arbor.ILogger
	State          *SharedState
}

// ConfigString reads a string from the node config.
func (nc *NodeContext) ConfigString(key string) (string, bool) {
	v, ok := nc.Config[key].(string)
	return v, ok
}

// ConfigInt reads an int from the node config, accepting JSON numbers.
func (nc *NodeContext) ConfigInt(key string) (int, bool) {
	switch v := nc.Config[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// ConfigBool reads a bool from the node config, defaulting to false.
func (nc *NodeContext) ConfigBool(key string) bool {
	v, ok := nc.Config[key].(bool)
	return ok && v
}

// ConfigFloat reads a float from the node config.
func (nc *NodeContext) ConfigFloat(key string) (float64, bool) {
	switch v := nc.Config[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Node is one typed pipeline step. Validate is pure (no I/O); Execute does
// the work; Rollback is best-effort cleanup of side effects when a later
// node fails.
type Node interface {
	Type() string
	Validate(input map[string]interface{}) ValidationResult
	Execute(ctx context.Context, input map[string]interface{}, nc *NodeContext) *Result
	Rollback(ctx context.Context, nc *NodeContext)
}

// NoRollback can be embedded by nodes without side effects to revert.
type NoRollback struct{}

func (NoRollback) Rollback(context.Context, *NodeContext) {}
