package types

import (
	"fmt"
	"strings"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/samber/lo"
)

// TemporalWorkflowType represents the type of workflow
type TemporalWorkflowType string

const (
	TemporalProcessActionableWorkflow   TemporalWorkflowType = "ProcessActionableWorkflow"
	TemporalProcessSubscriptionWorkflow TemporalWorkflowType = "ProcessSubscriptionWorkflow"
)

func (w TemporalWorkflowType) String() string {
	return string(w)
}

func (w TemporalWorkflowType) Validate() error {
	allowed := []TemporalWorkflowType{
		TemporalProcessActionableWorkflow,
		TemporalProcessSubscriptionWorkflow,
	}
	if lo.Contains(allowed, w) {
		return nil
	}
	return ierr.NewError("invalid workflow type").
		WithHint(fmt.Sprintf("Workflow type must be one of: %s", strings.Join(lo.Map(allowed, func(w TemporalWorkflowType, _ int) string { return string(w) }), ", "))).
		Mark(ierr.ErrValidation)
}

// WorkflowID returns a deterministic workflow id. Two runs for the same
// subscription share an id so temporal rejects the duplicate.
func (w TemporalWorkflowType) WorkflowID(contextID string) string {
	if contextID == "" {
		return fmt.Sprintf("%s-%s", w, GenerateUUID())
	}
	return fmt.Sprintf("%s-%s", w, contextID)
}
