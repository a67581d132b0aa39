package provision

import (
	"context"
	"fmt"

	"github.com/loomworks/loomspace/pkg/logutils"
	"github.com/loomworks/loomspace/pkg/metrics"
	"github.com/loomworks/loomspace/pkg/objectstore"
)

// Orchestrator runs the fixed step pipeline for one project. Stages must
// exist before agents (assignment matches stage templates) and before
// threads and stage buckets (both are keyed per stage), hence the order.
type Orchestrator struct {
	steps    []Step
	terminal Step
}

func NewOrchestrator(store Store, objects objectstore.ObjectStore) *Orchestrator {
	return &Orchestrator{
		steps: []Step{
			&MindspaceBucketStep{store: store, objects: objects},
			&StageStep{store: store},
			&AgentStep{store: store},
			&ThreadStep{store: store},
			&StageBucketStep{store: store, objects: objects},
			&ProjectBucketStep{store: store, objects: objects},
		},
		terminal: &OnboardingStep{store: store},
	}
}

// Provision executes the pipeline with fail-fast abort: the first step that
// returns an unrecoverable error stops the run and the error names the step.
// Completed steps are not rolled back; their idempotent existence checks make
// a replay of the whole pipeline safe. The terminal onboarding step is the
// one exception to fail-fast: its failure is logged only.
func (o *Orchestrator) Provision(ctx context.Context, req *Request) (*Result, error) {
	result := &Result{
		WorkspaceID: req.WorkspaceID,
		ProjectID:   req.ProjectID,
	}

	for _, step := range o.steps {
		stepResult, err := step.Provision(ctx, req)
		metrics.ProvisionStepTotal.WithLabelValues(step.Name(), string(stepResult.Outcome)).Inc()
		result.Steps = append(result.Steps, stepResult)
		if err != nil {
			return result, fmt.Errorf("provision step %s: %w", step.Name(), err)
		}
	}

	stepResult, err := o.terminal.Provision(ctx, req)
	metrics.ProvisionStepTotal.WithLabelValues(o.terminal.Name(), string(stepResult.Outcome)).Inc()
	result.Steps = append(result.Steps, stepResult)
	if err != nil {
		logutils.Log.Warnf("provision: %s failed for user %d, resources are provisioned: %v",
			o.terminal.Name(), req.UserID, err)
	}

	return result, nil
}
