package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/sells-group/lead-qualify/internal/chain"
	"github.com/sells-group/lead-qualify/internal/leadfile"
	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/internal/store"
	"github.com/sells-group/lead-qualify/internal/template"
)

func newExecutor(t *testing.T, st store.Store) *chain.Executor {
	t.Helper()
	catalog, err := template.DefaultCatalog()
	require.NoError(t, err)
	e, err := chain.New(chain.Config{}, chain.Deps{Store: st, Catalog: catalog})
	require.NoError(t, err)
	return e
}

func rows() []leadfile.Row {
	return []leadfile.Row{
		{"First Name": "Ann", "Last Name": "Lee", "Phone": "5125550142", "Company": "Lee Plumbing"},
		{"First Name": "Bo", "Last Name": "Diaz", "Phone": "5125550143", "Company": "Diaz Pipes"},
	}
}

// stageRunner returns a RunStage replacement that succeeds for every stage
// except those in fail, and records the stages it saw.
func stageRunner(seen *[]model.ExecutionStage, fail ...model.ExecutionStage) func(context.Context, StageInput) (*model.ExecutionResult, error) {
	return func(_ context.Context, in StageInput) (*model.ExecutionResult, error) {
		*seen = append(*seen, in.Stage)
		ok := true
		for _, f := range fail {
			if f == in.Stage {
				ok = false
			}
		}
		return &model.ExecutionResult{Success: ok, Stage: in.Stage, BatchID: in.BatchID}, nil
	}
}

func importOK(_ context.Context, in ImportInput) (*model.ExecutionResult, error) {
	return &model.ExecutionResult{
		Success:   true,
		Stage:     model.StageDataImport,
		BatchID:   "b1",
		Processed: len(in.Rows),
		Succeeded: len(in.Rows),
	}, nil
}

func TestChainWorkflow_ImportsAndDeploys(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	acts := &Activities{}
	env.RegisterActivity(acts)

	var seen []model.ExecutionStage
	env.OnActivity(acts.Import, mock.Anything, mock.Anything).Return(importOK)
	env.OnActivity(acts.RunStage, mock.Anything, mock.MatchedBy(func(in StageInput) bool {
		return in.BatchID == "b1" && in.Options.FailForward && in.Options.Deploy.Limit == 25
	})).Return(stageRunner(&seen))

	env.ExecuteWorkflow(ChainWorkflow, ChainInput{Rows: rows(), Limit: 25})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var out ChainResult
	require.NoError(t, env.GetWorkflowResult(&out))

	assert.True(t, out.Success)
	assert.Equal(t, "b1", out.BatchID)
	assert.Len(t, out.Stages, 6)
	assert.Equal(t, []model.ExecutionStage{
		model.StageEnrich,
		model.StageContactability,
		model.StageCampaignPrep,
		model.StagePreview,
		model.StageDeploy,
	}, seen)
}

func TestChainWorkflow_DryRunStopsAtPreview(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	acts := &Activities{}
	env.RegisterActivity(acts)

	var seen []model.ExecutionStage
	env.OnActivity(acts.Import, mock.Anything, mock.Anything).Return(importOK)
	env.OnActivity(acts.RunStage, mock.Anything, mock.Anything).Return(stageRunner(&seen))

	env.ExecuteWorkflow(ChainWorkflow, ChainInput{Rows: rows(), DryRun: true})

	require.NoError(t, env.GetWorkflowError())
	var out ChainResult
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.True(t, out.Success)
	assert.NotContains(t, seen, model.StageDeploy)
	assert.Len(t, out.Stages, 5)
}

func TestChainWorkflow_StopsWhenPrepFails(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	acts := &Activities{}
	env.RegisterActivity(acts)

	var seen []model.ExecutionStage
	env.OnActivity(acts.Import, mock.Anything, mock.Anything).Return(importOK)
	env.OnActivity(acts.RunStage, mock.Anything, mock.Anything).
		Return(stageRunner(&seen, model.StageEnrich, model.StageCampaignPrep))

	env.ExecuteWorkflow(ChainWorkflow, ChainInput{Rows: rows()})

	require.NoError(t, env.GetWorkflowError())
	var out ChainResult
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.False(t, out.Success)
	// A failed ENRICH does not stop the chain; a failed prep does.
	assert.Equal(t, []model.ExecutionStage{
		model.StageEnrich,
		model.StageContactability,
		model.StageCampaignPrep,
	}, seen)
}

func TestChainWorkflow_StopsWhenImportFails(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	acts := &Activities{}
	env.RegisterActivity(acts)

	env.OnActivity(acts.Import, mock.Anything, mock.Anything).
		Return(&model.ExecutionResult{Stage: model.StageDataImport, BatchID: "b1", Failed: 2}, nil)

	env.ExecuteWorkflow(ChainWorkflow, ChainInput{Rows: rows()})

	require.NoError(t, env.GetWorkflowError())
	var out ChainResult
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.False(t, out.Success)
	assert.Len(t, out.Stages, 1)
}

func TestChainWorkflow_ResumesAfterBatchStage(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	acts := &Activities{}
	env.RegisterActivity(acts)

	var seen []model.ExecutionStage
	env.OnActivity(acts.BatchStage, mock.Anything, "b7").Return(model.StageCampaignPrep, nil)
	env.OnActivity(acts.RunStage, mock.Anything, mock.Anything).Return(stageRunner(&seen))

	env.ExecuteWorkflow(ChainWorkflow, ChainInput{BatchID: "b7"})

	require.NoError(t, env.GetWorkflowError())
	var out ChainResult
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.True(t, out.Success)
	assert.Equal(t, "b7", out.BatchID)
	assert.Equal(t, []model.ExecutionStage{model.StagePreview, model.StageDeploy}, seen)
}

func TestChainWorkflow_StageErrorFailsWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	acts := &Activities{}
	env.RegisterActivity(acts)

	env.OnActivity(acts.Import, mock.Anything, mock.Anything).Return(importOK)
	env.OnActivity(acts.RunStage, mock.Anything, mock.Anything).
		Return(nil, temporal.NewNonRetryableApplicationError("no pipeline", "chain", nil))

	env.ExecuteWorkflow(ChainWorkflow, ChainInput{Rows: rows()})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	assert.Contains(t, env.GetWorkflowError().Error(), "no pipeline")
}

func TestChainWorkflow_WithExecutor(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	st := store.NewMemory()
	env.RegisterActivity(&Activities{Exec: newExecutor(t, st)})

	env.ExecuteWorkflow(ChainWorkflow, ChainInput{
		Rows:   rows(),
		Import: chain.ImportOptions{Source: "csv"},
		Stop:   model.StageContactability,
	})

	require.NoError(t, env.GetWorkflowError())
	var out ChainResult
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.True(t, out.Success)
	require.Len(t, out.Stages, 3)

	b, err := st.GetBatch(context.Background(), out.BatchID)
	require.NoError(t, err)
	assert.Equal(t, model.StageContactability, b.Stage)
	assert.Equal(t, 2, b.TotalLeads)
}

func TestRunStage_OrderingErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, st.CreateBatch(ctx, &model.ExecutionBatch{
		ID: "b1", Name: "b1", Stage: model.StageDataImport, Status: model.BatchProcessing,
	}))
	acts := &Activities{Exec: newExecutor(t, st)}

	_, err := acts.RunStage(ctx, StageInput{BatchID: "b1", Stage: model.StageContactability})
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.NonRetryable())

	_, err = acts.RunStage(ctx, StageInput{BatchID: "missing", Stage: model.StageEnrich})
	require.Error(t, err)
	assert.False(t, errors.As(err, &appErr))
}

func TestNonRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "not configured", err: chain.ErrNotConfigured, want: true},
		{name: "not runnable", err: chain.ErrNotRunnable, want: true},
		{name: "skipped", err: model.ErrStageSkipped, want: true},
		{name: "regression", err: model.ErrStageRegression, want: true},
		{name: "transient", err: errors.New("connection reset"), want: false},
		{name: "missing batch", err: store.ErrNotFound, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, nonRetryable(tt.err))
		})
	}
}
