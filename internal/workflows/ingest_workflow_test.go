package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/activities"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/util"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func registerIngestActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "ExtractTextActivity", func(context.Context, activities.ExtractTextInput) (activities.ExtractTextOutput, error) {
		return activities.ExtractTextOutput{}, nil
	})
	registerActivityName(env, "ChunkTextActivity", func(context.Context, activities.ChunkTextInput) (activities.ChunkTextOutput, error) {
		return activities.ChunkTextOutput{}, nil
	})
	registerActivityName(env, "EmbedChunksActivity", func(context.Context, activities.EmbedChunksInput) (activities.EmbedChunksOutput, error) {
		return activities.EmbedChunksOutput{}, nil
	})
	registerActivityName(env, "DeleteNamespaceActivity", func(context.Context, activities.DeleteNamespaceInput) error { return nil })
	registerActivityName(env, "UpsertVectorsActivity", func(context.Context, activities.UpsertVectorsInput) error { return nil })
	registerActivityName(env, "MarkDocReadyActivity", func(context.Context, activities.MarkDocReadyInput) error { return nil })
	registerActivityName(env, "RecordIngestFailureActivity", func(context.Context, activities.RecordIngestFailureInput) error { return nil })
}

func TestKnowledgeIngestWorkflowSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(KnowledgeIngestWorkflow)
	registerIngestActivities(env)

	env.OnActivity("ExtractTextActivity", mock.Anything, activities.ExtractTextInput{DocID: "doc1", StoragePath: "/tmp/policy.pdf"}).
		Return(activities.ExtractTextOutput{Text: "our safeguarding policy text"}, nil)
	env.OnActivity("ChunkTextActivity", mock.Anything, mock.Anything).
		Return(activities.ChunkTextOutput{Chunks: []activities.ChunkItem{{ChunkID: "c1", DocID: "doc1", ChunkIndex: 0, Text: "our safeguarding policy text"}}}, nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).
		Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1, 0.2}}, ProviderName: "mock", Model: "mock"}, nil)
	env.OnActivity("DeleteNamespaceActivity", mock.Anything, activities.DeleteNamespaceInput{Namespace: "owner1-doc1"}).Return(nil)
	env.OnActivity("UpsertVectorsActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("MarkDocReadyActivity", mock.Anything, activities.MarkDocReadyInput{DocID: "doc1", Namespace: "owner1-doc1"}).Return(nil)

	env.ExecuteWorkflow(KnowledgeIngestWorkflow, KnowledgeIngestInput{
		DocID:       "doc1",
		OwnerID:     "owner1",
		StoragePath: "/tmp/policy.pdf",
		Category:    "policy",
		Priority:    3,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "ready", out)
}

func TestKnowledgeIngestWorkflowNoTextFailsGracefully(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(KnowledgeIngestWorkflow)
	registerIngestActivities(env)

	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).
		Return(activities.ExtractTextOutput{}, util.ErrNoExtractableText)
	recorded := false
	env.OnActivity("RecordIngestFailureActivity", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { recorded = true }).Return(nil)

	env.ExecuteWorkflow(KnowledgeIngestWorkflow, KnowledgeIngestInput{
		DocID:       "doc1",
		OwnerID:     "owner1",
		StoragePath: "/tmp/scan.pdf",
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out)
	require.True(t, recorded)
}

func TestKnowledgeIngestWorkflowEmbedFailover(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(KnowledgeIngestWorkflow)
	registerIngestActivities(env)

	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).
		Return(activities.ExtractTextOutput{Text: "body"}, nil)
	env.OnActivity("ChunkTextActivity", mock.Anything, mock.Anything).
		Return(activities.ChunkTextOutput{Chunks: []activities.ChunkItem{{ChunkID: "c1", DocID: "doc1", ChunkIndex: 0, Text: "body"}}}, nil)
	// Provider 0 is out of quota; provider 1 succeeds.
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.MatchedBy(func(in activities.EmbedChunksInput) bool {
		return in.ProviderIndex == 0
	})).Return(activities.EmbedChunksOutput{}, errQuota{})
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.MatchedBy(func(in activities.EmbedChunksInput) bool {
		return in.ProviderIndex == 1
	})).Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.3}}, ProviderName: "backup", Model: "m"}, nil)
	env.OnActivity("DeleteNamespaceActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("UpsertVectorsActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("MarkDocReadyActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(KnowledgeIngestWorkflow, KnowledgeIngestInput{
		DocID:          "doc1",
		OwnerID:        "owner1",
		StoragePath:    "/tmp/policy.pdf",
		EmbedProviders: 2,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "ready", out)
}

type errQuota struct{}

func (errQuota) Error() string { return "provider quota exhausted" }
