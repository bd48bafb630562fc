package workflows

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/activities"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/providers"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/util"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/vector"
)

type providerState struct {
	disabledUntil map[int]time.Time
	retries       map[string]int
}

func newProviderState() providerState {
	return providerState{disabledUntil: map[int]time.Time{}, retries: map[string]int{}}
}

// KnowledgeIngestWorkflow runs a knowledge document through extraction,
// chunking, embedding and vector upsert. The document only flips to ready
// after its namespace is fully written; any failure leaves it in processing
// with a recorded reason.
func KnowledgeIngestWorkflow(ctx workflow.Context, input KnowledgeIngestInput) (string, error) {
	progress := KnowledgeIngestProgress{
		DocID:       input.DocID,
		Namespace:   vector.NamespaceFor(input.OwnerID, input.DocID),
		CurrentStep: "init",
		Status:      "processing",
		Steps:       map[string]string{},
		RetryCounts: map[string]int{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetIngestProgress, func() (KnowledgeIngestProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	providerCount := input.EmbedProviders
	if providerCount <= 0 {
		providerCount = 1
	}
	state := newProviderState()

	progress.CurrentStep = "extract_text"
	progress.Steps[progress.CurrentStep] = "processing"
	var textOut activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", activities.ExtractTextInput{DocID: input.DocID, StoragePath: input.StoragePath}).Get(ctx, &textOut); err != nil {
		if isNoTextError(err) {
			return failIngest(ctx, &progress, "no extractable text found in document")
		}
		return "", err
	}
	progress.Steps[progress.CurrentStep] = "done"

	progress.CurrentStep = "chunk_text"
	progress.Steps[progress.CurrentStep] = "processing"
	var chunkOut activities.ChunkTextOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkTextActivity", activities.ChunkTextInput{DocID: input.DocID, Text: textOut.Text, ChunkSize: input.ChunkSize}).Get(ctx, &chunkOut); err != nil {
		return "", err
	}
	if len(chunkOut.Chunks) == 0 {
		return failIngest(ctx, &progress, "document produced no indexable chunks")
	}
	progress.ChunkCount = len(chunkOut.Chunks)
	progress.Steps[progress.CurrentStep] = "done"

	progress.CurrentStep = "embed_chunks"
	progress.Steps[progress.CurrentStep] = "processing"
	embedOut, err := callEmbedWithFailover(ctx, &state, providerCount, cooldown, activities.EmbedChunksInput{
		Operation: "ingest",
		Input:     chunkOut.Chunks,
	}, progress.RetryCounts, input.PreferredEmbedProviderIndex)
	if err != nil {
		return "", err
	}
	progress.Providers = append(progress.Providers, embedOut.ProviderName)
	progress.Steps[progress.CurrentStep] = "done"

	// Re-ingestion replaces the namespace wholesale so edits never leave
	// stale chunks behind.
	progress.CurrentStep = "replace_namespace"
	progress.Steps[progress.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "DeleteNamespaceActivity", activities.DeleteNamespaceInput{Namespace: progress.Namespace}).Get(ctx, nil); err != nil {
		return "", err
	}
	if err := workflow.ExecuteActivity(ctx, "UpsertVectorsActivity", activities.UpsertVectorsInput{
		Namespace: progress.Namespace,
		OwnerID:   input.OwnerID,
		Category:  input.Category,
		Priority:  input.Priority,
		Chunks:    chunkOut.Chunks,
		Vectors:   embedOut.Vectors,
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	progress.Steps[progress.CurrentStep] = "done"

	progress.CurrentStep = "mark_ready"
	progress.Steps[progress.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "MarkDocReadyActivity", activities.MarkDocReadyInput{DocID: input.DocID, Namespace: progress.Namespace}).Get(ctx, nil); err != nil {
		return "", err
	}
	progress.Steps[progress.CurrentStep] = "done"
	progress.CurrentStep = "done"
	progress.Status = "ready"
	return progress.Status, nil
}

func failIngest(ctx workflow.Context, progress *KnowledgeIngestProgress, reason string) (string, error) {
	progress.Status = "failed"
	progress.FailReason = reason
	progress.Steps[progress.CurrentStep] = "failed"
	_ = workflow.ExecuteActivity(ctx, "RecordIngestFailureActivity", activities.RecordIngestFailureInput{
		DocID:  progress.DocID,
		Reason: reason,
	}).Get(ctx, nil)
	return progress.Status, nil
}

// ReindexWorkflow re-runs ingestion across an owner's documents, either
// only the ones stuck in processing or everything. One bad document does
// not stop the rest.
func ReindexWorkflow(ctx workflow.Context, input ReindexInput) (string, error) {
	progress := ReindexProgress{
		OwnerID:   input.OwnerID,
		Mode:      input.Mode,
		DocStatus: map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetReindexProgress, func() (ReindexProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var listOut activities.ListOwnerDocsOutput
	if err := workflow.ExecuteActivity(ctx, "ListOwnerDocsActivity", activities.ListOwnerDocsInput{
		OwnerID:    input.OwnerID,
		OrgID:      input.OrgID,
		FailedOnly: strings.EqualFold(input.Mode, ReindexRetryFailed),
	}).Get(ctx, &listOut); err != nil {
		return "", err
	}
	progress.Total = len(listOut.Docs)

	logger := workflow.GetLogger(ctx)
	for _, doc := range listOut.Docs {
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: fmt.Sprintf("reindex-%s-%s", doc.DocID, workflow.GetInfo(ctx).WorkflowExecution.RunID),
		})
		var result string
		err := workflow.ExecuteChildWorkflow(childCtx, KnowledgeIngestWorkflow, KnowledgeIngestInput{
			DocID:           doc.DocID,
			OwnerID:         doc.OwnerID,
			StoragePath:     doc.StoragePath,
			Category:        doc.Category,
			Priority:        doc.Priority,
			ChunkSize:       input.ChunkSize,
			EmbedProviders:  input.EmbedProviders,
			CooldownSeconds: input.CooldownSeconds,
		}).Get(ctx, &result)
		switch {
		case err != nil:
			logger.Error("reindex child failed", "doc_id", doc.DocID, "error", err)
			progress.Failed++
			progress.DocStatus[doc.DocID] = "error"
		case result == "ready":
			progress.Succeeded++
			progress.DocStatus[doc.DocID] = result
		default:
			progress.Failed++
			progress.DocStatus[doc.DocID] = result
		}
	}
	return fmt.Sprintf("reindexed %d/%d", progress.Succeeded, progress.Total), nil
}

func callEmbedWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.EmbedChunksInput, retryCounts map[string]int, preferredIdx int) (activities.EmbedChunksOutput, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	logger := workflow.GetLogger(ctx)
	var lastErr error
	maxAttempts := providerCount * 4
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		idx := attempt % providerCount
		if preferredIdx >= 0 {
			idx = (preferredIdx + attempt) % providerCount
		}
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.EmbedChunksOutput
		err := workflow.ExecuteActivity(ctx, "EmbedChunksActivity", input).Get(ctx, &out)
		if err == nil {
			return out, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		logger.Warn("embed provider failed", "provider_index", idx, "error_type", string(errType), "error", err)
		key := fmt.Sprintf("embed-%d", idx)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			}
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all embed providers exhausted")
	}
	return activities.EmbedChunksOutput{}, lastErr
}

func isProviderDisabled(ctx workflow.Context, state *providerState, idx int) bool {
	until, ok := state.disabledUntil[idx]
	if !ok {
		return false
	}
	return workflow.Now(ctx).Before(until)
}

func disableProviderUntil(ctx workflow.Context, state *providerState, idx int, d time.Duration) {
	state.disabledUntil[idx] = workflow.Now(ctx).Add(d)
}

func isNoTextError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, util.ErrNoExtractableText) {
		return true
	}
	return strings.Contains(err.Error(), util.ErrNoExtractableText.Error())
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
