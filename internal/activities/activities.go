package activities

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/config"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/providers"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/storage"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/util"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/vector"
)

type Activities struct {
	cfg           config.Config
	knowledgeRepo *storage.KnowledgeRepo
	chunkRepo     *storage.ChunkRepo
	providers     *providers.Manager
}

func New(cfg config.Config, db *storage.DB) (*Activities, error) {
	pm, err := providers.NewManager(cfg.LLMProviders, cfg.EmbedProviders, cfg.EmbedDim)
	if err != nil {
		return nil, err
	}
	return &Activities{
		cfg:           cfg,
		knowledgeRepo: storage.NewKnowledgeRepo(db),
		chunkRepo:     storage.NewChunkRepo(db),
		providers:     pm,
	}, nil
}

// ExtractTextActivity reads a knowledge document off disk. The file is
// copied to a temp path first so a concurrent re-upload cannot race the read.
func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	_ = ctx
	tmp, err := util.CopyToTemp(in.StoragePath)
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("stage document: %w", err)
	}
	defer os.Remove(tmp)

	// Keep the original extension: the reader dispatches on it.
	withExt := tmp + filepath.Ext(in.StoragePath)
	if err := os.Rename(tmp, withExt); err != nil {
		return ExtractTextOutput{}, fmt.Errorf("stage document: %w", err)
	}
	defer os.Remove(withExt)

	text, err := util.ReadDocumentText(withExt)
	if err != nil {
		return ExtractTextOutput{}, err
	}
	return ExtractTextOutput{Text: text}, nil
}

// ChunkTextActivity splits extracted text into fixed-size chunks with
// stable ids, so re-running ingestion overwrites rather than duplicates.
func (a *Activities) ChunkTextActivity(ctx context.Context, in ChunkTextInput) (ChunkTextOutput, error) {
	_ = ctx
	if in.ChunkSize <= 0 {
		in.ChunkSize = a.cfg.ChunkSize
	}
	rawChunks := util.ChunkText(in.Text, in.ChunkSize)
	chunks := make([]ChunkItem, 0, len(rawChunks))
	for idx, part := range rawChunks {
		if strings.TrimSpace(part) == "" {
			continue
		}
		chunkHash := util.SHA256Hex([]byte(part))
		chunkID := util.SHA256Hex([]byte(fmt.Sprintf("%s:%d:%s", in.DocID, idx, chunkHash)))
		chunks = append(chunks, ChunkItem{
			ChunkID:    chunkID,
			DocID:      in.DocID,
			ChunkIndex: idx,
			Text:       part,
		})
	}
	return ChunkTextOutput{Chunks: chunks}, nil
}

func (a *Activities) EmbedChunksActivity(ctx context.Context, in EmbedChunksInput) (EmbedChunksOutput, error) {
	inputs := make([]string, 0, len(in.Input))
	for _, c := range in.Input {
		inputs = append(inputs, c.Text)
	}
	provider, _ := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	vectors, info, err := provider.Embed(ctx, providers.EmbedRequest{
		Operation: in.Operation,
		Inputs:    inputs,
		Dimension: a.cfg.EmbedDim,
		Task:      providers.TaskDocument,
	})
	if err != nil {
		return EmbedChunksOutput{}, err
	}
	if len(vectors) != len(inputs) {
		return EmbedChunksOutput{}, fmt.Errorf("embed returned %d vectors for %d inputs", len(vectors), len(inputs))
	}
	return EmbedChunksOutput{
		Vectors:      vectors,
		ProviderName: info.Name,
		Model:        info.Model,
	}, nil
}

func (a *Activities) UpsertVectorsActivity(ctx context.Context, in UpsertVectorsInput) error {
	records := make([]storage.ChunkRecord, 0, len(in.Chunks))
	for i, c := range in.Chunks {
		var embedding *string
		if i < len(in.Vectors) && len(in.Vectors[i]) > 0 {
			lit := vector.ToLiteral(in.Vectors[i])
			embedding = &lit
		}
		records = append(records, storage.ChunkRecord{
			ChunkID:         c.ChunkID,
			Namespace:       in.Namespace,
			DocID:           c.DocID,
			OwnerID:         in.OwnerID,
			ChunkIndex:      c.ChunkIndex,
			Text:            c.Text,
			Category:        in.Category,
			Priority:        in.Priority,
			EmbeddingVector: embedding,
		})
	}
	return a.chunkRepo.UpsertChunks(ctx, records)
}

func (a *Activities) MarkDocReadyActivity(ctx context.Context, in MarkDocReadyInput) error {
	return a.knowledgeRepo.MarkReady(ctx, in.DocID, in.Namespace)
}

func (a *Activities) RecordIngestFailureActivity(ctx context.Context, in RecordIngestFailureInput) error {
	return a.knowledgeRepo.RecordFailure(ctx, in.DocID, in.Reason)
}

func (a *Activities) DeleteNamespaceActivity(ctx context.Context, in DeleteNamespaceInput) error {
	return a.chunkRepo.DeleteNamespace(ctx, in.Namespace)
}

// ListOwnerDocsActivity feeds reindexing: branding assets never index, and
// FailedOnly narrows to documents stuck in processing.
func (a *Activities) ListOwnerDocsActivity(ctx context.Context, in ListOwnerDocsInput) (ListOwnerDocsOutput, error) {
	docs, err := a.knowledgeRepo.ListDocs(ctx, in.OrgID, in.OwnerID)
	if err != nil {
		return ListOwnerDocsOutput{}, err
	}
	out := make([]OwnerDoc, 0, len(docs))
	for _, d := range docs {
		if models.IsBranding(d.Category) {
			continue
		}
		ready := d.Status == models.DocStatusReady
		if in.FailedOnly && ready {
			continue
		}
		out = append(out, OwnerDoc{
			DocID:       d.DocID,
			OwnerID:     d.OwnerID,
			StoragePath: d.StoragePath,
			Category:    d.Category,
			Priority:    d.Priority,
			Ready:       ready,
		})
	}
	return ListOwnerDocsOutput{Docs: out}, nil
}
