package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/policy"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/util"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/vector"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/workflows"
)

var knownCategories = map[string]bool{
	models.CategoryMaster:      true,
	models.CategoryUpdate:      true,
	models.CategoryPolicy:      true,
	models.CategoryCaseStudy:   true,
	models.CategoryTitlePage:   true,
	models.CategoryContactPage: true,
}

// handleUploadKnowledge stores a knowledge document and starts ingestion.
// Branding assets (title/contact pages) replace the previous asset of the
// same category, never index, and are ready immediately.
func (s *Server) handleUploadKnowledge(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no file provided: %w", err))
		return
	}
	defer file.Close()

	category := strings.TrimSpace(r.FormValue("category"))
	if category == "" {
		category = models.CategoryMaster
	}
	if !knownCategories[category] {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("unknown category %q", category))
		return
	}
	priority := 3
	if raw := strings.TrimSpace(r.FormValue("priority")); raw != "" {
		priority, err = strconv.Atoi(raw)
		if err != nil || priority < 1 || priority > 5 {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("priority must be 1-5"))
			return
		}
	}
	excludeFromAI := r.FormValue("exclude_from_ai") == "true"

	branding := models.IsBranding(category)
	if branding {
		// One asset per branding category. Drop the previous one first.
		prior, err := s.knowledgeRepo.ListByCategory(r.Context(), id.UserID, category)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		for _, d := range prior {
			if err := s.knowledgeRepo.DeleteDoc(r.Context(), d.DocID); err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			if d.StoragePath != "" {
				_ = os.Remove(d.StoragePath)
			}
		}
	}

	version, err := s.knowledgeRepo.NextVersion(r.Context(), id.UserID, header.Filename)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	docID := uuid.NewString()
	storedName := fmt.Sprintf("v%d_%s", version, header.Filename)
	if branding {
		storedName = "branding_" + header.Filename
	}
	storagePath, err := s.saveUpload(file, filepath.Join(s.cfg.KnowledgeRoot, id.UserID), storedName)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	doc := models.KnowledgeDoc{
		DocID:         docID,
		OwnerID:       id.UserID,
		OrgID:         id.OrgID,
		FileName:      header.Filename,
		StoragePath:   storagePath,
		Category:      category,
		Priority:      priority,
		Version:       version,
		ExcludeFromAI: excludeFromAI || branding,
		Status:        models.DocStatusProcessing,
	}
	if !indexable(doc) {
		doc.Status = models.DocStatusReady
	}
	if err := s.knowledgeRepo.CreateDoc(r.Context(), doc); err != nil {
		_ = os.Remove(storagePath)
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if !indexable(doc) {
		writeJSON(w, http.StatusCreated, doc)
		return
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                    ingestWorkflowID(docID),
		TaskQueue:             s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, workflows.KnowledgeIngestWorkflow, workflows.KnowledgeIngestInput{
		DocID:          docID,
		OwnerID:        id.UserID,
		StoragePath:    storagePath,
		Category:       category,
		Priority:       priority,
		ChunkSize:      s.cfg.ChunkSize,
		EmbedProviders: s.providers.EmbedCount(),
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"doc":         doc,
		"workflow_id": we.GetID(),
		"run_id":      we.GetRunID(),
	})
}

func (s *Server) handleListKnowledge(w http.ResponseWriter, r *http.Request) {
	scope := policy.ScopeFor(identity(r))
	docs, err := s.knowledgeRepo.ListDocs(r.Context(), scope.OrgID, scope.OwnerID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetKnowledge(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDoc(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleDeleteKnowledge removes the document row, its stored file, and its
// entire vector namespace in one pass.
func (s *Server) handleDeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDoc(w, r)
	if !ok {
		return
	}
	namespace := doc.Namespace
	if namespace == "" {
		namespace = vector.NamespaceFor(doc.OwnerID, doc.DocID)
	}
	if err := s.chunkRepo.DeleteNamespace(r.Context(), namespace); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.knowledgeRepo.DeleteDoc(r.Context(), doc.DocID); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if doc.StoragePath != "" {
		_ = os.Remove(doc.StoragePath)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDoc(w, r)
	if !ok {
		return
	}
	resp, err := s.temporal.QueryWorkflow(r.Context(), ingestWorkflowID(doc.DocID), "", workflows.QueryGetIngestProgress)
	if err != nil {
		// The workflow may have long since completed or been reaped;
		// fall back to the stored document state.
		writeJSON(w, http.StatusOK, workflows.KnowledgeIngestProgress{
			DocID:      doc.DocID,
			Namespace:  doc.Namespace,
			Status:     doc.Status,
			FailReason: doc.FailReason,
		})
		return
	}
	var prog workflows.KnowledgeIngestProgress
	if err := resp.Get(&prog); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

// handleUpdateMapping stores the overlay positions for a branding template.
func (s *Server) handleUpdateMapping(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDoc(w, r)
	if !ok {
		return
	}
	if !models.IsBranding(doc.Category) {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("mapping only applies to branding templates"))
		return
	}
	var req struct {
		Mapping   map[string]models.FieldPosition `json:"mapping"`
		FontStyle *models.FontStyle               `json:"font_style"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Mapping) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("mapping must contain at least one field"))
		return
	}
	for field, pos := range req.Mapping {
		if pos.X < 0 || pos.X > 1 || pos.Y < 0 || pos.Y > 1 {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("mapping field %q must use normalized 0-1 coordinates", field))
			return
		}
	}
	if err := s.knowledgeRepo.UpdateMapping(r.Context(), doc.DocID, req.Mapping, req.FontStyle); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleKnowledgeSelftest reports the owner's searchable namespaces and
// their chunk counts, for diagnosing "why does drafting find nothing".
func (s *Server) handleKnowledgeSelftest(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	namespaces, err := s.knowledgeRepo.ListNamespaces(r.Context(), id.UserID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	type indexInfo struct {
		Namespace string `json:"namespace"`
		Chunks    int    `json:"chunks"`
	}
	indexes := make([]indexInfo, 0, len(namespaces))
	for _, ns := range namespaces {
		count, err := s.chunkRepo.CountNamespace(r.Context(), ns)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		indexes = append(indexes, indexInfo{Namespace: ns, Chunks: count})
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "indexes": indexes})
}

func (s *Server) handleReindexKnowledge(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	mode := strings.ToUpper(strings.TrimSpace(req.Mode))
	if mode != workflows.ReindexRetryFailed && mode != workflows.ReindexReembedAll {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("mode must be %s or %s", workflows.ReindexRetryFailed, workflows.ReindexReembedAll))
		return
	}
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:        fmt.Sprintf("reindex-%s-%d", id.UserID, time.Now().Unix()),
		TaskQueue: s.cfg.TemporalTaskQueue,
	}, workflows.ReindexWorkflow, workflows.ReindexInput{
		OwnerID:        id.UserID,
		OrgID:          id.OrgID,
		Mode:           mode,
		ChunkSize:      s.cfg.ChunkSize,
		EmbedProviders: s.providers.EmbedCount(),
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) loadDoc(w http.ResponseWriter, r *http.Request) (models.KnowledgeDoc, bool) {
	docID := chi.URLParam(r, "docID")
	doc, err := s.knowledgeRepo.GetDoc(r.Context(), docID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			writeErr(w, http.StatusNotFound, err)
		} else {
			writeErr(w, http.StatusInternalServerError, err)
		}
		return models.KnowledgeDoc{}, false
	}
	if !policy.CanAccessDoc(identity(r), doc) {
		writeErr(w, http.StatusForbidden, fmt.Errorf("no access to this document"))
		return models.KnowledgeDoc{}, false
	}
	return doc, true
}

// indexable reports whether an uploaded document should be chunked and
// embedded. Branding assets and explicitly excluded documents are stored
// and listed but never searched, so ingestion would only burn embeddings.
func indexable(doc models.KnowledgeDoc) bool {
	return !doc.ExcludeFromAI && !models.IsBranding(doc.Category)
}

func ingestWorkflowID(docID string) string {
	return "ingest-" + docID
}
