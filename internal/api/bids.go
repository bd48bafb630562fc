package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/policy"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/review"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/util"
)

const maxUploadBytes = 64 << 20

func (s *Server) handleCreateBid(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	bidName := strings.TrimSpace(r.FormValue("bid_name"))
	if bidName == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("bid_name is required"))
		return
	}
	file, header, err := r.FormFile("tender")
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no tender file: %w", err))
		return
	}
	defer file.Close()

	var deadline *time.Time
	if raw := strings.TrimSpace(r.FormValue("deadline")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid deadline: %w", err))
			return
		}
		deadline = &t
	}

	bidID := uuid.NewString()
	tenderPath, err := s.saveUpload(file, s.cfg.TenderRoot, bidID+filepath.Ext(header.Filename))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	bid := models.Bid{
		BidID:      bidID,
		OwnerID:    id.UserID,
		OrgID:      id.OrgID,
		BidName:    bidName,
		Client:     strings.TrimSpace(r.FormValue("client")),
		Deadline:   deadline,
		Status:     models.BidStatusScoping,
		Sections:   []models.Section{},
		TenderPath: tenderPath,
	}
	if err := s.bidRepo.CreateBid(r.Context(), bid); err != nil {
		_ = os.Remove(tenderPath)
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

func (s *Server) handleListBids(w http.ResponseWriter, r *http.Request) {
	scope := policy.ScopeFor(identity(r))
	bids, err := s.bidRepo.ListBids(r.Context(), scope.OrgID, scope.OwnerID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": bids})
}

func (s *Server) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if !policy.CanReview(id) {
		writeErr(w, http.StatusForbidden, fmt.Errorf("review access required"))
		return
	}
	bids, err := s.bidRepo.ListBidsByStatus(r.Context(), id.OrgID, []string{models.BidStatusReview, models.BidStatusApproved})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": bids})
}

func (s *Server) handleGetBid(w http.ResponseWriter, r *http.Request) {
	bid, ok := s.loadBid(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

func (s *Server) handleDeleteBid(w http.ResponseWriter, r *http.Request) {
	bid, ok := s.loadBid(w, r)
	if !ok {
		return
	}
	if err := s.bidRepo.DeleteBid(r.Context(), bid.BidID); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if bid.TenderPath != "" {
		_ = os.Remove(bid.TenderPath)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleExtractSections runs LLM requirement extraction over the stored
// tender document and replaces the bid's section list.
func (s *Server) handleExtractSections(w http.ResponseWriter, r *http.Request) {
	bid, ok := s.loadBid(w, r)
	if !ok {
		return
	}
	if bid.TenderPath == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no tender file on this bid"))
		return
	}
	text, err := util.ReadDocumentText(bid.TenderPath)
	if err != nil {
		if errors.Is(err, util.ErrNoExtractableText) {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.cfg.ExtractTimeout)*time.Second)
	defer cancel()
	sections, err := s.extractor.Extract(ctx, text)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}

	bid.Sections = sections
	bid.Progress = review.Progress(sections)
	if err := s.bidRepo.UpdateBid(r.Context(), bid); err != nil {
		if errors.Is(err, util.ErrRevisionConflict) {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(sections)})
}

// handleDraftSection generates an AI answer for one section from the bid
// owner's knowledge base. Retrieval is always scoped to the owner, not the
// caller, so a manager drafting on someone's bid uses the right knowledge.
func (s *Server) handleDraftSection(w http.ResponseWriter, r *http.Request) {
	bid, ok := s.loadBid(w, r)
	if !ok {
		return
	}
	index, ok := sectionIndex(w, r, bid)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.cfg.DraftTimeout)*time.Second)
	defer cancel()
	result, err := s.drafter.Draft(ctx, bid.OwnerID, bid.Sections[index].Question)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}

	if _, err := s.review.ApplyAIDraft(r.Context(), bid.BidID, index, result.Answer, result.Confidence); err != nil {
		writeErr(w, statusForReviewErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"answer":        result.Answer,
		"confidence":    result.Confidence,
		"context_found": result.ContextFound,
	})
}

func (s *Server) handleSaveSection(w http.ResponseWriter, r *http.Request) {
	bid, ok := s.loadBid(w, r)
	if !ok {
		return
	}
	index, ok := sectionIndex(w, r, bid)
	if !ok {
		return
	}
	var req struct {
		DraftAnswer string `json:"draft_answer"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	updated, err := s.review.SaveDraft(r.Context(), bid.BidID, index, req.DraftAnswer)
	if err != nil {
		writeErr(w, statusForReviewErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleFlagSection(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if !policy.CanReview(id) {
		writeErr(w, http.StatusForbidden, fmt.Errorf("review access required"))
		return
	}
	bid, ok := s.loadBid(w, r)
	if !ok {
		return
	}
	index, ok := sectionIndex(w, r, bid)
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	updated, err := s.review.Flag(r.Context(), bid.BidID, index, req.Notes)
	if err != nil {
		writeErr(w, statusForReviewErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleApproveSection(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if !policy.CanReview(id) {
		writeErr(w, http.StatusForbidden, fmt.Errorf("review access required"))
		return
	}
	bid, ok := s.loadBid(w, r)
	if !ok {
		return
	}
	index, ok := sectionIndex(w, r, bid)
	if !ok {
		return
	}
	updated, err := s.review.ApproveSection(r.Context(), bid.BidID, index)
	if err != nil {
		writeErr(w, statusForReviewErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleSubmitBid(w http.ResponseWriter, r *http.Request) {
	bid, ok := s.loadBid(w, r)
	if !ok {
		return
	}
	var req struct {
		ReviewerID    string `json:"reviewer_id"`
		ReviewerEmail string `json:"reviewer_email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.ReviewerID) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("reviewer_id is required"))
		return
	}
	updated, err := s.review.Submit(r.Context(), bid.BidID, req.ReviewerID, req.ReviewerEmail)
	if err != nil {
		writeErr(w, statusForReviewErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleFinalizeBid(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if !policy.CanReview(id) {
		writeErr(w, http.StatusForbidden, fmt.Errorf("review access required"))
		return
	}
	bid, ok := s.loadBid(w, r)
	if !ok {
		return
	}
	updated, err := s.review.Finalize(r.Context(), bid.BidID)
	if err != nil {
		writeErr(w, statusForReviewErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleCompleteBid(w http.ResponseWriter, r *http.Request) {
	bid, ok := s.loadBid(w, r)
	if !ok {
		return
	}
	updated, archive, err := s.review.Complete(r.Context(), bid.BidID)
	if err != nil {
		writeErr(w, statusForReviewErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bid": updated, "archive": archive})
}

func (s *Server) loadBid(w http.ResponseWriter, r *http.Request) (models.Bid, bool) {
	bidID := chi.URLParam(r, "bidID")
	bid, err := s.bidRepo.GetBid(r.Context(), bidID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			writeErr(w, http.StatusNotFound, err)
		} else {
			writeErr(w, http.StatusInternalServerError, err)
		}
		return models.Bid{}, false
	}
	if !policy.CanAccessBid(identity(r), bid) {
		writeErr(w, http.StatusForbidden, fmt.Errorf("no access to this bid"))
		return models.Bid{}, false
	}
	return bid, true
}

func sectionIndex(w http.ResponseWriter, r *http.Request, bid models.Bid) (int, bool) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 || index >= len(bid.Sections) {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("section index out of range"))
		return 0, false
	}
	return index, true
}

func statusForReviewErr(err error) int {
	switch {
	case errors.Is(err, review.ErrBadSection), errors.Is(err, review.ErrNotesRequired):
		return http.StatusBadRequest
	case errors.Is(err, review.ErrNotReady), errors.Is(err, review.ErrNotAllApproved),
		errors.Is(err, review.ErrBadTransition), errors.Is(err, util.ErrRevisionConflict):
		return http.StatusConflict
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func (s *Server) saveUpload(file multipart.File, root, name string) (string, error) {
	if err := util.EnsureDir(root); err != nil {
		return "", err
	}
	dst := util.SafeJoin(root, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return dst, nil
}
