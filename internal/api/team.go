package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/policy"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/review"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/util"
)

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	members, err := s.userRepo.ListByOrg(r.Context(), id.OrgID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if !policy.CanManageTeam(id) {
		writeErr(w, http.StatusForbidden, fmt.Errorf("admin access required"))
		return
	}
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("a valid email is required"))
		return
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = models.RoleStandard
	}
	if role != models.RoleStandard && role != models.RoleManager && role != models.RoleAdmin {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("unknown role %q", role))
		return
	}

	invite := models.Invite{
		InviteID:  uuid.NewString(),
		Email:     req.Email,
		Name:      strings.TrimSpace(req.Name),
		Role:      role,
		OrgID:     id.OrgID,
		InvitedBy: id.UserID,
		Token:     uuid.NewString(),
	}
	if err := s.inviteRepo.Create(r.Context(), invite); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}

func (s *Server) handleListInvites(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if !policy.CanManageTeam(id) {
		writeErr(w, http.StatusForbidden, fmt.Errorf("admin access required"))
		return
	}
	invites, err := s.inviteRepo.ListForOrg(r.Context(), id.OrgID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invites": invites})
}

func (s *Server) handleRevokeInvite(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if !policy.CanManageTeam(id) {
		writeErr(w, http.StatusForbidden, fmt.Errorf("admin access required"))
		return
	}
	if err := s.inviteRepo.Delete(r.Context(), chi.URLParam(r, "inviteID")); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleAcceptInvite joins the caller to the inviting organization with the
// invited role. The invite is consumed: accepted or revoked, it is gone.
func (s *Server) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	invite, err := s.inviteRepo.GetByToken(r.Context(), strings.TrimSpace(req.Token))
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			writeErr(w, http.StatusNotFound, fmt.Errorf("invite not found or already used"))
		} else {
			writeErr(w, http.StatusInternalServerError, err)
		}
		return
	}
	if !strings.EqualFold(invite.Email, id.Email) {
		writeErr(w, http.StatusForbidden, fmt.Errorf("invite was issued to a different email"))
		return
	}

	name := id.Name
	if name == "" {
		name = invite.Name
	}
	profile := models.UserProfile{
		UserID:      id.UserID,
		DisplayName: name,
		Email:       id.Email,
		Role:        invite.Role,
		OrgID:       invite.OrgID,
	}
	if err := s.userRepo.Upsert(r.Context(), profile); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.inviteRepo.Delete(r.Context(), invite.InviteID); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	notifications, err := s.notifyRepo.ListForUser(r.Context(), id.UserID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if err := s.notifyRepo.MarkRead(r.Context(), id.UserID, chi.URLParam(r, "notificationID")); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if err := s.notifyRepo.MarkAllRead(r.Context(), id.UserID); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleListArchives(w http.ResponseWriter, r *http.Request) {
	scope := policy.ScopeFor(identity(r))
	archives, err := s.archiveRepo.List(r.Context(), scope.OrgID, scope.OwnerID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": archives})
}

func (s *Server) handleArchiveOutcome(w http.ResponseWriter, r *http.Request) {
	archive, ok := s.loadArchive(w, r)
	if !ok {
		return
	}
	var req struct {
		Outcome string `json:"outcome"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	outcome := strings.ToLower(strings.TrimSpace(req.Outcome))
	if outcome != models.OutcomePending && outcome != models.OutcomeWon && outcome != models.OutcomeLost {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("outcome must be pending, won or lost"))
		return
	}
	if err := s.archiveRepo.SetOutcome(r.Context(), archive.ArchiveID, outcome); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "outcome": outcome})
}

// handleRestoreArchive turns an archived bid back into a live draft. The
// restored bid gets a fresh id; the archive entry is consumed.
func (s *Server) handleRestoreArchive(w http.ResponseWriter, r *http.Request) {
	archive, ok := s.loadArchive(w, r)
	if !ok {
		return
	}
	sections := make([]models.Section, len(archive.Sections))
	copy(sections, archive.Sections)
	for i := range sections {
		if sections[i].Status == models.SectionStatusApproved {
			sections[i].Status = models.SectionStatusCompleted
		}
	}
	bid := models.Bid{
		BidID:    uuid.NewString(),
		OwnerID:  archive.OwnerID,
		OrgID:    archive.OrgID,
		BidName:  archive.BidName,
		Client:   archive.Client,
		Status:   models.BidStatusDrafting,
		Progress: review.Progress(sections),
		Sections: sections,
	}
	if err := s.bidRepo.CreateBid(r.Context(), bid); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.archiveRepo.Delete(r.Context(), archive.ArchiveID); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

func (s *Server) loadArchive(w http.ResponseWriter, r *http.Request) (models.Archive, bool) {
	archive, err := s.archiveRepo.Get(r.Context(), chi.URLParam(r, "archiveID"))
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			writeErr(w, http.StatusNotFound, err)
		} else {
			writeErr(w, http.StatusInternalServerError, err)
		}
		return models.Archive{}, false
	}
	id := identity(r)
	if archive.OrgID != id.OrgID || (archive.OwnerID != id.UserID && !policy.CanReview(id)) {
		writeErr(w, http.StatusForbidden, fmt.Errorf("no access to this archive"))
		return models.Archive{}, false
	}
	return archive, true
}
