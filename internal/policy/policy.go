// Package policy centralizes role and ownership checks so every handler
// answers access questions the same way.
package policy

import (
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/auth"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
)

// Scope narrows list queries. An empty OwnerID means org-wide visibility.
type Scope struct {
	OrgID   string
	OwnerID string
}

// ScopeFor maps a caller to their list scope: managers and admins see the
// whole organization, standard users only their own records.
func ScopeFor(id auth.Identity) Scope {
	if id.Role == models.RoleManager || id.Role == models.RoleAdmin {
		return Scope{OrgID: id.OrgID}
	}
	return Scope{OrgID: id.OrgID, OwnerID: id.UserID}
}

// CanAccessBid reports whether the caller may read or modify a bid.
func CanAccessBid(id auth.Identity, b models.Bid) bool {
	if b.OrgID != id.OrgID {
		return false
	}
	if id.Role == models.RoleManager || id.Role == models.RoleAdmin {
		return true
	}
	return b.OwnerID == id.UserID
}

// CanAccessDoc reports whether the caller may read or modify a knowledge doc.
func CanAccessDoc(id auth.Identity, d models.KnowledgeDoc) bool {
	if d.OrgID != id.OrgID {
		return false
	}
	if id.Role == models.RoleManager || id.Role == models.RoleAdmin {
		return true
	}
	return d.OwnerID == id.UserID
}

// CanReview gates flag/approve/finalize actions.
func CanReview(id auth.Identity) bool {
	return id.Role == models.RoleManager || id.Role == models.RoleAdmin
}

// CanManageTeam gates invite creation and revocation.
func CanManageTeam(id auth.Identity) bool {
	return id.Role == models.RoleAdmin
}
