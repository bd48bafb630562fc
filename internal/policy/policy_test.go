package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/auth"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
)

func TestScopeFor(t *testing.T) {
	standard := auth.Identity{UserID: "u1", OrgID: "org1", Role: models.RoleStandard}
	manager := auth.Identity{UserID: "u2", OrgID: "org1", Role: models.RoleManager}
	admin := auth.Identity{UserID: "u3", OrgID: "org1", Role: models.RoleAdmin}

	assert.Equal(t, Scope{OrgID: "org1", OwnerID: "u1"}, ScopeFor(standard))
	assert.Equal(t, Scope{OrgID: "org1"}, ScopeFor(manager))
	assert.Equal(t, Scope{OrgID: "org1"}, ScopeFor(admin))
}

func TestCanAccessBid(t *testing.T) {
	bid := models.Bid{BidID: "b1", OwnerID: "u1", OrgID: "org1"}

	assert.True(t, CanAccessBid(auth.Identity{UserID: "u1", OrgID: "org1", Role: models.RoleStandard}, bid))
	assert.False(t, CanAccessBid(auth.Identity{UserID: "u9", OrgID: "org1", Role: models.RoleStandard}, bid))
	assert.True(t, CanAccessBid(auth.Identity{UserID: "u9", OrgID: "org1", Role: models.RoleManager}, bid))
	// No cross-org access, regardless of role.
	assert.False(t, CanAccessBid(auth.Identity{UserID: "u1", OrgID: "org2", Role: models.RoleAdmin}, bid))
}

func TestReviewAndTeamGates(t *testing.T) {
	assert.False(t, CanReview(auth.Identity{Role: models.RoleStandard}))
	assert.True(t, CanReview(auth.Identity{Role: models.RoleManager}))
	assert.True(t, CanReview(auth.Identity{Role: models.RoleAdmin}))

	assert.False(t, CanManageTeam(auth.Identity{Role: models.RoleManager}))
	assert.True(t, CanManageTeam(auth.Identity{Role: models.RoleAdmin}))
}
