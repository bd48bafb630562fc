package storage

import (
	"context"
	"fmt"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/util"
	"github.com/jackc/pgx/v5"
)

type InviteRepo struct {
	db *DB
}

func NewInviteRepo(db *DB) *InviteRepo {
	return &InviteRepo{db: db}
}

func (r *InviteRepo) Create(ctx context.Context, inv models.Invite) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO invites (invite_id, org_id, invited_by, email, name, role, token)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		inv.InviteID, inv.OrgID, inv.InvitedBy, inv.Email, inv.Name, inv.Role, inv.Token,
	)
	if err != nil {
		return fmt.Errorf("create invite: %w", err)
	}
	return nil
}

func (r *InviteRepo) GetByToken(ctx context.Context, token string) (models.Invite, error) {
	row := r.db.Pool.QueryRow(ctx, `
SELECT invite_id, org_id, invited_by, email, name, role, token, created_at
FROM invites WHERE token=$1`, token)
	var inv models.Invite
	err := row.Scan(&inv.InviteID, &inv.OrgID, &inv.InvitedBy, &inv.Email, &inv.Name, &inv.Role, &inv.Token, &inv.CreatedAt)
	if err == pgx.ErrNoRows {
		return models.Invite{}, util.ErrNotFound
	}
	if err != nil {
		return models.Invite{}, fmt.Errorf("get invite by token: %w", err)
	}
	return inv, nil
}

func (r *InviteRepo) ListForOrg(ctx context.Context, orgID string) ([]models.Invite, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT invite_id, org_id, invited_by, email, name, role, token, created_at
FROM invites WHERE org_id=$1
ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	out := make([]models.Invite, 0)
	for rows.Next() {
		var inv models.Invite
		if err := rows.Scan(&inv.InviteID, &inv.OrgID, &inv.InvitedBy, &inv.Email, &inv.Name, &inv.Role, &inv.Token, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Delete covers both revocation and consume-on-accept: an invite never
// survives acceptance.
func (r *InviteRepo) Delete(ctx context.Context, inviteID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM invites WHERE invite_id=$1`, inviteID)
	if err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	return nil
}
