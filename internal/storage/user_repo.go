package storage

import (
	"context"
	"fmt"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/util"
	"github.com/jackc/pgx/v5"
)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Upsert(ctx context.Context, u models.UserProfile) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO users (user_id, org_id, email, display_name, role)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id)
DO UPDATE SET org_id=EXCLUDED.org_id, email=EXCLUDED.email, display_name=EXCLUDED.display_name, role=EXCLUDED.role`,
		u.UserID, u.OrgID, u.Email, u.DisplayName, u.Role,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (models.UserProfile, error) {
	row := r.db.Pool.QueryRow(ctx, `
SELECT user_id, org_id, email, display_name, role, created_at FROM users WHERE user_id=$1`, userID)
	var u models.UserProfile
	err := row.Scan(&u.UserID, &u.OrgID, &u.Email, &u.DisplayName, &u.Role, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return models.UserProfile{}, util.ErrNotFound
	}
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepo) ListByOrg(ctx context.Context, orgID string) ([]models.UserProfile, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT user_id, org_id, email, display_name, role, created_at FROM users WHERE org_id=$1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]models.UserProfile, 0)
	for rows.Next() {
		var u models.UserProfile
		if err := rows.Scan(&u.UserID, &u.OrgID, &u.Email, &u.DisplayName, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
