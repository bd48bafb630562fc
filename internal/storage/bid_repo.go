package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/util"
	"github.com/jackc/pgx/v5"
)

type BidRepo struct {
	db *DB
}

func NewBidRepo(db *DB) *BidRepo {
	return &BidRepo{db: db}
}

const bidColumns = `
bid_id, owner_id, org_id, bid_name, COALESCE(client,''), deadline, status, progress,
sections, COALESCE(reviewer_id,''), COALESCE(reviewer_email,''), COALESCE(tender_path,''),
revision, submitted_at, completed_at, created_at, updated_at`

func (r *BidRepo) CreateBid(ctx context.Context, b models.Bid) error {
	sections, err := json.Marshal(b.Sections)
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO bids (bid_id, owner_id, org_id, bid_name, client, deadline, status, progress, sections, reviewer_id, reviewer_email, tender_path, revision)
VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, $7, $8, $9::jsonb, NULLIF($10,''), NULLIF($11,''), NULLIF($12,''), 0)`,
		b.BidID, b.OwnerID, b.OrgID, b.BidName, b.Client, b.Deadline, b.Status, b.Progress, sections, b.ReviewerID, b.ReviewerEmail, b.TenderPath,
	)
	if err != nil {
		return fmt.Errorf("create bid: %w", err)
	}
	return nil
}

func (r *BidRepo) GetBid(ctx context.Context, bidID string) (models.Bid, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE bid_id=$1`, bidID)
	b, err := scanBid(row)
	if err == pgx.ErrNoRows {
		return models.Bid{}, util.ErrNotFound
	}
	if err != nil {
		return models.Bid{}, fmt.Errorf("get bid: %w", err)
	}
	return b, nil
}

// ListBids returns an organization's bids; when ownerID is non-empty the
// result is restricted to that owner (standard-role scope).
func (r *BidRepo) ListBids(ctx context.Context, orgID, ownerID string) ([]models.Bid, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+bidColumns+`
FROM bids
WHERE org_id=$1 AND ($2='' OR owner_id=$2)
ORDER BY created_at DESC`, orgID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()
	return collectBids(rows)
}

// ListBidsByStatus serves the manager review queue ("in" membership on status).
func (r *BidRepo) ListBidsByStatus(ctx context.Context, orgID string, statuses []string) ([]models.Bid, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+bidColumns+`
FROM bids
WHERE org_id=$1 AND status = ANY($2)
ORDER BY created_at DESC`, orgID, statuses)
	if err != nil {
		return nil, fmt.Errorf("list bids by status: %w", err)
	}
	defer rows.Close()
	return collectBids(rows)
}

// UpdateBid writes every mutable bid field conditioned on the revision read
// by the caller. A lost read-modify-write race surfaces as ErrRevisionConflict.
func (r *BidRepo) UpdateBid(ctx context.Context, b models.Bid) error {
	sections, err := json.Marshal(b.Sections)
	if err != nil {
		return fmt.Errorf("marshal sections: %w", err)
	}
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE bids SET
  bid_name=$2, client=NULLIF($3,''), deadline=$4, status=$5, progress=$6, sections=$7::jsonb,
  reviewer_id=NULLIF($8,''), reviewer_email=NULLIF($9,''), submitted_at=$10, completed_at=$11,
  revision=revision+1, updated_at=NOW()
WHERE bid_id=$1 AND revision=$12`,
		b.BidID, b.BidName, b.Client, b.Deadline, b.Status, b.Progress, sections,
		b.ReviewerID, b.ReviewerEmail, b.SubmittedAt, b.CompletedAt, b.Revision,
	)
	if err != nil {
		return fmt.Errorf("update bid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return util.ErrRevisionConflict
	}
	return nil
}

func (r *BidRepo) DeleteBid(ctx context.Context, bidID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM bids WHERE bid_id=$1`, bidID)
	if err != nil {
		return fmt.Errorf("delete bid: %w", err)
	}
	return nil
}

type bidScanner interface {
	Scan(dest ...any) error
}

func scanBid(row bidScanner) (models.Bid, error) {
	var b models.Bid
	var sections []byte
	if err := row.Scan(
		&b.BidID, &b.OwnerID, &b.OrgID, &b.BidName, &b.Client, &b.Deadline, &b.Status, &b.Progress,
		&sections, &b.ReviewerID, &b.ReviewerEmail, &b.TenderPath,
		&b.Revision, &b.SubmittedAt, &b.CompletedAt, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return models.Bid{}, err
	}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &b.Sections); err != nil {
			return models.Bid{}, fmt.Errorf("unmarshal sections: %w", err)
		}
	}
	return b, nil
}

func collectBids(rows pgx.Rows) ([]models.Bid, error) {
	out := make([]models.Bid, 0)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bids: %w", err)
	}
	return out, nil
}
