package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/util"
	"github.com/jackc/pgx/v5"
)

type ArchiveRepo struct {
	db *DB
}

func NewArchiveRepo(db *DB) *ArchiveRepo {
	return &ArchiveRepo{db: db}
}

func (r *ArchiveRepo) Create(ctx context.Context, a models.Archive) error {
	sections, err := json.Marshal(a.Sections)
	if err != nil {
		return fmt.Errorf("marshal archive sections: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO archives (archive_id, bid_id, owner_id, org_id, bid_name, client, outcome, sections)
VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), $7, $8::jsonb)`,
		a.ArchiveID, a.BidID, a.OwnerID, a.OrgID, a.BidName, a.Client, a.Outcome, sections,
	)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	return nil
}

func (r *ArchiveRepo) Get(ctx context.Context, archiveID string) (models.Archive, error) {
	row := r.db.Pool.QueryRow(ctx, `
SELECT archive_id, bid_id, owner_id, org_id, bid_name, COALESCE(client,''), outcome, sections, archived_at
FROM archives WHERE archive_id=$1`, archiveID)
	a, err := scanArchive(row)
	if err == pgx.ErrNoRows {
		return models.Archive{}, util.ErrNotFound
	}
	if err != nil {
		return models.Archive{}, fmt.Errorf("get archive: %w", err)
	}
	return a, nil
}

func (r *ArchiveRepo) List(ctx context.Context, orgID, ownerID string) ([]models.Archive, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT archive_id, bid_id, owner_id, org_id, bid_name, COALESCE(client,''), outcome, sections, archived_at
FROM archives
WHERE org_id=$1 AND ($2='' OR owner_id=$2)
ORDER BY archived_at DESC`, orgID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	out := make([]models.Archive, 0)
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *ArchiveRepo) SetOutcome(ctx context.Context, archiveID, outcome string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE archives SET outcome=$2 WHERE archive_id=$1`, archiveID, outcome)
	if err != nil {
		return fmt.Errorf("set archive outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return util.ErrNotFound
	}
	return nil
}

func (r *ArchiveRepo) Delete(ctx context.Context, archiveID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM archives WHERE archive_id=$1`, archiveID)
	if err != nil {
		return fmt.Errorf("delete archive: %w", err)
	}
	return nil
}

func scanArchive(row bidScanner) (models.Archive, error) {
	var a models.Archive
	var sections []byte
	if err := row.Scan(&a.ArchiveID, &a.BidID, &a.OwnerID, &a.OrgID, &a.BidName, &a.Client, &a.Outcome, &sections, &a.ArchivedAt); err != nil {
		return models.Archive{}, err
	}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &a.Sections); err != nil {
			return models.Archive{}, fmt.Errorf("unmarshal archive sections: %w", err)
		}
	}
	return a, nil
}
