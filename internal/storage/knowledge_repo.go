package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/models"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/util"
	"github.com/jackc/pgx/v5"
)

type KnowledgeRepo struct {
	db *DB
}

func NewKnowledgeRepo(db *DB) *KnowledgeRepo {
	return &KnowledgeRepo{db: db}
}

const knowledgeColumns = `
doc_id, owner_id, org_id, file_name, storage_path, category, priority, version,
exclude_from_ai, status, COALESCE(namespace,''), COALESCE(fail_reason,''),
mapping, font_style, uploaded_at, updated_at`

func (r *KnowledgeRepo) CreateDoc(ctx context.Context, d models.KnowledgeDoc) error {
	mapping, font, err := marshalTemplate(d)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO knowledge_docs (doc_id, owner_id, org_id, file_name, storage_path, category, priority, version, exclude_from_ai, status, namespace, mapping, font_style)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11,''), $12, $13)`,
		d.DocID, d.OwnerID, d.OrgID, d.FileName, d.StoragePath, d.Category, d.Priority, d.Version, d.ExcludeFromAI, d.Status, d.Namespace, mapping, font,
	)
	if err != nil {
		return fmt.Errorf("create knowledge doc: %w", err)
	}
	return nil
}

func (r *KnowledgeRepo) GetDoc(ctx context.Context, docID string) (models.KnowledgeDoc, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+knowledgeColumns+` FROM knowledge_docs WHERE doc_id=$1`, docID)
	d, err := scanKnowledgeDoc(row)
	if err == pgx.ErrNoRows {
		return models.KnowledgeDoc{}, util.ErrNotFound
	}
	if err != nil {
		return models.KnowledgeDoc{}, fmt.Errorf("get knowledge doc: %w", err)
	}
	return d, nil
}

func (r *KnowledgeRepo) ListDocs(ctx context.Context, orgID, ownerID string) ([]models.KnowledgeDoc, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+knowledgeColumns+`
FROM knowledge_docs
WHERE org_id=$1 AND ($2='' OR owner_id=$2)
ORDER BY uploaded_at DESC`, orgID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list knowledge docs: %w", err)
	}
	defer rows.Close()
	return collectKnowledgeDocs(rows)
}

// NextVersion is monotonic per (owner, filename): one more than the number
// of uploads already recorded under that name.
func (r *KnowledgeRepo) NextVersion(ctx context.Context, ownerID, fileName string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_docs WHERE owner_id=$1 AND file_name=$2`, ownerID, fileName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count versions: %w", err)
	}
	return count + 1, nil
}

// ListByCategory returns an owner's documents of one category. Branding
// uploads replace the previous asset of the same category.
func (r *KnowledgeRepo) ListByCategory(ctx context.Context, ownerID, category string) ([]models.KnowledgeDoc, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+knowledgeColumns+`
FROM knowledge_docs
WHERE owner_id=$1 AND category=$2`, ownerID, category)
	if err != nil {
		return nil, fmt.Errorf("list docs by category: %w", err)
	}
	defer rows.Close()
	return collectKnowledgeDocs(rows)
}

func (r *KnowledgeRepo) DeleteDoc(ctx context.Context, docID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM knowledge_docs WHERE doc_id=$1`, docID)
	if err != nil {
		return fmt.Errorf("delete knowledge doc: %w", err)
	}
	return nil
}

func (r *KnowledgeRepo) MarkReady(ctx context.Context, docID, namespace string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE knowledge_docs SET status=$2, namespace=$3, fail_reason=NULL, updated_at=NOW() WHERE doc_id=$1`,
		docID, models.DocStatusReady, namespace)
	if err != nil {
		return fmt.Errorf("mark knowledge doc ready: %w", err)
	}
	return nil
}

// RecordFailure keeps the document visibly "processing" (never falsely
// "ready") but records why ingestion stopped.
func (r *KnowledgeRepo) RecordFailure(ctx context.Context, docID, reason string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE knowledge_docs SET fail_reason=NULLIF($2,''), updated_at=NOW() WHERE doc_id=$1`, docID, reason)
	if err != nil {
		return fmt.Errorf("record ingest failure: %w", err)
	}
	return nil
}

func (r *KnowledgeRepo) UpdateMapping(ctx context.Context, docID string, mapping map[string]models.FieldPosition, font *models.FontStyle) error {
	mb, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	var fb []byte
	if font != nil {
		fb, err = json.Marshal(font)
		if err != nil {
			return fmt.Errorf("marshal font style: %w", err)
		}
	}
	_, err = r.db.Pool.Exec(ctx, `
UPDATE knowledge_docs SET mapping=$2, font_style=$3, updated_at=NOW() WHERE doc_id=$1`, docID, mb, fb)
	if err != nil {
		return fmt.Errorf("update template mapping: %w", err)
	}
	return nil
}

// ListNamespaces returns the vector namespaces an owner is entitled to
// search: ready, non-excluded documents only.
func (r *KnowledgeRepo) ListNamespaces(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT namespace FROM knowledge_docs
WHERE owner_id=$1 AND status=$2 AND exclude_from_ai=FALSE AND namespace IS NOT NULL`,
		ownerID, models.DocStatusReady)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("scan namespace: %w", err)
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

func marshalTemplate(d models.KnowledgeDoc) ([]byte, []byte, error) {
	var mapping, font []byte
	var err error
	if d.Mapping != nil {
		mapping, err = json.Marshal(d.Mapping)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal mapping: %w", err)
		}
	}
	if d.FontStyle != nil {
		font, err = json.Marshal(d.FontStyle)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal font style: %w", err)
		}
	}
	return mapping, font, nil
}

func scanKnowledgeDoc(row bidScanner) (models.KnowledgeDoc, error) {
	var d models.KnowledgeDoc
	var mapping, font []byte
	if err := row.Scan(
		&d.DocID, &d.OwnerID, &d.OrgID, &d.FileName, &d.StoragePath, &d.Category, &d.Priority, &d.Version,
		&d.ExcludeFromAI, &d.Status, &d.Namespace, &d.FailReason,
		&mapping, &font, &d.UploadedAt, &d.UpdatedAt,
	); err != nil {
		return models.KnowledgeDoc{}, err
	}
	if len(mapping) > 0 {
		if err := json.Unmarshal(mapping, &d.Mapping); err != nil {
			return models.KnowledgeDoc{}, fmt.Errorf("unmarshal mapping: %w", err)
		}
	}
	if len(font) > 0 {
		if err := json.Unmarshal(font, &d.FontStyle); err != nil {
			return models.KnowledgeDoc{}, fmt.Errorf("unmarshal font style: %w", err)
		}
	}
	return d, nil
}

func collectKnowledgeDocs(rows pgx.Rows) ([]models.KnowledgeDoc, error) {
	out := make([]models.KnowledgeDoc, 0)
	for rows.Next() {
		d, err := scanKnowledgeDoc(rows)
		if err != nil {
			return nil, fmt.Errorf("scan knowledge doc: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge docs: %w", err)
	}
	return out, nil
}
