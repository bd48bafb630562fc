package vector

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// Match is one retrieved chunk with its cosine similarity score in [0,1].
type Match struct {
	Namespace  string  `json:"namespace"`
	DocID      string  `json:"doc_id"`
	ChunkID    string  `json:"chunk_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Category   string  `json:"category"`
	Priority   int     `json:"priority"`
	Score      float64 `json:"score"`
}

type Searcher struct {
	pool *pgxpool.Pool
}

func NewSearcher(pool *pgxpool.Pool) *Searcher {
	return &Searcher{pool: pool}
}

// ToLiteral renders an embedding as a pgvector literal: "[0.1,0.2,...]".
func ToLiteral(vec []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// SearchNamespace returns the topK nearest chunks of one namespace.
// pgvector's <=> operator is cosine distance, so similarity is 1-distance.
func (s *Searcher) SearchNamespace(ctx context.Context, namespace string, queryVec []float32, topK int) ([]Match, error) {
	lit := ToLiteral(queryVec)
	rows, err := s.pool.Query(ctx, `
SELECT namespace, doc_id, chunk_id, chunk_index, text, category, priority,
       1 - (embedding <=> $2::vector) AS score
FROM kb_chunks
WHERE namespace=$1 AND embedding IS NOT NULL
ORDER BY embedding <=> $2::vector
LIMIT $3`, namespace, lit, topK)
	if err != nil {
		return nil, fmt.Errorf("search namespace %s: %w", namespace, err)
	}
	defer rows.Close()

	out := make([]Match, 0, topK)
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Namespace, &m.DocID, &m.ChunkID, &m.ChunkIndex, &m.Text, &m.Category, &m.Priority, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SearchNamespaces fans one query vector out across every namespace in
// parallel, takes topK per namespace, then merges to the best topN overall.
func (s *Searcher) SearchNamespaces(ctx context.Context, namespaces []string, queryVec []float32, topK, topN int) ([]Match, error) {
	if len(namespaces) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	lists := make([][]Match, 0, len(namespaces))

	g, gctx := errgroup.WithContext(ctx)
	for _, ns := range namespaces {
		ns := ns
		g.Go(func() error {
			matches, err := s.SearchNamespace(gctx, ns, queryVec, topK)
			if err != nil {
				return err
			}
			mu.Lock()
			lists = append(lists, matches)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return MergeRank(lists, topN), nil
}

// MergeRank flattens per-namespace result lists and keeps the best limit
// matches by descending score. Equal scores order by (DocID, ChunkIndex)
// so rankings are deterministic across runs.
func MergeRank(lists [][]Match, limit int) []Match {
	merged := make([]Match, 0)
	for _, l := range lists {
		merged = append(merged, l...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if merged[i].DocID != merged[j].DocID {
			return merged[i].DocID < merged[j].DocID
		}
		return merged[i].ChunkIndex < merged[j].ChunkIndex
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
