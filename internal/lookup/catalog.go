package lookup

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestEntry is one medical-test catalog row with its similarity score
// against the queried symptoms.
type TestEntry struct {
	Name              string
	Symptoms          string
	Contraindications string
	Score             float64
}

// Catalog is the pgvector-backed medical test catalog.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// Search returns the closest catalog entries by cosine similarity, best
// first.
func (c *Catalog) Search(ctx context.Context, embedding []float64, limit int) ([]TestEntry, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT test_name, symptoms, contraindications,
		       1 - (embedding <=> $1) AS score
		FROM medical_tests
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`,
		pgVector(embedding), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var entries []TestEntry
	for rows.Next() {
		var e TestEntry
		if err := rows.Scan(&e.Name, &e.Symptoms, &e.Contraindications, &e.Score); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}

// Seed upserts a catalog entry together with its embedding.
func (c *Catalog) Seed(ctx context.Context, entry TestEntry, embedding []float64) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO medical_tests (test_name, symptoms, contraindications, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (test_name)
		DO UPDATE SET symptoms = EXCLUDED.symptoms,
		              contraindications = EXCLUDED.contraindications,
		              embedding = EXCLUDED.embedding`,
		entry.Name, entry.Symptoms, entry.Contraindications, pgVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("upsert catalog entry: %w", err)
	}
	return nil
}

// pgVector formats a float64 slice as a pgvector-compatible literal, e.g.
// "[0.1,0.2,0.3]", suitable for a parameterized query against a vector
// column.
func pgVector(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
