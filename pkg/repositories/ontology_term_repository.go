package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DeplanckeLab/scfair/pkg/models"
)

// OntologyTermRepository reads ontology terms and their parent/child links
// from Postgres.
type OntologyTermRepository interface {
	FetchTerms(ctx context.Context, ids []string) (models.TermIndex, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.TermMetadata, error)
	Upsert(ctx context.Context, terms []*models.TermMetadata) error
}

type ontologyTermRepository struct {
	pool *pgxpool.Pool
}

// NewOntologyTermRepository creates a repository over pool.
func NewOntologyTermRepository(pool *pgxpool.Pool) OntologyTermRepository {
	return &ontologyTermRepository{pool: pool}
}

var _ OntologyTermRepository = (*ontologyTermRepository)(nil)

const termColumns = `
	t.id::text,
	t.identifier::text,
	COALESCE(t.name::text, ''),
	t.synonyms,
	ARRAY(SELECT r.parent_id::text FROM ontology_term_relationships r WHERE r.child_id = t.id ORDER BY 1),
	ARRAY(SELECT r.child_id::text FROM ontology_term_relationships r WHERE r.parent_id = t.id ORDER BY 1)`

// FetchTerms loads the terms with the given IDs. IDs that are not UUIDs
// cannot exist in the table and are skipped.
func (r *ontologyTermRepository) FetchTerms(ctx context.Context, ids []string) (models.TermIndex, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return models.TermIndex{}, nil
	}

	query := `SELECT` + termColumns + `
		FROM ontology_terms t
		WHERE t.id = ANY($1::uuid[])`

	rows, err := r.pool.Query(ctx, query, valid)
	if err != nil {
		return nil, fmt.Errorf("failed to query ontology terms: %w", err)
	}
	defer rows.Close()

	index := make(models.TermIndex, len(valid))
	for rows.Next() {
		term, err := scanTerm(rows)
		if err != nil {
			return nil, err
		}
		index[term.ID] = term
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ontology terms: %w", err)
	}
	return index, nil
}

// GetByIdentifier returns the term with the given prefixed identifier, or nil.
func (r *ontologyTermRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.TermMetadata, error) {
	query := `SELECT` + termColumns + `
		FROM ontology_terms t
		WHERE t.identifier = $1`

	term, err := scanTerm(r.pool.QueryRow(ctx, query, identifier))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return term, nil
}

// Upsert writes terms and replaces the parent links of each written term.
// Links to parents that are not (yet) stored are skipped.
func (r *ontologyTermRepository) Upsert(ctx context.Context, terms []*models.TermMetadata) error {
	if len(terms) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, t := range terms {
			synonyms := t.Synonyms
			if synonyms == nil {
				synonyms = []string{}
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO ontology_terms (id, identifier, name, synonyms)
				VALUES ($1::uuid, $2, NULLIF($3, ''), $4)
				ON CONFLICT (id) DO UPDATE
				SET identifier = EXCLUDED.identifier,
				    name = EXCLUDED.name,
				    synonyms = EXCLUDED.synonyms,
				    updated_at = now()`,
				t.ID, t.Identifier, t.Name, synonyms)
			if err != nil {
				return fmt.Errorf("failed to upsert ontology term %s: %w", t.Identifier, err)
			}
		}

		for _, t := range terms {
			if _, err := tx.Exec(ctx, `DELETE FROM ontology_term_relationships WHERE child_id = $1::uuid`, t.ID); err != nil {
				return fmt.Errorf("failed to clear parents of %s: %w", t.Identifier, err)
			}
			for _, parentID := range t.ParentIDs {
				if _, err := uuid.Parse(parentID); err != nil || parentID == t.ID {
					continue
				}
				_, err := tx.Exec(ctx, `
					INSERT INTO ontology_term_relationships (parent_id, child_id)
					SELECT $1::uuid, $2::uuid
					WHERE EXISTS (SELECT 1 FROM ontology_terms WHERE id = $1::uuid)
					ON CONFLICT DO NOTHING`,
					parentID, t.ID)
				if err != nil {
					return fmt.Errorf("failed to link %s to parent %s: %w", t.Identifier, parentID, err)
				}
			}
		}
		return nil
	})
}

func scanTerm(row pgx.Row) (*models.TermMetadata, error) {
	var t models.TermMetadata
	if err := row.Scan(&t.ID, &t.Identifier, &t.Name, &t.Synonyms, &t.ParentIDs, &t.ChildIDs); err != nil {
		return nil, fmt.Errorf("failed to scan ontology term: %w", err)
	}
	return &t, nil
}
