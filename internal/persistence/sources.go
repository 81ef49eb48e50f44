package persistence

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"meridian/internal/core"
)

// sourceRepo implements SourceRepository
type sourceRepo struct {
	repoBase
}

func (r *sourceRepo) Create(ctx context.Context, source *core.Source) (bool, error) {
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	if source.Type == "" {
		source.Type = core.SourceRSS
	}
	source.CreatedAt = r.now()

	res, err := r.exec(ctx, r.sb.Insert("sources").
		Columns("id", "name", "url", "type", "is_active", "created_at").
		Values(source.ID, source.Name, source.URL, string(source.Type), source.IsActive, source.CreatedAt).
		Suffix("ON CONFLICT (url) DO NOTHING"))
	if err != nil {
		return false, fmt.Errorf("failed to insert source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *sourceRepo) List(ctx context.Context, activeOnly bool) ([]core.Source, error) {
	q := r.sb.Select("id", "name", "url", "type", "is_active", "created_at").From("sources").OrderBy("name")
	if activeOnly {
		q = q.Where(sq.Eq{"is_active": true})
	}

	rows, err := r.queryRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []core.Source
	for rows.Next() {
		var s core.Source
		var sourceType string
		if err := rows.Scan(&s.ID, &s.Name, &s.URL, &sourceType, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		s.Type = core.SourceType(sourceType)
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func (r *sourceRepo) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.exec(ctx, r.sb.Update("sources").Set("is_active", active).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sourceRepo) Delete(ctx context.Context, id string) error {
	res, err := r.exec(ctx, r.sb.Delete("sources").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
