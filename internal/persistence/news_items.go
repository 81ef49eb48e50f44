package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"meridian/internal/core"
)

// newsItemRepo implements NewsItemRepository
type newsItemRepo struct {
	repoBase
}

var newsItemColumns = []string{
	"id", "url_hash", "title", "url", "raw_url", "summary",
	"published_at", "source_name", "source_url", "ingested_at",
}

func (r *newsItemRepo) Upsert(ctx context.Context, item *core.NewsItem) (bool, error) {
	if item.URLHash == "" {
		return false, fmt.Errorf("news item %q has no url hash", item.URL)
	}
	now := r.now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.sb.Select("id").From("news_items").
		Where(sq.Eq{"url_hash": item.URLHash}).ToSql()
	if err != nil {
		return false, err
	}

	var existingID string
	err = tx.QueryRowContext(ctx, query, args...).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.IngestedAt = now
		query, args, err = r.sb.Insert("news_items").
			Columns(append(newsItemColumns, "updated_at")...).
			Values(item.ID, item.URLHash, item.Title, item.URL, item.RawURL, item.Summary,
				timeOrNil(item.PublishedAt), item.SourceName, item.SourceURL, now, now).
			ToSql()
		if err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return false, fmt.Errorf("failed to insert news item: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit news item: %w", err)
		}
		return true, nil

	case err != nil:
		return false, fmt.Errorf("failed to look up news item: %w", err)
	}

	item.ID = existingID
	item.IngestedAt = now
	query, args, err = r.sb.Update("news_items").
		Set("title", item.Title).
		Set("url", item.URL).
		Set("raw_url", item.RawURL).
		Set("summary", item.Summary).
		Set("published_at", timeOrNil(item.PublishedAt)).
		Set("source_name", item.SourceName).
		Set("source_url", item.SourceURL).
		Set("ingested_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": existingID}).
		ToSql()
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("failed to update news item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit news item: %w", err)
	}
	return false, nil
}

func (r *newsItemRepo) ListSince(ctx context.Context, hours int) ([]core.NewsItem, error) {
	threshold := r.now().Add(-time.Duration(hours) * time.Hour)

	rows, err := r.queryRows(ctx, r.sb.Select(newsItemColumns...).From("news_items").
		Where(sq.GtOrEq{"ingested_at": threshold}).
		OrderBy("published_at DESC NULLS LAST", "ingested_at DESC"))
	if err != nil {
		return nil, fmt.Errorf("failed to list news items: %w", err)
	}
	defer rows.Close()

	var items []core.NewsItem
	for rows.Next() {
		var item core.NewsItem
		var summary sql.NullString
		var published sql.NullTime
		if err := rows.Scan(&item.ID, &item.URLHash, &item.Title, &item.URL, &item.RawURL, &summary,
			&published, &item.SourceName, &item.SourceURL, &item.IngestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan news item: %w", err)
		}
		item.Summary = summary.String
		item.PublishedAt = nullTimePtr(published)
		item.IngestedAt = item.IngestedAt.UTC()
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *newsItemRepo) Count(ctx context.Context) (int, error) {
	row, err := r.queryRow(ctx, r.sb.Select("COUNT(*)").From("news_items"))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count news items: %w", err)
	}
	return n, nil
}
