package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"meridian/internal/core"
)

// digestRepo implements DigestRepository
type digestRepo struct {
	repoBase
}

var digestColumns = []string{
	"id", "digest_date", "category", "status", "content_json", "generation_meta",
	"approved_at", "sent_at", "created_at", "updated_at",
}

// upsertSuffix keeps a sent digest sent and resets anything else to an
// unapproved draft. The whole write is one statement so overlapping runs
// cannot interleave a read and a write.
const upsertSuffix = `ON CONFLICT (digest_date, category) DO UPDATE SET
	content_json = excluded.content_json,
	generation_meta = excluded.generation_meta,
	updated_at = excluded.updated_at,
	status = CASE WHEN digests.status = 'sent' THEN 'sent' ELSE 'draft' END,
	approved_at = CASE WHEN digests.status = 'sent' THEN digests.approved_at ELSE NULL END
RETURNING id`

func (r *digestRepo) Upsert(ctx context.Context, date, category string, content core.DailyDigest, meta core.GenerationMeta) (*core.Digest, error) {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal digest content: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation meta: %w", err)
	}

	now := r.now()
	row, err := r.queryRow(ctx, r.sb.Insert("digests").
		Columns("id", "digest_date", "category", "status", "content_json", "generation_meta", "created_at", "updated_at").
		Values(uuid.NewString(), date, category, string(core.StatusDraft), string(contentJSON), string(metaJSON), now, now).
		Suffix(upsertSuffix))
	if err != nil {
		return nil, err
	}

	var id string
	if err := row.Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to upsert digest: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *digestRepo) Get(ctx context.Context, date, category string) (*core.Digest, error) {
	return r.getOne(ctx, sq.Eq{"digest_date": date, "category": category})
}

func (r *digestRepo) GetByID(ctx context.Context, id string) (*core.Digest, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *digestRepo) getOne(ctx context.Context, where sq.Eq) (*core.Digest, error) {
	row, err := r.queryRow(ctx, r.sb.Select(digestColumns...).From("digests").Where(where))
	if err != nil {
		return nil, err
	}
	d, err := scanDigest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *digestRepo) ListRecent(ctx context.Context, limit int) ([]core.Digest, error) {
	return r.list(ctx, nil, limit)
}

func (r *digestRepo) ListSent(ctx context.Context, limit int) ([]core.Digest, error) {
	return r.list(ctx, sq.Eq{"status": string(core.StatusSent)}, limit)
}

func (r *digestRepo) list(ctx context.Context, where sq.Sqlizer, limit int) ([]core.Digest, error) {
	q := r.sb.Select(digestColumns...).From("digests").OrderBy("digest_date DESC", "created_at DESC")
	if where != nil {
		q = q.Where(where)
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	rows, err := r.queryRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list digests: %w", err)
	}
	defer rows.Close()

	var digests []core.Digest
	for rows.Next() {
		d, err := scanDigest(rows)
		if err != nil {
			return nil, err
		}
		digests = append(digests, *d)
	}
	return digests, rows.Err()
}

func (r *digestRepo) Approve(ctx context.Context, id string) (bool, error) {
	now := r.now()
	return r.transition(ctx, r.sb.Update("digests").
		Set("status", string(core.StatusApproved)).
		Set("approved_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": []string{string(core.StatusDraft), string(core.StatusSkipped)}}))
}

func (r *digestRepo) Skip(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, r.sb.Update("digests").
		Set("status", string(core.StatusSkipped)).
		Set("updated_at", r.now()).
		Where(sq.Eq{"id": id, "status": []string{string(core.StatusDraft), string(core.StatusApproved)}}))
}

func (r *digestRepo) transition(ctx context.Context, b sq.UpdateBuilder) (bool, error) {
	res, err := r.exec(ctx, b)
	if err != nil {
		return false, fmt.Errorf("failed to update digest status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *digestRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	res, err := r.exec(ctx, r.sb.Update("digests").
		Set("status", string(core.StatusSent)).
		Set("sent_at", at.UTC()).
		Set("updated_at", r.now()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("failed to mark digest sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *digestRepo) UpdateContent(ctx context.Context, id string, content core.DailyDigest) error {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal digest content: %w", err)
	}
	res, err := r.exec(ctx, r.sb.Update("digests").
		Set("content_json", string(contentJSON)).
		Set("updated_at", r.now()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("failed to update digest content: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *digestRepo) DeleteForDate(ctx context.Context, date, category string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.sb.Delete("send_logs").
		Where(sq.Expr("digest_id IN (SELECT id FROM digests WHERE digest_date = ? AND category = ?)", date, category)).
		ToSql()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("failed to delete send logs: %w", err)
	}

	query, args, err = r.sb.Delete("digests").Where(sq.Eq{"digest_date": date, "category": category}).ToSql()
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete digest: %w", err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDigest(row rowScanner) (*core.Digest, error) {
	var d core.Digest
	var status string
	var contentJSON, metaJSON []byte
	var approvedAt, sentAt sql.NullTime

	if err := row.Scan(&d.ID, &d.DigestDate, &d.Category, &status, &contentJSON, &metaJSON,
		&approvedAt, &sentAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan digest: %w", err)
	}

	content, err := core.DecodeDailyDigest(contentJSON)
	if err != nil {
		return nil, fmt.Errorf("digest %s: %w", d.ID, err)
	}
	d.Content = content
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &d.Meta); err != nil {
			return nil, fmt.Errorf("digest %s: failed to decode generation meta: %w", d.ID, err)
		}
	}

	d.Status = core.DigestStatus(status)
	d.ApprovedAt = nullTimePtr(approvedAt)
	d.SentAt = nullTimePtr(sentAt)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return &d, nil
}
