package persistence

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"meridian/internal/core"
)

// sendLogRepo implements SendLogRepository
type sendLogRepo struct {
	repoBase
}

var sendLogColumns = []string{"id", "digest_id", "recipient", "status", "provider_message_id", "error", "created_at"}

func (r *sendLogRepo) Create(ctx context.Context, entry *core.SendLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = r.now()

	_, err := r.exec(ctx, r.sb.Insert("send_logs").
		Columns(sendLogColumns...).
		Values(entry.ID, entry.DigestID, entry.Recipient, string(entry.Status),
			entry.ProviderMessageID, entry.Error, entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert send log: %w", err)
	}
	return nil
}

func (r *sendLogRepo) ListForDigest(ctx context.Context, digestID string) ([]core.SendLog, error) {
	return r.list(ctx, r.sb.Select(sendLogColumns...).From("send_logs").
		Where(sq.Eq{"digest_id": digestID}).
		OrderBy("created_at ASC"))
}

func (r *sendLogRepo) ListRecent(ctx context.Context, limit int) ([]core.SendLog, error) {
	q := r.sb.Select(sendLogColumns...).From("send_logs").OrderBy("created_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return r.list(ctx, q)
}

func (r *sendLogRepo) list(ctx context.Context, q sq.SelectBuilder) ([]core.SendLog, error) {
	rows, err := r.queryRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list send logs: %w", err)
	}
	defer rows.Close()

	var logs []core.SendLog
	for rows.Next() {
		var l core.SendLog
		var status string
		var providerID, errText sql.NullString
		if err := rows.Scan(&l.ID, &l.DigestID, &l.Recipient, &status, &providerID, &errText, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan send log: %w", err)
		}
		l.Status = core.SendStatus(status)
		l.ProviderMessageID = providerID.String
		l.Error = errText.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
