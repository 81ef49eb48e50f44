package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"meridian/internal/core"
)

// ErrInvalidEmail is returned for addresses that cannot receive a digest.
var ErrInvalidEmail = errors.New("invalid email address")

var emailValidator = validator.New()

// NormalizeEmail trims and lowercases an address and checks its shape.
func NormalizeEmail(addr string) (string, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if err := emailValidator.Var(addr, "required,email"); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, addr)
	}
	return addr, nil
}

// subscriberRepo implements SubscriberRepository
type subscriberRepo struct {
	repoBase
}

var subscriberColumns = []string{"id", "email", "status", "created_at", "updated_at"}

func (r *subscriberRepo) AddOrActivate(ctx context.Context, addr string) (*core.Subscriber, error) {
	addr, err := NormalizeEmail(addr)
	if err != nil {
		return nil, err
	}
	now := r.now()

	_, err = r.exec(ctx, r.sb.Insert("subscribers").
		Columns(subscriberColumns...).
		Values(uuid.NewString(), addr, string(core.SubscriberActive), now, now).
		Suffix("ON CONFLICT (email) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert subscriber: %w", err)
	}

	row, err := r.queryRow(ctx, r.sb.Select(subscriberColumns...).From("subscribers").Where(sq.Eq{"email": addr}))
	if err != nil {
		return nil, err
	}
	sub, err := scanSubscriber(row)
	if err != nil {
		return nil, fmt.Errorf("failed to read subscriber: %w", err)
	}
	return sub, nil
}

func (r *subscriberRepo) Unsubscribe(ctx context.Context, addr string) error {
	addr = strings.ToLower(strings.TrimSpace(addr))
	res, err := r.exec(ctx, r.sb.Update("subscribers").
		Set("status", string(core.SubscriberUnsubscribed)).
		Set("updated_at", r.now()).
		Where(sq.Eq{"email": addr}))
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *subscriberRepo) Delete(ctx context.Context, id string) error {
	res, err := r.exec(ctx, r.sb.Delete("subscribers").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("failed to delete subscriber: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *subscriberRepo) List(ctx context.Context) ([]core.Subscriber, error) {
	rows, err := r.queryRows(ctx, r.sb.Select(subscriberColumns...).From("subscribers").
		OrderBy("created_at DESC", "email"))
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	var subs []core.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (r *subscriberRepo) ListActiveEmails(ctx context.Context) ([]string, error) {
	rows, err := r.queryRows(ctx, r.sb.Select("email").From("subscribers").
		Where(sq.Eq{"status": string(core.SubscriberActive)}).
		OrderBy("email"))
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscribers: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		emails = append(emails, addr)
	}
	return emails, rows.Err()
}

func scanSubscriber(row rowScanner) (*core.Subscriber, error) {
	var sub core.Subscriber
	var status string
	if err := row.Scan(&sub.ID, &sub.Email, &status, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.Status = core.SubscriberStatus(status)
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return &sub, nil
}
