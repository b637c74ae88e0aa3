package repositoryimpl

import (
	"context"
	"database/sql"

	"github.com/focusdeck/focusdeck/internal/subscription"
	"github.com/focusdeck/focusdeck/pkg/cerr"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_subscriptions (id, endpoint, p256dh_key, auth_key, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Endpoint, s.P256dhKey, s.AuthKey, s.CreatedAt)
	if err != nil {
		return cerr.WrapExecError("push subscription", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*subscription.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, endpoint, p256dh_key, auth_key, created_at
		FROM push_subscriptions ORDER BY rowid`)
	if err != nil {
		return nil, cerr.WrapQueryError("push subscriptions", err)
	}
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		var s subscription.Subscription
		if err := rows.Scan(&s.ID, &s.Endpoint, &s.P256dhKey, &s.AuthKey, &s.CreatedAt); err != nil {
			return nil, cerr.WrapQueryError("push subscription", err)
		}
		subs = append(subs, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, cerr.WrapQueryError("push subscriptions", err)
	}
	return subs, nil
}

func (r *SQLiteRepository) FindByEndpoint(ctx context.Context, endpoint string) (*subscription.Subscription, error) {
	var s subscription.Subscription
	err := r.db.QueryRowContext(ctx, `
		SELECT id, endpoint, p256dh_key, auth_key, created_at
		FROM push_subscriptions WHERE endpoint = ?`, endpoint).
		Scan(&s.ID, &s.Endpoint, &s.P256dhKey, &s.AuthKey, &s.CreatedAt)
	if err != nil {
		return nil, cerr.WrapQueryError("push subscription", err)
	}
	return &s, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = ?`, id)
	if err != nil {
		return cerr.WrapExecError("push subscription", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return cerr.WrapExecError("push subscription", err)
	}
	return nil
}
