package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// PostgresStore persists subscriptions in Postgres. Selected over the file
// store when a DSN is configured. Schema:
//
//	CREATE TABLE subscriptions (
//	    owner_id TEXT NOT NULL,
//	    channel  TEXT NOT NULL,
//	    category TEXT NOT NULL,
//	    topic    TEXT NOT NULL,
//	    PRIMARY KEY (owner_id, category, topic)
//	);
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.SubscriptionStore = (*PostgresStore)(nil)

// NewPostgresStore opens the connection and verifies it.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// List returns every subscription across all owners.
func (s *PostgresStore) List(ctx context.Context) ([]domain.Subscription, error) {
	query := s.builder.
		Select("owner_id", "channel", "category", "topic").
		From("subscriptions")
	return s.querySubscriptions(ctx, query)
}

// ListByOwner returns one owner's subscriptions.
func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Subscription, error) {
	query := s.builder.
		Select("owner_id", "channel", "category", "topic").
		From("subscriptions").
		Where(sq.Eq{"owner_id": ownerID})
	return s.querySubscriptions(ctx, query)
}

func (s *PostgresStore) querySubscriptions(ctx context.Context, query sq.SelectBuilder) ([]domain.Subscription, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		if err := rows.Scan(&sub.OwnerID, &sub.Channel, &sub.Category, &sub.Topic); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return subs, nil
}

// Add inserts the subscription; the primary key rejects a duplicate
// (category, topic) pair per owner.
func (s *PostgresStore) Add(ctx context.Context, sub domain.Subscription) error {
	sqlStr, args, err := s.builder.
		Insert("subscriptions").
		Columns("owner_id", "channel", "category", "topic").
		Values(sub.OwnerID, sub.Channel, sub.Category, sub.Topic).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// Remove deletes the matching subscription.
func (s *PostgresStore) Remove(ctx context.Context, ownerID, category, topic string) error {
	sqlStr, args, err := s.builder.
		Delete("subscriptions").
		Where(sq.Eq{"owner_id": ownerID, "category": category, "topic": topic}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("owner %s is not subscribed to %s/%s", ownerID, category, topic)
	}
	return nil
}
