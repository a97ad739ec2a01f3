package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"remindme-service/internal/domain"
)

// Store persists people, reminders and settings in Postgres. Tables are
// created by the migrations package.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) ListPeople(ctx context.Context) ([]domain.Person, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, name, relation, notes, photo_uri, created_at
FROM people
ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Person, 0)
	for rows.Next() {
		var p domain.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Relation, &p.Notes, &p.PhotoURI, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return out, nil
}

func (s *Store) GetPerson(ctx context.Context, id string) (domain.Person, error) {
	var p domain.Person
	err := s.pool.QueryRow(ctx, `
SELECT id, name, relation, notes, photo_uri, created_at
FROM people WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Relation, &p.Notes, &p.PhotoURI, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Person{}, domain.ErrPersonNotFound
	}
	if err != nil {
		return domain.Person{}, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

func (s *Store) AddPerson(ctx context.Context, p domain.Person) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO people (id, name, relation, notes, photo_uri, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.Relation, p.Notes, p.PhotoURI, p.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("add person: %w", err)
	}
	return nil
}

func (s *Store) DeletePerson(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM people WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPersonNotFound
	}
	return nil
}

func (s *Store) DeleteAllPeople(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM people`); err != nil {
		return fmt.Errorf("delete all people: %w", err)
	}
	return nil
}

func (s *Store) ListReminders(ctx context.Context) ([]domain.Reminder, error) {
	rows, err := s.pool.Query(ctx, `
SELECT r.id, r.title, r.description, r.icon, r.schedule_json, r.person_id, r.created_at,
       p.name, p.photo_uri
FROM reminders r
LEFT JOIN people p ON p.id = r.person_id
ORDER BY r.created_at DESC, r.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Reminder, 0)
	for rows.Next() {
		var r domain.Reminder
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.Icon, &r.Schedule, &r.PersonID, &r.CreatedAt, &r.PersonName, &r.PersonPhoto); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return out, nil
}

func (s *Store) AddReminder(ctx context.Context, r domain.Reminder) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO reminders (id, title, description, icon, schedule_json, person_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.Title, r.Description, r.Icon, r.Schedule, r.PersonID, r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("add reminder: %w", err)
	}
	return nil
}

func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reminders WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReminderNotFound
	}
	return nil
}

func (s *Store) ReminderExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM reminders WHERE id=$1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reminder: %w", err)
	}
	return exists, nil
}

func (s *Store) DeleteAllReminders(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM reminders`); err != nil {
		return fmt.Errorf("delete all reminders: %w", err)
	}
	return nil
}

func (s *Store) ReadSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) WriteSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO settings (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) ClearSettings(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM settings`); err != nil {
		return fmt.Errorf("clear settings: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

