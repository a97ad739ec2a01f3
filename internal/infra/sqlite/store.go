package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"remindme-service/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// Store provides SQLite-backed people, reminder and settings persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the database at path and creates missing tables.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// ListPeople returns people newest first.
func (s *Store) ListPeople(ctx context.Context) ([]domain.Person, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, name, relation, notes, photo_uri, created_at
FROM people
ORDER BY created_at DESC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Person, 0)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
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
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, relation, notes, photo_uri, created_at
FROM people
WHERE id = ?
`, id)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Person{}, domain.ErrPersonNotFound
	}
	if err != nil {
		return domain.Person{}, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

func (s *Store) AddPerson(ctx context.Context, p domain.Person) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO people (id, name, relation, notes, photo_uri, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		p.ID,
		p.Name,
		nullString(p.Relation),
		nullString(p.Notes),
		nullString(p.PhotoURI),
		p.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("add person: %w", err)
	}
	return nil
}

func (s *Store) DeletePerson(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM people WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	return requireAffected(res, domain.ErrPersonNotFound)
}

func (s *Store) DeleteAllPeople(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM people`); err != nil {
		return fmt.Errorf("delete all people: %w", err)
	}
	return nil
}

// ListReminders returns reminders newest first with the linked person's
// name and photo joined in.
func (s *Store) ListReminders(ctx context.Context) ([]domain.Reminder, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT r.id, r.title, r.description, r.icon, r.schedule_json, r.person_id, r.created_at,
       p.name, p.photo_uri
FROM reminders r
LEFT JOIN people p ON p.id = r.person_id
ORDER BY r.created_at DESC, r.id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Reminder, 0)
	for rows.Next() {
		var (
			r            domain.Reminder
			scheduleJSON string
			personID     sql.NullString
			personName   sql.NullString
			personPhoto  sql.NullString
			createdAt    int64
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.Icon, &scheduleJSON, &personID, &createdAt, &personName, &personPhoto); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		if err := json.Unmarshal([]byte(scheduleJSON), &r.Schedule); err != nil {
			return nil, fmt.Errorf("decode schedule for reminder %s: %w", r.ID, err)
		}
		r.PersonID = stringPtr(personID)
		r.PersonName = stringPtr(personName)
		r.PersonPhoto = stringPtr(personPhoto)
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return out, nil
}

func (s *Store) AddReminder(ctx context.Context, r domain.Reminder) error {
	schedule, err := json.Marshal(r.Schedule)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO reminders (id, title, description, icon, schedule_json, person_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		r.ID,
		r.Title,
		r.Description,
		r.Icon,
		string(schedule),
		nullString(r.PersonID),
		r.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("add reminder: %w", err)
	}
	return nil
}

func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return requireAffected(res, domain.ErrReminderNotFound)
}

func (s *Store) ReminderExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.sqlDB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM reminders WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reminder: %w", err)
	}
	return exists, nil
}

func (s *Store) DeleteAllReminders(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM reminders`); err != nil {
		return fmt.Errorf("delete all reminders: %w", err)
	}
	return nil
}

func (s *Store) ReadSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) WriteSetting(ctx context.Context, key, value string) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value
`, key, value)
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) ClearSettings(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM settings`); err != nil {
		return fmt.Errorf("clear settings: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (domain.Person, error) {
	var (
		p         domain.Person
		relation  sql.NullString
		notes     sql.NullString
		photo     sql.NullString
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.Name, &relation, &notes, &photo, &createdAt); err != nil {
		return domain.Person{}, err
	}
	p.Relation = stringPtr(relation)
	p.Notes = stringPtr(notes)
	p.PhotoURI = stringPtr(photo)
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	return p, nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
