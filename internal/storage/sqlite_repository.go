package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const sqliteTimeLayout = time.RFC3339Nano

// Supported database/sql driver names.
const (
	DriverSQLite3 = "sqlite3" // mattn/go-sqlite3, cgo
	DriverSQLite  = "sqlite"  // modernc.org/sqlite, pure Go
)

type SQLiteRepository struct {
	db     *sql.DB
	driver string
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	return newSQLiteRepository(db, DriverSQLite3)
}

func newSQLiteRepository(db *sql.DB, driver string) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db, driver: driver}, nil
}

// OpenSQLite opens path with the cgo driver.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	return Open(DriverSQLite3, path)
}

// Open opens a SQLite database with the named driver. SQLite allows a single
// writer, so the pool is capped at one connection.
func Open(driver, path string) (*SQLiteRepository, error) {
	dsn, err := buildDSN(driver, path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	repo, err := newSQLiteRepository(db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func buildDSN(driver, path string) (string, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	switch driver {
	case DriverSQLite3:
		return path + sep + "_foreign_keys=on&_busy_timeout=5000", nil
	case DriverSQLite:
		return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	default:
		return "", fmt.Errorf("storage: unsupported driver %q", driver)
	}
}

func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

func (r *SQLiteRepository) Driver() string {
	return r.driver
}

// Migrate applies pending migrations with the repository's driver.
func (r *SQLiteRepository) Migrate() error {
	return MigrateUp(r.db, r.driver)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) EnsureCategory(ctx context.Context, in Category) (Category, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, title, title_key, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(title_key) DO NOTHING`,
		in.ID, in.Title, in.TitleKey, mustTime(in.CreatedAt),
	)
	if err != nil {
		return Category{}, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Category{}, false, err
	}
	stored, err := r.FindCategoryByKey(ctx, in.TitleKey)
	if err != nil {
		return Category{}, false, err
	}
	return stored, affected > 0, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, title, title_key, created_at FROM categories WHERE id = ?`, id)
	return notFound(scanCategory(row))
}

func (r *SQLiteRepository) FindCategoryByKey(ctx context.Context, titleKey string) (Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, title, title_key, created_at FROM categories WHERE title_key = ?`, titleKey)
	return notFound(scanCategory(row))
}

func (r *SQLiteRepository) FindCategoryByTitle(ctx context.Context, title string) (Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, title, title_key, created_at FROM categories WHERE title = ?`, title)
	return notFound(scanCategory(row))
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, in Category) error {
	res, err := r.db.ExecContext(ctx, `UPDATE categories SET title = ?, title_key = ? WHERE id = ?`, in.Title, in.TitleKey, in.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: category %q", ErrDuplicate, in.Title)
		}
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, title_key, created_at FROM categories ORDER BY title_key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Category, 0)
	for rows.Next() {
		item, scanErr := scanCategory(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateTracker(ctx context.Context, in Tracker) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO trackers (id, category_id, title, emoji, color, schedule, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		in.ID, in.CategoryID, in.Title, in.Emoji, in.Color, in.Schedule, in.Kind, mustTime(in.CreatedAt),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: tracker %s", ErrDuplicate, in.ID)
	}
	return nil
}

// CreateTrackerInCategory upserts cat by TitleKey and inserts in under it in
// one transaction. Nothing is written when the tracker insert fails.
func (r *SQLiteRepository) CreateTrackerInCategory(ctx context.Context, cat Category, in Tracker) (stored Category, created bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Category{}, false, fmt.Errorf("begin create tracker: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO categories (id, title, title_key, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(title_key) DO NOTHING`,
		cat.ID, cat.Title, cat.TitleKey, mustTime(cat.CreatedAt),
	)
	if err != nil {
		return Category{}, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Category{}, false, err
	}
	row := tx.QueryRowContext(ctx, `SELECT id, title, title_key, created_at FROM categories WHERE title_key = ?`, cat.TitleKey)
	if stored, err = notFound(scanCategory(row)); err != nil {
		return Category{}, false, err
	}

	in.CategoryID = stored.ID
	res, err = tx.ExecContext(ctx, `
		INSERT INTO trackers (id, category_id, title, emoji, color, schedule, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		in.ID, in.CategoryID, in.Title, in.Emoji, in.Color, in.Schedule, in.Kind, mustTime(in.CreatedAt),
	)
	if err != nil {
		return Category{}, false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return Category{}, false, err
	}
	if inserted == 0 {
		return Category{}, false, fmt.Errorf("%w: tracker %s", ErrDuplicate, in.ID)
	}
	if err = tx.Commit(); err != nil {
		return Category{}, false, fmt.Errorf("commit create tracker: %w", err)
	}
	return stored, affected > 0, nil
}

func (r *SQLiteRepository) GetTracker(ctx context.Context, id string) (Tracker, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, category_id, title, emoji, color, schedule, kind, created_at
		FROM trackers WHERE id = ?`, id)
	item, err := scanTracker(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tracker{}, ErrNotFound
		}
		return Tracker{}, err
	}
	return item, nil
}

func (r *SQLiteRepository) UpdateTracker(ctx context.Context, in Tracker) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE trackers
		SET category_id = ?, title = ?, emoji = ?, color = ?, schedule = ?, kind = ?
		WHERE id = ?`,
		in.CategoryID, in.Title, in.Emoji, in.Color, in.Schedule, in.Kind, in.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) DeleteTracker(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trackers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListTrackers(ctx context.Context, filter TrackerListFilter) ([]Tracker, error) {
	query := `SELECT id, category_id, title, emoji, color, schedule, kind, created_at FROM trackers`
	args := make([]any, 0, 3)
	if filter.CategoryID != "" {
		query += ` WHERE category_id = ?`
		args = append(args, filter.CategoryID)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Tracker, 0)
	for rows.Next() {
		item, scanErr := scanTracker(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ToggleRecord(ctx context.Context, trackerID, day string, now time.Time) (completed bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin toggle: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var one int
	if err = tx.QueryRowContext(ctx, `SELECT 1 FROM trackers WHERE id = ?`, trackerID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return false, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE tracker_id = ? AND day = ?`, trackerID, day)
	if err != nil {
		return false, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if removed == 0 {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO records (tracker_id, day, created_at) VALUES (?, ?, ?)`,
			trackerID, day, mustTime(now),
		); err != nil {
			return false, err
		}
		completed = true
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit toggle: %w", err)
	}
	return completed, nil
}

func (r *SQLiteRepository) HasRecord(ctx context.Context, trackerID, day string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM records WHERE tracker_id = ? AND day = ? LIMIT 1`, trackerID, day).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *SQLiteRepository) CountRecords(ctx context.Context, filter RecordCountFilter) (int, error) {
	query := `SELECT COUNT(*) FROM records`
	clauses, args := recordClauses(filter.TrackerID, filter.Day)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *SQLiteRepository) ListRecords(ctx context.Context, filter RecordListFilter) ([]Record, error) {
	query := `SELECT tracker_id, day, created_at FROM records`
	clauses, args := recordClauses(filter.TrackerID, filter.Day)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY day ASC, tracker_id ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var item Record
		var created string
		if err := rows.Scan(&item.TrackerID, &item.Day, &created); err != nil {
			return nil, err
		}
		if item.CreatedAt, err = parseRequiredTime(created); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

func (r *SQLiteRepository) PutSetting(ctx context.Context, key, value string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, mustTime(now),
	)
	return err
}

func recordClauses(trackerID, day string) ([]string, []any) {
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if trackerID != "" {
		clauses = append(clauses, "tracker_id = ?")
		args = append(args, trackerID)
	}
	if day != "" {
		clauses = append(clauses, "day = ?")
		args = append(args, day)
	}
	return clauses, args
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	} else if offset > 0 {
		sql += " LIMIT -1"
	}
	if offset > 0 {
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(s scanner) (Category, error) {
	var out Category
	var created string
	if err := s.Scan(&out.ID, &out.Title, &out.TitleKey, &created); err != nil {
		return Category{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return Category{}, err
	}
	out.CreatedAt = createdAt
	return out, nil
}

func scanTracker(s scanner) (Tracker, error) {
	var out Tracker
	var created string
	if err := s.Scan(&out.ID, &out.CategoryID, &out.Title, &out.Emoji, &out.Color, &out.Schedule, &out.Kind, &created); err != nil {
		return Tracker{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return Tracker{}, err
	}
	out.CreatedAt = createdAt
	return out, nil
}

func notFound(c Category, err error) (Category, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	return c, err
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
