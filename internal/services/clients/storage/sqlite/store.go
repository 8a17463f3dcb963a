package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/gclavel/assurvie/internal/platform/storage/sqlitemigrate"
	"github.com/gclavel/assurvie/internal/services/clients/storage"
	"github.com/gclavel/assurvie/internal/services/clients/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for the clients store.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the clients SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS, "")
}

// Begin opens one transactional session. The returned handle is owned by
// the caller until Commit or Rollback.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin clients transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is one open transaction against the clients store.
type Tx struct {
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if t == nil || t.tx == nil {
		return fmt.Errorf("transaction is not open")
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit clients transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back an already-settled
// transaction is a no-op.
func (t *Tx) Rollback() error {
	if t == nil || t.tx == nil {
		return nil
	}
	if err := t.tx.Rollback(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return nil
		}
		return fmt.Errorf("rollback clients transaction: %w", err)
	}
	return nil
}

// GetDossier loads one dossier within the transaction.
func (t *Tx) GetDossier(ctx context.Context, id string) (storage.DossierRecord, error) {
	return getDossier(ctx, t.tx, id)
}

// PutDossier inserts one dossier within the transaction.
func (t *Tx) PutDossier(ctx context.Context, record storage.DossierRecord) error {
	return putDossier(ctx, t.tx, record)
}

// UpdateDossierStatus transitions one dossier's status within the transaction.
func (t *Tx) UpdateDossierStatus(ctx context.Context, id string, status storage.DossierStatus, updatedAt time.Time) error {
	return updateDossierStatus(ctx, t.tx, id, status, updatedAt)
}

// DeleteDossier removes one dossier within the transaction.
func (t *Tx) DeleteDossier(ctx context.Context, id string) error {
	return deleteDossier(ctx, t.tx, id)
}

// GetEmployee loads one employee within the transaction.
func (t *Tx) GetEmployee(ctx context.Context, id string) (storage.EmployeeRecord, error) {
	return getEmployee(ctx, t.tx, id)
}

// GetAdvisor loads one advisor within the transaction.
func (t *Tx) GetAdvisor(ctx context.Context, id string) (storage.AdvisorRecord, error) {
	return getAdvisor(ctx, t.tx, id)
}

// GetDossier loads one dossier in autocommit mode.
func (s *Store) GetDossier(ctx context.Context, id string) (storage.DossierRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.DossierRecord{}, err
	}
	return getDossier(ctx, s.sqlDB, id)
}

// GetDossierByReference loads one dossier by its unique reference.
func (s *Store) GetDossierByReference(ctx context.Context, reference string) (storage.DossierRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.DossierRecord{}, err
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return storage.DossierRecord{}, fmt.Errorf("reference is required")
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, employee_id, advisor_id, reference, status, notes, created_at, updated_at
FROM dossiers
WHERE reference = ?
`, reference)
	record, err := scanDossier(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.DossierRecord{}, storage.ErrNotFound
		}
		return storage.DossierRecord{}, fmt.Errorf("get dossier by reference: %w", err)
	}
	return record, nil
}

// PutDossier inserts one dossier in autocommit mode.
func (s *Store) PutDossier(ctx context.Context, record storage.DossierRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return putDossier(ctx, s.sqlDB, record)
}

// UpdateDossier rewrites one dossier's mutable fields.
func (s *Store) UpdateDossier(ctx context.Context, record storage.DossierRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record, err := normalizeDossier(record)
	if err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE dossiers
SET advisor_id = ?, status = ?, notes = ?, updated_at = ?
WHERE id = ?
`, record.AdvisorID, record.Status, record.Notes, toMillis(record.UpdatedAt), record.ID)
	if err != nil {
		return fmt.Errorf("update dossier: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update dossier rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListDossiers returns one page of dossiers, newest first, with the total count.
func (s *Store) ListDossiers(ctx context.Context, filter storage.DossierFilter, page, perPage int) (storage.DossierPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.DossierPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		return storage.DossierPage{}, fmt.Errorf("per page must be greater than zero")
	}

	where, args := dossierFilterClause(filter)

	var total int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(1) FROM dossiers"+where, args...).Scan(&total); err != nil {
		return storage.DossierPage{}, fmt.Errorf("count dossiers: %w", err)
	}

	query := `
SELECT id, employee_id, advisor_id, reference, status, notes, created_at, updated_at
FROM dossiers` + where + `
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?
`
	rows, err := s.sqlDB.QueryContext(ctx, query, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return storage.DossierPage{}, fmt.Errorf("list dossiers: %w", err)
	}
	defer rows.Close()

	result := storage.DossierPage{TotalCount: total}
	for rows.Next() {
		record, scanErr := scanDossier(rows.Scan)
		if scanErr != nil {
			return storage.DossierPage{}, fmt.Errorf("scan dossier row: %w", scanErr)
		}
		result.Dossiers = append(result.Dossiers, record)
	}
	if err := rows.Err(); err != nil {
		return storage.DossierPage{}, fmt.Errorf("iterate dossier rows: %w", err)
	}
	return result, nil
}

// CountDossiersByReferencePrefix returns how many dossier references start
// with the prefix. Used to pick the next sequence number for a month.
func (s *Store) CountDossiersByReferencePrefix(ctx context.Context, prefix string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return 0, fmt.Errorf("reference prefix is required")
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(1) FROM dossiers WHERE reference LIKE ? || '%'`, prefix).Scan(&count); err != nil {
		return 0, fmt.Errorf("count dossiers by reference prefix: %w", err)
	}
	return count, nil
}

// GetEmployee loads one employee in autocommit mode.
func (s *Store) GetEmployee(ctx context.Context, id string) (storage.EmployeeRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.EmployeeRecord{}, err
	}
	return getEmployee(ctx, s.sqlDB, id)
}

// PutEmployee upserts one employee.
func (s *Store) PutEmployee(ctx context.Context, record storage.EmployeeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record.ID = strings.TrimSpace(record.ID)
	if record.ID == "" {
		return fmt.Errorf("employee id is required")
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		return fmt.Errorf("employee timestamps are required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO employees (id, first_name, last_name, email, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	first_name = excluded.first_name,
	last_name = excluded.last_name,
	email = excluded.email,
	updated_at = excluded.updated_at
`, record.ID, record.FirstName, record.LastName, record.Email, toMillis(record.CreatedAt), toMillis(record.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put employee: %w", err)
	}
	return nil
}

// GetAdvisor loads one advisor in autocommit mode.
func (s *Store) GetAdvisor(ctx context.Context, id string) (storage.AdvisorRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.AdvisorRecord{}, err
	}
	return getAdvisor(ctx, s.sqlDB, id)
}

// PutAdvisor upserts one advisor.
func (s *Store) PutAdvisor(ctx context.Context, record storage.AdvisorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record.ID = strings.TrimSpace(record.ID)
	if record.ID == "" {
		return fmt.Errorf("advisor id is required")
	}
	if record.Role == "" {
		record.Role = storage.RoleAdvisor
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		return fmt.Errorf("advisor timestamps are required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO advisors (id, first_name, last_name, email, role, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	first_name = excluded.first_name,
	last_name = excluded.last_name,
	email = excluded.email,
	role = excluded.role,
	updated_at = excluded.updated_at
`, record.ID, record.FirstName, record.LastName, record.Email, record.Role, toMillis(record.CreatedAt), toMillis(record.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put advisor: %w", err)
	}
	return nil
}

type scanner func(dest ...any) error

func normalizeDossier(record storage.DossierRecord) (storage.DossierRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.EmployeeID = strings.TrimSpace(record.EmployeeID)
	record.AdvisorID = strings.TrimSpace(record.AdvisorID)
	record.Reference = strings.TrimSpace(record.Reference)
	if record.ID == "" {
		return storage.DossierRecord{}, fmt.Errorf("dossier id is required")
	}
	if record.AdvisorID == "" {
		return storage.DossierRecord{}, fmt.Errorf("advisor id is required")
	}
	if record.Status == "" {
		return storage.DossierRecord{}, fmt.Errorf("dossier status is required")
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		return storage.DossierRecord{}, fmt.Errorf("dossier timestamps are required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}

func getDossier(ctx context.Context, q querier, id string) (storage.DossierRecord, error) {
	row := q.QueryRowContext(ctx, `
SELECT id, employee_id, advisor_id, reference, status, notes, created_at, updated_at
FROM dossiers
WHERE id = ?
`, id)
	record, err := scanDossier(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.DossierRecord{}, storage.ErrNotFound
		}
		return storage.DossierRecord{}, fmt.Errorf("get dossier: %w", err)
	}
	return record, nil
}

func putDossier(ctx context.Context, q querier, record storage.DossierRecord) error {
	record, err := normalizeDossier(record)
	if err != nil {
		return err
	}
	if record.EmployeeID == "" {
		return fmt.Errorf("employee id is required")
	}
	if record.Reference == "" {
		return fmt.Errorf("dossier reference is required")
	}
	_, err = q.ExecContext(ctx, `
INSERT INTO dossiers (id, employee_id, advisor_id, reference, status, notes, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.EmployeeID,
		record.AdvisorID,
		record.Reference,
		record.Status,
		record.Notes,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put dossier: %w", err)
	}
	return nil
}

func updateDossierStatus(ctx context.Context, q querier, id string, status storage.DossierStatus, updatedAt time.Time) error {
	if status == "" {
		return fmt.Errorf("dossier status is required")
	}
	result, err := q.ExecContext(ctx, `
UPDATE dossiers
SET status = ?, updated_at = ?
WHERE id = ?
`, status, toMillis(updatedAt), id)
	if err != nil {
		return fmt.Errorf("update dossier status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update dossier status rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func deleteDossier(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM dossiers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete dossier: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete dossier rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func getEmployee(ctx context.Context, q querier, id string) (storage.EmployeeRecord, error) {
	row := q.QueryRowContext(ctx, `
SELECT id, first_name, last_name, email, created_at, updated_at
FROM employees
WHERE id = ?
`, id)
	var record storage.EmployeeRecord
	var createdAt, updatedAt int64
	if err := row.Scan(&record.ID, &record.FirstName, &record.LastName, &record.Email, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.EmployeeRecord{}, storage.ErrNotFound
		}
		return storage.EmployeeRecord{}, fmt.Errorf("get employee: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func getAdvisor(ctx context.Context, q querier, id string) (storage.AdvisorRecord, error) {
	row := q.QueryRowContext(ctx, `
SELECT id, first_name, last_name, email, role, created_at, updated_at
FROM advisors
WHERE id = ?
`, id)
	var record storage.AdvisorRecord
	var createdAt, updatedAt int64
	if err := row.Scan(&record.ID, &record.FirstName, &record.LastName, &record.Email, &record.Role, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.AdvisorRecord{}, storage.ErrNotFound
		}
		return storage.AdvisorRecord{}, fmt.Errorf("get advisor: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func scanDossier(scan scanner) (storage.DossierRecord, error) {
	var record storage.DossierRecord
	var createdAt, updatedAt int64
	if err := scan(
		&record.ID,
		&record.EmployeeID,
		&record.AdvisorID,
		&record.Reference,
		&record.Status,
		&record.Notes,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.DossierRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func dossierFilterClause(filter storage.DossierFilter) (string, []any) {
	var conditions []string
	var args []any
	if advisorID := strings.TrimSpace(filter.AdvisorID); advisorID != "" {
		conditions = append(conditions, "advisor_id = ?")
		args = append(args, advisorID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}
