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
	"github.com/gclavel/assurvie/internal/services/insurance/storage"
	"github.com/gclavel/assurvie/internal/services/insurance/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for the insurance store.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the insurance SQLite store at the provided path.
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
		return nil, fmt.Errorf("begin insurance transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is one open transaction against the insurance store.
type Tx struct {
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if t == nil || t.tx == nil {
		return fmt.Errorf("transaction is not open")
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit insurance transaction: %w", err)
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
		return fmt.Errorf("rollback insurance transaction: %w", err)
	}
	return nil
}

func (t *Tx) GetPolicy(ctx context.Context, id string) (storage.PolicyRecord, error) {
	return getPolicy(ctx, t.tx, id)
}

func (t *Tx) ListPoliciesByDossier(ctx context.Context, dossierID string) ([]storage.PolicyRecord, error) {
	return listPoliciesByDossier(ctx, t.tx, dossierID)
}

func (t *Tx) PutPolicy(ctx context.Context, record storage.PolicyRecord) error {
	return putPolicy(ctx, t.tx, record)
}

func (t *Tx) UpdatePolicy(ctx context.Context, record storage.PolicyRecord) error {
	return updatePolicy(ctx, t.tx, record)
}

func (t *Tx) DeletePolicy(ctx context.Context, id string) error {
	return deletePolicy(ctx, t.tx, id)
}

func (t *Tx) ListBeneficiaries(ctx context.Context, policyID string) ([]storage.BeneficiaryRecord, error) {
	return listBeneficiaries(ctx, t.tx, policyID)
}

func (t *Tx) GetBeneficiary(ctx context.Context, id string) (storage.BeneficiaryRecord, error) {
	return getBeneficiary(ctx, t.tx, id)
}

func (t *Tx) PutBeneficiary(ctx context.Context, record storage.BeneficiaryRecord) error {
	return putBeneficiary(ctx, t.tx, record)
}

func (t *Tx) UpdateBeneficiary(ctx context.Context, record storage.BeneficiaryRecord) error {
	return updateBeneficiary(ctx, t.tx, record)
}

func (t *Tx) DeleteBeneficiary(ctx context.Context, id string) error {
	return deleteBeneficiary(ctx, t.tx, id)
}

func (t *Tx) GetCompany(ctx context.Context, id string) (storage.CompanyRecord, error) {
	return getCompany(ctx, t.tx, id)
}

// GetPolicy loads one policy in autocommit mode.
func (s *Store) GetPolicy(ctx context.Context, id string) (storage.PolicyRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.PolicyRecord{}, err
	}
	return getPolicy(ctx, s.sqlDB, id)
}

// GetPolicyByNumber loads one policy by its unique contract number.
func (s *Store) GetPolicyByNumber(ctx context.Context, policyNumber string) (storage.PolicyRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.PolicyRecord{}, err
	}
	policyNumber = strings.TrimSpace(policyNumber)
	if policyNumber == "" {
		return storage.PolicyRecord{}, fmt.Errorf("policy number is required")
	}
	row := s.sqlDB.QueryRowContext(ctx, policySelect+` WHERE policy_number = ?`, policyNumber)
	record, err := scanPolicy(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PolicyRecord{}, storage.ErrNotFound
		}
		return storage.PolicyRecord{}, fmt.Errorf("get policy by number: %w", err)
	}
	return record, nil
}

// ListPolicies returns one page of policies, newest first, with the total count.
func (s *Store) ListPolicies(ctx context.Context, filter storage.PolicyFilter, page, perPage int) (storage.PolicyPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.PolicyPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		return storage.PolicyPage{}, fmt.Errorf("per page must be greater than zero")
	}

	var conditions []string
	var args []any
	if dossierID := strings.TrimSpace(filter.DossierID); dossierID != "" {
		conditions = append(conditions, "dossier_id = ?")
		args = append(args, dossierID)
	}
	if companyID := strings.TrimSpace(filter.CompanyID); companyID != "" {
		conditions = append(conditions, "company_id = ?")
		args = append(args, companyID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(1) FROM policies"+where, args...).Scan(&total); err != nil {
		return storage.PolicyPage{}, fmt.Errorf("count policies: %w", err)
	}

	query := policySelect + where + `
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?
`
	rows, err := s.sqlDB.QueryContext(ctx, query, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return storage.PolicyPage{}, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	result := storage.PolicyPage{TotalCount: total}
	for rows.Next() {
		record, scanErr := scanPolicy(rows.Scan)
		if scanErr != nil {
			return storage.PolicyPage{}, fmt.Errorf("scan policy row: %w", scanErr)
		}
		result.Policies = append(result.Policies, record)
	}
	if err := rows.Err(); err != nil {
		return storage.PolicyPage{}, fmt.Errorf("iterate policy rows: %w", err)
	}
	return result, nil
}

// UpdatePolicy rewrites one policy's mutable fields in autocommit mode.
func (s *Store) UpdatePolicy(ctx context.Context, record storage.PolicyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return updatePolicy(ctx, s.sqlDB, record)
}

// GetBeneficiary loads one beneficiary in autocommit mode.
func (s *Store) GetBeneficiary(ctx context.Context, id string) (storage.BeneficiaryRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.BeneficiaryRecord{}, err
	}
	return getBeneficiary(ctx, s.sqlDB, id)
}

// ListBeneficiaries returns a policy's beneficiaries in display order.
func (s *Store) ListBeneficiaries(ctx context.Context, policyID string) ([]storage.BeneficiaryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return listBeneficiaries(ctx, s.sqlDB, policyID)
}

// GetCompany loads one company in autocommit mode.
func (s *Store) GetCompany(ctx context.Context, id string) (storage.CompanyRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CompanyRecord{}, err
	}
	return getCompany(ctx, s.sqlDB, id)
}

// PutCompany inserts one company.
func (s *Store) PutCompany(ctx context.Context, record storage.CompanyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record, err := normalizeCompany(record)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO companies (id, name, email, phone, address, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, record.ID, record.Name, record.Email, record.Phone, record.Address, toMillis(record.CreatedAt), toMillis(record.UpdatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put company: %w", err)
	}
	return nil
}

// UpdateCompany rewrites one company's mutable fields.
func (s *Store) UpdateCompany(ctx context.Context, record storage.CompanyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record, err := normalizeCompany(record)
	if err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE companies
SET name = ?, email = ?, phone = ?, address = ?, updated_at = ?
WHERE id = ?
`, record.Name, record.Email, record.Phone, record.Address, toMillis(record.UpdatedAt), record.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("update company: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update company rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteCompany removes one company. Callers check for referencing
// policies first; the foreign key backstops them.
func (s *Store) DeleteCompany(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("delete company: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete company rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListCompanies returns every company ordered by name.
func (s *Store) ListCompanies(ctx context.Context) ([]storage.CompanyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, name, email, phone, address, created_at, updated_at
FROM companies
ORDER BY name ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var records []storage.CompanyRecord
	for rows.Next() {
		record, scanErr := scanCompany(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan company row: %w", scanErr)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate company rows: %w", err)
	}
	return records, nil
}

// CountPoliciesByCompany returns how many policies reference the company.
func (s *Store) CountPoliciesByCompany(ctx context.Context, companyID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(1) FROM policies WHERE company_id = ?`, companyID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count policies by company: %w", err)
	}
	return count, nil
}

const policySelect = `
SELECT id, dossier_id, company_id, policy_number, contract_type, status,
	capital_insured_cents, monthly_premium_cents, effective_date,
	expiration_date, beneficiary_clause, created_at, updated_at
FROM policies`

type scanner func(dest ...any) error

func normalizePolicy(record storage.PolicyRecord) (storage.PolicyRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.DossierID = strings.TrimSpace(record.DossierID)
	record.CompanyID = strings.TrimSpace(record.CompanyID)
	record.PolicyNumber = strings.TrimSpace(record.PolicyNumber)
	if record.ID == "" {
		return storage.PolicyRecord{}, fmt.Errorf("policy id is required")
	}
	if record.DossierID == "" {
		return storage.PolicyRecord{}, fmt.Errorf("dossier id is required")
	}
	if record.CompanyID == "" {
		return storage.PolicyRecord{}, fmt.Errorf("company id is required")
	}
	if record.PolicyNumber == "" {
		return storage.PolicyRecord{}, fmt.Errorf("policy number is required")
	}
	if record.ContractType == "" {
		return storage.PolicyRecord{}, fmt.Errorf("contract type is required")
	}
	if record.Status == "" {
		return storage.PolicyRecord{}, fmt.Errorf("policy status is required")
	}
	if record.EffectiveDate.IsZero() {
		return storage.PolicyRecord{}, fmt.Errorf("effective date is required")
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		return storage.PolicyRecord{}, fmt.Errorf("policy timestamps are required")
	}
	return record, nil
}

func getPolicy(ctx context.Context, q querier, id string) (storage.PolicyRecord, error) {
	row := q.QueryRowContext(ctx, policySelect+` WHERE id = ?`, id)
	record, err := scanPolicy(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PolicyRecord{}, storage.ErrNotFound
		}
		return storage.PolicyRecord{}, fmt.Errorf("get policy: %w", err)
	}
	return record, nil
}

func listPoliciesByDossier(ctx context.Context, q querier, dossierID string) ([]storage.PolicyRecord, error) {
	rows, err := q.QueryContext(ctx, policySelect+` WHERE dossier_id = ? ORDER BY created_at ASC, id ASC`, dossierID)
	if err != nil {
		return nil, fmt.Errorf("list policies by dossier: %w", err)
	}
	defer rows.Close()

	var records []storage.PolicyRecord
	for rows.Next() {
		record, scanErr := scanPolicy(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan policy row: %w", scanErr)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policy rows: %w", err)
	}
	return records, nil
}

func putPolicy(ctx context.Context, q querier, record storage.PolicyRecord) error {
	record, err := normalizePolicy(record)
	if err != nil {
		return err
	}
	var expiration any
	if record.ExpirationDate != nil {
		expiration = toMillis(*record.ExpirationDate)
	}
	_, err = q.ExecContext(ctx, `
INSERT INTO policies (id, dossier_id, company_id, policy_number, contract_type, status,
	capital_insured_cents, monthly_premium_cents, effective_date, expiration_date,
	beneficiary_clause, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.DossierID,
		record.CompanyID,
		record.PolicyNumber,
		record.ContractType,
		record.Status,
		record.CapitalInsuredCents,
		record.MonthlyPremiumCents,
		toMillis(record.EffectiveDate),
		expiration,
		record.BeneficiaryClause,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put policy: %w", err)
	}
	return nil
}

func updatePolicy(ctx context.Context, q querier, record storage.PolicyRecord) error {
	record, err := normalizePolicy(record)
	if err != nil {
		return err
	}
	var expiration any
	if record.ExpirationDate != nil {
		expiration = toMillis(*record.ExpirationDate)
	}
	result, err := q.ExecContext(ctx, `
UPDATE policies
SET company_id = ?, contract_type = ?, status = ?, capital_insured_cents = ?,
	monthly_premium_cents = ?, effective_date = ?, expiration_date = ?,
	beneficiary_clause = ?, updated_at = ?
WHERE id = ?
`,
		record.CompanyID,
		record.ContractType,
		record.Status,
		record.CapitalInsuredCents,
		record.MonthlyPremiumCents,
		toMillis(record.EffectiveDate),
		expiration,
		record.BeneficiaryClause,
		toMillis(record.UpdatedAt),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update policy rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func deletePolicy(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM policies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete policy rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanPolicy(scan scanner) (storage.PolicyRecord, error) {
	var record storage.PolicyRecord
	var effectiveDate, createdAt, updatedAt int64
	var expirationDate sql.NullInt64
	if err := scan(
		&record.ID,
		&record.DossierID,
		&record.CompanyID,
		&record.PolicyNumber,
		&record.ContractType,
		&record.Status,
		&record.CapitalInsuredCents,
		&record.MonthlyPremiumCents,
		&effectiveDate,
		&expirationDate,
		&record.BeneficiaryClause,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.PolicyRecord{}, err
	}
	record.EffectiveDate = fromMillis(effectiveDate)
	if expirationDate.Valid {
		value := fromMillis(expirationDate.Int64)
		record.ExpirationDate = &value
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func normalizeBeneficiary(record storage.BeneficiaryRecord) (storage.BeneficiaryRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.PolicyID = strings.TrimSpace(record.PolicyID)
	record.FirstName = strings.TrimSpace(record.FirstName)
	record.LastName = strings.TrimSpace(record.LastName)
	if record.ID == "" {
		return storage.BeneficiaryRecord{}, fmt.Errorf("beneficiary id is required")
	}
	if record.PolicyID == "" {
		return storage.BeneficiaryRecord{}, fmt.Errorf("policy id is required")
	}
	if record.LastName == "" {
		return storage.BeneficiaryRecord{}, fmt.Errorf("beneficiary last name is required")
	}
	if record.PercentHundredths < 0 {
		return storage.BeneficiaryRecord{}, fmt.Errorf("beneficiary percentage must not be negative")
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		return storage.BeneficiaryRecord{}, fmt.Errorf("beneficiary timestamps are required")
	}
	return record, nil
}

func getBeneficiary(ctx context.Context, q querier, id string) (storage.BeneficiaryRecord, error) {
	row := q.QueryRowContext(ctx, `
SELECT id, policy_id, first_name, last_name, relationship, percent_hundredths, display_order, created_at, updated_at
FROM beneficiaries
WHERE id = ?
`, id)
	record, err := scanBeneficiary(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.BeneficiaryRecord{}, storage.ErrNotFound
		}
		return storage.BeneficiaryRecord{}, fmt.Errorf("get beneficiary: %w", err)
	}
	return record, nil
}

func listBeneficiaries(ctx context.Context, q querier, policyID string) ([]storage.BeneficiaryRecord, error) {
	rows, err := q.QueryContext(ctx, `
SELECT id, policy_id, first_name, last_name, relationship, percent_hundredths, display_order, created_at, updated_at
FROM beneficiaries
WHERE policy_id = ?
ORDER BY display_order ASC, created_at ASC, id ASC
`, policyID)
	if err != nil {
		return nil, fmt.Errorf("list beneficiaries: %w", err)
	}
	defer rows.Close()

	var records []storage.BeneficiaryRecord
	for rows.Next() {
		record, scanErr := scanBeneficiary(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan beneficiary row: %w", scanErr)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate beneficiary rows: %w", err)
	}
	return records, nil
}

func putBeneficiary(ctx context.Context, q querier, record storage.BeneficiaryRecord) error {
	record, err := normalizeBeneficiary(record)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
INSERT INTO beneficiaries (id, policy_id, first_name, last_name, relationship, percent_hundredths, display_order, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.PolicyID,
		record.FirstName,
		record.LastName,
		record.Relationship,
		record.PercentHundredths,
		record.DisplayOrder,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put beneficiary: %w", err)
	}
	return nil
}

func updateBeneficiary(ctx context.Context, q querier, record storage.BeneficiaryRecord) error {
	record, err := normalizeBeneficiary(record)
	if err != nil {
		return err
	}
	result, err := q.ExecContext(ctx, `
UPDATE beneficiaries
SET first_name = ?, last_name = ?, relationship = ?, percent_hundredths = ?, display_order = ?, updated_at = ?
WHERE id = ?
`,
		record.FirstName,
		record.LastName,
		record.Relationship,
		record.PercentHundredths,
		record.DisplayOrder,
		toMillis(record.UpdatedAt),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update beneficiary: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update beneficiary rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func deleteBeneficiary(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM beneficiaries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete beneficiary: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete beneficiary rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanBeneficiary(scan scanner) (storage.BeneficiaryRecord, error) {
	var record storage.BeneficiaryRecord
	var createdAt, updatedAt int64
	if err := scan(
		&record.ID,
		&record.PolicyID,
		&record.FirstName,
		&record.LastName,
		&record.Relationship,
		&record.PercentHundredths,
		&record.DisplayOrder,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.BeneficiaryRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func normalizeCompany(record storage.CompanyRecord) (storage.CompanyRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.Name = strings.TrimSpace(record.Name)
	if record.ID == "" {
		return storage.CompanyRecord{}, fmt.Errorf("company id is required")
	}
	if record.Name == "" {
		return storage.CompanyRecord{}, fmt.Errorf("company name is required")
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		return storage.CompanyRecord{}, fmt.Errorf("company timestamps are required")
	}
	return record, nil
}

func getCompany(ctx context.Context, q querier, id string) (storage.CompanyRecord, error) {
	row := q.QueryRowContext(ctx, `
SELECT id, name, email, phone, address, created_at, updated_at
FROM companies
WHERE id = ?
`, id)
	record, err := scanCompany(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.CompanyRecord{}, storage.ErrNotFound
		}
		return storage.CompanyRecord{}, fmt.Errorf("get company: %w", err)
	}
	return record, nil
}

func scanCompany(scan scanner) (storage.CompanyRecord, error) {
	var record storage.CompanyRecord
	var createdAt, updatedAt int64
	if err := scan(
		&record.ID,
		&record.Name,
		&record.Email,
		&record.Phone,
		&record.Address,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.CompanyRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}

func isForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "foreign key constraint failed")
}
