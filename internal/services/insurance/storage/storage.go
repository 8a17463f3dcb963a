// Package storage defines the persistence contracts for the insurance
// store: policies, beneficiaries, and insurance companies. It is the second
// of two independently-owned stores; dossiers live in the clients store and
// are referenced by id only, never joined.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write conflicted with a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
)

// ContractType identifies the kind of coverage contract.
type ContractType string

const (
	// ContractIndividual covers one employee directly.
	ContractIndividual ContractType = "individual"
	// ContractGroup covers the employee through an employer group plan.
	ContractGroup ContractType = "group"
)

// PolicyStatus identifies one policy lifecycle state.
type PolicyStatus string

const (
	// PolicyStatusActive means premiums are current and coverage applies.
	PolicyStatusActive PolicyStatus = "active"
	// PolicyStatusSuspended means coverage is paused.
	PolicyStatusSuspended PolicyStatus = "suspended"
	// PolicyStatusTerminated means the contract ended.
	PolicyStatusTerminated PolicyStatus = "terminated"
)

// PolicyRecord is one insurance contract. Money amounts are integer cents;
// beneficiary percentages are integer hundredths of a percent.
type PolicyRecord struct {
	ID                  string
	DossierID           string
	CompanyID           string
	PolicyNumber        string
	ContractType        ContractType
	Status              PolicyStatus
	CapitalInsuredCents int64
	MonthlyPremiumCents int64
	EffectiveDate       time.Time
	ExpirationDate      *time.Time
	BeneficiaryClause   string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PolicyFilter narrows policy listings.
type PolicyFilter struct {
	DossierID string
	CompanyID string
	Status    PolicyStatus
}

// PolicyPage is one page of a policy listing with its total count.
type PolicyPage struct {
	Policies   []PolicyRecord
	TotalCount int
}

// BeneficiaryRecord is one designated beneficiary on a policy.
// PercentHundredths is the allocated share in hundredths of a percent, so
// 10000 is the full capital.
type BeneficiaryRecord struct {
	ID                string
	PolicyID          string
	FirstName         string
	LastName          string
	Relationship      string
	PercentHundredths int64
	DisplayOrder      int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CompanyRecord is one insurance company.
type CompanyRecord struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tx is one transactional session against the insurance store. It is owned
// exclusively by the coordinator invocation that opened it and must not be
// reused after Commit or Rollback.
type Tx interface {
	Commit() error
	Rollback() error

	GetPolicy(ctx context.Context, id string) (PolicyRecord, error)
	ListPoliciesByDossier(ctx context.Context, dossierID string) ([]PolicyRecord, error)
	PutPolicy(ctx context.Context, record PolicyRecord) error
	UpdatePolicy(ctx context.Context, record PolicyRecord) error
	DeletePolicy(ctx context.Context, id string) error

	ListBeneficiaries(ctx context.Context, policyID string) ([]BeneficiaryRecord, error)
	GetBeneficiary(ctx context.Context, id string) (BeneficiaryRecord, error)
	PutBeneficiary(ctx context.Context, record BeneficiaryRecord) error
	UpdateBeneficiary(ctx context.Context, record BeneficiaryRecord) error
	DeleteBeneficiary(ctx context.Context, id string) error

	GetCompany(ctx context.Context, id string) (CompanyRecord, error)
}

// Store is the insurance-store boundary. Methods outside Begin run in
// autocommit mode; coordinated work goes through Begin.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	GetPolicy(ctx context.Context, id string) (PolicyRecord, error)
	GetPolicyByNumber(ctx context.Context, policyNumber string) (PolicyRecord, error)
	ListPolicies(ctx context.Context, filter PolicyFilter, page, perPage int) (PolicyPage, error)
	UpdatePolicy(ctx context.Context, record PolicyRecord) error

	GetBeneficiary(ctx context.Context, id string) (BeneficiaryRecord, error)
	ListBeneficiaries(ctx context.Context, policyID string) ([]BeneficiaryRecord, error)

	GetCompany(ctx context.Context, id string) (CompanyRecord, error)
	PutCompany(ctx context.Context, record CompanyRecord) error
	UpdateCompany(ctx context.Context, record CompanyRecord) error
	DeleteCompany(ctx context.Context, id string) error
	ListCompanies(ctx context.Context) ([]CompanyRecord, error)
	CountPoliciesByCompany(ctx context.Context, companyID string) (int, error)
}
