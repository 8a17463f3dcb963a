package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gclavel/assurvie/internal/services/insurance/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestPolicyLifecycle(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 14, 9, 0, 0, 0, time.UTC)
	seedCompany(t, store, "comp-1", "Assurance Mutuelle", now)

	expiration := now.AddDate(20, 0, 0)
	policy := storage.PolicyRecord{
		ID:                  "policy-1",
		DossierID:           "dossier-1",
		CompanyID:           "comp-1",
		PolicyNumber:        "POL-778",
		ContractType:        storage.ContractIndividual,
		Status:              storage.PolicyStatusActive,
		CapitalInsuredCents: 25_000_000,
		MonthlyPremiumCents: 4_550,
		EffectiveDate:       now,
		ExpirationDate:      &expiration,
		BeneficiaryClause:   "standard clause",
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.PutPolicy(ctx, policy); err != nil {
		t.Fatalf("put policy: %v", err)
	}
	if _, err := tx.GetCompany(ctx, "comp-1"); err != nil {
		t.Fatalf("get company in tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := store.GetPolicy(ctx, "policy-1")
	if err != nil {
		t.Fatalf("get policy: %v", err)
	}
	if got.PolicyNumber != "POL-778" || got.CapitalInsuredCents != 25_000_000 {
		t.Fatalf("unexpected policy: %+v", got)
	}
	if got.ExpirationDate == nil || !got.ExpirationDate.Equal(expiration) {
		t.Fatalf("expiration date lost: %+v", got.ExpirationDate)
	}

	byNumber, err := store.GetPolicyByNumber(ctx, "POL-778")
	if err != nil {
		t.Fatalf("get policy by number: %v", err)
	}
	if byNumber.ID != "policy-1" {
		t.Fatalf("unexpected policy id %q", byNumber.ID)
	}

	duplicate := policy
	duplicate.ID = "policy-dup"
	tx, err = store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin duplicate tx: %v", err)
	}
	if err := tx.PutPolicy(ctx, duplicate); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict for duplicate policy number, got %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback duplicate tx: %v", err)
	}

	got.Status = storage.PolicyStatusSuspended
	got.UpdatedAt = now.Add(time.Hour)
	if err := store.UpdatePolicy(ctx, got); err != nil {
		t.Fatalf("update policy: %v", err)
	}
	got, err = store.GetPolicy(ctx, "policy-1")
	if err != nil {
		t.Fatalf("get policy after update: %v", err)
	}
	if got.Status != storage.PolicyStatusSuspended {
		t.Fatalf("status update not applied: %+v", got)
	}
}

func TestListPoliciesByDossierInTx(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 14, 9, 0, 0, 0, time.UTC)
	seedCompany(t, store, "comp-1", "Assurance Mutuelle", now)

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for i, id := range []string{"policy-1", "policy-2"} {
		if err := tx.PutPolicy(ctx, storage.PolicyRecord{
			ID:                  id,
			DossierID:           "dossier-1",
			CompanyID:           "comp-1",
			PolicyNumber:        "POL-" + id,
			ContractType:        storage.ContractGroup,
			Status:              storage.PolicyStatusActive,
			CapitalInsuredCents: 10_000_000,
			MonthlyPremiumCents: 2_000,
			EffectiveDate:       now,
			CreatedAt:           now.Add(time.Duration(i) * time.Minute),
			UpdatedAt:           now.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("put policy %s: %v", id, err)
		}
	}
	records, err := tx.ListPoliciesByDossier(ctx, "dossier-1")
	if err != nil {
		t.Fatalf("list policies by dossier: %v", err)
	}
	if len(records) != 2 || records[0].ID != "policy-1" {
		t.Fatalf("unexpected policies: %+v", records)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	page, err := store.ListPolicies(ctx, storage.PolicyFilter{DossierID: "dossier-1"}, 1, 1)
	if err != nil {
		t.Fatalf("list policies: %v", err)
	}
	if page.TotalCount != 2 || len(page.Policies) != 1 {
		t.Fatalf("unexpected page: %d rows (total %d)", len(page.Policies), page.TotalCount)
	}
	if page.Policies[0].ID != "policy-2" {
		t.Fatalf("expected newest first, got %q", page.Policies[0].ID)
	}
}

func TestBeneficiariesCascadeWithPolicy(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 14, 9, 0, 0, 0, time.UTC)
	seedCompany(t, store, "comp-1", "Assurance Mutuelle", now)
	seedPolicy(t, store, "policy-1", "dossier-1", "comp-1", now)

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for i, input := range []storage.BeneficiaryRecord{
		{ID: "ben-1", FirstName: "Sophie", LastName: "Tremblay", Relationship: "spouse", PercentHundredths: 6000},
		{ID: "ben-2", FirstName: "Luc", LastName: "Tremblay", Relationship: "child", PercentHundredths: 4000},
	} {
		input.PolicyID = "policy-1"
		input.DisplayOrder = i
		input.CreatedAt = now
		input.UpdatedAt = now
		if err := tx.PutBeneficiary(ctx, input); err != nil {
			t.Fatalf("put beneficiary %s: %v", input.ID, err)
		}
	}
	records, err := tx.ListBeneficiaries(ctx, "policy-1")
	if err != nil {
		t.Fatalf("list beneficiaries in tx: %v", err)
	}
	if len(records) != 2 || records[0].ID != "ben-1" || records[1].PercentHundredths != 4000 {
		t.Fatalf("unexpected beneficiaries: %+v", records)
	}

	update := records[1]
	update.PercentHundredths = 3500
	update.UpdatedAt = now.Add(time.Minute)
	if err := tx.UpdateBeneficiary(ctx, update); err != nil {
		t.Fatalf("update beneficiary: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := store.GetBeneficiary(ctx, "ben-2")
	if err != nil {
		t.Fatalf("get beneficiary: %v", err)
	}
	if got.PercentHundredths != 3500 {
		t.Fatalf("update not applied: %+v", got)
	}

	tx, err = store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin delete tx: %v", err)
	}
	if err := tx.DeletePolicy(ctx, "policy-1"); err != nil {
		t.Fatalf("delete policy: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit delete: %v", err)
	}
	if _, err := store.GetBeneficiary(ctx, "ben-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected beneficiaries removed with policy, got %v", err)
	}
}

func TestCompanyLifecycleAndUsageGuard(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 14, 9, 0, 0, 0, time.UTC)
	seedCompany(t, store, "comp-1", "Assurance Mutuelle", now)

	if err := store.PutCompany(ctx, storage.CompanyRecord{
		ID:        "comp-dup",
		Name:      "Assurance Mutuelle",
		CreatedAt: now,
		UpdatedAt: now,
	}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict for duplicate name, got %v", err)
	}

	seedCompany(t, store, "comp-2", "Groupe Vie Plus", now)
	companies, err := store.ListCompanies(ctx)
	if err != nil {
		t.Fatalf("list companies: %v", err)
	}
	if len(companies) != 2 || companies[0].Name != "Assurance Mutuelle" {
		t.Fatalf("unexpected companies: %+v", companies)
	}

	updated := companies[1]
	updated.Phone = "514-555-0100"
	updated.UpdatedAt = now.Add(time.Hour)
	if err := store.UpdateCompany(ctx, updated); err != nil {
		t.Fatalf("update company: %v", err)
	}

	seedPolicy(t, store, "policy-1", "dossier-1", "comp-1", now)
	count, err := store.CountPoliciesByCompany(ctx, "comp-1")
	if err != nil {
		t.Fatalf("count policies by company: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 policy for comp-1, got %d", count)
	}
	if err := store.DeleteCompany(ctx, "comp-1"); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict deleting referenced company, got %v", err)
	}

	if err := store.DeleteCompany(ctx, "comp-2"); err != nil {
		t.Fatalf("delete unused company: %v", err)
	}
	if _, err := store.GetCompany(ctx, "comp-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func seedCompany(t *testing.T, store *Store, id, name string, now time.Time) {
	t.Helper()
	if err := store.PutCompany(context.Background(), storage.CompanyRecord{
		ID:        id,
		Name:      name,
		Email:     "contact@example.test",
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("put company %s: %v", id, err)
	}
}

func seedPolicy(t *testing.T, store *Store, id, dossierID, companyID string, now time.Time) {
	t.Helper()
	ctx := context.Background()
	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin seed tx: %v", err)
	}
	if err := tx.PutPolicy(ctx, storage.PolicyRecord{
		ID:                  id,
		DossierID:           dossierID,
		CompanyID:           companyID,
		PolicyNumber:        "POL-" + id,
		ContractType:        storage.ContractIndividual,
		Status:              storage.PolicyStatusActive,
		CapitalInsuredCents: 10_000_000,
		MonthlyPremiumCents: 2_000,
		EffectiveDate:       now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}); err != nil {
		t.Fatalf("put policy %s: %v", id, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit seed tx: %v", err)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	storePath := filepath.Join(t.TempDir(), "insurance.db")
	store, err := Open(storePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := store.Close(); closeErr != nil {
			t.Fatalf("close store: %v", closeErr)
		}
	})
	return store
}
