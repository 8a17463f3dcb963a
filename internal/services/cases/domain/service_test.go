package domain

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	clientsstorage "github.com/gclavel/assurvie/internal/services/clients/storage"
	clientssqlite "github.com/gclavel/assurvie/internal/services/clients/storage/sqlite"
	insurancestorage "github.com/gclavel/assurvie/internal/services/insurance/storage"
	insurancesqlite "github.com/gclavel/assurvie/internal/services/insurance/storage/sqlite"
)

var testNow = time.Date(2026, 5, 15, 14, 0, 0, 0, time.UTC)

type recordedEvents struct {
	mu                  sync.Mutex
	dossierCreated      []DossierEvent
	dossierChanged      []DossierEvent
	dossierDeleted      []DossierEvent
	policyCreated       []PolicyEvent
	policyStatusChanged []PolicyEvent
	policyDeleted       []PolicyEvent
	beneficiaryChanged  []BeneficiaryEvent
}

func (r *recordedEvents) DossierCreated(_ context.Context, event DossierEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dossierCreated = append(r.dossierCreated, event)
}

func (r *recordedEvents) DossierChanged(_ context.Context, event DossierEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dossierChanged = append(r.dossierChanged, event)
}

func (r *recordedEvents) DossierDeleted(_ context.Context, event DossierEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dossierDeleted = append(r.dossierDeleted, event)
}

func (r *recordedEvents) PolicyCreated(_ context.Context, event PolicyEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policyCreated = append(r.policyCreated, event)
}

func (r *recordedEvents) PolicyStatusChanged(_ context.Context, event PolicyEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policyStatusChanged = append(r.policyStatusChanged, event)
}

func (r *recordedEvents) PolicyDeleted(_ context.Context, event PolicyEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policyDeleted = append(r.policyDeleted, event)
}

func (r *recordedEvents) BeneficiaryChanged(_ context.Context, event BeneficiaryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beneficiaryChanged = append(r.beneficiaryChanged, event)
}

type testHarness struct {
	service   *Service
	clients   *clientssqlite.Store
	insurance *insurancesqlite.Store
	events    *recordedEvents
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	dir := t.TempDir()
	clients, err := clientssqlite.Open(filepath.Join(dir, "clients.db"))
	if err != nil {
		t.Fatalf("open clients store: %v", err)
	}
	insurance, err := insurancesqlite.Open(filepath.Join(dir, "insurance.db"))
	if err != nil {
		t.Fatalf("open insurance store: %v", err)
	}
	t.Cleanup(func() {
		_ = clients.Close()
		_ = insurance.Close()
	})

	events := &recordedEvents{}
	var counter int
	newID := func() (string, error) {
		counter++
		return fmt.Sprintf("id-%03d", counter), nil
	}
	service := NewService(clients, insurance, events, func() time.Time { return testNow }, newID)
	return &testHarness{service: service, clients: clients, insurance: insurance, events: events}
}

func (h *testHarness) seedAdvisor(t *testing.T, id string, role clientsstorage.AdvisorRole) {
	t.Helper()
	if err := h.clients.PutAdvisor(context.Background(), clientsstorage.AdvisorRecord{
		ID:        id,
		FirstName: "Julie",
		LastName:  "Gagnon",
		Email:     id + "@example.test",
		Role:      role,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}); err != nil {
		t.Fatalf("seed advisor %s: %v", id, err)
	}
}

func (h *testHarness) seedEmployee(t *testing.T, id string) {
	t.Helper()
	if err := h.clients.PutEmployee(context.Background(), clientsstorage.EmployeeRecord{
		ID:        id,
		FirstName: "Marc",
		LastName:  "Tremblay",
		Email:     id + "@example.test",
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}); err != nil {
		t.Fatalf("seed employee %s: %v", id, err)
	}
}

func (h *testHarness) seedCompany(t *testing.T, id, name string) {
	t.Helper()
	if err := h.insurance.PutCompany(context.Background(), insurancestorage.CompanyRecord{
		ID:        id,
		Name:      name,
		Email:     "contact@" + id + ".test",
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}); err != nil {
		t.Fatalf("seed company %s: %v", id, err)
	}
}

func (h *testHarness) createDossier(t *testing.T, caller Caller, employeeID string) clientsstorage.DossierRecord {
	t.Helper()
	dossier, err := h.service.CreateDossier(context.Background(), caller, CreateDossierInput{EmployeeID: employeeID})
	if err != nil {
		t.Fatalf("create dossier: %v", err)
	}
	return dossier
}

func (h *testHarness) createPolicy(t *testing.T, caller Caller, dossierID, companyID, number string) insurancestorage.PolicyRecord {
	t.Helper()
	policy, err := h.service.CreatePolicy(context.Background(), caller, CreatePolicyInput{
		DossierID:           dossierID,
		CompanyID:           companyID,
		PolicyNumber:        number,
		ContractType:        insurancestorage.ContractIndividual,
		CapitalInsuredCents: 25_000_000,
		MonthlyPremiumCents: 4_550,
		EffectiveDate:       testNow,
	})
	if err != nil {
		t.Fatalf("create policy: %v", err)
	}
	return policy
}
