package domain

import (
	"context"

	clientsstorage "github.com/gclavel/assurvie/internal/services/clients/storage"
	insurancestorage "github.com/gclavel/assurvie/internal/services/insurance/storage"
)

// Events receives domain facts after the owning transaction has committed.
// Implementations must not block and must not fail the operation; delivery
// is best-effort with a durable audit trail kept by the dispatcher.
type Events interface {
	DossierCreated(ctx context.Context, event DossierEvent)
	DossierChanged(ctx context.Context, event DossierEvent)
	DossierDeleted(ctx context.Context, event DossierEvent)
	PolicyCreated(ctx context.Context, event PolicyEvent)
	PolicyStatusChanged(ctx context.Context, event PolicyEvent)
	PolicyDeleted(ctx context.Context, event PolicyEvent)
	BeneficiaryChanged(ctx context.Context, event BeneficiaryEvent)
}

// DossierEvent describes one dossier lifecycle fact with the context the
// dispatcher needs to pick recipients.
type DossierEvent struct {
	Dossier        clientsstorage.DossierRecord
	Advisor        clientsstorage.AdvisorRecord
	PreviousStatus clientsstorage.DossierStatus
	Companies      []insurancestorage.CompanyRecord
}

// PolicyEvent describes one policy lifecycle fact.
type PolicyEvent struct {
	Policy         insurancestorage.PolicyRecord
	PreviousStatus insurancestorage.PolicyStatus
	Company        insurancestorage.CompanyRecord
	Dossier        clientsstorage.DossierRecord
	Advisor        clientsstorage.AdvisorRecord
}

// BeneficiaryAction identifies what happened to a beneficiary.
type BeneficiaryAction string

const (
	BeneficiaryCreated BeneficiaryAction = "created"
	BeneficiaryUpdated BeneficiaryAction = "updated"
	BeneficiaryDeleted BeneficiaryAction = "deleted"
)

// BeneficiaryEvent describes one beneficiary change.
type BeneficiaryEvent struct {
	Action      BeneficiaryAction
	Beneficiary insurancestorage.BeneficiaryRecord
	Policy      insurancestorage.PolicyRecord
	Company     insurancestorage.CompanyRecord
	Dossier     clientsstorage.DossierRecord
	Advisor     clientsstorage.AdvisorRecord
}
