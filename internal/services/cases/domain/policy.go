package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/gclavel/assurvie/internal/platform/errors"
	clientsstorage "github.com/gclavel/assurvie/internal/services/clients/storage"
	insurancestorage "github.com/gclavel/assurvie/internal/services/insurance/storage"
)

// CreatePolicyInput describes one new insurance contract.
type CreatePolicyInput struct {
	DossierID           string
	CompanyID           string
	PolicyNumber        string
	ContractType        insurancestorage.ContractType
	CapitalInsuredCents int64
	MonthlyPremiumCents int64
	EffectiveDate       time.Time
	ExpirationDate      *time.Time
	BeneficiaryClause   string
}

// UpdatePolicyInput carries the mutable policy fields. Nil pointers leave
// the field unchanged.
type UpdatePolicyInput struct {
	ID                  string
	Status              *insurancestorage.PolicyStatus
	CapitalInsuredCents *int64
	MonthlyPremiumCents *int64
	ExpirationDate      *time.Time
	BeneficiaryClause   *string
}

// PolicyDetail is one policy joined with its cross-store context.
type PolicyDetail struct {
	Policy        insurancestorage.PolicyRecord
	Company       insurancestorage.CompanyRecord
	Dossier       clientsstorage.DossierRecord
	Beneficiaries []insurancestorage.BeneficiaryRecord
}

// CreatePolicy attaches a contract to a dossier. A dossier carries at most
// one policy; attaching marks the dossier complete in the same coordinated
// commit.
func (s *Service) CreatePolicy(ctx context.Context, caller Caller, input CreatePolicyInput) (insurancestorage.PolicyRecord, error) {
	if err := validateContractType(input.ContractType); err != nil {
		return insurancestorage.PolicyRecord{}, err
	}
	if strings.TrimSpace(input.PolicyNumber) == "" {
		return insurancestorage.PolicyRecord{}, apperrors.New(apperrors.CodeValidation, "policy number is required")
	}
	if input.EffectiveDate.IsZero() {
		return insurancestorage.PolicyRecord{}, apperrors.New(apperrors.CodeValidation, "effective date is required")
	}
	if input.CapitalInsuredCents <= 0 {
		return insurancestorage.PolicyRecord{}, apperrors.New(apperrors.CodeValidation, "capital insured must be positive")
	}
	if input.MonthlyPremiumCents < 0 {
		return insurancestorage.PolicyRecord{}, apperrors.New(apperrors.CodeValidation, "monthly premium must not be negative")
	}

	policyID, err := s.newID()
	if err != nil {
		return insurancestorage.PolicyRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "generate policy id", err)
	}

	var created insurancestorage.PolicyRecord
	var company insurancestorage.CompanyRecord
	var dossier clientsstorage.DossierRecord
	var advisor clientsstorage.AdvisorRecord

	err = s.coordinator.Run(ctx, func(ctx context.Context, clients clientsstorage.Tx, insurance insurancestorage.Tx) error {
		loaded, err := clients.GetDossier(ctx, input.DossierID)
		if err != nil {
			return mapStorageErr(err, "load dossier")
		}
		if err := requireDossierAccess(caller, loaded); err != nil {
			return err
		}
		dossier = loaded

		existing, err := insurance.ListPoliciesByDossier(ctx, dossier.ID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeStoreFailure, "load dossier policies", err)
		}
		if len(existing) > 0 {
			return apperrors.WithMetadata(apperrors.CodeDuplicatePolicy,
				"dossier already has a policy",
				map[string]string{"dossier_id": dossier.ID, "policy_id": existing[0].ID})
		}

		company, err = insurance.GetCompany(ctx, strings.TrimSpace(input.CompanyID))
		if err != nil {
			return mapStorageErr(err, "load company")
		}

		now := s.nowUTC()
		created = insurancestorage.PolicyRecord{
			ID:                  policyID,
			DossierID:           dossier.ID,
			CompanyID:           company.ID,
			PolicyNumber:        strings.TrimSpace(input.PolicyNumber),
			ContractType:        input.ContractType,
			Status:              insurancestorage.PolicyStatusActive,
			CapitalInsuredCents: input.CapitalInsuredCents,
			MonthlyPremiumCents: input.MonthlyPremiumCents,
			EffectiveDate:       input.EffectiveDate,
			ExpirationDate:      input.ExpirationDate,
			BeneficiaryClause:   strings.TrimSpace(input.BeneficiaryClause),
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := insurance.PutPolicy(ctx, created); err != nil {
			if errors.Is(err, insurancestorage.ErrConflict) {
				return apperrors.WithMetadata(apperrors.CodeValidation,
					"policy number already in use",
					map[string]string{"policy_number": created.PolicyNumber})
			}
			return apperrors.Wrap(apperrors.CodeStoreFailure, "create policy", err)
		}
		if err := clients.UpdateDossierStatus(ctx, dossier.ID, clientsstorage.DossierStatusComplete, now); err != nil {
			return mapStorageErr(err, "mark dossier complete")
		}
		dossier.Status = clientsstorage.DossierStatusComplete
		dossier.UpdatedAt = now
		advisor, _ = clients.GetAdvisor(ctx, dossier.AdvisorID)
		return nil
	})
	if err != nil {
		return insurancestorage.PolicyRecord{}, err
	}

	if s.events != nil {
		s.events.PolicyCreated(ctx, PolicyEvent{Policy: created, Company: company, Dossier: dossier, Advisor: advisor})
	}
	return created, nil
}

// GetPolicy returns one policy with its company, dossier, and beneficiaries.
func (s *Service) GetPolicy(ctx context.Context, caller Caller, policyID string) (PolicyDetail, error) {
	policy, err := s.insurance.GetPolicy(ctx, policyID)
	if err != nil {
		return PolicyDetail{}, mapStorageErr(err, "load policy")
	}
	dossier, err := s.clients.GetDossier(ctx, policy.DossierID)
	if err != nil {
		return PolicyDetail{}, mapStorageErr(err, "load dossier")
	}
	if err := requireDossierAccess(caller, dossier); err != nil {
		return PolicyDetail{}, err
	}

	detail := PolicyDetail{Policy: policy, Dossier: dossier}
	if detail.Company, err = s.insurance.GetCompany(ctx, policy.CompanyID); err != nil && !errors.Is(err, insurancestorage.ErrNotFound) {
		return PolicyDetail{}, mapStorageErr(err, "load company")
	}
	if detail.Beneficiaries, err = s.insurance.ListBeneficiaries(ctx, policy.ID); err != nil {
		return PolicyDetail{}, apperrors.Wrap(apperrors.CodeStoreFailure, "load beneficiaries", err)
	}
	sortBeneficiaries(detail.Beneficiaries)
	return detail, nil
}

// ListPolicies returns one page of policies. Non-admin callers must scope
// the listing to a dossier they own.
func (s *Service) ListPolicies(ctx context.Context, caller Caller, filter insurancestorage.PolicyFilter, page, perPage int) (insurancestorage.PolicyPage, error) {
	if !caller.IsAdmin() {
		dossierID := strings.TrimSpace(filter.DossierID)
		if dossierID == "" {
			return insurancestorage.PolicyPage{}, apperrors.New(apperrors.CodeForbidden, "advisors must list policies by dossier")
		}
		dossier, err := s.clients.GetDossier(ctx, dossierID)
		if err != nil {
			return insurancestorage.PolicyPage{}, mapStorageErr(err, "load dossier")
		}
		if err := requireDossierAccess(caller, dossier); err != nil {
			return insurancestorage.PolicyPage{}, err
		}
	}
	result, err := s.insurance.ListPolicies(ctx, filter, page, clampPageSize(perPage))
	if err != nil {
		return insurancestorage.PolicyPage{}, apperrors.Wrap(apperrors.CodeStoreFailure, "list policies", err)
	}
	return result, nil
}

// UpdatePolicy applies contract changes inside a single insurance-store
// transaction. A status change notifies the company.
func (s *Service) UpdatePolicy(ctx context.Context, caller Caller, input UpdatePolicyInput) (insurancestorage.PolicyRecord, error) {
	current, err := s.insurance.GetPolicy(ctx, input.ID)
	if err != nil {
		return insurancestorage.PolicyRecord{}, mapStorageErr(err, "load policy")
	}
	dossier, err := s.clients.GetDossier(ctx, current.DossierID)
	if err != nil {
		return insurancestorage.PolicyRecord{}, mapStorageErr(err, "load dossier")
	}
	if err := requireDossierAccess(caller, dossier); err != nil {
		return insurancestorage.PolicyRecord{}, err
	}

	previousStatus := current.Status
	var updated insurancestorage.PolicyRecord

	tx, err := s.insurance.Begin(ctx)
	if err != nil {
		return insurancestorage.PolicyRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "begin insurance transaction", err)
	}
	err = func() error {
		policy, err := tx.GetPolicy(ctx, input.ID)
		if err != nil {
			return mapStorageErr(err, "load policy")
		}
		if input.Status != nil {
			if err := validatePolicyStatus(*input.Status); err != nil {
				return err
			}
			policy.Status = *input.Status
		}
		if input.CapitalInsuredCents != nil {
			if *input.CapitalInsuredCents <= 0 {
				return apperrors.New(apperrors.CodeValidation, "capital insured must be positive")
			}
			policy.CapitalInsuredCents = *input.CapitalInsuredCents
		}
		if input.MonthlyPremiumCents != nil {
			if *input.MonthlyPremiumCents < 0 {
				return apperrors.New(apperrors.CodeValidation, "monthly premium must not be negative")
			}
			policy.MonthlyPremiumCents = *input.MonthlyPremiumCents
		}
		if input.ExpirationDate != nil {
			policy.ExpirationDate = input.ExpirationDate
		}
		if input.BeneficiaryClause != nil {
			policy.BeneficiaryClause = strings.TrimSpace(*input.BeneficiaryClause)
		}
		policy.UpdatedAt = s.nowUTC()
		if err := tx.UpdatePolicy(ctx, policy); err != nil {
			return mapStorageErr(err, "update policy")
		}
		updated = policy
		return nil
	}()
	if err != nil {
		_ = tx.Rollback()
		return insurancestorage.PolicyRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return insurancestorage.PolicyRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "commit policy update", err)
	}

	if s.events != nil && updated.Status != previousStatus {
		company, _ := s.insurance.GetCompany(ctx, updated.CompanyID)
		advisor, _ := s.clients.GetAdvisor(ctx, dossier.AdvisorID)
		s.events.PolicyStatusChanged(ctx, PolicyEvent{
			Policy:         updated,
			PreviousStatus: previousStatus,
			Company:        company,
			Dossier:        dossier,
			Advisor:        advisor,
		})
	}
	return updated, nil
}

// DeletePolicy removes the contract and its beneficiaries. A dossier left
// without its policy regresses from complete to incomplete in the same
// coordinated commit.
func (s *Service) DeletePolicy(ctx context.Context, caller Caller, policyID string) error {
	var deleted insurancestorage.PolicyRecord
	var company insurancestorage.CompanyRecord
	var dossier clientsstorage.DossierRecord
	var advisor clientsstorage.AdvisorRecord

	err := s.coordinator.Run(ctx, func(ctx context.Context, clients clientsstorage.Tx, insurance insurancestorage.Tx) error {
		policy, err := insurance.GetPolicy(ctx, policyID)
		if err != nil {
			return mapStorageErr(err, "load policy")
		}
		loaded, err := clients.GetDossier(ctx, policy.DossierID)
		if err != nil {
			return mapStorageErr(err, "load dossier")
		}
		if err := requireDossierAccess(caller, loaded); err != nil {
			return err
		}

		if err := insurance.DeletePolicy(ctx, policy.ID); err != nil {
			return apperrors.Wrap(apperrors.CodeStoreFailure, "delete policy", err)
		}
		if loaded.Status == clientsstorage.DossierStatusComplete {
			now := s.nowUTC()
			if err := clients.UpdateDossierStatus(ctx, loaded.ID, clientsstorage.DossierStatusIncomplete, now); err != nil {
				return mapStorageErr(err, "mark dossier incomplete")
			}
			loaded.Status = clientsstorage.DossierStatusIncomplete
			loaded.UpdatedAt = now
		}

		deleted = policy
		dossier = loaded
		company, _ = insurance.GetCompany(ctx, policy.CompanyID)
		advisor, _ = clients.GetAdvisor(ctx, loaded.AdvisorID)
		return nil
	})
	if err != nil {
		return err
	}

	if s.events != nil {
		s.events.PolicyDeleted(ctx, PolicyEvent{Policy: deleted, Company: company, Dossier: dossier, Advisor: advisor})
	}
	return nil
}

func validateContractType(contractType insurancestorage.ContractType) error {
	switch contractType {
	case insurancestorage.ContractIndividual, insurancestorage.ContractGroup:
		return nil
	default:
		return apperrors.WithMetadata(apperrors.CodeValidation,
			"unknown contract type", map[string]string{"contract_type": string(contractType)})
	}
}

func validatePolicyStatus(status insurancestorage.PolicyStatus) error {
	switch status {
	case insurancestorage.PolicyStatusActive,
		insurancestorage.PolicyStatusSuspended,
		insurancestorage.PolicyStatusTerminated:
		return nil
	default:
		return apperrors.WithMetadata(apperrors.CodeValidation,
			"unknown policy status", map[string]string{"status": string(status)})
	}
}
