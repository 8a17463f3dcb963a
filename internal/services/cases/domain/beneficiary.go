package domain

import (
	"context"
	"sort"
	"strings"

	apperrors "github.com/gclavel/assurvie/internal/platform/errors"
	clientsstorage "github.com/gclavel/assurvie/internal/services/clients/storage"
	insurancestorage "github.com/gclavel/assurvie/internal/services/insurance/storage"
)

// CreateBeneficiaryInput describes one new beneficiary designation.
type CreateBeneficiaryInput struct {
	PolicyID          string
	FirstName         string
	LastName          string
	Relationship      string
	PercentHundredths int64
	DisplayOrder      int
}

// UpdateBeneficiaryInput carries the mutable beneficiary fields. Nil
// pointers leave the field unchanged.
type UpdateBeneficiaryInput struct {
	ID                string
	FirstName         *string
	LastName          *string
	Relationship      *string
	PercentHundredths *int64
	DisplayOrder      *int
}

// CreateBeneficiary adds a designation to a policy. The allocation check
// runs inside the same insurance-store transaction as the write so a
// concurrent designation cannot push the total past 100%.
func (s *Service) CreateBeneficiary(ctx context.Context, caller Caller, input CreateBeneficiaryInput) (insurancestorage.BeneficiaryRecord, error) {
	policy, dossier, err := s.policyWithAccess(ctx, caller, input.PolicyID)
	if err != nil {
		return insurancestorage.BeneficiaryRecord{}, err
	}

	beneficiaryID, err := s.newID()
	if err != nil {
		return insurancestorage.BeneficiaryRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "generate beneficiary id", err)
	}

	var created insurancestorage.BeneficiaryRecord
	tx, err := s.insurance.Begin(ctx)
	if err != nil {
		return insurancestorage.BeneficiaryRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "begin insurance transaction", err)
	}
	err = func() error {
		existing, err := tx.ListBeneficiaries(ctx, policy.ID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeStoreFailure, "load beneficiaries", err)
		}
		if err := ValidateAllocation(allocationShares(existing), input.PercentHundredths, ""); err != nil {
			return err
		}

		now := s.nowUTC()
		created = insurancestorage.BeneficiaryRecord{
			ID:                beneficiaryID,
			PolicyID:          policy.ID,
			FirstName:         strings.TrimSpace(input.FirstName),
			LastName:          strings.TrimSpace(input.LastName),
			Relationship:      strings.TrimSpace(input.Relationship),
			PercentHundredths: input.PercentHundredths,
			DisplayOrder:      input.DisplayOrder,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.PutBeneficiary(ctx, created); err != nil {
			return apperrors.Wrap(apperrors.CodeStoreFailure, "create beneficiary", err)
		}
		return nil
	}()
	if err != nil {
		_ = tx.Rollback()
		return insurancestorage.BeneficiaryRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return insurancestorage.BeneficiaryRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "commit beneficiary create", err)
	}

	s.publishBeneficiaryChanged(ctx, BeneficiaryCreated, created, policy, dossier)
	return created, nil
}

// UpdateBeneficiary rewrites a designation. The edited row is excluded from
// the allocation sum so its share can be replaced rather than stacked.
func (s *Service) UpdateBeneficiary(ctx context.Context, caller Caller, input UpdateBeneficiaryInput) (insurancestorage.BeneficiaryRecord, error) {
	current, err := s.insurance.GetBeneficiary(ctx, input.ID)
	if err != nil {
		return insurancestorage.BeneficiaryRecord{}, mapStorageErr(err, "load beneficiary")
	}
	policy, dossier, err := s.policyWithAccess(ctx, caller, current.PolicyID)
	if err != nil {
		return insurancestorage.BeneficiaryRecord{}, err
	}

	var updated insurancestorage.BeneficiaryRecord
	tx, err := s.insurance.Begin(ctx)
	if err != nil {
		return insurancestorage.BeneficiaryRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "begin insurance transaction", err)
	}
	err = func() error {
		beneficiary, err := tx.GetBeneficiary(ctx, input.ID)
		if err != nil {
			return mapStorageErr(err, "load beneficiary")
		}
		if input.FirstName != nil {
			beneficiary.FirstName = strings.TrimSpace(*input.FirstName)
		}
		if input.LastName != nil {
			beneficiary.LastName = strings.TrimSpace(*input.LastName)
		}
		if input.Relationship != nil {
			beneficiary.Relationship = strings.TrimSpace(*input.Relationship)
		}
		if input.DisplayOrder != nil {
			beneficiary.DisplayOrder = *input.DisplayOrder
		}
		if input.PercentHundredths != nil {
			existing, err := tx.ListBeneficiaries(ctx, beneficiary.PolicyID)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeStoreFailure, "load beneficiaries", err)
			}
			if err := ValidateAllocation(allocationShares(existing), *input.PercentHundredths, beneficiary.ID); err != nil {
				return err
			}
			beneficiary.PercentHundredths = *input.PercentHundredths
		}
		beneficiary.UpdatedAt = s.nowUTC()
		if err := tx.UpdateBeneficiary(ctx, beneficiary); err != nil {
			return mapStorageErr(err, "update beneficiary")
		}
		updated = beneficiary
		return nil
	}()
	if err != nil {
		_ = tx.Rollback()
		return insurancestorage.BeneficiaryRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return insurancestorage.BeneficiaryRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "commit beneficiary update", err)
	}

	s.publishBeneficiaryChanged(ctx, BeneficiaryUpdated, updated, policy, dossier)
	return updated, nil
}

// DeleteBeneficiary removes a designation.
func (s *Service) DeleteBeneficiary(ctx context.Context, caller Caller, beneficiaryID string) error {
	current, err := s.insurance.GetBeneficiary(ctx, beneficiaryID)
	if err != nil {
		return mapStorageErr(err, "load beneficiary")
	}
	policy, dossier, err := s.policyWithAccess(ctx, caller, current.PolicyID)
	if err != nil {
		return err
	}

	tx, err := s.insurance.Begin(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStoreFailure, "begin insurance transaction", err)
	}
	if err := tx.DeleteBeneficiary(ctx, beneficiaryID); err != nil {
		_ = tx.Rollback()
		return mapStorageErr(err, "delete beneficiary")
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreFailure, "commit beneficiary delete", err)
	}

	s.publishBeneficiaryChanged(ctx, BeneficiaryDeleted, current, policy, dossier)
	return nil
}

// ListBeneficiaries returns a policy's designations ordered by display
// order, largest share first within an order slot.
func (s *Service) ListBeneficiaries(ctx context.Context, caller Caller, policyID string) ([]insurancestorage.BeneficiaryRecord, error) {
	if _, _, err := s.policyWithAccess(ctx, caller, policyID); err != nil {
		return nil, err
	}
	records, err := s.insurance.ListBeneficiaries(ctx, policyID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreFailure, "list beneficiaries", err)
	}
	sortBeneficiaries(records)
	return records, nil
}

func (s *Service) policyWithAccess(ctx context.Context, caller Caller, policyID string) (insurancestorage.PolicyRecord, clientsstorage.DossierRecord, error) {
	policy, err := s.insurance.GetPolicy(ctx, strings.TrimSpace(policyID))
	if err != nil {
		return insurancestorage.PolicyRecord{}, clientsstorage.DossierRecord{}, mapStorageErr(err, "load policy")
	}
	dossier, err := s.clients.GetDossier(ctx, policy.DossierID)
	if err != nil {
		return insurancestorage.PolicyRecord{}, clientsstorage.DossierRecord{}, mapStorageErr(err, "load dossier")
	}
	if err := requireDossierAccess(caller, dossier); err != nil {
		return insurancestorage.PolicyRecord{}, clientsstorage.DossierRecord{}, err
	}
	return policy, dossier, nil
}

func (s *Service) publishBeneficiaryChanged(ctx context.Context, action BeneficiaryAction, beneficiary insurancestorage.BeneficiaryRecord, policy insurancestorage.PolicyRecord, dossier clientsstorage.DossierRecord) {
	if s.events == nil {
		return
	}
	company, _ := s.insurance.GetCompany(ctx, policy.CompanyID)
	advisor, _ := s.clients.GetAdvisor(ctx, dossier.AdvisorID)
	s.events.BeneficiaryChanged(ctx, BeneficiaryEvent{
		Action:      action,
		Beneficiary: beneficiary,
		Policy:      policy,
		Company:     company,
		Dossier:     dossier,
		Advisor:     advisor,
	})
}

func allocationShares(records []insurancestorage.BeneficiaryRecord) []AllocationShare {
	shares := make([]AllocationShare, 0, len(records))
	for _, record := range records {
		shares = append(shares, AllocationShare{ID: record.ID, Hundredths: record.PercentHundredths})
	}
	return shares
}

func sortBeneficiaries(records []insurancestorage.BeneficiaryRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].DisplayOrder != records[j].DisplayOrder {
			return records[i].DisplayOrder < records[j].DisplayOrder
		}
		return records[i].PercentHundredths > records[j].PercentHundredths
	})
}
