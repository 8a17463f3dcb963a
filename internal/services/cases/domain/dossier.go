package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/gclavel/assurvie/internal/platform/errors"
	clientsstorage "github.com/gclavel/assurvie/internal/services/clients/storage"
	insurancestorage "github.com/gclavel/assurvie/internal/services/insurance/storage"
)

// referenceAttempts bounds retries when two dossiers race for the same
// monthly sequence number.
const referenceAttempts = 3

// CreateDossierInput describes one new case file.
type CreateDossierInput struct {
	EmployeeID string
	AdvisorID  string
	Reference  string
	Notes      string
}

// UpdateDossierInput carries the mutable dossier fields. Nil pointers leave
// the field unchanged.
type UpdateDossierInput struct {
	ID        string
	AdvisorID *string
	Status    *clientsstorage.DossierStatus
	Notes     *string
}

// DossierDetail is one dossier with its insurance-store context attached.
type DossierDetail struct {
	Dossier  clientsstorage.DossierRecord
	Employee clientsstorage.EmployeeRecord
	Advisor  clientsstorage.AdvisorRecord
	Policies []insurancestorage.PolicyRecord
}

// CreateDossier opens a new case file. Non-admin callers always own the
// dossier they create. When no reference is supplied one is generated as
// DOS-YYMM-NNNN with a monthly sequence.
func (s *Service) CreateDossier(ctx context.Context, caller Caller, input CreateDossierInput) (clientsstorage.DossierRecord, error) {
	employeeID := strings.TrimSpace(input.EmployeeID)
	if employeeID == "" {
		return clientsstorage.DossierRecord{}, apperrors.New(apperrors.CodeValidation, "employee id is required")
	}
	advisorID := strings.TrimSpace(input.AdvisorID)
	if advisorID == "" {
		advisorID = caller.AdvisorID
	}
	if !caller.IsAdmin() && advisorID != caller.AdvisorID {
		return clientsstorage.DossierRecord{}, apperrors.New(apperrors.CodeForbidden, "advisors can only open dossiers they own")
	}

	if _, err := s.clients.GetEmployee(ctx, employeeID); err != nil {
		return clientsstorage.DossierRecord{}, mapStorageErr(err, "load employee")
	}
	advisor, err := s.clients.GetAdvisor(ctx, advisorID)
	if err != nil {
		return clientsstorage.DossierRecord{}, mapStorageErr(err, "load advisor")
	}

	now := s.nowUTC()
	reference := strings.TrimSpace(input.Reference)
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		if reference == "" {
			generated, genErr := s.nextReference(ctx, now)
			if genErr != nil {
				return clientsstorage.DossierRecord{}, genErr
			}
			reference = generated
		}

		dossierID, idErr := s.newID()
		if idErr != nil {
			return clientsstorage.DossierRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "generate dossier id", idErr)
		}
		record := clientsstorage.DossierRecord{
			ID:         dossierID,
			EmployeeID: employeeID,
			AdvisorID:  advisorID,
			Reference:  reference,
			Status:     clientsstorage.DossierStatusPending,
			Notes:      strings.TrimSpace(input.Notes),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		err = s.clients.PutDossier(ctx, record)
		if err == nil {
			if s.events != nil && caller.AdvisorID != advisorID {
				s.events.DossierCreated(ctx, DossierEvent{Dossier: record, Advisor: advisor})
			}
			return record, nil
		}
		if errors.Is(err, clientsstorage.ErrConflict) {
			if strings.TrimSpace(input.Reference) != "" {
				return clientsstorage.DossierRecord{}, apperrors.WithMetadata(apperrors.CodeValidation,
					"dossier reference already in use", map[string]string{"reference": reference})
			}
			// Raced another generated reference; try the next sequence.
			reference = ""
			continue
		}
		return clientsstorage.DossierRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "create dossier", err)
	}
	return clientsstorage.DossierRecord{}, apperrors.New(apperrors.CodeStoreFailure, "could not allocate a dossier reference")
}

func (s *Service) nextReference(ctx context.Context, now time.Time) (string, error) {
	prefix := "DOS-" + now.Format("0601") + "-"
	count, err := s.clients.CountDossiersByReferencePrefix(ctx, prefix)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStoreFailure, "count dossier references", err)
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

// GetDossier returns one dossier with its employee, advisor, and policies.
func (s *Service) GetDossier(ctx context.Context, caller Caller, dossierID string) (DossierDetail, error) {
	dossier, err := s.clients.GetDossier(ctx, dossierID)
	if err != nil {
		return DossierDetail{}, mapStorageErr(err, "load dossier")
	}
	if err := requireDossierAccess(caller, dossier); err != nil {
		return DossierDetail{}, err
	}

	detail := DossierDetail{Dossier: dossier}
	if detail.Employee, err = s.clients.GetEmployee(ctx, dossier.EmployeeID); err != nil && !errors.Is(err, clientsstorage.ErrNotFound) {
		return DossierDetail{}, mapStorageErr(err, "load employee")
	}
	if detail.Advisor, err = s.clients.GetAdvisor(ctx, dossier.AdvisorID); err != nil && !errors.Is(err, clientsstorage.ErrNotFound) {
		return DossierDetail{}, mapStorageErr(err, "load advisor")
	}
	page, err := s.insurance.ListPolicies(ctx, insurancestorage.PolicyFilter{DossierID: dossier.ID}, 1, maxPageSize)
	if err != nil {
		return DossierDetail{}, apperrors.Wrap(apperrors.CodeStoreFailure, "load dossier policies", err)
	}
	detail.Policies = page.Policies
	return detail, nil
}

// ListDossiers returns one page of dossiers. Non-admin callers only see
// their own.
func (s *Service) ListDossiers(ctx context.Context, caller Caller, filter clientsstorage.DossierFilter, page, perPage int) (clientsstorage.DossierPage, error) {
	if !caller.IsAdmin() {
		if filter.AdvisorID != "" && filter.AdvisorID != caller.AdvisorID {
			return clientsstorage.DossierPage{}, apperrors.New(apperrors.CodeForbidden, "advisors can only list their own dossiers")
		}
		filter.AdvisorID = caller.AdvisorID
	}
	result, err := s.clients.ListDossiers(ctx, filter, page, clampPageSize(perPage))
	if err != nil {
		return clientsstorage.DossierPage{}, apperrors.Wrap(apperrors.CodeStoreFailure, "list dossiers", err)
	}
	return result, nil
}

// UpdateDossier applies the provided changes. Non-admin callers cannot
// reassign the dossier to another advisor. A status change notifies the
// advisor and the companies holding policies on the dossier.
func (s *Service) UpdateDossier(ctx context.Context, caller Caller, input UpdateDossierInput) (clientsstorage.DossierRecord, error) {
	dossier, err := s.clients.GetDossier(ctx, input.ID)
	if err != nil {
		return clientsstorage.DossierRecord{}, mapStorageErr(err, "load dossier")
	}
	if err := requireDossierAccess(caller, dossier); err != nil {
		return clientsstorage.DossierRecord{}, err
	}

	previousStatus := dossier.Status
	if input.AdvisorID != nil {
		newAdvisorID := strings.TrimSpace(*input.AdvisorID)
		if newAdvisorID != dossier.AdvisorID {
			if !caller.IsAdmin() {
				return clientsstorage.DossierRecord{}, apperrors.New(apperrors.CodeForbidden, "only admins can reassign a dossier")
			}
			if _, err := s.clients.GetAdvisor(ctx, newAdvisorID); err != nil {
				return clientsstorage.DossierRecord{}, mapStorageErr(err, "load advisor")
			}
			dossier.AdvisorID = newAdvisorID
		}
	}
	if input.Status != nil {
		switch *input.Status {
		case clientsstorage.DossierStatusPending,
			clientsstorage.DossierStatusComplete,
			clientsstorage.DossierStatusIncomplete,
			clientsstorage.DossierStatusArchived:
			dossier.Status = *input.Status
		default:
			return clientsstorage.DossierRecord{}, apperrors.WithMetadata(apperrors.CodeValidation,
				"unknown dossier status", map[string]string{"status": string(*input.Status)})
		}
	}
	if input.Notes != nil {
		dossier.Notes = strings.TrimSpace(*input.Notes)
	}
	dossier.UpdatedAt = s.nowUTC()
	if err := s.clients.UpdateDossier(ctx, dossier); err != nil {
		return clientsstorage.DossierRecord{}, mapStorageErr(err, "update dossier")
	}

	if s.events != nil && dossier.Status != previousStatus {
		advisor, _ := s.clients.GetAdvisor(ctx, dossier.AdvisorID)
		companies, _ := s.dossierCompanies(ctx, dossier.ID)
		s.events.DossierChanged(ctx, DossierEvent{
			Dossier:        dossier,
			Advisor:        advisor,
			PreviousStatus: previousStatus,
			Companies:      companies,
		})
	}
	return dossier, nil
}

// DeleteDossier removes the dossier and everything hanging off it:
// beneficiaries and policies in the insurance store, then the dossier in
// the clients store, all under the coordinator.
func (s *Service) DeleteDossier(ctx context.Context, caller Caller, dossierID string) error {
	var deleted clientsstorage.DossierRecord
	var advisor clientsstorage.AdvisorRecord
	var companies []insurancestorage.CompanyRecord

	err := s.coordinator.Run(ctx, func(ctx context.Context, clients clientsstorage.Tx, insurance insurancestorage.Tx) error {
		dossier, err := clients.GetDossier(ctx, dossierID)
		if err != nil {
			return mapStorageErr(err, "load dossier")
		}
		if err := requireDossierAccess(caller, dossier); err != nil {
			return err
		}

		policies, err := insurance.ListPoliciesByDossier(ctx, dossier.ID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeStoreFailure, "load dossier policies", err)
		}
		seen := map[string]bool{}
		for _, policy := range policies {
			if !seen[policy.CompanyID] {
				seen[policy.CompanyID] = true
				if company, companyErr := insurance.GetCompany(ctx, policy.CompanyID); companyErr == nil {
					companies = append(companies, company)
				}
			}
			// Beneficiaries go with the policy.
			if err := insurance.DeletePolicy(ctx, policy.ID); err != nil {
				return apperrors.Wrap(apperrors.CodeStoreFailure, "delete policy", err)
			}
		}
		if err := clients.DeleteDossier(ctx, dossier.ID); err != nil {
			return mapStorageErr(err, "delete dossier")
		}

		deleted = dossier
		advisor, _ = clients.GetAdvisor(ctx, dossier.AdvisorID)
		return nil
	})
	if err != nil {
		return err
	}

	if s.events != nil {
		s.events.DossierDeleted(ctx, DossierEvent{Dossier: deleted, Advisor: advisor, Companies: companies})
	}
	return nil
}

func (s *Service) dossierCompanies(ctx context.Context, dossierID string) ([]insurancestorage.CompanyRecord, error) {
	page, err := s.insurance.ListPolicies(ctx, insurancestorage.PolicyFilter{DossierID: dossierID}, 1, maxPageSize)
	if err != nil {
		return nil, err
	}
	var companies []insurancestorage.CompanyRecord
	seen := map[string]bool{}
	for _, policy := range page.Policies {
		if seen[policy.CompanyID] {
			continue
		}
		seen[policy.CompanyID] = true
		company, companyErr := s.insurance.GetCompany(ctx, policy.CompanyID)
		if companyErr != nil {
			continue
		}
		companies = append(companies, company)
	}
	return companies, nil
}
