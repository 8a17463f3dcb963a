package domain

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/gclavel/assurvie/internal/platform/errors"
	insurancestorage "github.com/gclavel/assurvie/internal/services/insurance/storage"
)

// CompanyInput carries the company contact fields.
type CompanyInput struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// CreateCompany registers an insurance company.
func (s *Service) CreateCompany(ctx context.Context, caller Caller, input CompanyInput) (insurancestorage.CompanyRecord, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return insurancestorage.CompanyRecord{}, apperrors.New(apperrors.CodeValidation, "company name is required")
	}

	companyID, err := s.newID()
	if err != nil {
		return insurancestorage.CompanyRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "generate company id", err)
	}
	now := s.nowUTC()
	record := insurancestorage.CompanyRecord{
		ID:        companyID,
		Name:      name,
		Email:     strings.TrimSpace(input.Email),
		Phone:     strings.TrimSpace(input.Phone),
		Address:   strings.TrimSpace(input.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.insurance.PutCompany(ctx, record); err != nil {
		if errors.Is(err, insurancestorage.ErrConflict) {
			return insurancestorage.CompanyRecord{}, apperrors.WithMetadata(apperrors.CodeValidation,
				"company name already in use", map[string]string{"name": name})
		}
		return insurancestorage.CompanyRecord{}, apperrors.Wrap(apperrors.CodeStoreFailure, "create company", err)
	}
	return record, nil
}

// UpdateCompany rewrites a company's contact fields.
func (s *Service) UpdateCompany(ctx context.Context, caller Caller, companyID string, input CompanyInput) (insurancestorage.CompanyRecord, error) {
	record, err := s.insurance.GetCompany(ctx, companyID)
	if err != nil {
		return insurancestorage.CompanyRecord{}, mapStorageErr(err, "load company")
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		record.Name = name
	}
	record.Email = strings.TrimSpace(input.Email)
	record.Phone = strings.TrimSpace(input.Phone)
	record.Address = strings.TrimSpace(input.Address)
	record.UpdatedAt = s.nowUTC()
	if err := s.insurance.UpdateCompany(ctx, record); err != nil {
		if errors.Is(err, insurancestorage.ErrConflict) {
			return insurancestorage.CompanyRecord{}, apperrors.WithMetadata(apperrors.CodeValidation,
				"company name already in use", map[string]string{"name": record.Name})
		}
		return insurancestorage.CompanyRecord{}, mapStorageErr(err, "update company")
	}
	return record, nil
}

// GetCompany returns one company.
func (s *Service) GetCompany(ctx context.Context, companyID string) (insurancestorage.CompanyRecord, error) {
	record, err := s.insurance.GetCompany(ctx, companyID)
	if err != nil {
		return insurancestorage.CompanyRecord{}, mapStorageErr(err, "load company")
	}
	return record, nil
}

// ListCompanies returns every company ordered by name.
func (s *Service) ListCompanies(ctx context.Context) ([]insurancestorage.CompanyRecord, error) {
	records, err := s.insurance.ListCompanies(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreFailure, "list companies", err)
	}
	return records, nil
}

// DeleteCompany removes a company. Admin-only, and refused while any policy
// still references it.
func (s *Service) DeleteCompany(ctx context.Context, caller Caller, companyID string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	count, err := s.insurance.CountPoliciesByCompany(ctx, companyID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStoreFailure, "count company policies", err)
	}
	if count > 0 {
		return apperrors.WithMetadata(apperrors.CodeCompanyInUse,
			"company still has policies", map[string]string{"company_id": companyID})
	}
	if err := s.insurance.DeleteCompany(ctx, companyID); err != nil {
		if errors.Is(err, insurancestorage.ErrConflict) {
			return apperrors.WithMetadata(apperrors.CodeCompanyInUse,
				"company still has policies", map[string]string{"company_id": companyID})
		}
		return mapStorageErr(err, "delete company")
	}
	return nil
}
