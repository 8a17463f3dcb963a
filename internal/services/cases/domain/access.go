package domain

import (
	apperrors "github.com/gclavel/assurvie/internal/platform/errors"
	clientsstorage "github.com/gclavel/assurvie/internal/services/clients/storage"
)

// Caller identifies the advisor performing an operation.
type Caller struct {
	AdvisorID string
	Role      clientsstorage.AdvisorRole
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == clientsstorage.RoleAdmin
}

// canAccessDossier reports whether the caller may read or mutate the
// dossier: admins always, advisors only for dossiers they own.
func canAccessDossier(caller Caller, dossier clientsstorage.DossierRecord) bool {
	if caller.IsAdmin() {
		return true
	}
	return caller.AdvisorID != "" && caller.AdvisorID == dossier.AdvisorID
}

func requireDossierAccess(caller Caller, dossier clientsstorage.DossierRecord) error {
	if canAccessDossier(caller, dossier) {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeForbidden,
		"caller does not own this dossier",
		map[string]string{"dossier_id": dossier.ID, "advisor_id": caller.AdvisorID})
}

func requireAdmin(caller Caller) error {
	if caller.IsAdmin() {
		return nil
	}
	return apperrors.New(apperrors.CodeForbidden, "operation requires the admin role")
}
