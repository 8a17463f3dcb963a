// Package domain implements the case-management use cases: dossiers and
// their notification audit live in the clients store, policies,
// beneficiaries, and companies live in the insurance store, and the
// coordinator stitches the two together for operations that touch both.
package domain

import (
	"errors"
	"time"

	apperrors "github.com/gclavel/assurvie/internal/platform/errors"
	"github.com/gclavel/assurvie/internal/platform/id"
	clientsstorage "github.com/gclavel/assurvie/internal/services/clients/storage"
	insurancestorage "github.com/gclavel/assurvie/internal/services/insurance/storage"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Service orchestrates the case-management use cases across both stores.
type Service struct {
	clients     clientsstorage.Store
	insurance   insurancestorage.Store
	coordinator *Coordinator
	events      Events
	clock       func() time.Time
	newID       func() (string, error)
}

// NewService constructs the case-management use cases. events may be nil
// when no dispatcher is wired; notifications are then skipped.
func NewService(clients clientsstorage.Store, insurance insurancestorage.Store, events Events, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		clients:     clients,
		insurance:   insurance,
		coordinator: NewCoordinator(clients, insurance),
		events:      events,
		clock:       clock,
		newID:       newID,
	}
}

func (s *Service) nowUTC() time.Time {
	return s.clock().UTC()
}

func clampPageSize(perPage int) int {
	if perPage <= 0 {
		return defaultPageSize
	}
	if perPage > maxPageSize {
		return maxPageSize
	}
	return perPage
}

func mapStorageErr(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, clientsstorage.ErrNotFound), errors.Is(err, insurancestorage.ErrNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, message, err)
	default:
		return apperrors.Wrap(apperrors.CodeStoreFailure, message, err)
	}
}
