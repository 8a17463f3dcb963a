package domain

import (
	"context"

	apperrors "github.com/gclavel/assurvie/internal/platform/errors"
	clientsstorage "github.com/gclavel/assurvie/internal/services/clients/storage"
	insurancestorage "github.com/gclavel/assurvie/internal/services/insurance/storage"
)

// Coordinator runs one unit of work across the clients store and the
// insurance store. The two stores have no shared transaction manager: the
// clients transaction commits first, then the insurance transaction. A
// failure between the two commits leaves the clients effect durable and the
// insurance effect lost; callers get a store-failure error carrying that
// outcome in its metadata. Resolution of the gap is operational, not
// automatic.
type Coordinator struct {
	clients   clientsstorage.Store
	insurance insurancestorage.Store
}

// NewCoordinator builds a coordinator over the two stores.
func NewCoordinator(clients clientsstorage.Store, insurance insurancestorage.Store) *Coordinator {
	return &Coordinator{clients: clients, insurance: insurance}
}

// Run opens one transaction per store, invokes work with both handles, and
// commits clients first then insurance. Any work error rolls back both.
// Commit errors surface as store failures; rollback is best-effort.
func (c *Coordinator) Run(ctx context.Context, work func(ctx context.Context, clients clientsstorage.Tx, insurance insurancestorage.Tx) error) error {
	clientsTx, err := c.clients.Begin(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStoreFailure, "begin clients transaction", err)
	}
	insuranceTx, err := c.insurance.Begin(ctx)
	if err != nil {
		_ = clientsTx.Rollback()
		return apperrors.Wrap(apperrors.CodeStoreFailure, "begin insurance transaction", err)
	}

	if err := work(ctx, clientsTx, insuranceTx); err != nil {
		_ = clientsTx.Rollback()
		_ = insuranceTx.Rollback()
		return err
	}

	if err := clientsTx.Commit(); err != nil {
		_ = clientsTx.Rollback()
		_ = insuranceTx.Rollback()
		return &apperrors.Error{
			Code:     apperrors.CodeStoreFailure,
			Message:  "commit clients transaction",
			Metadata: map[string]string{"clients_committed": "false", "insurance_committed": "false"},
			Cause:    err,
		}
	}
	if err := insuranceTx.Commit(); err != nil {
		// The clients commit is already durable; only the insurance
		// side can still be rolled back.
		_ = insuranceTx.Rollback()
		return &apperrors.Error{
			Code:     apperrors.CodeStoreFailure,
			Message:  "commit insurance transaction",
			Metadata: map[string]string{"clients_committed": "true", "insurance_committed": "false"},
			Cause:    err,
		}
	}
	return nil
}
