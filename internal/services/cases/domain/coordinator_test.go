package domain

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/gclavel/assurvie/internal/platform/errors"
	clientsstorage "github.com/gclavel/assurvie/internal/services/clients/storage"
	insurancestorage "github.com/gclavel/assurvie/internal/services/insurance/storage"
)

type fakeClientsTx struct {
	clientsstorage.Tx
	commitErr  error
	committed  bool
	rolledBack bool
}

func (f *fakeClientsTx) Commit() error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeClientsTx) Rollback() error {
	f.rolledBack = true
	return nil
}

type fakeInsuranceTx struct {
	insurancestorage.Tx
	commitErr  error
	committed  bool
	rolledBack bool
}

func (f *fakeInsuranceTx) Commit() error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeInsuranceTx) Rollback() error {
	f.rolledBack = true
	return nil
}

type fakeClientsStore struct {
	clientsstorage.Store
	tx       *fakeClientsTx
	beginErr error
}

func (f *fakeClientsStore) Begin(ctx context.Context) (clientsstorage.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

type fakeInsuranceStore struct {
	insurancestorage.Store
	tx       *fakeInsuranceTx
	beginErr error
}

func (f *fakeInsuranceStore) Begin(ctx context.Context) (insurancestorage.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

func TestCoordinatorCommitsBothStores(t *testing.T) {
	t.Parallel()

	clientsTx := &fakeClientsTx{}
	insuranceTx := &fakeInsuranceTx{}
	coordinator := NewCoordinator(
		&fakeClientsStore{tx: clientsTx},
		&fakeInsuranceStore{tx: insuranceTx},
	)

	var ran bool
	err := coordinator.Run(context.Background(), func(ctx context.Context, clients clientsstorage.Tx, insurance insurancestorage.Tx) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !ran {
		t.Fatal("work was not invoked")
	}
	if !clientsTx.committed || !insuranceTx.committed {
		t.Fatalf("expected both commits, got clients=%v insurance=%v", clientsTx.committed, insuranceTx.committed)
	}
}

func TestCoordinatorWorkErrorRollsBackBoth(t *testing.T) {
	t.Parallel()

	clientsTx := &fakeClientsTx{}
	insuranceTx := &fakeInsuranceTx{}
	coordinator := NewCoordinator(
		&fakeClientsStore{tx: clientsTx},
		&fakeInsuranceStore{tx: insuranceTx},
	)

	workErr := apperrors.New(apperrors.CodeAllocationExceeded, "over 100%")
	err := coordinator.Run(context.Background(), func(ctx context.Context, clients clientsstorage.Tx, insurance insurancestorage.Tx) error {
		return workErr
	})
	if !errors.Is(err, workErr) {
		t.Fatalf("expected work error to surface, got %v", err)
	}
	if clientsTx.committed || insuranceTx.committed {
		t.Fatal("no store should have committed")
	}
	if !clientsTx.rolledBack || !insuranceTx.rolledBack {
		t.Fatalf("expected both rollbacks, got clients=%v insurance=%v", clientsTx.rolledBack, insuranceTx.rolledBack)
	}
}

func TestCoordinatorClientsCommitFailureRollsBackInsurance(t *testing.T) {
	t.Parallel()

	clientsTx := &fakeClientsTx{commitErr: errors.New("disk full")}
	insuranceTx := &fakeInsuranceTx{}
	coordinator := NewCoordinator(
		&fakeClientsStore{tx: clientsTx},
		&fakeInsuranceStore{tx: insuranceTx},
	)

	err := coordinator.Run(context.Background(), func(ctx context.Context, clients clientsstorage.Tx, insurance insurancestorage.Tx) error {
		return nil
	})
	if apperrors.CodeOf(err) != apperrors.CodeStoreFailure {
		t.Fatalf("expected store failure, got %v", err)
	}
	if insuranceTx.committed {
		t.Fatal("insurance store must not commit after a clients commit failure")
	}
	if !insuranceTx.rolledBack {
		t.Fatal("insurance store should have rolled back")
	}
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) || domainErr.Metadata["clients_committed"] != "false" {
		t.Fatalf("expected clients_committed=false metadata, got %+v", domainErr)
	}
}

func TestCoordinatorInsuranceCommitFailureLeavesClientsDurable(t *testing.T) {
	t.Parallel()

	clientsTx := &fakeClientsTx{}
	insuranceTx := &fakeInsuranceTx{commitErr: errors.New("i/o timeout")}
	coordinator := NewCoordinator(
		&fakeClientsStore{tx: clientsTx},
		&fakeInsuranceStore{tx: insuranceTx},
	)

	err := coordinator.Run(context.Background(), func(ctx context.Context, clients clientsstorage.Tx, insurance insurancestorage.Tx) error {
		return nil
	})
	if apperrors.CodeOf(err) != apperrors.CodeStoreFailure {
		t.Fatalf("expected store failure, got %v", err)
	}
	if !clientsTx.committed {
		t.Fatal("clients commit should have happened before the insurance failure")
	}
	if clientsTx.rolledBack {
		t.Fatal("clients store cannot be rolled back after committing")
	}
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) || domainErr.Metadata["clients_committed"] != "true" {
		t.Fatalf("expected clients_committed=true metadata, got %+v", domainErr)
	}
}

func TestCoordinatorBeginFailures(t *testing.T) {
	t.Parallel()

	coordinator := NewCoordinator(
		&fakeClientsStore{beginErr: errors.New("closed")},
		&fakeInsuranceStore{tx: &fakeInsuranceTx{}},
	)
	err := coordinator.Run(context.Background(), func(ctx context.Context, clients clientsstorage.Tx, insurance insurancestorage.Tx) error {
		t.Fatal("work must not run")
		return nil
	})
	if apperrors.CodeOf(err) != apperrors.CodeStoreFailure {
		t.Fatalf("expected store failure, got %v", err)
	}

	clientsTx := &fakeClientsTx{}
	coordinator = NewCoordinator(
		&fakeClientsStore{tx: clientsTx},
		&fakeInsuranceStore{beginErr: errors.New("closed")},
	)
	err = coordinator.Run(context.Background(), func(ctx context.Context, clients clientsstorage.Tx, insurance insurancestorage.Tx) error {
		t.Fatal("work must not run")
		return nil
	})
	if apperrors.CodeOf(err) != apperrors.CodeStoreFailure {
		t.Fatalf("expected store failure, got %v", err)
	}
	if !clientsTx.rolledBack {
		t.Fatal("clients transaction should roll back when insurance begin fails")
	}
}
