// Package usecase implements the aggregate snapshot reading business logic.
// Each load runs in a single read-only transaction so the assembled snapshot
// reflects one consistent database state across all joined tables.
package usecase

import (
	"context"
	"fmt"

	"github.com/nutrio/graphsync/internal/customer/domain"
	"github.com/nutrio/graphsync/internal/database"
	apperrors "github.com/nutrio/graphsync/internal/errors"
)

// CustomerRepository defines customer snapshot repository operations
type CustomerRepository interface {
	GetB2CCustomerSnapshot(ctx context.Context, customerID string) (*domain.B2CCustomerSnapshot, error)
	GetB2BCustomerSnapshot(ctx context.Context, customerID string) (*domain.B2BCustomerSnapshot, error)
	GetHouseholdSnapshot(ctx context.Context, householdID string) (*domain.HouseholdSnapshot, error)
}

// SnapshotUseCase loads aggregate snapshots for graph reconciliation.
type SnapshotUseCase struct {
	txManager    database.TxManager
	customerRepo CustomerRepository
}

// NewSnapshotUseCase creates a new SnapshotUseCase
func NewSnapshotUseCase(txManager database.TxManager, customerRepo CustomerRepository) *SnapshotUseCase {
	return &SnapshotUseCase{
		txManager:    txManager,
		customerRepo: customerRepo,
	}
}

// LoadB2CCustomer loads a B2C customer snapshot in one read transaction.
func (uc *SnapshotUseCase) LoadB2CCustomer(
	ctx context.Context,
	customerID string,
) (*domain.B2CCustomerSnapshot, error) {
	var snapshot *domain.B2CCustomerSnapshot
	err := uc.txManager.WithReadTx(ctx, func(txCtx context.Context) error {
		var txErr error
		snapshot, txErr = uc.customerRepo.GetB2CCustomerSnapshot(txCtx, customerID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	if snapshot.Customer.ID == "" || snapshot.Household.ID == "" {
		return nil, fmt.Errorf("b2c customer %s: %w", customerID, apperrors.ErrMalformedSnapshot)
	}
	return snapshot, nil
}

// LoadB2BCustomer loads a B2B customer snapshot in one read transaction.
func (uc *SnapshotUseCase) LoadB2BCustomer(
	ctx context.Context,
	customerID string,
) (*domain.B2BCustomerSnapshot, error) {
	var snapshot *domain.B2BCustomerSnapshot
	err := uc.txManager.WithReadTx(ctx, func(txCtx context.Context) error {
		var txErr error
		snapshot, txErr = uc.customerRepo.GetB2BCustomerSnapshot(txCtx, customerID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	if snapshot.Customer.ID == "" || snapshot.Vendor.ID == "" {
		return nil, fmt.Errorf("b2b customer %s: %w", customerID, apperrors.ErrMalformedSnapshot)
	}
	return snapshot, nil
}

// LoadHousehold loads a household snapshot in one read transaction.
func (uc *SnapshotUseCase) LoadHousehold(
	ctx context.Context,
	householdID string,
) (*domain.HouseholdSnapshot, error) {
	var snapshot *domain.HouseholdSnapshot
	err := uc.txManager.WithReadTx(ctx, func(txCtx context.Context) error {
		var txErr error
		snapshot, txErr = uc.customerRepo.GetHouseholdSnapshot(txCtx, householdID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	if snapshot.Household.ID == "" {
		return nil, fmt.Errorf("household %s: %w", householdID, apperrors.ErrMalformedSnapshot)
	}
	return snapshot, nil
}
