package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/nutrio/graphsync/internal/customer/domain"
	"github.com/nutrio/graphsync/internal/database"
)

// mysqlQueries mirrors the PostgreSQL snapshot SQL with MySQL placeholders.
var mysqlQueries = rebindQueries(postgresQueries)

// rebindQueries converts single-parameter PostgreSQL queries to MySQL syntax.
func rebindQueries(q snapshotQueries) snapshotQueries {
	rebind := func(query string) string {
		return strings.ReplaceAll(query, "$1", "?")
	}
	return snapshotQueries{
		b2cCustomer:          rebind(q.b2cCustomer),
		b2cProfile:           rebind(q.b2cProfile),
		b2cConditions:        rebind(q.b2cConditions),
		b2cAllergens:         rebind(q.b2cAllergens),
		b2cDiets:             rebind(q.b2cDiets),
		b2bCustomer:          rebind(q.b2bCustomer),
		b2bProfile:           rebind(q.b2bProfile),
		b2bConditions:        rebind(q.b2bConditions),
		b2bAllergens:         rebind(q.b2bAllergens),
		b2bDiets:             rebind(q.b2bDiets),
		household:            rebind(q.household),
		householdPreferences: rebind(q.householdPreferences),
		householdBudgets:     rebind(q.householdBudgets),
	}
}

// MySQLCustomerRepository loads aggregate snapshots from MySQL.
type MySQLCustomerRepository struct {
	db *sql.DB
}

// NewMySQLCustomerRepository creates a new MySQLCustomerRepository
func NewMySQLCustomerRepository(db *sql.DB) *MySQLCustomerRepository {
	return &MySQLCustomerRepository{db: db}
}

// GetB2CCustomerSnapshot loads the full B2C customer aggregate snapshot.
func (r *MySQLCustomerRepository) GetB2CCustomerSnapshot(
	ctx context.Context,
	customerID string,
) (*domain.B2CCustomerSnapshot, error) {
	return loadB2CSnapshot(ctx, database.GetTx(ctx, r.db), mysqlQueries, customerID)
}

// GetB2BCustomerSnapshot loads the full B2B customer aggregate snapshot.
func (r *MySQLCustomerRepository) GetB2BCustomerSnapshot(
	ctx context.Context,
	customerID string,
) (*domain.B2BCustomerSnapshot, error) {
	return loadB2BSnapshot(ctx, database.GetTx(ctx, r.db), mysqlQueries, customerID)
}

// GetHouseholdSnapshot loads the full household aggregate snapshot.
func (r *MySQLCustomerRepository) GetHouseholdSnapshot(
	ctx context.Context,
	householdID string,
) (*domain.HouseholdSnapshot, error) {
	return loadHouseholdSnapshot(ctx, database.GetTx(ctx, r.db), mysqlQueries, householdID)
}
