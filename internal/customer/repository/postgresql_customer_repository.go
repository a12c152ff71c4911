package repository

import (
	"context"
	"database/sql"

	"github.com/nutrio/graphsync/internal/customer/domain"
	"github.com/nutrio/graphsync/internal/database"
)

// postgresQueries is the PostgreSQL snapshot SQL. The MySQL variant is derived
// from it by rebinding the placeholders; each query takes exactly one parameter.
var postgresQueries = snapshotQueries{
	b2cCustomer: `SELECT c.id, c.household_id, c.full_name, c.first_name, c.last_name, c.email, c.phone,
				         c.household_role, c.birth_year, c.birth_month, c.date_of_birth, c.age, c.gender,
				         c.is_profile_owner, c.account_status, c.created_at, c.updated_at,
				         h.id, h.household_name, h.household_type, h.account_status, h.total_members,
				         h.location_country, h.location_region, h.location_city, h.location_postal_code,
				         h.created_at, h.updated_at
				  FROM b2c_customers c
				  JOIN households h ON h.id = c.household_id
				  WHERE c.id = $1`,

	b2cProfile: `SELECT id, height_cm, weight_kg, bmi, bmr, tdee, activity_level, health_goal,
				        target_weight_kg, target_calories, target_protein_g, target_carbs_g, target_fat_g,
				        target_fiber_g, target_sodium_mg, target_sugar_g, created_at, updated_at
				  FROM b2c_customer_health_profiles
				  WHERE b2c_customer_id = $1`,

	b2cConditions: `SELECT l.condition_id, r.name, l.severity, l.diagnosis_date, l.is_active, l.notes
				  FROM b2c_customer_health_conditions l
				  JOIN health_conditions r ON r.id = l.condition_id
				  WHERE l.b2c_customer_id = $1
				  ORDER BY l.condition_id`,

	b2cAllergens: `SELECT l.allergen_id, r.name, l.severity, l.diagnosis_date, l.is_active, l.reaction_description
				  FROM b2c_customer_allergens l
				  JOIN allergens r ON r.id = l.allergen_id
				  WHERE l.b2c_customer_id = $1
				  ORDER BY l.allergen_id`,

	b2cDiets: `SELECT l.diet_id, r.name, l.strictness, l.start_date, l.is_active
				  FROM b2c_customer_dietary_preferences l
				  JOIN dietary_preferences r ON r.id = l.diet_id
				  WHERE l.b2c_customer_id = $1
				  ORDER BY l.diet_id`,

	b2bCustomer: `SELECT c.id, c.vendor_id, c.full_name, c.email, c.phone, c.external_id,
				         c.account_status, c.date_of_birth, c.gender, c.created_at, c.updated_at,
				         v.id, v.name, v.vendor_type, v.slug
				  FROM b2b_customers c
				  JOIN vendors v ON v.id = c.vendor_id
				  WHERE c.id = $1`,

	b2bProfile: `SELECT id, height_cm, weight_kg, bmi, bmr, tdee, activity_level, health_goal,
				        target_weight_kg, target_calories, target_protein_g, target_carbs_g, target_fat_g,
				        target_fiber_g, target_sodium_mg, target_sugar_g, created_at, updated_at
				  FROM b2b_customer_health_profiles
				  WHERE b2b_customer_id = $1`,

	b2bConditions: `SELECT l.condition_id, r.name, l.severity, l.diagnosis_date, l.is_active, l.notes
				  FROM b2b_customer_health_conditions l
				  JOIN health_conditions r ON r.id = l.condition_id
				  WHERE l.b2b_customer_id = $1
				  ORDER BY l.condition_id`,

	b2bAllergens: `SELECT l.allergen_id, r.name, l.severity, l.diagnosis_date, l.is_active, l.reaction_description
				  FROM b2b_customer_allergens l
				  JOIN allergens r ON r.id = l.allergen_id
				  WHERE l.b2b_customer_id = $1
				  ORDER BY l.allergen_id`,

	b2bDiets: `SELECT l.diet_id, r.name, l.strictness, l.start_date, l.is_active
				  FROM b2b_customer_dietary_preferences l
				  JOIN dietary_preferences r ON r.id = l.diet_id
				  WHERE l.b2b_customer_id = $1
				  ORDER BY l.diet_id`,

	household: `SELECT id, household_name, household_type, account_status, total_members,
				       location_country, location_region, location_city, location_postal_code,
				       created_at, updated_at
				  FROM households
				  WHERE id = $1`,

	householdPreferences: `SELECT id, preference_type, preference_value, priority, created_at
				  FROM household_preferences
				  WHERE household_id = $1
				  ORDER BY id`,

	householdBudgets: `SELECT id, budget_type, amount, currency, period, start_date, end_date, is_active, created_at
				  FROM household_budgets
				  WHERE household_id = $1
				  ORDER BY id`,
}

// PostgreSQLCustomerRepository loads aggregate snapshots from PostgreSQL.
type PostgreSQLCustomerRepository struct {
	db *sql.DB
}

// NewPostgreSQLCustomerRepository creates a new PostgreSQLCustomerRepository
func NewPostgreSQLCustomerRepository(db *sql.DB) *PostgreSQLCustomerRepository {
	return &PostgreSQLCustomerRepository{db: db}
}

// GetB2CCustomerSnapshot loads the full B2C customer aggregate snapshot.
func (r *PostgreSQLCustomerRepository) GetB2CCustomerSnapshot(
	ctx context.Context,
	customerID string,
) (*domain.B2CCustomerSnapshot, error) {
	return loadB2CSnapshot(ctx, database.GetTx(ctx, r.db), postgresQueries, customerID)
}

// GetB2BCustomerSnapshot loads the full B2B customer aggregate snapshot.
func (r *PostgreSQLCustomerRepository) GetB2BCustomerSnapshot(
	ctx context.Context,
	customerID string,
) (*domain.B2BCustomerSnapshot, error) {
	return loadB2BSnapshot(ctx, database.GetTx(ctx, r.db), postgresQueries, customerID)
}

// GetHouseholdSnapshot loads the full household aggregate snapshot.
func (r *PostgreSQLCustomerRepository) GetHouseholdSnapshot(
	ctx context.Context,
	householdID string,
) (*domain.HouseholdSnapshot, error) {
	return loadHouseholdSnapshot(ctx, database.GetTx(ctx, r.db), postgresQueries, householdID)
}
