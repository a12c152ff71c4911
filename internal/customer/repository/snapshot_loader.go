// Package repository implements aggregate snapshot loading from the relational
// store. Both PostgreSQL and MySQL are supported; the drivers share the same
// loading logic and differ only in their query placeholders.
package repository

import (
	"context"
	"database/sql"

	"github.com/nutrio/graphsync/internal/customer/domain"
	apperrors "github.com/nutrio/graphsync/internal/errors"
)

// snapshotQueries holds the per-driver SQL for every snapshot component.
// Each query takes exactly one parameter: the root aggregate ID (the
// household-owned queries take the household ID).
type snapshotQueries struct {
	b2cCustomer          string
	b2cProfile           string
	b2cConditions        string
	b2cAllergens         string
	b2cDiets             string
	b2bCustomer          string
	b2bProfile           string
	b2bConditions        string
	b2bAllergens         string
	b2bDiets             string
	household            string
	householdPreferences string
	householdBudgets     string
}

// querier is the subset of database/sql used by the loaders, satisfied by
// *sql.DB, *sql.Tx, and the database package's Querier.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadB2CSnapshot(
	ctx context.Context,
	q querier,
	queries snapshotQueries,
	customerID string,
) (*domain.B2CCustomerSnapshot, error) {
	var snapshot domain.B2CCustomerSnapshot
	var householdType sql.NullString

	c := &snapshot.Customer
	h := &snapshot.Household
	err := q.QueryRowContext(ctx, queries.b2cCustomer, customerID).Scan(
		&c.ID, &c.HouseholdID, &c.FullName, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&c.HouseholdRole, &c.BirthYear, &c.BirthMonth, &c.DateOfBirth, &c.Age, &c.Gender,
		&c.IsProfileOwner, &c.AccountStatus, &c.CreatedAt, &c.UpdatedAt,
		&h.ID, &h.Name, &householdType, &h.AccountStatus, &h.TotalMembers,
		&h.LocationCountry, &h.LocationRegion, &h.LocationCity, &h.LocationPostalCode,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to load b2c customer")
	}
	h.Type = householdType.String

	if snapshot.Profile, err = loadProfile(ctx, q, queries.b2cProfile, customerID); err != nil {
		return nil, err
	}
	if snapshot.Conditions, err = loadConditions(ctx, q, queries.b2cConditions, customerID); err != nil {
		return nil, err
	}
	if snapshot.Allergens, err = loadAllergens(ctx, q, queries.b2cAllergens, customerID); err != nil {
		return nil, err
	}
	if snapshot.Diets, err = loadDiets(ctx, q, queries.b2cDiets, customerID); err != nil {
		return nil, err
	}
	if snapshot.HouseholdPreferences, err = loadHouseholdPreferences(ctx, q, queries.householdPreferences, h.ID); err != nil {
		return nil, err
	}
	if snapshot.HouseholdBudgets, err = loadHouseholdBudgets(ctx, q, queries.householdBudgets, h.ID); err != nil {
		return nil, err
	}

	return &snapshot, nil
}

func loadB2BSnapshot(
	ctx context.Context,
	q querier,
	queries snapshotQueries,
	customerID string,
) (*domain.B2BCustomerSnapshot, error) {
	var snapshot domain.B2BCustomerSnapshot

	c := &snapshot.Customer
	v := &snapshot.Vendor
	err := q.QueryRowContext(ctx, queries.b2bCustomer, customerID).Scan(
		&c.ID, &c.VendorID, &c.FullName, &c.Email, &c.Phone, &c.ExternalID,
		&c.AccountStatus, &c.DateOfBirth, &c.Gender, &c.CreatedAt, &c.UpdatedAt,
		&v.ID, &v.Name, &v.Type, &v.Slug,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to load b2b customer")
	}

	if snapshot.Profile, err = loadProfile(ctx, q, queries.b2bProfile, customerID); err != nil {
		return nil, err
	}
	if snapshot.Conditions, err = loadConditions(ctx, q, queries.b2bConditions, customerID); err != nil {
		return nil, err
	}
	if snapshot.Allergens, err = loadAllergens(ctx, q, queries.b2bAllergens, customerID); err != nil {
		return nil, err
	}
	if snapshot.Diets, err = loadDiets(ctx, q, queries.b2bDiets, customerID); err != nil {
		return nil, err
	}

	return &snapshot, nil
}

func loadHouseholdSnapshot(
	ctx context.Context,
	q querier,
	queries snapshotQueries,
	householdID string,
) (*domain.HouseholdSnapshot, error) {
	var snapshot domain.HouseholdSnapshot
	var householdType sql.NullString

	h := &snapshot.Household
	err := q.QueryRowContext(ctx, queries.household, householdID).Scan(
		&h.ID, &h.Name, &householdType, &h.AccountStatus, &h.TotalMembers,
		&h.LocationCountry, &h.LocationRegion, &h.LocationCity, &h.LocationPostalCode,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to load household")
	}
	h.Type = householdType.String

	if snapshot.Preferences, err = loadHouseholdPreferences(ctx, q, queries.householdPreferences, householdID); err != nil {
		return nil, err
	}
	if snapshot.Budgets, err = loadHouseholdBudgets(ctx, q, queries.householdBudgets, householdID); err != nil {
		return nil, err
	}

	return &snapshot, nil
}

func loadProfile(ctx context.Context, q querier, query, customerID string) (*domain.HealthProfile, error) {
	var p domain.HealthProfile

	err := q.QueryRowContext(ctx, query, customerID).Scan(
		&p.ID, &p.HeightCM, &p.WeightKG, &p.BMI, &p.BMR, &p.TDEE,
		&p.ActivityLevel, &p.HealthGoal, &p.TargetWeightKG, &p.TargetCalories,
		&p.TargetProteinG, &p.TargetCarbsG, &p.TargetFatG, &p.TargetFiberG,
		&p.TargetSodiumMG, &p.TargetSugarG, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			// Zero-or-one: a missing profile is a valid state, not an error.
			return nil, nil
		}
		return nil, apperrors.Wrap(err, "failed to load health profile")
	}

	return &p, nil
}

func loadConditions(ctx context.Context, q querier, query, customerID string) ([]domain.ConditionLink, error) {
	rows, err := q.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load health conditions")
	}
	defer rows.Close() //nolint:errcheck

	var links []domain.ConditionLink
	for rows.Next() {
		var link domain.ConditionLink
		err := rows.Scan(&link.ConditionID, &link.Name, &link.Severity,
			&link.DiagnosisDate, &link.IsActive, &link.Notes)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	return links, rows.Err()
}

func loadAllergens(ctx context.Context, q querier, query, customerID string) ([]domain.AllergenLink, error) {
	rows, err := q.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load allergens")
	}
	defer rows.Close() //nolint:errcheck

	var links []domain.AllergenLink
	for rows.Next() {
		var link domain.AllergenLink
		err := rows.Scan(&link.AllergenID, &link.Name, &link.Severity,
			&link.DiagnosisDate, &link.IsActive, &link.ReactionDescription)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	return links, rows.Err()
}

func loadDiets(ctx context.Context, q querier, query, customerID string) ([]domain.DietLink, error) {
	rows, err := q.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load dietary preferences")
	}
	defer rows.Close() //nolint:errcheck

	var links []domain.DietLink
	for rows.Next() {
		var link domain.DietLink
		err := rows.Scan(&link.DietID, &link.Name, &link.Strictness,
			&link.StartDate, &link.IsActive)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	return links, rows.Err()
}

func loadHouseholdPreferences(ctx context.Context, q querier, query, householdID string) ([]domain.HouseholdPreference, error) {
	rows, err := q.QueryContext(ctx, query, householdID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load household preferences")
	}
	defer rows.Close() //nolint:errcheck

	var prefs []domain.HouseholdPreference
	for rows.Next() {
		var pref domain.HouseholdPreference
		err := rows.Scan(&pref.ID, &pref.PreferenceType, &pref.PreferenceValue,
			&pref.Priority, &pref.CreatedAt)
		if err != nil {
			return nil, err
		}
		prefs = append(prefs, pref)
	}

	return prefs, rows.Err()
}

func loadHouseholdBudgets(ctx context.Context, q querier, query, householdID string) ([]domain.HouseholdBudget, error) {
	rows, err := q.QueryContext(ctx, query, householdID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load household budgets")
	}
	defer rows.Close() //nolint:errcheck

	var budgets []domain.HouseholdBudget
	for rows.Next() {
		var budget domain.HouseholdBudget
		err := rows.Scan(&budget.ID, &budget.BudgetType, &budget.Amount, &budget.Currency,
			&budget.Period, &budget.StartDate, &budget.EndDate, &budget.IsActive, &budget.CreatedAt)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, budget)
	}

	return budgets, rows.Err()
}
