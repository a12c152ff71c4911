// Package domain defines the aggregate snapshot types loaded from the
// relational store. A snapshot is transient and read-only: it is assembled
// fresh inside a single read transaction for every reconciliation and never
// cached across events, so the graph state derived from it is always a pure
// function of the latest database rows.
package domain

import "time"

// Household is the household root row plus the fields denormalized into the graph.
type Household struct {
	ID                 string
	Name               string
	Type               string
	AccountStatus      string
	TotalMembers       int
	LocationCountry    *string
	LocationRegion     *string
	LocationCity       *string
	LocationPostalCode *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HouseholdPreference is an owned preference row of a household.
type HouseholdPreference struct {
	ID              string
	PreferenceType  string
	PreferenceValue string
	Priority        int
	CreatedAt       time.Time
}

// HouseholdBudget is an owned budget row of a household.
type HouseholdBudget struct {
	ID         string
	BudgetType string
	Amount     float64
	Currency   string
	Period     string
	StartDate  *time.Time
	EndDate    *time.Time
	IsActive   bool
	CreatedAt  time.Time
}

// Vendor is the owning-vendor reference joined onto a B2B customer.
type Vendor struct {
	ID   string
	Name string
	Type *string
	Slug *string
}

// HealthProfile is the zero-or-one health profile owned by a customer.
type HealthProfile struct {
	ID             string
	HeightCM       *float64
	WeightKG       *float64
	BMI            *float64
	BMR            *float64
	TDEE           *float64
	ActivityLevel  *string
	HealthGoal     *string
	TargetWeightKG *float64
	TargetCalories *float64
	TargetProteinG *float64
	TargetCarbsG   *float64
	TargetFatG     *float64
	TargetFiberG   *float64
	TargetSodiumMG *float64
	TargetSugarG   *float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ConditionLink links a customer to a shared health condition reference node,
// carrying the per-customer relationship properties.
type ConditionLink struct {
	ConditionID   string
	Name          string
	Severity      *string
	DiagnosisDate *time.Time
	IsActive      bool
	Notes         *string
}

// AllergenLink links a customer to a shared allergen reference node.
type AllergenLink struct {
	AllergenID          string
	Name                string
	Severity            *string
	DiagnosisDate       *time.Time
	IsActive            bool
	ReactionDescription *string
}

// DietLink links a customer to a shared dietary preference reference node.
type DietLink struct {
	DietID     string
	Name       string
	Strictness *string
	StartDate  *time.Time
	IsActive   bool
}

// B2CCustomer is the B2C customer root row.
type B2CCustomer struct {
	ID             string
	HouseholdID    string
	FullName       string
	FirstName      *string
	LastName       *string
	Email          *string
	Phone          *string
	HouseholdRole  *string
	BirthYear      *int
	BirthMonth     *int
	DateOfBirth    *time.Time
	Age            *int
	Gender         *string
	IsProfileOwner bool
	AccountStatus  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// B2BCustomer is the B2B customer root row.
type B2BCustomer struct {
	ID            string
	VendorID      string
	FullName      string
	Email         *string
	Phone         *string
	ExternalID    *string
	AccountStatus string
	DateOfBirth   *time.Time
	Gender        *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// B2CCustomerSnapshot is the full denormalized shape of a B2C customer
// aggregate: the customer, its owning household, and everything the graph
// rebuild needs.
type B2CCustomerSnapshot struct {
	Customer             B2CCustomer
	Household            Household
	Profile              *HealthProfile
	Conditions           []ConditionLink
	Allergens            []AllergenLink
	Diets                []DietLink
	HouseholdPreferences []HouseholdPreference
	HouseholdBudgets     []HouseholdBudget
}

// B2BCustomerSnapshot is the full denormalized shape of a B2B customer aggregate.
type B2BCustomerSnapshot struct {
	Customer   B2BCustomer
	Vendor     Vendor
	Profile    *HealthProfile
	Conditions []ConditionLink
	Allergens  []AllergenLink
	Diets      []DietLink
}

// HouseholdSnapshot is the full denormalized shape of a household aggregate.
type HouseholdSnapshot struct {
	Household   Household
	Preferences []HouseholdPreference
	Budgets     []HouseholdBudget
}
