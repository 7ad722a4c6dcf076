package models

// RiskLevel is the ordered qualitative scale attached to activity events
// and fraud alerts: low < medium < high < critical.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

var riskLevelRank = map[RiskLevel]int{
	RiskLevelLow:      0,
	RiskLevelMedium:   1,
	RiskLevelHigh:     2,
	RiskLevelCritical: 3,
}

func (r RiskLevel) Valid() bool {
	_, ok := riskLevelRank[r]
	return ok
}

// AtLeast reports whether r is at or above other on the ordered scale.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return riskLevelRank[r] >= riskLevelRank[other]
}

// AlertType enumerates the fraud rule categories.
type AlertType string

const (
	AlertTypeRepeatedFailedLogin AlertType = "Repeated Failed Login"
	AlertTypeOffHoursLogin       AlertType = "Off-Hours Login"
	AlertTypeLargeTransaction    AlertType = "Large Transaction"
	AlertTypeRapidActivity       AlertType = "Rapid Activity"
)

// Well-known activity action labels. Details are free text; the fraud rules
// match on these labels (and, for large transactions, on substrings).
const (
	ActionLogin          = "Login"
	ActionFailedLogin    = "Failed Login"
	ActionLogout         = "Logout"
	ActionRecordSale     = "Record Sale"
	ActionDeleteSale     = "Delete Sale"
	ActionRecordPurchase = "Record Purchase"
	ActionRecordUsage    = "Record Inventory Usage"
	ActionResolveAlert   = "Resolve Fraud Alert"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "A"
	UserRoleOwner UserRole = "O"
	UserRoleClerk UserRole = "C"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleOwner, UserRoleClerk:
		return true
	}
	return false
}

func (r UserRole) DisplayName() string {
	switch r {
	case UserRoleAdmin:
		return "Admin"
	case UserRoleOwner:
		return "Owner"
	default:
		return "Clerk"
	}
}
