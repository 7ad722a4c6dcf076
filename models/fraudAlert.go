package models

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bitbucket.org/speantag/bakery_backend/config"
	"bitbucket.org/speantag/bakery_backend/utils"
	"github.com/shopspring/decimal"
)

// FraudAlert is created only by the rule evaluator and mutated only by
// ResolveFraudAlert (one-way: unresolved -> resolved).
type FraudAlert struct {
	ID          int        `gorm:"primary_key" json:"id"`
	AlertType   AlertType  `gorm:"size:50;index;not null" json:"alert_type"`
	Severity    RiskLevel  `gorm:"size:10;not null" json:"severity"`
	Description string     `gorm:"type:text;not null" json:"description"`
	UserId      *int       `gorm:"index" json:"user_id"`
	ClientIp    string     `gorm:"size:45" json:"client_ip"`
	UserAgent   string     `gorm:"size:255" json:"user_agent"`
	Resolved    *bool      `gorm:"not null;default:false" json:"resolved"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	ResolvedBy  string     `gorm:"size:100" json:"resolved_by"`
	CreatedAt   time.Time  `gorm:"index;autoCreateTime" json:"created_at"`
}

const (
	failedLoginWindow    = time.Hour
	failedLoginThreshold = 3

	rapidActivityWindow    = 5 * time.Minute
	rapidActivityThreshold = 20

	offHoursStart = 6  // UTC hour; login hours < this fire
	offHoursEnd   = 22 // UTC hour; login hours > this fire
)

var largeTransactionLimit = decimal.NewFromInt(10000)

// transactionAmountPattern takes the first $-optional number with an
// optional 2-digit cents part out of the event details.
var transactionAmountPattern = regexp.MustCompile(`\$?(\d+(?:\.\d{2})?)`)

// fraudRule is a pure predicate over the event log: zero or one alert per
// event, no memory beyond the log itself. Rules re-fire on every
// qualifying event; alerts are not deduplicated.
type fraudRule func(q activityQuery, event *ActivityLog) (*FraudAlert, error)

// fraudRules is the fixed, ordered rule set. Each rule is evaluated
// independently, so a single event may raise multiple alerts.
var fraudRules = []fraudRule{
	ruleRepeatedFailedLogin,
	ruleOffHoursLogin,
	ruleLargeTransaction,
	ruleRapidActivity,
}

func ruleRepeatedFailedLogin(q activityQuery, event *ActivityLog) (*FraudAlert, error) {
	if event.Action != ActionFailedLogin {
		return nil, nil
	}
	count, err := q.CountActorEvents(event, ActionFailedLogin, failedLoginWindow)
	if err != nil {
		return nil, err
	}
	if count < failedLoginThreshold {
		return nil, nil
	}
	return &FraudAlert{
		AlertType:   AlertTypeRepeatedFailedLogin,
		Severity:    RiskLevelHigh,
		Description: fmt.Sprintf("%d failed logins within the last hour", count),
	}, nil
}

func ruleOffHoursLogin(_ activityQuery, event *ActivityLog) (*FraudAlert, error) {
	if event.Action != ActionLogin {
		return nil, nil
	}
	hour := event.CreatedAt.UTC().Hour()
	if hour >= offHoursStart && hour <= offHoursEnd {
		return nil, nil
	}
	return &FraudAlert{
		AlertType:   AlertTypeOffHoursLogin,
		Severity:    RiskLevelMedium,
		Description: fmt.Sprintf("login at %02d:00 UTC, outside business hours", hour),
	}, nil
}

func ruleLargeTransaction(_ activityQuery, event *ActivityLog) (*FraudAlert, error) {
	action := strings.ToLower(event.Action)
	if !strings.Contains(action, "sale") && !strings.Contains(action, "purchase") {
		return nil, nil
	}
	amount, ok := extractTransactionAmount(event.Details)
	if !ok || !amount.GreaterThan(largeTransactionLimit) {
		return nil, nil
	}
	return &FraudAlert{
		AlertType:   AlertTypeLargeTransaction,
		Severity:    RiskLevelMedium,
		Description: fmt.Sprintf("transaction amount %s exceeds %s", amount, largeTransactionLimit),
	}, nil
}

func ruleRapidActivity(q activityQuery, event *ActivityLog) (*FraudAlert, error) {
	count, err := q.CountActorEvents(event, "", rapidActivityWindow)
	if err != nil {
		return nil, err
	}
	if count <= rapidActivityThreshold {
		return nil, nil
	}
	return &FraudAlert{
		AlertType:   AlertTypeRapidActivity,
		Severity:    RiskLevelHigh,
		Description: fmt.Sprintf("%d actions within 5 minutes", count),
	}, nil
}

// extractTransactionAmount returns the first monetary amount that can be
// parsed out of the free-text details. Absence of a match means the large
// transaction rule does not fire.
func extractTransactionAmount(details string) (decimal.Decimal, bool) {
	m := transactionAmountPattern.FindStringSubmatch(details)
	if m == nil {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

// EvaluateFraudRules runs the rule set against one freshly appended event.
// Alerts are written as a side effect; nothing is returned to the caller
// and evaluator failures never abort the triggering operation.
func EvaluateFraudRules(ctx context.Context, event *ActivityLog) {
	evaluateFraudRules(ctx, gormActivityQuery{ctx: ctx}, event)
}

func evaluateFraudRules(ctx context.Context, q activityQuery, event *ActivityLog) {
	logger := config.GetLogger()
	db := config.GetDB()

	for _, rule := range fraudRules {
		alert, err := rule(q, event)
		if err != nil {
			config.LogError(logger, "models", "evaluateFraudRules", "rule evaluation", event.Action, err)
			continue
		}
		if alert == nil {
			continue
		}
		alert.UserId = event.UserId
		alert.ClientIp = event.ClientIp
		alert.UserAgent = event.UserAgent
		alert.Resolved = utils.NewFalse()
		if err := db.WithContext(ctx).Create(alert).Error; err != nil {
			config.LogError(logger, "models", "evaluateFraudRules", "store alert", alert.AlertType, err)
		}
	}
}

// ResolveFraudAlert marks an alert resolved. Resolving an already-resolved
// alert is a no-op returning the alert unchanged; there is no re-open path.
func ResolveFraudAlert(ctx context.Context, id int, resolvedBy string) (*FraudAlert, error) {
	if resolvedBy == "" {
		return nil, utils.NewValidationError("resolver identity is required")
	}

	db := config.GetDB()
	var alert FraudAlert
	if err := db.WithContext(ctx).First(&alert, id).Error; err != nil {
		return nil, utils.NewNotFoundError("fraud alert", id)
	}

	if alert.Resolved != nil && *alert.Resolved {
		return &alert, nil
	}

	now := time.Now().UTC()
	alert.Resolved = utils.NewTrue()
	alert.ResolvedAt = &now
	alert.ResolvedBy = resolvedBy

	err := db.WithContext(ctx).Model(&alert).Updates(map[string]interface{}{
		"Resolved":   alert.Resolved,
		"ResolvedAt": alert.ResolvedAt,
		"ResolvedBy": alert.ResolvedBy,
	}).Error
	if err != nil {
		return nil, utils.NewStorageError("resolve fraud alert", err)
	}
	return &alert, nil
}

// GetFraudAlerts lists alerts, optionally only unresolved, newest first.
func GetFraudAlerts(ctx context.Context, unresolvedOnly bool) ([]*FraudAlert, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if unresolvedOnly {
		dbCtx = dbCtx.Where("resolved = ?", false)
	}

	var results []*FraudAlert
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, utils.NewStorageError("query fraud alerts", err)
	}
	return results, nil
}
