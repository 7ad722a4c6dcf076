package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/speantag/bakery_backend/config"
	"bitbucket.org/speantag/bakery_backend/utils"
)

// ActivityLog is the append-only record of user and system actions. Rows
// are never updated or deleted; the fraud rules read them back by time
// window.
type ActivityLog struct {
	ID        int       `gorm:"primary_key" json:"id"`
	UserId    *int      `gorm:"index" json:"user_id"`
	Username  string    `gorm:"size:100" json:"username"`
	Action    string    `gorm:"size:100;index;not null" json:"action" binding:"required"`
	Details   string    `gorm:"type:text" json:"details"`
	ClientIp  string    `gorm:"size:45;index" json:"client_ip"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
	SessionId string    `gorm:"size:64;index" json:"session_id"`
	RiskLevel RiskLevel `gorm:"size:10;default:'low'" json:"risk_level"`
	// Metadata is an opaque JSON blob; the core stores it and never
	// inspects it.
	Metadata  string    `gorm:"type:text" json:"metadata"`
	CreatedAt time.Time `gorm:"index;autoCreateTime" json:"created_at"`
}

type NewActivityLog struct {
	UserId    *int           `json:"user_id"`
	Username  string         `json:"username"`
	Action    string         `json:"action" binding:"required"`
	Details   string         `json:"details"`
	RiskLevel RiskLevel      `json:"risk_level"`
	Metadata  map[string]any `json:"metadata"`
}

// LogActivity appends an event with the caller's client context and then
// synchronously runs the fraud rules over the log. Rule errors are logged,
// never propagated; a storage failure on the append itself is returned as
// a StorageError for LogActivitySafe to swallow.
func LogActivity(ctx context.Context, input *NewActivityLog) (*ActivityLog, error) {
	riskLevel := input.RiskLevel
	if riskLevel == "" {
		riskLevel = RiskLevelLow
	}
	if !riskLevel.Valid() {
		return nil, utils.NewValidationError("unknown risk level %q", riskLevel)
	}

	var metadata string
	if input.Metadata != nil {
		b, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, utils.NewValidationError("metadata is not serializable: %v", err)
		}
		metadata = string(b)
	}

	clientIp, _ := utils.GetClientIpFromContext(ctx)
	userAgent, _ := utils.GetUserAgentFromContext(ctx)
	sessionId, _ := utils.GetSessionIdFromContext(ctx)

	event := ActivityLog{
		UserId:    input.UserId,
		Username:  input.Username,
		Action:    input.Action,
		Details:   input.Details,
		ClientIp:  clientIp,
		UserAgent: userAgent,
		SessionId: sessionId,
		RiskLevel: riskLevel,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, utils.NewStorageError("append activity log", err)
	}

	EvaluateFraudRules(ctx, &event)
	return &event, nil
}

// LogActivitySafe is the call-site wrapper for business operations:
// activity logging must never abort the operation that triggered it, so
// any failure is logged and dropped here.
func LogActivitySafe(ctx context.Context, input *NewActivityLog) {
	if _, err := LogActivity(ctx, input); err != nil {
		config.LogError(config.GetLogger(), "models", "LogActivitySafe", "activity logging suppressed", input.Action, err)
	}
}

// GetActivityLogs returns events in [start, end], newest first, optionally
// filtered by user.
func GetActivityLogs(ctx context.Context, start, end time.Time, userId *int) ([]*ActivityLog, error) {
	if end.Before(start) {
		return nil, utils.NewValidationError("end date must not be before start date")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("created_at BETWEEN ? AND ?", start, utils.EndOfDay(end))
	if userId != nil && *userId > 0 {
		dbCtx = dbCtx.Where("user_id = ?", *userId)
	}

	var results []*ActivityLog
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, utils.NewStorageError("query activity logs", err)
	}
	return results, nil
}

// activityQuery is the read side the fraud rules run against. Keeping it an
// interface lets the rules be exercised without a database.
type activityQuery interface {
	// CountActorEvents counts events by the same actor as event within the
	// trailing window ending at event's timestamp, inclusive of the lower
	// bound and of the event itself. action == "" counts every action.
	CountActorEvents(event *ActivityLog, action string, window time.Duration) (int64, error)
}

// gormActivityQuery keys anonymous actors (nil user id) by client IP, so
// failed logins before authentication still accumulate per origin.
type gormActivityQuery struct {
	ctx context.Context
}

func (q gormActivityQuery) CountActorEvents(event *ActivityLog, action string, window time.Duration) (int64, error) {
	db := config.GetDB()
	since := event.CreatedAt.Add(-window)

	dbCtx := db.WithContext(q.ctx).Model(&ActivityLog{}).
		Where("created_at BETWEEN ? AND ?", since, event.CreatedAt)
	if action != "" {
		dbCtx = dbCtx.Where("action = ?", action)
	}
	if event.UserId != nil {
		dbCtx = dbCtx.Where("user_id = ?", *event.UserId)
	} else {
		dbCtx = dbCtx.Where("user_id IS NULL AND client_ip = ?", event.ClientIp)
	}

	var count int64
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, utils.NewStorageError("count activity events", err)
	}
	return count, nil
}
