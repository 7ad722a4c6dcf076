package models

import (
	"testing"
	"time"
)

// stubActivityQuery answers the trailing-window counts the rules ask for,
// keyed by action ("" being the any-action count).
type stubActivityQuery struct {
	counts map[string]int64
	err    error
}

func (q stubActivityQuery) CountActorEvents(_ *ActivityLog, action string, _ time.Duration) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	return q.counts[action], nil
}

func loginAt(hour int) *ActivityLog {
	return &ActivityLog{
		Action:    ActionLogin,
		CreatedAt: time.Date(2025, 3, 10, hour, 15, 0, 0, time.UTC),
	}
}

func TestRuleRepeatedFailedLogin_FiresAtThreshold(t *testing.T) {
	event := &ActivityLog{Action: ActionFailedLogin, CreatedAt: time.Now().UTC()}

	tests := []struct {
		name      string
		count     int64
		wantAlert bool
	}{
		{"two failures stay quiet", 2, false},
		{"third failure fires", 3, true},
		{"fourth failure fires again", 4, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := stubActivityQuery{counts: map[string]int64{ActionFailedLogin: tc.count}}
			alert, err := ruleRepeatedFailedLogin(q, event)
			if err != nil {
				t.Fatalf("ruleRepeatedFailedLogin: %v", err)
			}
			if (alert != nil) != tc.wantAlert {
				t.Fatalf("alert = %v, wantAlert = %v", alert, tc.wantAlert)
			}
			if alert != nil {
				if alert.AlertType != AlertTypeRepeatedFailedLogin {
					t.Errorf("AlertType = %q", alert.AlertType)
				}
				if alert.Severity != RiskLevelHigh {
					t.Errorf("Severity = %q, want high", alert.Severity)
				}
			}
		})
	}
}

func TestRuleRepeatedFailedLogin_IgnoresOtherActions(t *testing.T) {
	q := stubActivityQuery{counts: map[string]int64{ActionFailedLogin: 99}}
	alert, err := ruleRepeatedFailedLogin(q, loginAt(10))
	if err != nil {
		t.Fatalf("ruleRepeatedFailedLogin: %v", err)
	}
	if alert != nil {
		t.Fatalf("successful login must not fire the failed-login rule: %+v", alert)
	}
}

func TestRuleOffHoursLogin_HourBoundaries(t *testing.T) {
	tests := []struct {
		hour      int
		wantAlert bool
	}{
		{0, true},
		{5, true},
		{6, false}, // opening boundary is business hours
		{12, false},
		{22, false}, // closing boundary is still business hours
		{23, true},
	}

	for _, tc := range tests {
		alert, err := ruleOffHoursLogin(nil, loginAt(tc.hour))
		if err != nil {
			t.Fatalf("hour %d: %v", tc.hour, err)
		}
		if (alert != nil) != tc.wantAlert {
			t.Errorf("hour %d: alert = %v, wantAlert = %v", tc.hour, alert, tc.wantAlert)
		}
		if alert != nil && alert.Severity != RiskLevelMedium {
			t.Errorf("hour %d: Severity = %q, want medium", tc.hour, alert.Severity)
		}
	}
}

func TestRuleOffHoursLogin_IgnoresNonLoginEvents(t *testing.T) {
	event := &ActivityLog{
		Action:    ActionRecordSale,
		CreatedAt: time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC),
	}
	alert, err := ruleOffHoursLogin(nil, event)
	if err != nil {
		t.Fatalf("ruleOffHoursLogin: %v", err)
	}
	if alert != nil {
		t.Fatalf("only logins are subject to the off-hours rule: %+v", alert)
	}
}

func TestRuleLargeTransaction(t *testing.T) {
	tests := []struct {
		name      string
		action    string
		details   string
		wantAlert bool
	}{
		{"sale over the limit", ActionRecordSale, "Recorded sale for $12000.00: 500 croissants", true},
		{"purchase over the limit", ActionRecordPurchase, "Flour restock, 15000 spent", true},
		{"exactly at the limit stays quiet", ActionRecordSale, "$10000.00 wholesale order", false},
		{"under the limit", ActionRecordSale, "$45.50 walk-in", false},
		{"no amount in details", ActionRecordSale, "bulk order, amount TBD", false},
		{"non-transaction action", ActionLogin, "$99999.00", false},
		// First match wins: a leading quantity shadows the amount, so the
		// handlers put the dollar amount before any other number.
		{"quantity before amount shadows it", ActionRecordSale, "Sold 2 cakes for $50000.00", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			event := &ActivityLog{Action: tc.action, Details: tc.details}
			alert, err := ruleLargeTransaction(nil, event)
			if err != nil {
				t.Fatalf("ruleLargeTransaction: %v", err)
			}
			if (alert != nil) != tc.wantAlert {
				t.Fatalf("alert = %v, wantAlert = %v", alert, tc.wantAlert)
			}
		})
	}
}

func TestExtractTransactionAmount(t *testing.T) {
	tests := []struct {
		details string
		want    string
		ok      bool
	}{
		{"Sold for $1234.56", "1234.56", true},
		{"Sold for 1234", "1234", true},
		{"first $10.00 then $99.00", "10.00", true},
		{"Recorded sale for $50000.00: 2 wedding cakes", "50000.00", true},
		{"no numbers here", "", false},
	}

	for _, tc := range tests {
		amount, ok := extractTransactionAmount(tc.details)
		if ok != tc.ok {
			t.Errorf("%q: ok = %v, want %v", tc.details, ok, tc.ok)
			continue
		}
		if ok && !amount.Equal(d(tc.want)) {
			t.Errorf("%q: amount = %s, want %s", tc.details, amount, tc.want)
		}
	}
}

func TestRuleRapidActivity_FiresAboveThreshold(t *testing.T) {
	event := &ActivityLog{Action: ActionRecordSale, CreatedAt: time.Now().UTC()}

	quiet := stubActivityQuery{counts: map[string]int64{"": 20}}
	if alert, _ := ruleRapidActivity(quiet, event); alert != nil {
		t.Fatalf("20 events in window must not fire: %+v", alert)
	}

	busy := stubActivityQuery{counts: map[string]int64{"": 21}}
	alert, err := ruleRapidActivity(busy, event)
	if err != nil {
		t.Fatalf("ruleRapidActivity: %v", err)
	}
	if alert == nil {
		t.Fatal("21 events in window must fire")
	}
	if alert.AlertType != AlertTypeRapidActivity || alert.Severity != RiskLevelHigh {
		t.Fatalf("alert = %+v", alert)
	}
}

func TestRuleSetOrderAndIndependence(t *testing.T) {
	// A single failed-login burst at 03:00 should be caught by the
	// failed-login rule; each rule decides independently on the same event.
	event := &ActivityLog{
		Action:    ActionFailedLogin,
		CreatedAt: time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC),
	}
	q := stubActivityQuery{counts: map[string]int64{ActionFailedLogin: 5, "": 30}}

	var fired []AlertType
	for _, rule := range fraudRules {
		alert, err := rule(q, event)
		if err != nil {
			t.Fatalf("rule: %v", err)
		}
		if alert != nil {
			fired = append(fired, alert.AlertType)
		}
	}

	want := []AlertType{AlertTypeRepeatedFailedLogin, AlertTypeRapidActivity}
	if len(fired) != len(want) {
		t.Fatalf("fired = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired = %v, want %v", fired, want)
		}
	}
}
