package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/speantag/bakery_backend/config"
	"bitbucket.org/speantag/bakery_backend/models"
	"bitbucket.org/speantag/bakery_backend/utils"
	"github.com/shopspring/decimal"
)

// End-to-end bookkeeping flow against a real MySQL: purchase two batches of
// the same item, consume part of it, record a sale, and check the report and
// dashboard aggregates plus the weighted-average cost on the item.
func TestBookkeepingFlow_PurchaseUsageSaleSummary(t *testing.T) {
	ctx := setupIntegration(t)

	// Two batches of flour: 10 @ 2.00 then 10 @ 4.00 -> blended cost 3.00.
	_, err := models.CreateMarketPurchase(ctx, &models.NewMarketPurchase{
		TotalAmountTaken: decimal.NewFromInt(100),
		PurchaseDate:     time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC),
		Items: []*models.NewPurchaseItem{
			{ItemName: "Flour", QuantityPurchased: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(2)},
		},
	})
	if err != nil {
		t.Fatalf("CreateMarketPurchase(batch 1): %v", err)
	}
	_, err = models.CreateMarketPurchase(ctx, &models.NewMarketPurchase{
		TotalAmountTaken: decimal.NewFromInt(100),
		PurchaseDate:     time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC),
		Items: []*models.NewPurchaseItem{
			{ItemName: "Flour", QuantityPurchased: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(4)},
		},
	})
	if err != nil {
		t.Fatalf("CreateMarketPurchase(batch 2): %v", err)
	}

	db := config.GetDB()
	var flour models.InventoryItem
	if err := db.WithContext(ctx).Where("item_name = ?", "Flour").First(&flour).Error; err != nil {
		t.Fatalf("fetch flour: %v", err)
	}
	if flour.TotalQuantity.Cmp(decimal.NewFromInt(20)) != 0 {
		t.Fatalf("flour total = %s, want 20", flour.TotalQuantity)
	}
	if flour.CostPerUnit.Cmp(decimal.NewFromInt(3)) != 0 {
		t.Fatalf("flour cost = %s, want 3", flour.CostPerUnit)
	}
	if flour.RemainingQuantity.Cmp(decimal.NewFromInt(20)) != 0 {
		t.Fatalf("flour remaining = %s, want 20", flour.RemainingQuantity)
	}

	// Consume 5 units: cost 15, expected profit 4.5 at the default margin.
	usage, err := models.CreateInventoryUsage(ctx, &models.NewInventoryUsage{
		InventoryItemId: flour.ID,
		QuantityUsed:    decimal.NewFromInt(5),
		UsageDate:       time.Date(2026, 2, 4, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateInventoryUsage: %v", err)
	}
	if usage.CostUsed.Cmp(decimal.NewFromInt(15)) != 0 {
		t.Fatalf("usage cost = %s, want 15", usage.CostUsed)
	}
	if usage.ExpectedProfit.Cmp(decimal.NewFromFloat(4.5)) != 0 {
		t.Fatalf("usage expected profit = %s, want 4.5", usage.ExpectedProfit)
	}

	// A second usage larger than what is left must be rejected without
	// touching the stock.
	_, err = models.CreateInventoryUsage(ctx, &models.NewInventoryUsage{
		InventoryItemId: flour.ID,
		QuantityUsed:    decimal.NewFromInt(100),
		UsageDate:       time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC),
	})
	if !utils.IsInsufficientInventoryError(err) {
		t.Fatalf("over-consumption error = %v, want InsufficientInventoryError", err)
	}
	if err := db.WithContext(ctx).Where("item_name = ?", "Flour").First(&flour).Error; err != nil {
		t.Fatalf("re-fetch flour: %v", err)
	}
	if flour.RemainingQuantity.Cmp(decimal.NewFromInt(15)) != 0 {
		t.Fatalf("flour remaining after rejected usage = %s, want 15", flour.RemainingQuantity)
	}

	sale, err := models.CreateDailySale(ctx, &models.NewDailySale{
		ItemName:     "Croissant",
		QuantitySold: decimal.NewFromInt(40),
		UnitPrice:    decimal.NewFromFloat(2.5),
		SaleDate:     time.Date(2026, 2, 4, 18, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateDailySale: %v", err)
	}

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	summary, err := models.GetProfitLossSummary(ctx, start, end)
	if err != nil {
		t.Fatalf("GetProfitLossSummary: %v", err)
	}
	// revenue 100, expenses 20+40, cost used 15, expected profit 4.5
	if summary.TotalRevenue.Cmp(decimal.NewFromInt(100)) != 0 {
		t.Fatalf("revenue = %s, want 100", summary.TotalRevenue)
	}
	if summary.TotalExpenses.Cmp(decimal.NewFromInt(60)) != 0 {
		t.Fatalf("expenses = %s, want 60", summary.TotalExpenses)
	}
	if summary.NetProfit.Cmp(decimal.NewFromFloat(29.5)) != 0 {
		t.Fatalf("net profit = %s, want 29.5", summary.NetProfit)
	}

	dashboard, err := models.GetDashboardSummary(ctx, start, end)
	if err != nil {
		t.Fatalf("GetDashboardSummary: %v", err)
	}
	if dashboard.Balance.Cmp(decimal.NewFromInt(25)) != 0 {
		t.Fatalf("balance = %s, want 25", dashboard.Balance)
	}

	// A deleted sale drops out of later summaries for its range.
	if _, err := models.DeleteDailySale(ctx, sale.ID); err != nil {
		t.Fatalf("DeleteDailySale: %v", err)
	}
	afterDelete, err := models.GetProfitLossSummary(ctx, start, end)
	if err != nil {
		t.Fatalf("GetProfitLossSummary(after delete): %v", err)
	}
	if !afterDelete.TotalRevenue.IsZero() {
		t.Fatalf("revenue after delete = %s, want 0", afterDelete.TotalRevenue)
	}
	if afterDelete.NetProfit.Cmp(decimal.NewFromFloat(-70.5)) != 0 {
		t.Fatalf("net profit after delete = %s, want -70.5", afterDelete.NetProfit)
	}
}

// Three failed logins from the same client raise a high-severity alert, and
// resolving it twice is a no-op the second time.
func TestFailedLoginBurstRaisesAndResolvesAlert(t *testing.T) {
	ctx := setupIntegration(t)
	ctx = utils.SetClientIpInContext(ctx, "203.0.113.9")
	ctx = utils.SetUserAgentInContext(ctx, "integration-test")

	for i := 0; i < 3; i++ {
		_, err := models.LogActivity(ctx, &models.NewActivityLog{
			Username:  "ghost",
			Action:    models.ActionFailedLogin,
			Details:   "Invalid password",
			RiskLevel: models.RiskLevelMedium,
		})
		if err != nil {
			t.Fatalf("LogActivity(%d): %v", i, err)
		}
	}

	alerts, err := models.GetFraudAlerts(ctx, true)
	if err != nil {
		t.Fatalf("GetFraudAlerts: %v", err)
	}
	var alert *models.FraudAlert
	for _, a := range alerts {
		if a.AlertType == models.AlertTypeRepeatedFailedLogin {
			alert = a
			break
		}
	}
	if alert == nil {
		t.Fatalf("no repeated-failed-login alert after 3 failures; alerts = %v", alerts)
	}
	if alert.Severity != models.RiskLevelHigh {
		t.Fatalf("severity = %q, want high", alert.Severity)
	}
	if alert.ClientIp != "203.0.113.9" {
		t.Fatalf("alert client ip = %q", alert.ClientIp)
	}

	resolved, err := models.ResolveFraudAlert(ctx, alert.ID, "admin")
	if err != nil {
		t.Fatalf("ResolveFraudAlert: %v", err)
	}
	if !utils.DereferencePtr(resolved.Resolved, false) || resolved.ResolvedBy != "admin" {
		t.Fatalf("alert not resolved: %+v", resolved)
	}
	firstResolvedAt := resolved.ResolvedAt

	again, err := models.ResolveFraudAlert(ctx, alert.ID, "someone-else")
	if err != nil {
		t.Fatalf("ResolveFraudAlert(again): %v", err)
	}
	if again.ResolvedBy != "admin" {
		t.Fatalf("re-resolve must keep the original resolver, got %q", again.ResolvedBy)
	}
	if again.ResolvedAt == nil || !again.ResolvedAt.Equal(*firstResolvedAt) {
		t.Fatalf("re-resolve must keep the original timestamp")
	}
}

// setupIntegration starts throwaway MySQL + redis containers, wires the
// config env, connects, and migrates a fresh schema.
func setupIntegration(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "bakery_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUsernameInContext(ctx, "test@local")
	ctx = utils.SetUserNameInContext(ctx, "Test")
	return ctx
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("bakery-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("bakery-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=bakery_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
