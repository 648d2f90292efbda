package health

import (
	"context"
	"testing"
)

func TestInterpreterHealthCheckerReportsHealthy(t *testing.T) {
	c := NewInterpreterHealthChecker()
	result := c.Check(context.Background())

	if result.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s (%s)", result.Status, result.Message)
	}
	if !c.IsCritical() {
		t.Error("interpreter checker should be critical")
	}
}

func TestProviderConfigHealthCheckerReportsUnhealthyWithoutModel(t *testing.T) {
	c := NewProviderConfigHealthChecker(func() string { return "" }, func() string { return "key" })
	result := c.Check(context.Background())

	if result.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", result.Status)
	}
}

func TestProviderConfigHealthCheckerReportsUnhealthyWithoutAPIKey(t *testing.T) {
	c := NewProviderConfigHealthChecker(func() string { return "claude-sonnet-4-5" }, func() string { return "" })
	result := c.Check(context.Background())

	if result.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", result.Status)
	}
}

func TestProviderConfigHealthCheckerReportsHealthyWhenConfigured(t *testing.T) {
	c := NewProviderConfigHealthChecker(func() string { return "claude-sonnet-4-5" }, func() string { return "key" })
	result := c.Check(context.Background())

	if result.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", result.Status)
	}
}

func TestCustomHealthCheckerDelegatesToFn(t *testing.T) {
	c := NewCustomHealthChecker("widget", false, 0, func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusDegraded}
	})
	result := c.Check(context.Background())
	if result.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", result.Status)
	}
	if c.IsCritical() {
		t.Error("widget checker should not be critical")
	}
}
