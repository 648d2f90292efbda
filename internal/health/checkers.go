package health

import (
	"context"
	"time"

	"github.com/dop251/goja"
)

// InterpreterHealthChecker verifies the goja JS engine this system embeds
// in every session can still compile and run a trivial statement. It holds
// no reference to any live session's interpreter — spinning up a throwaway
// goja.Runtime is the cheapest probe that still exercises the same engine
// every interaction loop depends on.
type InterpreterHealthChecker struct {
	timeout time.Duration
}

// NewInterpreterHealthChecker creates an interpreter readiness checker.
func NewInterpreterHealthChecker() *InterpreterHealthChecker {
	return &InterpreterHealthChecker{timeout: 2 * time.Second}
}

func (c *InterpreterHealthChecker) Name() string           { return "interpreter" }
func (c *InterpreterHealthChecker) IsCritical() bool       { return true }
func (c *InterpreterHealthChecker) Timeout() time.Duration { return c.timeout }

func (c *InterpreterHealthChecker) Check(ctx context.Context) CheckResult {
	startTime := time.Now()
	result := CheckResult{
		Component: "interpreter",
		Critical:  true,
		Timestamp: startTime,
	}

	vm := goja.New()
	v, err := vm.RunString("1 + 1")
	result.Duration = time.Since(startTime)

	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "goja engine failed to run a trivial statement"
		return result
	}
	if v.ToInteger() != 2 {
		result.Status = StatusUnhealthy
		result.Message = "goja engine produced an unexpected result"
		result.Details = map[string]interface{}{"got": v.String()}
		return result
	}

	result.Status = StatusHealthy
	result.Message = "interpreter engine healthy"
	result.Details = map[string]interface{}{"latency_ms": result.Duration.Milliseconds()}
	return result
}

// ProviderConfigHealthChecker verifies an LLM provider model and API key are
// configured. It holds no live network connection to the provider — per
// spec §1's "no health-check ping to the provider" stance, this only
// confirms the configuration an interaction loop needs to start a chat
// client is present, not that the provider is currently reachable.
type ProviderConfigHealthChecker struct {
	model   func() string
	apiKey  func() string
	timeout time.Duration
}

// NewProviderConfigHealthChecker creates a provider-config presence
// checker. model and apiKey are read lazily so a config reload is
// reflected without re-registering the checker.
func NewProviderConfigHealthChecker(model, apiKey func() string) *ProviderConfigHealthChecker {
	return &ProviderConfigHealthChecker{model: model, apiKey: apiKey, timeout: time.Second}
}

func (c *ProviderConfigHealthChecker) Name() string           { return "provider_config" }
func (c *ProviderConfigHealthChecker) IsCritical() bool       { return true }
func (c *ProviderConfigHealthChecker) Timeout() time.Duration { return c.timeout }

func (c *ProviderConfigHealthChecker) Check(ctx context.Context) CheckResult {
	startTime := time.Now()
	result := CheckResult{
		Component: "provider_config",
		Critical:  true,
		Timestamp: startTime,
	}

	model := c.model()
	apiKey := c.apiKey()
	result.Duration = time.Since(startTime)

	switch {
	case model == "":
		result.Status = StatusUnhealthy
		result.Message = "no provider model configured"
	case apiKey == "":
		result.Status = StatusUnhealthy
		result.Message = "no provider API key configured"
	default:
		result.Status = StatusHealthy
		result.Message = "provider configured"
		result.Details = map[string]interface{}{"model": model}
	}

	return result
}

// CustomHealthChecker allows for custom health check logic
type CustomHealthChecker struct {
	name     string
	critical bool
	timeout  time.Duration
	checkFn  func(ctx context.Context) CheckResult
}

// NewCustomHealthChecker creates a custom health checker
func NewCustomHealthChecker(name string, critical bool, timeout time.Duration, checkFn func(ctx context.Context) CheckResult) *CustomHealthChecker {
	return &CustomHealthChecker{
		name:     name,
		critical: critical,
		timeout:  timeout,
		checkFn:  checkFn,
	}
}

func (c *CustomHealthChecker) Name() string           { return c.name }
func (c *CustomHealthChecker) IsCritical() bool       { return c.critical }
func (c *CustomHealthChecker) Timeout() time.Duration { return c.timeout }

func (c *CustomHealthChecker) Check(ctx context.Context) CheckResult {
	return c.checkFn(ctx)
}
