package health

import (
	"context"
	"testing"
)

func TestExecChecker_SuccessfulCommand(t *testing.T) {
	checker := NewExecChecker([]string{"true"})

	result := checker.Check(context.Background())
	if !result.Healthy {
		t.Errorf("expected healthy, got unhealthy: %s", result.Message)
	}
}

func TestExecChecker_FailingCommand(t *testing.T) {
	checker := NewExecChecker([]string{"false"})

	result := checker.Check(context.Background())
	if result.Healthy {
		t.Errorf("expected unhealthy, got healthy: %s", result.Message)
	}
}

func TestExecChecker_NoCommand(t *testing.T) {
	checker := NewExecChecker(nil)

	result := checker.Check(context.Background())
	if result.Healthy {
		t.Error("expected unhealthy when no command is configured")
	}
}

func TestExecChecker_Type(t *testing.T) {
	checker := NewExecChecker([]string{"true"})
	if checker.Type() != CheckTypeExec {
		t.Errorf("expected type %s, got %s", CheckTypeExec, checker.Type())
	}
}
