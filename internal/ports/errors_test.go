package ports

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJudgeError(t *testing.T) {
	err := NewJudgeError("gpt-4o", ErrBudgetExceeded)

	assert.Equal(t, "judge error: judge=gpt-4o, err=judge budget exceeded", err.Error())
	assert.True(t, errors.Is(err, ErrBudgetExceeded))
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("judge.provider", ErrConfigNotFound)

	assert.Equal(t, "config error: key=judge.provider, err=configuration not found", err.Error())
	assert.Equal(t, "judge.provider", err.ConfigKey)
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}
