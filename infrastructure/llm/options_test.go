package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tourney/internal/ports"
)

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "https://api.example.com/v1", want: "https://api.example.com/v1"},
		{in: "http://localhost:8080", want: "http://localhost:8080"},
		{in: "ftp://example.com", wantErr: true},
		{in: "https://", wantErr: true},
		{in: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ValidateBaseURL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateTimeout(t *testing.T) {
	assert.Equal(t, MinTimeout, ValidateTimeout(time.Millisecond))
	assert.Equal(t, 30*time.Second, ValidateTimeout(30*time.Second))
	assert.Equal(t, MaxTimeout, ValidateTimeout(time.Hour))
}

func TestResolveRequest(t *testing.T) {
	hot := 5.0
	opts := resolveRequest(ports.CompletionRequest{Prompt: "p", System: "s", Temperature: &hot}, "default-model")

	assert.Equal(t, "default-model", opts.model)
	assert.Equal(t, DefaultMaxTokens, opts.maxTokens)
	require.NotNil(t, opts.temperature)
	assert.Equal(t, MaxTemperature, *opts.temperature)
	assert.Equal(t, 5.0, hot, "caller's value is not modified")

	opts = resolveRequest(ports.CompletionRequest{Prompt: "p", Model: "m", MaxTokens: 7}, "default-model")
	assert.Equal(t, "m", opts.model)
	assert.Equal(t, 7, opts.maxTokens)
	assert.Nil(t, opts.temperature)
}

func TestTokenCount(t *testing.T) {
	assert.Equal(t, 42, tokenCount(42, "ignored"))
	assert.Equal(t, 2, tokenCount(0, "12345678"))
}
