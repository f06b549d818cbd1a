package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := Validationf("bad sender %q", "nobody")

	assert.True(t, Is(err, ErrValidation))
	assert.False(t, Is(err, ErrNotFound))
	assert.Equal(t, `bad sender "nobody"`, err.Error())
}

func TestError_WrapKeepsCause(t *testing.T) {
	err := Wrap(io.ErrUnexpectedEOF, CodeUnresolvable, "lookup failed")

	assert.True(t, Is(err, ErrUnresolvable))
	assert.True(t, Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, "lookup failed: unexpected EOF", err.Error())
}

func TestError_WithDetails(t *testing.T) {
	base := Validation("validation failed")
	detailed := base.WithDetails(map[string]string{"sender": "is required"})

	assert.Nil(t, base.Details)
	assert.Equal(t, map[string]string{"sender": "is required"}, detailed.Details)
	assert.True(t, Is(detailed, ErrValidation))
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"domain error", Configurationf("missing %s", "catalog"), CodeConfiguration},
		{"wrapped domain error", fmt.Errorf("load: %w", NotFound("gone")), CodeNotFound},
		{"plain error", io.EOF, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestCode_ExitCode(t *testing.T) {
	assert.Equal(t, 2, CodeValidation.ExitCode())
	assert.Equal(t, 78, CodeConfiguration.ExitCode())
	assert.Equal(t, 1, CodeInternal.ExitCode())
}
