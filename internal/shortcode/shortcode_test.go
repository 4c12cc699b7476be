package shortcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCustom(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{name: "empty", code: "", wantErr: true},
		{name: "too short", code: "ab", wantErr: true},
		{name: "too long", code: strings.Repeat("a", 21), wantErr: true},
		{name: "hyphen", code: "my-code", wantErr: true},
		{name: "underscore", code: "my_code", wantErr: true},
		{name: "space", code: "my code", wantErr: true},
		{name: "unicode", code: "códe", wantErr: true},
		{name: "minimum length", code: "abc"},
		{name: "maximum length", code: strings.Repeat("a", 20)},
		{name: "mixed case and digits", code: "Promo2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCustom(tt.code)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCustomCode)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestGenerate(t *testing.T) {
	t.Run("respects length", func(t *testing.T) {
		for _, length := range []int{3, 6, 10, 20} {
			code, err := Generate(length)

			assert.NoError(t, err)
			assert.Len(t, code, length)
		}
	})

	t.Run("falls back to default length", func(t *testing.T) {
		code, err := Generate(0)

		assert.NoError(t, err)
		assert.Len(t, code, DefaultLength)
	})

	t.Run("uses only the alphanumeric alphabet", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			code, err := Generate(8)

			assert.NoError(t, err)
			for _, r := range code {
				assert.Contains(t, Alphabet, string(r))
			}
		}
	})

	t.Run("generated codes pass custom validation", func(t *testing.T) {
		code, err := Generate(6)

		assert.NoError(t, err)
		assert.NoError(t, ValidateCustom(code))
	})

	t.Run("codes are not repeated in a small sample", func(t *testing.T) {
		seen := make(map[string]struct{}, 1000)

		for i := 0; i < 1000; i++ {
			code, err := Generate(10)

			assert.NoError(t, err)
			_, dup := seen[code]
			assert.False(t, dup, "duplicate code %q", code)
			seen[code] = struct{}{}
		}
	})
}
