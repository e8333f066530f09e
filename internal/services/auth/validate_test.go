package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmony-app/harmony-backend/internal/federated"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "trims and lowercases", in: "  User@Example.COM ", want: "user@example.com"},
		{name: "empty", in: "   ", wantErr: true},
		{name: "no at sign", in: "userexample.com", wantErr: true},
		{name: "no domain dot", in: "user@localhost", wantErr: true},
		{name: "embedded space", in: "us er@example.com", wantErr: true},
		{name: "control character", in: "user\x00@example.com", wantErr: true},
		{name: "too long", in: strings.Repeat("a", 250) + "@example.com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeEmail(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "collapses whitespace", in: "  Ivan\t\n Petrov  ", want: "Ivan Petrov"},
		{name: "empty", in: "   ", want: ""},
		{name: "caps length", in: strings.Repeat("я", 60), want: strings.Repeat("я", 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeName(tt.in))
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.Error(t, validatePassword("1234567"))
	assert.NoError(t, validatePassword("12345678"))
	assert.NoError(t, validatePassword(strings.Repeat("p", 128)))
	assert.Error(t, validatePassword(strings.Repeat("p", 129)))
}

func TestFederatedName(t *testing.T) {
	t.Run("uses provider name", func(t *testing.T) {
		got := federatedName(&federated.Identity{Name: " Anna  Karenina "}, "anna@example.com")
		assert.Equal(t, "Anna Karenina", got)
	})

	t.Run("falls back to local part", func(t *testing.T) {
		got := federatedName(&federated.Identity{}, "anna.k@example.com")
		assert.Equal(t, "anna.k", got)
	})

	t.Run("caps long names", func(t *testing.T) {
		got := federatedName(&federated.Identity{Name: strings.Repeat("a", 100)}, "a@example.com")
		assert.Len(t, []rune(got), 80)
	})
}
