package secret

import (
	"errors"
	"testing"
)

func TestExpandString(t *testing.T) {
	vars := map[string]string{"VAULT_ADDR": "https://vault", "EMPTY": ""}
	lookup := func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${VAULT_ADDR}/v1", "https://vault/v1"},
		{"${NOPE:-http://localhost}", "http://localhost"},
		{"${EMPTY:-fallback}", "fallback"},
		{"${EMPTY}", ""},
		{"$$${VAULT_ADDR}", "$https://vault"},
		{"$2a$10$hash", "$2a$10$hash"},
		{"unterminated ${VAULT_ADDR", "unterminated ${VAULT_ADDR"},
		{"trailing $", "trailing $"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExpandString(tt.in, lookup)
			if err != nil {
				t.Fatalf("ExpandString() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExpandString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandString_ReportsEveryMissingVariable(t *testing.T) {
	_, err := ExpandString("${B} ${A} ${B}", func(string) (string, bool) { return "", false })
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("error = %v, want ErrMissingEnv", err)
	}
	if got, want := err.Error(), "secret: missing environment variable: A, B"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestExpandString_DefaultsToProcessEnvironment(t *testing.T) {
	t.Setenv("SECRETOPS_TEST_TOKEN", "s.abc")
	got, err := ExpandString("${SECRETOPS_TEST_TOKEN}", nil)
	if err != nil || got != "s.abc" {
		t.Fatalf("ExpandString() = %q, %v", got, err)
	}
}
