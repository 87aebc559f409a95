package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
)

func TestValidate(t *testing.T) {
	v := NewValidator([]string{"sk-alpha", "sk-beta", " ", ""})

	if v.KeyCount() != 2 {
		t.Fatalf("key count = %d, want 2", v.KeyCount())
	}

	idAlpha, err := v.Validate("sk-alpha")
	if err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
	idBeta, err := v.Validate("sk-beta")
	if err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
	if idAlpha == idBeta {
		t.Error("distinct keys share a key id")
	}
	if idAlpha == "sk-alpha" {
		t.Error("key id leaks the clear key")
	}

	for _, bad := range []string{"", "sk-gamma", "sk-alpha "} {
		if _, err := v.Validate(bad); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Validate(%q) err = %v, want ErrInvalidKey", bad, err)
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"plain", "Bearer sk-alpha", "sk-alpha"},
		{"case insensitive scheme", "bearer sk-alpha", "sk-alpha"},
		{"missing", "", ""},
		{"wrong scheme", "Basic dXNlcg==", ""},
		{"bare scheme", "Bearer ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := BearerToken(r); got != tt.want {
				t.Errorf("BearerToken = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyIDContext(t *testing.T) {
	ctx := WithKeyID(context.Background(), "abc123")
	if got := KeyIDFromContext(ctx); got != "abc123" {
		t.Errorf("key id = %q", got)
	}
	if got := KeyIDFromContext(context.Background()); got != "" {
		t.Errorf("unauthenticated key id = %q, want empty", got)
	}
}
