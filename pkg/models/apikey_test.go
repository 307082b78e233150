package models

import (
	"testing"
	"time"
)

func TestAPIKey_IsUsable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		key  APIKey
		want bool
	}{
		{"active without expiry", APIKey{IsActive: true}, true},
		{"active before expiry", APIKey{IsActive: true, ExpiresAt: &future}, true},
		{"expired", APIKey{IsActive: true, ExpiresAt: &past}, false},
		{"revoked", APIKey{IsActive: false}, false},
		{"revoked and expired", APIKey{IsActive: false, ExpiresAt: &past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.IsUsable(now); got != tt.want {
				t.Errorf("IsUsable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValidRoleAndModule(t *testing.T) {
	if !IsValidRole(RoleUser) || !IsValidRole(RoleAssistant) {
		t.Error("built-in roles should be valid")
	}
	if IsValidRole("system") {
		t.Error("system is not a stored role")
	}

	for _, m := range []string{ModuleGrammar, ModuleQA, ModuleReformulation, ModuleGeneral} {
		if !IsValidModuleType(m) {
			t.Errorf("module %q should be valid", m)
		}
	}
	if IsValidModuleType("traduction") {
		t.Error("unknown module accepted")
	}
}
