// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package authz

import (
	"os"
	"path/filepath"
	"testing"
)

// setupEnforcer creates an enforcer with the embedded policy and registers cleanup.
func setupEnforcer(t *testing.T, cfg EnforcerConfig) *Enforcer {
	t.Helper()
	enforcer, err := NewEnforcer(cfg)
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	t.Cleanup(enforcer.Close)
	return enforcer
}

func TestEnforcer_EmbeddedPolicy(t *testing.T) {
	enforcer := setupEnforcer(t, EnforcerConfig{})

	tests := []struct {
		role string
		want bool
	}{
		{"owner", true},
		{"gm", true},
		{"player", true},
		{"viewer", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			got, err := enforcer.CanSubscribe(tt.role)
			if err != nil {
				t.Fatalf("CanSubscribe error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CanSubscribe(%q) = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestEnforcer_UnknownActionDenied(t *testing.T) {
	enforcer := setupEnforcer(t, EnforcerConfig{})
	allowed, err := enforcer.Enforce("owner", ObjectRealtime, "delete")
	if err != nil {
		t.Fatalf("Enforce error = %v", err)
	}
	if allowed {
		t.Error("owner allowed an action no policy grants")
	}
}

func TestEnforcer_PolicyFile(t *testing.T) {
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.csv")
	policy := "g, owner, gm\np, gm, realtime, subscribe\n"
	if err := os.WriteFile(policyPath, []byte(policy), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	enforcer := setupEnforcer(t, EnforcerConfig{PolicyPath: policyPath})

	if ok, _ := enforcer.CanSubscribe("owner"); !ok {
		t.Error("owner should inherit gm subscribe")
	}
	if ok, _ := enforcer.CanSubscribe("player"); ok {
		t.Error("player should be denied by the file policy")
	}
}

func TestEnforcer_MissingPolicyFileFallsBack(t *testing.T) {
	enforcer := setupEnforcer(t, EnforcerConfig{PolicyPath: filepath.Join(t.TempDir(), "absent.csv")})
	if ok, _ := enforcer.CanSubscribe("player"); !ok {
		t.Error("expected embedded policy when the policy file is missing")
	}
}

func TestLoadEmbeddedPolicy_Malformed(t *testing.T) {
	enforcer := setupEnforcer(t, EnforcerConfig{})
	if err := loadEmbeddedPolicy(enforcer.enforcer, "p, player, realtime\n"); err == nil {
		t.Error("expected error for short policy line")
	}
}
