// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/rolestage/internal/config"
)

const testSecret = "this_is_a_very_long_secret_key_for_testing_purposes_12345"

// newTestJWTManager creates a manager with a one hour session timeout.
func newTestJWTManager(t *testing.T) *JWTManager {
	t.Helper()
	manager, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      testSecret,
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	return manager
}

func TestNewJWTManager(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.SecurityConfig
		wantErr bool
	}{
		{
			name: "valid secret",
			cfg: &config.SecurityConfig{
				JWTSecret:      "this_is_a_very_long_secret_key_with_32_plus_characters",
				SessionTimeout: 24 * time.Hour,
			},
		},
		{
			name:    "empty secret",
			cfg:     &config.SecurityConfig{SessionTimeout: 24 * time.Hour},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, err := NewJWTManager(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("NewJWTManager() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("NewJWTManager() unexpected error = %v", err)
				return
			}
			if manager == nil {
				t.Error("NewJWTManager() returned nil manager")
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	manager := newTestJWTManager(t)

	for _, userID := range []string{"user-1", "9f0c6a52-6a1e-4a4b-9d0f-1b8f5a0a3e11"} {
		t.Run(userID, func(t *testing.T) {
			token, err := manager.GenerateToken(userID)
			if err != nil {
				t.Fatalf("GenerateToken() error = %v", err)
			}
			if strings.Count(token, ".") != 2 {
				t.Errorf("token %q is not a compact JWS", token)
			}

			claims, err := manager.ValidateToken(token)
			if err != nil {
				t.Fatalf("ValidateToken() error = %v", err)
			}
			if claims.UserID() != userID {
				t.Errorf("UserID() = %q, want %q", claims.UserID(), userID)
			}
		})
	}
}

func TestGenerateToken_EmptyUser(t *testing.T) {
	manager := newTestJWTManager(t)
	if _, err := manager.GenerateToken(""); !errors.Is(err, ErrMissingSubject) {
		t.Errorf("GenerateToken(\"\") error = %v, want ErrMissingSubject", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	manager := newTestJWTManager(t)
	issued := time.Now().Add(-2 * time.Hour)
	manager.now = func() time.Time { return issued }

	token, err := manager.GenerateToken("user-1")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	manager.now = time.Now
	if _, err := manager.ValidateToken(token); err == nil {
		t.Error("ValidateToken() accepted an expired token")
	}
}

func TestValidateToken_Rejections(t *testing.T) {
	manager := newTestJWTManager(t)

	otherManager, _ := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "a_completely_different_secret_of_sufficient_length",
		SessionTimeout: time.Hour,
	})
	foreign, _ := otherManager.GenerateToken("user-1")

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(testSecret))

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"malformed", "not.a.token"},
		{"empty", ""},
		{"wrong secret", foreign},
		{"no subject", noSubject},
		{"alg none", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := manager.ValidateToken(tt.token); err == nil {
				t.Error("ValidateToken() expected error, got nil")
			}
		})
	}
}
