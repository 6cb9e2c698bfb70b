package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ops_gateway/internal/config"
	"ops_gateway/internal/models"
	"ops_gateway/internal/utils"
)

// mockAdminStore for testing
type mockAdminStore struct {
	users map[string]*models.AdminUser
}

func newMockAdminStore() *mockAdminStore {
	return &mockAdminStore{users: make(map[string]*models.AdminUser)}
}

func (m *mockAdminStore) GetAdminUserByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	if user, ok := m.users[email]; ok {
		return user, nil
	}
	return nil, errors.New("admin user not found")
}

func (m *mockAdminStore) UpdateAdminUserLastLogin(ctx context.Context, id uuid.UUID) error {
	return nil
}

func getTestConfig() *config.Config {
	return &config.Config{
		JWTSecret: []byte("test-secret-key-for-testing"),
	}
}

func seedAdminUser(t *testing.T, store *mockAdminStore, password string, enabled bool) *models.AdminUser {
	t.Helper()

	passwordHash, err := utils.HashPasswordArgon2(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.AdminUser{
		ID:           uuid.New(),
		Email:        "admin@example.com",
		PasswordHash: passwordHash,
		Roles:        pq.StringArray{"admin", "viewer"},
		Enabled:      enabled,
	}
	store.users[user.Email] = user
	return user
}

func TestGenerateAdminJWTWithPassword(t *testing.T) {
	cfg := getTestConfig()
	ctx := context.Background()
	store := newMockAdminStore()
	password := "admin-password-123"
	user := seedAdminUser(t, store, password, true)

	t.Run("valid credentials", func(t *testing.T) {
		token, expTime, err := GenerateAdminJWTWithPassword(ctx, user.Email, password, store, cfg)
		if err != nil {
			t.Fatalf("GenerateAdminJWTWithPassword() error = %v", err)
		}
		if token == "" {
			t.Error("GenerateAdminJWTWithPassword() returned empty token")
		}
		if expTime <= time.Now().Unix() {
			t.Error("GenerateAdminJWTWithPassword() expiration time is in the past")
		}

		claims, err := ValidateAdminJWT(token, cfg)
		if err != nil {
			t.Fatalf("ValidateAdminJWT() error = %v", err)
		}
		if claims.AdminID != user.ID.String() {
			t.Errorf("AdminID = %s, want %s", claims.AdminID, user.ID)
		}
		if claims.Email != user.Email {
			t.Errorf("Email = %s, want %s", claims.Email, user.Email)
		}
		if len(claims.Roles) != 2 {
			t.Errorf("Roles = %v, want 2 roles", claims.Roles)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := GenerateAdminJWTWithPassword(ctx, user.Email, "wrong-password", store, cfg)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := GenerateAdminJWTWithPassword(ctx, "nobody@example.com", password, store, cfg)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("disabled user", func(t *testing.T) {
		disabledStore := newMockAdminStore()
		disabledUser := seedAdminUser(t, disabledStore, password, false)
		_, _, err := GenerateAdminJWTWithPassword(ctx, disabledUser.Email, password, disabledStore, cfg)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("error = %v, want ErrInvalidCredentials", err)
		}
	})
}

func TestValidateAdminJWT(t *testing.T) {
	cfg := getTestConfig()
	ctx := context.Background()
	store := newMockAdminStore()
	password := "admin-password-123"
	user := seedAdminUser(t, store, password, true)

	token, _, err := GenerateAdminJWTWithPassword(ctx, user.Email, password, store, cfg)
	if err != nil {
		t.Fatalf("GenerateAdminJWTWithPassword() error = %v", err)
	}

	t.Run("wrong secret is rejected", func(t *testing.T) {
		otherCfg := &config.Config{JWTSecret: []byte("a-different-secret")}
		if _, err := ValidateAdminJWT(token, otherCfg); err == nil {
			t.Error("ValidateAdminJWT() accepted token signed with different secret")
		}
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		if _, err := ValidateAdminJWT("not-a-jwt", cfg); err == nil {
			t.Error("ValidateAdminJWT() accepted malformed token")
		}
	})
}

func TestAPIKeyRecord_AllowsAction(t *testing.T) {
	tests := []struct {
		name           string
		allowedActions []string
		testAction     string
		expected       bool
	}{
		{
			name:           "empty allowed actions allows all",
			allowedActions: []string{},
			testAction:     "deploy",
			expected:       true,
		},
		{
			name:           "nil allowed actions allows all",
			allowedActions: nil,
			testAction:     "code_review",
			expected:       true,
		},
		{
			name:           "action in allowed list",
			allowedActions: []string{"deploy", "rollback"},
			testAction:     "rollback",
			expected:       true,
		},
		{
			name:           "action not in allowed list",
			allowedActions: []string{"deploy"},
			testAction:     "security_scan",
			expected:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := &APIKeyRecord{
				ID:             "test-id",
				Name:           "Test Key",
				AllowedActions: tt.allowedActions,
			}

			result := key.AllowsAction(tt.testAction)
			if result != tt.expected {
				t.Errorf("AllowsAction(%q) = %v, want %v", tt.testAction, result, tt.expected)
			}
		})
	}
}

func TestInMemoryAPIKeyStore_Lookup(t *testing.T) {
	store := NewInMemoryAPIKeyStore()
	ctx := context.Background()

	t.Run("valid demo key", func(t *testing.T) {
		record, err := store.Lookup(ctx, "demo-key")
		if err != nil {
			t.Fatalf("Lookup() error = %v, want nil", err)
		}
		if record == nil {
			t.Fatal("Lookup() returned nil record")
		}
		if record.ID != "demo-key-id" {
			t.Errorf("Lookup() ID = %v, want demo-key-id", record.ID)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := store.Lookup(ctx, "nope")
		if !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Lookup() error = %v, want ErrKeyNotFound", err)
		}
	})
}
