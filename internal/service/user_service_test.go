package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"shopfront/internal/domain"
	"shopfront/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type mockRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{
		tokens: make(map[string]*domain.RefreshToken),
	}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	refreshToken, exists := m.tokens[token]
	if !exists || refreshToken.Revoked {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func newTestUserService() (UserService, *mockUserRepository, *mockRefreshTokenRepository) {
	userRepo := newMockUserRepository()
	refreshTokenRepo := newMockRefreshTokenRepository()
	svc := NewUserService(userRepo, refreshTokenRepo, TokenSettings{Secret: "test-secret-key"})
	return svc, userRepo, refreshTokenRepo
}

// bcrypt dominates the run time, so fewer cases are generated
func bcryptParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	return parameters
}

func TestProperty_RegistrationHashesPasswords(t *testing.T) {
	properties := gopter.NewProperties(bcryptParameters())

	properties.Property("passwords are stored as bcrypt hashes", prop.ForAll(
		func(email string, password string, firstName string, lastName string) bool {
			svc, userRepo, _ := newTestUserService()
			ctx := context.Background()

			user, err := svc.Register(ctx, email, password, firstName, lastName, "")
			if err != nil {
				t.Logf("FAIL: Register returned error: %v", err)
				return false
			}

			if user.PasswordHash == password {
				t.Logf("FAIL: Password stored as plaintext for email %s", email)
				return false
			}

			if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
				t.Logf("FAIL: Hash does not match password: %v", err)
				return false
			}

			stored, err := userRepo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("FAIL: Could not find stored user: %v", err)
				return false
			}

			return stored.PasswordHash == user.PasswordHash && stored.Role == domain.RoleBuyer
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_AccessTokensCarryIdentity(t *testing.T) {
	properties := gopter.NewProperties(bcryptParameters())

	properties.Property("access tokens contain user id and role claims", prop.ForAll(
		func(email string, password string, role string) bool {
			svc, _, _ := newTestUserService()
			ctx := context.Background()

			user, err := svc.Register(ctx, email, password, "", "", role)
			if err != nil {
				t.Logf("FAIL: Register failed: %v", err)
				return false
			}

			pair, _, err := svc.Login(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: Login failed: %v", err)
				return false
			}

			claims, err := svc.ValidateToken(pair.AccessToken)
			if err != nil {
				t.Logf("FAIL: Token validation failed: %v", err)
				return false
			}

			if claims.UserID != user.ID || claims.Role != role {
				t.Logf("FAIL: Claims mismatch. Expected %s/%s, got %s/%s", user.ID, role, claims.UserID, claims.Role)
				return false
			}

			return claims.ExpiresAt != nil && claims.IssuedAt != nil
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.OneConstOf(domain.RoleBuyer, domain.RoleSeller),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_RefreshRotatesToken(t *testing.T) {
	properties := gopter.NewProperties(bcryptParameters())

	properties.Property("refresh returns a valid pair and retires the old refresh token", prop.ForAll(
		func(email string, password string) bool {
			svc, _, _ := newTestUserService()
			ctx := context.Background()

			if _, err := svc.Register(ctx, email, password, "", "", domain.RoleBuyer); err != nil {
				t.Logf("FAIL: Register failed: %v", err)
				return false
			}

			pair, user, err := svc.Login(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: Login failed: %v", err)
				return false
			}

			next, err := svc.Refresh(ctx, pair.RefreshToken)
			if err != nil {
				t.Logf("FAIL: Refresh failed: %v", err)
				return false
			}

			claims, err := svc.ValidateToken(next.AccessToken)
			if err != nil || claims.UserID != user.ID {
				t.Logf("FAIL: Refreshed access token invalid: %v", err)
				return false
			}

			if next.RefreshToken == pair.RefreshToken {
				t.Logf("FAIL: Refresh token was not rotated")
				return false
			}

			if _, err := svc.Refresh(ctx, pair.RefreshToken); err != ErrInvalidToken {
				t.Logf("FAIL: Reusing old refresh token should fail with ErrInvalidToken, got %v", err)
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestLogoutInvalidatesRefreshToken(t *testing.T) {
	svc, _, refreshTokenRepo := newTestUserService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "jane@shop.com", "password123", "Jane", "Doe", domain.RoleBuyer)
	require.NoError(t, err)
	pair, _, err := svc.Login(ctx, "jane@shop.com", "password123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = refreshTokenRepo.FindByToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, repository.ErrRefreshTokenRevoked)

	// Second logout is a no-op
	assert.NoError(t, svc.Logout(ctx, pair.RefreshToken))
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	svc, userRepo, _ := newTestUserService()

	user, err := svc.Register(context.Background(), "root@shop.com", "password123", "", "", domain.RoleAdmin)

	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrRoleNotAllowed)
	assert.Empty(t, userRepo.users)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "dup@shop.com", "password123", "", "", "")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "dup@shop.com", "password456", "", "", "")
	assert.ErrorIs(t, err, repository.ErrUserAlreadyExists)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestUserService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "bob@shop.com", "password123", "", "", "")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "bob@shop.com", "nope-nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "ghost@shop.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshExpiredToken(t *testing.T) {
	userRepo := newMockUserRepository()
	refreshTokenRepo := newMockRefreshTokenRepository()
	svc := NewUserService(userRepo, refreshTokenRepo, TokenSettings{Secret: "s", RefreshExpiry: time.Hour}).(*userService)
	ctx := context.Background()

	_, err := svc.Register(ctx, "old@shop.com", "password123", "", "", "")
	require.NoError(t, err)
	pair, _, err := svc.Login(ctx, "old@shop.com", "password123")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	svc, _, _ := newTestUserService()
	other := NewUserService(newMockUserRepository(), newMockRefreshTokenRepository(), TokenSettings{Secret: "other-secret"})
	ctx := context.Background()

	_, err := other.Register(ctx, "eve@shop.com", "password123", "", "", "")
	require.NoError(t, err)
	pair, _, err := other.Login(ctx, "eve@shop.com", "password123")
	require.NoError(t, err)

	_, err = svc.ValidateToken(pair.AccessToken)
	assert.Error(t, err)
}
