package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tokocart/internal/apperrors"
	"tokocart/internal/models"
	"tokocart/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test_jwt_secret"

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func TestAuthService_RegisterUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour, nil)
	ctx := context.Background()

	// Test successful registration
	user := &models.User{Name: "Test User", Email: " Test@Example.com", Password: "password123"}

	mockRepo.On("GetByEmail", mock.Anything, "test@example.com").Return(nil, apperrors.NotFound("user", "test@example.com")).Once()
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).Return(nil).Once()

	err := authService.RegisterUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", user.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")))
	mockRepo.AssertExpectations(t)

	// Test email already registered
	mockRepo.On("GetByEmail", mock.Anything, "test@example.com").Return(&models.User{ID: "1"}, nil).Once()
	err = authService.RegisterUser(ctx, &models.User{Email: "test@example.com", Password: "x"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)
	assert.Contains(t, err.Error(), "email 'test@example.com' already registered")

	// Test store failure while checking the email
	mockRepo.On("GetByEmail", mock.Anything, "down@example.com").Return(nil, apperrors.Internal("get user", errors.New("connection refused"))).Once()
	err = authService.RegisterUser(ctx, &models.User{Email: "down@example.com", Password: "x"})
	assert.ErrorIs(t, err, apperrors.ErrInternal)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_LoginUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour, nil)
	ctx := context.Background()

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{
		ID:       "user-123",
		Name:     "Test User",
		Email:    "test@example.com",
		Password: string(hashedPassword),
	}

	// Test successful login
	mockRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil).Once()
	token, err := authService.LoginUser(ctx, "test@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, user.ID, claims["user_id"])
	assert.Equal(t, user.Email, claims["email"])
	assert.Contains(t, claims, "exp")
	assert.Contains(t, claims, "iat")

	// Test invalid credentials (wrong password)
	mockRepo.On("GetByEmail", mock.Anything, user.Email).Return(user, nil).Once()
	_, err = authService.LoginUser(ctx, "test@example.com", "wrongpassword")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Contains(t, err.Error(), "invalid credentials")

	// Test invalid credentials (user not found)
	mockRepo.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, apperrors.NotFound("user", "nobody@example.com")).Once()
	_, err = authService.LoginUser(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Contains(t, err.Error(), "invalid credentials")
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService := services.NewAuthService(new(MockUserRepository), testJWTSecret, time.Hour, nil)

	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	// Test valid token
	claims, err := authService.ValidateToken(sign(jwt.MapClaims{
		"user_id": "user-123",
		"email":   "test@example.com",
		"exp":     jwt.TimeFunc().Add(time.Hour).Unix(),
	}, testJWTSecret))
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims["user_id"])

	// Test malformed token
	_, err = authService.ValidateToken("invalid.token.string")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Contains(t, err.Error(), "invalid token")

	// Test wrong secret
	_, err = authService.ValidateToken(sign(jwt.MapClaims{
		"user_id": "user-123",
		"exp":     jwt.TimeFunc().Add(time.Hour).Unix(),
	}, "another_secret"))
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	// Test expired token
	_, err = authService.ValidateToken(sign(jwt.MapClaims{
		"user_id": "user-123",
		"exp":     jwt.TimeFunc().Add(-time.Hour).Unix(),
	}, testJWTSecret))
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	// Test token without a user
	_, err = authService.ValidateToken(sign(jwt.MapClaims{
		"exp": jwt.TimeFunc().Add(time.Hour).Unix(),
	}, testJWTSecret))
	assert.ErrorContains(t, err, "no user_id")
}

func TestAuthService_Me(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, 0, nil)

	mockRepo.On("GetByID", mock.Anything, "user-123").Return(&models.User{ID: "user-123", Email: "me@example.com"}, nil).Once()

	user, err := authService.Me(context.Background(), "user-123")
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", user.Email)
	mockRepo.AssertExpectations(t)
}
