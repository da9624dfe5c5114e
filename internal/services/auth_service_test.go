package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/eshop-backend/internal/models"
	"github.com/javajoker/eshop-backend/internal/repository"
	"github.com/javajoker/eshop-backend/internal/utils"
)

type capturedMail struct {
	to  string
	url string
}

type fakeMailer struct {
	sent []capturedMail
	err  error
}

func (m *fakeMailer) SendPasswordResetEmail(_ context.Context, user *models.User, resetURL string) error {
	m.sent = append(m.sent, capturedMail{to: user.Email, url: resetURL})
	return m.err
}

type AuthServiceTestSuite struct {
	suite.Suite
	store  *repository.MemoryStore
	mailer *fakeMailer
	svc    *AuthService
	clock  time.Time
}

func (s *AuthServiceTestSuite) SetupTest() {
	utils.SetJWTSecret("test-secret")
	s.store = repository.NewMemoryStore()
	s.mailer = &fakeMailer{}
	s.svc = NewAuthService(s.store, testConfig(), s.mailer)
	s.clock = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.svc.now = func() time.Time { return s.clock }
}

func (s *AuthServiceTestSuite) register(email string) *models.User {
	user, err := s.svc.Register(context.Background(), &RegisterRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Password:  "password123",
	})
	s.Require().NoError(err)
	return user
}

func (s *AuthServiceTestSuite) forgot(email string) string {
	s.Require().NoError(s.svc.ForgotPassword(context.Background(), &ForgotPasswordRequest{Email: email}, "http://shop.test/"))
	s.Require().NotEmpty(s.mailer.sent)
	url := s.mailer.sent[len(s.mailer.sent)-1].url
	return url[strings.LastIndex(url, "/")+1:]
}

func (s *AuthServiceTestSuite) TestRegisterAndLogin() {
	user := s.register("ada@example.com")
	s.Equal("ada@example.com", user.Username)
	s.Equal(models.UserRoleUser, user.Role)
	s.NotEqual("password123", user.PasswordHash)

	resp, err := s.svc.Login(context.Background(), &LoginRequest{Email: "ada@example.com", Password: "password123"})
	s.Require().NoError(err)
	s.Equal("Bearer", resp.TokenType)

	claims, err := utils.ValidateJWT(resp.AccessToken)
	s.Require().NoError(err)
	s.Equal(user.ID.String(), claims.UserID)

	_, err = s.svc.Login(context.Background(), &LoginRequest{Email: "ada@example.com", Password: "wrong-password"})
	s.ErrorIs(err, ErrInvalidCredentials)
	_, err = s.svc.Login(context.Background(), &LoginRequest{Email: "nobody@example.com", Password: "password123"})
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *AuthServiceTestSuite) TestEmailWhitespaceIsTrimmed() {
	user := s.register("  grace@example.com ")
	s.Equal("grace@example.com", user.Email)

	_, err := s.svc.Login(context.Background(), &LoginRequest{Email: " grace@example.com", Password: "password123"})
	s.NoError(err)

	s.forgot("grace@example.com  ")
	s.Equal("grace@example.com", s.mailer.sent[0].to)
}

func (s *AuthServiceTestSuite) TestRegisterDuplicate() {
	s.register("ada@example.com")
	_, err := s.svc.Register(context.Background(), &RegisterRequest{
		FirstName: "Other",
		LastName:  "Person",
		Email:     "ada@example.com",
		Password:  "password123",
	})
	s.ErrorIs(err, ErrUserExists)
}

func (s *AuthServiceTestSuite) TestForgotPasswordUnknownEmail() {
	err := s.svc.ForgotPassword(context.Background(), &ForgotPasswordRequest{Email: "ghost@example.com"}, "http://shop.test/")
	s.NoError(err)
	s.Empty(s.mailer.sent)
}

func (s *AuthServiceTestSuite) TestForgotPasswordIgnoresMailFailure() {
	s.register("ada@example.com")
	s.mailer.err = errors.New("smtp down")
	err := s.svc.ForgotPassword(context.Background(), &ForgotPasswordRequest{Email: "ada@example.com"}, "http://shop.test/")
	s.NoError(err)
}

func (s *AuthServiceTestSuite) TestResetPasswordFlow() {
	user := s.register("ada@example.com")
	token := s.forgot("ada@example.com")
	s.Len(token, utils.ResetTokenLength)
	s.Equal("http://shop.test/api/reset_password/"+token, s.mailer.sent[0].url)

	stored, err := s.store.Users().GetByID(context.Background(), user.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.Profile.ResetPasswordExpire)
	s.Equal(s.clock.Add(ResetTokenTTL), *stored.Profile.ResetPasswordExpire)

	err = s.svc.ResetPassword(context.Background(), token, &ResetPasswordRequest{Password: "new-password", ConfirmPassword: "new-password"})
	s.Require().NoError(err)

	stored, err = s.store.Users().GetByID(context.Background(), user.ID)
	s.Require().NoError(err)
	s.Empty(stored.Profile.ResetPasswordToken)
	s.Nil(stored.Profile.ResetPasswordExpire)
	s.NoError(stored.CheckPassword("new-password"))

	// A consumed token cannot be used again.
	err = s.svc.ResetPassword(context.Background(), token, &ResetPasswordRequest{Password: "another-one", ConfirmPassword: "another-one"})
	s.ErrorIs(err, ErrNotFound)
}

func (s *AuthServiceTestSuite) TestResetPasswordExpired() {
	user := s.register("ada@example.com")
	token := s.forgot("ada@example.com")

	s.clock = s.clock.Add(ResetTokenTTL + time.Second)
	err := s.svc.ResetPassword(context.Background(), token, &ResetPasswordRequest{Password: "new-password", ConfirmPassword: "new-password"})
	s.ErrorIs(err, ErrTokenExpired)

	stored, err := s.store.Users().GetByID(context.Background(), user.ID)
	s.Require().NoError(err)
	s.NoError(stored.CheckPassword("password123"))
	s.Equal(token, stored.Profile.ResetPasswordToken)
}

func (s *AuthServiceTestSuite) TestResetPasswordMismatch() {
	s.register("ada@example.com")
	token := s.forgot("ada@example.com")

	err := s.svc.ResetPassword(context.Background(), token, &ResetPasswordRequest{Password: "new-password", ConfirmPassword: "other-password"})
	s.ErrorIs(err, ErrPasswordMismatch)
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

func TestUpdateCurrentUser(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := NewUserService(store)
	ada := seedUser(t, store, "ada@example.com", models.UserRoleUser)
	seedUser(t, store, "taken@example.com", models.UserRoleUser)

	updated, err := svc.UpdateCurrentUser(ctx, ada.ID, &UpdateUserRequest{
		FirstName: "Augusta",
		LastName:  "King",
		Email:     "augusta@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Augusta", updated.FirstName)
	assert.Equal(t, "augusta@example.com", updated.Username)
	assert.NoError(t, updated.CheckPassword("password123"))

	_, err = svc.UpdateCurrentUser(ctx, ada.ID, &UpdateUserRequest{
		FirstName: "Augusta",
		LastName:  "King",
		Email:     "taken@example.com",
	})
	assert.ErrorIs(t, err, ErrUserExists)

	updated, err = svc.UpdateCurrentUser(ctx, ada.ID, &UpdateUserRequest{
		FirstName: "Augusta",
		LastName:  "King",
		Email:     "augusta@example.com",
		Password:  "brand-new-pass",
	})
	require.NoError(t, err)
	assert.NoError(t, updated.CheckPassword("brand-new-pass"))
}

func TestCreateAdmin(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := NewUserService(store)

	admin, err := svc.CreateAdmin(ctx, &CreateAdminRequest{Email: "root@example.com", Password: "supersecret"})
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	existing := seedUser(t, store, "ada@example.com", models.UserRoleUser)
	promoted, err := svc.CreateAdmin(ctx, &CreateAdminRequest{Email: "ada@example.com", Password: "supersecret"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, promoted.ID)
	assert.True(t, promoted.IsAdmin())

	_, err = svc.CreateAdmin(ctx, &CreateAdminRequest{Email: "bad", Password: "short"})
	assert.ErrorIs(t, err, ErrValidation)
}
