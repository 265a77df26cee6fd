package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	apperrors "storefront-backend/errors"
	"storefront-backend/models"
	"storefront-backend/repository"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const otpTTL = 10 * time.Minute

// Claims is the JWT payload issued on login.
type Claims struct {
	UserID string          `json:"user_id"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// RegisterRequest is the account registration payload.
type RegisterRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Phone     string `json:"phone,omitempty"`
}

// CreateAccountRequest opens an account for a guest after purchase and
// attaches their past guest orders.
type CreateAccountRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Phone     string `json:"phone,omitempty"`
}

// UserService handles registration, authentication, and OTP challenges.
type UserService struct {
	users         repository.UserRepository
	orders        repository.OrderRepository
	notifier      Notifier
	jwtSecret     string
	jwtExpireDays int
	logger        *zap.Logger
}

// NewUserService creates a UserService.
func NewUserService(users repository.UserRepository, orders repository.OrderRepository, notifier Notifier, jwtSecret string, jwtExpireDays int, logger *zap.Logger) *UserService {
	return &UserService{
		users:         users,
		orders:        orders,
		notifier:      notifier,
		jwtSecret:     jwtSecret,
		jwtExpireDays: jwtExpireDays,
		logger:        logger,
	}
}

// Register creates a new account. A duplicate email is reported as taken
// rather than leaking the storage error.
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  string(hashed),
		Phone:     req.Phone,
		Role:      models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperrors.ErrEmailTaken
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.logger.Info("User registered", zap.String("email", user.Email))
	return user, nil
}

// Login verifies credentials and issues a signed JWT. The bcrypt compare
// runs even for unknown emails so the two failure modes take similar time.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			bcrypt.CompareHashAndPassword([]byte("$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva"), []byte(password))
			return nil, "", apperrors.ErrInvalidCredentials
		}
		return nil, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !user.IsActive {
		return nil, "", apperrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", apperrors.ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.users.IncrementLoginCount(ctx, user.ID); err != nil {
		s.logger.Warn("Failed to bump login count", zap.String("email", user.Email), zap.Error(err))
	}
	return user, token, nil
}

// IssueToken signs a JWT for a user.
func (s *UserService) IssueToken(user *models.User) (string, error) {
	claims := Claims{
		UserID: user.ID.Hex(),
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().AddDate(0, 0, s.jwtExpireDays)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// ParseToken validates a JWT and returns its claims.
func (s *UserService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// GetProfile loads a user by id.
func (s *UserService) GetProfile(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

// ProfileUpdate is a partial profile edit; nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName *string                 `json:"firstName,omitempty"`
	LastName  *string                 `json:"lastName,omitempty"`
	Phone     *string                 `json:"phone,omitempty"`
	Address   *models.ShippingAddress `json:"address,omitempty"`
}

// UpdateProfile applies a partial profile edit. Changing the phone number
// clears its verified flag until the new number passes an OTP check.
func (s *UserService) UpdateProfile(ctx context.Context, id primitive.ObjectID, update *ProfileUpdate) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	if update.Phone != nil && *update.Phone != user.Phone {
		user.Phone = *update.Phone
		user.IsPhoneVerified = false
		user.PhoneOTP = ""
		user.PhoneOTPExpire = nil
	}
	if update.Address != nil {
		user.Address = update.Address
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return user, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *UserService) ChangePassword(ctx context.Context, id primitive.ObjectID, currentPassword, newPassword string) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ErrNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(currentPassword)); err != nil {
		return apperrors.ErrInvalidCredentials
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	user.Password = string(hashed)
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.logger.Info("Password changed", zap.String("email", user.Email))
	return nil
}

// CreateAccountAfterPurchase opens an account for a guest and attaches all
// their unowned guest orders, so past purchases show up under the new
// account immediately.
func (s *UserService) CreateAccountAfterPurchase(ctx context.Context, req *CreateAccountRequest) (*models.User, int64, error) {
	user, err := s.Register(ctx, &RegisterRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Phone,
	})
	if err != nil {
		return nil, 0, err
	}

	relinked, err := s.orders.RelinkGuestOrders(ctx, user.Email, user.ID)
	if err != nil {
		// The account exists; the relink can be retried on next login.
		s.logger.Error("Guest order relink failed",
			zap.String("email", user.Email),
			zap.Error(err),
		)
		return user, 0, nil
	}

	s.logger.Info("Guest orders relinked",
		zap.String("email", user.Email),
		zap.Int64("count", relinked),
	)
	return user, relinked, nil
}

// RequestPasswordReset generates an OTP challenge and emails it. Unknown
// emails are reported as success so the endpoint cannot be used to probe
// for accounts.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	otp, err := generateOTP()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	expire := time.Now().UTC().Add(otpTTL)
	user.PasswordResetOTP = models.HashOTP(otp)
	user.PasswordResetOTPExpire = &expire
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.notifier.SendPasswordResetOTP(user.Email, user.FirstName, otp); err != nil {
		s.logger.Error("Password reset mail failed", zap.String("email", user.Email), zap.Error(err))
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// ResetPassword verifies an OTP challenge and sets a new password. The
// challenge is single-use: it is cleared on success.
func (s *UserService) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.WithMessage(apperrors.ErrBadRequest, "Invalid or expired code")
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if !models.VerifyOTP(otp, user.PasswordResetOTP, user.PasswordResetOTPExpire, time.Now().UTC()) {
		return apperrors.WithMessage(apperrors.ErrBadRequest, "Invalid or expired code")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	user.Password = string(hashed)
	user.PasswordResetOTP = ""
	user.PasswordResetOTPExpire = nil
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.logger.Info("Password reset completed", zap.String("email", user.Email))
	return nil
}

// RequestPhoneVerification stores a phone OTP challenge for the user.
// Delivery is out of band; the generated code is returned for the SMS
// dispatcher.
func (s *UserService) RequestPhoneVerification(ctx context.Context, id primitive.ObjectID) (string, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if user.Phone == "" {
		return "", apperrors.WithMessage(apperrors.ErrBadRequest, "No phone number on account")
	}

	otp, err := generateOTP()
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	expire := time.Now().UTC().Add(otpTTL)
	user.PhoneOTP = models.HashOTP(otp)
	user.PhoneOTPExpire = &expire
	if err := s.users.Update(ctx, user); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return otp, nil
}

// VerifyPhone checks a phone OTP and marks the number verified.
func (s *UserService) VerifyPhone(ctx context.Context, id primitive.ObjectID, otp string) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if !models.VerifyOTP(otp, user.PhoneOTP, user.PhoneOTPExpire, time.Now().UTC()) {
		return apperrors.WithMessage(apperrors.ErrBadRequest, "Invalid or expired code")
	}

	user.IsPhoneVerified = true
	user.PhoneOTP = ""
	user.PhoneOTPExpire = nil
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// generateOTP produces a 6-digit numeric code from crypto/rand.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
