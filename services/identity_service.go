package services

import (
	"context"
	"errors"
	"strings"

	"storefront-backend/models"
	"storefront-backend/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// IdentityService resolves the account that should own an order.
type IdentityService struct {
	users  repository.UserRepository
	logger *zap.Logger
}

// NewIdentityService creates an IdentityService.
func NewIdentityService(users repository.UserRepository, logger *zap.Logger) *IdentityService {
	return &IdentityService{users: users, logger: logger}
}

// Resolve finds or creates the user for a confirmation. Precedence:
// candidate id first, then email, then creation if the checkout requested
// an account and supplied a credential. The returned bool is true only when
// this call created the user.
//
// Returns (nil, false, nil) when nothing matches and creation was not
// requested: the order stays a guest order.
func (s *IdentityService) Resolve(ctx context.Context, candidateUserID string, info models.CustomerInfo, opts *models.AccountOptions) (*models.User, bool, error) {
	email := strings.ToLower(info.Email)

	if candidateUserID != "" {
		if oid, err := primitive.ObjectIDFromHex(candidateUserID); err == nil {
			user, err := s.users.FindByID(ctx, oid)
			if err == nil {
				return user, false, nil
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return nil, false, err
			}
			// A stale id hint falls through to the email lookup.
		}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	if opts == nil || !opts.CreateAccount || opts.Password == "" {
		return nil, false, nil
	}

	// Re-check before creating: another confirmation may have created the
	// account between the lookup above and now.
	if existing, err := s.users.FindByEmail(ctx, email); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, err
	}

	newUser := &models.User{
		FirstName: info.FirstName,
		LastName:  info.LastName,
		Email:     email,
		Password:  string(hashed),
		Phone:     info.Phone,
		Address:   &info.ShippingAddress,
	}
	if err := s.users.Create(ctx, newUser); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// Lost the creation race; the winner's account owns the order.
			existing, findErr := s.users.FindByEmail(ctx, email)
			if findErr != nil {
				return nil, false, findErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	s.logger.Info("Created account during checkout confirmation", zap.String("email", email))
	return newUser, true, nil
}
