package services

import (
	"context"
	"testing"
	"time"

	apperrors "storefront-backend/errors"
	"storefront-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newUserFixture() (*UserService, *memUserRepo, *memOrderRepo, *fakeNotifier) {
	users := newMemUserRepo()
	orders := newMemOrderRepo()
	notifier := &fakeNotifier{}
	svc := NewUserService(users, orders, notifier, "test-secret", 30, zap.NewNop())
	return svc, users, orders, notifier
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("register then login round-trips", func(t *testing.T) {
		svc, _, _, _ := newUserFixture()

		user, err := svc.Register(ctx, &RegisterRequest{
			FirstName: "Ada", LastName: "Obi",
			Email: "Ada@Example.com", Password: "s3cretpass",
		})
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", user.Email)
		assert.NotEqual(t, "s3cretpass", user.Password)

		logged, token, err := svc.Login(ctx, "ada@example.com", "s3cretpass")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, user.ID, logged.ID)

		claims, err := svc.ParseToken(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID.Hex(), claims.UserID)
		assert.Equal(t, models.RoleUser, claims.Role)
	})

	t.Run("duplicate email is reported taken", func(t *testing.T) {
		svc, _, _, _ := newUserFixture()
		req := &RegisterRequest{FirstName: "Ada", LastName: "Obi", Email: "ada@example.com", Password: "s3cretpass"}

		_, err := svc.Register(ctx, req)
		require.NoError(t, err)
		_, err = svc.Register(ctx, req)
		require.Error(t, err)
		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.ErrEmailTaken.Message, appErr.Message)
	})

	t.Run("wrong password and unknown email fail identically", func(t *testing.T) {
		svc, _, _, _ := newUserFixture()
		_, err := svc.Register(ctx, &RegisterRequest{FirstName: "Ada", LastName: "Obi", Email: "ada@example.com", Password: "s3cretpass"})
		require.NoError(t, err)

		_, _, errWrong := svc.Login(ctx, "ada@example.com", "wrongpass")
		_, _, errUnknown := svc.Login(ctx, "ghost@example.com", "whatever")
		assert.Equal(t, errWrong, errUnknown)
	})

	t.Run("parse rejects foreign token", func(t *testing.T) {
		svc, _, _, _ := newUserFixture()
		other := NewUserService(newMemUserRepo(), newMemOrderRepo(), &fakeNotifier{}, "other-secret", 30, zap.NewNop())

		user, err := svc.Register(ctx, &RegisterRequest{FirstName: "Ada", LastName: "Obi", Email: "a@b.com", Password: "s3cretpass"})
		require.NoError(t, err)
		token, err := other.IssueToken(user)
		require.NoError(t, err)

		_, err = svc.ParseToken(token)
		assert.Error(t, err)
	})
}

func TestCreateAccountAfterPurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("relinks all guest orders for the email", func(t *testing.T) {
		svc, _, orders, _ := newUserFixture()

		for i := 0; i < 3; i++ {
			txID := primitive.NewObjectID()
			require.NoError(t, orders.Create(ctx, &models.Order{
				OrderNumber:   models.GenerateOrderNumber(time.Now().UTC()),
				CustomerInfo:  models.CustomerInfo{FirstName: "Ada", Email: "ada@example.com"},
				TransactionID: &txID,
				IsGuestOrder:  true,
				Status:        models.OrderConfirmed,
			}))
		}
		otherTx := primitive.NewObjectID()
		require.NoError(t, orders.Create(ctx, &models.Order{
			OrderNumber:   models.GenerateOrderNumber(time.Now().UTC()),
			CustomerInfo:  models.CustomerInfo{FirstName: "Uche", Email: "uche@example.com"},
			TransactionID: &otherTx,
			IsGuestOrder:  true,
			Status:        models.OrderConfirmed,
		}))

		user, relinked, err := svc.CreateAccountAfterPurchase(ctx, &CreateAccountRequest{
			Email: "Ada@Example.com", Password: "s3cretpass",
			FirstName: "Ada", LastName: "Obi",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), relinked)

		mine, err := orders.FindForUser(ctx, user.ID, user.Email)
		require.NoError(t, err)
		assert.Len(t, mine, 3)
		for _, order := range mine {
			assert.False(t, order.IsGuestOrder)
			require.NotNil(t, order.Customer)
			assert.Equal(t, user.ID, *order.Customer)
		}
	})

	t.Run("taken email leaves orders untouched", func(t *testing.T) {
		svc, _, orders, _ := newUserFixture()
		_, err := svc.Register(ctx, &RegisterRequest{FirstName: "Ada", LastName: "Obi", Email: "ada@example.com", Password: "s3cretpass"})
		require.NoError(t, err)

		txID := primitive.NewObjectID()
		require.NoError(t, orders.Create(ctx, &models.Order{
			OrderNumber:   models.GenerateOrderNumber(time.Now().UTC()),
			CustomerInfo:  models.CustomerInfo{Email: "ada@example.com"},
			TransactionID: &txID,
			IsGuestOrder:  true,
		}))

		_, _, err = svc.CreateAccountAfterPurchase(ctx, &CreateAccountRequest{
			Email: "ada@example.com", Password: "s3cretpass",
			FirstName: "Ada", LastName: "Obi",
		})
		require.Error(t, err)

		order, err := orders.FindByTransactionID(ctx, txID)
		require.NoError(t, err)
		assert.True(t, order.IsGuestOrder)
	})
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("applies only the provided fields", func(t *testing.T) {
		svc, _, _, _ := newUserFixture()
		user, err := svc.Register(ctx, &RegisterRequest{FirstName: "Ada", LastName: "Obi", Email: "ada@example.com", Password: "s3cretpass", Phone: "+2348012345678"})
		require.NoError(t, err)

		first := "Adaeze"
		updated, err := svc.UpdateProfile(ctx, user.ID, &ProfileUpdate{FirstName: &first})
		require.NoError(t, err)
		assert.Equal(t, "Adaeze", updated.FirstName)
		assert.Equal(t, "Obi", updated.LastName)
		assert.Equal(t, "+2348012345678", updated.Phone)
	})

	t.Run("phone change clears the verified flag", func(t *testing.T) {
		svc, users, _, _ := newUserFixture()
		user, err := svc.Register(ctx, &RegisterRequest{FirstName: "Ada", LastName: "Obi", Email: "ada@example.com", Password: "s3cretpass", Phone: "+2348012345678"})
		require.NoError(t, err)

		stored, err := users.FindByID(ctx, user.ID)
		require.NoError(t, err)
		stored.IsPhoneVerified = true
		require.NoError(t, users.Update(ctx, stored))

		phone := "+2348087654321"
		updated, err := svc.UpdateProfile(ctx, user.ID, &ProfileUpdate{Phone: &phone})
		require.NoError(t, err)
		assert.Equal(t, phone, updated.Phone)
		assert.False(t, updated.IsPhoneVerified)
	})
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the password when the current one matches", func(t *testing.T) {
		svc, _, _, _ := newUserFixture()
		user, err := svc.Register(ctx, &RegisterRequest{FirstName: "Ada", LastName: "Obi", Email: "ada@example.com", Password: "oldpassword"})
		require.NoError(t, err)

		require.NoError(t, svc.ChangePassword(ctx, user.ID, "oldpassword", "newpassword1"))

		_, _, err = svc.Login(ctx, "ada@example.com", "newpassword1")
		assert.NoError(t, err)
		_, _, err = svc.Login(ctx, "ada@example.com", "oldpassword")
		assert.Error(t, err)
	})

	t.Run("rejects a wrong current password", func(t *testing.T) {
		svc, _, _, _ := newUserFixture()
		user, err := svc.Register(ctx, &RegisterRequest{FirstName: "Ada", LastName: "Obi", Email: "ada@example.com", Password: "oldpassword"})
		require.NoError(t, err)

		err = svc.ChangePassword(ctx, user.ID, "wrongpassword", "newpassword1")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrInvalidCredentials, err)

		_, _, err = svc.Login(ctx, "ada@example.com", "oldpassword")
		assert.NoError(t, err)
	})
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("otp resets the password once", func(t *testing.T) {
		svc, _, _, notifier := newUserFixture()
		_, err := svc.Register(ctx, &RegisterRequest{FirstName: "Ada", LastName: "Obi", Email: "ada@example.com", Password: "oldpassword"})
		require.NoError(t, err)

		require.NoError(t, svc.RequestPasswordReset(ctx, "ada@example.com"))
		require.Len(t, notifier.otps, 1)
		otp := notifier.otps[0]

		require.NoError(t, svc.ResetPassword(ctx, "ada@example.com", otp, "newpassword1"))

		_, _, err = svc.Login(ctx, "ada@example.com", "newpassword1")
		assert.NoError(t, err)
		_, _, err = svc.Login(ctx, "ada@example.com", "oldpassword")
		assert.Error(t, err)

		// The challenge is cleared; the same code no longer works.
		err = svc.ResetPassword(ctx, "ada@example.com", otp, "anotherpass1")
		assert.Error(t, err)
	})

	t.Run("unknown email does not leak existence", func(t *testing.T) {
		svc, _, _, notifier := newUserFixture()
		assert.NoError(t, svc.RequestPasswordReset(ctx, "ghost@example.com"))
		assert.Empty(t, notifier.otps)
	})

	t.Run("wrong otp is rejected", func(t *testing.T) {
		svc, _, _, notifier := newUserFixture()
		_, err := svc.Register(ctx, &RegisterRequest{FirstName: "Ada", LastName: "Obi", Email: "ada@example.com", Password: "s3cretpass"})
		require.NoError(t, err)
		require.NoError(t, svc.RequestPasswordReset(ctx, "ada@example.com"))

		wrong := "000000"
		if notifier.otps[0] == wrong {
			wrong = "000001"
		}
		err = svc.ResetPassword(ctx, "ada@example.com", wrong, "newpassword1")
		assert.Error(t, err)
	})
}
