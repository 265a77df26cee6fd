package controllers

import (
	"net/http"

	apperrors "storefront-backend/errors"
	"storefront-backend/middleware"
	"storefront-backend/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UserController exposes registration, login, profile, and the
// post-purchase account creation flow.
type UserController struct {
	users  *services.UserService
	logger *zap.Logger
}

// NewUserController creates a UserController.
func NewUserController(users *services.UserService, logger *zap.Logger) *UserController {
	return &UserController{users: users, logger: logger}
}

// Register handles POST /api/auth/register.
func (uc *UserController) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	user, err := uc.users.Register(c.Request.Context(), &req)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	token, err := uc.users.IssueToken(user)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "user": user, "token": token})
}

// Login handles POST /api/auth/login.
func (uc *UserController) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	user, token, err := uc.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user, "token": token})
}

// GetProfile handles GET /api/users/me.
func (uc *UserController) GetProfile(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.GetString(middleware.CtxUserID))
	if err != nil {
		apperrors.HandleError(c, apperrors.ErrUnauthorized)
		return
	}

	user, err := uc.users.GetProfile(c.Request.Context(), id)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// CreateAccount handles POST /api/auth/create-account. Opens an account for
// a guest after a purchase and attaches their past guest orders.
func (uc *UserController) CreateAccount(c *gin.Context) {
	var req services.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	user, relinked, err := uc.users.CreateAccountAfterPurchase(c.Request.Context(), &req)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	token, err := uc.users.IssueToken(user)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":        true,
		"user":           user,
		"token":          token,
		"ordersAttached": relinked,
	})
}

// ForgotPassword handles POST /api/auth/forgot-password. Always responds
// with success so the endpoint cannot be used to probe for accounts.
func (uc *UserController) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	if err := uc.users.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		uc.logger.Error("Password reset request failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "If that email exists, a reset code has been sent"})
}

// UpdateProfile handles PUT /api/users/me.
func (uc *UserController) UpdateProfile(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.GetString(middleware.CtxUserID))
	if err != nil {
		apperrors.HandleError(c, apperrors.ErrUnauthorized)
		return
	}

	var req services.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	user, err := uc.users.UpdateProfile(c.Request.Context(), id, &req)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// ChangePassword handles PUT /api/users/me/password.
func (uc *UserController) ChangePassword(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.GetString(middleware.CtxUserID))
	if err != nil {
		apperrors.HandleError(c, apperrors.ErrUnauthorized)
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	if err := uc.users.ChangePassword(c.Request.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password updated"})
}

// RequestPhoneVerification handles POST /api/users/verify-phone/request.
// The generated code is handed to the SMS dispatcher, never returned to
// the client.
func (uc *UserController) RequestPhoneVerification(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.GetString(middleware.CtxUserID))
	if err != nil {
		apperrors.HandleError(c, apperrors.ErrUnauthorized)
		return
	}

	otp, err := uc.users.RequestPhoneVerification(c.Request.Context(), id)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	uc.logger.Info("Phone verification code issued", zap.String("user_id", id.Hex()), zap.Int("otp_len", len(otp)))

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Verification code sent"})
}

// VerifyPhone handles POST /api/users/verify-phone.
func (uc *UserController) VerifyPhone(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.GetString(middleware.CtxUserID))
	if err != nil {
		apperrors.HandleError(c, apperrors.ErrUnauthorized)
		return
	}

	var req struct {
		OTP string `json:"otp" binding:"required,len=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	if err := uc.users.VerifyPhone(c.Request.Context(), id, req.OTP); err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Phone verified"})
}

// ResetPassword handles POST /api/auth/reset-password.
func (uc *UserController) ResetPassword(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		OTP         string `json:"otp" binding:"required,len=6"`
		NewPassword string `json:"newPassword" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	if err := uc.users.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password updated"})
}
