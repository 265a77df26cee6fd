package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRole is the closed set of account roles.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User is an account record. It may be created at registration, or lazily
// during order confirmation when the checkout requested account creation.
type User struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FirstName       string             `bson:"first_name" json:"firstName"`
	LastName        string             `bson:"last_name" json:"lastName"`
	Email           string             `bson:"email" json:"email"`
	Password        string             `bson:"password" json:"-"`
	Role            UserRole           `bson:"role" json:"role"`
	Phone           string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address         *ShippingAddress   `bson:"address,omitempty" json:"address,omitempty"`
	IsActive        bool               `bson:"is_active" json:"isActive"`
	IsPhoneVerified bool               `bson:"is_phone_verified" json:"isPhoneVerified"`
	LoginCount      int                `bson:"login_count" json:"loginCount"`

	// OTP challenges store a one-way hash plus an expiry, never the code.
	PhoneOTP               string     `bson:"phone_otp,omitempty" json:"-"`
	PhoneOTPExpire         *time.Time `bson:"phone_otp_expire,omitempty" json:"-"`
	PasswordResetOTP       string     `bson:"password_reset_otp,omitempty" json:"-"`
	PasswordResetOTPExpire *time.Time `bson:"password_reset_otp_expire,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// FullName joins the name parts for display and gateway payloads.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// HashOTP returns the sha256 hex digest stored for an OTP challenge.
func HashOTP(otp string) string {
	sum := sha256.Sum256([]byte(otp))
	return hex.EncodeToString(sum[:])
}

// VerifyOTP checks a submitted code against a stored hash and expiry.
// A challenge is valid only if the hash matches and the expiry is in the
// future.
func VerifyOTP(entered, storedHash string, expire *time.Time, now time.Time) bool {
	if storedHash == "" || expire == nil {
		return false
	}
	if now.After(*expire) {
		return false
	}
	return HashOTP(entered) == storedHash
}
