package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/LeighHMitchell/AIMS-sub014/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return nil
}

// AuthenticateUser verifies credentials and issues a token. Wrong email and
// wrong password are indistinguishable to the caller.
func AuthenticateUser(ctx context.Context, input *LoginInput) (string, *User, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return "", nil, err
	}

	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, errors.New("invalid email or password")
	}
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		return "", nil, errors.New("invalid email or password")
	}

	token, err := utils.JwtGenerate(user.ID, user.Name)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}
