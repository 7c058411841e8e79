package models

import (
	"context"
	"errors"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
	"github.com/agrifocus/farmbooks_backend/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type User struct {
	ID           int        `gorm:"primary_key" json:"id"`
	TenantId     string     `gorm:"size:64;index:uniq_user_phone,unique;not null" json:"tenant_id"`
	Name         string     `gorm:"size:255;not null" json:"name" binding:"required"`
	Phone        string     `gorm:"size:32;index:uniq_user_phone,unique;not null" json:"phone" binding:"required"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	IsAdmin      bool       `gorm:"default:false" json:"is_admin"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) GetId() int { return u.ID }

type NewUser struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
	IsAdmin  bool   `json:"is_admin"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, errors.New("tenant id is required")
	}
	phone, err := utils.NormalizePhoneNumber(input.Phone)
	if err != nil {
		return nil, err
	}
	if len(input.Password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := User{
		TenantId:     tenantId,
		Name:         input.Name,
		Phone:        phone,
		PasswordHash: string(hash),
		IsAdmin:      input.IsAdmin,
		IsActive:     true,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errors.New("phone number is already registered")
		}
		return nil, err
	}
	return &user, nil
}

// AuthenticateUser checks the phone and password pair and stamps the login
// time on success.
func AuthenticateUser(ctx context.Context, tenantId string, phone string, password string) (*User, error) {
	normalized, err := utils.NormalizePhoneNumber(phone)
	if err != nil {
		return nil, err
	}
	var user User
	db := config.GetDB()
	err = db.WithContext(ctx).
		Where("tenant_id = ? AND phone = ? AND is_active = ?", tenantId, normalized, true).
		First(&user).Error
	if err != nil {
		return nil, errors.New("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, errors.New("invalid credentials")
	}
	now := time.Now()
	db.WithContext(ctx).Model(&user).Update("last_login_at", now)
	return &user, nil
}
