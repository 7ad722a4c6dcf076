package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/speantag/bakery_backend/config"
	"bitbucket.org/speantag/bakery_backend/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     *string   `gorm:"size:100;unique" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"password"`
	IsActive  *bool     `gorm:"not null" json:"is_active"`
	Role      UserRole  `gorm:"type:enum('A', 'O', 'C');default:C" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email"`
	Password string   `json:"password" binding:"required"`
	IsActive *bool    `json:"is_active" binding:"required"`
	Role     UserRole `json:"role" binding:"required"`
}

/*
caches:
	Token:$token => username
	Session:$token => session id
	Tokens:$username => set of live tokens
*/

type LoginInfo struct {
	Token     string `json:"token"`
	SessionId string `json:"session_id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

func (result *User) PrepareGive() {
	result.Password = ""
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, utils.NewValidationError("invalid email address")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Username: input.Username,
		Name:     input.Name,
		Password: string(hashed),
		IsActive: input.IsActive,
		Role:     input.Role,
	}
	if input.Email != "" {
		user.Email = &input.Email
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, utils.NewStorageError("create user", err)
	}
	user.PrepareGive()
	return &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	db := config.GetDB()

	var result User
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.NewNotFoundError("user", id)
	}
	result.PrepareGive()
	return &result, nil
}

// Login checks credentials, mints a uuid token stored in redis, and books
// the activity event (failed attempts included — the repeated-failed-login
// rule feeds on them).
func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	db := config.GetDB()

	var user User
	err := db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error
	if err != nil {
		LogActivitySafe(ctx, &NewActivityLog{
			Username:  username,
			Action:    ActionFailedLogin,
			Details:   "unknown username " + username,
			RiskLevel: RiskLevelMedium,
		})
		return nil, errors.New("invalid username or password")
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			LogActivitySafe(ctx, &NewActivityLog{
				UserId:    &user.ID,
				Username:  username,
				Action:    ActionFailedLogin,
				Details:   "wrong password for " + username,
				RiskLevel: RiskLevelMedium,
			})
			return nil, errors.New("invalid username or password")
		}
		return nil, err
	}

	if user.IsActive == nil || !*user.IsActive {
		return nil, errors.New("user is disabled")
	}

	token := uuid.New().String()
	sessionId := uuid.New().String()
	tokenTTL := 24 * time.Hour

	if err := config.SetRedisValue("Token:"+token, user.Username, tokenTTL); err != nil {
		return nil, utils.NewStorageError("store login token", err)
	}
	if err := config.SetRedisValue("Session:"+token, sessionId, tokenTTL); err != nil {
		return nil, utils.NewStorageError("store session id", err)
	}
	if err := config.AddRedisSet("Tokens:"+user.Username, token); err != nil {
		return nil, utils.NewStorageError("track login token", err)
	}

	loginCtx := utils.SetSessionIdInContext(ctx, sessionId)
	LogActivitySafe(loginCtx, &NewActivityLog{
		UserId:   &user.ID,
		Username: user.Username,
		Action:   ActionLogin,
		Details:  user.Username + " logged in",
	})

	return &LoginInfo{
		Token:     token,
		SessionId: sessionId,
		Name:      user.Name,
		Role:      user.Role.DisplayName(),
	}, nil
}

// Logout destroys the current session token.
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return false, errors.New("user not found")
	}

	if err := config.RemoveRedisKey("Token:"+token, "Session:"+token); err != nil {
		return false, err
	}
	if err := config.RemoveRedisSetMember("Tokens:"+username, token); err != nil {
		return false, err
	}

	LogActivitySafe(ctx, &NewActivityLog{
		Username: username,
		Action:   ActionLogout,
		Details:  username + " logged out",
	})
	return true, nil
}
