package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID       int      `gorm:"primary_key" json:"id"`
	Username string   `gorm:"size:100;not null;uniqueIndex" json:"username"`
	Name     string   `gorm:"size:100;not null" json:"name"`
	Email    *string  `gorm:"size:100;uniqueIndex" json:"email"`
	Password string   `gorm:"size:255;not null" json:"-"`
	Role     UserRole `gorm:"size:1;not null;default:T" json:"role"`
	SoftDelete
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" validate:"required,max=100"`
	Name     string   `json:"name" validate:"required,max=100"`
	Email    string   `json:"email" validate:"omitempty,email,max=100"`
	Password string   `json:"password" validate:"required,min=8"`
	Role     UserRole `json:"role" validate:"required,oneof=A T"`
}

type LoginInfo struct {
	Token     string    `json:"token"`
	UserId    int       `json:"user_id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      UserRole  `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

/*
caches:
	User:$username
sessions:
	Token:$token   -> username
	Tokens:$username (set of tokens)
*/

func (user User) FormattedName() string {
	return formatIssuerName(user.Name, user.Role)
}

// Actor builds the explicit issuer handed to every write.
func (user User) Actor(ip string) Actor {
	return Actor{UserId: user.ID, Name: user.Name, Role: user.Role, IP: ip}
}

func (user User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + user.Username)
}

// CreateUser is used by the seeding tool; user management has no HTTP surface.
func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[User](ctx, "username", input.Username, 0); err != nil {
		return nil, err
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		Username:   input.Username,
		Name:       input.Name,
		Email:      utils.NilIfEmpty(input.Email),
		Password:   hashedPassword,
		Role:       input.Role,
		SoftDelete: newActive(),
	}
	if err := config.GetDB().WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	var user User
	err := config.GetDB().WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("user")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername reads through the User:$username cache.
func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		config.LogError(config.GetLogger(), "models", "GetUserByUsername", "read user cache", username, err)
	}
	if exists {
		return &user, nil
	}

	err = config.GetDB().WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("user")
	}
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject("User:"+username, &user, utils.GetCacheLifespan()); err != nil {
		config.LogError(config.GetLogger(), "models", "GetUserByUsername", "write user cache", username, err)
	}
	return &user, nil
}

var errInvalidCredentials = utils.NewValidationError("username", "invalid username or password")

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	var user User
	err := config.GetDB().WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, errInvalidCredentials
	}
	if !user.Active() {
		return nil, utils.NewForbiddenError("user is disabled")
	}

	token, err := utils.JwtGenerate(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}
	lifespan := utils.TokenLifespan()

	// add new token to the user's tokens set
	if err := config.AddRedisSet("Tokens:"+user.Username, token); err != nil {
		return nil, err
	}
	if err := config.SetRedisValue("Token:"+token, user.Username, lifespan); err != nil {
		return nil, err
	}

	return &LoginInfo{
		Token:     token,
		UserId:    user.ID,
		Username:  user.Username,
		Name:      user.Name,
		Role:      user.Role,
		ExpiresAt: time.Now().Add(lifespan),
	}, nil
}

// Logout destroys the current session.
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, utils.NewValidationError("token", "is required")
	}
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return false, err
	}
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return false, utils.NewNotFoundError("user")
	}
	if err := config.RemoveRedisSetMember("Tokens:"+username, token); err != nil {
		return false, err
	}
	return true, nil
}

func (user *User) DestroyAllSessions(ctx context.Context) error {
	allTokens, err := config.GetRedisSetMembers("Tokens:" + user.Username)
	if err != nil {
		return err
	}
	for _, token := range allTokens {
		if err := config.RemoveRedisKey("Token:" + token); err != nil {
			return err
		}
	}
	return config.RemoveRedisKey("Tokens:" + user.Username)
}

// SetUserActive enables or disables a login. The cached user is dropped so
// the session middleware sees the change on the next request, and disabling
// also ends every open session of that user.
func SetUserActive(ctx context.Context, username string, active bool) (*User, error) {
	var user User
	err := config.GetDB().WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("user")
	}
	if err != nil {
		return nil, err
	}

	if err := config.GetDB().WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).
		Update("is_active", active).Error; err != nil {
		return nil, err
	}
	user.IsActive = &active

	if err := user.RemoveInstanceRedis(); err != nil {
		return nil, err
	}
	if !active {
		if err := user.DestroyAllSessions(ctx); err != nil {
			return nil, err
		}
	}
	return &user, nil
}

// issuerNames resolves live display names for the report layer. Users that
// no longer resolve are simply absent from the map.
func issuerNames(tx *gorm.DB, ids []int) (map[int]string, error) {
	ids = utils.UniqueSlice(ids)
	names := make(map[int]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var users []*User
	if err := tx.Scopes(scopeNotDeleted).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		names[u.ID] = u.FormattedName()
	}
	return names, nil
}
