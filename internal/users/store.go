package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/terratrac/eudr-backend/internal/store"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUsernameTaken = errors.New("username already taken")
	ErrMissingFields = errors.New("username and password are required")
	ErrInvalidRole   = errors.New("role must be admin or user")
	ErrUserNotFound  = errors.New("user not found")
)

const defaultRole = "user"

var validRoles = map[string]bool{"admin": true, "user": true}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{})
}

func (s *Store) conn(ctx context.Context) *gorm.DB { return s.db.WithContext(ctx) }

// List returns users, most recently joined first.
func (s *Store) List(ctx context.Context) ([]User, error) {
	var out []User
	err := s.conn(ctx).Order("created_at DESC").Order("id DESC").Find(&out).Error
	return out, err
}

func (s *Store) Get(ctx context.Context, id uint) (*User, error) {
	var u User
	if err := s.conn(ctx).First(&u, id).Error; err != nil {
		return nil, lookupErr(err)
	}
	return &u, nil
}

// Create hashes u.Password and inserts u. The plaintext is cleared.
func (s *Store) Create(ctx context.Context, u *User) error {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" || u.Password == "" {
		return ErrMissingFields
	}
	if u.Role == "" {
		u.Role = defaultRole
	}
	if !validRoles[u.Role] {
		return ErrInvalidRole
	}
	if err := hash(u); err != nil {
		return err
	}
	u.ID = 0
	if err := s.conn(ctx).Create(u).Error; err != nil {
		if store.IsDuplicate(err) {
			return ErrUsernameTaken
		}
		return err
	}
	return nil
}

// Update copies the editable fields of in onto user id. A non-empty
// in.Password replaces the stored hash.
func (s *Store) Update(ctx context.Context, id uint, in User) (*User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.Username); name != "" {
		u.Username = name
	}
	u.Email = in.Email
	u.FirstName = in.FirstName
	u.LastName = in.LastName
	if in.Role != "" {
		if !validRoles[in.Role] {
			return nil, ErrInvalidRole
		}
		u.Role = in.Role
	}
	if in.Password != "" {
		u.Password = in.Password
		if err := hash(u); err != nil {
			return nil, err
		}
	}
	if err := s.conn(ctx).Save(u).Error; err != nil {
		if store.IsDuplicate(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return u, nil
}

func (s *Store) Delete(ctx context.Context, id uint) error {
	res := s.conn(ctx).Delete(&User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RoleOf returns the role stored for username.
func (s *Store) RoleOf(ctx context.Context, username string) (string, error) {
	var u User
	if err := s.conn(ctx).Select("role").Where("username = ?", username).First(&u).Error; err != nil {
		return "", lookupErr(err)
	}
	return u.Role, nil
}

func hash(u *User) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.HashedPassword = string(hashed)
	u.Password = ""
	return nil
}

func lookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
