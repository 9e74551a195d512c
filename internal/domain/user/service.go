package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/medlab/lims/internal/platform/auth"
)

var (
	ErrNotFound = errors.New("user not found")
	// ErrInvalidCredentials covers unknown username, wrong password and
	// deactivated accounts alike, so a caller cannot probe for usernames.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

const minPasswordLength = 8

type Service struct {
	repo       Repository
	signingKey []byte
	tokenTTL   time.Duration
}

func NewService(repo Repository, signingKey []byte, tokenTTL time.Duration) *Service {
	return &Service{repo: repo, signingKey: signingKey, tokenTTL: tokenTTL}
}

// Create registers a new staff account with a bcrypt password hash.
func (s *Service) Create(ctx context.Context, u *User, password string) error {
	u.Username = strings.TrimSpace(strings.ToLower(u.Username))
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if u.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if !auth.ValidRoles[u.Role] {
		return fmt.Errorf("invalid role: %s", u.Role)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	u.Active = true

	if err := s.repo.Create(ctx, u); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("username %s already exists", u.Username)
		}
		return err
	}
	return nil
}

// Authenticate checks credentials and issues a signed token.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, *User, error) {
	username = strings.TrimSpace(strings.ToLower(username))

	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !u.Active {
		return "", nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(s.signingKey, u.ID.String(), u.FullName, []string{u.Role}, s.tokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Update modifies name, role and active flag. Username is immutable.
func (s *Service) Update(ctx context.Context, id uuid.UUID, fullName, role string, active bool) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if fullName != "" {
		u.FullName = fullName
	}
	if role != "" {
		if !auth.ValidRoles[role] {
			return nil, fmt.Errorf("invalid role: %s", role)
		}
		u.Role = role
	}
	u.Active = active

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SetPassword replaces a user's password.
func (s *Service) SetPassword(ctx context.Context, id uuid.UUID, password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return s.repo.Update(ctx, u)
}
