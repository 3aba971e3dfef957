package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lease-service/internal/auth"
	"github.com/spec-kit/ticket-lease-service/internal/config"
	"github.com/spec-kit/ticket-lease-service/internal/domain"
	"github.com/spec-kit/ticket-lease-service/internal/repository"
	apperrors "github.com/spec-kit/ticket-lease-service/pkg/util/errorutil"
)

// AccountService manages accounts and issues tokens.
type AccountService struct {
	users      repository.UserStore
	ids        IDGenerator
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger

	Now func() time.Time
}

// AccountDependencies bundles collaborators for the account service.
type AccountDependencies struct {
	Users  repository.UserStore
	IDs    IDGenerator
	Logger *zap.Logger
}

// UserCreateInput describes a new account.
type UserCreateInput struct {
	Username string
	Password string
	Role     domain.Role
}

// UserUpdateInput carries editable account fields; nil leaves a field unchanged.
type UserUpdateInput struct {
	Username *string
	Password *string
	Role     *domain.Role
	Active   *bool
}

// NewAccountService builds the service.
func NewAccountService(cfg config.AuthConfig, deps AccountDependencies) *AccountService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		users:      deps.Users,
		ids:        deps.IDs,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes, cfg.RefreshTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
		Now:        time.Now,
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AccountService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Create registers an account after validating username, role and password.
func (s *AccountService) Create(ctx context.Context, input UserCreateInput) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	details := map[string]any{}
	if username == "" {
		details["username"] = []string{"This field may not be blank."}
	}
	if !input.Role.Valid() {
		details["role"] = []string{"Role must be one of: 'admin' or 'agent'."}
	}
	if problems := auth.PasswordProblems(input.Password); len(problems) > 0 {
		details["password"] = problems
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid user", details)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := storeTime(s.Now())
	user := &domain.User{
		ID:           s.ids.Next(),
		Username:     username,
		PasswordHash: hash,
		Role:         input.Role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewValidationError("invalid user", map[string]any{
				"username": []string{"A user with that username already exists."},
			})
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Update changes account fields. A new password goes through the same rules as on create.
func (s *AccountService) Update(ctx context.Context, userID int64, input UserUpdateInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	details := map[string]any{}
	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			details["username"] = []string{"This field may not be blank."}
		}
		user.Username = username
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			details["role"] = []string{"Role must be one of: 'admin' or 'agent'."}
		}
		user.Role = *input.Role
	}
	if input.Password != nil {
		if problems := auth.PasswordProblems(*input.Password); len(problems) > 0 {
			details["password"] = problems
		}
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid user", details)
	}

	if input.Password != nil {
		hash, err := auth.HashPassword(*input.Password, s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	if input.Active != nil {
		user.Active = *input.Active
	}
	user.UpdatedAt = storeTime(s.Now())

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewValidationError("invalid user", map[string]any{
				"username": []string{"A user with that username already exists."},
			})
		}
		return nil, err
	}
	return user, nil
}

// Delete removes an account. Unsold tickets it held go back to the pool.
func (s *AccountService) Delete(ctx context.Context, userID int64) error {
	if err := s.users.Delete(ctx, userID, storeTime(s.Now())); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return apperrors.NewConflict("user is referenced by sold or created tickets", map[string]any{"id": userID})
		}
		return err
	}
	s.logger.Info("user deleted", zap.Int64("user_id", userID))
	return nil
}

// Get returns one account.
func (s *AccountService) Get(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// GetByUsername returns one account by its login name.
func (s *AccountService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.users.GetByUsername(ctx, username)
}

// List pages through accounts ordered by username.
func (s *AccountService) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	return s.users.List(ctx, limit, offset)
}

// Usernames resolves the creators referenced by a batch of tickets.
func (s *AccountService) Usernames(ctx context.Context, tickets []domain.Ticket) (map[int64]string, error) {
	seen := make(map[int64]struct{})
	ids := make([]int64, 0, len(tickets))
	for _, t := range tickets {
		if t.CreatedBy == nil {
			continue
		}
		if _, ok := seen[*t.CreatedBy]; ok {
			continue
		}
		seen[*t.CreatedBy] = struct{}{}
		ids = append(ids, *t.CreatedBy)
	}
	return s.users.UsernamesByID(ctx, ids)
}

// Login checks credentials and issues an access and refresh token.
func (s *AccountService) Login(ctx context.Context, username, password string) (*domain.User, *domain.TokenPair, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NewUnauthorized("No active account found with the given credentials")
		}
		return nil, nil, err
	}
	if !user.Active || auth.ComparePassword(user.PasswordHash, password) != nil {
		return nil, nil, apperrors.NewUnauthorized("No active account found with the given credentials")
	}

	pair, err := s.tokenMgr.IssuePair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.tokenMgr.ParseToken(refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		return "", time.Time{}, apperrors.NewUnauthorized("Token is invalid or expired")
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil || !user.Active {
		return "", time.Time{}, apperrors.NewUnauthorized("Token is invalid or expired")
	}
	return s.tokenMgr.IssueAccess(user)
}
