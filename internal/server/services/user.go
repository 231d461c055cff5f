// Package services contains server-side business logic. This file implements
// UserService, the account directory: account creation, credential checks,
// and issuing/refreshing JWTs plus server-stored refresh tokens.
package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/recipekeeper/internal/common"
	"github.com/dmitrijs2005/recipekeeper/internal/cryptox"
	"github.com/dmitrijs2005/recipekeeper/internal/dbx"
	"github.com/dmitrijs2005/recipekeeper/internal/server/auth"
	"github.com/dmitrijs2005/recipekeeper/internal/server/config"
	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
	"github.com/dmitrijs2005/recipekeeper/internal/server/repositories/repomanager"
	"github.com/jmoiron/sqlx"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserFields are the optional attributes accepted at account creation.
// Nil flags keep their defaults: active, not staff, not superuser.
type UserFields struct {
	Name        string
	IsActive    *bool
	IsStaff     *bool
	IsSuperuser *bool
}

// ProfileUpdate lists the profile fields a user may change. Nil means keep.
type ProfileUpdate struct {
	Email    *string
	Name     *string
	Password *string
}

// UserService owns account creation, authentication and token issuance.
type UserService struct {
	db                           *sqlx.DB
	repomanager                  repomanager.RepositoryManager
	hasher                       cryptox.PasswordHasher
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sqlx.DB, m repomanager.RepositoryManager, hasher cryptox.PasswordHasher, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		hasher:                       hasher,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// NormalizeEmail returns the identity key for email: the whole address
// lowercased, local part included.
func NormalizeEmail(email string) string {
	return strings.ToLower(email)
}

// CreateUser stores a regular account. An empty email fails with
// common.ErrInvalidArgument before the store is touched; an email that is
// already registered after normalization fails with common.ErrUniqueViolation.
func (s *UserService) CreateUser(ctx context.Context, email, password string, fields *UserFields) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: users must have an email address", common.ErrInvalidArgument)
	}

	user := &models.User{
		Email:    NormalizeEmail(email),
		IsActive: true,
	}
	if fields != nil {
		user.Name = fields.Name
		if fields.IsActive != nil {
			user.IsActive = *fields.IsActive
		}
		if fields.IsStaff != nil {
			user.IsStaff = *fields.IsStaff
		}
		if fields.IsSuperuser != nil {
			user.IsSuperuser = *fields.IsSuperuser
		}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidArgument, err)
	}
	user.Password = hash

	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// CreateSuperuser stores an account with both staff and superuser flags set.
func (s *UserService) CreateSuperuser(ctx context.Context, email, password string) (*models.User, error) {
	yes := true
	return s.CreateUser(ctx, email, password, &UserFields{IsStaff: &yes, IsSuperuser: &yes})
}

// Authenticate returns the active user owning email and password.
// Unknown emails, wrong passwords and inactive accounts all yield
// common.ErrorUnauthorized and cost one hash verification each.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" {
		s.burnVerification(password)
		return nil, common.ErrorUnauthorized
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnVerification(password)
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if !user.CheckPassword(password) || !user.IsActive {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

// Login authenticates the credentials and, on success, returns a new TokenPair.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.generateTokenPair(ctx, user.ID, s.db)
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
// Unknown tokens and tokens of inactive or missing accounts yield
// ErrInvalidToken.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(time.Now()) {
		_ = repo.Delete(ctx, refreshToken)
		return nil, common.ErrRefreshTokenExpired
	}

	// Deactivated and removed accounts lose their refresh tokens on first use.
	user, err := s.repomanager.Users(s.db).GetByID(ctx, token.UserID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	if err != nil || !user.IsActive {
		_ = repo.Delete(ctx, refreshToken)
		return nil, common.ErrInvalidToken
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.RefreshTokens(tx)
		if err := repoTx.Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, token.UserID, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// PurgeExpiredTokens drops refresh tokens whose expiry has passed.
func (s *UserService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx, time.Now())
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}

// UpdateProfile applies upd to the user with id in one transaction.
func (s *UserService) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*models.User, error) {
	var hash string
	if upd.Password != nil {
		h, err := s.hasher.Hash(*upd.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidArgument, err)
		}
		hash = h
	}
	if upd.Email != nil && *upd.Email == "" {
		return nil, fmt.Errorf("%w: users must have an email address", common.ErrInvalidArgument)
	}

	var user *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		u, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if upd.Email != nil {
			u.Email = NormalizeEmail(*upd.Email)
		}
		if upd.Name != nil {
			u.Name = *upd.Name
		}
		if upd.Email != nil || upd.Name != nil {
			if err := repo.Update(ctx, u); err != nil {
				return err
			}
		}
		if hash != "" {
			if err := repo.SetPassword(ctx, u.ID, hash); err != nil {
				return err
			}
			u.Password = hash
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error updating user: %w", err)
	}
	return user, nil
}

// SetPassword replaces the password of the account registered under email.
func (s *UserService) SetPassword(ctx context.Context, email, password string) error {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("error searching user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidArgument, err)
	}

	if err := repo.SetPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("error setting password: %w", err)
	}
	return nil
}

// --- helpers below ---

// burnVerification runs one verification against a throwaway hash so a
// missing account takes as long to reject as a wrong password.
func (s *UserService) burnVerification(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(hex.EncodeToString(common.GenerateRandByteArray(16)))
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}

func (s *UserService) generateAccessToken(userID string) (string, error) {
	return auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *UserService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *UserService) generateTokenPair(ctx context.Context, userID string, tx dbx.DBTX) (*TokenPair, error) {
	access, err := s.generateAccessToken(userID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	refreshRepo := s.repomanager.RefreshTokens(tx)
	if err := refreshRepo.Create(ctx, userID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
