package customers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greenbasket/greenbasket-backend/pkg/auth"
	"github.com/greenbasket/greenbasket-backend/pkg/auth/session"
	"github.com/greenbasket/greenbasket-backend/pkg/config"
	"github.com/greenbasket/greenbasket-backend/pkg/db/models"
	"github.com/greenbasket/greenbasket-backend/pkg/enums"
	pkgerrors "github.com/greenbasket/greenbasket-backend/pkg/errors"
	"github.com/greenbasket/greenbasket-backend/pkg/logger"
	"github.com/greenbasket/greenbasket-backend/pkg/security"
)

// sessionManager is the slice of session.Manager the service uses.
type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// RegisterInput carries a new customer registration.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
	Phone    string
	Address  string
}

// ProfileInput carries the editable profile fields.
type ProfileInput struct {
	FullName string
	Phone    string
	Address  string
}

// StaffInput carries a new staff account registration.
type StaffInput struct {
	Username string
	Email    string
	Password string
	FullName string
	Phone    string
	Role     enums.StaffRole
}

// TokenPair is the access/refresh pair issued on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service defines account and authentication operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Customer, error)
	Login(ctx context.Context, identifier, password string) (*models.Customer, *TokenPair, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accessID string) error

	GetProfile(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
	UpdateProfile(ctx context.Context, customerID uuid.UUID, input ProfileInput) (*models.Customer, error)
	ChangePassword(ctx context.Context, customerID uuid.UUID, current, next string) error

	RegisterStaff(ctx context.Context, input StaffInput) (*models.StaffAccount, error)
	LoginStaff(ctx context.Context, identifier, password string) (*models.StaffAccount, *TokenPair, error)
	ToggleStaffStatus(ctx context.Context, staffID uuid.UUID) (*models.StaffAccount, error)
}

type service struct {
	repo        *Repository
	sessions    sessionManager
	jwtConfig   config.JWTConfig
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

// NewService wires account dependencies.
func NewService(repo *Repository, sessions sessionManager, jwtConfig config.JWTConfig, passwordCfg config.PasswordConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "customers repository required")
	}
	if sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "session manager required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		repo:        repo,
		sessions:    sessions,
		jwtConfig:   jwtConfig,
		passwordCfg: passwordCfg,
		logg:        logg,
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Customer, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and email required")
	}
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	usernameTaken, emailTaken, err := s.repo.CustomerExists(ctx, username, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing customer")
	}
	if usernameTaken {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
	}
	if emailTaken {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	customer := &models.Customer{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(input.FullName),
		Phone:        strings.TrimSpace(input.Phone),
		Address:      strings.TrimSpace(input.Address),
		IsActive:     true,
	}
	if err := s.repo.CreateCustomer(ctx, customer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create customer")
	}

	s.logg.Info(s.logg.WithCustomerID(ctx, customer.ID.String()), "customer registered")
	return customer, nil
}

func (s *service) Login(ctx context.Context, identifier, password string) (*models.Customer, *TokenPair, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "credentials required")
	}

	customer, err := s.repo.FindCustomerByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, invalidCredentials()
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	if !customer.IsActive {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is disabled")
	}

	ok, err := security.VerifyPassword(password, customer.PasswordHash)
	if err != nil || !ok {
		return nil, nil, invalidCredentials()
	}

	pair, err := s.issueTokens(ctx, customer.ID, enums.ActorRoleCustomer)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	if err := s.repo.StampCustomerLogin(ctx, customer.ID, now); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp login")
	}
	customer.LastLoginAt = &now

	return customer, pair, nil
}

func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error) {
	claims, err := auth.ParseAccessTokenAllowExpired(s.jwtConfig, accessToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	access, err := auth.MintAccessToken(s.jwtConfig, time.Now(), auth.AccessTokenPayload{
		UserID: claims.UserID,
		Role:   claims.Role,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &TokenPair{AccessToken: access, RefreshToken: newRefresh}, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "access id required")
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) GetProfile(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	customer, err := s.repo.FindCustomerByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return customer, nil
}

func (s *service) UpdateProfile(ctx context.Context, customerID uuid.UUID, input ProfileInput) (*models.Customer, error) {
	customer, err := s.GetProfile(ctx, customerID)
	if err != nil {
		return nil, err
	}

	customer.FullName = strings.TrimSpace(input.FullName)
	customer.Phone = strings.TrimSpace(input.Phone)
	customer.Address = strings.TrimSpace(input.Address)
	if err := s.repo.UpdateCustomer(ctx, customer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}
	return customer, nil
}

func (s *service) ChangePassword(ctx context.Context, customerID uuid.UUID, current, next string) error {
	if len(next) < 8 {
		return pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	customer, err := s.GetProfile(ctx, customerID)
	if err != nil {
		return err
	}

	ok, err := security.VerifyPassword(current, customer.PasswordHash)
	if err != nil || !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "current password is incorrect")
	}

	hash, err := security.HashPassword(next, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	customer.PasswordHash = hash
	if err := s.repo.UpdateCustomer(ctx, customer); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update password")
	}
	return nil
}

func (s *service) RegisterStaff(ctx context.Context, input StaffInput) (*models.StaffAccount, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and email required")
	}
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	role := input.Role
	if role == "" {
		role = enums.StaffRoleStaff
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid staff role")
	}

	usernameTaken, emailTaken, err := s.repo.StaffExists(ctx, username, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing staff")
	}
	if usernameTaken {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
	}
	if emailTaken {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	staff := &models.StaffAccount{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(input.FullName),
		Phone:        strings.TrimSpace(input.Phone),
		Role:         role,
		IsActive:     true,
	}
	if err := s.repo.CreateStaff(ctx, staff); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create staff account")
	}
	return staff, nil
}

func (s *service) LoginStaff(ctx context.Context, identifier, password string) (*models.StaffAccount, *TokenPair, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "credentials required")
	}

	staff, err := s.repo.FindStaffByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, invalidCredentials()
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load staff account")
	}
	if !staff.IsActive {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is disabled")
	}

	ok, err := security.VerifyPassword(password, staff.PasswordHash)
	if err != nil || !ok {
		return nil, nil, invalidCredentials()
	}

	role := enums.ActorRoleStaff
	if staff.Role == enums.StaffRoleAdmin {
		role = enums.ActorRoleAdmin
	}
	pair, err := s.issueTokens(ctx, staff.ID, role)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	if err := s.repo.StampStaffLogin(ctx, staff.ID, now); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp login")
	}
	staff.LastLoginAt = &now

	return staff, pair, nil
}

func (s *service) ToggleStaffStatus(ctx context.Context, staffID uuid.UUID) (*models.StaffAccount, error) {
	if staffID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "staff id required")
	}
	staff, err := s.repo.FindStaffByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "staff account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load staff account")
	}

	if err := s.repo.SetStaffActive(ctx, staffID, !staff.IsActive); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle staff status")
	}
	staff.IsActive = !staff.IsActive
	return staff, nil
}

func (s *service) issueTokens(ctx context.Context, userID uuid.UUID, role enums.ActorRole) (*TokenPair, error) {
	accessID := session.NewAccessID()
	access, err := auth.MintAccessToken(s.jwtConfig, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	refresh, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refresh session")
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func invalidCredentials() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}
