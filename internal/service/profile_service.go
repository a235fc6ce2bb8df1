package service

import (
	"errors"
	"strings"
	"time"

	"go-accounting-ws/internal/apperrors"
	"go-accounting-ws/internal/model"
	"go-accounting-ws/internal/repository"
	"go-accounting-ws/pkg/jwt"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrWrongPassword      = errors.New("current password is incorrect")
)

type ProfileService interface {
	Register(req *RegisterRequest) (*model.UserResponse, error)
	Login(email, password string) (*LoginResponse, error)
	GetProfile(userID uuid.UUID) (*model.UserResponse, error)
	UpdateDisplayName(userID uuid.UUID, displayName string) (*model.UserResponse, error)
	// ChangePassword also rotates the token version, so every issued token
	// stops working.
	ChangePassword(userID uuid.UUID, currentPassword, newPassword string) error
	DeleteAccount(userID uuid.UUID, password string) error
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"display_name" validate:"required,max=255"`
}

type LoginResponse struct {
	Token string             `json:"token"`
	User  model.UserResponse `json:"user"`
}

type profileService struct {
	userRepo repository.UserRepository
	tokens   *jwt.Manager
	log      *zap.Logger
	now      func() time.Time
}

func NewProfileService(userRepo repository.UserRepository, tokens *jwt.Manager, log *zap.Logger) ProfileService {
	return &profileService{userRepo: userRepo, tokens: tokens, log: log, now: time.Now}
}

func (s *profileService) Register(req *RegisterRequest) (*model.UserResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := validate(req); err != nil {
		return nil, err
	}
	if err := checkmail.ValidateFormat(req.Email); err != nil {
		return nil, apperrors.NewValidationError("email address is malformed")
	}

	existing, err := s.userRepo.FindByEmail(req.Email)
	if err == nil && existing != nil {
		return nil, apperrors.NewValidationError("email already registered")
	}
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, s.fail("register user", err)
	}

	user := &model.User{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		IsActive:    true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, s.fail("hash password", err)
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, s.fail("register user", err)
	}

	resp := user.ToResponse()
	return &resp, nil
}

func (s *profileService) Login(email, password string) (*LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, s.fail("log in", err)
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	// single session: a new version invalidates tokens issued before
	version := uuid.New().String()
	if err := s.userRepo.UpdateTokenVersion(user.ID, version); err != nil {
		return nil, s.fail("update session", err)
	}
	now := s.now()
	if err := s.userRepo.UpdateLastLogin(user.ID, now); err != nil {
		s.log.Warn("update last login failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	user.TokenVersion = version
	user.LastLoginAt = &now

	token, err := s.tokens.GenerateToken(user.ID, user.Email, user.DisplayName, version)
	if err != nil {
		return nil, s.fail("generate token", err)
	}
	return &LoginResponse{Token: token, User: user.ToResponse()}, nil
}

func (s *profileService) GetProfile(userID uuid.UUID) (*model.UserResponse, error) {
	user, err := s.find(userID)
	if err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *profileService) UpdateDisplayName(userID uuid.UUID, displayName string) (*model.UserResponse, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, apperrors.NewValidationError("display name is required")
	}
	if len(displayName) > 255 {
		return nil, apperrors.NewValidationError("display name is too long")
	}

	user, err := s.find(userID)
	if err != nil {
		return nil, err
	}
	user.DisplayName = displayName
	user.UpdatedBy = userID.String()
	if err := s.userRepo.Update(user); err != nil {
		return nil, s.fail("update profile", err)
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *profileService) ChangePassword(userID uuid.UUID, currentPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return apperrors.NewValidationError("new password must be at least 6 characters")
	}
	user, err := s.find(userID)
	if err != nil {
		return err
	}
	if !user.CheckPassword(currentPassword) {
		return ErrWrongPassword
	}

	if err := user.SetPassword(newPassword); err != nil {
		return s.fail("hash password", err)
	}
	if err := s.userRepo.UpdatePassword(user.ID, user.Password); err != nil {
		return s.fail("change password", err)
	}
	if err := s.userRepo.UpdateTokenVersion(user.ID, uuid.New().String()); err != nil {
		return s.fail("rotate session", err)
	}
	return nil
}

func (s *profileService) DeleteAccount(userID uuid.UUID, password string) error {
	user, err := s.find(userID)
	if err != nil {
		return err
	}
	if !user.CheckPassword(password) {
		return ErrWrongPassword
	}
	if err := s.userRepo.Delete(user.ID); err != nil {
		return s.fail("delete account", err)
	}
	s.log.Info("account deleted", zap.String("user_id", user.ID.String()))
	return nil
}

func (s *profileService) find(userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.NewNotFoundError("user", userID.String())
		}
		return nil, s.fail("load user", err)
	}
	return user, nil
}

func (s *profileService) fail(op string, err error) error {
	s.log.Error(op+" failed", zap.Error(err))
	return apperrors.NewOperationFailed(op, err)
}
