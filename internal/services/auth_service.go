// internal/services/auth_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/refurbly/consign-backend/internal/config"
	"github.com/refurbly/consign-backend/internal/models"
	"github.com/refurbly/consign-backend/internal/utils"
)

// AuthService authenticates operators and resellers. The rest of the system
// trusts the identity it issues and only re-validates ownership.
type AuthService struct {
	db                  *gorm.DB
	cfg                 *config.Config
	notificationService *NotificationService
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	UserID       uuid.UUID       `json:"user_id"`
	Name         string          `json:"name"`
	UserType     models.UserType `json:"user_type"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int             `json:"expires_in"` // in seconds
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,strong_password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,strong_password"`
}

func NewAuthService(db *gorm.DB, cfg *config.Config, notificationService *NotificationService) *AuthService {
	return &AuthService{
		db:                  db,
		cfg:                 cfg,
		notificationService: notificationService,
	}
}

// Login authenticates by email against operators first, then resellers.
func (s *AuthService) Login(req *LoginRequest) (*AuthResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("validation failed: %v", err)}
	}

	var operator models.Operator
	if err := s.db.Where("email = ?", req.Email).First(&operator).Error; err == nil {
		if err := operator.CheckPassword(req.Password); err != nil {
			return nil, &UnauthorizedError{Message: "invalid credentials"}
		}
		s.touchLogin(&models.Operator{}, operator.ID)
		return s.issueTokens(operator.ID, operator.Username, models.UserTypeOperator)
	}

	var reseller models.Reseller
	if err := s.db.Where("email = ?", req.Email).First(&reseller).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &UnauthorizedError{Message: "invalid credentials"}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := reseller.CheckPassword(req.Password); err != nil {
		return nil, &UnauthorizedError{Message: "invalid credentials"}
	}
	if !reseller.IsActive {
		return nil, &UnauthorizedError{Message: "account is deactivated"}
	}

	s.touchLogin(&models.Reseller{}, reseller.ID)
	return s.issueTokens(reseller.ID, reseller.Name, models.UserTypeReseller)
}

// Refresh exchanges a valid refresh token for a new token pair.
func (s *AuthService) Refresh(refreshToken string) (*AuthResponse, error) {
	claims, err := utils.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, &UnauthorizedError{Message: "invalid refresh token"}
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, &UnauthorizedError{Message: "invalid refresh token"}
	}

	switch models.UserType(claims.UserType) {
	case models.UserTypeOperator:
		var operator models.Operator
		if err := s.db.First(&operator, "id = ?", userID).Error; err != nil {
			return nil, &UnauthorizedError{Message: "account no longer exists"}
		}
		return s.issueTokens(operator.ID, operator.Username, models.UserTypeOperator)
	case models.UserTypeReseller:
		var reseller models.Reseller
		if err := s.db.First(&reseller, "id = ?", userID).Error; err != nil {
			return nil, &UnauthorizedError{Message: "account no longer exists"}
		}
		if !reseller.IsActive {
			return nil, &UnauthorizedError{Message: "account is deactivated"}
		}
		return s.issueTokens(reseller.ID, reseller.Name, models.UserTypeReseller)
	default:
		return nil, &UnauthorizedError{Message: "invalid refresh token"}
	}
}

// ChangePassword verifies the current password before setting the new one.
func (s *AuthService) ChangePassword(userID uuid.UUID, userType models.UserType, req *ChangePasswordRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return &ValidationError{Message: fmt.Sprintf("validation failed: %v", err)}
	}

	switch userType {
	case models.UserTypeOperator:
		var operator models.Operator
		if err := s.db.First(&operator, "id = ?", userID).Error; err != nil {
			return &NotFoundError{Resource: "operator", ID: userID}
		}
		if err := operator.CheckPassword(req.CurrentPassword); err != nil {
			return &UnauthorizedError{Message: "current password is incorrect"}
		}
		if err := operator.SetPassword(req.NewPassword); err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		return s.db.Save(&operator).Error
	case models.UserTypeReseller:
		var reseller models.Reseller
		if err := s.db.First(&reseller, "id = ?", userID).Error; err != nil {
			return &NotFoundError{Resource: "reseller", ID: userID}
		}
		if err := reseller.CheckPassword(req.CurrentPassword); err != nil {
			return &UnauthorizedError{Message: "current password is incorrect"}
		}
		if err := reseller.SetPassword(req.NewPassword); err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		return s.db.Save(&reseller).Error
	default:
		return &ValidationError{Message: "unknown user type"}
	}
}

// ForgotPassword issues a reset token and mails it. Always succeeds from the
// caller's perspective so account existence is not leaked.
func (s *AuthService) ForgotPassword(req *ForgotPasswordRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return &ValidationError{Message: fmt.Sprintf("validation failed: %v", err)}
	}

	token, err := utils.GenerateResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	expires := time.Now().Add(2 * time.Hour)

	var operator models.Operator
	if err := s.db.Where("email = ?", req.Email).First(&operator).Error; err == nil {
		operator.ResetToken = token
		operator.ResetTokenExpires = &expires
		if err := s.db.Save(&operator).Error; err != nil {
			return fmt.Errorf("failed to save reset token: %w", err)
		}
		go s.sendReset(operator.Email, operator.Username, token)
		return nil
	}

	var reseller models.Reseller
	if err := s.db.Where("email = ?", req.Email).First(&reseller).Error; err == nil {
		reseller.ResetToken = token
		reseller.ResetTokenExpires = &expires
		if err := s.db.Save(&reseller).Error; err != nil {
			return fmt.Errorf("failed to save reset token: %w", err)
		}
		go s.sendReset(reseller.Email, reseller.Name, token)
	}

	return nil
}

// ResetPassword consumes a reset token.
func (s *AuthService) ResetPassword(req *ResetPasswordRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return &ValidationError{Message: fmt.Sprintf("validation failed: %v", err)}
	}

	now := time.Now()

	var operator models.Operator
	if err := s.db.Where("reset_token = ?", req.Token).First(&operator).Error; err == nil {
		if operator.ResetTokenExpires == nil || operator.ResetTokenExpires.Before(now) {
			return &ValidationError{Message: "reset token has expired"}
		}
		if err := operator.SetPassword(req.NewPassword); err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		operator.ResetToken = ""
		operator.ResetTokenExpires = nil
		return s.db.Save(&operator).Error
	}

	var reseller models.Reseller
	if err := s.db.Where("reset_token = ?", req.Token).First(&reseller).Error; err != nil {
		return &ValidationError{Message: "invalid reset token"}
	}
	if reseller.ResetTokenExpires == nil || reseller.ResetTokenExpires.Before(now) {
		return &ValidationError{Message: "reset token has expired"}
	}
	if err := reseller.SetPassword(req.NewPassword); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	reseller.ResetToken = ""
	reseller.ResetTokenExpires = nil
	return s.db.Save(&reseller).Error
}

// GetProfile returns the authenticated account.
func (s *AuthService) GetProfile(userID uuid.UUID, userType models.UserType) (interface{}, error) {
	switch userType {
	case models.UserTypeOperator:
		var operator models.Operator
		if err := s.db.First(&operator, "id = ?", userID).Error; err != nil {
			return nil, &NotFoundError{Resource: "operator", ID: userID}
		}
		return &operator, nil
	case models.UserTypeReseller:
		var reseller models.Reseller
		if err := s.db.First(&reseller, "id = ?", userID).Error; err != nil {
			return nil, &NotFoundError{Resource: "reseller", ID: userID}
		}
		return &reseller, nil
	default:
		return nil, &ValidationError{Message: "unknown user type"}
	}
}

func (s *AuthService) issueTokens(userID uuid.UUID, name string, userType models.UserType) (*AuthResponse, error) {
	accessToken, err := utils.GenerateJWT(userID, name, string(userType), s.cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := utils.GenerateRefreshToken(userID, string(userType), s.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &AuthResponse{
		UserID:       userID,
		Name:         name,
		UserType:     userType,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.cfg.JWT.AccessTokenTTL * 3600,
	}, nil
}

func (s *AuthService) touchLogin(model interface{}, id uuid.UUID) {
	now := time.Now()
	s.db.Model(model).Where("id = ?", id).Update("last_login_at", now)
}

func (s *AuthService) sendReset(email, name, token string) {
	if s.notificationService != nil {
		s.notificationService.SendPasswordReset(email, name, token)
	}
}
