package services

import (
	"context"
	"errors"
	"fmt"

	"storechat-gin/internal/auth"
	apperrors "storechat-gin/internal/errors"
	"storechat-gin/internal/models"
	"storechat-gin/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ===========================================================================
// Auth Service
// Đăng nhập/refresh token cho agent dashboard
// Engine không bao giờ authenticate end customer - webhook authenticate
// channel, widget dựa vào store slug
// ===========================================================================

// LoginResult kết quả đăng nhập
type LoginResult struct {
	Agent  *models.Agent
	Tokens *auth.TokenPair
}

// AuthService interface for authentication operations
type AuthService interface {
	// Login authenticates agent với store slug + email + password
	Login(ctx context.Context, storeSlug, email, password string) (*LoginResult, error)

	// RefreshTokens generate new token pair using refresh token
	RefreshTokens(ctx context.Context, refreshToken string) (*LoginResult, error)

	// GetAgentByID gets agent by ID
	GetAgentByID(ctx context.Context, agentID uuid.UUID) (*models.Agent, error)
}

// authServiceImpl implements AuthService
type authServiceImpl struct {
	agentRepo  repositories.AgentRepository
	storeRepo  repositories.StoreRepository
	jwtService *auth.JWTService
	logger     *zap.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	agentRepo repositories.AgentRepository,
	storeRepo repositories.StoreRepository,
	jwtService *auth.JWTService,
	logger *zap.Logger,
) AuthService {
	return &authServiceImpl{
		agentRepo:  agentRepo,
		storeRepo:  storeRepo,
		jwtService: jwtService,
		logger:     logger,
	}
}

// Login authenticates agent với email và password trong scope một store
func (s *authServiceImpl) Login(ctx context.Context, storeSlug, email, password string) (*LoginResult, error) {
	store, err := s.storeRepo.FindBySlug(ctx, storeSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find store by slug: %w", err)
	}

	agent, err := s.agentRepo.FindByEmail(ctx, store.ID, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		s.logger.Error("find agent by email failed",
			zap.Error(err),
			zap.String("email", email),
		)
		return nil, fmt.Errorf("find agent by email: %w", err)
	}

	if !agent.IsActive {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !agent.CheckPassword(password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	tokens, err := s.jwtService.GenerateTokenPair(agent)
	if err != nil {
		s.logger.Error("generate token failed",
			zap.Error(err),
			zap.String("agent_id", agent.ID.String()),
		)
		return nil, fmt.Errorf("generate token: %w", err)
	}

	agent.TouchLogin()
	if err := s.agentRepo.Update(ctx, agent); err != nil {
		// Vẫn cho đăng nhập, chỉ log warning
		s.logger.Warn("failed to touch agent login", zap.Error(err))
	}

	s.logger.Info("agent logged in",
		zap.String("agent_id", agent.ID.String()),
		zap.String("store_id", agent.StoreID.String()),
	)

	return &LoginResult{Agent: agent, Tokens: tokens}, nil
}

// RefreshTokens generates new token pair using refresh token
func (s *authServiceImpl) RefreshTokens(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		if err == auth.ErrExpiredToken {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}

	agent, err := s.agentRepo.FindByID(ctx, claims.AgentID)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	if !agent.IsActive {
		return nil, apperrors.ErrInvalidToken
	}

	tokens, err := s.jwtService.GenerateTokenPair(agent)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &LoginResult{Agent: agent, Tokens: tokens}, nil
}

// GetAgentByID gets agent by ID
func (s *authServiceImpl) GetAgentByID(ctx context.Context, agentID uuid.UUID) (*models.Agent, error) {
	agent, err := s.agentRepo.FindByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return agent, nil
}
