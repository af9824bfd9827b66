package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/lvidal/pricealert/internal/auth"
	"github.com/lvidal/pricealert/internal/services"
	"github.com/lvidal/pricealert/pkg/logger"
	"github.com/lvidal/pricealert/pkg/metrics"
	"github.com/lvidal/pricealert/pkg/response"
)

// AuthHandler exposes registration, login, and profile endpoints.
type AuthHandler struct {
	users        *services.UserService
	verification *services.VerificationService
	jwt          *iauth.JWTService
	log          *zap.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(users *services.UserService, verification *services.VerificationService, jwt *iauth.JWTService) (*AuthHandler, error) {
	if users == nil || jwt == nil {
		return nil, errors.New("auth handler: users and jwt services are required")
	}
	return &AuthHandler{
		users:        users,
		verification: verification,
		jwt:          jwt,
		log:          logger.WithModule("handlers.auth"),
	}, nil
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"max=120"`
}

// Register creates an account and kicks off email verification.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)
	user, err := h.users.Register(ctx, services.RegisterUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.verification != nil {
		if _, err := h.verification.Issue(ctx, user.ID); err != nil {
			// Account creation stands; the sweep retries the email later.
			h.log.Warn("verification issue failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	response.Success(c, http.StatusCreated, gin.H{"user": user})
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// Login verifies credentials and issues an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), req.Identifier, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(user.ID)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.GetByID(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}
