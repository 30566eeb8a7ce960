package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/taskpad/internal/models"
	"github.com/charlesng35/taskpad/internal/services"
	"github.com/charlesng35/taskpad/pkg/errors"
	"github.com/charlesng35/taskpad/pkg/metrics"
	"github.com/charlesng35/taskpad/pkg/response"
)

// AuthHandler exposes the account lifecycle over HTTP.
type AuthHandler struct {
	accounts *services.AccountService
}

func NewAuthHandler(accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72,password"`
	Name     string `json:"name" validate:"max=100"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type otpRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	OTP   string `json:"otp" validate:"required,len=4,numeric"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,maxbytes=72"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	OTP         string `json:"otp" validate:"required,len=4,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=6,maxbytes=72,password"`
}

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type sessionPayload struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      userPayload `json:"user"`
}

type accountPayload struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newSessionPayload(result *services.AuthResult) sessionPayload {
	return sessionPayload{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User: userPayload{
			ID:    result.Account.ID,
			Email: result.Account.Email,
			Name:  result.Account.DisplayName,
		},
	}
}

func newAccountPayload(account *models.Account) accountPayload {
	return accountPayload{
		ID:         account.ID,
		Email:      account.Email,
		Name:       account.DisplayName,
		IsVerified: account.IsVerified,
		CreatedAt:  account.CreatedAt,
	}
}

// recordAttempt counts the outcome of an auth operation by error code.
func recordAttempt(operation string, err error) {
	result := "success"
	if err != nil {
		result = errors.FromError(err).Code
	}
	metrics.AuthAttempts.WithLabelValues(operation, result).Inc()
}

// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.accounts.Signup(requestContext(c), services.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.Name,
	})
	recordAttempt("signup", err)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"email":      account.Email,
		"isVerified": account.IsVerified,
	})
}

// POST /api/auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req otpRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.accounts.VerifyEmail(requestContext(c), req.Email, req.OTP)
	recordAttempt("verify_email", err)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, newSessionPayload(result))
}

// POST /api/auth/resend-verification
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.accounts.ResendVerification(requestContext(c), req.Email)
	recordAttempt("resend", err)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"email": models.NormalizeEmail(req.Email)})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.accounts.Login(requestContext(c), req.Email, req.Password)
	recordAttempt("login", err)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, newSessionPayload(result))
}

// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.accounts.ForgotPassword(requestContext(c), req.Email)
	recordAttempt("forgot_password", err)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"email": models.NormalizeEmail(req.Email)})
}

// POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req otpRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.accounts.VerifyResetCode(requestContext(c), req.Email, req.OTP)
	recordAttempt("verify_otp", err)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.accounts.ResetPassword(requestContext(c), req.Email, req.OTP, req.NewPassword)
	recordAttempt("reset_password", err)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	accountID, ok := currentAccountID(c)
	if !ok {
		return
	}

	account, err := h.accounts.GetAccount(requestContext(c), accountID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, newAccountPayload(account))
}

// DELETE /api/auth/account
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	accountID, ok := currentAccountID(c)
	if !ok {
		return
	}

	err := h.accounts.DeleteAccount(requestContext(c), accountID)
	recordAttempt("delete_account", err)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
