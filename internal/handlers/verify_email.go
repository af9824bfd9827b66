package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lvidal/pricealert/internal/services"
	apperrors "github.com/lvidal/pricealert/pkg/errors"
)

// VerifyEmailHandler serves the public verification-link endpoint. Responses
// are plain HTML pages since the link is opened in a browser, not by an API
// client.
type VerifyEmailHandler struct {
	verification *services.VerificationService
}

// NewVerifyEmailHandler constructs a VerifyEmailHandler.
func NewVerifyEmailHandler(verification *services.VerificationService) (*VerifyEmailHandler, error) {
	if verification == nil {
		return nil, errors.New("verify email handler: verification service is required")
	}
	return &VerifyEmailHandler{verification: verification}, nil
}

// Verify redeems the token from the query string.
func (h *VerifyEmailHandler) Verify(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		htmlMessage(c, http.StatusBadRequest, "Verification token is missing.")
		return
	}

	_, err := h.verification.Redeem(requestContext(c), token)
	switch {
	case err == nil:
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(verifiedPage))
	case errors.Is(err, apperrors.ErrTokenExpired):
		htmlMessage(c, http.StatusBadRequest, "Verification token has expired. Please try signing up or logging in again to receive a new one.")
	case errors.Is(err, apperrors.ErrTokenInvalid):
		htmlMessage(c, http.StatusBadRequest, "Invalid or already used verification token. Your email might already be verified.")
	default:
		htmlMessage(c, http.StatusInternalServerError, "Something went wrong while verifying your email. Please try again later.")
	}
}

func htmlMessage(c *gin.Context, status int, message string) {
	body := "<html><body style='font-family: sans-serif; text-align: center; padding: 20px;'><p>" + message + "</p></body></html>"
	c.Data(status, "text/html; charset=utf-8", []byte(body))
}

const verifiedPage = `<html>
  <body style="font-family: sans-serif; text-align: center; padding: 40px; color: #333;">
    <div style="max-width: 600px; margin: auto; border: 1px solid #ddd; border-radius: 8px; padding: 20px;">
      <h1 style="color: #007bff;">Email Verified!</h1>
      <p>Your email address has been successfully verified.</p>
      <p>You can now close this tab and start tracking prices.</p>
      <p style="margin-top: 30px;"><a href="/" style="display: inline-block; padding: 10px 20px; background-color: #28a745; color: white; text-decoration: none; border-radius: 5px;">Go to App</a></p>
    </div>
  </body>
</html>`
