package handler

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"collab-backend/internal/auth"
	"collab-backend/internal/model"
)

// AuthHandler 인증 핸들러 (로그인 프로토콜 자체는 외부 담당, 토큰 갱신과 신원 조회만)
type AuthHandler struct {
	db           *gorm.DB
	jwtManager   *auth.JWTManager
	secureCookie bool
}

// NewAuthHandler AuthHandler 생성
func NewAuthHandler(db *gorm.DB, jwtManager *auth.JWTManager, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		db:           db,
		jwtManager:   jwtManager,
		secureCookie: secureCookie,
	}
}

// UserResponse 사용자 응답
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Handle    string `json:"handle"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// IssueAccessToken 사용자 행으로부터 액세스 토큰 발급
func IssueAccessToken(jwtManager *auth.JWTManager, user *model.User) (string, error) {
	handle := auth.HandleFromEmail(user.Email)
	if user.FullName != nil && *user.FullName != "" {
		handle = *user.FullName
	}
	avatar := ""
	if user.AvatarURL != nil {
		avatar = *user.AvatarURL
	}
	return jwtManager.GenerateAccessToken(user.ID, user.Email, handle, avatar)
}

// RefreshToken 토큰 갱신
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	refreshToken := c.Cookies("refresh_token")
	if refreshToken == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "refresh token not found",
		})
	}

	// 리프레시 토큰 검증
	userID, err := h.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		h.clearRefreshCookie(c)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid or expired refresh token",
		})
	}

	var user model.User
	if err := h.db.WithContext(c.UserContext()).First(&user, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "user not found",
		})
	}

	accessToken, err := IssueAccessToken(h.jwtManager, &user)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to generate token",
		})
	}

	return c.JSON(fiber.Map{
		"access_token": accessToken,
		"expires_in":   int64(h.jwtManager.AccessExpiry().Seconds()),
	})
}

// Logout 로그아웃
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.clearRefreshCookie(c)
	return c.JSON(fiber.Map{
		"message": "logged out successfully",
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   h.secureCookie,
		HTTPOnly: true,
	})
}

// GetMe 현재 사용자 신원 (프레즌스 레코드의 원천)
func (h *AuthHandler) GetMe(c *fiber.Ctx) error {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	var user model.User
	if err := h.db.WithContext(c.UserContext()).First(&user, "id = ?", claims.UserID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user not found",
		})
	}

	identity := claims.Identity()
	return c.JSON(UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Handle:    identity.Handle,
		AvatarURL: identity.AvatarURL,
	})
}
