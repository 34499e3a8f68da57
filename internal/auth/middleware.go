package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ErrNoClaims 컨텍스트에 인증 정보 없음
var ErrNoClaims = errors.New("no claims in context")

// ExtractToken Authorization 헤더, 쿠키, token 쿼리 순서로 토큰 추출
func ExtractToken(c *fiber.Ctx) string {
	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
		return ""
	}
	if cookie := c.Cookies("access_token"); cookie != "" {
		return cookie
	}
	// 브라우저 WebSocket은 헤더를 못 붙이므로 쿼리 허용
	return c.Query("token")
}

// AuthMiddleware JWT 인증 미들웨어
func AuthMiddleware(jwtManager *JWTManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if authHeader := c.Get("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "invalid authorization header format",
				})
			}
		}

		token := ExtractToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization token",
			})
		}

		// 토큰 검증
		claims, err := jwtManager.ValidateAccessToken(token)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "token expired",
					"code":  "TOKEN_EXPIRED",
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}

		setClaims(c, claims)
		return c.Next()
	}
}

// OptionalAuthMiddleware 선택적 인증 미들웨어 (인증 실패해도 계속 진행)
func OptionalAuthMiddleware(jwtManager *JWTManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := ExtractToken(c); token != "" {
			if claims, err := jwtManager.ValidateAccessToken(token); err == nil {
				setClaims(c, claims)
			}
		}
		return c.Next()
	}
}

// setClaims 사용자 정보를 컨텍스트에 저장
func setClaims(c *fiber.Ctx, claims *Claims) {
	c.Locals("userID", claims.UserID)
	c.Locals("email", claims.Email)
	c.Locals("claims", claims)
}

// GetClaimsFromContext 컨텍스트에서 클레임 조회
func GetClaimsFromContext(c *fiber.Ctx) (*Claims, error) {
	claims, ok := c.Locals("claims").(*Claims)
	if !ok || claims == nil {
		return nil, ErrNoClaims
	}
	return claims, nil
}
