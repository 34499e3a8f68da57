package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"collab-backend/internal/auth"
	"collab-backend/internal/document"
	"collab-backend/internal/model"
	"collab-backend/internal/service"
)

// DocumentMiddleware 문서 권한 미들웨어
type DocumentMiddleware struct {
	access *service.AccessService
}

// NewDocumentMiddleware DocumentMiddleware 생성
func NewDocumentMiddleware(access *service.AccessService) *DocumentMiddleware {
	return &DocumentMiddleware{access: access}
}

// ParseKind URL의 :kind 파라미터 검증 후 컨텍스트에 저장
func ParseKind() fiber.Handler {
	return func(c *fiber.Ctx) error {
		kind, ok := model.ParseDocumentKind(c.Params("kind"))
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid document kind",
			})
		}
		c.Locals("documentKind", kind)
		return c.Next()
	}
}

// RequireAccess 문서 소유자 또는 공동 편집자 필수
func (m *DocumentMiddleware) RequireAccess() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := auth.GetClaimsFromContext(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		kind, ok := c.Locals("documentKind").(model.DocumentKind)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid document kind",
			})
		}

		// 잘못된 ID는 저장소에 닿기 전에 거부
		id := c.Params("id")
		if !document.ValidID(id) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid document ID",
			})
		}

		allowed, err := m.access.CanAccessDocument(c.UserContext(), kind, id, claims.UserID)
		if errors.Is(err, document.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "document not found",
			})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to check permission",
			})
		}
		if !allowed {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "not a workspace owner or collaborator",
			})
		}

		c.Locals("documentID", id)
		return c.Next()
	}
}

// RequireWorkspaceAccess 지정된 워크스페이스에 대한 권한 확인 (생성 요청용)
func (m *DocumentMiddleware) RequireWorkspaceAccess(c *fiber.Ctx, workspaceID string) error {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	if !document.ValidID(workspaceID) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid workspace ID")
	}
	if !m.access.CanAccessWorkspace(c.UserContext(), workspaceID, claims.UserID) {
		return fiber.NewError(fiber.StatusForbidden, "not a workspace owner or collaborator")
	}
	return nil
}
