package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"collab-backend/internal/auth"
	"collab-backend/internal/model"
	"collab-backend/internal/service"
)

// CollaboratorHandler 워크스페이스 공동 편집자 핸들러
type CollaboratorHandler struct {
	db     *gorm.DB
	access *service.AccessService
}

// NewCollaboratorHandler CollaboratorHandler 생성
func NewCollaboratorHandler(db *gorm.DB, access *service.AccessService) *CollaboratorHandler {
	return &CollaboratorHandler{db: db, access: access}
}

// AddCollaboratorRequest 공동 편집자 추가 요청
type AddCollaboratorRequest struct {
	Email string `json:"email"`
}

// AddCollaborator 공동 편집자 추가 (소유자만)
func (h *CollaboratorHandler) AddCollaborator(c *fiber.Ctx) error {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}
	if kind, _ := c.Locals("documentKind").(model.DocumentKind); kind != model.KindWorkspace {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "collaborators belong to workspaces",
		})
	}
	workspaceID, _ := c.Locals("documentID").(string)

	if !h.access.IsWorkspaceOwner(c.UserContext(), workspaceID, claims.UserID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "only the workspace owner can add collaborators",
		})
	}

	var req AddCollaboratorRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "email is required",
		})
	}

	var user model.User
	err = h.db.WithContext(c.UserContext()).Where("email = ?", strings.TrimSpace(req.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "database error",
		})
	}

	if user.ID == claims.UserID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "owner is already a member",
		})
	}

	if err := h.access.AddCollaborator(c.UserContext(), workspaceID, user.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to add collaborator",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"workspaceId": workspaceID,
		"userId":      user.ID,
	})
}
