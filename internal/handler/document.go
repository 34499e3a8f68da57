package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"collab-backend/internal/auth"
	"collab-backend/internal/document"
	"collab-backend/internal/middleware"
	"collab-backend/internal/model"
)

// DocumentHandler 문서 REST 핸들러
type DocumentHandler struct {
	store  document.Store
	access *middleware.DocumentMiddleware
}

// NewDocumentHandler DocumentHandler 생성
func NewDocumentHandler(store document.Store, access *middleware.DocumentMiddleware) *DocumentHandler {
	return &DocumentHandler{store: store, access: access}
}

// TrashRequest 휴지통 이동 요청
type TrashRequest struct {
	Note string `json:"note"`
}

// documentError 저장소 에러를 HTTP 응답으로 변환
func documentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, document.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "document not found",
		})
	case errors.Is(err, document.ErrInvalidID),
		errors.Is(err, document.ErrInvalidKind),
		errors.Is(err, document.ErrEmptyUpdate),
		errors.Is(err, document.ErrParentNeeded):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("[Document] store error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "document store error",
		})
	}
}

func kindAndID(c *fiber.Ctx) (model.DocumentKind, string) {
	kind, _ := c.Locals("documentKind").(model.DocumentKind)
	id, _ := c.Locals("documentID").(string)
	return kind, id
}

// GetDocument 문서 조회
func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	kind, id := kindAndID(c)

	doc, err := h.store.Fetch(c.UserContext(), kind, id)
	if err != nil {
		return documentError(c, err)
	}
	return c.JSON(doc)
}

// UpdateDocument 부분 업데이트 후 정규화된 행 반환
func (h *DocumentHandler) UpdateDocument(c *fiber.Ctx) error {
	kind, id := kindAndID(c)

	var req document.Update
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Empty() {
		return documentError(c, document.ErrEmptyUpdate)
	}

	doc, err := h.store.Update(c.UserContext(), kind, id, req)
	if err != nil {
		return documentError(c, err)
	}
	return c.JSON(doc)
}

// CreateDocument 문서 생성. 워크스페이스는 요청자가 소유자가 되고,
// 폴더/파일은 상위 워크스페이스 권한이 필요하다.
func (h *DocumentHandler) CreateDocument(c *fiber.Ctx) error {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}
	kind, _ := c.Locals("documentKind").(model.DocumentKind)

	var req document.NewDocument
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	req.Kind = kind

	switch kind {
	case model.KindWorkspace:
		req.OwnerID = claims.UserID
	case model.KindFolder:
		if err := h.access.RequireWorkspaceAccess(c, req.WorkspaceID); err != nil {
			return err
		}
	case model.KindFile:
		if !document.ValidID(req.FolderID) {
			return documentError(c, document.ErrParentNeeded)
		}
		folder, err := h.store.Fetch(c.UserContext(), model.KindFolder, req.FolderID)
		if err != nil {
			return documentError(c, err)
		}
		if err := h.access.RequireWorkspaceAccess(c, folder.WorkspaceID); err != nil {
			return err
		}
	}

	doc, err := h.store.Create(c.UserContext(), req)
	if err != nil {
		return documentError(c, err)
	}

	log.Info().Str("kind", string(kind)).Str("id", doc.ID).Str("user", claims.UserID).Msg("[Document] Created")
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// TrashDocument 휴지통으로 이동
func (h *DocumentHandler) TrashDocument(c *fiber.Ctx) error {
	kind, id := kindAndID(c)

	var req TrashRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
	}

	doc, err := h.store.Trash(c.UserContext(), kind, id, req.Note)
	if err != nil {
		return documentError(c, err)
	}
	return c.JSON(doc)
}

// RestoreDocument 휴지통에서 복원
func (h *DocumentHandler) RestoreDocument(c *fiber.Ctx) error {
	kind, id := kindAndID(c)

	doc, err := h.store.Restore(c.UserContext(), kind, id)
	if err != nil {
		return documentError(c, err)
	}
	return c.JSON(doc)
}

// DeleteDocument 영구 삭제 (하위 문서 포함)
func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	kind, id := kindAndID(c)

	removed, err := h.store.Delete(c.UserContext(), kind, id)
	if err != nil {
		return documentError(c, err)
	}

	log.Info().Str("kind", string(kind)).Str("id", id).Int("removed", len(removed)).Msg("[Document] Deleted")
	return c.JSON(fiber.Map{
		"deleted": removed,
	})
}
