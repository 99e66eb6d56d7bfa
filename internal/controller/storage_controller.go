package controller

import (
	"github.com/gofiber/fiber/v2"

	"glasses-cloud-be/internal/pkg/serverutils"
	"glasses-cloud-be/internal/service"
)

type IStorageController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	GetValue(ctx *fiber.Ctx) error
	SetValue(ctx *fiber.Ctx) error
	GetPreferences(ctx *fiber.Ctx) error
	SetPreference(ctx *fiber.Ctx) error
}

// storageController exposes per-app key-value storage and per-user
// preferences. All routes sit behind the session-token JWT middleware.
type storageController struct {
	storage service.IStorageService
}

func NewStorageController(storage service.IStorageService) IStorageController {
	return &storageController{storage: storage}
}

func (c *storageController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/storage", auth)
	h.Get("/preferences", c.GetPreferences)
	h.Put("/preferences/:key", c.SetPreference)
	h.Get("/:packageName/:key", c.GetValue)
	h.Put("/:packageName/:key", c.SetValue)
}

func (c *storageController) GetValue(ctx *fiber.Ctx) error {
	value, err := c.storage.GetAppValue(ctx.Context(), ctx.Params("packageName"), ctx.Params("key"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse(fiber.Map{"value": value}))
}

func (c *storageController) SetValue(ctx *fiber.Ctx) error {
	var body struct {
		Value string `json:"value"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "malformed body"))
	}
	if err := c.storage.SetAppValue(ctx.Context(), ctx.Params("packageName"), ctx.Params("key"), body.Value); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse(fiber.Map{"status": "ok"}))
}

func (c *storageController) GetPreferences(ctx *fiber.Ctx) error {
	userID, _ := ctx.Locals("user_id").(string)
	if userID == "" {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "missing user identity"))
	}
	prefs, err := c.storage.GetPreferences(ctx.Context(), userID)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse(prefs))
}

func (c *storageController) SetPreference(ctx *fiber.Ctx) error {
	userID, _ := ctx.Locals("user_id").(string)
	if userID == "" {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "missing user identity"))
	}
	var body struct {
		Value string `json:"value"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "malformed body"))
	}
	if err := c.storage.SetPreference(ctx.Context(), userID, ctx.Params("key"), body.Value); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse(fiber.Map{"status": "ok"}))
}
