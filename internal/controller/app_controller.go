package controller

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"glasses-cloud-be/internal/dto"
	"glasses-cloud-be/internal/pkg/serverutils"
	"glasses-cloud-be/internal/service"
)

type IAppController interface {
	RegisterRoutes(r fiber.Router)
	Register(ctx *fiber.Ctx) error
	Heartbeat(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Start(ctx *fiber.Ctx) error
	Stop(ctx *fiber.Ctx) error
}

type appController struct {
	registry service.IAppRegistryService
	sessions service.ISessionService
	validate *validator.Validate
}

func NewAppController(registry service.IAppRegistryService, sessions service.ISessionService) IAppController {
	return &appController{
		registry: registry,
		sessions: sessions,
		validate: validator.New(),
	}
}

func (c *appController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/apps")
	h.Post("/register", c.Register)
	h.Post("/heartbeat", c.Heartbeat)
	h.Get("/", c.List)
	h.Post("/:sessionId/:packageName/start", c.Start)
	h.Post("/:sessionId/:packageName/stop", c.Stop)
}

func (c *appController) Register(ctx *fiber.Ctx) error {
	var req dto.RegisterAppRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "malformed body"))
	}
	if err := c.validate.Struct(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.registry.Register(ctx.Context(), req)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse(res))
}

func (c *appController) Heartbeat(ctx *fiber.Ctx) error {
	var req dto.HeartbeatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "malformed body"))
	}
	if err := c.validate.Struct(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	if err := c.registry.Heartbeat(ctx.Context(), req); err != nil {
		if errors.Is(err, service.ErrUnknownApp) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse(fiber.Map{"status": "ok"}))
}

func (c *appController) List(ctx *fiber.Ctx) error {
	apps, err := c.registry.List()
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse(apps))
}

func (c *appController) Start(ctx *fiber.Ctx) error {
	err := c.sessions.StartApp(ctx.Context(), ctx.Params("sessionId"), ctx.Params("packageName"))
	if err != nil {
		return appError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse(fiber.Map{"status": "starting"}))
}

func (c *appController) Stop(ctx *fiber.Ctx) error {
	err := c.sessions.StopApp(ctx.Params("sessionId"), ctx.Params("packageName"))
	if err != nil {
		return appError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse(fiber.Map{"status": "stopped"}))
}

func appError(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUnknownSession), errors.Is(err, service.ErrUnknownApp):
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
	default:
		return ctx.Status(fiber.StatusBadGateway).JSON(serverutils.ErrorResponse(502, err.Error()))
	}
}
