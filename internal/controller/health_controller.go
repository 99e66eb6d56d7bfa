package controller

import (
	"github.com/gofiber/fiber/v2"

	"glasses-cloud-be/internal/dto"
	"glasses-cloud-be/internal/pkg/serverutils"
	"glasses-cloud-be/internal/service"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	sessions service.ISessionService
}

func NewHealthController(sessions service.ISessionService) IHealthController {
	return &healthController{sessions: sessions}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
}

func (c *healthController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse(dto.HealthResponse{
		Status:         "ok",
		ActiveSessions: c.sessions.ActiveSessionCount(),
	}))
}
