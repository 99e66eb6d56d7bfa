package server

import (
	"log"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"glasses-cloud-be/internal/bootstrap"
	"glasses-cloud-be/internal/config"
	"glasses-cloud-be/internal/pkg/serverutils"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware())

	registerRoutes(app, container, cfg)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("✅ Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown() error {
	s.container.SessionService.Shutdown()
	return s.app.Shutdown()
}

func registerRoutes(app *fiber.App, c *bootstrap.Container, cfg *config.Config) {
	api := app.Group("/api")

	c.HealthController.RegisterRoutes(api)
	c.AppController.RegisterRoutes(api)
	c.StorageController.RegisterRoutes(api, serverutils.JwtMiddleware(cfg.Keys.JwtSecret))

	// Websocket endpoints. The upgrade guard rejects plain HTTP requests.
	upgrade := func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	}
	app.Use("/glasses-ws", upgrade)
	app.Get("/glasses-ws", websocket.New(func(conn *websocket.Conn) {
		c.WsHandler.ServeDevice(conn)
	}))
	app.Use("/app-ws", upgrade)
	app.Get("/app-ws", websocket.New(func(conn *websocket.Conn) {
		c.WsHandler.ServeApp(conn)
	}))
}
