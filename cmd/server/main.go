// main.go
//
// Linked project space synchronization service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of spacelink.
// spacelink is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// spacelink is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with spacelink.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"

	"github.com/localnerve/spacelink/internal/cache"
	"github.com/localnerve/spacelink/internal/config"
	"github.com/localnerve/spacelink/internal/database"
	"github.com/localnerve/spacelink/internal/handlers"
	"github.com/localnerve/spacelink/internal/middleware"
	"github.com/localnerve/spacelink/internal/registry"
	"github.com/localnerve/spacelink/internal/release"
	"github.com/localnerve/spacelink/internal/sync"
	"github.com/localnerve/spacelink/internal/types"

	_ "github.com/localnerve/spacelink/docs/api" // Swagger docs
)

// @title Spacelink API
// @version 1.0.0
// @description Linked project space synchronization service
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/spacelink
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Fixture item cache backend
	var kv cache.KV
	if cfg.RedisAddr != "" {
		kv = cache.NewRedis(cfg.RedisAddr, cfg.RedisDB)
	} else {
		kv = cache.NewMemory()
	}

	reg := registry.New(db)
	engine := sync.NewEngine(db, kv, cfg)
	releaser := release.NewReleaser(engine, reg, release.NewMailer(cfg))
	dispatcher := release.NewDispatcher(releaser)
	dispatcher.Start()
	defer dispatcher.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: false,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("spacelink")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Linked-data endpoints served to downstream installations.
	// Every route requires api key auth; all but the release-source
	// route additionally require the caller to be an active downstream
	// partner (release source checks the app's own allowlist).
	linkedData := &handlers.LinkedDataHandler{DB: db}
	linked := app.Group("/a/:domain/linked", middleware.RequireAPIKey(db))
	linked.Get("/release_source/:app_id", linkedData.GetReleaseSource)

	partner := linked.Group("", middleware.RequireLinkPartner(reg))
	partner.Get("/toggles", linkedData.GetToggles)
	partner.Get("/custom_data_models", linkedData.GetCustomData)
	partner.Get("/user_roles", linkedData.GetUserRoles)
	partner.Get("/fixture/:tag", linkedData.GetFixture)
	partner.Get("/fixtures", linkedData.GetFixtureList)
	partner.Get("/case_search_config", linkedData.GetCaseSearchConfig)
	partner.Get("/dialer_settings", linkedData.GetDialerSettings)
	partner.Get("/otp_settings", linkedData.GetOTPSettings)
	partner.Get("/hmac_callout_settings", linkedData.GetHMACCalloutSettings)
	partner.Get("/tableau_config", linkedData.GetTableauConfig)
	partner.Get("/data_dictionary", linkedData.GetDataDictionary)
	partner.Get("/auto_update_rules", linkedData.GetAutoUpdateRules)
	partner.Get("/ucr_config/:id", linkedData.GetUCRConfig)
	partner.Get("/reports", linkedData.GetReportList)
	partner.Get("/keywords", linkedData.GetKeywords)
	partner.Get("/app_by_version/:app_id/:version", linkedData.GetAppByVersion)
	partner.Get("/released_app_versions", linkedData.GetReleasedAppVersions)

	// Management API under /api
	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())

	linkHandler := &handlers.LinkHandler{
		Registry:   reg,
		Engine:     engine,
		Dispatcher: dispatcher,
		Releaser:   releaser,
	}
	links := api.Group("/links")
	links.Post("/", middleware.AuthAdmin(), linkHandler.CreateLink)
	links.Delete("/:domain", middleware.AuthAdmin(), linkHandler.DeleteLink)
	links.Get("/upstream/:domain", middleware.AuthUser(), linkHandler.ListLinks)
	links.Get("/:domain/pullable", middleware.AuthUser(), linkHandler.GetPullable)
	links.Post("/:domain/pull", middleware.AuthUser(), linkHandler.Pull)
	links.Post("/release", middleware.AuthAdmin(), linkHandler.Release)
	links.Post("/history/:id/hide", middleware.AuthAdmin(), linkHandler.HideHistory)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Authorizer initializes on first authenticated request
	log.Printf("Authorizer will be initialized on first authenticated request")

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if e, ok := err.(*types.CustomError); ok {
		code = e.Code
		message = e.Message
		errorType = e.Type
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
