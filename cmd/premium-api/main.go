package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/goldenyears/premium-api/app/controllers"
	"github.com/goldenyears/premium-api/internal/pkg/auth"
	"github.com/goldenyears/premium-api/internal/pkg/billing"
	"github.com/goldenyears/premium-api/internal/pkg/cache"
	"github.com/goldenyears/premium-api/internal/pkg/database"
	"github.com/goldenyears/premium-api/internal/pkg/env"
	"github.com/goldenyears/premium-api/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "3000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	verifier, err := auth.NewFirebaseVerifier(context.Background())
	if err != nil {
		log.Fatalf("failed to initialize firebase auth: %v", err)
	}

	repo := billing.NewRepository(database.GetDB())
	payments := billing.NewStripeClientFromEnv()
	locker := cache.RedisLocker{}
	svc := billing.NewService(repo, payments, locker, billing.PlanCatalogFromEnv())
	reconciler := billing.NewReconciler(repo, locker, env.GetEnv("STRIPE_WEBHOOK_SECRET", ""))

	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20, // webhook payloads are small
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, router.NewApiRouter(
		controllers.NewBillingController(svc),
		controllers.NewWebhookController(reconciler),
		verifier,
	))

	return app
}
