package main

import (
	"context"
	"log"
	"net/http"

	"github.com/goldenyears/premium-api/internal/functions"
	"github.com/goldenyears/premium-api/internal/pkg/auth"
	"github.com/goldenyears/premium-api/internal/pkg/billing"
	"github.com/goldenyears/premium-api/internal/pkg/database"
	"github.com/goldenyears/premium-api/internal/pkg/env"
)

func main() {
	env.SetupEnvFile()
	database.SetupDatabase()

	verifier, err := auth.NewFirebaseVerifier(context.Background())
	if err != nil {
		log.Fatalf("failed to initialize firebase auth: %v", err)
	}

	repo := billing.NewRepository(database.GetDB())
	payments := billing.NewStripeClientFromEnv()
	svc := billing.NewService(repo, payments, nil, billing.PlanCatalogFromEnv())
	callable := functions.NewCallable(svc, verifier)

	mux := http.NewServeMux()
	mux.HandleFunc("/createSubscription", callable.CreateSubscription)
	mux.HandleFunc("/cancelSubscription", callable.CancelSubscription)
	mux.HandleFunc("/updatePaymentMethod", callable.UpdatePaymentMethod)

	addr := ":" + env.GetEnv("FUNCTIONS_PORT", "8080")
	log.Printf("functions listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}
