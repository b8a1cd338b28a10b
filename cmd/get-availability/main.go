package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/Amund211/canchas/internal/adapters/cache"
	"github.com/Amund211/canchas/internal/adapters/courtprovider"
	"github.com/Amund211/canchas/internal/adapters/statsstore"
	"github.com/Amund211/canchas/internal/app"
	"github.com/Amund211/canchas/internal/circuitbreaker"
	"github.com/Amund211/canchas/internal/domain"
	"github.com/Amund211/canchas/internal/ratelimiting"
)

func main() {
	baseURL := os.Getenv("ATC_BASE_URL")
	if baseURL == "" {
		log.Fatal("No ATC base URL provided")
	}

	if len(os.Args) < 3 {
		log.Fatalf("Usage: %s <placeId> <YYYY-MM-DD>", os.Args[0])
	}

	placeID := os.Args[1]
	if placeID == "" {
		log.Fatal("No placeId provided")
	}

	date, err := domain.ParseDate(os.Args[2])
	if err != nil {
		log.Fatalf("Failed parsing date: %v", err)
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	atc, err := courtprovider.NewATC(httpClient, baseURL)
	if err != nil {
		log.Fatalf("Failed creating ATC provider: %v", err)
	}

	availabilityCache := cache.NewAvailabilityCache(cache.DefaultTTL, time.Now)
	defer availabilityCache.Stop()

	protected := courtprovider.NewProtected(
		atc,
		availabilityCache,
		ratelimiting.NewTokenBucket(ratelimiting.DefaultUpstreamRequestsPerMinute, time.Now, time.After),
		circuitbreaker.New(circuitbreaker.DefaultConfig("atc")),
		statsstore.Noop{},
	)
	defer protected.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result := app.BuildGetAvailability(protected)(ctx, placeID, date)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed marshalling result: %v", err)
	}

	fmt.Println(string(data))
}
