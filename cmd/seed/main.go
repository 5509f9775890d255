package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"sports-tips-subscription/internal/app"
	"sports-tips-subscription/internal/config"
	"sports-tips-subscription/internal/domain/model"
	"sports-tips-subscription/internal/infra/logging"
)

// Seeds a handful of users with one subscription each so the admin API has
// something to show. Does nothing when users already exist.
func main() {
	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("build: %v", err)
	}
	defer a.Close()
	a.Pool.Start(ctx)
	defer a.Pool.Stop()

	users, err := a.Users.List(ctx)
	if err != nil {
		log.Fatalf("list users: %v", err)
	}
	if len(users) > 0 {
		fmt.Printf("%d users already present. No changes.\n", len(users))
		for _, u := range users {
			fmt.Printf("  - %s <%s> (%s, %s)\n", u.Name, u.Email, u.Country, u.Role)
		}
		return
	}

	seed := []struct {
		Email, Name, Country string
		Type                 model.SubscriptionType
		Days                 int
		Freeze               bool
	}{
		{"ada@example.com", "Ada", "Nigeria", "investment", 10, false},
		{"kofi@example.com", "Kofi", "Ghana", "vip&mega", 30, false},
		{"wanjiru@example.com", "Wanjiru", "Kenya", "all", 20, true},
		{"tom@example.com", "Tom", "United Kingdom", "mega", 10, false},
	}

	for _, s := range seed {
		u, err := a.Users.Register(ctx, s.Email, s.Name, s.Country)
		if err != nil {
			log.Fatalf("register %q: %v", s.Email, err)
		}
		st, err := a.Subscriptions.Assign(ctx, u.ID, s.Type, s.Days)
		if err != nil {
			log.Fatalf("assign %q to %q: %v", s.Type, s.Email, err)
		}
		if s.Freeze {
			id := st.Subscription.ID
			if st, err = a.Subscriptions.Freeze(ctx, id); err != nil {
				log.Fatalf("freeze %s: %v", id, err)
			}
		}
		fmt.Printf("seeded: %s (user=%s, sub=%s, type=%s, days=%d, state=%s)\n",
			u.Email, u.ID, st.Subscription.ID, st.Subscription.Type, s.Days, st.State)
	}

	fmt.Println("Seeding complete.")
}
