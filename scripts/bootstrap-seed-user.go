package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/thechain/chain/internal/auth"
	"github.com/thechain/chain/internal/model"
	"github.com/thechain/chain/internal/store"
)

type output struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	ChainKey    string `json:"chain_key"`
	Position    int    `json:"position"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email       = flag.String("email", "founder@thechain.local", "Seed user email")
		displayName = flag.String("display-name", "Founder", "Seed user display name")
		password    = flag.String("password", "", "Seed user password (min 8 characters)")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if len(*password) < 8 {
		fmt.Fprintln(os.Stderr, "password must be at least 8 characters")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := store.NewPostgres(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer st.Close()

	count, err := st.CountUsers(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "count users:", err)
		os.Exit(1)
	}
	if count > 0 {
		fmt.Fprintln(os.Stderr, "seed user already exists; the chain can only be started once")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash password:", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	seed := &model.User{
		ID:           auth.NewEntityID(now),
		Email:        strings.ToLower(strings.TrimSpace(*email)),
		DisplayName:  strings.TrimSpace(*displayName),
		ChainKey:     auth.GenerateChainKey(),
		Position:     1,
		PasswordHash: hash,
		JoinedAt:     now,
	}

	if err := st.CreateUser(ctx, seed); err != nil {
		fmt.Fprintln(os.Stderr, "create seed user:", err)
		os.Exit(1)
	}

	out := output{
		UserID:      seed.ID,
		Email:       seed.Email,
		DisplayName: seed.DisplayName,
		ChainKey:    seed.ChainKey,
		Position:    seed.Position,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.ChainKey)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}
