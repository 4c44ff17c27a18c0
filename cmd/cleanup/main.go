// Copyright 2026 The Scriptora Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command cleanup removes invitations and invitation tokens whose expiry
// has passed. Intended to run on a schedule (cron or equivalent).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/scriptora/scriptora/internal/config"
	"github.com/scriptora/scriptora/internal/observability/logger"
	"github.com/scriptora/scriptora/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName + "-cleanup",
	})

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	now := time.Now()

	invitationRepo := postgres.NewInvitationRepository(db)
	expired, err := invitationRepo.ListExpired(ctx, now)
	if err != nil {
		slog.Error("failed to list expired invitations", logger.Error(err))
		os.Exit(1)
	}
	removed := 0
	for _, inv := range expired {
		if err := invitationRepo.Remove(ctx, inv.ID); err != nil {
			slog.Error("failed to remove expired invitation",
				logger.InvitationID(inv.ID),
				logger.Error(err),
			)
			continue
		}
		removed++
	}
	slog.Info("swept expired invitations", "expired", len(expired), "removed", removed)

	tokenRepo := postgres.NewInvitationTokenRepository(db)
	expiredTokens, err := tokenRepo.ListExpired(ctx, now)
	if err != nil {
		slog.Error("failed to list expired tokens", logger.Error(err))
		os.Exit(1)
	}
	removedTokens := 0
	for _, t := range expiredTokens {
		if err := tokenRepo.Remove(ctx, t.ID); err != nil {
			slog.Error("failed to remove expired token",
				logger.ContainerID(t.ContainerID),
				logger.Error(err),
			)
			continue
		}
		removedTokens++
	}
	slog.Info("swept expired invitation tokens", "expired", len(expiredTokens), "removed", removedTokens)
}
