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

// Package notification delivers collaboration notifications. Actual email
// transport lives outside the gateway; the SlogSender implementation records
// what would be sent so the surrounding services stay testable and the wire
// to a real mailer is a single constructor swap.
package notification

import (
	"context"
	"log/slog"

	"github.com/scriptora/scriptora/internal/role"
)

// SlogSender logs every notification instead of delivering it. It satisfies
// both invitation.Sender and request.Sender.
type SlogSender struct{}

// NewSlogSender creates a new log-backed notification sender.
func NewSlogSender() *SlogSender {
	return &SlogSender{}
}

func (s *SlogSender) SendInvitation(ctx context.Context, email, inviterName, message, invitationID string) error {
	slog.InfoContext(ctx, "notification: collaboration invitation",
		slog.String("email", email),
		slog.String("inviter", inviterName),
		slog.String("invitation_id", invitationID),
	)
	return nil
}

func (s *SlogSender) SendContainerInvitation(ctx context.Context, email, inviterName, containerTitle string, r role.Role, message, invitationID string) error {
	slog.InfoContext(ctx, "notification: container invitation",
		slog.String("email", email),
		slog.String("inviter", inviterName),
		slog.String("container", containerTitle),
		slog.String("role", string(r)),
		slog.String("invitation_id", invitationID),
	)
	return nil
}

func (s *SlogSender) SendCollaboratorJoined(ctx context.Context, ownerEmail, collaboratorName, containerTitle string) error {
	slog.InfoContext(ctx, "notification: collaborator joined",
		slog.String("email", ownerEmail),
		slog.String("collaborator", collaboratorName),
		slog.String("container", containerTitle),
	)
	return nil
}

func (s *SlogSender) SendAccessRequest(ctx context.Context, ownerEmail, requesterName, containerTitle string, r role.Role) error {
	slog.InfoContext(ctx, "notification: access request",
		slog.String("email", ownerEmail),
		slog.String("requester", requesterName),
		slog.String("container", containerTitle),
		slog.String("role", string(r)),
	)
	return nil
}

func (s *SlogSender) SendAccessResponse(ctx context.Context, requesterEmail, containerTitle string, accepted bool, r role.Role) error {
	slog.InfoContext(ctx, "notification: access response",
		slog.String("email", requesterEmail),
		slog.String("container", containerTitle),
		slog.Bool("accepted", accepted),
		slog.String("role", string(r)),
	)
	return nil
}
