package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fam-platform/fam-access/internal/users"
)

// GrantNotifier queues an email when a delegated-admin privilege is created.
// Delivery is fire and forget: enqueue failures are logged, never surfaced
// to the granting request.
type GrantNotifier struct {
	client *Client
	logger *slog.Logger
}

// NewGrantNotifier builds GrantNotifier instance.
func NewGrantNotifier(client *Client, logger *slog.Logger) *GrantNotifier {
	return &GrantNotifier{client: client, logger: logger}
}

// PrivilegeGranted enqueues the notification for the target identity.
// Group identities and usernames without a mailbox form are skipped.
func (n *GrantNotifier) PrivilegeGranted(ctx context.Context, target users.Identity, roleName string, resourceIDs []string) {
	if target.Type != users.IdentityUser || !strings.Contains(target.Name, "@") {
		n.logger.Debug("notification skipped",
			slog.String("target", target.Name),
			slog.String("role", roleName))
		return
	}
	body := fmt.Sprintf("You have been granted delegated administration for role %s.", roleName)
	if len(resourceIDs) > 0 {
		body += "\nResource scopes: " + strings.Join(resourceIDs, ", ")
	}
	if _, err := n.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      target.Name,
		Subject: "Delegated administration granted",
		Body:    body,
	}); err != nil {
		n.logger.Warn("notification enqueue failed",
			slog.String("target", target.Name),
			slog.Any("error", err))
	}
}
