// Package notify is the narrow boundary to the chat platform. The
// tracker only ever talks to the Notifier interface; everything about
// the platform (endpoints, auth, message shape) lives behind it.
package notify

import "context"

// Notifier is the notification sink for tournament announcements.
// AnnounceOpen returns an opaque reference to the sent message, used
// later to retract it. Retract tolerates already-deleted messages.
type Notifier interface {
	AnnounceOpen(ctx context.Context, text string) (ref string, err error)
	AnnounceResult(ctx context.Context, text string) error
	Retract(ctx context.Context, ref string) error
}
