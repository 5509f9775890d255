package adapter

import "context"

// EmailSender delivers one HTML message.
type EmailSender interface {
	Send(ctx context.Context, to, subject, bodyHTML string) error
}
