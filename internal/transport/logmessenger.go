package transport

import (
	"context"
	"log"
)

// LogMessenger is a dry-run Messenger that writes outbound traffic to the
// process log instead of a chat transport. It stands in until a real
// transport implementation is plugged in, and doubles as the --dry-run
// backend for operators rehearsing a broadcast.
type LogMessenger struct{}

func (LogMessenger) SendText(_ context.Context, address, text string) error {
	log.Printf("[messenger] text to %s: %s", address, text)
	return nil
}

func (LogMessenger) SendPrompt(_ context.Context, address, text string, buttons []Button) error {
	log.Printf("[messenger] prompt to %s (%d buttons): %s", address, len(buttons), text)
	return nil
}

func (LogMessenger) Connected() bool { return true }
