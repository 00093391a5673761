package squad

import (
	"context"
	"fmt"
)

// NoticeLevel grades user-facing messages.
type NoticeLevel string

// Notice levels understood by hosts.
const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice is a message for the controlling user.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	TokenID string      `json:"token_id,omitempty"`
}

// Notifier delivers notices to the host.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// Renderer requests a visual refresh of a token. Calls are fire-and-forget
// and may arrive from several goroutines at once.
type Renderer interface {
	Render(ctx context.Context, tokenID string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, notice Notice)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, notice Notice) { f(ctx, notice) }

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, tokenID string)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, tokenID string) { f(ctx, tokenID) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notice) {}

type nopRenderer struct{}

func (nopRenderer) Render(context.Context, string) {}

// CasualtyNotice builds the message asking the user to remove slain minion tokens.
func CasualtyNotice(tokenID string, casualties int) Notice {
	verb, tokens := " has", "token"
	if casualties > 1 {
		verb, tokens = "s have", "tokens"
	}
	return Notice{
		Level:   NoticeWarn,
		TokenID: tokenID,
		Message: fmt.Sprintf("%d minion%s been ruthlessly slain! Please remove %d minion %s from the scene.", casualties, verb, casualties, tokens),
	}
}
