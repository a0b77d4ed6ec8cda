package orch

import (
	"context"

	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
)

// handleSend persists the message. Delivery happens when the store raises
// MessageCreated.
func (o *Orchestrator) handleSend(ctx context.Context, user *domain.User, e core.SendMessage) {
	_, err := o.Chat.SendMessage(ctx, domain.MessageDraft{
		RoomID:   e.RoomID,
		SenderID: user.ID,
		Content:  e.Text,
		Type:     e.Type,
		Metadata: e.Metadata,
	})
	if err != nil {
		o.sendError(user.ID, err)
	}
}

func (o *Orchestrator) handleTyping(ctx context.Context, user *domain.User, e core.Typing) {
	members, ok := o.authorize(ctx, user.ID, e.RoomID)
	if !ok {
		return
	}
	o.Registry.BroadcastToUsers(members, core.TypingNotice(e.RoomID, user.ID, e.On), user.ID)
}
