package rest

import (
	"github.com/nemanja-m/wanremote/internal/host/core"
	"github.com/nemanja-m/wanremote/pkg/protocol"
)

func toQueueItem(p *core.Prompt) QueueItem {
	return QueueItem{
		Number:      p.Number,
		PromptID:    p.ID,
		ClientID:    p.ClientID,
		Status:      string(p.Status),
		SubmittedAt: p.CreatedAt,
		StartedAt:   p.StartedAt,
	}
}

func toQueueItems(prompts []*core.Prompt) []QueueItem {
	items := make([]QueueItem, 0, len(prompts))
	for _, p := range prompts {
		items = append(items, toQueueItem(p))
	}
	return items
}

func toHistory(prompts []*core.Prompt) protocol.History {
	history := make(protocol.History, len(prompts))
	for _, p := range prompts {
		history[p.ID] = p.HistoryEntry()
	}
	return history
}

func toRejectResponse(verr *core.ValidationError) protocol.RejectResponse {
	return protocol.RejectResponse{
		Error: protocol.ErrorDetail{
			Type:    verr.Type,
			Message: verr.Message,
		},
		NodeErrors: nodeErrorsJSON(verr.NodeErrors),
	}
}
