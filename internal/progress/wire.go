package progress

import (
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/collection-ingest/internal/catalog"
)

type startFrame struct {
	Type  Type `json:"type"`
	Total int  `json:"total"`
}

type progressFrame struct {
	Type     Type             `json:"type"`
	Current  int              `json:"current"`
	Total    int              `json:"total"`
	Success  int              `json:"success"`
	Failed   int              `json:"failed"`
	Progress float64          `json:"progress"`
	Item     *catalog.ItemRef `json:"item"`
}

type errorItemFrame struct {
	Type     Type             `json:"type"`
	Index    int              `json:"index"`
	Message  string           `json:"message"`
	Current  int              `json:"current"`
	Total    int              `json:"total"`
	Success  int              `json:"success"`
	Failed   int              `json:"failed"`
	Progress float64          `json:"progress"`
	Item     *catalog.ItemRef `json:"item,omitempty"`
}

type blockedFrame struct {
	Type           Type   `json:"type"`
	Index          int    `json:"index"`
	Message        string `json:"message"`
	Total          int    `json:"total"`
	Success        int    `json:"success"`
	Failed         int    `json:"failed"`
	RemainingCount int    `json:"remaining_count"`
	DownloadToken  string `json:"download_token"`
}

type completeFrame struct {
	Type    Type `json:"type"`
	Total   int  `json:"total"`
	Success int  `json:"success"`
	Failed  int  `json:"failed"`
	Blocked bool `json:"blocked,omitempty"`
}

type errorFrame struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
}

// MarshalJSON encodes the event in the client-facing shape for its type.
func (e Event) MarshalJSON() ([]byte, error) {
	var frame any
	switch e.Type {
	case TypeStart:
		frame = startFrame{Type: e.Type, Total: e.Total}
	case TypeProgress:
		frame = progressFrame{
			Type: e.Type, Current: e.Current, Total: e.Total,
			Success: e.Success, Failed: e.Failed, Progress: e.Progress, Item: e.Item,
		}
	case TypeErrorItem:
		frame = errorItemFrame{
			Type: e.Type, Index: e.Index, Message: e.Message, Current: e.Current, Total: e.Total,
			Success: e.Success, Failed: e.Failed, Progress: e.Progress, Item: e.Item,
		}
	case TypeBlocked:
		frame = blockedFrame{
			Type: e.Type, Index: e.Index, Message: e.Message, Total: e.Total,
			Success: e.Success, Failed: e.Failed,
			RemainingCount: e.RemainingCount, DownloadToken: e.DownloadToken,
		}
	case TypeComplete:
		frame = completeFrame{Type: e.Type, Total: e.Total, Success: e.Success, Failed: e.Failed, Blocked: e.Blocked}
	case TypeError:
		frame = errorFrame{Type: e.Type, Message: e.Message}
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	return raw, nil
}
