package dto

import "encoding/json"

// PushMessage is the notification content handed to the dispatch engine.
// Fields map onto the gateway schema; zero values are omitted on the wire.
type PushMessage struct {
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Data      json.RawMessage `json:"data,omitempty"`
	Sound     string          `json:"sound,omitempty"`
	Badge     *int            `json:"badge,omitempty"`
	ChannelID string          `json:"channelId,omitempty"`
	Priority  string          `json:"priority,omitempty"`
	TTL       int             `json:"ttl,omitempty"`
}

// DispatchRequest is the admin fan-out request. NotificationType labels the
// feed rows written for the poll path; empty means admin_broadcast.
type DispatchRequest struct {
	Title            string          `json:"title"`
	Body             string          `json:"body"`
	TargetType       string          `json:"targetType"`
	TargetID         string          `json:"targetId,omitempty"`
	TargetPlatform   string          `json:"targetPlatform,omitempty"`
	NotificationType string          `json:"notificationType,omitempty"`
	Data             json.RawMessage `json:"data,omitempty"`
}

// DispatchResult is the outcome of one dispatch invocation. Sent plus
// Failed always equals the number of resolved recipients; Errors collects
// one entry per failed token or failed batch.
type DispatchResult struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// ReconcileResult summarizes one receipt-reconciliation pass.
type ReconcileResult struct {
	RecordsChecked int `json:"recordsChecked"`
	ReceiptsOK     int `json:"receiptsOk"`
	ReceiptsFailed int `json:"receiptsFailed"`
	TokensCleared  int `json:"tokensCleared"`
	Deferred       int `json:"deferred"`
}
