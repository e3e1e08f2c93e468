package audit

import "time"

// Action names the security-relevant event being recorded.
type Action string

const (
	ActionLoginSucceeded Action = "login_succeeded"
	ActionLoginFailed    Action = "login_failed"
	ActionCodeIssued     Action = "code_issued"
	ActionCodeExchanged  Action = "code_exchanged"
	ActionExchangeFailed Action = "exchange_failed"
	ActionTokenRejected  Action = "token_rejected"
)

// Event is emitted from domain logic to capture key auth actions. It is
// transport-agnostic so sinks can fan out (memory for tests, Kafka in
// production). Never put credentials or verifier values in an Event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Subject   string    `json:"subject,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}
