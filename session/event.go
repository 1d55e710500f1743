package session

import "encoding/json"

// EventType tags an outbound message.
type EventType string

const (
	EventHeartbeat  EventType = "heartbeat"
	EventToolResult EventType = "tool_result"
)

// Event is one outbound message queued for a session's stream.
type Event struct {
	Type      EventType
	SessionID string

	// tool_result only
	Tool      string
	Arguments map[string]any
	Result    any
}

// NewHeartbeat builds a keep-alive marker for sessionID.
func NewHeartbeat(sessionID string) Event {
	return Event{Type: EventHeartbeat, SessionID: sessionID}
}

// NewToolResult builds a tool_result notification.
func NewToolResult(sessionID, tool string, args map[string]any, result any) Event {
	if args == nil {
		args = map[string]any{}
	}
	return Event{
		Type:      EventToolResult,
		SessionID: sessionID,
		Tool:      tool,
		Arguments: args,
		Result:    result,
	}
}

// MarshalJSON renders the wire shape for the event type:
//
//	{"type":"heartbeat","session_id":"..."}
//	{"type":"tool_result","tool":"...","arguments":{...},"result":...,"session_id":"..."}
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Type == EventToolResult {
		return json.Marshal(struct {
			Type      EventType      `json:"type"`
			Tool      string         `json:"tool"`
			Arguments map[string]any `json:"arguments"`
			Result    any            `json:"result"`
			SessionID string         `json:"session_id"`
		}{e.Type, e.Tool, e.Arguments, e.Result, e.SessionID})
	}
	return json.Marshal(struct {
		Type      EventType `json:"type"`
		SessionID string    `json:"session_id"`
	}{e.Type, e.SessionID})
}

// UnmarshalJSON accepts either wire shape.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type      EventType      `json:"type"`
		Tool      string         `json:"tool"`
		Arguments map[string]any `json:"arguments"`
		Result    any            `json:"result"`
		SessionID string         `json:"session_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Event{
		Type:      raw.Type,
		SessionID: raw.SessionID,
		Tool:      raw.Tool,
		Arguments: raw.Arguments,
		Result:    raw.Result,
	}
	return nil
}
