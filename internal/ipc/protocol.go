// Package ipc carries newline-delimited JSON commands between rehearse
// processes over a per-user unix socket.
package ipc

// Commands understood by a running interview owner.
const (
	CommandStatus = "status"
	CommandSkip   = "skip"
	CommandEnd    = "end"
)

type Request struct {
	Command string `json:"command"`
}

// SessionStatus is the observable snapshot of the active interview.
type SessionStatus struct {
	ID         string `json:"id"`
	Question   int    `json:"question"`
	Total      int    `json:"total"`
	Responses  int    `json:"responses"`
	Elapsed    int    `json:"elapsed"`
	Transcript string `json:"transcript,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
}

type Response struct {
	OK      bool           `json:"ok"`
	Phase   string         `json:"phase,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	Session *SessionStatus `json:"session,omitempty"`
}
