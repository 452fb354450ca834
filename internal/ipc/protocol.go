// Package ipc is the control channel between parlo invocations: the chat
// daemon listens on a unix socket and secondary invocations send it one
// JSON command per connection.
package ipc

// Request is one control command aimed at the live chat session.
type Request struct {
	Command string `json:"command"`
}

// Response reports a command outcome together with the session snapshot a
// status display needs: the lifecycle state and the live hypothesis.
type Response struct {
	OK         bool   `json:"ok"`
	State      string `json:"state,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Error      string `json:"error,omitempty"`
}
