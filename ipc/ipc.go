// Package ipc exposes the daemon's adapter controls over a unix domain
// socket. The protocol is newline-delimited JSON: one Request per line from
// the client, one Response per line back.
package ipc

// Request is a single command from a CLI client.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response is the daemon's answer to a Request.
type Response struct {
	OK    bool   `json:"ok"`
	Value string `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// Commands understood by the server.
const (
	CommandEnable          = "enable"
	CommandDisable         = "disable"
	CommandGetState        = "get-state"
	CommandIsEnabled       = "is-enabled"
	CommandGetLocalAddress = "get-local-address"
	CommandGetLocalName    = "get-local-name"
	CommandSetLocalName    = "set-local-name"
	CommandAdapterInfo     = "adapter-info"
)
