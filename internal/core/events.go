package core

// Inbound event names.
const (
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventMessageCreated = "client-message-created"
	EventMessageUpdated = "client-message-updated"
	EventMessageDeleted = "client-message-deleted"
	EventTypingStart    = "typing-start"
	EventTypingStop     = "typing-stop"
	EventCallInitiate   = "call-initiate"
	EventCallAnswer     = "call-answer"
	EventICECandidate   = "ice-candidate"
	EventCallEnd        = "call-end"
	EventCallReject     = "call-reject"
	EventRegisterPeer   = "register-peer"
	EventGetPeerID      = "get-peer-id"
	EventPing           = "ping"
)

// IsCallEvent reports whether failures of event are answered with call-error.
func IsCallEvent(event string) bool {
	switch event {
	case EventCallInitiate, EventCallAnswer, EventICECandidate, EventCallEnd, EventCallReject:
		return true
	}
	return false
}

// Outbound event names.
const (
	EventServerMessageCreated = "server-message-created"
	EventServerMessageUpdated = "server-message-updated"
	EventServerMessageDeleted = "server-message-deleted"
	EventUserTyping           = "user-typing"
	EventUserStoppedTyping    = "user-stopped-typing"
	EventCallIncoming         = "call-incoming"
	EventCallAnswerReceived   = "call-answer-received"
	EventCallError            = "call-error"
	EventCallEnded            = "call-ended"
	EventCallRejected         = "call-rejected"
	EventPeerConnected        = "peer-connected"
	EventPeerDisconnected     = "peer-disconnected"
	EventExistingPeers        = "existing-peers"
	EventRoomError            = "room-error"
	EventPong                 = "pong"
	EventAck                  = "ack"
)

// Event is one outbound notification.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Reply resolves an acknowledgement. Exactly one of Data or Error is meaningful.
type Reply struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

func Success(data any) Reply { return Reply{Status: StatusSuccess, Data: data} }

func Failure(err error) Reply { return Reply{Status: StatusError, Error: err.Error()} }

// AckFunc is the reply capability handed to the router with an inbound event.
// A nil AckFunc means the client did not ask for an acknowledgement.
type AckFunc func(Reply)
