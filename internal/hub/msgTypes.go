package hub

// outgoing
const (
	ChatState    = "ChatState"
	ChatError    = "ChatError"
	SessionEnded = "SessionEnded"
)

// incoming
const (
	SendMessage = "SendMessage"
)
