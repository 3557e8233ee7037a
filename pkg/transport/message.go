package transport

// Role names a context on the bus.
type Role string

const (
	RoleCoordinator Role = "coordinator"
	RoleWorker      Role = "worker"
	RoleClient      Role = "client"
)

func (r Role) String() string { return string(r) }

// Type is the message type.
type Type string

// Client-facing messages.
const (
	TypeInit     Type = "INIT"
	TypeStatus   Type = "STATUS"
	TypeClassify Type = "CLASSIFY"
	TypeReset    Type = "RESET"
)

// Worker-facing commands.
const (
	TypeLoad Type = "LOAD"
)

// Events. Sent by the worker host to the coordinator and broadcast by the
// coordinator to clients.
const (
	TypeProgress Type = "PROGRESS"
	TypeReady    Type = "READY"
	TypeError    Type = "ERROR"
)

func (t Type) String() string { return string(t) }

// Terminal reports whether t ends a load attempt.
func (t Type) Terminal() bool {
	return t == TypeReady || t == TypeError
}

// Message is the single wire shape for commands and events.
type Message struct {
	Type     Type   `json:"type"`
	Text     string `json:"text,omitempty"`
	Source   string `json:"source,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Label is the classification produced by the model.
type Label string

const (
	LabelAIGenerated  Label = "ai_generated"
	LabelHumanWritten Label = "human_written"
	LabelUncertain    Label = "uncertain"
)

// Classification is a classifier result passed through unmodified.
type Classification struct {
	Label      Label  `json:"label"`
	Confidence *int   `json:"confidence,omitempty"`
	Raw        string `json:"raw,omitempty"`
}

// Response answers a request. Status requests fill Loaded, Loading and
// Progress; command requests fill Success, Result and Error.
type Response struct {
	Loaded   bool   `json:"loaded"`
	Loading  bool   `json:"loading"`
	Progress int    `json:"progress"`
	Attempt  string `json:"attempt,omitempty"`

	Success bool            `json:"success"`
	Busy    bool            `json:"busy,omitempty"`
	Result  *Classification `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Failure builds an unsuccessful command response.
func Failure(reason string) Response {
	return Response{Success: false, Error: reason}
}

// OK builds a successful command response.
func OK() Response {
	return Response{Success: true}
}
