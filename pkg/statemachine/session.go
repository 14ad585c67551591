package statemachine

// Session lifecycle states: start -> active -> ended. A session that
// never progresses past START can still be ended directly, matching an
// operator aborting before first use.
const (
	SessionStart  = "START"
	SessionActive = "ACTIVE"
	SessionEnded  = "ENDED"
)

var sessionTable = NewTable(
	map[string][]string{
		SessionStart:  {SessionActive, SessionEnded},
		SessionActive: {SessionEnded},
	},
	[]string{SessionEnded},
)

// NewSessionMachine starts a session lifecycle at START.
func NewSessionMachine() *Machine {
	return New(sessionTable, SessionStart)
}
