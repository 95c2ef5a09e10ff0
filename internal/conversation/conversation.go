// Package conversation resolves what an incoming chat message means given the user's
// pending-input state.
package conversation

import (
	"strings"

	"github.com/m3rciful/moviebot/internal/session"
)

// Command is a bot command name without the leading slash.
type Command string

const (
	CmdStart     Command = "start"
	CmdSetMovie  Command = "set_movie"
	CmdSetStyle  Command = "set_style"
	CmdInfo      Command = "info"
	CmdSubscribe Command = "subscribe"
	CmdGenerate  Command = "generate_summary"
	CmdUnknown   Command = "unknown"
)

// Commands lists the recognised commands in menu order.
var Commands = []Command{CmdStart, CmdSetMovie, CmdSetStyle, CmdInfo, CmdSubscribe, CmdGenerate}

// Intent is the kind of action a message resolves to.
type Intent int

const (
	// IntentCommand dispatches Transition.Command and drops any pending capture.
	IntentCommand Intent = iota
	// IntentCaptureMovie stores Transition.Input as the movie.
	IntentCaptureMovie
	// IntentCaptureStyle stores Transition.Input as the style.
	IntentCaptureStyle
	// IntentHelp answers plain text that nothing is waiting for.
	IntentHelp
)

// Transition is the resolved meaning of one message.
type Transition struct {
	Intent  Intent
	Command Command
	Input   string
}

// Next resolves text against the current state. Commands always win over a pending capture.
func Next(state session.State, text string) Transition {
	if cmd, ok := ParseCommand(text); ok {
		return Transition{Intent: IntentCommand, Command: cmd}
	}
	switch state {
	case session.StateAwaitingMovie:
		return Transition{Intent: IntentCaptureMovie, Input: text}
	case session.StateAwaitingStyle:
		return Transition{Intent: IntentCaptureStyle, Input: text}
	default:
		return Transition{Intent: IntentHelp, Command: CmdUnknown}
	}
}

// ParseCommand reports whether text is a command and which one. "/info@my_bot extra"
// resolves to CmdInfo; an unrecognised name resolves to CmdUnknown.
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := text[1:]
	if i := strings.IndexAny(name, " \t\n"); i >= 0 {
		name = name[:i]
	}
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	cmd := Command(strings.ToLower(name))
	for _, known := range Commands {
		if cmd == known {
			return cmd, true
		}
	}
	return CmdUnknown, true
}

// NextState is the pending-input state left behind after t has been handled.
func NextState(t Transition) session.State {
	if t.Intent == IntentCommand {
		switch t.Command {
		case CmdSetMovie:
			return session.StateAwaitingMovie
		case CmdSetStyle:
			return session.StateAwaitingStyle
		}
	}
	return session.StateIdle
}
