package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a bot command with its menu description and handler.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Hidden commands are routed but left out of the command menu.
	Hidden bool
}
