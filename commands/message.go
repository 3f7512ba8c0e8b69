// Package commands turns chat lines into queue operations and queue
// outcomes back into chat replies.
//
// A Router owns a static table from keyword to Command. The chat gateway
// hands every received Message to Router.Handle, which parses the keyword,
// runs the matching handler against the queue service and sends exactly one
// reply through the Gateway. Handlers never talk to the gateway directly.
package commands

import (
	"fmt"
	"strings"

	"github.com/onnwee/queuebot/queue"
)

// Gateway is the outbound side of the chat connection.
type Gateway interface {
	Say(channel, text string)
	Join(channels ...string)
	Depart(channel string)
}

// Message is one chat line as delivered by the gateway.
type Message struct {
	// Channel is the login of the channel the line was sent in.
	Channel string
	// RoomID is the channel owner's user id, which keys the channel's queue.
	RoomID string
	// Login is the sender's lowercase login.
	Login  string
	Sender queue.Sender
	Text   string
	// Self is set for lines the bot sent itself.
	Self bool
}

// Invocation is a parsed command together with the message it came from.
type Invocation struct {
	Message
	Keyword string
	Args    []string
	// Target is the user name a handler acted on, substituted for {user} in
	// rejection phrasing.
	Target string
}

// Arg returns the i-th argument or "" if absent.
func (inv *Invocation) Arg(i int) string {
	if i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}

// Reply addresses text to the sender.
func (inv *Invocation) Reply(format string, a ...any) string {
	return mention(inv.Sender.Name, fmt.Sprintf(format, a...))
}

func mention(name, text string) string {
	return "@" + name + ", " + text
}

// Parse splits a chat line into a lowercase keyword and its arguments.
// Argument casing is preserved. ok is false for lines that are not commands.
func Parse(text string) (keyword string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || len(fields[0]) < 2 || fields[0][0] != '!' {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}
