package commands

import (
	"context"
	"strings"

	"github.com/onnwee/queuebot/queue"
)

const (
	viewerCommands = "commands: !qhelp, !queue, !join, !leave, !length, !level, !list"
	modCommands    = "commands: !qhelp, !queue, !join, !leave, !length, !limit, !level, !list, !pick, !rand, !blacklist, !unblacklist, !remove, !clear, !open, !close"
	adminCommands  = "Commands: !joinchannel, !leavechannel, !manualjoin [username] [userID], !help"
)

var commandHelp = map[string]string{
	"queue":       "!queue - shows the current queue information.",
	"join":        "!join - joins the queue.",
	"leave":       "!leave - leaves the queue.",
	"length":      "!length - shows the length of the queue.",
	"limit":       "!limit - sets the user limit of the queue. Can only be used by mods. If set to 0, there is no limit. (Example: !limit <number>)",
	"level":       "!level - shows the level of the queue. Can set the level with !level <level> (Viewer, Subscriber, VIP, Moderator).",
	"list":        "!list - shows the list of users in the queue.",
	"pick":        "!pick [count] - picks users from the front of the queue. Can only be used by mods. (Example: !pick 2)",
	"rand":        "!rand [count] - picks random users from the queue. Can only be used by mods. (Example: !rand 2)",
	"blacklist":   "!blacklist <user> - blacklists a user from the queue. Can only be used by mods. (Example: !blacklist @user)",
	"unblacklist": "!unblacklist <user> - unblacklists a user from the queue. Can only be used by mods. (Example: !unblacklist @user)",
	"remove":      "!remove <user> - removes a user from the queue. Can only be used by mods. (Example: !remove @user)",
	"clear":       "!clear - clears the queue. Can only be used by mods.",
	"open":        "!open - opens the queue. Can only be used by mods. If no arguments are given the last queue state will be used. (Example: !open <level> <user limit>)",
	"close":       "!close - closes the queue. Can only be used by mods.",
	"qhelp":       "!qhelp [command] - lists the queue commands or explains one of them.",
}

// qhelp lists the commands available to the sender's rank or explains one.
func qhelp(_ context.Context, inv *Invocation) (string, error) {
	topic := strings.TrimPrefix(strings.ToLower(inv.Arg(0)), "!")
	if text, ok := commandHelp[topic]; ok {
		return inv.Reply("%s", text), nil
	}
	if inv.Sender.Rank() < queue.RankModerator {
		return inv.Reply(viewerCommands), nil
	}
	return inv.Reply(modCommands), nil
}

func adminHelp(inv *Invocation) string {
	return inv.Reply(adminCommands)
}
