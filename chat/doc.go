// Package chat connects the bot to Twitch chat.
//
// Bot wraps a go-twitch-irc client. Inbound PRIVMSG lines are converted into
// commands.Message values, with the sender's moderator, VIP and subscriber
// standing taken from both the IRC tags and the badge set, and handed to a
// Handler on their own goroutine. Outbound text goes through Say, and channel
// membership through Join and Depart, which makes Bot the commands.Gateway.
//
// Credentials: the IRC client requires the bot login and a user OAuth token
// with chat:read and chat:edit scopes. A refreshed token is applied with
// SetToken and takes effect on the next reconnect.
package chat
