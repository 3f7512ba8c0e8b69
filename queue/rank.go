package queue

import "strings"

// Rank is the ordered permission level derived from a chatter's role.
type Rank int

const (
	RankViewer Rank = iota
	RankSubscriber
	RankVIP
	RankModerator
)

// String returns the display label used in chat replies.
func (r Rank) String() string {
	switch r {
	case RankViewer:
		return "Viewer"
	case RankSubscriber:
		return "Subscriber"
	case RankVIP:
		return "VIP"
	case RankModerator:
		return "Moderator"
	default:
		return "Unknown"
	}
}

// Valid reports whether r is one of the four defined ranks.
func (r Rank) Valid() bool { return r >= RankViewer && r <= RankModerator }

// ParseRank maps a level token to a rank. Matching is case-insensitive and
// accepts the full names plus the single letter aliases v, s and m. VIP has
// no alias.
func ParseRank(token string) (Rank, bool) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "viewer", "v":
		return RankViewer, true
	case "subscriber", "s":
		return RankSubscriber, true
	case "vip":
		return RankVIP, true
	case "moderator", "m":
		return RankModerator, true
	default:
		return 0, false
	}
}

// Sender identifies the chatter issuing a command together with the role
// flags the chat transport reported for them.
type Sender struct {
	UserID    string
	Name      string
	ChannelID string

	Moderator  bool
	VIP        bool
	Subscriber bool
}

// Rank resolves the sender's permission level. The channel owner is always a
// moderator.
func (s Sender) Rank() Rank {
	switch {
	case s.UserID != "" && s.UserID == s.ChannelID:
		return RankModerator
	case s.Moderator:
		return RankModerator
	case s.VIP:
		return RankVIP
	case s.Subscriber:
		return RankSubscriber
	default:
		return RankViewer
	}
}
