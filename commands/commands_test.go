package commands

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/queuebot/queue"
	"github.com/onnwee/queuebot/telemetry"
)

const (
	roomID  = "1001"
	adminID = "9000"
)

type said struct{ channel, text string }

// fakeGateway records everything the router sends.
type fakeGateway struct {
	mu      sync.Mutex
	said    []said
	joined  []string
	departs []string
}

func (g *fakeGateway) Say(channel, text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.said = append(g.said, said{channel, text})
}

func (g *fakeGateway) Join(channels ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.joined = append(g.joined, channels...)
}

func (g *fakeGateway) Depart(channel string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.departs = append(g.departs, channel)
}

// last returns the most recent reply and clears the log.
func (g *fakeGateway) last(t *testing.T) string {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.said, "no reply sent")
	out := g.said[len(g.said)-1].text
	g.said = nil
	return out
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.said)
}

type harness struct {
	router *Router
	gw     *fakeGateway
	store  *queue.MemoryStore
	svc    *queue.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	telemetry.Init()
	store := queue.NewMemoryStore()
	svc := queue.NewService(store)
	require.NoError(t, svc.Register(context.Background(), roomID, "Host"))
	gw := &fakeGateway{}
	return &harness{router: NewRouter(gw, svc, nil, adminID), gw: gw, store: store, svc: svc}
}

func (h *harness) send(from queue.Sender, text string) {
	from.ChannelID = roomID
	h.router.Handle(context.Background(), Message{Channel: "host", RoomID: roomID, Login: from.Name, Sender: from, Text: text})
}

func (h *harness) say(t *testing.T, from queue.Sender, text string) string {
	t.Helper()
	h.send(from, text)
	return h.gw.last(t)
}

var (
	host  = queue.Sender{UserID: roomID, Name: "Host"}
	mod   = queue.Sender{UserID: "2", Name: "Mod", Moderator: true}
	alice = queue.Sender{UserID: "3", Name: "Alice"}
	bob   = queue.Sender{UserID: "4", Name: "Bob"}
	carol = queue.Sender{UserID: "5", Name: "Carol", Subscriber: true}
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		keyword string
		args    []string
		ok      bool
	}{
		{"!join", "!join", []string{}, true},
		{"  !OPEN Sub 5 ", "!open", []string{"Sub", "5"}, true},
		{"!remove @Bob", "!remove", []string{"@Bob"}, true},
		{"hello !join", "", nil, false},
		{"!", "", nil, false},
		{"", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			kw, args, ok := Parse(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.keyword, kw)
			if tt.ok {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestRouterIgnores(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.router.Handle(context.Background(), Message{Channel: "host", RoomID: roomID, Sender: alice, Text: "!join", Self: true})
	h.send(alice, "join please")
	h.send(alice, "!dance")
	h.send(alice, "!joinchannel")
	assert.Zero(t, h.gw.count())

	ms, err := h.store.ListMembers(context.Background(), roomID)
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestQueueConversation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	assert.Equal(t, "@Alice, the queue is currently closed.", h.say(t, alice, "!queue"))
	assert.Equal(t, "@Alice, the queue is currently closed.", h.say(t, alice, "!join"))
	assert.Equal(t, "@Alice, you must be at least a mod to open the queue.", h.say(t, alice, "!open"))
	assert.Equal(t, "@Mod, invalid queue level. Please use [Viewer, Subscriber, VIP or Moderator]", h.say(t, mod, "!open follower"))
	assert.Equal(t, "@Mod, the queue limit must be a number.", h.say(t, mod, "!open s many"))
	assert.Equal(t, "@Mod, the queue is now open for Subscribers. The queue is currently at 0/2.", h.say(t, mod, "!OPEN s 2"))
	assert.Equal(t, "@Mod, the queue is already open.", h.say(t, mod, "!open"))

	assert.Equal(t, "@Alice, you must be at least Subscriber to join this queue.", h.say(t, alice, "!join"))
	assert.Equal(t, "@Carol, you have joined the queue (position 1).", h.say(t, carol, "!join"))
	assert.Equal(t, "@Carol, you are already in the queue.", h.say(t, carol, "!join"))
	assert.Equal(t, "@Host, you have joined the queue (position 2).", h.say(t, host, "!join"))
	assert.Equal(t, "@Mod, the queue is currently FULL.", h.say(t, mod, "!join"))

	assert.Equal(t, "@Bob, the queue is currently open however it is FULL. There are 2 users in the queue. Use !join to join the queue when users are removed.", h.say(t, bob, "!queue"))
	assert.Equal(t, "@Bob, there are 2 users in the queue.", h.say(t, bob, "!length"))
	assert.Equal(t, "@Bob, the queue is: 1. Carol, 2. Host", h.say(t, bob, "!list"))
	assert.Equal(t, "@Bob, the queue is for Subscribers.", h.say(t, bob, "!level"))
	assert.Equal(t, "@Bob, you must be at least a mod to change the queue level.", h.say(t, bob, "!level v"))
	assert.Equal(t, "@Mod, please use a valid level.", h.say(t, mod, "!level sub"))
	assert.Equal(t, "@Mod, the queue is now for Viewers.", h.say(t, mod, "!level V"))

	assert.Equal(t, "@Mod, you must specify a queue limit. (!limit <number>)", h.say(t, mod, "!limit"))
	assert.Equal(t, "@Mod, the queue limit cannot be negative.", h.say(t, mod, "!limit -1"))
	assert.Equal(t, "@Mod, the queue limit has been removed.", h.say(t, mod, "!limit 0"))
	assert.Equal(t, "@Alice, you have joined the queue (position 3).", h.say(t, alice, "!join"))
	assert.Equal(t, "@Bob, the queue is currently open. There are 3 users in the queue. There is no user limit and is open for Viewers. Use !join to join the queue.", h.say(t, bob, "!queue"))
	assert.Equal(t, "@Mod, the queue limit has been set to 10.", h.say(t, mod, "!limit 10"))

	assert.Equal(t, "@Alice, you have left the queue.", h.say(t, alice, "!leave"))
	assert.Equal(t, "@Alice, you are not in the queue.", h.say(t, alice, "!leave"))

	assert.Equal(t, "@Mod, there are not enough users in the queue to pick.", h.say(t, mod, "!pick 3"))
	assert.Equal(t, "@Mod, the picked user(s) is/are: 1. Carol", h.say(t, mod, "!pick nonsense"))
	assert.Equal(t, "@Mod, there is 1 user in the queue.", h.say(t, mod, "!length"))
	assert.Equal(t, "@Mod, the picked user(s) is/are: 1. Host", h.say(t, mod, "!rand"))
	assert.Equal(t, "@Mod, the queue is empty.", h.say(t, mod, "!rand"))
	assert.Equal(t, "@Mod, the queue is empty.", h.say(t, mod, "!list"))

	assert.Equal(t, "@Mod, the queue is now closed.", h.say(t, mod, "!close"))
	assert.Equal(t, "@Mod, the queue is already closed.", h.say(t, mod, "!close"))
	assert.Equal(t, "@Mod, the queue is now open for Viewers. The queue is currently at 0/10.", h.say(t, mod, "!open"))
}

func TestModerationConversation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.say(t, mod, "!open")
	h.say(t, alice, "!join")
	h.say(t, bob, "!join")

	assert.Equal(t, "@Alice, you must be at least a mod to add a blacklist to the queue.", h.say(t, alice, "!blacklist Bob"))
	assert.Equal(t, "@Mod, you must specify a user to blacklist.", h.say(t, mod, "!blacklist"))
	assert.Equal(t, "@Mod, Bob has been blacklisted from the queue.", h.say(t, mod, "!blacklist @Bob"))
	assert.Equal(t, "@Mod, the user Bob is already blacklisted.", h.say(t, mod, "!blacklist Bob"))

	assert.Equal(t, "@Mod, the user bob is not in the queue.", h.say(t, mod, "!remove bob"))
	assert.Equal(t, "@Mod, you must specify a user to remove.", h.say(t, mod, "!remove"))
	assert.Equal(t, "@Mod, Bob has been removed from the queue.", h.say(t, mod, "!remove @Bob"))
	assert.Equal(t, "@Bob, you are banned from joining the queue.", h.say(t, bob, "!join"))

	assert.Equal(t, "@Mod, the user bob is not blacklisted.", h.say(t, mod, "!unblacklist bob"))
	assert.Equal(t, "@Mod, Bob has been unblacklisted from the queue.", h.say(t, mod, "!unblacklist Bob"))
	assert.Equal(t, "@Bob, you have joined the queue (position 2).", h.say(t, bob, "!join"))

	assert.Equal(t, "@Mod, no users were picked.", h.say(t, mod, "!pick 0"))
	assert.Equal(t, "@Alice, you must be at least a mod to clear the queue.", h.say(t, alice, "!clear"))
	assert.Equal(t, "@Mod, the queue has been cleared.", h.say(t, mod, "!clear"))
	assert.Equal(t, "@Mod, the queue is already empty.", h.say(t, mod, "!clear"))
	assert.Equal(t, "@Mod, the queue is empty.", h.say(t, mod, "!remove Bob"))
}

func TestMissingQueue(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.router.Handle(context.Background(), Message{Channel: "other", RoomID: "777", Sender: alice, Text: "!join"})
	assert.Equal(t, "@Alice, could not find a queue for this channel.", h.gw.last(t))
}

func TestHelp(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	assert.Equal(t, "@Alice, "+viewerCommands, h.say(t, alice, "!qhelp"))
	assert.Equal(t, "@Alice, "+viewerCommands, h.say(t, alice, "!help"))
	assert.Equal(t, "@Mod, "+modCommands, h.say(t, mod, "!qhelp"))
	assert.Equal(t, "@Alice, "+commandHelp["limit"], h.say(t, alice, "!qhelp !limit"))
	assert.Equal(t, "@Alice, "+commandHelp["join"], h.say(t, alice, "!qhelp JOIN"))
	assert.Equal(t, "@Alice, "+viewerCommands, h.say(t, alice, "!qhelp nope"))

	h.router.Handle(context.Background(), Message{Channel: "bot", RoomID: adminID, Sender: alice, Text: "!help"})
	assert.Equal(t, "@Alice, "+adminCommands, h.gw.last(t))

	for _, kw := range []string{"queue", "join", "leave", "open", "close", "clear", "length", "level", "list", "limit", "pick", "rand", "remove", "blacklist", "unblacklist", "qhelp"} {
		assert.True(t, h.router.Has("!"+kw), kw)
		assert.Contains(t, commandHelp, kw)
	}
}

// brokenStore reads normally and fails every member write.
type brokenStore struct {
	queue.Store
}

var errDown = errors.New("database is down")

func (b brokenStore) AddMember(context.Context, string, queue.Member) error { return errDown }

func (b brokenStore) RemoveMembers(context.Context, string, func(queue.Member) bool) (int, error) {
	return 0, errDown
}

func TestStoreFailureReply(t *testing.T) {
	t.Parallel()
	telemetry.Init()
	ctx := context.Background()

	store := queue.NewMemoryStore()
	require.NoError(t, store.Create(ctx, roomID, "Host"))
	open := true
	require.NoError(t, store.UpdateConfig(ctx, roomID, queue.ConfigUpdate{Open: &open}))
	require.NoError(t, store.AddMember(ctx, roomID, queue.Member{Name: "Alice"}))

	gw := &fakeGateway{}
	r := NewRouter(gw, queue.NewService(brokenStore{store}), nil, adminID)
	send := func(from queue.Sender, text string) string {
		from.ChannelID = roomID
		r.Handle(ctx, Message{Channel: "host", RoomID: roomID, Sender: from, Text: text})
		return gw.last(t)
	}

	errs := telemetry.CommandsTotal.WithLabelValues("!join", telemetry.OutcomeError)
	before := testutil.ToFloat64(errs)

	assert.Equal(t, "@Bob, failed to join the queue.", send(bob, "!join"))
	assert.Equal(t, "@Mod, failed to pick a user.", send(mod, "!pick"))
	assert.Equal(t, "@Alice, failed to leave the queue.", send(alice, "!leave"))
	assert.Equal(t, before+1, testutil.ToFloat64(errs))
}

func TestHandlerPanicIsContained(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.router.add(Command{Keyword: "!boom", Handler: func(context.Context, *Invocation) (string, error) {
		panic("kaboom")
	}})

	panics := telemetry.CommandsTotal.WithLabelValues("!boom", telemetry.OutcomePanic)
	before := testutil.ToFloat64(panics)
	assert.NotPanics(t, func() { h.send(alice, "!boom") })
	assert.Zero(t, h.gw.count())
	assert.Equal(t, before+1, testutil.ToFloat64(panics))

	assert.Equal(t, "@Alice, the queue is currently closed.", h.say(t, alice, "!join"))
}

func TestRejectionClassification(t *testing.T) {
	t.Parallel()

	assert.True(t, isRejection(queue.ErrBanned))
	assert.True(t, isRejection(&queue.ValidationError{Field: queue.FieldLimit}))
	assert.True(t, isRejection(&queue.PermissionError{Required: queue.RankVIP}))
	assert.False(t, isRejection(&queue.StoreError{Op: "get", Err: errDown}))
	assert.False(t, isRejection(errDown))
}
