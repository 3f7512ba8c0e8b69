package commands

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/queuebot/queue"
	"github.com/onnwee/queuebot/telemetry"
)

// HandlerFunc runs one command and returns the reply text. A non-nil error
// is rendered through the command's rejection phrasing instead.
type HandlerFunc func(ctx context.Context, inv *Invocation) (string, error)

// Command binds a keyword to its handler.
type Command struct {
	Keyword string
	Handler HandlerFunc
	// Action completes "failed to ..." when the store fails.
	Action     string
	Rejections []Rejection
	// Admin commands only run in the admin channel.
	Admin bool
}

// Router dispatches chat lines to commands.
type Router struct {
	gw             Gateway
	table          map[string]*Command
	adminChannelID string
}

// NewRouter builds the command table. reg may be nil, in which case the
// channel registration commands are not available.
func NewRouter(gw Gateway, svc *queue.Service, reg *Registrar, adminChannelID string) *Router {
	r := &Router{gw: gw, table: make(map[string]*Command), adminChannelID: adminChannelID}
	h := &queueHandlers{svc: svc}
	for _, c := range h.commands() {
		r.add(c)
	}
	if reg != nil {
		for _, c := range reg.commands() {
			r.add(c)
		}
	}
	return r
}

func (r *Router) add(c Command) {
	if _, dup := r.table[c.Keyword]; dup {
		panic("commands: duplicate keyword " + c.Keyword)
	}
	r.table[c.Keyword] = &c
}

// Has reports whether keyword is in the table.
func (r *Router) Has(keyword string) bool {
	_, ok := r.table[keyword]
	return ok
}

// Handle processes one message. It never panics and sends at most one reply.
func (r *Router) Handle(ctx context.Context, msg Message) {
	if msg.Self {
		return
	}
	keyword, args, ok := Parse(msg.Text)
	if !ok {
		return
	}

	inv := &Invocation{Message: msg, Keyword: keyword, Args: args}
	if keyword == "!help" && r.adminChannelID != "" && msg.RoomID == r.adminChannelID {
		r.gw.Say(msg.Channel, adminHelp(inv))
		return
	}
	cmd, ok := r.table[keyword]
	if !ok {
		return
	}
	if cmd.Admin && (r.adminChannelID == "" || msg.RoomID != r.adminChannelID) {
		return
	}
	r.dispatch(ctx, cmd, inv)
}

func (r *Router) dispatch(ctx context.Context, cmd *Command, inv *Invocation) {
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	logger := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "commands"),
		slog.String("command", cmd.Keyword),
		slog.String("channel", inv.Channel),
		slog.String("user", inv.Sender.Name),
	)
	ctx, span := telemetry.StartSpan(ctx, "command "+cmd.Keyword,
		attribute.String("queue.id", inv.RoomID),
		attribute.String("chat.user", inv.Sender.Name),
	)
	defer span.End()
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("command handler panicked", slog.Any("panic", rec), slog.String("stack", string(debug.Stack())))
			telemetry.RecordError(span, errors.New("handler panic"))
			telemetry.ObserveCommand(cmd.Keyword, telemetry.OutcomePanic, time.Since(start))
		}
	}()

	text, err := cmd.Handler(ctx, inv)
	outcome := telemetry.OutcomeOK
	if err != nil {
		text = inv.Reply("%s", describe(cmd, inv, err))
		if isRejection(err) {
			outcome = telemetry.OutcomeRejected
			logger.Debug("command rejected", slog.Any("err", err))
			telemetry.SetSpanSuccess(span)
		} else {
			outcome = telemetry.OutcomeError
			logger.Error("command failed", slog.Any("err", err))
			telemetry.RecordError(span, err)
		}
	} else {
		telemetry.SetSpanSuccess(span)
	}

	if text != "" {
		r.gw.Say(inv.Channel, text)
	}
	telemetry.ObserveCommand(cmd.Keyword, outcome, time.Since(start))
}
