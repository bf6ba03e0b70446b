package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pion/webrtc/v3"
	"github.com/seojin-dev/stageline/internal/domain"
	"github.com/seojin-dev/stageline/lib/logger/sl"
)

var (
	ErrDisconnected  = errors.New("signaling transport disconnected")
	ErrRoomNotOpen   = errors.New("room is not open")
	ErrNotOwner      = errors.New("only the room owner may do this")
	ErrNotPerformer  = errors.New("only the current performer may do this")
	ErrNotScoring    = errors.New("no performance is being scored")
	ErrAlreadyScored = errors.New("score already submitted this turn")
)

// Hooks are optional observation points for the host application. All run
// on the controller's event goroutine and must not block.
type Hooks struct {
	OnChat       func(sender, text string)
	OnEffect     func(kind domain.ActionKind, from string)
	OnMembership func(members []Member)
	OnTurn       func(phase Phase, performerID string)
}

// Config wires a Controller. SelfID is the explicit session identity; the
// controller never reads identity from ambient state.
type Config struct {
	RoomID      string
	SelfID      string
	DisplayName string
	Transport   Transport
	Engine      MediaEngine
	Directory   RoomDirectory
	Scores      ScoreStore
	Logger      *slog.Logger
	Hooks       Hooks
}

// Controller owns the room session on this client: it dispatches inbound
// envelopes, drives the peer-link mesh, keeps the membership view fresh
// and folds turn events. All state it owns is mutated on the single
// goroutine running Run; negotiation steps for one remote therefore run to
// completion before the next envelope is handled.
type Controller struct {
	roomID      string
	selfID      string
	displayName string
	ownerID     string

	transport Transport
	registry  *Registry
	queue     *candidateQueue
	view      *MembershipView
	turn      *TurnMachine
	directory RoomDirectory
	scores    ScoreStore
	hooks     Hooks
	log       *slog.Logger
}

func NewController(cfg Config) (*Controller, error) {
	if cfg.RoomID == "" {
		return nil, errors.New("room id is required")
	}
	if cfg.SelfID == "" {
		return nil, errors.New("session identity is required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("media engine is required")
	}
	if cfg.Directory == nil {
		return nil, errors.New("room directory is required")
	}
	if cfg.Scores == nil {
		return nil, errors.New("score store is required")
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Controller{
		roomID:      cfg.RoomID,
		selfID:      cfg.SelfID,
		displayName: cfg.DisplayName,
		transport:   cfg.Transport,
		registry:    NewRegistry(cfg.Engine),
		queue:       newCandidateQueue(),
		view:        NewMembershipView(cfg.Directory, cfg.RoomID),
		turn:        NewTurnMachine(),
		directory:   cfg.Directory,
		scores:      cfg.Scores,
		hooks:       cfg.Hooks,
		log: log.With(
			slog.String("room_id", cfg.RoomID),
			slog.String("self_id", cfg.SelfID),
		),
	}, nil
}

// Run joins the room and processes envelopes until the context is
// cancelled or the transport drops. A transport drop is an implicit leave
// for the local participant and returns ErrDisconnected.
func (c *Controller) Run(ctx context.Context) error {
	const op = "session.controller.run"

	info, err := c.directory.GetRoomByID(ctx, c.roomID)
	if err != nil {
		return err
	}
	if !info.Open {
		return ErrRoomNotOpen
	}
	c.ownerID = info.OwnerID

	if err := c.directory.EnterRoom(ctx, c.roomID, c.selfID); err != nil {
		// Optimistic: the next membership refresh will heal this.
		c.log.Warn("enter room failed", slog.String("op", op), sl.Err(err))
	}

	if err := c.transport.Connect(); err != nil {
		return err
	}

	if err := c.transport.Send(domain.Envelope{
		Action: domain.ActionJoinRoom,
		RoomID: c.roomID,
		UserID: c.selfID,
	}); err != nil {
		return err
	}

	c.refreshMembership(ctx)

	for {
		select {
		case <-ctx.Done():
			// The run context is gone; cleanup gets its own.
			c.shutdown(context.Background())
			return nil
		case env, ok := <-c.transport.Incoming():
			if !ok {
				c.handleDisconnect(ctx)
				return ErrDisconnected
			}
			c.dispatch(ctx, env)
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, env domain.Envelope) {
	if env.RoomID != "" && env.RoomID != c.roomID {
		c.log.Warn("envelope for unknown room, ignored", slog.String("env_room", env.RoomID))
		return
	}

	switch env.Action {
	case domain.ActionUserJoined, domain.ActionJoinRoom:
		c.handleUserJoined(ctx, env)
	case domain.ActionOffer:
		c.handleOffer(env)
	case domain.ActionAnswer:
		c.handleAnswer(env)
	case domain.ActionICECandidate:
		c.handleCandidate(env)
	case domain.ActionLeaveRoom:
		c.handleLeave(ctx, env)
	case domain.ActionChatMessage:
		if c.hooks.OnChat != nil && env.Message != nil {
			c.hooks.OnChat(env.Message.Sender, env.Message.Text)
		}
	case domain.ActionClap, domain.ActionMirrorball:
		// Ephemeral cues: fire the local effect and forget.
		if c.hooks.OnEffect != nil {
			c.hooks.OnEffect(env.Action, env.UserID)
		}
	case domain.ActionStart, domain.ActionEnd, domain.ActionEndGame:
		c.handleTurnEvent(ctx, env)
	default:
		c.log.Warn("unknown action, ignored", slog.String("action", string(env.Action)))
	}
}

// handleUserJoined is the already-present side of the handshake: observe
// the newcomer, open a link toward it and send an offer. Every present
// participant does this, so the newcomer answers N-1 independent offers.
func (c *Controller) handleUserJoined(ctx context.Context, env domain.Envelope) {
	remoteID := env.UserID
	if remoteID == "" || remoteID == c.selfID {
		return
	}

	link, created, err := c.registry.GetOrCreate(remoteID)
	if err != nil {
		c.log.Error("failed to create peer link", slog.String("remote_id", remoteID), sl.Err(err))
		return
	}

	if created {
		c.wireLink(link)
	} else if link.State() != LinkStateCreated {
		// Duplicate join notification for a link mid-negotiation.
		c.refreshMembership(ctx)
		return
	}

	offer, err := link.Conn().CreateOffer()
	if err != nil {
		c.failLink(remoteID, err)
		return
	}
	link.setState(LinkStateOfferSent)
	link.markOfferPending(true)

	if err := c.transport.Send(domain.Envelope{
		Action:   domain.ActionOffer,
		RoomID:   c.roomID,
		UserID:   c.selfID,
		TargetID: remoteID,
		Offer:    &offer,
	}); err != nil {
		c.log.Error("failed to send offer", slog.String("remote_id", remoteID), sl.Err(err))
	}

	c.refreshMembership(ctx)
}

func (c *Controller) handleOffer(env domain.Envelope) {
	if env.TargetID != c.selfID {
		return
	}
	if env.Offer == nil {
		c.log.Warn("offer without description, ignored", slog.String("remote_id", env.UserID))
		return
	}
	remoteID := env.UserID

	link, created, err := c.registry.GetOrCreate(remoteID)
	if err != nil {
		c.log.Error("failed to create peer link", slog.String("remote_id", remoteID), sl.Err(err))
		return
	}
	if created {
		c.wireLink(link)
	}
	link.setState(LinkStateOfferReceived)

	answer, err := link.Conn().CreateAnswer(*env.Offer)
	if err != nil {
		c.failLink(remoteID, err)
		return
	}

	if err := c.transport.Send(domain.Envelope{
		Action:   domain.ActionAnswer,
		RoomID:   c.roomID,
		UserID:   c.selfID,
		TargetID: remoteID,
		Answer:   &answer,
	}); err != nil {
		c.log.Error("failed to send answer", slog.String("remote_id", remoteID), sl.Err(err))
	}
	link.setState(LinkStateAnswerExchanged)

	if err := c.queue.Flush(remoteID, link); err != nil {
		c.log.Warn("some buffered candidates failed", slog.String("remote_id", remoteID), sl.Err(err))
	}
}

func (c *Controller) handleAnswer(env domain.Envelope) {
	if env.TargetID != c.selfID {
		return
	}
	remoteID := env.UserID

	link, ok := c.registry.Get(remoteID)
	if !ok || !link.OfferPending() {
		// Protocol violation: an answer we never asked for.
		c.log.Warn("answer with no pending offer, ignored", slog.String("remote_id", remoteID))
		return
	}
	if env.Answer == nil {
		c.log.Warn("answer without description, ignored", slog.String("remote_id", remoteID))
		return
	}

	if err := link.Conn().SetRemoteDescription(*env.Answer); err != nil {
		c.failLink(remoteID, err)
		return
	}
	link.markOfferPending(false)
	link.setState(LinkStateAnswerExchanged)

	if err := c.queue.Flush(remoteID, link); err != nil {
		c.log.Warn("some buffered candidates failed", slog.String("remote_id", remoteID), sl.Err(err))
	}
}

func (c *Controller) handleCandidate(env domain.Envelope) {
	if env.TargetID != c.selfID {
		return
	}
	if env.Candidate == nil {
		c.log.Warn("candidate envelope without candidate, ignored", slog.String("remote_id", env.UserID))
		return
	}
	remoteID := env.UserID

	// Relay fan-out can deliver a candidate before the offer that
	// establishes the link; create the link rather than drop the candidate.
	link, created, err := c.registry.GetOrCreate(remoteID)
	if err != nil {
		c.log.Error("failed to create peer link", slog.String("remote_id", remoteID), sl.Err(err))
		return
	}
	if created {
		c.wireLink(link)
	}

	if err := c.queue.EnqueueOrApply(remoteID, *env.Candidate, link); err != nil {
		c.log.Warn("failed to apply candidate", slog.String("remote_id", remoteID), sl.Err(err))
	}
}

func (c *Controller) handleLeave(ctx context.Context, env domain.Envelope) {
	remoteID := env.UserID
	if remoteID == "" || remoteID == c.selfID {
		return
	}

	c.registry.Close(remoteID)
	c.queue.Drop(remoteID)
	c.view.Remove(remoteID)

	if c.turn.Phase() == PhaseScoring && c.turn.IsPendingScorer(remoteID) {
		// Known liveness gap: the protocol has no cleanup for a scorer who
		// leaves mid-scoring, so this entry will never drain on its own.
		c.log.Warn("pending scorer left during scoring", slog.String("remote_id", remoteID))
	}

	c.refreshMembership(ctx)
	c.log.Info("participant left", slog.String("remote_id", remoteID))
}

func (c *Controller) handleTurnEvent(ctx context.Context, env domain.Envelope) {
	ev := TurnEvent{Kind: env.Action, UserID: env.UserID, TargetID: env.TargetID}
	changed := c.turn.Apply(ev, c.view.IDs())
	if !changed {
		c.log.Warn("turn event ignored in current phase",
			slog.String("action", string(env.Action)),
			slog.String("phase", string(c.turn.Phase())),
		)
		return
	}

	c.log.Info("turn state changed",
		slog.String("action", string(env.Action)),
		slog.String("phase", string(c.turn.Phase())),
		slog.String("performer", c.turn.Performer()),
	)

	if c.hooks.OnTurn != nil {
		c.hooks.OnTurn(c.turn.Phase(), c.turn.Performer())
	}

	if env.Action == domain.ActionEndGame && c.selfID == c.ownerID {
		c.finishGame(ctx)
	}
}

// finishGame runs on the owner's client once endGame is observed:
// aggregate per-game scores into cumulative totals and close the room.
func (c *Controller) finishGame(ctx context.Context) {
	if err := c.scores.UpdateTotalScores(ctx, c.roomID); err != nil {
		c.log.Error("failed to aggregate total scores", sl.Err(err))
	}
	if err := c.directory.CloseRoom(ctx, c.roomID); err != nil {
		c.log.Error("failed to close room", sl.Err(err))
	}
}

func (c *Controller) wireLink(link *PeerLink) {
	remoteID := link.RemoteID
	link.Conn().OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		if !c.registry.Has(remoteID) {
			// Link torn down while the candidate was being gathered.
			return
		}
		if err := c.transport.Send(domain.Envelope{
			Action:    domain.ActionICECandidate,
			RoomID:    c.roomID,
			UserID:    c.selfID,
			TargetID:  remoteID,
			Candidate: &candidate,
		}); err != nil {
			c.log.Warn("failed to send candidate", slog.String("remote_id", remoteID), sl.Err(err))
		}
	})
}

// failLink isolates a negotiation failure to one peer: the link closes,
// everything else keeps running. Membership is not revoked, only an
// explicit leave does that.
func (c *Controller) failLink(remoteID string, err error) {
	c.log.Error("negotiation failed, closing link", slog.String("remote_id", remoteID), sl.Err(err))
	c.registry.Close(remoteID)
	c.queue.Drop(remoteID)
}

func (c *Controller) refreshMembership(ctx context.Context) {
	if err := c.view.Refresh(ctx); err != nil {
		c.log.Warn("membership refresh failed", sl.Err(err))
		return
	}
	if c.hooks.OnMembership != nil {
		c.hooks.OnMembership(c.view.Snapshot())
	}
}

func (c *Controller) handleDisconnect(ctx context.Context) {
	c.log.Info("transport disconnected, leaving room")
	c.registry.CloseAll()
	if err := c.directory.DeleteUserInRoom(ctx, c.roomID, c.selfID); err != nil {
		c.log.Warn("failed to remove self from room record", sl.Err(err))
	}
}

func (c *Controller) shutdown(ctx context.Context) {
	_ = c.transport.Send(domain.Envelope{
		Action: domain.ActionLeaveRoom,
		RoomID: c.roomID,
		UserID: c.selfID,
	})
	c.transport.Close()
	c.registry.CloseAll()
	if err := c.directory.DeleteUserInRoom(ctx, c.roomID, c.selfID); err != nil {
		c.log.Warn("failed to remove self from room record", sl.Err(err))
	}
}

// MarkLinkConnected is called by the media layer when a peer connection
// reaches its connected state.
func (c *Controller) MarkLinkConnected(remoteID string) {
	if link, ok := c.registry.Get(remoteID); ok {
		link.setState(LinkStateConnected)
	}
}

// MarkLinkFailed is called by the media layer on ICE failure. The peer is
// unreachable but stays a member until it explicitly leaves.
func (c *Controller) MarkLinkFailed(remoteID string) {
	c.log.Warn("peer link unusable after ice failure", slog.String("remote_id", remoteID))
	if link, ok := c.registry.Get(remoteID); ok {
		link.setState(LinkStateClosed)
	}
}

// SendChat broadcasts a chat line.
func (c *Controller) SendChat(text string) error {
	return c.transport.Send(domain.Envelope{
		Action:  domain.ActionChatMessage,
		RoomID:  c.roomID,
		UserID:  c.selfID,
		Message: &domain.ChatPayload{Sender: c.displayName, Text: text},
	})
}

// Clap fires the clap cue for everyone in the room.
func (c *Controller) Clap() error {
	return c.transport.Send(domain.Envelope{
		Action: domain.ActionClap,
		RoomID: c.roomID,
		UserID: c.selfID,
	})
}

// Mirrorball fires the mirrorball cue for everyone in the room.
func (c *Controller) Mirrorball() error {
	return c.transport.Send(domain.Envelope{
		Action: domain.ActionMirrorball,
		RoomID: c.roomID,
		UserID: c.selfID,
	})
}

// StartPerformance puts performerID on stage. Owner-only by emitting-side
// policy; the receiving machines trust the relay.
func (c *Controller) StartPerformance(performerID string) error {
	if c.selfID != c.ownerID {
		return ErrNotOwner
	}
	return c.transport.Send(domain.Envelope{
		Action:   domain.ActionStart,
		RoomID:   c.roomID,
		UserID:   c.selfID,
		TargetID: performerID,
	})
}

// EndPerformance closes the local participant's own performance and opens
// scoring.
func (c *Controller) EndPerformance() error {
	if c.turn.Performer() != c.selfID {
		return ErrNotPerformer
	}
	return c.transport.Send(domain.Envelope{
		Action: domain.ActionEnd,
		RoomID: c.roomID,
		UserID: c.selfID,
	})
}

// EndGame finishes the game. Aggregation and room close happen when the
// broadcast comes back through the relay, so every client (including this
// one) folds the same sequence.
func (c *Controller) EndGame() error {
	if c.selfID != c.ownerID {
		return ErrNotOwner
	}
	return c.transport.Send(domain.Envelope{
		Action: domain.ActionEndGame,
		RoomID: c.roomID,
		UserID: c.selfID,
	})
}

// SubmitScore records this participant's score for the current performer.
// One submission per turn; the score store is the system of record.
func (c *Controller) SubmitScore(ctx context.Context, score int) error {
	if c.turn.Phase() != PhaseScoring {
		return ErrNotScoring
	}
	performer := c.turn.Performer()
	if performer == c.selfID {
		return ErrNotPerformer
	}
	if !c.turn.IsPendingScorer(c.selfID) {
		return ErrAlreadyScored
	}

	if err := c.scores.UpdateScore(ctx, c.roomID, performer, score); err != nil {
		return err
	}

	c.turn.MarkScored(c.selfID)
	if c.hooks.OnTurn != nil {
		c.hooks.OnTurn(c.turn.Phase(), c.turn.Performer())
	}
	return nil
}

func (c *Controller) Members() []Member {
	return c.view.Snapshot()
}

func (c *Controller) TurnPhase() Phase {
	return c.turn.Phase()
}

func (c *Controller) Performer() string {
	return c.turn.Performer()
}

func (c *Controller) PendingScorers() []string {
	return c.turn.PendingScorers()
}

// RemainingPerformers lists members the owner can still put on stage.
func (c *Controller) RemainingPerformers() []string {
	return c.turn.RemainingPool(c.view.IDs())
}

func (c *Controller) OwnerID() string {
	return c.ownerID
}

// LinkState reports the negotiation state for a remote participant.
func (c *Controller) LinkState(remoteID string) (LinkState, bool) {
	link, ok := c.registry.Get(remoteID)
	if !ok {
		return "", false
	}
	return link.State(), true
}
