package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v3"
	"github.com/seojin-dev/stageline/internal/config"
	"github.com/seojin-dev/stageline/internal/domain"
	"github.com/seojin-dev/stageline/internal/session"
	"github.com/seojin-dev/stageline/lib/logger/sl"
	"github.com/seojin-dev/stageline/lib/logger/slogpretty"
)

// Headless stage client: joins a room over the relay, negotiates the peer
// mesh and drives the turn cycle from stdin commands.
func main() {
	var (
		serverURL string
		roomID    string
		userID    string
		name      string
		token     string
	)
	flag.StringVar(&serverURL, "server", "http://localhost:8080", "relay base URL")
	flag.StringVar(&roomID, "room", "", "room id to join")
	flag.StringVar(&userID, "user", "", "session identity, a fresh guest is registered when empty")
	flag.StringVar(&name, "name", "guest", "display name")
	flag.StringVar(&token, "token", "", "bearer token for the relay")

	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	if roomID == "" {
		log.Error("room id is required, pass -room")
		os.Exit(1)
	}

	directory := session.NewRESTDirectory(serverURL, token)

	if userID == "" {
		userID = uuid.New().String()
		if err := directory.RegisterUser(context.Background(), userID, name); err != nil {
			log.Error("failed to register guest identity", sl.Err(err))
			os.Exit(1)
		}
	}

	transport := session.NewWSTransport(joinURL(serverURL, roomID, userID, name))

	var ctrl *session.Controller
	engine := session.NewPionEngine(
		cfg.WebRTC.STUNServers,
		nil,
		func(remoteID string, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			log.Info("remote track", slog.String("remote_id", remoteID), slog.String("kind", track.Kind().String()))
		},
		func(remoteID string, state webrtc.PeerConnectionState) {
			switch state {
			case webrtc.PeerConnectionStateConnected:
				ctrl.MarkLinkConnected(remoteID)
			case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
				ctrl.MarkLinkFailed(remoteID)
			}
		},
	)

	ctrl, err := session.NewController(session.Config{
		RoomID:      roomID,
		SelfID:      userID,
		DisplayName: name,
		Transport:   transport,
		Engine:      engine,
		Directory:   directory,
		Scores:      directory,
		Logger:      log,
		Hooks: session.Hooks{
			OnChat: func(sender, text string) {
				fmt.Printf("[chat] %s: %s\n", sender, text)
			},
			OnEffect: func(kind domain.ActionKind, from string) {
				fmt.Printf("[cue] %s from %s\n", kind, from)
			},
			OnMembership: func(members []session.Member) {
				names := make([]string, 0, len(members))
				for _, m := range members {
					names = append(names, m.DisplayName)
				}
				fmt.Printf("[room] %s\n", strings.Join(names, ", "))
			},
			OnTurn: func(phase session.Phase, performerID string) {
				fmt.Printf("[turn] %s performer=%s\n", phase, performerID)
			},
		},
	})
	if err != nil {
		log.Error("failed to build session controller", sl.Err(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go commandLoop(ctx, ctrl)

	log.Info("joining room",
		slog.String("room_id", roomID),
		slog.String("self_id", userID),
	)

	switch err := ctrl.Run(ctx); {
	case err == nil:
		log.Info("left room")
	case errors.Is(err, session.ErrDisconnected):
		log.Warn("relay dropped the session")
	default:
		log.Error("session failed", sl.Err(err))
		os.Exit(1)
	}
}

// commandLoop turns stdin lines into controller operations. A bare line is
// a chat message.
func commandLoop(ctx context.Context, ctrl *session.Controller) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "/clap":
			err = ctrl.Clap()
		case "/mirrorball":
			err = ctrl.Mirrorball()
		case "/start":
			err = ctrl.StartPerformance(strings.TrimSpace(arg))
		case "/end":
			err = ctrl.EndPerformance()
		case "/score":
			var score int
			if score, err = strconv.Atoi(strings.TrimSpace(arg)); err == nil {
				err = ctrl.SubmitScore(ctx, score)
			}
		case "/endgame":
			err = ctrl.EndGame()
		case "/members":
			for _, m := range ctrl.Members() {
				fmt.Printf("  %s (%s) score=%d\n", m.DisplayName, m.ID, m.Score)
			}
		default:
			if strings.HasPrefix(cmd, "/") {
				fmt.Println("commands: /clap /mirrorball /start <user> /end /score <n> /endgame /members")
				continue
			}
			err = ctrl.SendChat(line)
		}

		if err != nil {
			fmt.Printf("[error] %v\n", err)
		}
	}
}

func joinURL(serverURL, roomID, userID, name string) string {
	ws := serverURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}

	query := url.Values{}
	query.Set("user_id", userID)
	query.Set("name", name)

	return strings.TrimRight(ws, "/") + "/api/rooms/" + roomID + "/ws?" + query.Encode()
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	switch env {
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case envLocal:
		fallthrough
	default:
		opts := slogpretty.PrettyHandlerOptions{
			SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
		}
		return slog.New(opts.NewPrettyHandler(os.Stderr))
	}
}
