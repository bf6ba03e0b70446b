package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/seojin-dev/stageline/internal/api/http/converter"
	"github.com/seojin-dev/stageline/internal/domain"
	"github.com/seojin-dev/stageline/internal/repository"
	"github.com/seojin-dev/stageline/internal/service"
	"github.com/seojin-dev/stageline/lib/logger/sl"
)

type RoomController struct {
	rooms    service.RoomInteractor
	scores   service.ScoreInteractor
	users    service.UserInteractor
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewRoomController(rooms service.RoomInteractor, scores service.ScoreInteractor, users service.UserInteractor, log *slog.Logger) *RoomController {
	if log == nil {
		log = slog.Default()
	}
	return &RoomController{
		rooms:  rooms,
		scores: scores,
		users:  users,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (c *RoomController) CreateRoom(ctx *gin.Context) {
	type CreateRoomRequest struct {
		Title    string `json:"title" binding:"required"`
		SubTitle string `json:"sub_title"`
		Category string `json:"category"`
		RankMode bool   `json:"rank_mode"`
	}
	var req CreateRoomRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	ownerID, _ := SessionIdentity(ctx)

	room, err := c.rooms.CreateRoom(ctx.Request.Context(), req.Title, req.SubTitle, req.Category, req.RankMode, ownerID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"room": converter.RoomToApi(room)})
}

func (c *RoomController) ListOpenRooms(ctx *gin.Context) {
	rooms, err := c.rooms.ListOpenRooms(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"rooms": converter.RoomsToApi(rooms)})
}

func (c *RoomController) GetRoom(ctx *gin.Context) {
	roomID, err := uuid.Parse(ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	room, err := c.rooms.GetRoom(ctx.Request.Context(), roomID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(room)})
}

func (c *RoomController) CloseRoom(ctx *gin.Context) {
	roomID, err := uuid.Parse(ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	if err := c.rooms.CloseRoom(ctx.Request.Context(), roomID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (c *RoomController) ListParticipants(ctx *gin.Context) {
	roomID, err := uuid.Parse(ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	participants, err := c.rooms.ListParticipants(ctx.Request.Context(), roomID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"participants": participants})
}

func (c *RoomController) ChatHistory(ctx *gin.Context) {
	roomID, err := uuid.Parse(ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "0"))

	msgs, err := c.rooms.ChatHistory(ctx.Request.Context(), roomID, limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"messages": converter.ChatMessagesToApi(msgs)})
}

func (c *RoomController) RemoveUser(ctx *gin.Context) {
	roomID, err := uuid.Parse(ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	if err := c.rooms.UnregisterPeer(ctx.Request.Context(), roomID, ctx.Param("userID")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrPeerNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (c *RoomController) GetScore(ctx *gin.Context) {
	roomID, err := uuid.Parse(ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	score, err := c.scores.GetUserScoreInRoom(ctx.Request.Context(), roomID, ctx.Param("userID"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrMemberNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"score": score})
}

func (c *RoomController) UpdateScore(ctx *gin.Context) {
	type ScoreRequest struct {
		Score int `json:"score" binding:"min=0"`
	}

	roomID, err := uuid.Parse(ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	var req ScoreRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := c.scores.UpdateScore(ctx.Request.Context(), roomID, ctx.Param("userID"), req.Score); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrMemberNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (c *RoomController) UpdateTotalScores(ctx *gin.Context) {
	roomID, err := uuid.Parse(ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	if err := c.scores.UpdateTotalScores(ctx.Request.Context(), roomID); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.Status(http.StatusNoContent)
}

// JoinRoom upgrades the request to a websocket and runs the signaling
// session until the socket drops. A dropped socket is an implicit leave.
func (c *RoomController) JoinRoom(ctx *gin.Context) {
	roomID, err := uuid.Parse(ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	user, err := c.resolveJoinIdentity(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Error("websocket upgrade failed", sl.Err(err))
		return
	}

	peer, err := c.rooms.RegisterPeer(context.Background(), roomID, user)
	if err != nil {
		conn.WriteJSON(gin.H{"error": err.Error()})
		conn.Close()
		return
	}
	peer.Socket = conn
	peer.SetStatus(domain.PeerStatusConnected)

	go forwardPeerEvents(peer)

	_ = conn.WriteJSON(domain.Envelope{
		Action: domain.ActionUserJoined,
		RoomID: roomID.String(),
		UserID: peer.ID,
		Payload: map[string]any{
			"display_name": peer.DisplayName,
			"avatar_url":   peer.AvatarURL,
		},
	})

	for {
		var env domain.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			_ = c.rooms.UnregisterPeer(context.Background(), roomID, peer.ID)
			conn.Close()
			return
		}

		if err := c.rooms.HandleSignal(context.Background(), roomID, peer.ID, &env); err != nil {
			conn.WriteJSON(gin.H{"error": err.Error()})
		}
	}
}

// resolveJoinIdentity threads an explicit session identity into the room:
// the JWT identity when present, otherwise an identified or guest user
// from query parameters.
func (c *RoomController) resolveJoinIdentity(ctx *gin.Context) (*domain.User, error) {
	displayName := ctx.Query("name")

	if id, ok := SessionIdentity(ctx); ok {
		user, err := c.users.GetUser(ctx.Request.Context(), id)
		if err == nil {
			if displayName != "" {
				user.Name = displayName
			}
			return user, nil
		}
		if displayName == "" {
			displayName = id
		}
		return domain.NewUser(id, displayName, ""), nil
	}

	if userID := ctx.Query("user_id"); userID != "" {
		user, err := c.users.GetUser(ctx.Request.Context(), userID)
		if err != nil {
			return nil, errors.New("user not found")
		}
		if displayName != "" {
			user.Name = displayName
		}
		return user, nil
	}

	if displayName == "" {
		return nil, errors.New("name is required")
	}
	return domain.NewGuestUser(displayName), nil
}

func forwardPeerEvents(peer *domain.Peer) {
	for event := range peer.Events {
		if peer.Socket == nil {
			return
		}
		if err := peer.Socket.WriteJSON(event); err != nil {
			return
		}
	}
}
