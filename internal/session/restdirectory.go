package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/seojin-dev/stageline/internal/domain"
)

// RESTDirectory implements RoomDirectory and ScoreStore against the relay's
// REST API.
type RESTDirectory struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewRESTDirectory(baseURL, token string) *RESTDirectory {
	return &RESTDirectory{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// RegisterUser creates the profile the relay resolves a join against.
func (d *RESTDirectory) RegisterUser(ctx context.Context, id, name string) error {
	body := map[string]string{"user_id": id, "user_name": name}
	return d.do(ctx, http.MethodPost, "/api/users", body, nil)
}

func (d *RESTDirectory) GetRoomByID(ctx context.Context, roomID string) (*RoomInfo, error) {
	var resp struct {
		Room RoomInfo `json:"room"`
	}
	if err := d.do(ctx, http.MethodGet, "/api/rooms/"+roomID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Room, nil
}

func (d *RESTDirectory) EnterRoom(ctx context.Context, roomID, userID string) error {
	// Membership is recorded by the relay when the websocket session is
	// registered; nothing to do over REST.
	return nil
}

func (d *RESTDirectory) DeleteUserInRoom(ctx context.Context, roomID, userID string) error {
	return d.do(ctx, http.MethodDelete, "/api/rooms/"+roomID+"/users/"+userID, nil, nil)
}

func (d *RESTDirectory) GetAllUsersInRoom(ctx context.Context, roomID string) ([]domain.Participant, error) {
	var resp struct {
		Participants []domain.Participant `json:"participants"`
	}
	if err := d.do(ctx, http.MethodGet, "/api/rooms/"+roomID+"/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Participants, nil
}

func (d *RESTDirectory) CloseRoom(ctx context.Context, roomID string) error {
	return d.do(ctx, http.MethodPut, "/api/rooms/"+roomID+"/close", nil, nil)
}

func (d *RESTDirectory) GetUserScoreInRoom(ctx context.Context, roomID, userID string) (int, error) {
	var resp struct {
		Score int `json:"score"`
	}
	if err := d.do(ctx, http.MethodGet, "/api/rooms/"+roomID+"/users/"+userID+"/score", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Score, nil
}

func (d *RESTDirectory) UpdateScore(ctx context.Context, roomID, userID string, score int) error {
	body := map[string]int{"score": score}
	return d.do(ctx, http.MethodPut, "/api/rooms/"+roomID+"/users/"+userID+"/score", body, nil)
}

func (d *RESTDirectory) UpdateTotalScores(ctx context.Context, roomID string) error {
	return d.do(ctx, http.MethodPost, "/api/rooms/"+roomID+"/total-scores", nil, nil)
}

func (d *RESTDirectory) do(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
