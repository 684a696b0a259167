package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/scythe504/botornot-backend/internal"
)

var ErrMalformedResponse = errors.New("malformed generation response")

// Client calls the conversational backend over HTTP.
type Client struct {
	url    string
	http   *http.Client
	logger zerolog.Logger
}

func New(url string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		url:    url,
		http:   &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "generation").Logger(),
	}
}

type turn struct {
	Seat int    `json:"seat"`
	Text string `json:"text"`
}

type request struct {
	RoomID        string `json:"room_id"`
	SyntheticSeat int    `json:"synthetic_seat"`
	Turns         []turn `json:"turns"`
}

type response struct {
	Text   string `json:"text"`
	Ignore bool   `json:"ignore"`
}

func (c *Client) Generate(ctx context.Context, req internal.GenerationRequest) (internal.GenerationResponse, error) {
	body := request{
		RoomID:        req.RoomID,
		SyntheticSeat: req.SyntheticSeat,
		Turns:         make([]turn, 0, len(req.Turns)),
	}
	for _, t := range req.Turns {
		body.Turns = append(body.Turns, turn{Seat: t.SpeakerSeat, Text: t.Text})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return internal.GenerationResponse{}, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return internal.GenerationResponse{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return internal.GenerationResponse{}, fmt.Errorf("calling generation backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return internal.GenerationResponse{}, fmt.Errorf("%w: status %d: %s",
			ErrMalformedResponse, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return internal.GenerationResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !out.Ignore && strings.TrimSpace(out.Text) == "" {
		return internal.GenerationResponse{}, fmt.Errorf("%w: empty text", ErrMalformedResponse)
	}

	c.logger.Debug().Str("room", req.RoomID).Int("turns", len(req.Turns)).
		Bool("ignore", out.Ignore).Dur("took", time.Since(start)).Msg("generation reply")
	return internal.GenerationResponse{Text: out.Text, Ignore: out.Ignore}, nil
}
