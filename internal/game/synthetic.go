package game

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/scythe504/botornot-backend/internal"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// SYNTHETIC PARTICIPANT DRIVER
// =============================================================================

type DriverSettings struct {
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Concurrency    int
}

// SyntheticDriver speaks for the synthetic seat of every room. It runs on its
// own cycle, never on the event-handling path: each sweep drains the pending
// buffers of active rooms into one batched request per room.
type SyntheticDriver struct {
	manager   *Manager
	generator Generator
	settings  DriverSettings
	logger    zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// batch is one room's drained buffer.
type batch struct {
	roomID  string
	request internal.GenerationRequest
	opener  bool
}

func NewSyntheticDriver(m *Manager, gen Generator, settings DriverSettings, logger zerolog.Logger, rng *rand.Rand) *SyntheticDriver {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if settings.Concurrency < 1 {
		settings.Concurrency = 1
	}
	if settings.RequestTimeout <= 0 {
		settings.RequestTimeout = 20 * time.Second
	}
	return &SyntheticDriver{
		manager:   m,
		generator: gen,
		settings:  settings,
		logger:    logger.With().Str("component", "synthetic").Logger(),
		rng:       rng,
	}
}

// Run sweeps until ctx is cancelled.
func (d *SyntheticDriver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.settings.PollInterval)
	defer ticker.Stop()

	d.logger.Info().Dur("interval", d.settings.PollInterval).Msg("synthetic driver started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("synthetic driver stopped")
			return nil
		case <-ticker.C:
			d.Sweep(ctx)
		}
	}
}

// Sweep drains every eligible room and waits for the replies of this cycle.
func (d *SyntheticDriver) Sweep(ctx context.Context) {
	batches := d.collect()
	if len(batches) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.settings.Concurrency)
	for _, b := range batches {
		g.Go(func() error {
			d.respond(gctx, b)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *SyntheticDriver) collect() []batch {
	now := d.manager.now()
	var batches []batch
	for _, candidate := range d.manager.store.NewestFirst() {
		roomID := candidate.Id
		_ = d.manager.store.Update(roomID, func(room *internal.Room) error {
			if room.Phase != internal.PhaseActive {
				return nil
			}
			openerDue := !room.OpenerDue.IsZero() && !now.Before(room.OpenerDue)
			if len(room.Pending) == 0 && !openerDue {
				return nil
			}
			synthetic := room.GetSynthetic()
			if synthetic == nil {
				return nil
			}

			turns := make([]internal.GenerationTurn, 0, len(room.Pending))
			for _, msg := range room.Pending {
				turns = append(turns, internal.GenerationTurn{SpeakerSeat: msg.SeatIndex, Text: msg.Text})
			}
			room.Pending = nil
			room.OpenerDue = time.Time{}

			batches = append(batches, batch{
				roomID: roomID,
				opener: len(turns) == 0,
				request: internal.GenerationRequest{
					RoomID:        roomID,
					SyntheticSeat: synthetic.SeatIndex,
					Turns:         turns,
				},
			})
			return nil
		})
	}
	return batches
}

// respond calls the backend for one room. Failures are a missed turn.
func (d *SyntheticDriver) respond(ctx context.Context, b batch) {
	ctx, cancel := context.WithTimeout(ctx, d.settings.RequestTimeout)
	defer cancel()

	resp, err := d.generator.Generate(ctx, b.request)
	if err != nil {
		d.logger.Warn().Err(err).Str("room", b.roomID).Int("turns", len(b.request.Turns)).
			Msg("generation failed, skipping turn")
		return
	}
	if resp.Ignore {
		d.logger.Debug().Str("room", b.roomID).Bool("opener", b.opener).Msg("backend chose to stay quiet")
		return
	}

	text := d.perturb(resp.Text)
	if strings.TrimSpace(text) == "" {
		d.logger.Warn().Str("room", b.roomID).Msg("generation returned empty text, skipping turn")
		return
	}
	if err := d.manager.postSynthetic(b.roomID, text); err != nil {
		d.logger.Debug().Err(err).Str("room", b.roomID).Msg("room moved on before reply arrived")
	}
}

func (d *SyntheticDriver) perturb(text string) string {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return Perturb(text, d.rng)
}
