package relay

import (
	"context"
	"encoding/json"
	"os"
)

// ReplayFromFile pushes captured events from a JSON dump through the state
// machine. Used to backfill after an outage or to rebuild the status cache;
// the idempotency ledger absorbs anything that already settled, so replaying
// a file twice is harmless.
func (c *Coordinator) ReplayFromFile(ctx context.Context, path string) {
	c.logger.Info().Str("file", path).Msg("replaying events from file")
	events, err := eventsFromFile(path)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to load events from file")
		return
	}
	if len(events) == 0 {
		c.logger.Info().Msg("no events in file")
		return
	}

	checkpoint, err := c.store.GetCheckpoint(c.sourceChain)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to read checkpoint")
		return
	}

	sortEventsByHeight(events)
	minHeight, maxHeight := events[0].Height, events[len(events)-1].Height
	c.logger.Info().
		Int("count", len(events)).
		Int64("min_height", minHeight).
		Int64("max_height", maxHeight).
		Msg("loaded events from file")

	handled := 0
	for _, ev := range events {
		if ev.Chain != c.sourceChain {
			c.logger.Debug().
				Str("chain", string(ev.Chain)).
				Str("tx_hash", ev.TxHash).
				Msg("skipping event for other chain")
			continue
		}
		if ev.Height <= checkpoint {
			c.logger.Debug().
				Str("tx_hash", ev.TxHash).
				Int64("height", ev.Height).
				Msg("skipping event below checkpoint")
			continue
		}
		if err := c.Handle(ctx, ev); err != nil {
			c.logger.Error().Err(err).
				Str("tx_hash", ev.TxHash).
				Int64("height", ev.Height).
				Msg("failed to replay event")
			continue
		}
		handled++
	}
	c.logger.Info().Int("events", len(events)).Int("handled", handled).Msg("finished replaying events")
}

func eventsFromFile(path string) ([]Event, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var events []Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, err
	}
	return events, nil
}
