package broadcast

import (
	"context"
	"time"

	"github.com/google/uuid"

	"minderbot/internal/kit"
	logx "minderbot/pkg/logx"
)

// runCycle delivers one pool item to every known destination. Failures are
// isolated per destination; an empty destination set means a silent skip.
func (s *Service) runCycle(ctx context.Context) {
	start := time.Now()
	id := uuid.NewString()[:8]
	sender, reg, lim, evictAfter := s.snapshot()

	if sender == nil || reg == nil {
		return
	}

	dests, err := reg.ListDestinations(ctx)
	if err != nil {
		s.log.Warn("broadcast cycle skipped: destination list failed", logx.String("cycle", id), logx.Err(err))
		return
	}
	if len(dests) == 0 {
		s.log.Debug("broadcast cycle skipped: no destinations", logx.String("cycle", id))
		return
	}

	text := s.pickContent()
	if text == "" {
		return
	}

	s.log.Info("broadcast cycle started", logx.String("cycle", id), logx.Int("total", len(dests)))

	sent, failed := 0, 0
	for _, d := range dests {
		select {
		case <-ctx.Done():
			s.log.Debug("broadcast cycle interrupted", logx.String("cycle", id), logx.Int("sent", sent))
			return
		default:
		}

		// Inter-destination pacing so a large registry doesn't burst the channel.
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return
			}
		}

		to := kit.ChatTarget{ChatID: d.ChatID, ThreadID: d.ThreadID}
		_, sendErr := sender.SendText(ctx, to, text, &kit.SendOptions{DisablePreview: true})
		if sendErr != nil {
			failed++
			s.log.Warn("broadcast send failed", logx.String("cycle", id), logx.Int64("chat_id", d.ChatID), logx.Err(sendErr))
		} else {
			sent++
		}

		evicted, recErr := reg.RecordSendResult(ctx, d.ChatID, sendErr == nil, evictAfter)
		if recErr != nil {
			s.log.Warn("destination bookkeeping failed", logx.String("cycle", id), logx.Int64("chat_id", d.ChatID), logx.Err(recErr))
			continue
		}
		if evicted {
			s.log.Warn("destination evicted after repeated failures", logx.Int64("chat_id", d.ChatID), logx.Int("threshold", evictAfter))
		}
	}

	fields := []logx.Field{
		logx.String("cycle", id),
		logx.Int("sent", sent),
		logx.Int("failed", failed),
		logx.Duration("dur", time.Since(start)),
	}
	if failed > 0 {
		s.log.Warn("broadcast cycle finished with failures", fields...)
	} else {
		s.log.Info("broadcast cycle finished", fields...)
	}
}
