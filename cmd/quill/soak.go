package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// runSoak processes lines repeatedly until d has passed, or once when d is
// zero, and logs throughput.
func runSoak(ctx context.Context, proc *Processor, lines []string, d time.Duration) error {
	if d > 0 {
		log.Info().Str("duration", d.String()).Int("lines", len(lines)).Msg("Starting soak test")
	}

	startTime := time.Now()
	endTime := startTime.Add(d)
	var (
		totalSentences int64
		iter           int
	)
	for {
		if _, err := proc.ProcessLines(ctx, lines); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			return err
		}
		totalSentences += int64(len(lines))
		iter++

		if !time.Now().Before(endTime) {
			break
		}
		if iter%10 == 0 {
			elapsed := time.Since(startTime)
			log.Info().
				Str("elapsed", elapsed.Round(time.Second).String()).
				Int("iter", iter).
				Int64("total_sentences", totalSentences).
				Float64("sps", float64(totalSentences)/elapsed.Seconds()).
				Msg("Soak test progress")
		}
	}

	totalElapsed := time.Since(startTime)
	log.Info().
		Int64("total_sentences", totalSentences).
		Int("iterations", iter).
		Dur("total_time", totalElapsed).
		Float64("avg_sps", float64(totalSentences)/totalElapsed.Seconds()).
		Msg("Soak test complete")
	return nil
}
