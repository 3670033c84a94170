package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"fleetwatch/internal/config"
	"fleetwatch/internal/model"
	"fleetwatch/internal/normalize"
)

func StartKafka(ctx context.Context, cfg *config.Manager, parser *Parser, dedupe *DedupeCache, out chan<- model.ReadingSample, logger *slog.Logger) {
	current := cfg.Get().Ingest.Kafka
	if !current.Enabled {
		if logger != nil {
			logger.Info("kafka ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka ingest enabled", "brokers", current.Brokers, "topic", current.Topic, "group_id", current.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Brokers,
		Topic:    current.Topic,
		GroupID:  current.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("kafka read error", "err", err)
				}
				continue
			}
			fields, err := parser.ParseLine(string(m.Value))
			if err != nil || fields == nil {
				continue
			}
			sample, err := normalize.Normalize(*fields)
			if err != nil {
				if logger != nil {
					logger.Warn("kafka normalize error", "err", err)
				}
				continue
			}
			if isDuplicate(cfg.Get(), dedupe, sample) {
				continue
			}
			SendNonBlocking(ctx, out, sample, logger)
		}
	}()
}

func isDuplicate(cfg *config.Config, dedupe *DedupeCache, sample model.ReadingSample) bool {
	if dedupe == nil || cfg.Ingest.DedupeWindow <= 0 {
		return false
	}
	return dedupe.Seen(HashSample(sample), time.Now().UTC(), cfg.Ingest.DedupeWindow)
}
