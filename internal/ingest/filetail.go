package ingest

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"fleetwatch/internal/config"
	"fleetwatch/internal/model"
	"fleetwatch/internal/normalize"
)

// StartFileTail follows CSV or JSON-lines telemetry exports, one
// goroutine per file. With start_at_end false the whole file is
// replayed, which is the backfill path.
func StartFileTail(ctx context.Context, cfg *config.Manager, parser *Parser, out chan<- model.ReadingSample, logger *slog.Logger) {
	current := cfg.Get().Ingest.FileTail
	if !current.Enabled {
		if logger != nil {
			logger.Info("file tail ingest disabled")
		}
		return
	}
	for _, path := range current.Files {
		path := path
		if logger != nil {
			logger.Info("file tail ingest enabled", "path", path, "start_at_end", current.StartAtEnd)
		}
		go tailFile(ctx, path, current.StartAtEnd, parser, out, logger)
	}
}

func tailFile(ctx context.Context, path string, startAtEnd bool, parser *Parser, out chan<- model.ReadingSample, logger *slog.Logger) {
	var file *os.File
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if file == nil {
			f, err := os.Open(path)
			if err != nil {
				if logger != nil {
					logger.Warn("tail open failed", "path", path, "err", err)
				}
				if !BackoffSleep(ctx, 500*time.Millisecond) {
					return
				}
				continue
			}
			file = f
			if startAtEnd {
				if pos, err := file.Seek(0, io.SeekEnd); err == nil {
					offset = pos
				}
			}
		}

		reader := bufio.NewReader(file)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					if !BackoffSleep(ctx, 200*time.Millisecond) {
						_ = file.Close()
						return
					}
					info, statErr := os.Stat(path)
					if statErr == nil && info.Size() < offset {
						_ = file.Close()
						file = nil
						break
					}
					continue
				}
				if logger != nil {
					logger.Warn("tail read error", "path", path, "err", err)
				}
				_ = file.Close()
				file = nil
				break
			}
			offset += int64(len(line))
			fields, err := parser.ParseLine(line)
			if err != nil || fields == nil {
				continue
			}
			sample, err := normalize.Normalize(*fields)
			if err != nil {
				if logger != nil {
					logger.Warn("tail normalize error", "err", err)
				}
				continue
			}
			SendNonBlocking(ctx, out, sample, logger)
		}
	}
}
