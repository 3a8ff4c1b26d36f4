// Package store persists completed interview records and their feedback
// reports under the session identifier.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/interview"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("session record not found")

// Summary is the listing view of one persisted session.
type Summary struct {
	ID          string
	StartTime   time.Time
	CompletedAt time.Time
	Questions   int
	Responses   int
	HasFeedback bool
}

// Store is the persistence port for session records and feedback reports.
// Save and SaveFeedback upsert by id.
type Store interface {
	Save(ctx context.Context, record interview.Record) error
	Load(ctx context.Context, id string) (interview.Record, error)
	List(ctx context.Context) ([]Summary, error)
	SaveFeedback(ctx context.Context, id string, report json.RawMessage) error
	LoadFeedback(ctx context.Context, id string) (json.RawMessage, error)
	Close() error
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		return NewMemory(), nil
	case config.StorePostgres:
		return OpenPostgres(ctx, cfg.DSN, logger)
	case config.StoreFile, "":
		dir := strings.TrimSpace(cfg.Dir)
		if dir == "" {
			state, err := config.StateDir()
			if err != nil {
				return nil, err
			}
			dir = filepath.Join(state, "sessions")
		}
		return NewFileStore(dir), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
	}
}

// ValidateID rejects ids that are not session UUIDs.
func ValidateID(id string) error {
	if err := uuid.Validate(id); err != nil {
		return fmt.Errorf("invalid session id %q: %w", id, err)
	}
	return nil
}

func summarize(record interview.Record, hasFeedback bool) Summary {
	return Summary{
		ID:          record.ID,
		StartTime:   record.StartTime,
		CompletedAt: record.CompletedAt,
		Questions:   len(record.Questions),
		Responses:   len(record.Responses),
		HasFeedback: hasFeedback,
	}
}

// sortNewestFirst orders summaries by start time, newest first.
func sortNewestFirst(summaries []Summary) {
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].StartTime.Equal(summaries[j].StartTime) {
			return summaries[i].ID > summaries[j].ID
		}
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})
}
