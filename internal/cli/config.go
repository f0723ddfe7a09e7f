package cli

import (
	"context"

	"github.com/okian/codeboard/internal/domain/types"
)

// Commands understood by Run.
const (
	CommandRanking   = "ranking"
	CommandRank      = "rank"
	CommandRecompute = "recompute"
	CommandSync      = "sync"
	CommandRetry     = "retry-suspended"
	CommandStats     = "stats"
)

// Config holds one invocation of the tool.
type Config struct {
	Command    string
	Args       []string
	Department string
	Batch      string
	Platform   string
	Limit      int
	NoColor    bool
}

// Backend is the slice of the service the tool drives.
type Backend interface {
	GetRanking(ctx context.Context, f types.Filter) ([]types.Entry, error)
	Rank(ctx context.Context, studentID string) (types.Entry, error)
	Recompute(ctx context.Context) (types.Ranking, error)
	RunScheduledSync(ctx context.Context) error
	RunCooldownRetry(ctx context.Context) error
	Stats(ctx context.Context) (map[string]any, error)
}
