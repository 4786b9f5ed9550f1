package jobs

import (
	"github.com/rs/zerolog"

	"github.com/foliolabs/folio/internal/cache"
)

// CachePruneJob removes expired cache rows so the cache database stays small
type CachePruneJob struct {
	cache *cache.Cache
	log   zerolog.Logger
}

// NewCachePruneJob creates a new cache prune job
func NewCachePruneJob(c *cache.Cache, log zerolog.Logger) *CachePruneJob {
	return &CachePruneJob{
		cache: c,
		log:   log.With().Str("job", "cache_prune").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *CachePruneJob) Name() string {
	return "cache_prune"
}

// Run deletes expired entries
func (j *CachePruneJob) Run() error {
	pruned, err := j.cache.PruneExpired()
	if err != nil {
		return err
	}
	if pruned > 0 {
		j.log.Debug().Int64("pruned", pruned).Msg("Pruned expired cache entries")
	}
	return nil
}
