// Package progress decides which playback positions are worth persisting and
// how imported progress reconciles against stored state.
package progress

import (
	"context"
	"time"

	"github.com/streamtrack/backend/internal/models"
)

// Thresholds for classifying a (duration, watched) pair, in seconds.
const (
	// notStartedThreshold: less elapsed than this is treated as noise, not a
	// real viewing.
	notStartedThreshold int64 = 20
	// completedThreshold: within this of the end counts as finished, not
	// worth resuming.
	completedThreshold int64 = 120
)

// EpochFloor is the earliest timestamp the service accepts; client-submitted
// times before it are clamped up rather than rejected.
var EpochFloor = time.UnixMilli(1626134400000).UTC()

// IsNotStarted reports whether the position is too early to count as a viewing.
func IsNotStarted(duration, watched int64) bool {
	_ = duration
	return watched < notStartedThreshold
}

// IsCompleted reports whether the position is close enough to the end to
// count as finished.
func IsCompleted(duration, watched int64) bool {
	return duration-watched < completedThreshold
}

// IsAcceptable reports whether the position is meaningfully resumable:
// neither near-zero nor near-complete.
func IsAcceptable(duration, watched int64) bool {
	return !IsNotStarted(duration, watched) && !IsCompleted(duration, watched)
}

// ClampTimestamp normalizes a client-submitted timestamp into
// [EpochFloor, now]. A nil timestamp defaults to now. Skewed client clocks
// degrade gracefully instead of erroring.
func ClampTimestamp(submitted *time.Time, now time.Time) time.Time {
	t := now
	if submitted != nil {
		t = submitted.UTC()
	}
	if t.Before(EpochFloor) {
		return EpochFloor
	}
	if t.After(now) {
		return now
	}
	return t
}

// SeasonLister lists a user's persisted progress rows for one season of a
// title, excluding the given episode.
type SeasonLister interface {
	ListSeasonSiblings(ctx context.Context, userID, tmdbID, seasonID string, excludeEpisodeID *string) ([]models.ProgressItem, error)
}

// Reconciler applies the save-worthiness rules for incoming progress samples.
type Reconciler struct {
	store SeasonLister
}

// NewReconciler constructs a Reconciler over the given sibling lister.
func NewReconciler(store SeasonLister) *Reconciler {
	if store == nil {
		panic("progress: season lister must not be nil")
	}
	return &Reconciler{store: store}
}

// ShouldSave decides whether the candidate sample deserves a row. Movies are
// saved only while acceptable. Episodes are saved when acceptable; an
// unacceptable episode is kept only if some sibling episode in the same
// season already holds acceptable progress, so a season with real engagement
// retains its continuity markers while all-noise seasons stay empty.
func (r *Reconciler) ShouldSave(ctx context.Context, item models.ProgressItem) (bool, error) {
	acceptable := IsAcceptable(item.Duration, item.Watched)

	if item.Meta.Type == models.MediaTypeMovie {
		return acceptable, nil
	}
	if acceptable {
		return true, nil
	}
	if item.SeasonID == nil {
		return false, nil
	}

	siblings, err := r.store.ListSeasonSiblings(ctx, item.UserID, item.TmdbID, *item.SeasonID, item.EpisodeID)
	if err != nil {
		return false, err
	}

	for _, sibling := range siblings {
		if IsAcceptable(sibling.Duration, sibling.Watched) {
			return true, nil
		}
	}
	return false, nil
}

// NormalizeIdentity strips season/episode identity from movie samples so the
// composite uniqueness key behaves identically for both kinds.
func NormalizeIdentity(item models.ProgressItem) models.ProgressItem {
	if item.Meta.Type == models.MediaTypeMovie {
		item.SeasonID = nil
		item.EpisodeID = nil
		item.SeasonNumber = nil
		item.EpisodeNumber = nil
	}
	return item
}

// MergeImport resolves a bulk-imported candidate set against existing rows
// and returns the items to upsert. For a matched identity the existing row
// wins unless the candidate's watched value is strictly greater; import
// never regresses progress. Unmatched candidates are inserted as-is: an
// import is a full-fidelity migration and bypasses the save-worthiness
// filter. Existing rows without a candidate are left untouched.
func MergeImport(existing, candidates []models.ProgressItem) []models.ProgressItem {
	remaining := make([]models.ProgressItem, len(candidates))
	copy(remaining, candidates)

	var upserts []models.ProgressItem
	for _, current := range existing {
		matched := -1
		for i, candidate := range remaining {
			if current.SameIdentity(candidate) {
				matched = i
				break
			}
		}
		if matched < 0 {
			continue
		}

		candidate := remaining[matched]
		remaining = append(remaining[:matched], remaining[matched+1:]...)

		if current.Watched >= candidate.Watched {
			continue
		}

		merged := current
		merged.Duration = candidate.Duration
		merged.Watched = candidate.Watched
		merged.Meta = candidate.Meta
		merged.UpdatedAt = candidate.UpdatedAt
		upserts = append(upserts, merged)
	}

	return append(upserts, remaining...)
}

// CleanupPlan returns the ids of rows the cleanup sweep should delete. A
// movie row goes when its position is noise or finished. Within a season,
// noise/finished rows go only when the season still holds at least one
// acceptable episode; a season with nothing acceptable is dropped wholesale.
func CleanupPlan(items []models.ProgressItem) []string {
	type seasonKey struct {
		tmdbID string
		season string
	}

	var doomed []string
	seasons := make(map[seasonKey][]models.ProgressItem)
	var seasonOrder []seasonKey

	for _, item := range items {
		if item.EpisodeID == nil {
			if !IsAcceptable(item.Duration, item.Watched) {
				doomed = append(doomed, item.ID)
			}
			continue
		}

		key := seasonKey{tmdbID: item.TmdbID}
		if item.SeasonID != nil {
			key.season = *item.SeasonID
		}
		if _, seen := seasons[key]; !seen {
			seasonOrder = append(seasonOrder, key)
		}
		seasons[key] = append(seasons[key], item)
	}

	for _, key := range seasonOrder {
		episodes := seasons[key]

		hasAcceptable := false
		for _, episode := range episodes {
			if IsAcceptable(episode.Duration, episode.Watched) {
				hasAcceptable = true
				break
			}
		}

		for _, episode := range episodes {
			if !hasAcceptable || !IsAcceptable(episode.Duration, episode.Watched) {
				doomed = append(doomed, episode.ID)
			}
		}
	}

	return doomed
}
