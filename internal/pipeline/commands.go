// file: internal/pipeline/commands.go
// version: 1.5.0
// guid: 71f9e5a5-dc92-428e-b703-24ce56befc4f

package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jdfalk/playlist-archiver/internal/metrics"
	"github.com/jdfalk/playlist-archiver/internal/models"
)

// OverrideQuery stores a human-supplied search query (nil clears it).
// The status never changes here; a non-nil query on an item that
// already has a downloaded file re-enqueues it so the next match run
// uses the new query. Clearing only affects future match runs.
// An override set while the item is still NotFetched is persisted and
// honored once the download completes.
func (p *Pipeline) OverrideQuery(ctx context.Context, id string, query *models.SearchQuery) error {
	release, err := p.store.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	_, updated, err := p.store.Upsert(id, func(v *models.Video) error {
		v.OverrideQuery = cleanQuery(query)
		return nil
	})
	if err != nil {
		return err
	}
	metrics.ManualCommand("override_query")
	if query != nil && updated.Status.Downloaded() {
		p.enqueue(p.matchQ, id)
	}
	return nil
}

// OverrideResult stores a human-supplied match result (nil clears it).
// A non-nil result re-enqueues the item; the match worker will skip the
// search entirely and archive with this result verbatim.
func (p *Pipeline) OverrideResult(ctx context.Context, id string, result *models.Metadata) error {
	release, err := p.store.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	_, updated, err := p.store.Upsert(id, func(v *models.Video) error {
		v.OverrideResult = cleanResult(result)
		return nil
	})
	if err != nil {
		return err
	}
	metrics.ManualCommand("override_result")
	if result != nil && updated.Status.Downloaded() {
		p.enqueue(p.matchQ, id)
	}
	return nil
}

// RetryFetch resets a failed or disabled item to NotFetched and
// re-enters it into the download queue.
func (p *Pipeline) RetryFetch(ctx context.Context, id string) error {
	release, err := p.store.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	_, _, err = p.store.Upsert(id, func(v *models.Video) error {
		switch v.Status {
		case models.StatusFetchError, models.StatusBrainzError, models.StatusDisabled:
		default:
			return fmt.Errorf("%w: retry_fetch not valid from %s", models.ErrConflict, v.Status)
		}
		v.Status = models.StatusNotFetched
		v.LastError = nil
		return nil
	})
	if err != nil {
		return err
	}
	metrics.ManualCommand("retry_fetch")
	p.enqueue(p.downloadQ, id)
	return nil
}

// Delete removes the local file (if any) and disables the item. When
// the id is mid-pipeline the delete is accepted immediately as a
// pending-cancel marker and applied as soon as the in-flight operation
// releases its claim. Idempotent.
func (p *Pipeline) Delete(id string) error {
	release, deferred := p.store.TryAcquireOrDefer(id)
	if deferred {
		log.Printf("Delete of %s deferred until in-flight operation completes", id)
		metrics.ManualCommand("delete")
		return nil
	}
	defer release()

	if err := p.deleteClaimed(id); err != nil {
		return err
	}
	metrics.ManualCommand("delete")
	return nil
}

// deleteClaimed performs the delete while the caller holds the claim.
func (p *Pipeline) deleteClaimed(id string) error {
	if _, err := p.store.Get(id); err != nil {
		return err
	}

	if path, ok := p.fetcher.FindScratchFile(id); ok {
		if err := p.removeFile(id, path); err != nil {
			return err
		}
	}
	if path, ok := p.org.FindLibraryFile(id); ok {
		if err := p.removeFile(id, path); err != nil {
			return err
		}
	}

	_, _, err := p.store.Upsert(id, func(v *models.Video) error {
		v.Status = models.StatusDisabled
		return nil
	})
	return err
}

func (p *Pipeline) removeFile(id, path string) error {
	if err := p.org.Remove(path); err != nil {
		reason := err.Error()
		if _, _, upErr := p.store.Upsert(id, func(v *models.Video) error {
			v.LastError = &reason
			return nil
		}); upErr != nil {
			log.Printf("Error recording delete failure for %s: %v", id, upErr)
		}
		return err
	}
	return nil
}

// applyLateDelete runs a pending-cancel delete once the blocking claim
// was released, overriding whatever status the finishing operation set.
func (p *Pipeline) applyLateDelete(id string) {
	release, deferred := p.store.TryAcquireOrDefer(id)
	if deferred {
		// Another operation grabbed the claim first; the marker fires
		// again when that one releases.
		return
	}
	defer release()
	if err := p.deleteClaimed(id); err != nil {
		log.Printf("Error applying deferred delete of %s: %v", id, err)
	}
}

// Reindex re-enqueues Categorized items for a fresh match run. The
// status stays Categorized until the re-run commits, and ids in any
// other status are ignored.
func (p *Pipeline) Reindex(ids []string) {
	for _, id := range ids {
		v, err := p.store.Get(id)
		if err != nil {
			continue
		}
		if v.Status != models.StatusCategorized {
			continue
		}
		p.enqueue(p.matchQ, id)
	}
	metrics.ManualCommand("reindex")
}

// LocateFile returns the current audio file for an id, preferring the
// scratch copy over the archived one.
func (p *Pipeline) LocateFile(id string) (string, bool) {
	if path, ok := p.fetcher.FindScratchFile(id); ok {
		return path, true
	}
	return p.org.FindLibraryFile(id)
}

// TriggerSync requests an immediate discovery cycle.
func (p *Pipeline) TriggerSync() {
	select {
	case p.syncNow <- struct{}{}:
	default:
	}
	metrics.ManualCommand("trigger_sync")
}

// cleanQuery trims whitespace and collapses empty optional fields to nil.
func cleanQuery(q *models.SearchQuery) *models.SearchQuery {
	if q == nil {
		return nil
	}
	return &models.SearchQuery{
		TrackID: normString(q.TrackID),
		Title:   strings.TrimSpace(q.Title),
		Artist:  normString(q.Artist),
		Album:   normString(q.Album),
	}
}

// cleanResult trims whitespace on every field of a manual result.
func cleanResult(r *models.Metadata) *models.Metadata {
	if r == nil {
		return nil
	}
	artists := make([]string, 0, len(r.Artist))
	for _, a := range r.Artist {
		if a = strings.TrimSpace(a); a != "" {
			artists = append(artists, a)
		}
	}
	return &models.Metadata{
		RecordingID: normString(r.RecordingID),
		Title:       strings.TrimSpace(r.Title),
		Artist:      artists,
		Album:       normString(r.Album),
	}
}

func normString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
