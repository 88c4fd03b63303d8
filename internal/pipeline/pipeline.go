// file: internal/pipeline/pipeline.go
// version: 1.6.0
// guid: ce5d4bb6-fd6f-421b-bfa2-1b2b87b34597

// Package pipeline coordinates the per-video lifecycle: discovery finds
// new ids, the download pool fetches audio into scratch storage, and the
// match pool resolves metadata, tags, and archives into the library.
// Every stage operation and manual command runs under the store's per-id
// claim, so two writers can never race on the same video.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jdfalk/playlist-archiver/internal/database"
	"github.com/jdfalk/playlist-archiver/internal/discovery"
	"github.com/jdfalk/playlist-archiver/internal/downloader"
	"github.com/jdfalk/playlist-archiver/internal/library"
	"github.com/jdfalk/playlist-archiver/internal/metrics"
	"github.com/jdfalk/playlist-archiver/internal/models"
	"github.com/jdfalk/playlist-archiver/internal/organizer"
	"github.com/jdfalk/playlist-archiver/internal/tagger"
)

// queueDepth bounds the stage queues; the periodic sweep re-enqueues
// anything that was dropped while a queue was full.
const queueDepth = 1024

// Enumerator lists the entries of one source playlist.
type Enumerator interface {
	PlaylistItems(ctx context.Context, playlistID string) ([]discovery.Item, error)
}

// Fetcher is the download stage's view of the extraction tool.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) (*downloader.Result, error)
	CachedMetadata(videoID string) (*downloader.Result, bool)
	FindScratchFile(videoID string) (string, bool)
}

// Resolver is the match stage's view of the metadata search service.
type Resolver interface {
	Resolve(ctx context.Context, q models.SearchQuery) (*models.Metadata, error)
}

// Config carries the orchestration knobs.
type Config struct {
	DownloadWorkers int
	MatchWorkers    int
	SyncInterval    time.Duration
	MatchInterval   time.Duration
}

// Pipeline wires the stages to the record store.
type Pipeline struct {
	store    *library.Store
	db       database.Store
	enum     Enumerator
	fetcher  Fetcher
	resolver Resolver
	org      *organizer.Organizer
	cfg      Config

	// writeTags is swappable for tests; production uses tagger.WriteTags.
	writeTags func(path, videoID string, meta *models.Metadata) error

	downloadQ chan string
	matchQ    chan string
	syncNow   chan struct{}
}

// New creates a pipeline. Workers don't run until Run is called.
func New(store *library.Store, db database.Store, enum Enumerator, fetcher Fetcher,
	resolver Resolver, org *organizer.Organizer, cfg Config) *Pipeline {
	if cfg.DownloadWorkers <= 0 {
		cfg.DownloadWorkers = 1
	}
	if cfg.MatchWorkers <= 0 {
		cfg.MatchWorkers = 1
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 5 * time.Minute
	}
	if cfg.MatchInterval <= 0 {
		cfg.MatchInterval = time.Hour
	}
	p := &Pipeline{
		store:     store,
		db:        db,
		enum:      enum,
		fetcher:   fetcher,
		resolver:  resolver,
		org:       org,
		cfg:       cfg,
		writeTags: tagger.WriteTags,
		downloadQ: make(chan string, queueDepth),
		matchQ:    make(chan string, queueDepth),
		syncNow:   make(chan struct{}, 1),
	}
	store.OnLateDelete(p.applyLateDelete)
	return p
}

// Run starts the discovery loop, the sweep loop and both worker pools,
// then blocks until ctx is canceled and all workers drained.
func (p *Pipeline) Run(ctx context.Context) {
	p.sweep()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.discoveryLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.sweepLoop(ctx)
	}()

	for i := 0; i < p.cfg.DownloadWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.stageWorker(ctx, p.downloadQ, p.processDownload)
		}()
	}
	for i := 0; i < p.cfg.MatchWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.stageWorker(ctx, p.matchQ, p.processMatch)
		}()
	}

	wg.Wait()
}

func (p *Pipeline) stageWorker(ctx context.Context, queue <-chan string, process func(context.Context, string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-queue:
			process(ctx, id)
		}
	}
}

// discoveryLoop runs discovery on a fixed interval, serialized: a run
// must complete before the next is considered, so overlap is impossible.
func (p *Pipeline) discoveryLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.SyncInterval)
	defer ticker.Stop()

	p.runDiscovery(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.syncNow:
		}
		p.runDiscovery(ctx)
	}
}

// sweepLoop periodically re-enqueues eligible backlog, covering dropped
// queue entries and work left over from a previous process run.
func (p *Pipeline) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.MatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

func (p *Pipeline) sweep() {
	for _, id := range p.store.ListByStatus(models.StatusNotFetched) {
		p.enqueue(p.downloadQ, id)
	}
	for _, id := range p.store.ListByStatus(models.StatusFetched) {
		p.enqueue(p.matchQ, id)
	}
	p.updateGauges()
}

func (p *Pipeline) updateGauges() {
	counts := make(map[models.Status]int)
	for _, v := range p.store.List() {
		counts[v.Status]++
	}
	for status, name := range map[models.Status]string{
		models.StatusNotFetched:  "NotFetched",
		models.StatusFetched:     "Fetched",
		models.StatusFetchError:  "FetchError",
		models.StatusBrainzError: "BrainzError",
		models.StatusCategorized: "Categorized",
		models.StatusDisabled:    "Disabled",
	} {
		metrics.SetVideos(name, counts[status])
	}
}

func (p *Pipeline) enqueue(queue chan string, id string) {
	select {
	case queue <- id:
	default:
		log.Printf("Stage queue full, dropping %s until next sweep", id)
	}
}

// runDiscovery enumerates every enabled playlist and creates unseen ids
// at NotFetched. Existing items are never revisited or altered, and an
// enumeration failure skips the cycle without touching the store.
func (p *Pipeline) runDiscovery(ctx context.Context) {
	playlists, err := p.db.ListPlaylists()
	if err != nil {
		log.Printf("Error loading playlist configs: %v", err)
		metrics.DiscoveryRun("error")
		return
	}

	outcome := "ok"
	for _, cfg := range playlists {
		if !cfg.Enabled {
			continue
		}
		log.Printf("Syncing playlist %s", cfg.PlaylistID)
		items, err := p.enum.PlaylistItems(ctx, cfg.PlaylistID)
		if err != nil {
			log.Printf("Error enumerating playlist %s: %v", cfg.PlaylistID, err)
			outcome = "error"
			continue
		}
		for _, item := range items {
			seedQuery := &models.SearchQuery{
				Title:  item.Title,
				Artist: models.StringPtr(item.Channel),
			}
			created, err := p.store.Create(item.VideoID, func(v *models.Video) error {
				v.LastQuery = seedQuery
				return nil
			})
			if err != nil {
				log.Printf("Error creating video %s: %v", item.VideoID, err)
				continue
			}
			if created {
				p.enqueue(p.downloadQ, item.VideoID)
			}
		}
	}
	metrics.DiscoveryRun(outcome)
	p.updateGauges()
}

// processDownload runs the download stage for one claimed id.
func (p *Pipeline) processDownload(ctx context.Context, id string) {
	release, err := p.store.Acquire(ctx, id)
	if err != nil {
		return
	}
	defer release()

	v, err := p.store.Get(id)
	if err != nil || v.Status != models.StatusNotFetched {
		// A manual command got here first; the queue entry is stale.
		return
	}

	if _, err := p.fetcher.Fetch(ctx, id); err != nil {
		reason := err.Error()
		_, _, upErr := p.store.Upsert(id, func(v *models.Video) error {
			v.Status = models.StatusFetchError
			v.LastError = &reason
			return nil
		})
		if upErr != nil {
			log.Printf("Error recording fetch failure for %s: %v", id, upErr)
		}
		metrics.StageResult("download", "error")
		return
	}

	now := time.Now()
	_, _, err = p.store.Upsert(id, func(v *models.Video) error {
		v.Status = models.StatusFetched
		v.FetchTime = &now
		v.LastError = nil
		return nil
	})
	if err != nil {
		log.Printf("Error committing download for %s: %v", id, err)
		return
	}
	metrics.StageResult("download", "ok")
	p.enqueue(p.matchQ, id)
}

// processMatch runs the match/tag/archive stage for one claimed id.
// Accepted statuses: Fetched (normal flow), BrainzError (override-driven
// re-run) and Categorized (reindex; status only changes when the re-run
// commits).
func (p *Pipeline) processMatch(ctx context.Context, id string) {
	release, err := p.store.Acquire(ctx, id)
	if err != nil {
		return
	}
	defer release()

	v, err := p.store.Get(id)
	if err != nil {
		return
	}
	switch v.Status {
	case models.StatusFetched, models.StatusBrainzError, models.StatusCategorized:
	default:
		return
	}

	meta, derivedQuery, err := p.resolveMetadata(ctx, v)
	if err != nil {
		p.failMatch(id, v.Status, derivedQuery, err)
		metrics.StageResult("match", "error")
		return
	}

	path, ok := p.fetcher.FindScratchFile(id)
	if !ok {
		path, ok = p.org.FindLibraryFile(id)
	}
	if !ok {
		p.failMatch(id, v.Status, derivedQuery, fmt.Errorf("no local audio file found"))
		metrics.StageResult("match", "error")
		return
	}

	if err := p.writeTags(path, id, meta); err != nil {
		p.failMatch(id, v.Status, derivedQuery, err)
		metrics.StageResult("archive", "error")
		return
	}
	if _, err := p.org.MoveToLibrary(path, meta); err != nil {
		p.failMatch(id, v.Status, derivedQuery, err)
		metrics.StageResult("archive", "error")
		return
	}

	// The lifecycle has no direct edge from BrainzError to Categorized;
	// an override-driven re-run re-enters Fetched before committing.
	if v.Status == models.StatusBrainzError {
		if _, _, err := p.store.Upsert(id, func(cur *models.Video) error {
			cur.Status = models.StatusFetched
			return nil
		}); err != nil {
			log.Printf("Error re-entering match for %s: %v", id, err)
			return
		}
	}
	_, _, err = p.store.Upsert(id, func(cur *models.Video) error {
		cur.Status = models.StatusCategorized
		cur.LastError = nil
		if derivedQuery != nil {
			cur.LastQuery = derivedQuery
		}
		if v.OverrideResult == nil {
			cur.LastResult = meta
		}
		return nil
	})
	if err != nil {
		log.Printf("Error committing match for %s: %v", id, err)
		return
	}
	metrics.StageResult("match", "ok")
}

// resolveMetadata decides the match result: override result verbatim,
// else search with the override query or a query derived from extractor
// metadata. The derived query is returned so the caller can persist it
// as LastQuery alongside the outcome.
func (p *Pipeline) resolveMetadata(ctx context.Context, v *models.Video) (*models.Metadata, *models.SearchQuery, error) {
	if v.OverrideResult != nil {
		return v.OverrideResult, nil, nil
	}

	var (
		query   models.SearchQuery
		derived *models.SearchQuery
	)
	if v.OverrideQuery != nil {
		query = *v.OverrideQuery
	} else {
		res, ok := p.fetcher.CachedMetadata(v.ID)
		if !ok {
			// Fall back to what discovery saw.
			if v.LastQuery == nil {
				return nil, nil, fmt.Errorf("no metadata available to build a query")
			}
			query = *v.LastQuery
			derived = v.LastQuery
		} else {
			title := res.Title
			if res.Track != nil {
				title = *res.Track
			}
			query = models.SearchQuery{
				Title:  title,
				Artist: res.Artist,
				Album:  res.Album,
			}
			derived = &query
		}
	}

	meta, err := p.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, derived, err
	}
	return meta, derived, nil
}

// failMatch drives the item to BrainzError. A Categorized item first
// steps back to Fetched, since the lifecycle has no direct edge from
// Categorized to an error state.
func (p *Pipeline) failMatch(id string, from models.Status, derivedQuery *models.SearchQuery, cause error) {
	reason := cause.Error()
	if from == models.StatusCategorized {
		if _, _, err := p.store.Upsert(id, func(v *models.Video) error {
			v.Status = models.StatusFetched
			return nil
		}); err != nil {
			log.Printf("Error stepping %s back for re-match: %v", id, err)
			return
		}
	}
	_, _, err := p.store.Upsert(id, func(v *models.Video) error {
		v.Status = models.StatusBrainzError
		v.LastError = &reason
		if derivedQuery != nil {
			v.LastQuery = derivedQuery
		}
		v.LastResult = nil
		return nil
	})
	if err != nil {
		log.Printf("Error recording match failure for %s: %v", id, err)
	}
}
