package tasks

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/stitchr/internal/formatter"
	"github.com/desertthunder/stitchr/internal/models"
	"github.com/desertthunder/stitchr/internal/pagination"
	"github.com/desertthunder/stitchr/internal/shared"
)

// RunStore records export history. [repositories.ExportRunRepository] implements it.
type RunStore interface {
	Start(ctx context.Context, run *models.ExportRun) error
	Finish(ctx context.Context, run *models.ExportRun) error
}

// ExportOpts contains configuration for bulk playlist exports.
type ExportOpts struct {
	Format      string   // Export format: json, csv, markdown, txt
	OutputDir   string   // Base output directory (default: spotify_export_{epoch})
	NumWorkers  int      // Concurrent workers (default: 5, max: 10)
	RateLimit   float64  // Requests per second across all workers (default: 5)
	PlaylistIDs []string // Playlists to export; empty exports the whole library
	Covers      bool     // Download cover images for the markdown format
}

// PlaylistExportResult is the outcome for one playlist.
type PlaylistExportResult struct {
	PlaylistID   string
	PlaylistName string
	Success      bool
	Tracks       int
	Files        []string
	Error        error
}

// ExportResult summarizes a bulk export.
type ExportResult struct {
	Run               *models.ExportRun
	TotalPlaylists    int
	SuccessfulExports int
	FailedExports     int
	Results           []PlaylistExportResult
	OutputDirectory   string
	ManifestPath      string
}

// Exporter drains playlists and their tracks and writes them to disk.
type Exporter struct {
	spotify Spotify
	runs    RunStore
	client  *http.Client
	batch   int
	logger  *log.Logger
}

// NewExporter creates an exporter. runs may be nil, in which case history is not recorded.
func NewExporter(sp Spotify, runs RunStore, opts Options) *Exporter {
	return &Exporter{
		spotify: sp,
		runs:    runs,
		client:  &http.Client{Timeout: 30 * time.Second},
		batch:   opts.BatchSize,
		logger:  opts.logger("export"),
	}
}

// paced waits on l before every page fetch.
func paced[T any](l *rate.Limiter, fetch pagination.FetchFunc[T]) pagination.FetchFunc[T] {
	return func(ctx context.Context, start, amount int) ([]T, error) {
		if err := l.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrCancelled, err)
		}
		return fetch(ctx, start, amount)
	}
}

// Export exports playlists concurrently with rate limiting and progress tracking.
//
// Playlists are exported by a pool of workers. Every API call, from listing the
// library to each page of tracks, shares one rate limiter. Failures of individual
// playlists are reported in the result and the manifest; they do not stop the run.
func (x *Exporter) Export(ctx context.Context, prog chan<- ProgressUpdate, opts ExportOpts) (*ExportResult, error) {
	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	opts.Format = format

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("spotify_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	sendProgress(prog, fetchingPlaylistsUpdate())
	playlists, failed, err := x.resolve(ctx, limiter, opts.PlaylistIDs)
	if err != nil {
		return nil, err
	}
	total := len(playlists) + len(failed)
	sendProgress(prog, foundPlaylistsUpdate(total))

	result := &ExportResult{
		TotalPlaylists:  total,
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistExportResult, 0, total),
		Run:             &models.ExportRun{Format: opts.Format, OutputDir: opts.OutputDir, Total: total},
	}
	x.startRun(ctx, result.Run)

	jobs := make(chan models.Playlist, len(playlists))
	results := make(chan PlaylistExportResult, total)

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go x.worker(ctx, &wg, limiter, jobs, results, opts)
	}

	for _, res := range failed {
		results <- res
	}
	go func() {
		for i, pl := range playlists {
			if ctx.Err() != nil {
				break
			}
			sendProgress(prog, fetchTracksUpdate(i+1, len(playlists), pl))
			jobs <- pl
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)
		if res.Success {
			result.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(completed, total, res))
		} else {
			result.FailedExports++
			sendProgress(prog, exportFailedUpdate(completed, total, res))
		}
	}

	result.Run.Succeeded = result.SuccessfulExports
	result.Run.Failed = total - result.SuccessfulExports
	x.finishRun(result.Run)

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(manifest(result, opts.Format), manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	sendProgress(prog, manifestUpdate(manifestPath))

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%w: export interrupted: %v", shared.ErrCancelled, err)
	}
	return result, nil
}

// resolve lists the playlists to export. Requested ids that cannot be fetched are
// returned as failed results; listing the library failing aborts the export.
func (x *Exporter) resolve(ctx context.Context, limiter *rate.Limiter, ids []string) ([]models.Playlist, []PlaylistExportResult, error) {
	if len(ids) == 0 {
		engine := pagination.New(pagination.Options[models.Playlist]{
			Name:      "export-playlists",
			BatchSize: x.batch,
			Logger:    x.logger,
			Fetch: paced(limiter, func(ctx context.Context, start, amount int) ([]models.Playlist, error) {
				page, err := x.spotify.Playlists(ctx, start, amount)
				if err != nil {
					return nil, err
				}
				return page.Items, nil
			}),
		})
		playlists, err := pagination.Drain(ctx, engine)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list playlists: %w", err)
		}
		return playlists, nil, nil
	}

	var (
		playlists []models.Playlist
		failed    []PlaylistExportResult
	)
	for _, id := range ids {
		if err := limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", shared.ErrCancelled, err)
		}
		pl, err := x.spotify.Playlist(ctx, id, nil)
		if err != nil {
			failed = append(failed, PlaylistExportResult{
				PlaylistID:   id,
				PlaylistName: fmt.Sprintf("Unknown (%s)", id),
				Error:        fmt.Errorf("failed to fetch playlist: %w", err),
			})
			continue
		}
		playlists = append(playlists, *pl)
	}
	return playlists, failed, nil
}

// worker exports playlists from the jobs channel.
func (x *Exporter) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan models.Playlist,
	results chan<- PlaylistExportResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for pl := range jobs {
		if ctx.Err() != nil {
			results <- PlaylistExportResult{
				PlaylistID:   pl.ID,
				PlaylistName: pl.Name,
				Error:        fmt.Errorf("%w: %v", shared.ErrCancelled, ctx.Err()),
			}
			continue
		}
		results <- x.exportOne(ctx, limiter, pl, opts)
	}
}

// exportOne drains the playlist's tracks and writes them in the requested format.
func (x *Exporter) exportOne(ctx context.Context, limiter *rate.Limiter, pl models.Playlist, opts ExportOpts) PlaylistExportResult {
	res := PlaylistExportResult{PlaylistID: pl.ID, PlaylistName: pl.Name}

	engine := pagination.New(pagination.Options[models.TrackItem]{
		Name:      "export-tracks",
		BatchSize: x.batch,
		Logger:    x.logger,
		Fetch: paced(limiter, func(ctx context.Context, start, amount int) ([]models.TrackItem, error) {
			page, err := x.spotify.PlaylistTracks(ctx, pl.ID, start, amount)
			if err != nil {
				return nil, err
			}
			return page.Items, nil
		}),
	})
	items, err := pagination.Drain(ctx, engine)
	if err != nil {
		res.Error = fmt.Errorf("failed to fetch tracks: %w", err)
		return res
	}

	export := &models.PlaylistExport{Playlist: pl, Items: items, ExportedAt: time.Now().UTC()}

	var cover []byte
	if opts.Covers && opts.Format == formatter.FormatMarkdown && pl.CoverURL() != "" {
		if cover, err = formatter.DownloadImage(ctx, x.client, pl.CoverURL()); err != nil {
			x.logger.Warn("failed to download cover image", "playlist", pl.ID, "error", err)
		}
	}

	files, err := formatter.Write(opts.Format, export, opts.OutputDir, cover)
	if err != nil {
		res.Error = fmt.Errorf("%s export failed: %w", opts.Format, err)
		return res
	}

	res.Success = true
	res.Tracks = len(items)
	res.Files = files
	return res
}

func (x *Exporter) startRun(ctx context.Context, run *models.ExportRun) {
	if x.runs == nil {
		return
	}
	if err := x.runs.Start(ctx, run); err != nil {
		x.logger.Warn("failed to record export run", "error", err)
	}
}

func (x *Exporter) finishRun(run *models.ExportRun) {
	if x.runs == nil || run.ID == "" {
		return
	}
	// The run is closed even when the export was cancelled.
	if err := x.runs.Finish(context.Background(), run); err != nil {
		x.logger.Warn("failed to finish export run", "id", run.ID, "error", err)
	}
}

func manifest(result *ExportResult, format string) formatter.Manifest {
	m := formatter.Manifest{
		Format:            format,
		OutputDirectory:   result.OutputDirectory,
		TotalPlaylists:    result.TotalPlaylists,
		SuccessfulExports: result.SuccessfulExports,
		FailedExports:     result.FailedExports,
		Playlists:         make([]formatter.ManifestEntry, 0, len(result.Results)),
	}
	if result.Run != nil {
		m.RunID = result.Run.ID
	}
	for _, res := range result.Results {
		entry := formatter.ManifestEntry{
			ID:     res.PlaylistID,
			Name:   res.PlaylistName,
			Status: formatter.StatusSuccess,
			Tracks: res.Tracks,
			Files:  res.Files,
		}
		if !res.Success {
			entry.Status = formatter.StatusFailed
			if res.Error != nil {
				entry.Error = res.Error.Error()
			}
		}
		m.Playlists = append(m.Playlists, entry)
	}
	return m
}
