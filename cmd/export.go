package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/stitchr/internal/shared"
	"github.com/desertthunder/stitchr/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Export writes the library (or the playlists named with --id) to disk.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAuth(); err != nil {
		return err
	}

	opts := tasks.ExportOpts{
		Format:      cmd.String("format"),
		OutputDir:   cmd.String("output"),
		NumWorkers:  cmd.Int("workers"),
		RateLimit:   cmd.Float("rate"),
		PlaylistIDs: cmd.StringSlice("id"),
		Covers:      cmd.Bool("covers"),
	}
	r.logger.Info("starting export", "format", opts.Format, "ids", len(opts.PlaylistIDs))

	progressCh := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchPlaylists:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.FetchTracks:
				r.logger.Debug(update.Message, "step", update.Step, "total", update.Total)
			case tasks.ExportPlaylist:
				r.writePlain("   %s\n", update.Message)
			case tasks.WriteManifest:
				r.writePlain("\n📝 %s\n", update.Message)
			}
		}
	}()

	result, err := r.exporter.Export(ctx, progressCh, opts)
	close(progressCh)
	<-printed

	if result == nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Exported: %d/%d playlists\n", result.SuccessfulExports, result.TotalPlaylists)
	r.writePlain("Output: %s\n", result.OutputDirectory)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}

	if result.FailedExports > 0 {
		r.writePlain("\nFailed to export %d playlists:\n", result.FailedExports)
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  - %s: %v\n", res.PlaylistName, res.Error)
			}
		}
	}
	return err
}

// ExportHistory lists recent export runs recorded in the database.
func (r *Runner) ExportHistory(ctx context.Context, cmd *cli.Command) error {
	if r.runs == nil {
		return fmt.Errorf("%w: export history needs a database, run 'stitchr setup'", shared.ErrServiceUnavailable)
	}

	runs, err := r.runs.Recent(ctx, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to load export history: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, cmd.Bool("pretty"))
	}

	if len(runs) == 0 {
		return r.writePlain("No exports recorded yet\n")
	}
	for _, run := range runs {
		status := "running"
		if run.Finished() {
			status = fmt.Sprintf("%d/%d exported", run.Succeeded, run.Total)
		}
		r.writePlain("%s  %-8s %-16s %s\n", run.StartedAt.Local().Format("2006-01-02 15:04"), run.Format, status, run.OutputDir)
	}
	return nil
}
