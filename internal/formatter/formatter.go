// package formatter renders drained playlists to CSV, Markdown, plain text and JSON,
// and writes the manifest that summarizes a bulk export.
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/stitchr/internal/models"
	"github.com/desertthunder/stitchr/internal/shared"
)

// Supported export formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists every format accepted by [ParseFormat].
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// ParseFormat normalizes a user supplied format name. "" means JSON; "md" and "text" are aliases.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatText, "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidArgument, s, strings.Join(Formats, ", "))
	}
}

// FormatDuration renders d as m:ss, or h:mm:ss past the hour.
func FormatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Visibility describes a playlist as "public" or "private".
func Visibility(p models.Playlist) string {
	if p.IsPublic() {
		return "public"
	}
	return "private"
}

var csvHeaders = []string{"Position", "ID", "Title", "Artists", "Album", "Duration", "ISRC", "URI", "Added At"}

// ExportToCSV writes one row per available track. Unavailable items are skipped but
// keep their position, so gaps in the Position column mark removed tracks.
func ExportToCSV(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, item := range export.Items {
		tr := item.Track
		if tr == nil {
			continue
		}
		added := ""
		if !item.AddedAt.IsZero() {
			added = item.AddedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			strconv.Itoa(i + 1),
			tr.ID,
			tr.Name,
			tr.ArtistNames(),
			tr.Album.Name,
			FormatDuration(tr.Duration()),
			tr.ISRC(),
			tr.URI,
			added,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders a README style document. imageFilename is linked as the cover when set.
func ExportToMarkdown(export *models.PlaylistExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer
	p := export.Playlist

	fmt.Fprintf(&buf, "# %s\n\n", p.Name)
	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}
	if p.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", p.Description)
	}
	if p.Owner.DisplayName != "" {
		fmt.Fprintf(&buf, "**Owner**: %s\n", p.Owner.DisplayName)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Items))
	fmt.Fprintf(&buf, "**Visibility**: %s\n\n", Visibility(p))

	buf.WriteString("## Tracks\n\n")
	for i, item := range export.Items {
		if item.Track == nil {
			fmt.Fprintf(&buf, "%d. _unavailable_\n", i+1)
			continue
		}
		tr := item.Track
		album := ""
		if tr.Album.Name != "" {
			album = fmt.Sprintf(" (%s)", tr.Album.Name)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1, tr.ArtistNames(), tr.Name, album, FormatDuration(tr.Duration()))
	}
	return buf.Bytes(), nil
}

// ExportToText renders a numbered "artist - title" listing.
func ExportToText(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Playlist.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Items))

	for i, item := range export.Items {
		if item.Track == nil {
			fmt.Fprintf(&buf, "%d. (unavailable)\n", i+1)
			continue
		}
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, item.Track.ArtistNames(), item.Track.Name)
	}
	return buf.Bytes(), nil
}

// ToMetadataJSON renders the playlist object without its items.
func ToMetadataJSON(playlist models.Playlist) ([]byte, error) {
	return shared.MarshalJSON(playlist, true)
}

// DownloadImage fetches a cover image. A nil client uses a 30 second timeout.
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty image URL", shared.ErrMissingArgument)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to download image: %v", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// WriteJSONExport writes the full export, items included, to path
// (default {playlist.ID}.json).
func WriteJSONExport(export *models.PlaylistExport, path string) (string, error) {
	if path == "" {
		path = export.Playlist.ID + ".json"
	}
	data, err := shared.MarshalJSON(export, true)
	if err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write JSON file: %w", err)
	}
	return path, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport writes {base}_tracks.csv and {base}_metadata.json. base defaults to the playlist ID.
func WriteCSVExport(export *models.PlaylistExport, base string) (*CSVExportResult, error) {
	if base == "" {
		base = export.Playlist.ID
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}
	tracksFile := base + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	meta, err := ToMetadataJSON(export.Playlist)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}
	metadataFile := base + "_metadata.json"
	if err := os.WriteFile(metadataFile, meta, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{TracksFile: tracksFile, MetadataFile: metadataFile}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport creates {dir}/README.md and, when cover is non-empty, {dir}/cover.jpg.
//
// dir defaults to the playlist ID.
func WriteMarkdownExport(export *models.PlaylistExport, dir string, cover []byte) (*MarkdownExportResult, error) {
	if dir == "" {
		dir = export.Playlist.ID
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: dir}

	coverName := ""
	if len(cover) > 0 {
		path := filepath.Join(dir, "cover.jpg")
		if err := os.WriteFile(path, cover, 0644); err != nil {
			log.Warn("failed to save cover image", "path", path, "error", err)
		} else {
			coverName = "cover.jpg"
			result.CoverImage = path
			result.Files = append(result.Files, path)
		}
	}

	md, err := ExportToMarkdown(export, coverName)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}
	mdFile := filepath.Join(dir, "README.md")
	if err := os.WriteFile(mdFile, md, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)
	return result, nil
}

// WriteTextExport writes the text listing to path (default {playlist.ID}_tracks.txt).
func WriteTextExport(export *models.PlaylistExport, path string) (string, error) {
	if path == "" {
		path = export.Playlist.ID + "_tracks.txt"
	}
	data, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}
	return path, nil
}

// Write renders export in format under dir and returns the files created.
// cover is only used by the Markdown format.
func Write(format string, export *models.PlaylistExport, dir string, cover []byte) ([]string, error) {
	id := export.Playlist.ID
	switch format {
	case FormatCSV:
		res, err := WriteCSVExport(export, filepath.Join(dir, id))
		if err != nil {
			return nil, err
		}
		return []string{res.TracksFile, res.MetadataFile}, nil
	case FormatMarkdown:
		res, err := WriteMarkdownExport(export, filepath.Join(dir, id), cover)
		if err != nil {
			return nil, err
		}
		return res.Files, nil
	case FormatText:
		path, err := WriteTextExport(export, filepath.Join(dir, id+"_tracks.txt"))
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	case FormatJSON:
		path, err := WriteJSONExport(export, filepath.Join(dir, id+".json"))
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}
