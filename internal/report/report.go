// Package report renders walk snapshots as human-readable TXT reports, CSV
// exports and terminal listings.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"dirmanage/internal/disk"
	"dirmanage/internal/fsops"
	"dirmanage/internal/scan"
)

// TimeLayout is used for modification times in TXT reports and listings.
const TimeLayout = "2006-01-02 15:04:05"

// CSVHeader is the first row of every CSV export.
var CSVHeader = []string{"path", "size_bytes", "owner", "group", "last_modified_epoch"}

const rule = "--------------------------------------------------------------------------------"

// Generator writes report files. Each file is rendered in memory and then
// written while holding the guard.
type Generator struct {
	guard  *fsops.Guard
	logger *zap.Logger
	now    func() time.Time
	usage  func(path string) (*disk.Usage, error)
}

// NewGenerator creates a Generator. A nil guard gets a private one.
func NewGenerator(guard *fsops.Guard, logger *zap.Logger) *Generator {
	if guard == nil {
		guard = fsops.NewGuard()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		guard:  guard,
		logger: logger,
		now:    time.Now,
		usage:  disk.GetUsage,
	}
}

// WriteTXT writes the human-readable report for snap to outfile.
// Filesystem usage of the snapshot root is included when it can be read.
func (g *Generator) WriteTXT(outfile string, snap *scan.Snapshot) error {
	usage, err := g.usage(snap.Root)
	if err != nil {
		g.logger.Warn("filesystem usage unavailable", zap.String("root", snap.Root), zap.Error(err))
		usage = nil
	}

	var buf bytes.Buffer
	if err := RenderTXT(&buf, snap, usage, g.now()); err != nil {
		return err
	}
	return g.write(outfile, buf.Bytes(), "txt", len(snap.Records))
}

// WriteCSV writes the CSV export for snap to outfile.
func (g *Generator) WriteCSV(outfile string, snap *scan.Snapshot) error {
	var buf bytes.Buffer
	if err := RenderCSV(&buf, snap.Records); err != nil {
		return err
	}
	return g.write(outfile, buf.Bytes(), "csv", len(snap.Records))
}

func (g *Generator) write(outfile string, data []byte, format string, files int) error {
	err := g.guard.Do(func() error {
		return os.WriteFile(outfile, data, 0o644)
	})
	if err != nil {
		return fmt.Errorf("write %s report %s: %w", format, outfile, err)
	}
	g.logger.Info("report generated",
		zap.String("format", format),
		zap.String("path", outfile),
		zap.Int("files", files))
	return nil
}

// RenderTXT renders the human-readable report. usage may be nil.
func RenderTXT(w io.Writer, snap *scan.Snapshot, usage *disk.Usage, generated time.Time) error {
	total := scan.TotalSize(snap.Records)

	fmt.Fprintf(w, "Directory Snapshot Report for: %s\n", snap.Root)
	fmt.Fprintf(w, "Generated on: %s\n", generated.Format(time.ANSIC))
	if usage != nil {
		fmt.Fprintf(w, "Filesystem: %s free of %s (%.1f%% used)\n",
			humanize.IBytes(uint64(usage.FreeBytes)),
			humanize.IBytes(uint64(usage.TotalBytes)),
			usage.UsedPercent)
	}
	fmt.Fprintf(w, "Total files: %d (%s)\n", len(snap.Records), humanize.IBytes(uint64(total)))
	if snap.Truncated > 0 {
		fmt.Fprintf(w, "Truncated: %d further files not listed\n", snap.Truncated)
	}
	fmt.Fprintln(w, rule)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Index\tPath\tSize(B)\tOwner\tLast Modified")
	for i, r := range snap.Records {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", i+1, r.Path, r.Size, r.Owner, r.ModTime.Local().Format(TimeLayout))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintln(w, rule)
	return err
}

// RenderCSV renders records as CSV with CSVHeader. Times are Unix seconds.
func RenderCSV(w io.Writer, records []scan.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Path,
			strconv.FormatInt(r.Size, 10),
			r.Owner,
			r.Group,
			strconv.FormatInt(r.ModTime.Unix(), 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RenderListing prints records as an aligned table for the terminal.
func RenderListing(w io.Writer, records []scan.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tOWNER\tGROUP\tMODIFIED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Name, humanize.IBytes(uint64(r.Size)), r.Owner, r.Group, r.ModTime.Local().Format(TimeLayout))
	}
	fmt.Fprintf(tw, "\n%d files, %s\n", len(records), humanize.IBytes(uint64(scan.TotalSize(records))))
	return tw.Flush()
}

// RenderPaths prints one path per line, the way search results are shown.
func RenderPaths(w io.Writer, records []scan.Record) error {
	var b strings.Builder
	for _, r := range records {
		b.WriteString("Found: ")
		b.WriteString(r.Path)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
