// Command replay runs the counter over a recorded detections file, one JSON
// frame per line, and prints every crossing plus the final totals.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/your-org/footfall/internal/config"
	"github.com/your-org/footfall/internal/counting"
	"github.com/your-org/footfall/internal/models"
	"github.com/your-org/footfall/internal/observability"
	"github.com/your-org/footfall/internal/tracking"
)

// maxLineSize bounds one frame line; crowded frames carry a few hundred boxes.
const maxLineSize = 4 << 20

func main() {
	configPath := flag.String("config", "", "optional config file for counting defaults")
	input := flag.String("input", "-", "detections file (JSON lines), - for stdin")
	summaryPath := flag.String("summary", "", "write the final summary JSON here")
	logLevel := flag.String("log-level", "warn", "log level")
	maxDistance := flag.Float64("max-distance", 0, "association distance threshold in pixels")
	maxAge := flag.Int("max-age", 0, "frames a track survives unmatched")
	entryLine := flag.Int("entry-line", 0, "entry line y")
	exitLine := flag.Int("exit-line", 0, "exit line y")
	frameHeight := flag.Int("frame-height", 0, "frame height used for default lines")
	flag.Parse()

	// stdout carries the report.
	slog.SetDefault(observability.NewLogger(os.Stderr, *logLevel, "text"))

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the config.
	var cmd counting.SessionCommand
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-distance":
			cmd.MaxDistance = maxDistance
		case "max-age":
			cmd.MaxAge = maxAge
		case "entry-line":
			cmd.EntryLineY = entryLine
		case "exit-line":
			cmd.ExitLineY = exitLine
		case "frame-height":
			cmd.FrameHeight = frameHeight
		}
	})

	in := os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open input: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	started := time.Now()
	summary, err := replay(in, os.Stdout, cmd.TrackingConfig(cfg.Counting))
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}
	summary.StartedAt = started
	summary.StoppedAt = time.Now()

	printReport(os.Stdout, summary)

	if *summaryPath != "" {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal summary: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*summaryPath, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write summary: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "Summary saved to: %s\n", *summaryPath)
	}
}

// replay feeds every frame of r to a fresh counter, writing one line per
// crossing to out. Frames that are not newer than the previous one are
// skipped, as the counting workers do.
func replay(r io.Reader, out io.Writer, cfg tracking.Config) (models.SessionSummary, error) {
	counter, err := tracking.NewCounter(cfg)
	if err != nil {
		return models.SessionSummary{}, err
	}

	var frames int64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var frame models.DetectionFrame
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			return models.SessionSummary{}, fmt.Errorf("line %d: %w", lineNo, err)
		}

		if last := counter.LastFrame(); frame.FrameIndex <= last {
			slog.Warn("out of order frame skipped", "line", lineNo, "frame", frame.FrameIndex, "last_frame", last)
			continue
		}

		boxes, dropped := frame.BBoxes()
		if dropped > 0 {
			slog.Warn("invalid boxes dropped", "frame", frame.FrameIndex, "dropped", dropped)
		}

		res := counter.ProcessFrame(frame.FrameIndex, boxes)
		frames++
		for _, ev := range res.Events {
			fmt.Fprintf(out, "Frame %d: ID %d - %s\n", ev.FrameIndex, ev.TrackID, strings.ToUpper(string(ev.Kind)))
		}
	}
	if err := scanner.Err(); err != nil {
		return models.SessionSummary{}, fmt.Errorf("read detections: %w", err)
	}

	snap := counter.Snapshot()
	return models.SessionSummary{
		Frames:     frames,
		LastFrame:  snap.FrameIndex,
		Entries:    snap.Counts.Entries,
		Exits:      snap.Counts.Exits,
		Net:        snap.Net,
		EntryLineY: cfg.EntryLineY,
		ExitLineY:  cfg.ExitLineY,
		Tracks:     snap.Tracks,
	}, nil
}

func printReport(w io.Writer, s models.SessionSummary) {
	rule := strings.Repeat("=", 50)
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "PROCESSED %d FRAMES\n", s.Frames)
	fmt.Fprintf(w, "TOTAL ENTRIES: %d\n", s.Entries)
	fmt.Fprintf(w, "TOTAL EXITS: %d\n", s.Exits)
	fmt.Fprintf(w, "NET FOOTFALL: %d\n", s.Net)
	fmt.Fprintf(w, "%s\n", rule)
}
