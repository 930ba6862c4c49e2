// Package converter runs a whole archive conversion: it builds the name
// map, discovers message files and converts each one into the target
// tree.
package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wesm/pmmail2eml/internal/classify"
	"github.com/wesm/pmmail2eml/internal/fileutil"
	"github.com/wesm/pmmail2eml/internal/pmmail"
)

// ErrSourceNotFound is returned when the archive root does not exist or
// is not a directory. Nothing is written in that case.
var ErrSourceNotFound = errors.New("source directory does not exist")

// Progress reports conversion progress.
type Progress interface {
	OnStart(total int)
	OnProgress(processed, converted, failed int)
	OnComplete(converted, failed int)
}

// NullProgress is a no-op progress reporter.
type NullProgress struct{}

func (NullProgress) OnStart(total int)                           {}
func (NullProgress) OnProgress(processed, converted, failed int) {}
func (NullProgress) OnComplete(converted, failed int)            {}

// Options configures a conversion run.
type Options struct {
	// SourceDir is the PMMail archive root.
	SourceDir string

	// TargetDir receives the converted tree. Created if missing.
	TargetDir string

	// Workers is the number of files converted concurrently.
	// Values below 2 convert strictly one file at a time.
	Workers int

	// Parser converts compound-file messages. Without one, compound
	// files are counted as failures.
	Parser classify.MessageParser

	// Logger is optional; defaults to slog.Default().
	Logger *slog.Logger

	// Progress is optional.
	Progress Progress
}

// Summary reports the results of a conversion run.
type Summary struct {
	Discovered  int
	Converted   int
	Failed      int
	Truncated   int
	Collisions  int // files whose output path an earlier file already used
	ByKind      map[classify.Kind]int
	Duration    time.Duration
	Interrupted bool
}

func (s *Summary) record(out classify.Outcome) {
	s.ByKind[out.Kind]++
	if out.OK() {
		s.Converted++
	} else {
		s.Failed++
	}
	if out.Truncated {
		s.Truncated++
	}
}

// Run converts every message file under opts.SourceDir into
// opts.TargetDir. Per-file failures are logged and counted; only a
// missing source, an unusable target or an unreadable archive root make
// Run return an error. When ctx is cancelled no further files are
// started and the summary is marked Interrupted.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	progress := opts.Progress
	if progress == nil {
		progress = NullProgress{}
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	start := time.Now()

	if !pmmail.IsDir(opts.SourceDir) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, opts.SourceDir)
	}
	if err := fileutil.MkdirAll(opts.TargetDir); err != nil {
		return nil, fmt.Errorf("create target directory: %w", err)
	}

	log.Info("starting conversion",
		"source", opts.SourceDir,
		"target", opts.TargetDir,
		"workers", workers,
	)

	names, err := pmmail.BuildNameMap(opts.SourceDir, &pmmail.Decoder{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("build name map: %w", err)
	}
	files, err := pmmail.DiscoverMessages(opts.SourceDir, log)
	if err != nil {
		return nil, fmt.Errorf("discover messages: %w", err)
	}

	summary := &Summary{
		Discovered: len(files),
		ByKind:     make(map[classify.Kind]int),
	}
	progress.OnStart(len(files))
	if len(files) == 0 {
		log.Info("no message files found", "source", opts.SourceDir)
	}

	cls := classify.New(opts.Parser, log)
	plan := planTargets(files, names, opts, log)
	for _, j := range plan {
		if j.repeat {
			summary.Collisions++
		}
	}

	var (
		mu        sync.Mutex
		processed int
	)
	convertOne := func(j job) {
		out := convertFile(cls, j, log)

		mu.Lock()
		defer mu.Unlock()
		summary.record(out)
		processed++
		progress.OnProgress(processed, summary.Converted, summary.Failed)
	}
	sequential := func(jobs []job) {
		for _, j := range jobs {
			if ctx.Err() != nil {
				return
			}
			convertOne(j)
		}
	}

	if workers == 1 {
		sequential(plan)
	} else {
		// Files that reuse an earlier output path run after the pool, in
		// order, so the last one wins exactly as in a sequential run.
		var first, repeats []job
		for _, j := range plan {
			if j.repeat {
				repeats = append(repeats, j)
			} else {
				first = append(first, j)
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, j := range first {
			if gctx.Err() != nil {
				break
			}
			j := j
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				convertOne(j)
				return nil
			})
		}
		_ = g.Wait()
		sequential(repeats)
	}

	summary.Interrupted = ctx.Err() != nil && processed < len(files)
	summary.Duration = time.Since(start)
	progress.OnComplete(summary.Converted, summary.Failed)

	log.Info("conversion finished",
		"discovered", summary.Discovered,
		"converted", summary.Converted,
		"failed", summary.Failed,
		"truncated", summary.Truncated,
		"collisions", summary.Collisions,
		"interrupted", summary.Interrupted,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return summary, nil
}

// job is one message file with its resolved output path.
type job struct {
	file   pmmail.MessageFile
	target string

	// repeat is set when an earlier file resolved to the same target.
	repeat bool
}

// planTargets resolves the output path of every file. Two sources that
// map to one target are logged; the later file overwrites the earlier.
func planTargets(
	files []pmmail.MessageFile, names *pmmail.NameMap, opts Options, log *slog.Logger,
) []job {
	plan := make([]job, len(files))
	seen := make(map[string]string, len(files))
	for i, f := range files {
		rel := pmmail.ResolveOutputPath(f.RelPath, names, opts.SourceDir)
		dst := filepath.Join(opts.TargetDir, rel)
		plan[i] = job{file: f, target: dst}

		key := strings.ToLower(dst)
		if prev, ok := seen[key]; ok {
			plan[i].repeat = true
			log.Warn("output path collision, later file overwrites earlier",
				"path", f.Path,
				"previous", prev,
				"target", dst,
			)
		}
		seen[key] = f.Path
	}
	return plan
}

// convertFile creates the output directory of j and converts it.
func convertFile(cls *classify.Classifier, j job, log *slog.Logger) classify.Outcome {
	if err := fileutil.MkdirAll(filepath.Dir(j.target)); err != nil {
		out := classify.Outcome{
			Source: j.file.Path,
			Target: j.target,
			Err:    fmt.Errorf("create output directory: %w", err),
		}
		log.Error("conversion failed", "path", j.file.Path, "error", out.Err)
		return out
	}
	return cls.Convert(j.file.Path, j.target)
}
