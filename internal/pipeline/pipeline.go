// Package pipeline implements the index pipeline (C4): walk a
// directory tree for candidate images, skip anything already indexed
// at its current modtime, reject oversized images, OCR the rest with a
// bounded worker pool, and persist results to the store in chunks.
// Grounded on original_source/src/index.rs's chunked walk -> filter ->
// par_iter OCR -> save_results structure, adapted from rayon to
// golang.org/x/sync/errgroup.
package pipeline

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"ocrlocate/internal/model"
	"ocrlocate/internal/ocr"
	"ocrlocate/internal/progress"
	"ocrlocate/internal/store"
	"ocrlocate/internal/walker"
)

func init() {
	image.RegisterFormat("webp", "RIFF", webp.Decode, webp.DecodeConfig)
}

const defaultChunkSize = 900

// Options configures one pipeline run.
type Options struct {
	Root       string
	Recurse    bool
	Rescan     bool
	Cleanup    bool
	Excludes   []string
	MaxSize    string // "WxH", empty means no limit
	Threads    int    // 0 means runtime.NumCPU() workers
	ScanLimit  int
	ChunkSize  int
	OcrOptions ocr.Options
	Verbose    bool
}

// Run walks Root, OCRs every candidate that needs it, and persists the
// results to st in chunks, reporting progress to sink (which may be
// nil). gosseract/tesseract is not reentrant-safe across OpenMP thread
// pools, so OMP_THREAD_LIMIT is pinned to 1 before any worker starts,
// matching the Rust original's reliance on one engine instance per
// rayon worker rather than engine-internal threading.
func Run(ctx context.Context, st *store.Store, opts Options, sink *progress.Sink) error {
	_ = os.Setenv("OMP_THREAD_LIMIT", "1")

	maxW, maxH, err := parseMaxSize(opts.MaxSize)
	if err != nil {
		return err
	}

	if opts.Cleanup {
		if !opts.Recurse {
			return model.NewError(model.CodeNotADirectory, "--cleanup requires recursing the full tree", nil)
		}
		if err := st.MarkForDeletion(ctx, opts.Root); err != nil {
			return err
		}
	}

	candidates, err := walker.Walk(ctx, walker.Options{
		Root:     opts.Root,
		Recurse:  opts.Recurse,
		Excludes: opts.Excludes,
		Limit:    opts.ScanLimit,
	}, sink)
	if err != nil {
		return err
	}
	sink.SetTotal(int64(len(candidates)))

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	for start := 0; start < len(candidates); start += chunkSize {
		end := start + chunkSize
		if end > len(candidates) {
			end = len(candidates)
		}
		if err := runChunk(ctx, st, candidates[start:end], opts, maxW, maxH, sink); err != nil {
			return err
		}
	}

	if opts.Cleanup {
		deleted, err := st.SweepDeletions(ctx)
		if err != nil {
			return err
		}
		sink.AddDeleted(int64(deleted))
	}

	return nil
}

func runChunk(ctx context.Context, st *store.Store, chunk []walker.Candidate, opts Options, maxW, maxH int, sink *progress.Sink) error {
	todo := make([]walker.Candidate, 0, len(chunk))
	for _, c := range chunk {
		sink.AddScanned(1)

		if !opts.Rescan {
			indexed, err := st.IsIndexed(ctx, c.Path, c.ModTime)
			if err != nil {
				return err
			}
			if indexed {
				if err := st.UnmarkFile(ctx, c.Path); err != nil {
					return err
				}
				sink.AddSkipped(1)
				continue
			}
		}

		if maxW > 0 || maxH > 0 {
			ok, err := withinDimensions(c.Path, maxW, maxH)
			if err != nil {
				sink.Warnf("reading dimensions of %s: %v", c.Path, err)
				sink.AddSkipped(1)
				continue
			}
			if !ok {
				if opts.Verbose {
					sink.Warnf("skipping oversized image %s", c.Path)
				}
				sink.AddSkipped(1)
				continue
			}
		}

		todo = append(todo, c)
	}

	if len(todo) == 0 {
		return nil
	}

	results, err := scanAll(ctx, todo, opts, sink)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	n, err := st.Save(ctx, results)
	if err != nil {
		return err
	}
	sink.AddIndexed(int64(n))
	return nil
}

// scanAll runs OCR over todo with a fixed-size worker pool: each worker
// goroutine lazily constructs exactly one *ocr.Scanner on first use and
// reuses it for every item assigned to that worker (a strided slice of
// todo), so gosseract never reloads tessdata mid-chunk and its
// per-client state is never shared across goroutines.
func scanAll(ctx context.Context, todo []walker.Candidate, opts Options, sink *progress.Sink) ([]model.OcrResult, error) {
	workers := opts.Threads
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(todo) {
		workers = len(todo)
	}

	results := make([]model.OcrResult, len(todo))
	keep := make([]bool, len(todo))

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			var scanner *ocr.Scanner

			for i := w; i < len(todo); i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				if scanner == nil {
					s, err := ocr.New(opts.OcrOptions)
					if err != nil {
						return err
					}
					scanner = s
					defer scanner.Close()
				}

				c := todo[i]
				if opts.Verbose {
					sink.Warnf("scanning %s", c.Path)
				}
				text, err := scanner.Scan(c.Path)
				if err != nil {
					sink.Warnf("ocr failed for %s: %v", c.Path, err)
					sink.AddErrors(1)
					continue
				}
				results[i] = model.OcrResult{Path: c.Path, ModTime: c.ModTime, Contents: text}
				keep[i] = true
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.OcrResult, 0, len(todo))
	for i, ok := range keep {
		if ok {
			out = append(out, results[i])
		}
	}
	return out, nil
}

func withinDimensions(path string, maxW, maxH int) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return false, err
	}
	if maxW > 0 && cfg.Width > maxW {
		return false, nil
	}
	if maxH > 0 && cfg.Height > maxH {
		return false, nil
	}
	return true, nil
}

func parseMaxSize(spec string) (w, h int, err error) {
	if spec == "" {
		return 0, 0, nil
	}
	parts := strings.SplitN(strings.ToLower(spec), "x", 2)
	if len(parts) != 2 {
		return 0, 0, model.NewError(model.CodeDecodeFailed, fmt.Sprintf("invalid --max-size %q, want WxH", spec), nil)
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, model.NewError(model.CodeDecodeFailed, fmt.Sprintf("invalid --max-size %q, want WxH", spec), nil)
	}
	return w, h, nil
}
