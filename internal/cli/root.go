// Package cli wires ocrlocate's single cobra command: flag parsing,
// config resolution, and dispatch into the index pipeline and query
// surface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ocrlocate/internal/config"
	"ocrlocate/internal/model"
	"ocrlocate/internal/ocr"
	"ocrlocate/internal/pipeline"
	"ocrlocate/internal/progress"
	"ocrlocate/internal/store"
)

// Exit codes per SPEC_FULL.md §6.
const (
	ExitSuccess        = 0
	ExitGenericError   = 1
	ExitInvalidUsage   = 2
	ExitSchemaRejected = 3
	ExitNoQueries      = 4
)

type cliFlags struct {
	database     string
	lang         string
	noIndex      bool
	rescan       bool
	threads      int
	exclude      []string
	maxSize      string
	cleanup      bool
	verbose      bool
	limit        int
	noSubdirs    bool
	searchType   string
	binarization string
	psm          int
	scale        float64
	pwd          string
	scanLimit    int
	chunkSize    int
	dumpScan     bool
}

var flags cliFlags

var sty = newStyles(os.Stderr)

var rootCmd = &cobra.Command{
	Use:   "ocrlocate [flags] QUERIES...",
	Short: "OCR an image tree and search the recovered text",
	Long: "ocrlocate indexes the images under a directory by running them through an\n" +
		"OCR engine, then answers queries against the recovered text with one of\n" +
		"four dialects: simple phrase, raw FTS match, glob, or regex.",
	RunE:         runRoot,
	SilenceUsage: true,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flags.database, "database", "d", "", "index file location")
	f.StringVar(&flags.lang, "lang", "", "OCR language (3-char code)")
	f.BoolVarP(&flags.noIndex, "no-index", "n", false, "search existing index only")
	f.BoolVarP(&flags.rescan, "rescan", "r", false, "ignore modtime, force re-OCR")
	f.IntVarP(&flags.threads, "threads", "t", 0, "worker count (0 = engine default)")
	f.StringSliceVarP(&flags.exclude, "exclude", "x", nil, "additional exclude globs")
	f.StringVarP(&flags.maxSize, "max-size", "m", "", "reject images larger than WxH")
	f.BoolVarP(&flags.cleanup, "cleanup", "c", false, "mark-and-sweep vanished/excluded paths")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "diagnostic output")
	f.IntVarP(&flags.limit, "limit", "l", 100, "max results")
	f.BoolVar(&flags.noSubdirs, "no-subdirs", false, "do not recurse into subdirectories")
	f.StringVarP(&flags.searchType, "search-type", "s", "simple", "query dialect: simple|match|glob|regex")
	f.StringVar(&flags.binarization, "binarization", "", "thresholding method: Otsu|LeptonicaOtsu|Sauvola")
	f.IntVar(&flags.psm, "psm", -1, "page segmentation mode, 0..13 (unset defaults to 11)")
	f.Float64Var(&flags.scale, "scale", 0, "image pre-scale factor")
	f.StringVar(&flags.pwd, "pwd", "", "override working directory")
	f.IntVar(&flags.scanLimit, "scan-limit", 0, "cap the number of candidate files scanned")
	f.IntVar(&flags.chunkSize, "chunk-size", 0, "pipeline chunk size")
	f.BoolVar(&flags.dumpScan, "dump-scan", false, "OCR the first positional argument and print it")

	for _, hidden := range []string{"pwd", "scan-limit", "chunk-size"} {
		_ = f.MarkHidden(hidden)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func exitWith(code int, msg string) {
	if msg != "" {
		fmt.Fprintln(os.Stderr, sty.errPrefix(), msg)
	}
	os.Exit(code)
}

func runRoot(cmd *cobra.Command, args []string) error {
	if flags.pwd != "" {
		if err := os.Chdir(flags.pwd); err != nil {
			exitWith(ExitInvalidUsage, fmt.Sprintf("ocrlocate: cannot chdir to %s: %v", flags.pwd, err))
		}
	}
	if flags.psm != -1 && (flags.psm < 0 || flags.psm > 13) {
		exitWith(ExitInvalidUsage, fmt.Sprintf("ocrlocate: --psm must be in 0..=13, got %d", flags.psm))
	}

	cfg, err := config.Load(config.Options{
		WorkingDir: ".",
		Overrides:  overridesFromFlags(),
	})
	if err != nil {
		exitWith(ExitInvalidUsage, "ocrlocate: "+err.Error())
	}

	if flags.dumpScan {
		return runDumpScan(cfg, args)
	}

	if len(args) == 0 {
		exitWith(ExitNoQueries, "ocrlocate: no queries provided (use --dump-scan to test OCR on one file)")
	}

	kind, ok := model.ParseQueryKind(flags.searchType)
	if !ok {
		exitWith(ExitInvalidUsage, fmt.Sprintf("ocrlocate: invalid --search-type %q", flags.searchType))
	}

	st, err := store.Open(cfg.Database, stderrNoteSink{sty: sty})
	if err != nil {
		return reportStoreOpenError(err)
	}
	defer st.Close()

	if !flags.noIndex {
		root, err := os.Getwd()
		if err != nil {
			return err
		}
		sink := progress.NewSink()
		opts := pipeline.Options{
			Root:         root,
			Recurse:      !flags.noSubdirs,
			Rescan:       flags.rescan,
			Cleanup:      flags.cleanup,
			Excludes:     flags.exclude,
			MaxSize:      flags.maxSize,
			Threads:      flags.threads,
			ScanLimit:    flags.scanLimit,
			ChunkSize:    effectiveInt(flags.chunkSize, cfg.ChunkSize),
			OcrOptions: ocr.Options{
				Lang:         effectiveString(flags.lang, cfg.Lang),
				Debug:        flags.verbose,
				Binarization: flags.binarization,
				PSM:          flags.psm,
				Scale:        flags.scale,
			},
			Verbose: flags.verbose,
		}
		if flags.cleanup && flags.noSubdirs {
			exitWith(ExitInvalidUsage, "ocrlocate: --cleanup cannot be combined with --no-subdirs")
		}

		ui := progress.NewTerminalReporter(os.Stderr, sink)
		ui.Start()
		err = pipeline.Run(cmd.Context(), st, opts, sink)
		ui.Stop()
		if err != nil {
			return reportPipelineError(err)
		}
	}

	root, err := os.Getwd()
	if err != nil {
		return err
	}
	results, err := st.Search(context.Background(), model.SearchQuery{
		Terms:       args,
		PathPrefix:  root,
		Limit:       flags.limit,
		Kind:        kind,
		ExcludeGlob: firstExclude(flags.exclude),
	})
	if err != nil {
		if errors.Is(err, model.ErrQueryParse) {
			exitWith(ExitInvalidUsage, "ocrlocate: "+err.Error())
		}
		return err
	}
	for _, r := range results {
		fmt.Printf("%s\t%s\n", r.Snippet, r.Path)
	}
	return nil
}

func runDumpScan(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		exitWith(ExitInvalidUsage, "ocrlocate: --dump-scan requires one file argument")
	}
	scanner, err := ocr.New(ocr.Options{
		Lang:         effectiveString(flags.lang, cfg.Lang),
		Debug:        flags.verbose,
		Binarization: flags.binarization,
		PSM:          flags.psm,
		Scale:        flags.scale,
	})
	if err != nil {
		exitWith(ExitGenericError, "ocrlocate: "+err.Error())
	}
	defer scanner.Close()

	text, err := scanner.Scan(args[0])
	if err != nil {
		exitWith(ExitGenericError, "ocrlocate: "+err.Error())
	}
	fmt.Println(text)
	return nil
}

func overridesFromFlags() *config.Overrides {
	o := &config.Overrides{}
	if flags.database != "" {
		o.Database = &flags.database
	}
	if flags.lang != "" {
		o.Lang = &flags.lang
	}
	return o
}

func effectiveString(flagVal, cfgVal string) string {
	if flagVal != "" {
		return flagVal
	}
	return cfgVal
}

func effectiveInt(flagVal, cfgVal int) int {
	if flagVal != 0 {
		return flagVal
	}
	return cfgVal
}

func firstExclude(excludes []string) string {
	if len(excludes) == 0 {
		return ""
	}
	return excludes[0]
}

func reportStoreOpenError(err error) error {
	var tagged *model.TaggedError
	if errors.As(err, &tagged) {
		switch tagged.Code {
		case model.CodeSchemaTooNew, model.CodeSchemaPreRelease:
			exitWith(ExitSchemaRejected, "ocrlocate: "+tagged.Error())
		}
	}
	exitWith(ExitGenericError, "ocrlocate: "+err.Error())
	return nil
}

func reportPipelineError(err error) error {
	var tagged *model.TaggedError
	// DecodeFailed reaches here only from a malformed --max-size value.
	if errors.As(err, &tagged) && (tagged.Code == model.CodeNotADirectory || tagged.Code == model.CodeDecodeFailed) {
		exitWith(ExitInvalidUsage, "ocrlocate: "+tagged.Error())
	}
	exitWith(ExitGenericError, "ocrlocate: "+err.Error())
	return nil
}

type stderrNoteSink struct {
	sty styles
}

func (s stderrNoteSink) Note(msg string) {
	fmt.Fprintln(os.Stderr, s.sty.dim("Note: "+msg))
}
