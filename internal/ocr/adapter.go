// Package ocr wraps gosseract (a cgo binding to Tesseract) behind the C1
// contract: a per-worker Scanner that validates its language code,
// configures binarization/psm/blacklist/scale knobs, and recovers OCR
// text from one image path at a time. Grounded on the otiai10/gosseract
// usage in tuumbleweed-expense-tracker's OCR command and on the Rust
// original's src/ocr.rs validation and debug-redirect rules.
package ocr

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"ocrlocate/internal/model"
)

// fixed blacklist applied to every scan, matching the Rust original's
// hardcoded character blacklist.
const blacklist = "|®»«®©"

var binarizationMethods = map[string]string{
	"Otsu":          "0",
	"LeptonicaOtsu": "1",
	"Sauvola":       "2",
}

var blankLines = regexp.MustCompile(`\n{2,}`)

// Options configures one Scanner. PSM of -1 means "not supplied"; New
// defaults it to 11 in that case and otherwise honors the caller's value
// exactly, including 0.
type Options struct {
	Lang         string
	Debug        bool
	Binarization string
	PSM          int
	Scale        float64
}

// Scanner is not safe for concurrent use; the pipeline constructs one
// per worker goroutine.
type Scanner struct {
	client *gosseract.Client
	scale  float64
}

// New validates lang (exactly 3 ASCII characters, no path separators)
// and constructs a Scanner. opts.PSM is applied as given when it is 0 or
// more; a negative value defaults to 11, the page-segmentation mode the
// Rust original always ends up using -- but here that is the actual
// default, not an override clobbering a caller-supplied value.
func New(opts Options) (*Scanner, error) {
	if err := validateLang(opts.Lang); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(opts.Lang); err != nil {
		client.Close()
		return nil, model.NewError(model.CodeOcrInit, "setting language", err)
	}
	if err := client.SetBlacklist(blacklist); err != nil {
		client.Close()
		return nil, model.NewError(model.CodeOcrInit, "setting blacklist", err)
	}

	if !opts.Debug {
		if err := client.SetVariable("debug_file", os.DevNull); err != nil {
			client.Close()
			return nil, model.NewError(model.CodeOcrInit, "silencing engine debug output", err)
		}
	}

	if opts.Binarization != "" {
		code, ok := binarizationMethods[opts.Binarization]
		if !ok {
			client.Close()
			return nil, model.NewError(model.CodeOcrInit, fmt.Sprintf("unknown binarization method %q", opts.Binarization), nil)
		}
		if err := client.SetVariable("thresholding_method", code); err != nil {
			client.Close()
			return nil, model.NewError(model.CodeOcrInit, "setting thresholding_method", err)
		}
	}

	psm := opts.PSM
	if psm < 0 {
		psm = 11
	}
	if psm > 13 {
		client.Close()
		return nil, model.NewError(model.CodeOcrInit, fmt.Sprintf("psm %d out of range 0..=13", psm), nil)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
		client.Close()
		return nil, model.NewError(model.CodeOcrInit, "setting page segmentation mode", err)
	}

	return &Scanner{client: client, scale: opts.Scale}, nil
}

func validateLang(lang string) error {
	if len(lang) != 3 {
		return model.NewError(model.CodeInvalidLanguage, fmt.Sprintf("lang %q must be exactly 3 characters", lang), nil)
	}
	for _, r := range lang {
		if r > unicode.MaxASCII || r == '.' || r == '/' || r == '\\' {
			return model.NewError(model.CodeInvalidLanguage, fmt.Sprintf("lang %q contains an invalid character", lang), nil)
		}
	}
	return nil
}

// Scan recovers text from the image at path. When Options.Scale was set
// at construction time, the image is decoded, resized, and written to a
// temp file before being handed to the engine.
func (s *Scanner) Scan(path string) (string, error) {
	imgPath := path
	if s.scale > 0 {
		scaled, cleanup, err := s.prescale(path)
		if err != nil {
			return "", model.NewError(model.CodeDecodeFailed, "pre-scaling image", err)
		}
		defer cleanup()
		imgPath = scaled
	}

	if err := s.client.SetImage(imgPath); err != nil {
		return "", model.NewError(model.CodeOcrRuntime, "loading image into engine", err)
	}
	text, err := s.client.Text()
	if err != nil {
		return "", model.NewError(model.CodeOcrRuntime, "recognizing text", err)
	}
	return collapseBlankLines(text), nil
}

func (s *Scanner) prescale(path string) (string, func(), error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", func() {}, err
	}
	bounds := img.Bounds()
	width := int(float64(bounds.Dx()) * s.scale)
	height := int(float64(bounds.Dy()) * s.scale)
	if width < 1 || height < 1 {
		return "", func() {}, fmt.Errorf("scale %v produces a degenerate image size", s.scale)
	}
	resized := imaging.Resize(img, width, height, imaging.Lanczos)

	tmp, err := os.CreateTemp("", "ocrlocate-scaled-*.png")
	if err != nil {
		return "", func() {}, err
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	if err := imaging.Save(resized, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", func() {}, err
	}
	return tmpPath, func() { _ = os.Remove(tmpPath) }, nil
}

func collapseBlankLines(text string) string {
	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n"))
}

// Close releases the underlying engine handle.
func (s *Scanner) Close() error {
	return s.client.Close()
}
