package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go.afab.re/multiotsu"
	"go.afab.re/multiotsu/render"
	"go.afab.re/multiotsu/segment"
)

type encoder func(w io.Writer, img image.Image) error

var encoders = map[string]encoder{
	"png": png.Encode,
	"tiff": func(w io.Writer, img image.Image) error {
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	},
}

func formats() []string {
	names := maps.Keys(encoders)
	slices.Sort(names)
	return names
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `%s [options] image

Segment a PNG/GIF/JPEG/TIFF/BMP/WebP image into classes with multi-level Otsu thresholding.
The thresholds are printed one per line, in 8 bit gray units for 8 bit images.

`, os.Args[0])
		flag.PrintDefaults()
	}

	var (
		classes = flag.Int("classes", 5, "Number of classes to segment the image into.")
		levels  = flag.Int("levels", 256, "Number of histogram levels.")
		out     = flag.String("out", "", "Write the segmented image to filename.")
		hist    = flag.String("hist", "", "Write the histogram with the thresholds as a PNG image to filename.")
		format  = flag.String("format", "", fmt.Sprintf("Format of -out, one of %v. Defaults to the extension of -out, or png.", formats()))
		verbose = flag.Bool("v", false, "Log debug information to stderr.")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(-1)
	}

	log := logger(os.Stderr, *verbose)

	if err := run(os.Stdout, flags{
		input:   flag.Arg(0),
		classes: *classes,
		levels:  *levels,
		out:     *out,
		hist:    *hist,
		format:  *format,
	}, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(-1)
	}
}

type flags struct {
	input   string
	classes int
	levels  int
	out     string
	hist    string
	format  string
}

func logger(w *os.File, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var out io.Writer = w
	if isTerminal(w.Fd()) {
		out = zerolog.ConsoleWriter{Out: w}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func run(stdout io.Writer, flags flags, log zerolog.Logger) error {
	enc, err := outputEncoder(flags)
	if err != nil {
		return err
	}

	img, err := decode(flags.input)
	if err != nil {
		return err
	}
	log.Debug().
		Str("input", flags.input).
		Stringer("bounds", img.Bounds()).
		Msg("decoded")

	seg, res, err := segment.From(img, flags.classes,
		multiotsu.WithLevels(flags.levels),
		multiotsu.WithWorkers(runtime.NumCPU()),
		multiotsu.WithLogger(log),
	)
	if err != nil {
		return err
	}
	if res.Skipped != 0 {
		log.Warn().Int("skipped", res.Skipped).Msg("non-finite samples left out")
	}

	for _, t := range res.Thresholds {
		fmt.Fprintln(stdout, t)
	}

	if flags.out != "" {
		if err := write(flags.out, seg, enc); err != nil {
			return err
		}
		log.Info().Str("file", flags.out).Msg("segmented image written")
	}

	if flags.hist != "" {
		plot, err := render.Histogram(res.Counts, res.Quantizer, res.Thresholds, render.DefaultOptions)
		if err != nil {
			return err
		}
		if err := write(flags.hist, plot, png.Encode); err != nil {
			return err
		}
		log.Info().Str("file", flags.hist).Msg("histogram written")
	}

	return nil
}

func outputEncoder(flags flags) (encoder, error) {
	name := flags.format
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(flags.out)), ".")
		if name == "tif" {
			name = "tiff"
		}
		if _, ok := encoders[name]; !ok {
			name = "png"
		}
	}

	enc, ok := encoders[name]
	if !ok {
		return nil, fmt.Errorf("unknown format %q, expected one of %v", name, formats())
	}
	return enc, nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func write(path string, img image.Image, enc encoder) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := enc(f, img); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
