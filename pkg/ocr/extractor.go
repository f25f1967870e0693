package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// DefaultConfidence is reported for a winning result whose engine gave no
// confidence. The value is a fixed placeholder, not a measurement.
const DefaultConfidence = 60.0

// Config holds Extractor settings.
type Config struct {
	// DefaultConfidence replaces a missing engine confidence. Defaults to
	// DefaultConfidence.
	DefaultConfidence float64

	// TrialConcurrency bounds the engine calls run at once for one page.
	// Defaults to 1 (sequential).
	TrialConcurrency int

	// TrialTimeout bounds a single engine call. Zero means no limit.
	TrialTimeout time.Duration

	Layout LayoutConfig

	Logger *slog.Logger
}

// Extractor runs the adaptive multi-strategy extraction.
type Extractor struct {
	defaultConfidence float64
	concurrency       int
	timeout           time.Duration
	layout            LayoutConfig
	logger            *slog.Logger
}

// NewExtractor creates an Extractor, filling zero values with defaults.
func NewExtractor(c Config) *Extractor {
	e := &Extractor{
		defaultConfidence: c.DefaultConfidence,
		concurrency:       c.TrialConcurrency,
		timeout:           c.TrialTimeout,
		layout:            c.Layout,
		logger:            c.Logger,
	}
	if e.defaultConfidence == 0 {
		e.defaultConfidence = DefaultConfidence
	}
	if e.concurrency <= 0 {
		e.concurrency = 1
	}
	if e.layout == (LayoutConfig{}) {
		e.layout = DefaultLayoutConfig()
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

type variant struct {
	name string
	img  image.Image
}

type trial struct {
	variant string
	config  RecognizeConfig
	img     image.Image
}

type candidate struct {
	text       string
	confidence *float64
	ok         bool
}

// Extract returns the best text it can find in img and its confidence.
// Every failing trial is skipped; if none produce text the result is empty
// with zero confidence. Extract never fails.
func (e *Extractor) Extract(ctx context.Context, img image.Image, rec Recognizer) Outcome {
	if img == nil || img.Bounds().Empty() {
		return Outcome{}
	}

	page := Enhance(img)
	layout := ClassifyLayout(page, e.layout)
	variants := []variant{
		{name: "original", img: page},
		{name: "preprocessed", img: Preprocess(page)},
	}

	var trials []trial
	for _, v := range variants {
		for _, cfg := range rec.Configs() {
			trials = append(trials, trial{variant: v.name, config: cfg, img: v.img})
		}
	}

	e.logger.Debug("running extraction trials",
		"engine", rec.Name(),
		"layout", layout,
		"trials", len(trials),
	)

	candidates := e.runTrials(ctx, rec, trials)
	return e.selectBest(candidates)
}

// runTrials executes every trial and returns candidates in trial order.
func (e *Extractor) runTrials(ctx context.Context, rec Recognizer, trials []trial) []candidate {
	out := make([]candidate, len(trials))

	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for i, t := range trials {
		g.Go(func() error {
			out[i] = e.runTrial(ctx, rec, t)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (e *Extractor) runTrial(ctx context.Context, rec Recognizer, t trial) (c candidate) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("recognition trial panicked",
				"variant", t.variant,
				"config", t.config.Name,
				"panic", fmt.Sprint(r),
			)
			c = candidate{}
		}
	}()

	if ctx.Err() != nil {
		return candidate{}
	}

	tctx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	res, err := rec.Recognize(tctx, t.img, t.config)
	if err == nil && tctx.Err() != nil {
		err = tctx.Err()
	}
	if err != nil {
		e.logger.Debug("recognition trial failed",
			"variant", t.variant,
			"config", t.config.Name,
			"error", err,
		)
		return candidate{}
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return candidate{}
	}
	return candidate{text: text, confidence: res.Confidence, ok: true}
}

// selectBest keeps the longest text. The earliest trial wins ties.
func (e *Extractor) selectBest(candidates []candidate) Outcome {
	best := -1
	bestLen := 0
	for i, c := range candidates {
		if !c.ok {
			continue
		}
		if n := utf8.RuneCountInString(c.text); n > bestLen {
			best, bestLen = i, n
		}
	}

	if best < 0 {
		return Outcome{}
	}

	conf := e.defaultConfidence
	if c := candidates[best].confidence; c != nil {
		conf = *c
	}
	return Outcome{Text: candidates[best].text, Confidence: conf}
}
