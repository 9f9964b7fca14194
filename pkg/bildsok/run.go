package bildsok

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/klog/v2"
)

// Stats summarizes one pipeline pass.
type Stats struct {
	Found    int
	Skipped  int
	Analyzed int
	Written  int
}

// MetadataChecker decides whether an image already carries content metadata.
type MetadataChecker interface {
	HasMeaningfulMetadata(path string) bool
}

// MetadataWriter embeds a description into an image file.
type MetadataWriter interface {
	Write(path, baseDir, description string, mode Mode) bool
}

// DescriptionSource produces a labeled description for an image.
type DescriptionSource interface {
	Analyze(ctx context.Context, path string, mode Mode) (string, error)
}

// Pipeline wires the verifier, analyzer, and writer into the per-image loop.
// Processing is strictly sequential: one image is fully handled before the
// next begins.
type Pipeline struct {
	Verifier MetadataChecker
	Writer   MetadataWriter

	// OpenAnalyzer is called lazily, on the first image that actually needs
	// analysis; a run where everything is skipped never needs an API key.
	OpenAnalyzer func(ctx context.Context) (DescriptionSource, error)

	Mode      Mode
	Recursive bool
	DryRun    bool
	Force     bool

	analyzer DescriptionSource
}

// Run processes every supported image under dirs. Per-image analysis and
// write failures are logged and counted, never fatal; only setup problems
// (bad directory, analyzer init) abort the run.
func (p *Pipeline) Run(ctx context.Context, dirs []string) (Stats, error) {
	st := Stats{}

	for _, dir := range dirs {
		imgs, err := FindImages(dir, p.Recursive)
		if err != nil {
			return st, fmt.Errorf("find images: %w", err)
		}
		klog.Infof("found %d images in %s", len(imgs), dir)
		st.Found += len(imgs)

		for _, img := range imgs {
			if err := p.processImage(ctx, img, dir, &st); err != nil {
				return st, err
			}
		}
	}

	return st, nil
}

func (p *Pipeline) processImage(ctx context.Context, path, baseDir string, st *Stats) error {
	disp := DisplayPath(path, baseDir)

	// Dry runs skip the check so the user can preview every image.
	if !p.Force && !p.DryRun && p.Verifier.HasMeaningfulMetadata(path) {
		klog.Infof("skipping %s: already has metadata", disp)
		st.Skipped++
		return nil
	}

	if p.analyzer == nil {
		a, err := p.OpenAnalyzer(ctx)
		if err != nil {
			return fmt.Errorf("analyzer: %w", err)
		}
		p.analyzer = a
	}

	klog.Infof("analyzing %s (%s mode)", disp, p.Mode)
	description, err := p.analyzer.Analyze(ctx, path, p.Mode)
	if err != nil {
		klog.Errorf("analysis failed for %s: %v", disp, err)
		return nil
	}
	st.Analyzed++

	if p.DryRun {
		logPreview(disp, description, p.Mode)
		return nil
	}

	if p.Writer.Write(path, baseDir, description, p.Mode) {
		st.Written++
	}
	return nil
}

// logPreview shows what a real run would write, without writing it.
func logPreview(disp, description string, mode Mode) {
	parsed := Parse(description, mode)
	keywords := ExtractKeywords(description, mode)

	klog.Infof("%s: would write:", disp)
	if search := searchDescription(parsed, mode); search != "" {
		klog.Infof("  Subject / Caption-Abstract: %s", previewLine(search, 80))
	}
	klog.Infof("  ImageDescription / UserComment: %s", previewLine(description, 120))
	if len(keywords) > 0 {
		klog.Infof("  Keywords / XMP:Description / XMP:Subject: %s", previewLine(strings.Join(keywords, ", "), 80))
	}
}

func previewLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	return truncateRunes(s, max, "...")
}
