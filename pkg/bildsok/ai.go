// Package bildsok analyzes images with a vision model and embeds the
// resulting content descriptions into their metadata, so desktop search can
// surface images by what is in them.
package bildsok

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"google.golang.org/genai"
	"k8s.io/klog/v2"
)

const defaultModel = "gemini-2.5-flash"

// maxUploadDim bounds the longest image edge sent to the vision API; larger
// uploads cost more and do not describe better.
const (
	maxUploadDim  = 1024
	uploadQuality = 85
)

// Analyzer generates structured content descriptions for images.
type Analyzer struct {
	client *genai.Client
	model  string
}

// NewAnalyzer creates a Gemini-backed analyzer. model may be empty.
func NewAnalyzer(ctx context.Context, apiKey string, model string) (*Analyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("no API key: set GEMINI_API_KEY in the environment or a .env file")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	if model == "" {
		model = defaultModel
	}
	return &Analyzer{client: client, model: model}, nil
}

// Analyze returns a labeled description of the image at path, in the label
// grammar of the given mode.
func (a *Analyzer) Analyze(ctx context.Context, path string, mode Mode) (string, error) {
	bs, err := encodeForUpload(path)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", path, err)
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(bs, "image/jpeg"),
		genai.NewPartFromText(mode.spec().prompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	desc := strings.TrimSpace(resp.Text())
	if desc == "" {
		return "", fmt.Errorf("model returned an empty description for %s", path)
	}
	klog.V(1).Infof("analyzed %s (%s mode): %d bytes of description", path, mode, len(desc))
	return desc, nil
}

// encodeForUpload decodes the image, downscales it to fit maxUploadDim, and
// re-encodes it as JPEG for the API call.
func encodeForUpload(path string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".heic" || ext == ".heif" {
		return nil, fmt.Errorf("no decoder for %s images", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > maxUploadDim || b.Dy() > maxUploadDim {
		x, y := fitDimensions(b.Dx(), b.Dy(), maxUploadDim)
		img = transform.Resize(img, x, y, transform.Lanczos)
	}

	var buf bytes.Buffer
	if err := imgio.JPEGEncoder(uploadQuality)(&buf, img); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

// fitDimensions scales (x, y) down proportionally so the longest edge is max.
func fitDimensions(x, y, max int) (int, int) {
	if x >= y {
		scale := float64(x) / float64(max)
		return max, int(float64(y) / scale)
	}
	scale := float64(y) / float64(max)
	return int(float64(x) / scale), max
}
