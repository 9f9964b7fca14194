package bildsok

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/barasher/go-exiftool"
	"k8s.io/klog/v2"
)

// verifyFields are the embedded fields consulted when deciding whether an
// image already carries content metadata. "Description" is how exiftool's
// JSON output names the XMP description slot.
var verifyFields = []string{"ImageDescription", "UserComment", "Subject", "Keywords", "Description"}

// meaningfulFields must hold real content for metadata to count as present.
var meaningfulFields = []string{"ImageDescription", "Description", "Subject"}

// meaningfulMinLen is the trimmed length a description-ish field must exceed.
// macOS stamps screenshots with UserComment=Screenshot, which is a marker,
// not content; both heuristics come from observed Spotlight behavior.
const (
	meaningfulMinLen = 10
	screenshotMarker = "Screenshot"
)

// MetadataExtractor is the slice of the go-exiftool API the verifier uses.
type MetadataExtractor interface {
	ExtractMetadata(files ...string) []exiftool.FileMetadata
}

// Verifier inspects the metadata already embedded in image files.
type Verifier struct {
	et MetadataExtractor
}

func NewVerifier(et MetadataExtractor) *Verifier {
	return &Verifier{et: et}
}

// ReadFields returns the image's content-metadata fields, but only when they
// amount to meaningful content; otherwise it returns an empty map. Tool or
// parse errors also yield an empty map - an unreadable file is treated the
// same as an untagged one.
func (v *Verifier) ReadFields(path string) map[string]string {
	fms := v.et.ExtractMetadata(path)
	if len(fms) == 0 {
		return map[string]string{}
	}

	fm := fms[0]
	if fm.Err != nil {
		klog.V(1).Infof("metadata read failed for %s: %v", path, fm.Err)
		return map[string]string{}
	}

	fields := map[string]string{}
	for _, k := range verifyFields {
		raw, ok := fm.Fields[k]
		if !ok {
			continue
		}
		s := strings.TrimSpace(fieldString(raw))
		if s == "" {
			continue
		}
		fields[k] = s
	}

	// A lone OS-assigned screenshot marker is not real content.
	if len(fields) == 1 && fields["UserComment"] == screenshotMarker {
		return map[string]string{}
	}

	for _, k := range meaningfulFields {
		if utf8.RuneCountInString(fields[k]) > meaningfulMinLen {
			return fields
		}
	}
	return map[string]string{}
}

// HasMeaningfulMetadata reports whether the image already carries enough
// content metadata to skip re-analysis.
func (v *Verifier) HasMeaningfulMetadata(path string) bool {
	return len(v.ReadFields(path)) > 0
}

// fieldString renders an exiftool JSON value; list fields like Keywords
// come back as []interface{}.
func fieldString(raw interface{}) string {
	switch val := raw.(type) {
	case string:
		return val
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}
