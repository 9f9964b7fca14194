package bildsok

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/djherbis/times"
	"github.com/otiai10/copy"
	"k8s.io/klog/v2"
)

// writeTimeout bounds a single exiftool invocation.
const writeTimeout = 30 * time.Second

// originalSuffix is appended by exiftool to its own backup copy.
const originalSuffix = "_original"

// Writer embeds vision descriptions into image files via exiftool, with a
// backup/restore protocol so a failed or interrupted write never leaves the
// file worse than it found it. One Writer may be reused across files, but
// callers must not point two concurrent Write calls at the same file.
type Writer struct {
	tool    string
	timeout time.Duration

	// run executes the external tool; swapped out in tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewWriter() *Writer {
	return &Writer{
		tool:    "exiftool",
		timeout: writeTimeout,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// Write parses description, extracts keywords, and rewrites the image's
// content-metadata fields in a single exiftool invocation, preserving the
// file's access and modification times. It returns false on any failure;
// failures never propagate so a batch can continue past a bad file.
// baseDir only shortens paths in log output and may be empty.
func (w *Writer) Write(path, baseDir, description string, mode Mode) bool {
	disp := DisplayPath(path, baseDir)

	fi, err := os.Stat(path)
	if err != nil {
		klog.Warningf("skipping %s: %v", disp, err)
		return false
	}
	if fi.Size() == 0 {
		klog.Warningf("skipping %s: file is empty", disp)
		return false
	}
	if err := checkAccess(path); err != nil {
		klog.Warningf("skipping %s: %v", disp, err)
		return false
	}

	backup, err := makeBackup(path)
	if err != nil {
		klog.Errorf("backup failed for %s, not touching file: %v", disp, err)
		return false
	}
	klog.V(1).Infof("created backup for %s: %s", disp, backup)

	// Snapshot before exiftool has a chance to touch anything.
	atime := times.Get(fi).AccessTime()
	mtime := fi.ModTime()

	parsed := Parse(description, mode)
	keywords := ExtractKeywords(description, mode)
	args := writeArgs(path, description, parsed, keywords, mode)

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	out, err := w.run(ctx, w.tool, args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			klog.Warningf("skipping %s: %s timed out after %s", disp, w.tool, w.timeout)
		} else {
			klog.Errorf("metadata write failed for %s: %v: %s", disp, err, bytes.TrimSpace(out))
		}
		w.rollback(backup, path, disp)
		return false
	}

	nfi, err := os.Stat(path)
	if err != nil || nfi.Size() == 0 {
		klog.Warningf("%s corrupted by metadata write, restoring from backup", disp)
		w.rollback(backup, path, disp)
		return false
	}

	// exiftool keeps its own copy of the original; ours supersedes it.
	if _, err := os.Stat(path + originalSuffix); err == nil {
		if err := os.Remove(path + originalSuffix); err != nil {
			klog.Warningf("unable to remove %s%s: %v", disp, originalSuffix, err)
		}
	}

	if err := os.Chtimes(path, atime, mtime); err != nil {
		klog.Errorf("unable to restore timestamps on %s, restoring from backup: %v", disp, err)
		w.rollback(backup, path, disp)
		return false
	}

	if err := os.Remove(backup); err != nil {
		klog.Warningf("unable to remove backup %s: %v", backup, err)
	}
	klog.Infof("metadata written to %s (%d keywords)", disp, len(keywords))
	return true
}

// rollback puts the original bytes back and drops the backup.
func (w *Writer) rollback(backup, path, disp string) {
	if err := copy.Copy(backup, path); err != nil {
		klog.Errorf("restore from backup failed for %s: %v (backup kept at %s)", disp, err, backup)
		return
	}
	if err := os.Remove(backup); err != nil {
		klog.Warningf("unable to remove backup %s: %v", backup, err)
	}
}

// writeArgs builds the one-shot exiftool field-assignment command line.
// Deliberately no -overwrite_original: the _original sidecar exiftool leaves
// behind is cleaned up only after the write has been verified.
func writeArgs(path, description string, parsed Fields, keywords []string, mode Mode) []string {
	args := []string{
		"-charset", "utf8",
		"-codedcharacterset=utf8",
		"-preserve",
		"-P",
		"-quiet",
	}

	// Search-optimized short description for Subject/Caption-Abstract.
	if search := searchDescription(parsed, mode); search != "" {
		args = append(args,
			"-Subject="+search,
			"-Caption-Abstract="+search,
		)
	}

	// The full structured description stays human-readable.
	args = append(args,
		"-ImageDescription="+description,
		"-UserComment="+description,
	)

	// Keywords feed the Spotlight-preferred XMP slots.
	if joined := strings.Join(keywords, ", "); joined != "" {
		args = append(args,
			"-XMP:Description="+joined,
			"-Keywords="+joined,
			"-XMP:Subject="+joined,
		)
	}

	switch mode {
	case ModeScreenshot:
		// On-screen text gets extra search entry points.
		if tc := parsed[KeyTextContent]; tc != "" {
			args = append(args,
				"-XMP:Title="+tc,
				"-Creator="+truncateRunes(tc, 200, ""),
			)
		}
		if ai := parsed[KeyAppInfo]; ai != "" {
			args = append(args, "-Software="+ai)
		}
	default:
		if txt := parsed[KeyText]; txt != "" && txt != noTextMarker {
			args = append(args, "-XMP:Title="+txt)
		}
	}

	return append(args, path)
}

// searchDescription concatenates the fields most likely to match a search
// into one short line.
func searchDescription(parsed Fields, mode Mode) string {
	var parts []string

	switch mode {
	case ModeScreenshot:
		if v, ok := parsed[KeySummary]; ok {
			parts = append(parts, v)
		}
		if v, ok := parsed[KeyTextContent]; ok {
			parts = append(parts, truncateRunes(v, 100, "..."))
		}
		if v, ok := parsed[KeyAppInfo]; ok {
			parts = append(parts, v)
		}
	default:
		for _, k := range []string{KeySummary, KeyObjects, KeyScene} {
			if v, ok := parsed[k]; ok {
				parts = append(parts, v)
			}
		}
	}

	return strings.Join(parts, " ")
}

func truncateRunes(s string, max int, ellipsis string) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	rs := []rune(s)
	return string(rs[:max]) + ellipsis
}

// makeBackup copies the file's bytes verbatim to a fresh temp file and
// returns its path. The temp-file facility guarantees a collision-free name
// per invocation.
func makeBackup(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "img_metadata_*.backup")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close: %w", err)
	}
	return tmp.Name(), nil
}

// checkAccess verifies the file can be opened for reading and writing before
// anything is mutated.
func checkAccess(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("not readable: %w", err)
	}
	f.Close()

	f, err = os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	f.Close()
	return nil
}

// DisplayPath shortens path for log output relative to baseDir, falling back
// to the basename.
func DisplayPath(path, baseDir string) string {
	if baseDir != "" {
		if rel, err := filepath.Rel(baseDir, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return filepath.Base(path)
}
