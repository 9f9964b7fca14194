// bildsok analyzes images with Gemini and writes the descriptions into their
// embedded metadata so Spotlight can find images by their content.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"k8s.io/klog/v2"

	"github.com/barasher/go-exiftool"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	bildsok "github.com/tstromberg/bildsok/pkg/bildsok"
)

var (
	noRecursive = flag.Bool("no-recursive", false, "do not descend into subdirectories")
	dryRun      = flag.Bool("dry-run", false, "analyze images but do not write metadata")
	verifyFlag  = flag.Bool("verify", false, "report existing metadata without re-analyzing")
	force       = flag.Bool("force", false, "reprocess images that already have metadata")
	screenshot  = flag.Bool("screenshot", false, "use the screenshot label schema (optimized for on-screen text)")
	watchFlag   = flag.Bool("watch", false, "keep watching the directories and process images as they appear")
	model       = flag.String("model", "", "Gemini model to use")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	os.Exit(run())
}

func run() int {
	dirs := flag.Args()
	if len(dirs) == 0 {
		klog.Exitf("no input directories provided. Usage: %s [flags] <dir> [dir ...]", os.Args[0])
	}
	if *force && *watchFlag {
		klog.Exitf("--force cannot be combined with --watch")
	}

	// .env is the usual home for the API key; absence is fine.
	if err := godotenv.Load(); err != nil {
		klog.V(1).Infof("no .env loaded: %v", err)
	}

	mode := bildsok.ModeNormal
	if *screenshot {
		mode = bildsok.ModeScreenshot
	}

	et, err := exiftool.NewExiftool()
	if err != nil {
		klog.Exitf("exiftool failed: %v (is it installed?)", err)
	}
	defer func() {
		if err := et.Close(); err != nil {
			klog.Errorf("failed to close exiftool: %v", err)
		}
	}()

	verifier := bildsok.NewVerifier(et)

	if *verifyFlag {
		return runVerify(verifier, dirs, !*noRecursive)
	}

	ctx := context.Background()
	p := &bildsok.Pipeline{
		Verifier: verifier,
		Writer:   bildsok.NewWriter(),
		OpenAnalyzer: func(ctx context.Context) (bildsok.DescriptionSource, error) {
			return bildsok.NewAnalyzer(ctx, os.Getenv("GEMINI_API_KEY"), *model)
		},
		Mode:      mode,
		Recursive: !*noRecursive,
		DryRun:    *dryRun,
		Force:     *force,
	}

	code := runOnce(ctx, p, dirs)

	if *watchFlag {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watch(ctx, p, dirs); err != nil {
				klog.Exitf("watch failed: %v", err)
			}
		}()
		wg.Wait()
	}

	return code
}

// runOnce processes every directory once and returns the process exit code.
func runOnce(ctx context.Context, p *bildsok.Pipeline, dirs []string) int {
	st, err := p.Run(ctx, dirs)
	if err != nil {
		klog.Exitf("run failed: %v", err)
	}

	if st.Found == 0 {
		klog.Errorf("no supported image files found in %s", strings.Join(dirs, ", "))
		return 1
	}

	klog.Infof("done: %d images, %d skipped (existing metadata), %d analyzed, %d written",
		st.Found, st.Skipped, st.Analyzed, st.Written)

	if p.DryRun {
		klog.Infof("dry run: nothing was written")
		return 0
	}

	if st.Written > 0 {
		for _, dir := range dirs {
			bildsok.TriggerReindex(dir)
		}
		klog.Infof("images are now searchable by content in Spotlight")
	}

	if st.Analyzed == 0 && st.Skipped == 0 {
		return 1
	}
	return 0
}

// runVerify reports the existing metadata for every image, without analyzing.
func runVerify(v *bildsok.Verifier, dirs []string, recursive bool) int {
	for _, dir := range dirs {
		imgs, err := bildsok.FindImages(dir, recursive)
		if err != nil {
			klog.Exitf("find images: %v", err)
		}
		for _, img := range imgs {
			disp := bildsok.DisplayPath(img, dir)
			fields := v.ReadFields(img)
			if len(fields) == 0 {
				fmt.Printf("%s: no metadata\n", disp)
				continue
			}
			fmt.Printf("%s: has metadata\n", disp)
			for k, val := range fields {
				if r := []rune(val); len(r) > 50 {
					val = string(r[:50]) + "..."
				}
				fmt.Printf("    %s: %s\n", k, val)
			}
		}
	}
	return 0
}

// watch reprocesses directories when files change. A freshly written image
// fires its own event; the existing-metadata check stops the loop.
func watch(ctx context.Context, p *bildsok.Pipeline, dirs []string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				klog.V(1).Infof("event: %s", event)
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					st, err := p.Run(ctx, dirs)
					if err != nil {
						klog.Errorf("run failed: %v", err)
						continue
					}
					if st.Written > 0 {
						for _, dir := range dirs {
							bildsok.TriggerReindex(dir)
						}
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				klog.Errorf("watch error: %v", err)
			}
		}
	}()

	watched := slices.Clone(dirs)
	slices.Sort(watched)
	watched = slices.Compact(watched)

	klog.Infof("watching %d dirs ...", len(watched))
	for _, d := range watched {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}

	<-make(chan struct{})
	return nil
}
