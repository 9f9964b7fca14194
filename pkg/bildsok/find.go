package bildsok

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"
)

// imageExts are the file extensions the pipeline will pick up. HEIC/HEIF are
// discovered but skipped at analysis time (no Go decoder).
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".heic": true,
	".heif": true,
}

// FindImages returns the supported image files under root, sorted by path.
func FindImages(root string, recursive bool) ([]string, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	found := []string{}

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("read dir: %w", err)
		}
		for _, de := range entries {
			if de.IsDir() || isHidden(de.Name()) {
				continue
			}
			if imageExts[strings.ToLower(filepath.Ext(de.Name()))] {
				found = append(found, filepath.Join(root, de.Name()))
			}
		}
		sort.Strings(found)
		return found, nil
	}

	err = godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path != root && isHidden(filepath.Base(path)) {
				return godirwalk.SkipThis
			}
			if de.IsDir() {
				return nil
			}
			if imageExts[strings.ToLower(filepath.Ext(path))] {
				klog.V(1).Infof("found %s", path)
				found = append(found, path)
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(found)
	return found, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
