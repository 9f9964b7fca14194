package bildsok

import (
	"bytes"
	"os/exec"

	"k8s.io/klog/v2"
)

// TriggerReindex asks Spotlight to re-scan a directory so freshly written
// metadata becomes searchable. Best effort: a failure is logged, the
// metadata is already on disk either way.
func TriggerReindex(dir string) {
	out, err := exec.Command("mdimport", "-r", dir).CombinedOutput()
	if err != nil {
		klog.Warningf("spotlight reindex failed for %s: %v: %s", dir, err, bytes.TrimSpace(out))
		return
	}
	klog.Infof("triggered spotlight reindex: %s", dir)
}
