// Package organizer prepares and audits a run's on-disk layout: the Run
// ID format, the artifacts/runs/<run_id>/ directory tree, and the
// preflight checks that must pass before a scan is allowed to start.
package organizer

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"ipcrawler/pkg/config"
	"ipcrawler/pkg/errors"
	"ipcrawler/pkg/limiter"
	"ipcrawler/pkg/types"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// NewRunID builds a run identifier of the form run_<sanitized-target>_<unix-seconds>,
// replacing every filesystem-unsafe character in target with an underscore.
func NewRunID(target string, now time.Time) string {
	sanitized := unsafeChars.ReplaceAllString(target, "_")
	return fmt.Sprintf("run_%s_%d", sanitized, now.Unix())
}

// PrepareRunDirs creates artifacts/runs/<run_id>/{scans,loot,report} plus
// the shared artifacts/logs directory, verifies the logs directory is
// writable, and fsyncs every created directory on Unix for durability.
func PrepareRunDirs(runID string) (types.RunDirs, error) {
	base := "artifacts"
	root := filepath.Join(base, "runs", runID)

	dirs := types.RunDirs{
		Root:   root,
		Scans:  filepath.Join(root, "scans"),
		Loot:   filepath.Join(root, "loot"),
		Report: filepath.Join(root, "report"),
		Logs:   filepath.Join(base, "logs"),
	}

	for _, dir := range []string{dirs.Root, dirs.Scans, dirs.Loot, dirs.Report, dirs.Logs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return types.RunDirs{}, errors.Organizer("failed to create directory "+dir, err)
		}
	}

	if err := verifyWritable(dirs.Logs); err != nil {
		return types.RunDirs{}, err
	}

	for _, dir := range []string{dirs.Root, dirs.Scans, dirs.Loot, dirs.Report, dirs.Logs} {
		syncDir(dir)
	}

	return dirs, nil
}

// syncDir fsyncs a directory so its just-created children survive a
// crash. Best-effort: a failure here doesn't invalidate the run.
func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	defer f.Close()
	_ = f.Sync()
}

func verifyWritable(dir string) error {
	test := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(test, []byte("test"), 0o644); err != nil {
		return errors.Organizer("directory not writable: "+dir, err)
	}
	if err := os.Remove(test); err != nil {
		return errors.Organizer("failed to remove write-test file in "+dir, err)
	}
	return nil
}

// requiredTools is the small, fixed set of base OS utilities ipcrawler
// itself depends on regardless of which plugins are registered — distinct
// from plugins.Registry.ValidateTools, which checks each registered
// plugin's own declared tool.
var requiredTools = []string{"nslookup", "dig"}

// VerifyBaseTools checks that every entry in requiredTools resolves on
// PATH, returning a single KindDependency error listing everything
// missing.
func VerifyBaseTools() error {
	var missing []string
	for _, tool := range requiredTools {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return errors.Dependency(fmt.Sprintf("missing required tools: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// Preflight runs every startup check that must pass before a scan is
// allowed to start: directory writability and the file-descriptor budget
// implied by cfg's concurrency limits. It collects every failure instead
// of stopping at the first, matching the original audit's all-at-once
// reporting.
func Preflight(dirs types.RunDirs, cfg config.GlobalConfig) error {
	var problems []string

	for _, dir := range []string{dirs.Root, dirs.Scans, dirs.Loot, dirs.Report, dirs.Logs} {
		if err := verifyWritable(dir); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if err := limiter.CheckFileDescriptors(cfg.Concurrency.MaxTotalScans); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return errors.Organizer("preflight checks failed:\n"+strings.Join(problems, "\n"), nil)
	}
	return nil
}
