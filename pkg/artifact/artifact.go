// Package artifact is the Artifact Writer (spec §4.6): an atomic
// temp-file-plus-rename primitive shared by every plugin's per-result
// file, and the final report writer/validator that renders RunState into
// summary.txt, summary.md, and summary.json at run completion.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"ipcrawler/pkg/errors"
	"ipcrawler/pkg/state"
)

// AtomicWrite writes content to path via a temp-file-plus-rename
// protocol: write to path+".tmp", fsync, then rename over path. The
// rename is atomic on POSIX-like filesystems, so readers never observe a
// partially-written file.
func AtomicWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.IO("failed to create parent directory "+dir, err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.IO("failed to create temp file "+tmp, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return errors.IO("failed to write temp file "+tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.IO("failed to fsync temp file "+tmp, err)
	}
	if err := f.Close(); err != nil {
		return errors.IO("failed to close temp file "+tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.IO(fmt.Sprintf("failed to rename %s to %s", tmp, path), err)
	}
	return nil
}

// ReportContext is the data a report template (or the JSON/YAML
// encoders) render from. Templates themselves are external collaborators
// consumed by text/template; this struct is the contract between
// RunState and any renderer. Its JSON encoding is also the canonical
// machine-readable output (spec §6): top-level keys target, run_id,
// ports_open, services, tasks_started, tasks_completed, errors, matching
// RunState's serialized fields, plus the report-only keys
// duration_seconds, scan_date, scans_dir, report_dir, and version.
type ReportContext struct {
	Target          string          `json:"target"`
	RunID           string          `json:"run_id"`
	DurationSeconds int64           `json:"duration_seconds"`
	ScanDate        string          `json:"scan_date"`
	PortsOpen       []portEntryView `json:"ports_open"`
	Services        []serviceView   `json:"services"`
	TasksStarted    int             `json:"tasks_started"`
	TasksCompleted  int             `json:"tasks_completed"`
	Errors          []errorView     `json:"errors"`
	ScansDir        string          `json:"scans_dir"`
	ReportDir       string          `json:"report_dir"`
	Version         string          `json:"version"`
}

// portEntryView serializes as a [port, name] tuple, not an object, per
// spec §6.
type portEntryView struct {
	Port uint16
	Name string
}

func (p portEntryView) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{p.Port, p.Name})
}

type serviceView struct {
	Proto   string `json:"proto"`
	Port    uint16 `json:"port"`
	Name    string `json:"name"`
	Secure  bool   `json:"secure"`
	Address string `json:"address"`
}

// errorView is the serialized form of types.ExecError: tool, argv, cwd,
// a nullable exit code, stderr tail, and duration, per spec §3/§7.
// ExitCodeDisplay is template-only (json:"-"); it exists because the
// plain-text/markdown renderers need a human string ("none" or a number)
// where the JSON encoding needs a real nullable int.
type errorView struct {
	Tool            string   `json:"tool"`
	Args            []string `json:"args"`
	Cwd             string   `json:"cwd"`
	ExitCode        *int     `json:"exit_code"`
	StderrTail      string   `json:"stderr_tail"`
	DurationMS      int64    `json:"duration_ms"`
	ExitCodeDisplay string   `json:"-"`
}

// Version is the ipcrawler release embedded in every report; set at
// build time in a full release pipeline, a fixed placeholder here.
const Version = "dev"

// BuildContext turns a RunState snapshot into a ReportContext.
func BuildContext(snap state.Snapshot, dirs Dirs, start time.Time) ReportContext {
	ports := make([]portEntryView, len(snap.PortsOpen))
	for i, p := range snap.PortsOpen {
		ports[i] = portEntryView{Port: p.Port, Name: p.Name}
	}

	services := make([]serviceView, len(snap.Services))
	for i, s := range snap.Services {
		services[i] = serviceView{Proto: string(s.Proto), Port: s.Port, Name: s.Name, Secure: s.Secure, Address: s.Address}
	}

	errs := make([]errorView, len(snap.Errors))
	for i, e := range snap.Errors {
		display := "none"
		if e.ExitCode != nil {
			display = fmt.Sprintf("%d", *e.ExitCode)
		}
		errs[i] = errorView{
			Tool:            e.Tool,
			Args:            e.Args,
			Cwd:             e.Cwd,
			ExitCode:        e.ExitCode,
			StderrTail:      e.StderrTail,
			DurationMS:      e.DurationMS,
			ExitCodeDisplay: display,
		}
	}

	return ReportContext{
		Target:          snap.Target,
		RunID:           snap.RunID,
		DurationSeconds: int64(time.Since(start).Seconds()),
		ScanDate:        time.Now().UTC().Format("2006-01-02 15:04:05 UTC"),
		PortsOpen:       ports,
		Services:        services,
		TasksStarted:    snap.TasksStarted,
		TasksCompleted:  snap.TasksCompleted,
		Errors:          errs,
		ScansDir:        dirs.Scans,
		ReportDir:       dirs.Report,
		Version:         Version,
	}
}

// Dirs is the subset of types.RunDirs the writer needs; declared locally
// to avoid importing pkg/types just for two fields.
type Dirs struct {
	Scans  string
	Report string
}

const textTemplate = `ipcrawler report
=================
Target:    {{.Target}}
Run ID:    {{.RunID}}
Scanned:   {{.ScanDate}}
Duration:  {{.DurationSeconds}}s

Tasks started:   {{.TasksStarted}}
Tasks completed: {{.TasksCompleted}}

Open ports:
{{range .PortsOpen}}  {{.Port}}/{{.Name}}
{{else}}  (none)
{{end}}
Services:
{{range .Services}}  {{.Address}}:{{.Port}} {{.Name}} ({{.Proto}}){{if .Secure}} [secure]{{end}}
{{else}}  (none)
{{end}}
Errors:
{{range .Errors}}  {{.Tool}} exit={{.ExitCodeDisplay}}: {{.StderrTail}}
{{else}}  (none)
{{end}}
`

const markdownTemplate = `# ipcrawler report

- **Target:** {{.Target}}
- **Run ID:** {{.RunID}}
- **Scanned:** {{.ScanDate}}
- **Duration:** {{.DurationSeconds}}s
- **Tasks:** {{.TasksCompleted}}/{{.TasksStarted}} completed

## Open ports
{{range .PortsOpen}}
- {{.Port}}/{{.Name}}
{{else}}
_none_
{{end}}
## Services
{{range .Services}}
- {{.Address}}:{{.Port}} — {{.Name}} ({{.Proto}}){{if .Secure}} 🔒{{end}}
{{else}}
_none_
{{end}}
## Errors
{{range .Errors}}
- {{.Tool}} (exit={{.ExitCodeDisplay}}): {{.StderrTail}}
{{else}}
_none_
{{end}}
`

var (
	textTmpl = template.Must(template.New("summary.txt").Parse(textTemplate))
	mdTmpl   = template.Must(template.New("summary.md").Parse(markdownTemplate))
)

// WriteReport renders and atomically writes summary.txt, summary.md, and
// summary.json into dirs.Report. When debug is true it also writes a
// summary.debug.yaml dump of the same context for human inspection.
func WriteReport(ctx ReportContext, dirs Dirs, debug bool) error {
	var textBuf, mdBuf []byte
	var err error

	if textBuf, err = renderTemplate(textTmpl, ctx); err != nil {
		return errors.Report("failed to render text summary", err)
	}
	if err := AtomicWrite(filepath.Join(dirs.Report, "summary.txt"), textBuf); err != nil {
		return errors.Report("failed to write summary.txt", err)
	}

	if mdBuf, err = renderTemplate(mdTmpl, ctx); err != nil {
		return errors.Report("failed to render markdown summary", err)
	}
	if err := AtomicWrite(filepath.Join(dirs.Report, "summary.md"), mdBuf); err != nil {
		return errors.Report("failed to write summary.md", err)
	}

	jsonBuf, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return errors.Report("failed to marshal json summary", err)
	}
	if err := AtomicWrite(filepath.Join(dirs.Report, "summary.json"), jsonBuf); err != nil {
		return errors.Report("failed to write summary.json", err)
	}

	if debug {
		yamlBuf, err := yaml.Marshal(ctx)
		if err != nil {
			return errors.Report("failed to marshal debug yaml summary", err)
		}
		if err := AtomicWrite(filepath.Join(dirs.Report, "summary.debug.yaml"), yamlBuf); err != nil {
			return errors.Report("failed to write summary.debug.yaml", err)
		}
	}

	return nil
}

func renderTemplate(t *template.Template, ctx ReportContext) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate checks that summary.txt, summary.md, and summary.json all
// exist and are non-empty; any violation is a fatal run-level error.
func Validate(dirs Dirs) error {
	for _, name := range []string{"summary.txt", "summary.md", "summary.json"} {
		path := filepath.Join(dirs.Report, name)
		info, err := os.Stat(path)
		if err != nil {
			return errors.Report("required report file missing: "+path, err)
		}
		if info.Size() == 0 {
			return errors.Report("report file is empty: "+path, nil)
		}
	}
	return nil
}
