// Package report renders sweep progress and results to the terminal.
//
// A Reporter is created once per run and handed to whatever needs to talk to
// the user. Colors and the in-place progress bar are only used when the
// output is a terminal, so redirected output stays plain text.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/anstrom/anscanner/internal/scanning"
)

const (
	// TableTitle is printed above the results table.
	TableTitle = "Active Hosts"

	// NoPorts fills the ports column for hosts without open ports.
	NoPorts = "None"

	progressLabel = "Scanning..."
	progressWidth = 40
)

// Columns of the results table.
var columns = []any{"IP Address", "Open Ports", "Operating System"}

const banner = `    ___    _   _______
   /   |  / | / / ___/_________ _____  ____  ___  _____
  / /| | /  |/ /\__ \/ ___/ __ '/ __ \/ __ \/ _ \/ ___/
 / ___ |/ /|  /___/ / /__/ /_/ / / / / / / /  __/ /
/_/  |_/_/ |_//____/\___/\__,_/_/ /_/_/ /_/\___/_/
`

// Row is one line of the results table.
type Row struct {
	IP    string
	Ports string
	OS    string
}

// BuildRows converts records into table rows, keeping their order.
func BuildRows(records []scanning.Record) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		ports := NoPorts
		if len(rec.Ports) > 0 {
			descs := make([]string, len(rec.Ports))
			for i, p := range rec.Ports {
				descs[i] = p.String()
			}
			ports = strings.Join(descs, ", ")
		}
		osName := rec.OS
		if osName == "" {
			osName = scanning.UnknownOS
		}
		rows = append(rows, Row{IP: rec.IP, Ports: ports, OS: osName})
	}
	return rows
}

// Reporter writes user facing output.
type Reporter struct {
	out         io.Writer
	interactive bool

	title   *color.Color
	info    *color.Color
	warn    *color.Color
	err     *color.Color
	success *color.Color

	mu    sync.Mutex
	bar   progress.Model
	total int
	done  int
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithInteractive overrides terminal detection.
func WithInteractive(interactive bool) Option {
	return func(r *Reporter) {
		r.interactive = interactive
	}
}

// New creates a Reporter writing to out.
func New(out io.Writer, opts ...Option) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	r := &Reporter{
		out:         out,
		interactive: isTerminal(out),
		title:       color.New(color.FgCyan, color.Bold),
		info:        color.New(color.FgYellow),
		warn:        color.New(color.FgRed),
		err:         color.New(color.FgRed, color.Bold),
		success:     color.New(color.FgGreen),
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressWidth)),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, c := range []*color.Color{r.title, r.info, r.warn, r.err, r.success} {
		if r.interactive {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Interactive reports whether progress is redrawn in place.
func (r *Reporter) Interactive() bool {
	return r.interactive
}

// Banner prints the program banner.
func (r *Reporter) Banner() {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.title.Fprint(r.out, banner)
	_, _ = fmt.Fprintln(r.out)
}

// Info prints a status line.
func (r *Reporter) Info(format string, args ...any) {
	r.line(r.info, format, args...)
}

// Warn prints a warning line.
func (r *Reporter) Warn(format string, args ...any) {
	r.line(r.warn, format, args...)
}

// Error prints an error line.
func (r *Reporter) Error(format string, args ...any) {
	r.line(r.err, format, args...)
}

// Success prints a success line.
func (r *Reporter) Success(format string, args ...any) {
	r.line(r.success, format, args...)
}

func (r *Reporter) line(c *color.Color, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakProgressLine()
	_, _ = c.Fprintf(r.out, format, args...)
	_, _ = fmt.Fprintln(r.out)
	r.redrawProgress()
}

// StartProgress begins a progress bar over total steps.
func (r *Reporter) StartProgress(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
	r.done = 0
	r.redrawProgress()
}

// Advance moves the progress bar forward by one step.
func (r *Reporter) Advance() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.total == 0 {
		return
	}
	if r.done < r.total {
		r.done++
	}
	r.redrawProgress()
}

// Progress returns the completed and total step counts.
func (r *Reporter) Progress() (done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done, r.total
}

// FinishProgress ends the progress bar. Non-interactive output gets a single
// line with the final count.
func (r *Reporter) FinishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.total == 0 {
		return
	}
	if r.interactive {
		_, _ = fmt.Fprintln(r.out)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s %d/%d\n", progressLabel, r.done, r.total)
	}
	r.total = 0
	r.done = 0
}

// redrawProgress must be called with mu held.
func (r *Reporter) redrawProgress() {
	if !r.interactive || r.total == 0 {
		return
	}
	percent := float64(r.done) / float64(r.total)
	_, _ = fmt.Fprintf(r.out, "\r%s %s %d/%d", progressLabel, r.bar.ViewAs(percent), r.done, r.total)
}

// breakProgressLine moves a status line off the progress bar. It must be
// called with mu held.
func (r *Reporter) breakProgressLine() {
	if r.interactive && r.total > 0 {
		_, _ = fmt.Fprintln(r.out)
	}
}

// Summary prints the number of live hosts.
func (r *Reporter) Summary(hosts int) {
	r.Success("Active hosts found: %d", hosts)
}

// NoHosts prints the empty result message.
func (r *Reporter) NoHosts() {
	r.Error("No active hosts found.")
}

// Table renders rows under the "Active Hosts" title.
func (r *Reporter) Table(rows []Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = r.title.Fprintln(r.out, TableTitle)

	table := tablewriter.NewTable(r.out, tablewriter.WithHeaderAutoFormat(tw.Off))
	table.Header(columns...)
	for _, row := range rows {
		if err := table.Append([]string{row.IP, row.Ports, row.OS}); err != nil {
			return fmt.Errorf("append row for %s: %w", row.IP, err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render results table: %w", err)
	}
	return nil
}
