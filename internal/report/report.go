// Package report renders filter decisions and merge simulation results for
// the terminal (tables, colors, relative ages) or as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Iron-Ham/cxfinder/internal/branch"
	"github.com/Iron-Ham/cxfinder/internal/merge"
	"github.com/Iron-Ham/cxfinder/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"golang.org/x/term"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// DefaultMaxNameWidth bounds the branch column in tables.
const DefaultMaxNameWidth = 48

// Options configures a Renderer.
type Options struct {
	Format string
	Color  bool
	// Now anchors relative ages; time.Now when nil.
	Now func() time.Time
	// MaxNameWidth truncates long branch names in tables; 0 uses the default.
	MaxNameWidth int
}

// Renderer writes reports to one writer.
type Renderer struct {
	w      io.Writer
	opts   Options
	styles *styles.Set
}

// New creates a Renderer for w.
func New(w io.Writer, opts Options) *Renderer {
	if opts.Format == "" {
		opts.Format = FormatText
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxNameWidth <= 0 {
		opts.MaxNameWidth = DefaultMaxNameWidth
	}

	lr := lipgloss.NewRenderer(w)
	if opts.Color {
		lr.SetColorProfile(termenv.TrueColor)
	} else {
		lr.SetColorProfile(termenv.Ascii)
	}

	return &Renderer{w: w, opts: opts, styles: styles.New(lr)}
}

// ColorEnabled resolves an output.color mode against the file being
// written to.
func ColorEnabled(mode string, f *os.File) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		if os.Getenv("NO_COLOR") != "" {
			return false
		}
		return f != nil && term.IsTerminal(int(f.Fd()))
	}
}

// -----------------------------------------------------------------------------
// Branch listings
// -----------------------------------------------------------------------------

type branchJSON struct {
	Name        string        `json:"name"`
	Hash        string        `json:"hash"`
	CommittedAt time.Time     `json:"committed_at"`
	Reason      branch.Reason `json:"reason"`
	ExcludedBy  string        `json:"excluded_by,omitempty"`
}

// Branches renders filter decisions. Unless all is set only kept branches
// are shown.
func (r *Renderer) Branches(decisions []branch.Decision, all bool) error {
	shown := decisions
	if !all {
		shown = lo.Filter(decisions, func(d branch.Decision, _ int) bool { return d.Kept() })
	}

	if r.opts.Format == FormatJSON {
		out := make([]branchJSON, len(shown))
		for i, d := range shown {
			out[i] = branchJSON{
				Name:        d.Branch.Name,
				Hash:        d.Branch.Hash.String(),
				CommittedAt: d.Branch.When,
				Reason:      d.Reason,
				ExcludedBy:  d.ExcludedBy,
			}
		}
		return r.writeJSON(out)
	}

	if len(shown) == 0 {
		_, err := fmt.Fprintln(r.w, r.styles.Muted.Render("No candidate branches."))
		return err
	}

	table := r.newTable()
	header := []string{"BRANCH", "TIP", "LAST COMMIT"}
	if all {
		header = append(header, "STATUS", "EXCLUDED BY")
	}
	table.SetHeader(header)

	now := r.opts.Now()
	for _, d := range shown {
		row := []string{
			ansi.Truncate(d.Branch.Name, r.opts.MaxNameWidth, "…"),
			r.styles.Hash.Render(shortHash(d.Branch.Hash.String())),
			humanize.RelTime(d.Branch.When, now, "ago", "from now"),
		}
		if all {
			row = append(row, r.styles.Reason(d.Reason.String()).Render(d.Reason.String()), d.ExcludedBy)
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

// -----------------------------------------------------------------------------
// Simulation results
// -----------------------------------------------------------------------------

type resultJSON struct {
	Base      string               `json:"base"`
	Candidate string               `json:"candidate"`
	MergeBase string               `json:"merge_base,omitempty"`
	Status    string               `json:"status"`
	Conflicts merge.ConflictReport `json:"conflicts"`
	Commit    string               `json:"commit,omitempty"`
	Paths     []merge.PathOutcome  `json:"paths,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// Outcome pairs a candidate branch with its simulation result or the
// fatal error that stopped it.
type Outcome struct {
	Branch string
	Result *merge.Result
	Err    error
}

func toJSON(base string, o Outcome) resultJSON {
	out := resultJSON{Base: base, Candidate: o.Branch, Conflicts: merge.ConflictReport{}}
	if o.Err != nil {
		out.Status = "error"
		out.Error = o.Err.Error()
		return out
	}
	res := o.Result
	out.Status = res.Status.String()
	out.MergeBase = res.MergeBase.Hash.String()
	out.Paths = res.Paths
	if res.Report != nil {
		out.Conflicts = res.Report
	}
	if res.Commit != nil {
		out.Commit = res.Commit.Hash.String()
	}
	return out
}

// Result renders one simulation.
func (r *Renderer) Result(res *merge.Result) error {
	o := Outcome{Branch: res.Candidate.Name, Result: res}
	if r.opts.Format == FormatJSON {
		return r.writeJSON(toJSON(res.Base.Name, o))
	}

	var b strings.Builder
	r.writeOutcome(&b, res.Base.Name, o)
	if res.Status == merge.StatusClean {
		fmt.Fprintf(&b, "  %s %s  %s %s\n",
			r.styles.Muted.Render("merge-base"), r.styles.Hash.Render(shortHash(res.MergeBase.Hash.String())),
			r.styles.Muted.Render("commit"), r.styles.Hash.Render(shortHash(res.Commit.Hash.String())),
		)
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

// Batch renders the outcome of checking several branches against base,
// followed by a one-line summary.
func (r *Renderer) Batch(base string, outcomes []Outcome) error {
	if r.opts.Format == FormatJSON {
		out := make([]resultJSON, len(outcomes))
		for i, o := range outcomes {
			out[i] = toJSON(base, o)
		}
		return r.writeJSON(out)
	}

	var b strings.Builder
	for _, o := range outcomes {
		r.writeOutcome(&b, base, o)
	}

	s := Summarize(outcomes)
	fmt.Fprintf(&b, "\n%s: %s, %s, %s\n",
		r.styles.Title.Render(fmt.Sprintf("%d %s", s.Total, plural(s.Total, "branch", "branches"))),
		r.styles.Success.Render(fmt.Sprintf("%d clean", s.Clean)),
		r.styles.Warning.Render(fmt.Sprintf("%d conflicted", s.Conflicted)),
		r.styles.Failure.Render(fmt.Sprintf("%d failed", s.Failed)),
	)
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *Renderer) writeOutcome(b *strings.Builder, base string, o Outcome) {
	switch {
	case o.Err != nil:
		fmt.Fprintf(b, "%s %s: %v\n", r.styles.Failure.Render("!"), o.Branch, o.Err)

	case o.Result.Status == merge.StatusClean:
		fmt.Fprintf(b, "%s %s merges cleanly into %s\n", r.styles.Success.Render("✓"), o.Branch, base)

	default:
		n := len(o.Result.Report)
		fmt.Fprintf(b, "%s %s conflicts with %s (%d %s)\n",
			r.styles.Failure.Render("✗"), o.Branch, base, n, plural(n, "path", "paths"))
		for _, c := range o.Result.Report {
			kind := string(c.Kind)
			fmt.Fprintf(b, "  %s %s\n", r.styles.Kind(kind).Render(fmt.Sprintf("%-10s", kind)), c.Path)
		}
	}
}

// Summary counts batch outcomes.
type Summary struct {
	Total      int
	Clean      int
	Conflicted int
	Failed     int
}

// Summarize counts outcomes by status.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			s.Failed++
		case o.Result.Status == merge.StatusClean:
			s.Clean++
		default:
			s.Conflicted++
		}
	}
	return s
}

func (r *Renderer) newTable() *tablewriter.Table {
	table := tablewriter.NewWriter(r.w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetRowSeparator("")
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func (r *Renderer) writeJSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
