package xlsx

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	// HeaderColor fills every header row
	HeaderColor = "1F4E78"

	// MaxColumnWidth caps auto-sized columns
	MaxColumnWidth = 50

	maxSheetName = 31
	// Excel rejects cells longer than this
	maxCellLength = 32767

	timeLayout = "2006-01-02 15:04:05"
)

// Styles holds the style IDs shared by the sheets of one workbook
type Styles struct {
	Header int
	Body   int
	Failed int
}

// NewStyles registers the workbook styles
func NewStyles(f *excelize.File) (Styles, error) {
	var s Styles
	var err error

	s.Header, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{HeaderColor}},
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Alignment: &excelize.Alignment{
			Vertical: "center",
		},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}

	s.Body, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create body style: %w", err)
	}

	s.Failed, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Color: "C00000", Bold: true},
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create failure style: %w", err)
	}
	return s, nil
}

// SheetNamer turns arbitrary titles into valid, unique sheet names
type SheetNamer struct {
	used map[string]bool
}

// NewSheetNamer creates a namer with the given names already taken
func NewSheetNamer(reserved ...string) *SheetNamer {
	n := &SheetNamer{used: make(map[string]bool)}
	for _, name := range reserved {
		n.used[strings.ToLower(name)] = true
	}
	return n
}

var invalidSheetChars = strings.NewReplacer(
	":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")", " ", "_",
)

// Name returns a sheet name for title: invalid characters replaced,
// truncated to 31 characters, and suffixed when already taken.
func (n *SheetNamer) Name(title string) string {
	base := strings.Trim(invalidSheetChars.Replace(title), "'")
	if base == "" {
		base = "Sheet"
	}
	base = truncateRunes(base, maxSheetName)

	name := base
	for i := 2; n.used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf("_%d", i)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	n.used[strings.ToLower(name)] = true
	return name
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// CellValue converts a detail value to something excelize writes natively.
// Lists become one item per line, times are formatted in UTC.
func CellValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return clip(val)
	case []string:
		return clip(strings.Join(val, "\n"))
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprint(CellValue(item)))
		}
		return clip(strings.Join(parts, "\n"))
	case map[string]string:
		return clip(formatTags(val))
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.UTC().Format(timeLayout)
	case *time.Time:
		if val == nil || val.IsZero() {
			return ""
		}
		return val.UTC().Format(timeLayout)
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case int, int32, int64, float32, float64:
		return val
	default:
		return clip(fmt.Sprint(val))
	}
}

func clip(s string) string {
	if len(s) <= maxCellLength {
		return s
	}
	return truncateRunes(s, maxCellLength-3) + "..."
}

// formatTags renders tags one "key=value" per line, sorted by key
func formatTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+tags[k])
	}
	return strings.Join(lines, "\n")
}

// Sheet writes rows to one worksheet and tracks column widths
type Sheet struct {
	f      *excelize.File
	name   string
	styles Styles
	widths []int
	rows   int
}

// NewSheet creates (or reuses, for the first sheet) a worksheet named name
func NewSheet(f *excelize.File, name string, styles Styles) (*Sheet, error) {
	if _, err := f.NewSheet(name); err != nil {
		return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	return &Sheet{f: f, name: name, styles: styles}, nil
}

// Name returns the worksheet name
func (s *Sheet) Name() string {
	return s.name
}

// Header writes a styled header row and freezes it
func (s *Sheet) Header(titles ...string) error {
	values := make([]interface{}, len(titles))
	for i, t := range titles {
		values[i] = t
	}
	if err := s.row(values, s.styles.Header); err != nil {
		return err
	}
	return s.f.SetPanes(s.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      s.rows,
		TopLeftCell: fmt.Sprintf("A%d", s.rows+1),
		ActivePane:  "bottomLeft",
	})
}

// Row writes a body row
func (s *Sheet) Row(values ...interface{}) error {
	return s.row(values, s.styles.Body)
}

// FailedRow writes a row highlighted as a failure
func (s *Sheet) FailedRow(values ...interface{}) error {
	return s.row(values, s.styles.Failed)
}

// Blank skips a row
func (s *Sheet) Blank() {
	s.rows++
}

func (s *Sheet) row(values []interface{}, style int) error {
	s.rows++
	if len(values) == 0 {
		return nil
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = CellValue(v)
		s.track(i, cells[i])
	}

	start, err := excelize.CoordinatesToCellName(1, s.rows)
	if err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(len(cells), s.rows)
	if err != nil {
		return err
	}
	if err := s.f.SetSheetRow(s.name, start, &cells); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", s.rows, s.name, err)
	}
	return s.f.SetCellStyle(s.name, start, end, style)
}

// track records the widest line seen in a column
func (s *Sheet) track(col int, v interface{}) {
	for len(s.widths) <= col {
		s.widths = append(s.widths, 0)
	}
	for _, line := range strings.Split(fmt.Sprint(v), "\n") {
		if w := utf8.RuneCountInString(line); w > s.widths[col] {
			s.widths[col] = w
		}
	}
}

// Finish sizes every column to its content, capped at MaxColumnWidth
func (s *Sheet) Finish() error {
	for i, w := range s.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := s.f.SetColWidth(s.name, col, col, float64(min(w+2, MaxColumnWidth))); err != nil {
			return fmt.Errorf("failed to size column %s of %s: %w", col, s.name, err)
		}
	}
	return nil
}
