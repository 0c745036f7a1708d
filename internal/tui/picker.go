package tui

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/jask/pdfdesk/internal/view"
)

const (
	sectionFolders = "Folders"
	sectionPDFs    = "PDF files"
	sectionOther   = "Other files"
)

type pickerItem struct {
	ID      int
	Label   string
	Section string
	Meta    string
	Path    string
	IsDir   bool
}

type pickerState struct {
	dir      string
	items    []pickerItem
	filtered []pickerItem
	query    string
	cursor   int
	selected map[int]bool
	hint     string
}

type pickerAction int

const (
	pickerActionNone pickerAction = iota
	pickerActionMoved
	pickerActionToggled
	pickerActionEnterDir
	pickerActionSubmitted
	pickerActionCancelled
)

type pickerResult struct {
	Action pickerAction
	Dir    string
	Paths  []string
}

type scoredPickerItem struct {
	item  pickerItem
	score int
}

func newPicker(dir string, items []pickerItem) *pickerState {
	p := &pickerState{dir: dir, selected: make(map[int]bool)}
	p.SetItems(items)
	return p
}

// listDir builds picker items for dir: the parent, folders, PDFs by extension
// and every other regular file. Hidden entries are skipped.
func listDir(dir string) ([]pickerItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var folders, pdfs, other []pickerItem
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		if e.IsDir() {
			folders = append(folders, pickerItem{Label: name + "/", Section: sectionFolders, Path: path, IsDir: true})
			continue
		}
		if !e.Type().IsRegular() {
			continue
		}
		meta := ""
		if info, err := e.Info(); err == nil {
			meta = view.FormatSize(info.Size())
		}
		it := pickerItem{Label: name, Meta: meta, Path: path}
		if strings.EqualFold(filepath.Ext(name), ".pdf") {
			it.Section = sectionPDFs
			pdfs = append(pdfs, it)
		} else {
			it.Section = sectionOther
			other = append(other, it)
		}
	}

	items := make([]pickerItem, 0, len(folders)+len(pdfs)+len(other)+1)
	if parent := filepath.Dir(dir); parent != dir {
		items = append(items, pickerItem{Label: "../", Section: sectionFolders, Path: parent, IsDir: true})
	}
	items = append(items, folders...)
	items = append(items, pdfs...)
	items = append(items, other...)
	for i := range items {
		items[i].ID = i
	}
	return items, nil
}

func (p *pickerState) SetItems(items []pickerItem) {
	if p == nil {
		return
	}
	p.items = append([]pickerItem(nil), items...)
	p.rebuildFiltered()
}

func (p *pickerState) SetQuery(q string) {
	if p == nil {
		return
	}
	p.query = q
	p.rebuildFiltered()
}

func (p *pickerState) CursorUp() {
	if p.cursor > 0 {
		p.cursor--
	}
}

func (p *pickerState) CursorDown() {
	if p.cursor < len(p.filtered)-1 {
		p.cursor++
	}
}

func (p *pickerState) current() *pickerItem {
	if p == nil || len(p.filtered) == 0 {
		return nil
	}
	idx := min(max(p.cursor, 0), len(p.filtered)-1)
	return &p.filtered[idx]
}

func (p *pickerState) Toggle() bool {
	it := p.current()
	if it == nil || it.IsDir {
		return false
	}
	if p.selected[it.ID] {
		delete(p.selected, it.ID)
	} else {
		p.selected[it.ID] = true
	}
	return true
}

// SelectedPaths returns toggled files in listing order.
func (p *pickerState) SelectedPaths() []string {
	if p == nil || len(p.selected) == 0 {
		return nil
	}
	ids := make([]int, 0, len(p.selected))
	for id := range p.selected {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.items[id].Path)
	}
	return out
}

func (p *pickerState) HandleKey(keyName string) pickerResult {
	if p == nil {
		return pickerResult{Action: pickerActionNone}
	}

	switch keyName {
	case "up":
		before := p.cursor
		p.CursorUp()
		if p.cursor != before {
			return pickerResult{Action: pickerActionMoved}
		}
		return pickerResult{Action: pickerActionNone}
	case "down":
		before := p.cursor
		p.CursorDown()
		if p.cursor != before {
			return pickerResult{Action: pickerActionMoved}
		}
		return pickerResult{Action: pickerActionNone}
	case "space", " ":
		if p.Toggle() {
			return pickerResult{Action: pickerActionToggled, Paths: p.SelectedPaths()}
		}
		return pickerResult{Action: pickerActionNone}
	case "enter":
		if paths := p.SelectedPaths(); len(paths) > 0 {
			return pickerResult{Action: pickerActionSubmitted, Paths: paths}
		}
		it := p.current()
		switch {
		case it == nil:
			return pickerResult{Action: pickerActionNone}
		case it.IsDir:
			return pickerResult{Action: pickerActionEnterDir, Dir: it.Path}
		default:
			return pickerResult{Action: pickerActionSubmitted, Paths: []string{it.Path}}
		}
	case "esc":
		return pickerResult{Action: pickerActionCancelled}
	case "backspace":
		if q := []rune(p.query); len(q) > 0 {
			p.SetQuery(string(q[:len(q)-1]))
		}
		return pickerResult{Action: pickerActionNone}
	default:
		if isPrintableKey(keyName) {
			p.SetQuery(p.query + keyName)
		}
		return pickerResult{Action: pickerActionNone}
	}
}

type pickerSource []pickerItem

func (s pickerSource) String(i int) string { return s[i].Label }
func (s pickerSource) Len() int            { return len(s) }

func (p *pickerState) rebuildFiltered() {
	q := strings.TrimSpace(p.query)
	p.hint = ""

	var scored []scoredPickerItem
	if q == "" {
		scored = make([]scoredPickerItem, len(p.items))
		for i, it := range p.items {
			scored[i] = scoredPickerItem{item: it}
		}
	} else {
		for _, m := range fuzzy.FindFrom(q, pickerSource(p.items)) {
			scored = append(scored, scoredPickerItem{item: p.items[m.Index], score: m.Score})
		}
	}

	bySection := make(map[string][]scoredPickerItem)
	for _, s := range scored {
		bySection[s.item.Section] = append(bySection[s.item.Section], s)
	}
	out := make([]pickerItem, 0, len(scored))
	for _, section := range p.sectionOrder() {
		group := bySection[section]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].score != group[j].score {
				return group[i].score > group[j].score
			}
			return group[i].item.ID < group[j].item.ID
		})
		for _, s := range group {
			out = append(out, s.item)
		}
	}
	p.filtered = out
	if q != "" && len(out) == 0 {
		p.hint = p.nearest(q)
	}

	if p.cursor > len(p.filtered)-1 {
		p.cursor = len(p.filtered) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

// nearest suggests the file label closest to q by edit distance.
func (p *pickerState) nearest(q string) string {
	best, bestDist := "", -1
	ql := strings.ToLower(q)
	for _, it := range p.items {
		if it.IsDir {
			continue
		}
		d := levenshtein.ComputeDistance(ql, strings.ToLower(it.Label))
		if bestDist < 0 || d < bestDist {
			best, bestDist = it.Label, d
		}
	}
	return best
}

func (p *pickerState) sectionOrder() []string {
	seen := make(map[string]bool)
	out := make([]string, 0, 3)
	for i := range p.items {
		section := p.items[i].Section
		if seen[section] {
			continue
		}
		seen[section] = true
		out = append(out, section)
	}
	return out
}

func renderPicker(p *pickerState, width, height int) string {
	if p == nil {
		return ""
	}
	var lines []string
	lines = append(lines, view.TitleStyle.Render("Open PDFs")+"  "+view.MutedStyle.Render(p.dir))

	query := strings.TrimSpace(p.query)
	searchValue := view.MutedStyle.Render("(type to filter)")
	if query != "" {
		searchValue = view.CursorStyle.Render(query)
	}
	lines = append(lines, "Filter: "+searchValue)

	if len(p.filtered) == 0 {
		msg := "no matches"
		if len(p.items) == 0 {
			msg = "empty folder"
		}
		if p.hint != "" {
			msg += `, did you mean "` + p.hint + `"?`
		}
		lines = append(lines, view.MutedStyle.Render(msg))
	}

	// Keep the cursor inside a fixed window.
	visible := len(p.filtered)
	if height > 0 {
		visible = max(3, height-8)
	}
	start := 0
	if p.cursor >= visible {
		start = p.cursor - visible + 1
	}
	end := min(len(p.filtered), start+visible)

	section := ""
	for i := start; i < end; i++ {
		it := p.filtered[i]
		if it.Section != section {
			section = it.Section
			lines = append(lines, view.MutedStyle.Render(section+":"))
		}
		mark := "    "
		if !it.IsDir {
			mark = "[ ] "
			if p.selected[it.ID] {
				mark = "[x] "
			}
		}
		row := mark + view.Sanitize(it.Label)
		if it.Meta != "" {
			row += view.MutedStyle.Render(" - " + it.Meta)
		}
		if i == p.cursor {
			row = view.CursorStyle.Render("> ") + row
		} else {
			row = "  " + row
		}
		lines = append(lines, row)
	}
	if n := len(p.selected); n > 0 {
		lines = append(lines, view.MutedStyle.Render(pluralize(n, "file", "files")+" selected"))
	}

	content := strings.Join(lines, "\n")
	if width > 0 {
		content = lipgloss.NewStyle().Width(max(20, width-6)).Render(content)
	}
	return view.ModalStyle.Render(content)
}

func isPrintableKey(keyName string) bool {
	r := []rune(keyName)
	return len(r) == 1 && r[0] >= 32 && r[0] != 127
}
