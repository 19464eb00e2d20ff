package review

import (
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ademelnik/jobsieve/internal/model"
)

// Lines per vacancy item in the list view (title + subtitle + blank separator).
const itemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	itemTitleStyle = lipgloss.NewStyle().
			Bold(true)

	itemSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedItemTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")). // bright white
				Background(lipgloss.Color("24"))  // dark blue bg

	selectedItemSubtitleStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("252")).
					Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(16)

	detailValueStyle = lipgloss.NewStyle()

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	acceptedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	rejectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
)

// verdictDoneMsg is sent when an async verdict write completes.
type verdictDoneMsg struct {
	vacancy model.Vacancy
	err     error
}

type reviewModel struct {
	store   model.VacancyStore
	pending []model.Vacancy // awaiting a verdict
	judged  []model.Vacancy // verdicts recorded this session

	leftViewport  viewport.Model
	rightViewport viewport.Model
	activePane    int // 0=pending, 1=judged
	leftCursor    int
	rightCursor   int
	width         int
	height        int
	ready         bool

	// Non-delivered buckets are browse-only.
	canJudge bool

	view           viewState
	detailVacancy  model.Vacancy
	detailViewport viewport.Model
	showLetter     bool

	verdictPending bool
	verdictError   string

	wantQuit bool
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case verdictDoneMsg:
		m.verdictPending = false
		if msg.err != nil {
			m.verdictError = fmt.Sprintf("verdict failed: %v", msg.err)
			if m.view == viewDetail {
				m.detailViewport.SetContent(m.renderDetail())
			}
			return m, nil
		}
		m.verdictError = ""
		m.moveToJudged(msg.vacancy)
		if m.view == viewDetail {
			// Nothing left to look at; fall back to the list.
			m.view = viewList
		}
		m.recalcContent()
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m reviewModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "b":
		m.wantQuit = false
		return m, tea.Quit
	case "tab", "left", "right":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		return m.openDetailView()
	case "a":
		return m.judgeSelected(model.StatusUserAccepted)
	case "x":
		return m.judgeSelected(model.StatusUserRejected)
	}

	// Forward other keys (pgup/pgdn/home/end) to the active viewport.
	var cmd tea.Cmd
	if m.activePane == 0 {
		m.leftViewport, cmd = m.leftViewport.Update(msg)
	} else {
		m.rightViewport, cmd = m.rightViewport.Update(msg)
	}
	return m, cmd
}

func (m reviewModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		openURL(m.detailVacancy.URL)
		return m, nil
	case "l":
		if letterOf(m.detailVacancy) != "" {
			m.showLetter = !m.showLetter
			m.detailViewport.SetContent(m.renderDetail())
			m.detailViewport.SetYOffset(0)
		}
		return m, nil
	case "a":
		return m.judgeVacancy(m.detailVacancy, model.StatusUserAccepted)
	case "x":
		return m.judgeVacancy(m.detailVacancy, model.StatusUserRejected)
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m reviewModel) judgeSelected(verdict model.Status) (tea.Model, tea.Cmd) {
	if m.activePane != 0 || len(m.pending) == 0 {
		return m, nil
	}
	return m.judgeVacancy(m.pending[m.leftCursor], verdict)
}

func (m reviewModel) judgeVacancy(v model.Vacancy, verdict model.Status) (tea.Model, tea.Cmd) {
	if !m.canJudge || m.verdictPending {
		return m, nil
	}
	m.verdictPending = true
	m.verdictError = ""
	if m.view == viewDetail {
		m.detailViewport.SetContent(m.renderDetail())
	}
	return m, m.verdictCmd(v.ID, verdict)
}

// verdictCmd reloads the vacancy so a concurrent writer's state is not
// clobbered, then records the verdict through the transition gate.
func (m reviewModel) verdictCmd(id string, verdict model.Status) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		fresh, err := store.Load(id)
		if err != nil {
			return verdictDoneMsg{err: err}
		}
		if err := fresh.Transition(verdict); err != nil {
			return verdictDoneMsg{err: err}
		}
		if err := store.Save(fresh); err != nil {
			return verdictDoneMsg{err: err}
		}
		return verdictDoneMsg{vacancy: *fresh}
	}
}

func (m *reviewModel) moveToJudged(v model.Vacancy) {
	for i := range m.pending {
		if m.pending[i].ID == v.ID {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			break
		}
	}
	m.judged = append([]model.Vacancy{v}, m.judged...)
	if m.leftCursor >= len(m.pending) && m.leftCursor > 0 {
		m.leftCursor--
	}
}

func (m *reviewModel) moveCursor(delta int) {
	if m.activePane == 0 {
		m.leftCursor = clamp(m.leftCursor+delta, 0, max(len(m.pending)-1, 0))
	} else {
		m.rightCursor = clamp(m.rightCursor+delta, 0, max(len(m.judged)-1, 0))
	}
}

func (m *reviewModel) ensureCursorVisible() {
	var vp *viewport.Model
	var cursor int
	if m.activePane == 0 {
		vp = &m.leftViewport
		cursor = m.leftCursor
	} else {
		vp = &m.rightViewport
		cursor = m.rightCursor
	}

	cursorTop := cursor * itemHeight
	cursorBottom := cursorTop + itemHeight - 1

	if cursorTop < vp.YOffset {
		vp.SetYOffset(cursorTop)
	} else if cursorBottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(cursorBottom - vp.Height + 1)
	}
}

func (m reviewModel) openDetailView() (tea.Model, tea.Cmd) {
	vacancies := m.activeVacancies()
	cursor := m.activeCursor()
	if len(vacancies) == 0 {
		return m, nil
	}

	m.view = viewDetail
	m.detailVacancy = vacancies[cursor]
	m.showLetter = false
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

func (m reviewModel) activeVacancies() []model.Vacancy {
	if m.activePane == 0 {
		return m.pending
	}
	return m.judged
}

func (m reviewModel) activeCursor() int {
	if m.activePane == 0 {
		return m.leftCursor
	}
	return m.rightCursor
}

func (m *reviewModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	paneWidth := max((m.width-5)/2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.leftViewport = viewport.New(paneWidth, paneHeight)
		m.rightViewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.leftViewport.Width = paneWidth
		m.leftViewport.Height = paneHeight
		m.rightViewport.Width = paneWidth
		m.rightViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *reviewModel) recalcContent() {
	m.leftViewport.SetContent(renderVacancies(m.pending, m.leftCursor, m.activePane == 0))
	m.rightViewport.SetContent(renderVacancies(m.judged, m.rightCursor, m.activePane == 1))
}

func (m reviewModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.view == viewDetail {
		return m.viewDetail()
	}

	return m.viewList()
}

func (m reviewModel) viewList() string {
	paneWidth := m.leftViewport.Width

	leftHeader := fmt.Sprintf(" Pending (%d)", len(m.pending))
	rightHeader := fmt.Sprintf(" Judged this session (%d)", len(m.judged))

	var leftHeaderRendered, rightHeaderRendered string
	var leftBorder, rightBorder lipgloss.Style

	if m.activePane == 0 {
		leftHeaderRendered = activeHeaderStyle.Render(leftHeader)
		rightHeaderRendered = inactiveHeaderStyle.Render(rightHeader)
		leftBorder = activeBorderStyle.Width(paneWidth)
		rightBorder = inactiveBorderStyle.Width(paneWidth)
	} else {
		leftHeaderRendered = inactiveHeaderStyle.Render(leftHeader)
		rightHeaderRendered = activeHeaderStyle.Render(rightHeader)
		leftBorder = inactiveBorderStyle.Width(paneWidth)
		rightBorder = activeBorderStyle.Width(paneWidth)
	}

	leftPane := leftBorder.Render(m.leftViewport.View())
	rightPane := rightBorder.Render(m.rightViewport.View())

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(paneWidth+2).Render(leftHeaderRendered),
		" ",
		lipgloss.NewStyle().Width(paneWidth+2).Render(rightHeaderRendered),
	)

	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, " ", rightPane)

	statusText := fmt.Sprintf(" %d pending | %d judged    ←/→/Tab switch  ↑/↓ cursor  Enter detail  Esc back  q quit",
		len(m.pending), len(m.judged))
	if m.canJudge {
		statusText = fmt.Sprintf(" %d pending | %d judged    a accept  x reject  ↑/↓ cursor  Enter detail  q quit",
			len(m.pending), len(m.judged))
	}
	if m.verdictError != "" {
		statusText = " " + m.verdictError
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m reviewModel) viewDetail() string {
	title := detailTitleStyle.Render("Vacancy Details")
	if m.verdictPending {
		title += "  (saving verdict...)"
	}

	border := activeBorderStyle.Width(m.width - 2)
	content := border.Render(m.detailViewport.View())

	statusText := " o open URL  esc/backspace back  ↑/↓ scroll  q quit"
	if m.canJudge {
		statusText = " a accept  x reject  o open URL  esc back  ↑/↓ scroll  q quit"
	}
	if letterOf(m.detailVacancy) != "" {
		statusText += "  l letter"
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return title + "\n" + content + "\n" + statusBar
}

func (m reviewModel) renderDetail() string {
	v := m.detailVacancy
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}

	addField("Title", v.Title)
	addField("Employer", v.Employer)
	addField("Location", v.Location)
	addField("Vacancy ID", v.ID)
	addField("Status", renderStatus(v.Status))

	b.WriteByte('\n')
	addField("Posted At", v.PostedAt.Format("2006-01-02 15:04"))
	if v.DeliveredAt != nil {
		addField("Delivered At", v.DeliveredAt.Format("2006-01-02 15:04"))
	}

	b.WriteByte('\n')
	addField("URL", v.URL)

	wrapWidth := max(m.width-8, 20)
	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-len(label), 3))
		return dividerStyle.Render(label + fill)
	}

	if c := v.Classification; c != nil {
		b.WriteByte('\n')
		b.WriteString(divider("── Classification ") + "\n\n")
		addField("Score", fmt.Sprintf("%.2f", c.Score))
		addField("Reason", c.Reason)
		if len(c.Tags) > 0 {
			addField("Tags", strings.Join(c.Tags, ", "))
		}
	}

	if m.verdictError != "" {
		b.WriteByte('\n')
		b.WriteString(errorStyle.Render("⚠ "+m.verdictError) + "\n")
	}

	if letter := letterOf(v); letter != "" {
		b.WriteByte('\n')
		if m.showLetter {
			b.WriteString(divider("── Cover Letter ") + "\n\n")
			b.WriteString(bodyStyle.Render(wordWrap(letter, wrapWidth)) + "\n")
		} else {
			b.WriteString(hintStyle.Render("  press l to read the cover letter") + "\n")
		}
	}

	if v.Description != "" {
		b.WriteByte('\n')
		b.WriteString(divider("── Description ") + "\n\n")
		b.WriteString(bodyStyle.Render(wordWrap(v.Description, wrapWidth)) + "\n")
	}

	return b.String()
}

func renderStatus(s model.Status) string {
	switch s {
	case model.StatusUserAccepted:
		return acceptedStyle.Render(string(s))
	case model.StatusUserRejected:
		return rejectedStyle.Render(string(s))
	default:
		return string(s)
	}
}

func letterOf(v model.Vacancy) string {
	if v.Classification == nil {
		return ""
	}
	return v.Classification.Letter
}

func renderVacancies(vacancies []model.Vacancy, cursor int, isActive bool) string {
	if len(vacancies) == 0 {
		return "  (no vacancies)"
	}

	var b strings.Builder
	for i, v := range vacancies {
		isSelected := isActive && i == cursor

		titleSt := itemTitleStyle
		subtitleSt := itemSubtitleStyle
		prefix := "  "
		if isSelected {
			titleSt = selectedItemTitleStyle
			subtitleSt = selectedItemSubtitleStyle
			prefix = "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(v.Title))
		b.WriteByte('\n')

		subtitle := fmt.Sprintf("%s · %s", v.Employer, v.PostedAt.Format("2006-01-02"))
		if v.Classification != nil {
			subtitle += fmt.Sprintf(" · %.2f", v.Classification.Score)
		}
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(subtitle))
		b.WriteByte('\n')

		if i < len(vacancies)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func sortByDeliveredAt(vacancies []model.Vacancy) {
	sort.Slice(vacancies, func(i, j int) bool {
		ti, tj := deliveredOrPosted(vacancies[i]), deliveredOrPosted(vacancies[j])
		return ti.After(tj)
	})
}

func deliveredOrPosted(v model.Vacancy) time.Time {
	if v.DeliveredAt != nil {
		return *v.DeliveredAt
	}
	return v.PostedAt
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// RunReviewTUI launches the interactive review TUI over the given vacancies.
// Verdicts are enabled only when canJudge is true (the delivered bucket).
// Returns wantQuit=true if the user pressed q/ctrl+c, false if they pressed
// esc to return to the picker.
func RunReviewTUI(store model.VacancyStore, vacancies []model.Vacancy, canJudge bool) (bool, error) {
	sortByDeliveredAt(vacancies)

	m := reviewModel{
		store:    store,
		pending:  vacancies,
		canJudge: canJudge,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	final := result.(reviewModel)
	return final.wantQuit, nil
}
