package review

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ademelnik/jobsieve/internal/model"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type loadDoneMsg struct {
	vacancies []model.Vacancy
	err       error
}

type spinnerTickMsg struct{}

type loaderModel struct {
	label  string
	loadFn func() ([]model.Vacancy, error)
	frame  int
	result []model.Vacancy
	err    error
	done   bool
}

func (m loaderModel) Init() tea.Cmd {
	return tea.Batch(m.doLoad(), m.tick())
}

func (m loaderModel) doLoad() tea.Cmd {
	loadFn := m.loadFn
	return func() tea.Msg {
		vacancies, err := loadFn()
		return loadDoneMsg{vacancies: vacancies, err: err}
	}
}

func (m loaderModel) tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadDoneMsg:
		m.result = msg.vacancies
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case spinnerTickMsg:
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, m.tick()
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.err = fmt.Errorf("cancelled")
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m loaderModel) View() string {
	if m.done {
		return ""
	}
	spinner := lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Render(spinnerFrames[m.frame])
	return fmt.Sprintf("%s Loading %s vacancies...\n", spinner, m.label)
}

// RunLoader shows a spinner while loading vacancies. It renders inline (no alt screen).
func RunLoader(label string, loadFn func() ([]model.Vacancy, error)) ([]model.Vacancy, error) {
	m := loaderModel{
		label:  label,
		loadFn: loadFn,
	}
	p := tea.NewProgram(m)
	result, err := p.Run()
	if err != nil {
		return nil, err
	}
	final := result.(loaderModel)
	return final.result, final.err
}
