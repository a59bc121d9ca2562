package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"heyrag/internal/models"
	"heyrag/internal/styles"
)

// UpdateViewport rebuilds the transcript from the session snapshot and
// scrolls to the bottom.
func (m *Model) UpdateViewport() {
	snap := m.Session.Snapshot()

	if len(snap.Messages) == 0 && snap.Err == "" && m.StatusLine == "" {
		m.Viewport.SetContent(m.welcomeScreen())
		m.Viewport.GotoTop()
		return
	}

	var blocks []string
	for i, msg := range snap.Messages {
		switch msg.Role {
		case models.RoleUser:
			blocks = append(blocks, m.formatUserMessage(msg.Content))
		case models.RoleAssistant:
			streamingTail := snap.Streaming && i == len(snap.Messages)-1
			blocks = append(blocks, m.formatAssistantMessage(msg.Content, streamingTail))
		}
	}

	if len(snap.Sources) > 0 {
		blocks = append(blocks, m.formatSources(snap.Sources))
	}
	if snap.Err != "" {
		blocks = append(blocks, styles.ErrorStyle.Render("Erreur: "+snap.Err+"  (/retry pour réessayer)"))
	}
	if m.StatusLine != "" {
		blocks = append(blocks, styles.InfoStyle(m.StatusLine))
	}

	m.Viewport.SetContent(strings.Join(blocks, "\n\n"))
	m.Viewport.GotoBottom()
}

func (m *Model) formatUserMessage(content string) string {
	label := styles.UserLabelStyle.Render("Vous")
	body := styles.UserMsgStyle.Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, label, body)
}

func (m *Model) formatAssistantMessage(content string, streamingTail bool) string {
	label := styles.AiLabelStyle.Render("Assistant")

	display := content
	if m.Renderer != nil && content != "" && !streamingTail {
		if rendered, err := m.Renderer.Render(content); err == nil {
			display = strings.TrimSpace(rendered)
		}
	}
	if streamingTail {
		display += m.Spinner.View()
	}
	body := styles.AiMsgStyle.Render(display)
	return lipgloss.JoinVertical(lipgloss.Left, label, body)
}

func (m *Model) formatSources(sources []models.SourceRef) string {
	var lines []string
	lines = append(lines, styles.SourceIconStyle.Render("Sources"))
	for _, s := range sources {
		lines = append(lines, styles.SourceStyle.Render(fmt.Sprintf("%s · fragment %d", s.Filename, s.ChunkIndex)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) welcomeScreen() string {
	art := styles.WelcomeArtStyle.Render("heyrag")
	sub := styles.WelcomeSubtitleStyle.Render("Interrogez vos documents · ctrl+p projets · ctrl+v voix · ctrl+s aide")
	block := lipgloss.JoinVertical(lipgloss.Center, art, "", sub)
	return lipgloss.Place(m.Viewport.Width, m.Viewport.Height, lipgloss.Center, lipgloss.Center, block)
}

func (m *Model) updateInputLayout() {
	if m.WindowWidth == 0 || m.WindowHeight == 0 {
		return
	}

	inputWidth := m.WindowWidth - 6
	if inputWidth < 20 {
		inputWidth = 20
	}
	contentWidth := inputWidth - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	maxInputHeight := 6
	lineCount := wrappedLineCount(m.TextInput.Value(), contentWidth)
	if lineCount < 1 {
		lineCount = 1
	}
	if lineCount > maxInputHeight {
		lineCount = maxInputHeight
	}

	m.TextInput.MaxHeight = maxInputHeight
	m.TextInput.SetWidth(inputWidth)
	m.TextInput.SetHeight(lineCount)

	inputBoxHeight := m.TextInput.Height() + 2
	reserved := inputBoxHeight + 5
	viewportHeight := m.WindowHeight - reserved
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	m.Viewport.Height = viewportHeight
}

// wrappedLineCount estimates how many rows the textarea needs for value.
func wrappedLineCount(value string, width int) int {
	if value == "" {
		return 1
	}
	count := 0
	for _, line := range strings.Split(value, "\n") {
		w := runewidth.StringWidth(line)
		rows := w / width
		if w%width != 0 || w == 0 {
			rows++
		}
		count += rows
	}
	return count
}

// truncatePreview shortens a title for list rendering.
func truncatePreview(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max-1, "…")
}
