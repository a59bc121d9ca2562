package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"heyrag/internal/models"
	"heyrag/internal/styles"
)

func (m *Model) View() string {
	if m.OpenModal != ModalNone {
		return m.renderModal()
	}

	chat := m.Viewport.View()
	input := styles.InputBoxStyle.Render(m.TextInput.View())
	status := m.renderStatusBar()

	return lipgloss.JoinVertical(lipgloss.Left, chat, input, status)
}

func (m *Model) renderStatusBar() string {
	project := "aucun projet"
	if p := m.SelectedProject(); p != nil {
		project = p.Name
	}
	model := m.Registry.Current()
	if model == "" {
		model = "aucun modèle"
	}

	parts := []string{
		styles.StatusProjectStyle.Render("▪ " + project),
		styles.StatusModelStyle.Render("▪ " + model),
	}

	switch m.VoiceState {
	case models.VoiceRecording:
		parts = append(parts, styles.VoiceStyle.Render("● enregistrement (ctrl+v pour envoyer, esc pour annuler)"))
	case models.VoiceProcessing:
		parts = append(parts, styles.VoiceStyle.Render("◌ traitement..."))
	case models.VoicePlaying:
		parts = append(parts, styles.VoiceStyle.Render("▶ lecture"))
	default:
		parts = append(parts, styles.InfoStyle("ctrl+s: aide"))
	}

	return lipgloss.NewStyle().PaddingLeft(1).Render(strings.Join(parts, "  "))
}

func (m *Model) renderModal() string {
	var title string
	var lines []string
	hint := "↑/↓: naviguer • Entrée: choisir • Esc: fermer"

	switch m.OpenModal {
	case ModalProjects:
		title = "Projets"
		hint = "↑/↓ • Entrée: choisir • d: supprimer • Esc: fermer"
		if len(m.Projects) == 0 {
			lines = append(lines, styles.InfoStyle("Aucun projet, créez-en un avec /project <nom>"))
		}
		for i, p := range m.Projects {
			label := p.Name
			if p.ID == m.SelectedProjectID {
				label = "● " + label
			} else {
				label = "  " + label
			}
			lines = append(lines, m.modalRow(label, i))
		}

	case ModalHistory:
		title = "Conversations"
		hint = "↑/↓ • Entrée: ouvrir • d: supprimer • Esc: fermer"
		if len(m.Conversations) == 0 {
			lines = append(lines, styles.InfoStyle("Aucune conversation pour ce projet"))
		}
		lo, hi := listWindow(m.SelectedIdx, len(m.Conversations))
		for i := lo; i < hi; i++ {
			lines = append(lines, m.modalRow(truncatePreview(m.Conversations[i].Title, styles.ContentWidth-4), i))
		}

	case ModalModels:
		title = "Modèles"
		for i, info := range m.Registry.Models() {
			label := fmt.Sprintf("%s (%d ctx)", info.Name, info.NumCtx)
			if info.Name == m.Registry.Current() {
				label = "● " + label
			} else {
				label = "  " + label
			}
			lines = append(lines, m.modalRow(label, i))
		}

	case ModalDocuments:
		title = "Documents"
		hint = "↑/↓ • d: supprimer • /upload <fichier> pour ajouter • Esc: fermer"
		if len(m.Documents) == 0 {
			lines = append(lines, styles.InfoStyle("Aucun document indexé"))
		}
		lo, hi := listWindow(m.SelectedIdx, len(m.Documents))
		for i := lo; i < hi; i++ {
			lines = append(lines, m.modalRow(truncatePreview(m.Documents[i].Filename, styles.ContentWidth-4), i))
		}

	case ModalSettings:
		title = "Paramètres de génération"
		hint = "↑/↓: champ • ←/→: ajuster • Esc: fermer"
		opts := m.Registry.Options()
		rows := []string{
			fmt.Sprintf("temperature     %.1f", opts.Temperature),
			fmt.Sprintf("top_p           %.2f", opts.TopP),
			fmt.Sprintf("repeat_penalty  %.1f", opts.RepeatPenalty),
			fmt.Sprintf("num_ctx         %d (max %d)", opts.NumCtx, m.Registry.MaxCtx()),
		}
		for i, row := range rows {
			lines = append(lines, m.settingsRow(row, i))
		}
		if p := m.SelectedProject(); p != nil && p.SystemPrompt != "" {
			lines = append(lines, "")
			lines = append(lines, styles.InfoStyle("Prompt système (/prompt pour modifier):"))
			lines = append(lines, styles.InfoStyle(truncatePreview(p.SystemPrompt, styles.ContentWidth-2)))
		}

	case ModalShortcuts:
		title = "Raccourcis"
		hint = "Une touche pour fermer"
		for _, row := range []string{
			"ctrl+p   projets",
			"ctrl+h   conversations",
			"ctrl+b   modèles",
			"ctrl+d   documents",
			"ctrl+o   paramètres",
			"ctrl+n   nouvelle conversation",
			"ctrl+v   dicter / envoyer la voix",
			"esc      stop / annuler / quitter",
			"/clear /retry /upload /project /prompt /rename",
		} {
			lines = append(lines, styles.ModalItemStyle.Render(row))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.ModalTitleStyle.Render(title),
		strings.Join(lines, "\n"),
		lipgloss.NewStyle().Foreground(styles.HintColor).PaddingTop(1).Render(hint),
	)
	modal := styles.ModalStyle.Render(content)
	return lipgloss.Place(m.WindowWidth, m.WindowHeight, lipgloss.Center, lipgloss.Center, modal)
}

// listWindow keeps long lists scrollable by rendering at most
// ModalListLimit rows centered on the selection.
func listWindow(selected, n int) (lo, hi int) {
	if n <= ModalListLimit {
		return 0, n
	}
	lo = selected - ModalListLimit/2
	if lo < 0 {
		lo = 0
	}
	hi = lo + ModalListLimit
	if hi > n {
		hi = n
		lo = hi - ModalListLimit
	}
	return lo, hi
}

func (m *Model) modalRow(label string, idx int) string {
	if idx == m.SelectedIdx {
		return styles.ModalSelectedStyle.Render(label)
	}
	return styles.ModalItemStyle.Render(label)
}

func (m *Model) settingsRow(label string, idx int) string {
	if idx == m.SettingsIdx {
		return styles.ModalSelectedStyle.Render(label)
	}
	return styles.ModalItemStyle.Render(label)
}
