package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"songtldr/pkg/bus"
	"songtldr/pkg/pipeline"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	consoleChannel = "console"
	consoleChatID  = int64(1)
)

type mode int

const (
	modeInteractive mode = iota
	modeOneShot
)

type role int

const (
	roleQuery role = iota
	roleStatus
	roleSummary
	roleError
)

// entry is one line of the transcript. Replies keep the messenger id so a
// later delete can remove them.
type entry struct {
	id    int
	role  role
	text  string
	reply bus.Reply
}

type replyMsg struct {
	id    int
	reply bus.Reply
}

type deleteMsg struct {
	id int
}

type requestDoneMsg struct {
	result pipeline.Result
}

type bootTickMsg struct{}

type model struct {
	ctx          context.Context
	handle       HandleFunc
	mode         mode
	oneShotInput string

	theme      theme
	spinner    spinner.Model
	input      textinput.Model
	viewport   viewport.Model
	entries    []entry
	width      int
	height     int
	isReady    bool
	isLoading  bool
	lastKind   pipeline.Kind
	booting    bool
	bootStep   int
	followLog  bool
	runtime    RuntimeInfo
	messageID  int
	requests   int
	usageIn    int64
	usageOut   int64
	usageTotal int64
}

func newModel(ctx context.Context, handle HandleFunc, runMode mode, query string, info RuntimeInfo) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("176"))

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Song name, e.g. Bohemian Rhapsody"
	in.Focus()
	in.CharLimit = 0

	vp := viewport.New(80, 12)

	return &model{
		ctx:          ctx,
		handle:       handle,
		mode:         runMode,
		oneShotInput: strings.TrimSpace(query),
		theme:        defaultTheme(),
		spinner:      spin,
		input:        in,
		viewport:     vp,
		width:        100,
		height:       28,
		booting:      runMode == modeInteractive,
		followLog:    true,
		runtime:      info,
	}
}

func (m *model) Init() tea.Cmd {
	if m.mode == modeOneShot && m.oneShotInput != "" {
		return m.submit(m.oneShotInput)
	}

	return bootTickCmd()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case bootTickMsg:
		if !m.booting {
			return m, nil
		}

		m.bootStep++
		if m.bootStep < len(bootScriptLines())+1 {
			return m, bootTickCmd()
		}

		m.booting = false
		return m, textinput.Blink
	case tea.MouseMsg:
		if m.mode == modeInteractive && !m.booting {
			m.handleViewportMouse(typed)
		}
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}

		if m.booting || m.mode == modeOneShot {
			return m, nil
		}

		if handled := m.handleViewportKey(typed); handled {
			return m, nil
		}

		if typed.String() == "enter" {
			if m.isLoading {
				return m, nil
			}

			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				return m, nil
			}
			if isExitCommand(query) {
				return m, tea.Quit
			}

			m.input.SetValue("")
			return m, m.submit(query)
		}
	case replyMsg:
		m.entries = append(m.entries, entryForReply(typed.id, typed.reply))
		m.refreshViewport(false)
		return m, nil
	case deleteMsg:
		m.entries = slices.DeleteFunc(m.entries, func(e entry) bool {
			return e.id != 0 && e.id == typed.id
		})
		m.refreshViewport(false)
		return m, nil
	case requestDoneMsg:
		m.isLoading = false
		m.lastKind = typed.result.Kind
		if usage := typed.result.Summary.Metadata.Usage; usage != nil {
			m.usageIn += usage.InputTokens
			m.usageOut += usage.OutputTokens
			m.usageTotal += usage.TotalTokens
		}
		m.refreshViewport(false)
		if m.mode == modeOneShot {
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		if !m.isLoading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(typed)
		if m.hasStatus() {
			m.refreshViewport(false)
		}
		return m, cmd
	}

	if m.mode == modeInteractive {
		m.input, cmd = m.input.Update(msg)
	}

	return m, cmd
}

// submit records the query and starts it in the background. The pipeline
// reports back through the Messenger and a final requestDoneMsg.
func (m *model) submit(query string) tea.Cmd {
	m.messageID++
	m.requests++
	m.isLoading = true
	m.lastKind = ""
	m.followLog = true
	m.entries = append(m.entries, entry{role: roleQuery, text: query})
	m.refreshViewport(true)

	inbound := bus.InboundMessage{
		Channel:     consoleChannel,
		ChatID:      consoleChatID,
		SenderID:    consoleChatID,
		DisplayName: "console",
		MessageID:   m.messageID,
		Text:        query,
		SessionKey:  fmt.Sprintf("%s:%d", consoleChannel, consoleChatID),
	}

	return tea.Batch(m.spinner.Tick, handleCmd(m.ctx, m.handle, inbound))
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}
	if m.mode == modeOneShot {
		return m.oneShotView()
	}
	if m.booting {
		return m.bootView()
	}

	header := m.theme.header.Width(m.width - 2).Render("🎵 songtldr console")
	meta := m.theme.headerMeta.Render(fmt.Sprintf(
		"lyrics:%s · summarizer:%s · model:%s · requests:%d · tokens(in/out/total):%d/%d/%d",
		displayOrNA(m.runtime.LyricsProvider),
		displayOrNA(m.runtime.SummarizerProvider),
		displayOrNA(m.runtime.Model),
		m.requests,
		m.usageIn,
		m.usageOut,
		m.usageTotal,
	))
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("═", max(8, m.width-2)))

	status := m.theme.status.Render("💡 Enter summarise  ·  PgUp/PgDn scroll  ·  End jump latest  ·  🛑 Ctrl+C/Esc quit")
	switch {
	case m.isLoading:
		status = m.theme.statusBusy.Render(fmt.Sprintf("%s looking up lyrics...", m.spinner.View()))
	case failedKind(m.lastKind):
		status = m.theme.statusErr.Render("🚨 last request ended with " + string(m.lastKind))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		meta,
		line,
		m.theme.viewport.Width(m.width-2).Render(m.viewport.View()),
		status,
		m.theme.inputLabel.Render("🎧 Song")+" "+m.theme.hint.Render("(type /exit, quit, or :q)"),
		m.theme.input.Width(m.width-2).Render(m.input.View()),
	)
}

func (m *model) resizeComponents() {
	w := max(50, m.width-6)
	h := m.height - 10
	if m.mode == modeOneShot {
		h = m.height - 6
	}
	h = max(8, h)

	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 2
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset
	sections := make([]string, 0, len(m.entries))
	for _, item := range m.entries {
		sections = append(sections, m.renderEntry(item, m.viewport.Width))
	}

	m.viewport.SetContent(strings.Join(sections, "\n\n"))
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := max(0, m.viewport.TotalLineCount()-m.viewport.Height)
	m.viewport.SetYOffset(min(previousOffset, maxOffset))
}

func (m *model) renderEntry(item entry, width int) string {
	switch item.role {
	case roleQuery:
		return m.renderCard(
			m.theme.queryTitle.Render("▛▚ [ 🎧 ] ▞▜"),
			m.theme.queryBox.Width(width).Render(item.text),
		)
	case roleStatus:
		return m.theme.statusBusy.Render(m.spinner.View() + " " + item.reply.Text())
	case roleError:
		title, body := "ERROR", item.reply.Title
		if item.reply.Body != "" {
			title, body = item.reply.Title, m.replyBody(item.reply)
		}
		return m.renderCard(
			m.theme.errorTitle.Render("▛▚ [ "+title+" ] ▞▜"),
			m.theme.errorBox.Width(width).Render(body),
		)
	default:
		body := m.replyBody(item.reply)
		if body == "" {
			body = item.reply.Title
		}
		return m.renderCard(
			m.theme.summaryTitle.Render("▛▚ [ "+item.reply.Title+" ] ▞▜"),
			m.theme.summaryBox.Width(width).Render(body),
		)
	}
}

func (m *model) replyBody(reply bus.Reply) string {
	body := strings.TrimSpace(reply.Body)
	if body == "" {
		return ""
	}
	if reply.ItalicBody {
		return m.theme.italic.Render(body)
	}

	return body
}

func (m *model) renderCard(title string, body string) string {
	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

func (m *model) hasStatus() bool {
	return slices.ContainsFunc(m.entries, func(e entry) bool { return e.role == roleStatus })
}

func (m *model) oneShotView() string {
	contentWidth := max(40, m.width-6)
	parts := make([]string, 0, len(m.entries)+1)
	for _, item := range m.entries {
		parts = append(parts, m.renderEntry(item, contentWidth))
	}

	if m.isLoading && !m.hasStatus() {
		parts = append(parts, m.theme.statusBusy.Render(fmt.Sprintf("%s looking up lyrics...", m.spinner.View())))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n\n"
}

func (m *model) bootView() string {
	header := m.theme.header.Width(m.width - 2).Render("🎵 songtldr console")
	meta := m.theme.headerMeta.Render("warming up")
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("═", max(8, m.width-2)))

	script := bootScriptLines()
	count := min(m.bootStep, len(script))
	visible := make([]string, 0, count+1)
	for i := range count {
		visible = append(visible, m.theme.bootLine.Render(script[i]))
	}
	if m.bootStep > len(script) {
		visible = append(visible, m.theme.bootDone.Render("✅ ready for requests"))
	}

	body := m.theme.viewport.Width(m.width - 2).Render(strings.Join(visible, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, header, meta, line, body)
}

func bootTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(_ time.Time) tea.Msg {
		return bootTickMsg{}
	})
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up", "ctrl+up":
		m.viewport.PageUp()
		m.followLog = false
		return true
	case "pgdown", "ctrl+f", "alt+down", "ctrl+down":
		m.viewport.PageDown()
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
		return true
	default:
		return false
	}
}

// handleViewportMouse scrolls on wheel events only.
func (m *model) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.ScrollUp(3)
		m.followLog = false
		return true
	case tea.MouseButtonWheelDown:
		m.viewport.ScrollDown(3)
		if m.viewport.AtBottom() {
			m.followLog = true
		}
		return true
	default:
		return false
	}
}

func bootScriptLines() []string {
	return []string{
		"[BOOT] tuning lyrics index",
		"[BOOT] warming summarizer",
		"[BOOT] dropping the needle",
	}
}

func handleCmd(ctx context.Context, handle HandleFunc, msg bus.InboundMessage) tea.Cmd {
	return func() tea.Msg {
		return requestDoneMsg{result: handle(ctx, msg)}
	}
}

func entryForReply(id int, reply bus.Reply) entry {
	switch {
	case reply.Title == pipeline.StatusNotice && reply.Body == "":
		return entry{id: id, role: roleStatus, reply: reply}
	case reply.ReplyTo != 0:
		return entry{id: id, role: roleError, reply: reply}
	default:
		return entry{id: id, role: roleSummary, reply: reply}
	}
}

func failedKind(kind pipeline.Kind) bool {
	switch kind {
	case "", pipeline.KindSucceeded, pipeline.KindIgnored:
		return false
	default:
		return true
	}
}

func displayOrNA(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "n/a"
	}

	return trimmed
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "/exit", "quit", ":q":
		return true
	default:
		return false
	}
}
