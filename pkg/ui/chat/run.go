package chat

import (
	"context"
	"fmt"

	"songtldr/pkg/bus"
	"songtldr/pkg/pipeline"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// HandleFunc runs one console query to completion. Replies arrive through the
// Messenger passed to Run*, not through the returned result.
type HandleFunc func(ctx context.Context, msg bus.InboundMessage) pipeline.Result

// RuntimeInfo is shown in the console header.
type RuntimeInfo struct {
	LyricsProvider     string
	SummarizerProvider string
	Model              string
}

func RunInteractive(ctx context.Context, messenger *Messenger, handle HandleFunc, info RuntimeInfo) error {
	model := newModel(ctx, handle, modeInteractive, "", info)
	program := tea.NewProgram(model, tea.WithMouseCellMotion())
	messenger.attach(program)
	defer messenger.attach(nil)

	if _, err := program.Run(); err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(renderGoodbyeBanner())
	return nil
}

func RunOneShot(ctx context.Context, messenger *Messenger, handle HandleFunc, query string, info RuntimeInfo) error {
	model := newModel(ctx, handle, modeOneShot, query, info)
	program := tea.NewProgram(model)
	messenger.attach(program)
	defer messenger.attach(nil)

	_, err := program.Run()
	return err
}

func renderGoodbyeBanner() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("54")).
		Padding(1, 2)

	return style.Render("🎵 Thanks for using songtldr")
}
