// Package editor is the narrow boundary to the host editor. Rendering
// primitives stay on the Neovim side; this package only reloads buffers,
// reads the visual selection, and shows preview lines.
package editor

import (
	"fmt"
	"os"
	"strings"

	"github.com/neovim/go-client/nvim"
)

// Editor is what the session needs from the host. A nil Editor is valid:
// the session degrades to plain file operations.
type Editor interface {
	// Selection returns the text of the last visual selection.
	Selection() (string, error)
	// ReloadFiles re-reads the given files into their buffers if loaded.
	ReloadFiles(paths []string) error
	// ShowLines opens a scratch preview window with the given lines.
	ShowLines(title string, lines []string) error
	Close()
}

// Nvim talks to a running Neovim instance over its RPC socket.
type Nvim struct {
	v *nvim.Nvim
}

// Connect dials the Neovim instance named by $NVIM (or the older
// $NVIM_LISTEN_ADDRESS). Returns an error when neither is set; callers
// treat that as "no editor attached".
func Connect() (*Nvim, error) {
	addr := os.Getenv("NVIM")
	if addr == "" {
		addr = os.Getenv("NVIM_LISTEN_ADDRESS")
	}
	if addr == "" {
		return nil, fmt.Errorf("no Neovim instance found ($NVIM is not set)")
	}
	v, err := nvim.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Neovim at %s: %w", addr, err)
	}
	return &Nvim{v: v}, nil
}

func (e *Nvim) Close() {
	if e.v != nil {
		e.v.Close()
	}
}

// Selection reads the '< and '> marks and returns the covered lines.
func (e *Nvim) Selection() (string, error) {
	var start, end [4]int
	b := e.v.NewBatch()
	b.Eval(`getpos("'<")`, &start)
	b.Eval(`getpos("'>")`, &end)
	if err := b.Execute(); err != nil {
		return "", fmt.Errorf("failed to read selection marks: %w", err)
	}
	if start[1] == 0 || end[1] == 0 {
		return "", fmt.Errorf("no visual selection")
	}

	lines, err := e.v.BufferLines(0, start[1]-1, end[1], true)
	if err != nil {
		return "", fmt.Errorf("failed to read selected lines: %w", err)
	}
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = string(l)
	}
	return strings.Join(parts, "\n"), nil
}

// ReloadFiles asks Neovim to re-check the given files against disk so
// applied or reverted changes become visible in open buffers.
func (e *Nvim) ReloadFiles(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	b := e.v.NewBatch()
	for _, p := range paths {
		b.Command(fmt.Sprintf("silent! checktime %s", p))
	}
	return b.Execute()
}

// ShowLines opens a scratch split with the preview content.
func (e *Nvim) ShowLines(title string, lines []string) error {
	byteLines := make([][]byte, len(lines))
	for i, l := range lines {
		byteLines[i] = []byte(l)
	}

	b := e.v.NewBatch()
	b.Command("botright new")
	b.Command("setlocal buftype=nofile bufhidden=wipe noswapfile nomodifiable")
	b.Command("setlocal modifiable")
	b.SetBufferLines(0, 0, -1, true, byteLines)
	b.Command("setlocal nomodifiable")
	if title != "" {
		b.Command(fmt.Sprintf("silent! file %s", title))
	}
	return b.Execute()
}
