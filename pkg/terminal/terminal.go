// Package terminal implements the interactive front-end: it reads user
// input, dispatches to debugger commands and renders stop reasons and
// disassembly.
package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/derekparker/trie"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/nullicist-aakash/debugger/pkg/config"
	"github.com/nullicist-aakash/debugger/pkg/logflags"
	"github.com/nullicist-aakash/debugger/pkg/proc"
)

const (
	historyFile                 string = ".debugger_history"
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"
)

const (
	ansiBlack   = 30
	ansiRed     = 31
	ansiGreen   = 32
	ansiYellow  = 33
	ansiBlue    = 34
	ansiMagenta = 35
	ansiCyan    = 36
	ansiWhite   = 37
	ansiBrWhite = 97
)

// Term represents the terminal running the debugger.
type Term struct {
	proc       *proc.Process
	conf       *config.Config
	prompt     string
	line       *liner.State
	cmds       *Commands
	completion *trie.Trie
	dumb       bool
	stdout     io.Writer
	log        logflags.Logger
}

// New returns a new Term driving p.
func New(p *proc.Process, conf *config.Config) *Term {
	if conf == nil {
		conf = &config.Config{}
	}
	cmds := DebugCommands()
	if conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}
	if conf.DisasmWindow <= 0 {
		conf.DisasmWindow = 5
	}
	if conf.StopLineColor < ansiBlack || conf.StopLineColor > ansiBrWhite {
		conf.StopLineColor = ansiBlue
	}

	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb" || !isatty.IsTerminal(os.Stdout.Fd())

	completion := trie.New()
	for _, cmd := range cmds.cmds {
		for _, alias := range cmd.aliases {
			completion.Add(alias, nil)
		}
	}
	for _, info := range proc.RegisterInfos() {
		completion.Add(info.Name, nil)
	}

	return &Term{
		proc:       p,
		conf:       conf,
		prompt:     "(debugger) ",
		line:       liner.NewLiner(),
		cmds:       cmds,
		completion: completion,
		dumb:       dumb,
		stdout:     os.Stdout,
		log:        logflags.TerminalLogger(),
	}
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

// Run begins the read/dispatch loop. It returns when the user exits or
// input reaches EOF.
func (t *Term) Run() error {
	defer t.Close()

	t.line.SetCompleter(func(line string) (c []string) {
		fields := strings.Fields(line)
		word := line
		prefixLen := 0
		if len(fields) > 0 && !strings.HasSuffix(line, " ") {
			word = fields[len(fields)-1]
			prefixLen = len(line) - len(word)
		}
		for _, match := range t.completion.PrefixSearch(word) {
			c = append(c, line[:prefixLen]+match)
		}
		return
	})

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err == nil {
		if f, err := os.Open(fullHistoryFile); err == nil {
			t.line.ReadHistory(f)
			f.Close()
		}
	}
	defer t.saveHistory(fullHistoryFile)

	fmt.Println("Type 'help' for list of commands.")

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Println("exit")
				return nil
			}
			return fmt.Errorf("prompt for input failed: %v", err)
		}
		if strings.TrimSpace(cmdstr) == "" {
			continue
		}

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}
	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}
	return l, nil
}

func (t *Term) saveHistory(path string) {
	if path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		t.log.Errorf("unable to save history: %v", err)
		return
	}
	defer f.Close()
	t.line.WriteHistory(f)
}

// Println prints str prefixed by prefix, highlighting the prefix on
// capable terminals.
func (t *Term) Println(prefix, str string) {
	if !t.dumb {
		code := fmt.Sprintf(terminalHighlightEscapeCode, t.conf.StopLineColor)
		prefix = fmt.Sprintf("%s%s%s", code, prefix, terminalResetEscapeCode)
	}
	fmt.Fprintf(t.stdout, "%s%s\n", prefix, str)
}
