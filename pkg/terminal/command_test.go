package terminal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nullicist-aakash/debugger/pkg/config"
)

func testTerm(buf *bytes.Buffer) *Term {
	return &Term{
		cmds:   DebugCommands(),
		conf:   &config.Config{DisasmWindow: 5},
		stdout: buf,
		dumb:   true,
	}
}

func TestCommandsMatchAliases(t *testing.T) {
	cmds := DebugCommands()
	for _, alias := range []string{"continue", "c", "break", "b", "regs", "mem", "quit"} {
		found := false
		for _, cmd := range cmds.cmds {
			if cmd.match(alias) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no command answers to %q", alias)
		}
	}
}

func TestCommandPrefixDispatch(t *testing.T) {
	var buf bytes.Buffer
	term := testTerm(&buf)

	// "hel" is an unambiguous prefix of help
	if err := term.cmds.Call("hel", term); err != nil {
		t.Fatalf("prefix dispatch failed: %v", err)
	}
	if !strings.Contains(buf.String(), "breakpoint") {
		t.Error("help output missing commands")
	}

	if err := term.cmds.Call("zzz", term); err == nil {
		t.Error("unknown command must fail")
	}
}

func TestCommandHelpPerCommand(t *testing.T) {
	var buf bytes.Buffer
	term := testTerm(&buf)

	if err := term.cmds.Call("help watchpoint", term); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "watchpoint set") {
		t.Errorf("watchpoint help missing: %q", buf.String())
	}

	if err := term.cmds.Call("help nosuchcmd", term); err == nil {
		t.Error("help for unknown command must fail")
	}
}

func TestCommandsMerge(t *testing.T) {
	cmds := DebugCommands()
	cmds.Merge(map[string][]string{"continue": {"go"}})
	found := false
	for _, cmd := range cmds.cmds {
		if cmd.match("go") {
			found = true
		}
	}
	if !found {
		t.Error("merged alias not registered")
	}
}

func TestExitCommand(t *testing.T) {
	var buf bytes.Buffer
	term := testTerm(&buf)
	err := term.cmds.Call("exit", term)
	if _, ok := err.(ExitRequestError); !ok {
		t.Fatalf("expected ExitRequestError, got %v", err)
	}
}
