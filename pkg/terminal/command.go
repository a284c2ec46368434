package terminal

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"
	sys "golang.org/x/sys/unix"

	"github.com/nullicist-aakash/debugger/pkg/proc"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases []string
	helpMsg string
	cmdFn   cmdfunc
}

// match reports whether cmdstr is exactly one of this command's aliases.
// Prefix matching on primary names is done by Find, not here.
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands for the debugger terminal.
type Commands struct {
	cmds []command
}

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"continue", "c"}, cmdFn: cont, helpMsg: `Resume the process.`},
		{aliases: []string{"step", "s"}, cmdFn: step, helpMsg: `Step a single machine instruction.`},
		{aliases: []string{"breakpoint", "break", "b"}, cmdFn: breakpointCmd, helpMsg: `Operate on breakpoints.

	breakpoint list
	breakpoint set <address> [-h]
	breakpoint enable <id>
	breakpoint disable <id>
	breakpoint delete <id>

Addresses are hexadecimal, prefixed with 0x. With -h the breakpoint uses a
hardware debug register instead of an INT3 patch.`},
		{aliases: []string{"watchpoint", "watch", "w"}, cmdFn: watchpointCmd, helpMsg: `Operate on watchpoints.

	watchpoint list
	watchpoint set <address> <write|rw|execute> <size>
	watchpoint enable <id>
	watchpoint disable <id>
	watchpoint delete <id>`},
		{aliases: []string{"registers", "register", "regs", "r"}, cmdFn: registersCmd, helpMsg: `Operate on registers.

	registers read [<register>|all]
	registers write <register> <value>

Integer values are hexadecimal, floats decimal, vectors of the form
[0xff,0x00,...].`},
		{aliases: []string{"memory", "mem", "m"}, cmdFn: memoryCmd, helpMsg: `Operate on memory.

	memory read <address> [<number of bytes>]
	memory write <address> <bytes>

Bytes are written as a vector: [0xff,0x00,...].`},
		{aliases: []string{"disassemble", "disass", "d"}, cmdFn: disassembleCmd, helpMsg: `Disassemble machine code.

	disassemble [-a <start address>] [-c <number of instructions>]

Defaults to the current program counter.`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCmd, helpMsg: `Exit the debugger.`},
	}

	sort.Sort(byFirstAlias(c.cmds))
	return c
}

// byFirstAlias will sort by the first alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

// Merge adds aliases from the config to the default command set.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

// ExitRequestError is returned when the user exits the debugger.
type ExitRequestError struct{}

func (ExitRequestError) Error() string {
	return "exit"
}

func noCmdAvailable(t *Term, args string) error {
	return fmt.Errorf("command not available")
}

// Find returns the function for the named command. Like every subcommand
// below, an unambiguous prefix of a command name is accepted too.
func (c *Commands) Find(cmdstr string) cmdfunc {
	if cmdstr == "" {
		return noCmdAvailable
	}
	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}
	// fall back to prefix matching on primary names
	var found cmdfunc
	for _, v := range c.cmds {
		if strings.HasPrefix(v.aliases[0], cmdstr) {
			if found != nil {
				return func(t *Term, args string) error {
					return fmt.Errorf("ambiguous command %q", cmdstr)
				}
			}
			found = v.cmdFn
		}
	}
	if found == nil {
		return noCmdAvailable
	}
	return found
}

// Call dispatches cmdstr.
func (c *Commands) Call(cmdstr string, t *Term) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	return c.Find(cmdname)(t, args)
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			if cmd.match(args) || strings.HasPrefix(cmd.aliases[0], args) {
				fmt.Fprintln(t.stdout, cmd.helpMsg)
				return nil
			}
		}
		return fmt.Errorf("no help available on %s", args)
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 0, '\t', 0)
	for _, cmd := range c.cmds {
		h := cmd.helpMsg
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
		} else {
			fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

func cont(t *Term, args string) error {
	if err := t.proc.Resume(); err != nil {
		return err
	}
	reason, err := t.proc.WaitOnSignal()
	if err != nil {
		return err
	}
	return t.handleStop(reason)
}

func step(t *Term, args string) error {
	reason, err := t.proc.StepInstruction()
	if err != nil {
		return err
	}
	return t.handleStop(reason)
}

// handleStop echoes the stop reason and, when stopped, a small
// disassembly window at the program counter.
func (t *Term) handleStop(reason proc.StopReason) error {
	t.printStopReason(reason)
	if reason.State != proc.StateStopped {
		return nil
	}
	return t.printDisassembly(t.proc.GetPC(), t.conf.DisasmWindow)
}

func (t *Term) printStopReason(reason proc.StopReason) {
	prefix := fmt.Sprintf("Process %d ", t.proc.Pid())
	switch reason.State {
	case proc.StateStopped:
		detail := ""
		switch reason.Trap {
		case proc.TrapSoftwareBreak:
			detail = " (breakpoint)"
		case proc.TrapSingleStep:
			detail = " (single step)"
		case proc.TrapHardwareStoppoint:
			detail = " (hardware stoppoint)"
		}
		t.Println(prefix, fmt.Sprintf("stopped with signal %s at %s%s",
			signalName(reason.Info), t.proc.GetPC(), detail))
	case proc.StateTerminated:
		t.Println(prefix, fmt.Sprintf("terminated with signal %s", signalName(reason.Info)))
	case proc.StateExited:
		t.Println(prefix, fmt.Sprintf("exited with status %d", reason.Info))
	}
}

func signalName(sig uint8) string {
	if name := sys.SignalName(sys.Signal(sig)); name != "" {
		return name
	}
	return fmt.Sprintf("%d", sig)
}

func (t *Term) printDisassembly(addr proc.VirtAddr, n int) error {
	instrs, err := t.proc.Disassemble(addr, n)
	if err != nil {
		return err
	}
	for _, instr := range instrs {
		fmt.Fprintf(t.stdout, "%#018x: %s\n", instr.Addr.Addr(), instr.Text)
	}
	return nil
}

func breakpointCmd(t *Term, args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return t.cmds.help(t, "breakpoint")
	}

	switch sub := fields[0]; {
	case isPrefix(sub, "list"):
		if t.proc.BreakpointSites().Empty() {
			fmt.Fprintln(t.stdout, "No breakpoints set.")
			return nil
		}
		fmt.Fprintln(t.stdout, "Current breakpoints:")
		t.proc.BreakpointSites().ForEach(func(site *proc.BreakpointSite) {
			if site.IsInternal() {
				return
			}
			kind := "software"
			if site.IsHardware() {
				kind = "hardware"
			}
			fmt.Fprintf(t.stdout, "%d: address = %s, %s, %s\n",
				site.ID(), site.Address(), kind, enabledString(site.Enabled()))
		})
		return nil

	case isPrefix(sub, "set"):
		if len(fields) < 2 {
			return t.cmds.help(t, "breakpoint")
		}
		addr, err := parseAddress(fields[1])
		if err != nil {
			return err
		}
		hardware := false
		if len(fields) == 3 {
			if fields[2] != "-h" {
				return fmt.Errorf("invalid breakpoint command argument %q", fields[2])
			}
			hardware = true
		}
		site, err := t.proc.CreateBreakpointSite(addr, hardware, false)
		if err != nil {
			return err
		}
		return site.Enable()
	}

	if len(fields) < 2 {
		return t.cmds.help(t, "breakpoint")
	}
	id, err := parseID(fields[1])
	if err != nil {
		return err
	}

	switch sub := fields[0]; {
	case isPrefix(sub, "enable"):
		site, err := t.proc.BreakpointSites().GetByID(id)
		if err != nil {
			return err
		}
		return site.Enable()
	case isPrefix(sub, "disable"):
		site, err := t.proc.BreakpointSites().GetByID(id)
		if err != nil {
			return err
		}
		return site.Disable()
	case isPrefix(sub, "delete"):
		return t.proc.BreakpointSites().RemoveByID(id)
	}
	return t.cmds.help(t, "breakpoint")
}

func watchpointCmd(t *Term, args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return t.cmds.help(t, "watchpoint")
	}

	switch sub := fields[0]; {
	case isPrefix(sub, "list"):
		if t.proc.Watchpoints().Empty() {
			fmt.Fprintln(t.stdout, "No watchpoints set.")
			return nil
		}
		fmt.Fprintln(t.stdout, "Current watchpoints:")
		t.proc.Watchpoints().ForEach(func(wp *proc.Watchpoint) {
			fmt.Fprintf(t.stdout, "%d: address = %s, mode = %s, size = %d, %s\n",
				wp.ID(), wp.Address(), wp.Mode(), wp.Size(), enabledString(wp.Enabled()))
		})
		return nil

	case isPrefix(sub, "set"):
		if len(fields) != 4 {
			return t.cmds.help(t, "watchpoint")
		}
		addr, err := parseAddress(fields[1])
		if err != nil {
			return err
		}
		var mode proc.StoppointMode
		switch fields[2] {
		case "write":
			mode = proc.ModeWrite
		case "rw":
			mode = proc.ModeReadWrite
		case "execute":
			mode = proc.ModeExecute
		default:
			return fmt.Errorf("invalid watchpoint mode %q", fields[2])
		}
		size, err := parseSize(fields[3])
		if err != nil {
			return err
		}
		wp, err := t.proc.CreateWatchpoint(addr, mode, size)
		if err != nil {
			return err
		}
		return wp.Enable()
	}

	if len(fields) < 2 {
		return t.cmds.help(t, "watchpoint")
	}
	id, err := parseID(fields[1])
	if err != nil {
		return err
	}

	switch sub := fields[0]; {
	case isPrefix(sub, "enable"):
		wp, err := t.proc.Watchpoints().GetByID(id)
		if err != nil {
			return err
		}
		return wp.Enable()
	case isPrefix(sub, "disable"):
		wp, err := t.proc.Watchpoints().GetByID(id)
		if err != nil {
			return err
		}
		return wp.Disable()
	case isPrefix(sub, "delete"):
		return t.proc.Watchpoints().RemoveByID(id)
	}
	return t.cmds.help(t, "watchpoint")
}

func registersCmd(t *Term, args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return t.cmds.help(t, "registers")
	}

	switch sub := fields[0]; {
	case isPrefix(sub, "read"):
		return registersRead(t, fields[1:])
	case isPrefix(sub, "write"):
		return registersWrite(t, fields[1:])
	}
	return t.cmds.help(t, "registers")
}

func registersRead(t *Term, args []string) error {
	regs := t.proc.GetRegisters()

	if len(args) == 0 || args[0] == "all" {
		all := len(args) > 0
		for _, info := range proc.RegisterInfos() {
			if info.Name == "orig_rax" {
				continue
			}
			if !all && info.Kind != proc.KindGPR {
				continue
			}
			fmt.Fprintf(t.stdout, "%-10s\t%s\n", info.Name, formatValue(regs.Read(info)))
		}
		return nil
	}

	info, err := proc.RegInfoByName(args[0])
	if err != nil {
		return fmt.Errorf("no such register %q", args[0])
	}
	fmt.Fprintf(t.stdout, "%s:\t%s\n", info.Name, formatValue(regs.Read(info)))
	return nil
}

func registersWrite(t *Term, args []string) error {
	if len(args) != 2 {
		return t.cmds.help(t, "registers")
	}
	info, err := proc.RegInfoByName(args[0])
	if err != nil {
		return fmt.Errorf("no such register %q", args[0])
	}
	value, err := parseRegisterValue(info, args[1])
	if err != nil {
		return err
	}
	return t.proc.GetRegisters().Write(info, value)
}

func memoryCmd(t *Term, args string) error {
	v, err := argv.Argv(args, nil, nil)
	if err != nil || len(v) != 1 || len(v[0]) < 2 {
		return t.cmds.help(t, "memory")
	}
	fields := v[0]

	switch sub := fields[0]; {
	case isPrefix(sub, "read"):
		addr, err := parseAddress(fields[1])
		if err != nil {
			return err
		}
		n := 32
		if len(fields) == 3 {
			sz, err := parseSize(fields[2])
			if err != nil {
				return err
			}
			n = int(sz)
		}
		data, err := t.proc.ReadMemory(addr, n)
		if err != nil {
			return err
		}
		for i := 0; i < len(data); i += 16 {
			end := i + 16
			if end > len(data) {
				end = len(data)
			}
			fmt.Fprintf(t.stdout, "%#016x: % 02x\n", addr.Addr()+uint64(i), data[i:end])
		}
		return nil

	case isPrefix(sub, "write"):
		if len(fields) != 3 {
			return t.cmds.help(t, "memory")
		}
		addr, err := parseAddress(fields[1])
		if err != nil {
			return err
		}
		data, err := parseVector(fields[2])
		if err != nil {
			return err
		}
		return t.proc.WriteMemory(addr, data)
	}
	return t.cmds.help(t, "memory")
}

func disassembleCmd(t *Term, args string) error {
	addr := t.proc.GetPC()
	n := t.conf.DisasmWindow

	fields := strings.Fields(args)
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "-a":
			if i+1 >= len(fields) {
				return t.cmds.help(t, "disassemble")
			}
			i++
			a, err := parseAddress(fields[i])
			if err != nil {
				return err
			}
			addr = a
		case "-c":
			if i+1 >= len(fields) {
				return t.cmds.help(t, "disassemble")
			}
			i++
			c, err := parseSize(fields[i])
			if err != nil {
				return err
			}
			n = int(c)
		default:
			return t.cmds.help(t, "disassemble")
		}
	}
	return t.printDisassembly(addr, n)
}

func exitCmd(t *Term, args string) error {
	return ExitRequestError{}
}

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// isPrefix reports whether str is a non-empty prefix of of.
func isPrefix(str, of string) bool {
	return str != "" && strings.HasPrefix(of, str)
}
