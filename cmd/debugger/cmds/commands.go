// Package cmds implements the command line interface of the debugger.
package cmds

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nullicist-aakash/debugger/pkg/config"
	"github.com/nullicist-aakash/debugger/pkg/logflags"
	"github.com/nullicist-aakash/debugger/pkg/proc"
	"github.com/nullicist-aakash/debugger/pkg/terminal"
	"github.com/nullicist-aakash/debugger/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should
	// produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string

	conf *config.Config
)

const longDesc = `A source-level debugger for Linux x86-64 programs.

It controls the execution of a target process and gives access to its
registers, memory, breakpoints and watchpoints through an interactive
terminal.`

// New returns an initialized command tree.
func New() *cobra.Command {
	conf = config.LoadConfig()

	rootCommand := &cobra.Command{
		Use:   "debugger",
		Short: "A debugger for Linux x86-64 programs.",
		Long:  longDesc,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debugger logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", "Comma separated list of components that should produce debug output (debugger, terminal).")
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor.")

	execCommand := &cobra.Command{
		Use:   "exec <path>",
		Short: "Launch and begin debugging a precompiled binary.",
		Long: `Launches the given program with address space randomization disabled,
stops it before its first instruction and opens a debugging session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(func() (*proc.Process, error) {
				return proc.Launch(args[0], true, nil)
			})
		},
	}
	rootCommand.AddCommand(execCommand)

	attachCommand := &cobra.Command{
		Use:   "attach <pid>",
		Short: "Attach to a running process and begin debugging.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid pid: %s", args[0])
			}
			return execute(func() (*proc.Process, error) {
				return proc.Attach(pid)
			})
		},
	}
	rootCommand.AddCommand(attachCommand)

	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("debugger version %s\n", version.Version)
		},
	}
	rootCommand.AddCommand(versionCommand)

	return rootCommand
}

func execute(start func() (*proc.Process, error)) error {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		return err
	}
	defer logflags.Close()

	p, err := start()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer p.Close()

	fmt.Printf("Debugging process with PID %d\n", p.Pid())
	return terminal.New(p, conf).Run()
}
