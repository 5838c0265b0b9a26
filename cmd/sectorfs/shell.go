package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

func shellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start interactive mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rl, err := readline.NewEx(&readline.Config{
				Prompt:       fmt.Sprintf("sectorfs %s> ", a.image),
				HistoryFile:  a.config.HistoryFile,
				AutoComplete: shellCompleter(),
				Stdout:       cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			defer rl.Close()

			for {
				line, err := rl.Readline()
				if err == readline.ErrInterrupt {
					if len(line) == 0 {
						return nil
					}
					continue
				}
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}

				exit, err := a.execLine(line, rl.Stdout())
				if err != nil {
					reportError(err)
				}
				if exit {
					return nil
				}
			}
		},
	}
}

func shellCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("format"),
		readline.PcItem("put"),
		readline.PcItem("get"),
		readline.PcItem("ls"),
		readline.PcItem("rm"),
		readline.PcItem("dump"),
		readline.PcItem("check"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

// execLine runs one shell line through a fresh command tree with the global flags of the shell.
// It reports whether the shell should stop.
func (a *app) execLine(line string, out io.Writer) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "exit", "quit":
		return true, nil
	case "shell":
		_, err := fmt.Fprintln(out, "Already in interactive mode.")
		return false, err
	}

	args := append(fields,
		"--config", a.configPath,
		"--image", a.image,
		"--geometry", a.geometry,
	)
	if a.quiet {
		args = append(args, "--quiet")
	}
	if a.verbose {
		args = append(args, "--verbose")
	}

	cmd := newCmd(a.host)
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(out)

	return false, cmd.Execute()
}
