package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fansqz/pdb-debugger/debugger/process"
	"github.com/fansqz/pdb-debugger/debugger/utils"
	"github.com/fansqz/pdb-debugger/utils/gosync"
)

// exitCode 被运行程序的退出码，作为本进程的退出码
var exitCode int

var runCmd = &cobra.Command{
	Use:   "run <script> [args...]",
	Short: "Run a python script in a terminal without the debugger",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		QuietLogger()
		status, err := runScript(cmd.Context(), args[0], args[1:])
		if err != nil {
			return err
		}
		exitCode = status.Code
		return nil
	},
}

// runScript 在虚拟终端中运行脚本，当前终端切换为raw模式直到程序退出
func runScript(ctx context.Context, script string, args []string) (process.ExitStatus, error) {
	script = utils.NormalizePath(script)
	t, err := process.StartPTY(ctx, process.Spec{
		Command: cfg.Python.Interpreter,
		Args:    append([]string{"-u", script}, args...),
		Dir:     filepath.Dir(script),
	})
	if err != nil {
		return process.ExitStatus{}, err
	}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		if err = t.InheritSize(os.Stdin); err != nil {
			logrus.Warnf("[Run] inherit terminal size: %v", err)
		}
		state, err := term.MakeRaw(fd)
		if err != nil {
			_ = t.Kill()
			t.Wait()
			return process.ExitStatus{}, err
		}
		defer func() { _ = term.Restore(fd, state) }()
	}

	gosync.Go(ctx, func(ctx context.Context) {
		_, _ = io.Copy(t.File(), os.Stdin)
	})
	// 子进程退出后读取pty会返回错误
	_, _ = io.Copy(os.Stdout, t.File())
	return t.Wait(), nil
}
