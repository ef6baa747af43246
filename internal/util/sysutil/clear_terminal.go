package sysutil

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// ClearTerminal clears the terminal screen written by out.
func ClearTerminal(out io.Writer) {
	if runtime.GOOS == "windows" {
		cmd := exec.Command("cmd", "/c", "cls")
		cmd.Stdout = out
		_ = cmd.Run()
		return
	}

	// Move the cursor home and erase the screen.
	fmt.Fprint(out, "\033[H\033[2J")
}
