//go:build windows

package main

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/windows"
)

// The indicator is usually started from a shortcut; only the serve command
// without --console detaches from its console window.
func init() {
	if shouldShowConsole(os.Args[1:]) {
		return
	}
	hideConsoleWindow()
}

func shouldShowConsole(args []string) bool {
	if os.Getenv("MSGMENU_SHOW_CONSOLE") != "" {
		return true
	}

	opts, rest, err := parseGlobalFlags(args)
	if err != nil || opts.console {
		return true
	}
	if len(rest) > 0 && normalizeCommand(rest[0]) != "serve" {
		return true
	}

	for _, raw := range rest {
		normalized := strings.ToLower(strings.TrimLeft(strings.TrimSpace(raw), "-/"))
		if value, ok := strings.CutPrefix(normalized, "console="); ok {
			if parsed, err := strconv.ParseBool(value); err == nil && parsed {
				return true
			}
		} else if normalized == "console" {
			return true
		}
	}
	return false
}

func hideConsoleWindow() {
	kernel32 := windows.NewLazySystemDLL("kernel32.dll")
	user32 := windows.NewLazySystemDLL("user32.dll")

	getConsoleWindow := kernel32.NewProc("GetConsoleWindow")
	showWindow := user32.NewProc("ShowWindow")
	freeConsole := kernel32.NewProc("FreeConsole")

	hwnd, _, _ := getConsoleWindow.Call()
	if hwnd == 0 {
		return
	}

	const swHide = 0
	showWindow.Call(hwnd, swHide)
	freeConsole.Call()
}
