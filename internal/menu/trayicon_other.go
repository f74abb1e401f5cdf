//go:build !darwin && (cgo || windows)

package menu

import "github.com/getlantern/systray"

func setTrayIcon(icon []byte, _ bool) {
	systray.SetIcon(icon)
}
