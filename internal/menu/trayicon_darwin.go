//go:build darwin && cgo

package menu

import "github.com/getlantern/systray"

// setTrayIcon uses a template image so the menu bar tints the envelope,
// except while attention is drawn where the colored badge must survive.
func setTrayIcon(icon []byte, attention bool) {
	if attention {
		systray.SetIcon(icon)
		return
	}
	systray.SetTemplateIcon(icon, icon)
}
