//go:build !cgo && !windows
// +build !cgo,!windows

package menu

// newTrayController reports no tray; systray needs cgo outside Windows.
func newTrayController(func(string)) trayController {
	return nil
}
