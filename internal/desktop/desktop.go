package desktop

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/msgmenu/internal/logging"
	"github.com/example/msgmenu/internal/registry"
)

// ErrNotFound is returned when no usable entry exists for a desktop id.
var ErrNotFound = errors.New("desktop: entry not found")

const groupDesktopEntry = "[Desktop Entry]"

// Entry holds the keys of a [Desktop Entry] group msgmenu cares about.
type Entry struct {
	Path   string
	Name   string
	Icon   string
	Hidden bool
}

// Finder looks up .desktop files in an ordered list of directories.
type Finder struct {
	dirs []string
}

// NewFinder searches dirs in order, or the XDG application directories when
// dirs is empty.
func NewFinder(dirs []string) *Finder {
	if len(dirs) == 0 {
		dirs = DefaultDirs()
	}
	return &Finder{dirs: dirs}
}

// DefaultDirs returns $XDG_DATA_HOME/applications followed by the
// applications directory of every entry in $XDG_DATA_DIRS.
func DefaultDirs() []string {
	var dirs []string
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataHome = filepath.Join(home, ".local", "share")
		}
	}
	if dataHome != "" {
		dirs = append(dirs, filepath.Join(dataHome, "applications"))
	}
	dataDirs := os.Getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	for _, dir := range filepath.SplitList(dataDirs) {
		if dir != "" {
			dirs = append(dirs, filepath.Join(dir, "applications"))
		}
	}
	return dirs
}

// Dirs returns the searched directories.
func (f *Finder) Dirs() []string {
	return append([]string(nil), f.dirs...)
}

// Find returns the first entry for desktopID. Entries marked Hidden count
// as deleted.
func (f *Finder) Find(desktopID string) (Entry, error) {
	name := registry.DesktopFileName(desktopID)
	candidates := []string{name}
	// "vendor-app.desktop" may live at vendor/app.desktop.
	if prefix, rest, ok := strings.Cut(name, "-"); ok {
		candidates = append(candidates, filepath.Join(prefix, rest))
	}

	for _, dir := range f.dirs {
		for _, candidate := range candidates {
			path := filepath.Join(dir, candidate)
			entry, err := ParseFile(path)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				logging.Debugf("desktop: skipping %s: %v", path, err)
				continue
			}
			if entry.Hidden {
				return Entry{}, fmt.Errorf("%w: %s is hidden", ErrNotFound, path)
			}
			return entry, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Resolve implements registry.InfoResolver.
func (f *Finder) Resolve(desktopID string) (registry.AppInfo, error) {
	entry, err := f.Find(desktopID)
	if err != nil {
		return registry.AppInfo{}, err
	}
	info := registry.AppInfo{Name: entry.Name, Icon: entry.Icon}
	if info.Name == "" {
		info.Name = strings.TrimSuffix(filepath.Base(entry.Path), ".desktop")
	}
	return info, nil
}

// ParseFile reads the [Desktop Entry] group of the file at path.
func ParseFile(path string) (Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return Entry{}, err
	}
	defer file.Close()

	entry := Entry{Path: path}
	inGroup, sawGroup := false, false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			inGroup = line == groupDesktopEntry
			sawGroup = sawGroup || inGroup
			continue
		}
		if !inGroup {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "Name":
			entry.Name = unescape(value)
		case "Icon":
			entry.Icon = unescape(value)
		case "Hidden":
			entry.Hidden = value == "true"
		}
	}
	if err := scanner.Err(); err != nil {
		return Entry{}, err
	}
	if !sawGroup {
		return Entry{}, fmt.Errorf("no %s group", groupDesktopEntry)
	}
	return entry, nil
}

var unescaper = strings.NewReplacer(`\s`, " ", `\n`, "\n", `\t`, "\t", `\r`, "\r", `\\`, `\`)

func unescape(value string) string {
	return unescaper.Replace(value)
}
