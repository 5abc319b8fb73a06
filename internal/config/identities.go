// Package config provides configuration loading for battdrain.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Dir returns the battdrain config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/battdrain if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "battdrain"), nil
}

// LoadIdentities reads the identities file at {dir}/identities and returns
// the packages declared per uid. Each line has the form "<uid>=<package>";
// a uid may appear on several lines. The associations supplement the uid
// records of every dump, so usage of shared uids can be attributed when a
// dump omits them. A missing file yields no identities and no error.
// Malformed lines are skipped.
func LoadIdentities(dir string) (map[string][]string, error) {
	path := filepath.Join(dir, "identities")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]string{}, nil
		}
		return nil, err
	}
	defer f.Close()

	identities := make(map[string][]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip blank lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}

		uid := strings.TrimSpace(line[:idx])
		pkg := strings.TrimSpace(line[idx+1:])
		if uid == "" || pkg == "" {
			continue
		}

		identities[uid] = append(identities[uid], pkg)
	}

	if err := scanner.Err(); err != nil {
		return identities, err
	}

	return identities, nil
}
