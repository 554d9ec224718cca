// Package configutil reads json5 configuration files with an optional
// <name>.local.<ext> overlay for machine-local overrides that stay out of
// version control.
package configutil

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// localPath derives the override path: config.json5 -> config.local.json5.
func localPath(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

// load decodes the file at path into out and reports whether it existed.
func load[T any](path string, out *T) (bool, error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReadConfig reads the config file at name, then merges the fields set in
// <name>.local.<ext> over it when present. Neither file existing is reported
// as fs.ErrNotExist.
func ReadConfig[T any](name string) (T, error) {
	var config T
	found, err := load(name, &config)
	if err != nil {
		return config, err
	}

	local := localPath(name)
	var override T
	foundLocal, err := load(local, &override)
	if err != nil {
		return config, err
	}
	if foundLocal {
		err = mergo.Merge(&config, override, mergo.WithOverride)
		if err != nil {
			return config, err
		}
		slog.Info("merging config with local overrides", "local", local)
	}

	if !found && !foundLocal {
		return config, fs.ErrNotExist
	}
	return config, nil
}

// ReadRecursively walks from the working directory up to the filesystem root
// and reads the first config file matching name it finds.
func ReadRecursively[T any](name string) (T, error) {
	dir, err := os.Getwd()
	if err != nil {
		var zero T
		return zero, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(dir, name))
		if !errors.Is(err, fs.ErrNotExist) {
			return config, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			var zero T
			return zero, fs.ErrNotExist
		}
		dir = parent
	}
}
