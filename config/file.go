package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/moby/sys/atomicwriter"
)

// LoadFile applies the INI file at path on top of cfg. A missing file is
// not an error.
func LoadFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	parser := flags.NewParser(cfg, flags.None)
	if err := flags.NewIniParser(parser).ParseFile(path); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// WriteDefaultConfig writes cfg as a commented INI file. Every option is
// written commented out with its value, so the file documents the
// defaults without pinning them.
func WriteDefaultConfig(path string, cfg *Config) error {
	var buf bytes.Buffer
	buf.WriteString("; Klingwallet configuration\n;\n")
	buf.WriteString("; Uncomment a line to override the default shown.\n\n")

	parser := flags.NewParser(cfg, flags.None)
	opts := flags.IniOptions(flags.IniIncludeComments | flags.IniIncludeDefaults | flags.IniCommentDefaults)
	flags.NewIniParser(parser).Write(&buf, opts)

	if err := atomicwriter.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
