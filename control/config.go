// File: control/config.go
// Package control holds runtime configuration and observability surfaces.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Config is the server's tunable surface.
type Config struct {
	// Port is the TCP listen port.
	Port int
	// MaxConnections is the listen backlog and an advisory ceiling on
	// concurrently tracked connections.
	MaxConnections int
	// ThreadCount is the worker pool size for read dispatch.
	ThreadCount int
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Port:           8080,
		MaxConnections: 1000,
		ThreadCount:    4,
	}
}

// FromArgs applies positional overrides [port [max_connections
// [thread_count]]]. Unlike file values, a malformed positional argument is
// an operator typo on the command line and is rejected outright.
func (c *Config) FromArgs(args []string) error {
	targets := []*int{&c.Port, &c.MaxConnections, &c.ThreadCount}
	names := []string{"port", "max_connections", "thread_count"}
	if len(args) > len(targets) {
		return fmt.Errorf("too many arguments: expected at most %d", len(targets))
	}
	for i, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid %s: %q", names[i], arg)
		}
		*targets[i] = v
	}
	return nil
}

// LoadFile merges a key=value config file into c. Lines starting with '#'
// are comments, unknown keys are ignored, and malformed numeric values
// fall back to the current value with a warning. Only I/O failures are
// returned as errors.
func (c *Config) LoadFile(path string, log zerolog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			log.Warn().Int("line", lineNo).Str("text", line).
				Msg("config line is not key=value, skipping")
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		var target *int
		switch key {
		case "port":
			target = &c.Port
		case "max_connections":
			target = &c.MaxConnections
		case "thread_count":
			target = &c.ThreadCount
		default:
			// Unknown keys are ignored so configs can be shared with
			// other tools.
			continue
		}
		v, err := strconv.Atoi(value)
		if err != nil || v <= 0 {
			log.Warn().Int("line", lineNo).Str("key", key).Str("value", value).
				Int("fallback", *target).Msg("malformed config value, keeping previous")
			continue
		}
		*target = v
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}
