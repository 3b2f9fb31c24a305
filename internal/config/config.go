// Package config resolves server settings from the environment.
//
// Resolution order: process environment, then a .env file in the working
// directory (loaded best effort, existing variables win), then defaults.
// TASKLOOM_HOME points at the data directory; everything the server
// persists lives under it.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	// DefaultDirName is the data directory created under $HOME when
	// TASKLOOM_HOME is not set.
	DefaultDirName = ".taskloom"

	// guardPacksDir is the subdirectory scanned for extra guard rule packs.
	guardPacksDir = "guard"
)

const (
	defaultMaxContentLength = 20000
	defaultMaxTopicLength   = 200
	defaultMaxSearchResults = 20
)

// Settings holds everything the composition root needs to build stores.
type Settings struct {
	// DataDir is the root for notes.db, docs.db, audit.db, and rule packs.
	DataDir string

	MaxContentLength int
	MaxTopicLength   int
	MaxSearchResults int
}

// Load resolves settings. A missing .env file is not an error.
func Load() Settings {
	godotenv.Load()

	return Settings{
		DataDir:          dataDir(),
		MaxContentLength: intEnv("TASKLOOM_MAX_CONTENT_LENGTH", defaultMaxContentLength),
		MaxTopicLength:   intEnv("TASKLOOM_MAX_TOPIC_LENGTH", defaultMaxTopicLength),
		MaxSearchResults: intEnv("TASKLOOM_MAX_SEARCH_RESULTS", defaultMaxSearchResults),
	}
}

// GuardPacksPath returns the directory scanned for user rule packs.
func (s Settings) GuardPacksPath() string {
	return filepath.Join(s.DataDir, guardPacksDir)
}

func dataDir() string {
	if dir := os.Getenv("TASKLOOM_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Last resort: a relative directory beats refusing to start.
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// intEnv reads a positive integer variable, falling back to def when the
// variable is unset, malformed, or non-positive.
func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
