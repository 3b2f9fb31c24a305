package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnv blanks every variable Load reads so ambient values cannot leak
// into assertions. t.Setenv also restores the originals at cleanup.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TASKLOOM_HOME",
		"TASKLOOM_MAX_CONTENT_LENGTH",
		"TASKLOOM_MAX_TOPIC_LENGTH",
		"TASKLOOM_MAX_SEARCH_RESULTS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	s := Load()
	if !strings.HasSuffix(s.DataDir, DefaultDirName) {
		t.Errorf("DataDir = %q, want a %s path", s.DataDir, DefaultDirName)
	}
	if s.MaxContentLength != defaultMaxContentLength {
		t.Errorf("MaxContentLength = %d", s.MaxContentLength)
	}
	if s.MaxTopicLength != defaultMaxTopicLength {
		t.Errorf("MaxTopicLength = %d", s.MaxTopicLength)
	}
	if s.MaxSearchResults != defaultMaxSearchResults {
		t.Errorf("MaxSearchResults = %d", s.MaxSearchResults)
	}
}

func TestLoad_HomeOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("TASKLOOM_HOME", dir)

	s := Load()
	if s.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", s.DataDir, dir)
	}
}

func TestLoad_LimitOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TASKLOOM_MAX_SEARCH_RESULTS", "5")
	t.Setenv("TASKLOOM_MAX_TOPIC_LENGTH", "64")

	s := Load()
	if s.MaxSearchResults != 5 {
		t.Errorf("MaxSearchResults = %d, want 5", s.MaxSearchResults)
	}
	if s.MaxTopicLength != 64 {
		t.Errorf("MaxTopicLength = %d, want 64", s.MaxTopicLength)
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := "TASKLOOM_MAX_TOPIC_LENGTH=123\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(envFile), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// godotenv only fills unset variables, so the blank from clearEnv has
	// to go away entirely for the file value to apply.
	os.Unsetenv("TASKLOOM_MAX_TOPIC_LENGTH")
	t.Chdir(dir)

	s := Load()
	if s.MaxTopicLength != 123 {
		t.Errorf("MaxTopicLength = %d, want 123 from .env", s.MaxTopicLength)
	}
}

func TestIntEnv_Malformed(t *testing.T) {
	cases := map[string]string{
		"not a number": "abc",
		"negative":     "-3",
		"zero":         "0",
	}
	for name, val := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("TASKLOOM_TEST_LIMIT", val)
			if got := intEnv("TASKLOOM_TEST_LIMIT", 7); got != 7 {
				t.Errorf("intEnv = %d, want default 7", got)
			}
		})
	}
}

func TestGuardPacksPath(t *testing.T) {
	s := Settings{DataDir: "/data/taskloom"}
	want := filepath.Join("/data/taskloom", "guard")
	if got := s.GuardPacksPath(); got != want {
		t.Errorf("GuardPacksPath = %q, want %q", got, want)
	}
}
