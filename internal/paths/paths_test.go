package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirHonoursHomeOverride(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("CHATNOTIFY_HOME", tmp)

	got := Dir("main")
	want := filepath.Join(tmp, "profiles", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestRuntimeFilePaths(t *testing.T) {
	t.Setenv("CHATNOTIFY_HOME", t.TempDir())

	tests := []struct {
		name   string
		got    string
		suffix string
	}{
		{"socket", SocketPath("work"), filepath.Join("profiles", "work", "worker.sock")},
		{"lock", LockPath("work"), filepath.Join("profiles", "work", "LOCK")},
		{"journal", JournalPath("work"), filepath.Join("profiles", "work", "journal.db")},
		{"log", LogPath("work"), filepath.Join("profiles", "work", "logs", "chatnotifyd.log")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasSuffix(tt.got, tt.suffix) {
				t.Errorf("%s path = %q, want suffix %q", tt.name, tt.got, tt.suffix)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv("CHATNOTIFY_HOME", t.TempDir())

	if err := EnsureDir("test"); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{Dir("test"), LogDir("test")} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("%s not created: %v", d, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", d)
		}
	}
}

func TestValidateProfile(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "main", false},
		{"valid with numbers", "work123", false},
		{"valid with hyphen", "my-profile", false},
		{"valid with underscore", "my_profile", false},
		{"valid max length", strings.Repeat("a", 64), false},
		{"empty", "", true},
		{"uppercase", "Main", true},
		{"space", "my profile", true},
		{"dot", "my.profile", true},
		{"too long", strings.Repeat("a", 65), true},
		{"slash", "my/profile", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProfile(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProfile(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestResolveProfile(t *testing.T) {
	if got := ResolveProfile("flag", "cfg"); got != "flag" {
		t.Errorf("flag override: got %q", got)
	}
	if got := ResolveProfile("", "cfg"); got != "cfg" {
		t.Errorf("configured: got %q", got)
	}
	if got := ResolveProfile("", ""); got != DefaultProfile {
		t.Errorf("default: got %q", got)
	}
}
