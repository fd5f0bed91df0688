package home

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBaseDirDefault(t *testing.T) {
	userHome, _ := os.UserHomeDir()
	got := BaseDir("")
	want := filepath.Join(userHome, ".zapcrm")
	if got != want {
		t.Errorf("BaseDir(\"\") = %q, want %q", got, want)
	}
}

func TestBaseDirOverride(t *testing.T) {
	got := BaseDir("/var/lib/zapcrm")
	if got != "/var/lib/zapcrm" {
		t.Errorf("BaseDir(override) = %q, want /var/lib/zapcrm", got)
	}
}

func TestTenantPaths(t *testing.T) {
	base := "/data"
	if got := SessionDBPath(base, "loja1"); !strings.HasSuffix(got, filepath.Join("tenants", "loja1", "session.db")) {
		t.Errorf("SessionDBPath = %q, want suffix tenants/loja1/session.db", got)
	}
	if got := AppDBPath(base); got != filepath.Join(base, "zapcrm.db") {
		t.Errorf("AppDBPath = %q", got)
	}
	if got := LogPath(base); !strings.HasSuffix(got, filepath.Join("logs", "zapcrmd.log")) {
		t.Errorf("LogPath = %q", got)
	}
}

func TestEnsureDirs(t *testing.T) {
	base := filepath.Join(t.TempDir(), "zapcrm")
	if err := EnsureDirs(base, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{LogDir(base), TenantDir(base, "a"), TenantDir(base, "b")} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("dir %q not created: %v", d, err)
		}
		if !info.IsDir() {
			t.Errorf("%q is not a directory", d)
		}
	}
}

func TestValidateTenantID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "loja1", false},
		{"valid with hyphen", "minha-loja", false},
		{"valid with underscore", "minha_loja", false},
		{"empty", "", true},
		{"uppercase", "Loja", true},
		{"space", "minha loja", true},
		{"dot", "minha.loja", true},
		{"slash", "a/b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTenantID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTenantID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
