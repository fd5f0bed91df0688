package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := &Config{
		Listen: "127.0.0.1:9000",
		Tenants: []Tenant{
			{ID: "loja1", Name: "Loja Centro", AutoReply: []AutoReplyRule{
				{Keyword: "horario", Reply: "Abrimos das 9h as 18h."},
			}},
		},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Listen != "127.0.0.1:9000" {
		t.Errorf("Listen = %q, want 127.0.0.1:9000", loaded.Listen)
	}
	if len(loaded.Tenants) != 1 || loaded.Tenants[0].ID != "loja1" {
		t.Fatalf("Tenants = %+v, want one tenant loja1", loaded.Tenants)
	}
	if len(loaded.Tenants[0].AutoReply) != 1 {
		t.Errorf("AutoReply rules = %d, want 1", len(loaded.Tenants[0].AutoReply))
	}
}

func TestLoadDefaultsListen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[[tenants]]\nid = \"loja1\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != DefaultListen {
		t.Errorf("Listen = %q, want default %q", cfg.Listen, DefaultListen)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{Tenants: []Tenant{{ID: "a"}, {ID: "b"}}}, false},
		{"no tenants", Config{}, true},
		{"bad id", Config{Tenants: []Tenant{{ID: "Bad Id"}}}, true},
		{"duplicate id", Config{Tenants: []Tenant{{ID: "a"}, {ID: "a"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
