package project

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bxr/internal/config"
)

func initProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if _, err := Init(root, config.DefaultProjectConfig()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return root
}

func TestLocate_AtRoot(t *testing.T) {
	root := initProject(t)

	p, err := Locate(root)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if p.Retro != 0 {
		t.Errorf("Retro = %d, want 0", p.Retro)
	}
	if p.Config.Scan.MinTokenLength != config.DefaultMinTokenLength {
		t.Errorf("MinTokenLength = %d, want %d", p.Config.Scan.MinTokenLength, config.DefaultMinTokenLength)
	}
}

func TestEffective_KeepsSavedTokenLength(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultProjectConfig()
	cfg.Scan.MinTokenLength = 3
	if _, err := Init(root, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	t.Setenv("BXR_MIN_TOKEN_LEN", "8")
	t.Setenv("BXR_RESPECT_GITIGNORE", "true")

	p, err := Locate(root)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	eff := p.Effective()
	if eff.Scan.MinTokenLength != 3 {
		t.Errorf("Effective MinTokenLength = %d, want 3", eff.Scan.MinTokenLength)
	}
	if !eff.Scan.RespectGitignore {
		t.Error("Effective RespectGitignore = false, want env override")
	}
	if got := p.ScanOptions(nil).MinTokenLength; got != 3 {
		t.Errorf("ScanOptions MinTokenLength = %d, want 3", got)
	}
}

func TestLocate_FromSubdirectory(t *testing.T) {
	root := initProject(t)
	sub := filepath.Join(root, "src", "lib")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	p, err := Locate(sub)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	wantRoot, _ := filepath.Abs(root)
	if p.Root != wantRoot {
		t.Errorf("Root = %q, want %q", p.Root, wantRoot)
	}
	if p.Retro != 2 {
		t.Errorf("Retro = %d, want 2", p.Retro)
	}

	tests := []struct {
		stored string
		want   string
	}{
		{"main.c", filepath.Join("..", "..", "main.c")},
		{"src/lib/util.c", "util.c"},
		{"src/other/x.c", filepath.Join("..", "other", "x.c")},
	}
	for _, tt := range tests {
		if got := p.Resolve(tt.stored); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.stored, got, tt.want)
		}
	}
}

func TestLocate_NotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := Locate(dir)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Locate() error = %v, want ErrNotFound", err)
	}
}

func TestLocate_NearestWins(t *testing.T) {
	outer := initProject(t)
	inner := filepath.Join(outer, "vendor", "lib")
	if err := os.MkdirAll(inner, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := Init(inner, config.DefaultProjectConfig()); err != nil {
		t.Fatal(err)
	}

	p, err := Locate(filepath.Join(inner))
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if p.Retro != 0 {
		t.Errorf("Retro = %d, want 0", p.Retro)
	}
}

func TestInit_InvalidRoot(t *testing.T) {
	_, err := Init(filepath.Join(t.TempDir(), "missing"), config.DefaultProjectConfig())
	if err == nil {
		t.Fatal("Init() on a missing directory should fail")
	}
}

func TestDatabase_ResolvedAgainstRoot(t *testing.T) {
	t.Setenv("BXR_DB_TYPE", "")
	t.Setenv("BXR_DB_PATH", "")
	root := initProject(t)

	p, err := Locate(root)
	if err != nil {
		t.Fatal(err)
	}
	got := p.Database().Path
	want := filepath.Join(p.Root, config.DefaultIndexFile)
	if got != want {
		t.Errorf("Database().Path = %q, want %q", got, want)
	}
}

func TestOpenStore(t *testing.T) {
	t.Setenv("BXR_DB_TYPE", "")
	t.Setenv("BXR_DB_PATH", "")
	root := initProject(t)

	p, err := Locate(root)
	if err != nil {
		t.Fatal(err)
	}
	st, err := p.OpenStore(context.Background())
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer st.Close()

	ok, err := st.Initialized(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("fresh store should not be initialized")
	}
}

func TestScanOptions_Gitignore(t *testing.T) {
	t.Setenv("BXR_RESPECT_GITIGNORE", "")
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("build/\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultProjectConfig()
	p, err := Init(root, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if opts := p.ScanOptions(nil); opts.Ignore != nil {
		t.Error("gitignore should not be loaded when disabled")
	}

	cfg.Scan.RespectGitignore = true
	p, err = Init(root, cfg)
	if err != nil {
		t.Fatal(err)
	}
	opts := p.ScanOptions(nil)
	if opts.Ignore == nil {
		t.Fatal("gitignore should be loaded when enabled")
	}
	if !opts.Ignore.MatchesPath("build/out.c") {
		t.Error("build/out.c should be ignored")
	}
}
