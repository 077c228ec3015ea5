package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
)

func TestParseYAML(t *testing.T) {
	data := []byte(`
engine:
  step_limit: 5000
  entry: src/main.js
cache:
  path: .cache/programs.db
log:
  verbosity: 2
`)
	cfg, err := ParseConfig(data, "/proj/funscript.yaml")
	be.Err(t, err, nil)
	be.Equal(t, cfg.Engine.StepLimit, int64(5000))
	be.Equal(t, cfg.Engine.MaxDepth, DefaultMaxDepth)
	be.Equal(t, cfg.Engine.Entry, filepath.Join("/proj", "src/main.js"))
	be.Equal(t, cfg.Cache.Path, filepath.Join("/proj", ".cache/programs.db"))
	be.Equal(t, cfg.Log.Verbosity, 2)
	be.Equal(t, cfg.Path, "/proj/funscript.yaml")
}

func TestParseTOML(t *testing.T) {
	data := []byte(`
[engine]
max_depth = 200

[cache]
disabled = true
path = "/tmp/x.db"
`)
	cfg, err := ParseConfig(data, "/proj/funscript.toml")
	be.Err(t, err, nil)
	be.Equal(t, cfg.Engine.MaxDepth, 200)
	be.Equal(t, cfg.Engine.StepLimit, int64(0))
	be.True(t, cfg.Cache.Disabled)
	be.Equal(t, cfg.Cache.Path, "/tmp/x.db")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		data string
		want string
	}{
		{"bad yaml", "a.yaml", "engine: [", "parsing a.yaml"},
		{"bad toml", "a.toml", "[engine", "parsing a.toml"},
		{"negative steps", "a.yaml", "engine:\n  step_limit: -1\n", "step_limit"},
		{"verbosity", "a.toml", "[log]\nverbosity = 5\n", "log.verbosity"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tc.data), tc.path)
			be.Err(t, err, tc.want)
		})
	}
}

func TestFindConfigWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	be.Err(t, os.MkdirAll(nested, 0o755), nil)
	be.Err(t, os.WriteFile(filepath.Join(root, "funscript.toml"), []byte("[engine]\nstep_limit = 9\n"), 0o644), nil)

	path, err := FindConfig(nested)
	be.Err(t, err, nil)
	be.Equal(t, path, filepath.Join(root, "funscript.toml"))

	cfg, err := Load(nested)
	be.Err(t, err, nil)
	be.Equal(t, cfg.Engine.StepLimit, int64(9))
}

func TestYAMLWinsInSameDirectory(t *testing.T) {
	dir := t.TempDir()
	be.Err(t, os.WriteFile(filepath.Join(dir, "funscript.toml"), []byte(""), 0o644), nil)
	be.Err(t, os.WriteFile(filepath.Join(dir, "funscript.yaml"), []byte(""), 0o644), nil)

	path, err := FindConfig(dir)
	be.Err(t, err, nil)
	be.Equal(t, filepath.Base(path), "funscript.yaml")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	be.Equal(t, cfg.Engine.MaxDepth, DefaultMaxDepth)
	be.Equal(t, cfg.Path, "")
	if !cfg.Cache.Disabled {
		be.Equal(t, filepath.Base(cfg.Cache.Path), DefaultCacheDB)
	}
}
