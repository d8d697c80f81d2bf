package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SIMPLEFS_ENV", "development")
	if err := load(viper.New(), ""); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if ConfigLoaded {
		t.Error("ConfigLoaded = true without a config file")
	}
	if Instance.Disk.Path != "image.sfs" || Instance.Disk.Blocks != 200 {
		t.Errorf("unexpected disk defaults %+v", Instance.Disk)
	}
	if Instance.Report.Format != "human" || Instance.Archive.Compression != "gzip" {
		t.Errorf("unexpected defaults report=%q compression=%q", Instance.Report.Format, Instance.Archive.Compression)
	}
	if Instance.Storage.Provider != "local" || Instance.Storage.Local.Dir != filepath.Join("data", "archive") {
		t.Errorf("unexpected storage defaults %+v", Instance.Storage)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simplefs.yaml")
	content := `
debug: true
disk:
  path: /tmp/test.sfs
  blocks: 20
storage:
  provider: s3
  s3:
    bucket: images
    endpoint: http://localhost:9000
    disable_ssl: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	if err := load(viper.New(), path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !ConfigLoaded || ConfigFile != path {
		t.Errorf("ConfigLoaded=%v ConfigFile=%q", ConfigLoaded, ConfigFile)
	}
	if !Instance.Debug || Instance.Disk.Path != "/tmp/test.sfs" || Instance.Disk.Blocks != 20 {
		t.Errorf("unexpected config %+v", Instance)
	}

	storage, err := GetStorageConfig()
	if err != nil {
		t.Fatalf("GetStorageConfig failed: %v", err)
	}
	s3cfg, ok := storage.(S3Config)
	if !ok {
		t.Fatalf("GetStorageConfig() returned %T; want S3Config", storage)
	}
	if s3cfg.Bucket != "images" || !s3cfg.DisableSSL || s3cfg.Region != "us-east-1" {
		t.Errorf("unexpected S3 config %+v", s3cfg)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SIMPLEFS_DISK_BLOCKS", "64")
	t.Setenv("SIMPLEFS_REPORT_FORMAT", "json")

	if err := load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Log("missing explicit config file is reported")
	}
	if Instance.Disk.Blocks != 64 || Instance.Report.Format != "json" {
		t.Errorf("environment not applied: blocks=%d format=%q", Instance.Disk.Blocks, Instance.Report.Format)
	}
}

func TestGetStorageConfigUnsupported(t *testing.T) {
	Instance.Storage.Provider = "gcp"
	defer func() { Instance.Storage.Provider = "" }()
	if _, err := GetStorageConfig(); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

func TestSaveConfig(t *testing.T) {
	v = viper.New()
	defer func() { v = nil }()
	if err := load(v, filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Log("missing explicit config file is reported")
	}

	path := filepath.Join(t.TempDir(), "out", "simplefs.yaml")
	if err := SaveConfig(path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	if err := load(viper.New(), path); err != nil {
		t.Fatalf("reloading saved config failed: %v", err)
	}
	if Instance.Disk.Blocks != 200 || Instance.Archive.Compression != "gzip" {
		t.Errorf("saved config lost values: %+v", Instance)
	}
}
