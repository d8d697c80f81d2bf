package script

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	commonerrors "github.com/deploymenttheory/go-simplefs/internal/common/errors"
	"github.com/deploymenttheory/go-simplefs/internal/logger"
	"github.com/deploymenttheory/go-simplefs/internal/session"
	"github.com/deploymenttheory/go-simplefs/internal/sfs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

const scenario = `
name: hello
description: store and read back a greeting
variables:
  greeting: hello
steps:
  - name: format disk
    type: format
  - name: mount disk
    type: mount
  - name: create file
    type: create
    register: file_a
  - name: write greeting
    type: write
    inode: "{{.file_a.inode}}"
    data: "{{.greeting}}"
  - name: stat file
    type: stat
    inode: "{{.inode}}"
  - name: read file
    type: read
    inode: "{{.inode}}"
  - name: only for big files
    type: remove
    inode: "{{.inode}}"
    condition: "{{ gt .size 100 }}"
  - name: create second file
    type: create
  - name: copy in
    type: copyin
    source: "{{.source}}"
    inode: "{{.inode}}"
  - name: copy out
    type: copyout
    inode: "{{.inode}}"
    destination: "{{.destination}}"
  - name: remove first
    type: remove
    inode: 0
  - name: unmount disk
    type: unmount
`

func newRunner(t *testing.T, blocks uint32) (*Runner, *bytes.Buffer) {
	t.Helper()
	s, err := session.Open(session.Options{
		Path:   filepath.Join(t.TempDir(), "image.sfs"),
		Blocks: blocks,
		Logger: zaptest.NewLogger(t).Sugar(),
	})
	if err != nil {
		t.Fatalf("session.Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	var out bytes.Buffer
	return NewRunner(s, &out), &out
}

func TestParseScript(t *testing.T) {
	s, err := ParseScript(strings.NewReader(scenario), "yaml")
	if err != nil {
		t.Fatalf("ParseScript failed: %v", err)
	}

	if s.Name != "hello" || len(s.Steps) != 12 {
		t.Fatalf("unexpected script %q with %d steps", s.Name, len(s.Steps))
	}
	if s.Variables["greeting"] != "hello" {
		t.Errorf("greeting = %v", s.Variables["greeting"])
	}
	if _, ok := s.Variables["timestamp"]; !ok {
		t.Error("timestamp variable missing")
	}

	write := s.Steps[3]
	if write.Type != "write" || write.Parameters["data"] != "{{.greeting}}" {
		t.Errorf("unexpected write step %+v", write)
	}
	if s.Steps[6].Condition == "" {
		t.Error("condition was not decoded")
	}

	if errs := ValidateScript(s); len(errs) != 0 {
		t.Errorf("ValidateScript() = %v", errs)
	}
}

func TestValidateScript(t *testing.T) {
	if errs := ValidateScript(&Script{}); len(errs) != 2 {
		t.Errorf("empty script: got %d errors; want 2: %v", len(errs), errs)
	}

	s := &Script{
		Name: "broken",
		Steps: []Step{
			{Name: "a", Type: "explode"},
			{Name: "b", Type: "write", Parameters: map[string]interface{}{"inode": 0}},
			{Name: "c", Type: "copyout"},
			{Name: "d", Type: "read", Parameters: map[string]interface{}{"inode": "{{.inode"}},
			{Name: "e", Type: "mount", Condition: "{{ if }}"},
			{Type: "create"},
		},
	}
	errs := ValidateScript(s)

	wants := []string{
		"step 1 (a): invalid type 'explode'",
		"step 2 (b): missing required parameter 'data'",
		"step 3 (c): missing required parameter 'inode'",
		"step 3 (c): missing required parameter 'destination'",
		"step 4 (d): invalid template in parameter 'inode'",
		"step 5 (e): invalid condition",
		"step 6: name is required",
	}
	joined := ""
	for _, err := range errs {
		joined += err.Error() + "\n"
	}
	for _, want := range wants {
		if !strings.Contains(joined, want) {
			t.Errorf("validation errors missing %q:\n%s", want, joined)
		}
	}
}

func TestExecuteScenario(t *testing.T) {
	r, out := newRunner(t, 20)
	dir := t.TempDir()
	src := filepath.Join(dir, "in.txt")
	if err := os.WriteFile(src, bytes.Repeat([]byte("x"), 5000), 0600); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out.txt")

	s, err := ParseScript(strings.NewReader(scenario), "yaml")
	if err != nil {
		t.Fatalf("ParseScript failed: %v", err)
	}
	s.Variables["source"] = src
	s.Variables["destination"] = dst

	if err := r.Execute(s); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if got := out.String(); got != "inode 0 has size 5 bytes\nhello" {
		t.Errorf("output = %q", got)
	}
	if s.Variables["inode"] != 1 || s.Variables["bytes"] != 5000 {
		t.Errorf("variables inode=%v bytes=%v", s.Variables["inode"], s.Variables["bytes"])
	}
	if a, ok := s.Variables["file_a"].(map[string]interface{}); !ok || a["inode"] != 0 {
		t.Errorf("registered file_a = %v", s.Variables["file_a"])
	}

	copied, err := os.ReadFile(dst)
	if err != nil || len(copied) != 5000 {
		t.Errorf("copyout wrote %d bytes, %v", len(copied), err)
	}

	if err := r.Session.Mount(); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	if _, err := r.Session.FileSystem().Stat(0); !errors.Is(err, sfs.ErrInodeNotFound) {
		t.Errorf("inode 0 still present: %v", err)
	}
	if size, err := r.Session.FileSystem().Stat(1); err != nil || size != 5000 {
		t.Errorf("Stat(1) = %d, %v", size, err)
	}
}

func TestExecuteTracesSteps(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger.SetLogger(zap.New(core).Sugar())
	defer logger.SetLogger(nil)

	r, _ := newRunner(t, 20)
	s := &Script{
		Name:      "trace",
		Variables: map[string]interface{}{"greeting": "hi"},
		Steps: []Step{
			{Name: "format", Type: "format"},
			{Name: "mount", Type: "mount"},
			{Name: "create", Type: "create"},
			{Name: "write", Type: "write", Parameters: map[string]interface{}{"inode": "{{.inode}}", "data": "{{.greeting}}"}},
		},
	}
	if err := r.Execute(s); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	rendered := logs.FilterMessage("Rendered step parameters").FilterField(zap.String("step", "write")).All()
	if len(rendered) != 1 {
		t.Fatalf("got %d parameter traces for write; want 1", len(rendered))
	}
	params, ok := rendered[0].ContextMap()["parameters"].(map[string]interface{})
	if !ok || params["data"] != "hi" {
		t.Errorf("traced parameters = %v", rendered[0].ContextMap()["parameters"])
	}

	outputs := logs.FilterMessage("Step produced outputs").FilterField(zap.String("step", "write")).All()
	if len(outputs) != 1 {
		t.Errorf("got %d output traces for write; want 1", len(outputs))
	}
}

func TestExecuteStopsOnError(t *testing.T) {
	r, _ := newRunner(t, 20)
	s := &Script{
		Name:      "failing",
		Variables: map[string]interface{}{},
		Steps: []Step{
			{Name: "format", Type: "format"},
			{Name: "mount", Type: "mount"},
			{Name: "write missing", Type: "write", Parameters: map[string]interface{}{"inode": 7, "data": "x"}},
			{Name: "create", Type: "create"},
		},
	}

	err := r.Execute(s)
	if !errors.Is(err, sfs.ErrInodeNotFound) {
		t.Fatalf("expected ErrInodeNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "write missing") {
		t.Errorf("error does not name the step: %v", err)
	}
	if _, ok := s.Variables["inode"]; ok {
		t.Error("steps ran after the failure")
	}
}

func TestExecuteUnknownVariable(t *testing.T) {
	r, _ := newRunner(t, 20)
	s := &Script{
		Name:      "missing variable",
		Variables: map[string]interface{}{},
		Steps: []Step{
			{Name: "stat", Type: "stat", Parameters: map[string]interface{}{"inode": "{{.nothing}}"}},
		},
	}
	if err := r.Execute(s); err == nil {
		t.Error("expected error for an undefined variable")
	}
}

func TestExecuteDebugToFile(t *testing.T) {
	r, out := newRunner(t, 20)
	output := filepath.Join(t.TempDir(), "debug.json")
	s := &Script{
		Name:      "debug",
		Variables: map[string]interface{}{},
		Steps: []Step{
			{Name: "format", Type: "format"},
			{Name: "debug", Type: "debug", Parameters: map[string]interface{}{"format": "json", "output": output}},
		},
	}
	if err := r.Execute(s); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("debug wrote to the runner output: %q", out.String())
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("debug output missing: %v", err)
	}
	if !strings.Contains(string(data), `"magic_valid": true`) {
		t.Errorf("unexpected debug output %s", data)
	}
	if s.Variables["magic_valid"] != true || s.Variables["valid_inodes"] != 0 {
		t.Errorf("debug variables %v", s.Variables)
	}
}

func TestLoadScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.json")
	body := `{"name": "json", "steps": [{"name": "stat", "type": "stat", "inode": 3}]}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadScript(path)
	if err != nil {
		t.Fatalf("LoadScript failed: %v", err)
	}
	if s.Variables["script_dir"] != dir {
		t.Errorf("script_dir = %v; want %s", s.Variables["script_dir"], dir)
	}
	if n, err := uintParam(s.Steps[0], "inode", 0); err != nil || n != 3 {
		t.Errorf("inode parameter = %d, %v", n, err)
	}

	if _, err := LoadScript(filepath.Join(dir, "missing.yaml")); !errors.Is(err, commonerrors.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestUintParam(t *testing.T) {
	tests := []struct {
		value   interface{}
		want    uint32
		wantErr bool
	}{
		{7, 7, false},
		{int64(8), 8, false},
		{float64(9), 9, false},
		{" 10 ", 10, false},
		{-1, 0, true},
		{1.5, 0, true},
		{"abc", 0, true},
		{true, 0, true},
	}
	for _, tt := range tests {
		step := Step{Type: "stat", Parameters: map[string]interface{}{"inode": tt.value}}
		got, err := uintParam(step, "inode", 0)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("uintParam(%v) = %d, %v; want %d (error %v)", tt.value, got, err, tt.want, tt.wantErr)
		}
		if tt.wantErr && !errors.Is(err, commonerrors.ErrInvalidArgument) {
			t.Errorf("uintParam(%v) error %v is not ErrInvalidArgument", tt.value, err)
		}
	}
}

func TestEvaluateCondition(t *testing.T) {
	vars := map[string]interface{}{"size": 5, "flag": "yes"}
	tests := []struct {
		condition string
		want      bool
	}{
		{"true", true},
		{"{{ gt .size 1 }}", true},
		{"{{ gt .size 10 }}", false},
		{"{{ .flag }}", true},
		{"0", false},
	}
	for _, tt := range tests {
		got, err := evaluateCondition(tt.condition, vars)
		if err != nil || got != tt.want {
			t.Errorf("evaluateCondition(%q) = %v, %v; want %v", tt.condition, got, err, tt.want)
		}
	}
}
