package jsonutil

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	commonerrors "github.com/deploymenttheory/go-simplefs/internal/common/errors"
)

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, map[string]int{"blocks": 20}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if got := buf.String(); got != "{\n  \"blocks\": 20\n}\n" {
		t.Errorf("Encode wrote %q", got)
	}

	var decoded map[string]int
	if err := Decode(&buf, &decoded); err != nil || decoded["blocks"] != 20 {
		t.Errorf("Decode() = %v, %v", decoded, err)
	}
}

func TestReadJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vars.json")
	if err := os.WriteFile(path, []byte(`{"greeting": "hello", "nested": {"a": 1}}`), 0600); err != nil {
		t.Fatal(err)
	}

	data, err := ReadJSONFile(path)
	if err != nil {
		t.Fatalf("ReadJSONFile failed: %v", err)
	}
	if data["greeting"] != "hello" {
		t.Errorf("greeting = %v", data["greeting"])
	}

	if _, err := ReadJSONFile(filepath.Join(dir, "missing.json")); !errors.Is(err, commonerrors.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadJSONFile(bad); !errors.Is(err, commonerrors.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestMergeJSON(t *testing.T) {
	base := map[string]interface{}{
		"a":      1,
		"nested": map[string]interface{}{"x": 1, "y": 2},
	}
	overlay := map[string]interface{}{
		"b":      2,
		"nested": map[string]interface{}{"y": 3},
	}

	merged := MergeJSON(base, overlay)
	nested := merged["nested"].(map[string]interface{})
	if merged["a"] != 1 || merged["b"] != 2 || nested["x"] != 1 || nested["y"] != 3 {
		t.Errorf("MergeJSON() = %v", merged)
	}
	if base["b"] != nil {
		t.Error("MergeJSON modified its base")
	}
}
