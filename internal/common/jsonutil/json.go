package jsonutil

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/deploymenttheory/go-simplefs/internal/common/errors"
	"github.com/deploymenttheory/go-simplefs/internal/common/fsutil"
)

// Indent is the indentation used for every JSON document the tool writes
const Indent = "  "

// Marshal encodes v as indented JSON
func Marshal(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", Indent)
}

// Encode writes v to w as indented JSON followed by a newline
func Encode(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", Indent)
	return encoder.Encode(v)
}

// Decode reads a single JSON document from r into v
func Decode(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}

// ReadJSONFile reads a JSON file and unmarshals its contents into a map
func ReadJSONFile(path string) (map[string]interface{}, error) {
	if !fsutil.FileExists(path) {
		return nil, fmt.Errorf("%w: %s", errors.ErrFileNotFound, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidArgument, err.Error())
	}

	return result, nil
}

// MergeJSON merges two JSON objects, with the second one taking precedence
func MergeJSON(base, overlay map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for k, v := range base {
		result[k] = v
	}

	for k, v := range overlay {
		if baseMap, ok := result[k].(map[string]interface{}); ok {
			if overlayMap, ok := v.(map[string]interface{}); ok {
				result[k] = MergeJSON(baseMap, overlayMap)
				continue
			}
		}
		result[k] = v
	}

	return result
}
