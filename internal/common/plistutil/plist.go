// Package plistutil provides utilities for working with property lists
package plistutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"howett.net/plist"
)

// Format represents the plist format
type Format int

const (
	// FormatXML is the XML plist format
	FormatXML Format = iota
	// FormatBinary is the binary plist format
	FormatBinary
	// FormatOpenStep is the OpenStep plist format
	FormatOpenStep
	// FormatGNUStep is the GNUStep plist format
	FormatGNUStep
)

// ErrInvalidPlist is returned when data cannot be decoded as a property list
var ErrInvalidPlist = errors.New("invalid property list")

// Encode writes v to w as a property list in the given format
func Encode(w io.Writer, v interface{}, format Format) error {
	encoder := plist.NewEncoderForFormat(w, plistFormat(format))
	if format == FormatXML {
		encoder.Indent("\t")
	}
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode plist: %w", err)
	}
	return nil
}

// Marshal returns v encoded as a property list in the given format
func Marshal(v interface{}, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, v, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a property list of any format into v and reports which
// format it was stored in
func Unmarshal(data []byte, v interface{}) (Format, error) {
	format, err := plist.Unmarshal(data, v)
	if err != nil {
		return FormatXML, fmt.Errorf("%w: %s", ErrInvalidPlist, err.Error())
	}
	switch format {
	case plist.BinaryFormat:
		return FormatBinary, nil
	case plist.OpenStepFormat:
		return FormatOpenStep, nil
	case plist.GNUStepFormat:
		return FormatGNUStep, nil
	default:
		return FormatXML, nil
	}
}

// DetectFormat guesses the format of encoded plist data from its header
func DetectFormat(data []byte) Format {
	if bytes.HasPrefix(data, []byte("bplist00")) {
		return FormatBinary
	}
	if bytes.HasPrefix(data, []byte("<?xml")) || bytes.HasPrefix(data, []byte("<!DOCTYPE")) {
		return FormatXML
	}
	if bytes.HasPrefix(data, []byte("{")) || bytes.HasPrefix(data, []byte("(")) || bytes.HasPrefix(data, []byte("/")) {
		return FormatOpenStep
	}
	return FormatXML
}

// StringToFormat converts a string to a Format enum
func StringToFormat(formatStr string) Format {
	switch strings.ToLower(formatStr) {
	case "binary":
		return FormatBinary
	case "openstep":
		return FormatOpenStep
	case "gnustep":
		return FormatGNUStep
	default:
		return FormatXML // Default to XML
	}
}

func plistFormat(format Format) int {
	switch format {
	case FormatBinary:
		return plist.BinaryFormat
	case FormatOpenStep:
		return plist.OpenStepFormat
	case FormatGNUStep:
		return plist.GNUStepFormat
	default:
		return plist.XMLFormat
	}
}
