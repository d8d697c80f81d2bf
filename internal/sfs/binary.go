package sfs

import (
	"bytes"
	"encoding/binary"
	"io"
)

// byteOrder is the on-disk byte order of every integer field
var byteOrder = binary.LittleEndian

// BinaryReader helps with reading binary data
type BinaryReader struct {
	reader io.Reader
	order  binary.ByteOrder
}

// NewBinaryReader creates a new binary reader with specified byte order
func NewBinaryReader(r io.Reader, order binary.ByteOrder) *BinaryReader {
	return &BinaryReader{
		reader: r,
		order:  order,
	}
}

// Read reads structured binary data from r into data.
// Data must be a pointer to a fixed-size value or a slice of fixed-size values.
func (br *BinaryReader) Read(data interface{}) error {
	return binary.Read(br.reader, br.order, data)
}

// ReadUint32 reads a uint32
func (br *BinaryReader) ReadUint32() (uint32, error) {
	var val uint32
	err := br.Read(&val)
	return val, err
}

// ReadUint32Array reads count uint32 values
func (br *BinaryReader) ReadUint32Array(count int) ([]uint32, error) {
	result := make([]uint32, count)
	if err := br.Read(result); err != nil {
		return nil, err
	}
	return result, nil
}

// BinaryWriter helps with writing binary data
type BinaryWriter struct {
	writer io.Writer
	order  binary.ByteOrder
}

// NewBinaryWriter creates a new binary writer with specified byte order
func NewBinaryWriter(w io.Writer, order binary.ByteOrder) *BinaryWriter {
	return &BinaryWriter{
		writer: w,
		order:  order,
	}
}

// Write writes the binary representation of data into w.
// Data must be a fixed-size value or a slice of fixed-size values, or a
// pointer to such data.
func (bw *BinaryWriter) Write(data interface{}) error {
	return binary.Write(bw.writer, bw.order, data)
}

// WriteUint32 writes a uint32
func (bw *BinaryWriter) WriteUint32(val uint32) error {
	return bw.Write(val)
}

// WritePadding writes n zero bytes
func (bw *BinaryWriter) WritePadding(n int) error {
	if n <= 0 {
		return nil
	}
	_, err := bw.writer.Write(make([]byte, n))
	return err
}

// blockWriter returns a writer over a fresh buffer sized for one block
func blockWriter() (*bytes.Buffer, *BinaryWriter) {
	buf := bytes.NewBuffer(make([]byte, 0, BlockSize))
	return buf, NewBinaryWriter(buf, byteOrder)
}
