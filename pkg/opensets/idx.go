// Package opensets loads public research corpora into datasets. Nothing is
// downloaded: files must already be present on disk, pointed at by flags.
// The synthetic Blobs corpus is the exception and runs anywhere.
package opensets

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// IDX element types, from the format's header byte.
const (
	idxTypeUbyte   = 0x08
	idxTypeFloat32 = 0x0D
)

// idxData is a decoded IDX file: the declared dimensions plus the flat
// row-major payload in its native element type.
type idxData struct {
	dtype byte
	dims  []int
	ubyte []byte
	f32   []float32
}

// decodeIDX reads the IDX format: two zero magic bytes, an element type
// byte, a dimension count byte, big-endian uint32 sizes, then the payload.
func decodeIDX(r io.Reader) (*idxData, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errors.Wrap(err, "cannot read idx header")
	}
	if header[0] != 0 || header[1] != 0 {
		return nil, errors.Errorf("bad idx magic %#02x%02x", header[0], header[1])
	}
	dtype := header[2]
	ndims := int(header[3])
	if ndims == 0 {
		return nil, errors.New("idx header declares zero dimensions")
	}

	dims := make([]int, ndims)
	total := 1
	for i := range dims {
		var size uint32
		if err := binary.Read(r, binary.BigEndian, &size); err != nil {
			return nil, errors.Wrap(err, "cannot read idx dimensions")
		}
		dims[i] = int(size)
		total *= int(size)
	}

	out := &idxData{dtype: dtype, dims: dims}
	switch dtype {
	case idxTypeUbyte:
		out.ubyte = make([]byte, total)
		if _, err := io.ReadFull(r, out.ubyte); err != nil {
			return nil, errors.Wrap(err, "idx payload truncated")
		}
	case idxTypeFloat32:
		out.f32 = make([]float32, total)
		if err := binary.Read(r, binary.BigEndian, out.f32); err != nil {
			return nil, errors.Wrap(err, "idx payload truncated")
		}
	default:
		return nil, errors.Errorf("unsupported idx element type %#02x", dtype)
	}
	return out, nil
}

// rowWidth is the flattened size of all dimensions after the first.
func (d *idxData) rowWidth() int {
	width := 1
	for _, dim := range d.dims[1:] {
		width *= dim
	}
	return width
}

// byteRows reshapes a ubyte payload into one row per sample.
func (d *idxData) byteRows() ([][]byte, error) {
	if d.dtype != idxTypeUbyte {
		return nil, errors.Errorf("expected ubyte data, got element type %#02x", d.dtype)
	}
	width := d.rowWidth()
	rows := make([][]byte, d.dims[0])
	for i := range rows {
		rows[i] = d.ubyte[i*width : (i+1)*width]
	}
	return rows, nil
}

// floatRows reshapes a float32 payload into one float64 row per sample.
func (d *idxData) floatRows() ([][]float64, error) {
	if d.dtype != idxTypeFloat32 {
		return nil, errors.Errorf("expected float32 data, got element type %#02x", d.dtype)
	}
	width := d.rowWidth()
	rows := make([][]float64, d.dims[0])
	for i := range rows {
		row := make([]float64, width)
		for j := range row {
			row[j] = float64(d.f32[i*width+j])
		}
		rows[i] = row
	}
	return rows, nil
}

// intLabels converts a one-dimensional ubyte payload into class labels.
func (d *idxData) intLabels() ([]int, error) {
	if d.dtype != idxTypeUbyte || len(d.dims) != 1 {
		return nil, errors.Errorf("expected one-dimensional ubyte data, got element type %#02x with %d dimensions", d.dtype, len(d.dims))
	}
	labels := make([]int, len(d.ubyte))
	for i, b := range d.ubyte {
		labels[i] = int(b)
	}
	return labels, nil
}

// resolveIDXPath finds the plain file first and falls back to a gzipped
// sibling.
func resolveIDXPath(dir, name string) (string, error) {
	plain := path.Join(dir, name)
	if _, err := os.Stat(plain); err == nil {
		return plain, nil
	}
	gz := plain + ".gz"
	if _, err := os.Stat(gz); err == nil {
		return gz, nil
	}
	return "", errors.Errorf("neither %s nor %s.gz exists", plain, plain)
}

// loadIDX opens and decodes an IDX file, decompressing .gz transparently.
func loadIDX(dir, name string) (*idxData, error) {
	filePath, err := resolveIDXPath(dir, name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", filePath)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(filePath, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot decompress %s", filePath)
		}
		defer gz.Close()
		reader = gz
	}
	data, err := decodeIDX(bufio.NewReader(reader))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode %s", filePath)
	}
	return data, nil
}
