package opensets

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io/ioutil"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idxBytes(dtype byte, dims []int, payload []byte) []byte {
	buf := &bytes.Buffer{}
	buf.Write([]byte{0, 0, dtype, byte(len(dims))})
	for _, dim := range dims {
		binary.Write(buf, binary.BigEndian, uint32(dim))
	}
	buf.Write(payload)
	return buf.Bytes()
}

func writeFile(t *testing.T, filePath string, data []byte) {
	t.Helper()
	require.NoError(t, ioutil.WriteFile(filePath, data, 0644))
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestDecodeIDXUbyte(t *testing.T) {
	dir := t.TempDir()
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	writeFile(t, path.Join(dir, "images"), idxBytes(idxTypeUbyte, []int{3, 2, 2}, payload))

	data, err := loadIDX(dir, "images")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 2}, data.dims)

	rows, err := data.byteRows()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []byte{1, 2, 3, 4}, rows[0])
	assert.Equal(t, []byte{9, 10, 11, 12}, rows[2])

	_, err = data.intLabels()
	assert.Error(t, err, "multi-dimensional data is not a label vector")
}

func TestDecodeIDXLabels(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, path.Join(dir, "labels"), idxBytes(idxTypeUbyte, []int{3}, []byte{7, 0, 2}))

	data, err := loadIDX(dir, "labels")
	require.NoError(t, err)
	labels, err := data.intLabels()
	require.NoError(t, err)
	assert.Equal(t, []int{7, 0, 2}, labels)
}

func TestDecodeIDXFloat32(t *testing.T) {
	var payload bytes.Buffer
	require.NoError(t, binary.Write(&payload, binary.BigEndian, []float32{1.5, -2, 0.25, 8, 16, -0.5}))
	dir := t.TempDir()
	writeFile(t, path.Join(dir, "floats"), idxBytes(idxTypeFloat32, []int{2, 3}, payload.Bytes()))

	data, err := loadIDX(dir, "floats")
	require.NoError(t, err)
	rows, err := data.floatRows()
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1.5, -2, 0.25}, {8, 16, -0.5}}, rows)

	_, err = data.byteRows()
	assert.Error(t, err)
}

func TestLoadIDXGzipFallback(t *testing.T) {
	dir := t.TempDir()
	raw := idxBytes(idxTypeUbyte, []int{2}, []byte{1, 9})
	writeFile(t, path.Join(dir, "labels.gz"), gzipBytes(t, raw))

	data, err := loadIDX(dir, "labels")
	require.NoError(t, err)
	labels, err := data.intLabels()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 9}, labels)
}

func TestDecodeIDXCorrupt(t *testing.T) {
	dir := t.TempDir()

	bad := idxBytes(idxTypeUbyte, []int{2}, []byte{1, 2})
	bad[0] = 0xFF
	writeFile(t, path.Join(dir, "magic"), bad)
	_, err := loadIDX(dir, "magic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad idx magic")

	writeFile(t, path.Join(dir, "short"), idxBytes(idxTypeUbyte, []int{10, 4}, []byte{1, 2, 3}))
	_, err = loadIDX(dir, "short")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")

	writeFile(t, path.Join(dir, "dtype"), idxBytes(0x0B, []int{1}, []byte{0, 0}))
	_, err = loadIDX(dir, "dtype")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported idx element type")

	_, err = loadIDX(dir, "missing")
	require.Error(t, err)
}
