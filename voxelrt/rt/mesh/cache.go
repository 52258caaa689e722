package mesh

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gekko3d/voxmesh/voxelrt/rt/volume"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

const (
	captureMagic   = "VXMESH01"
	captureVersion = uint8(1)
)

var ErrCorruptCapture = errors.New("corrupt mesh capture")

// Key identifies a grid's content: dimensions and every cell.
func Key(g *volume.Grid) uint64 {
	d := xxhash.New()
	var dims [12]byte
	binary.LittleEndian.PutUint32(dims[0:], uint32(g.SizeX))
	binary.LittleEndian.PutUint32(dims[4:], uint32(g.SizeY))
	binary.LittleEndian.PutUint32(dims[8:], uint32(g.SizeZ))
	_, _ = d.Write(dims[:])

	cells := g.Cells()
	b := make([]byte, len(cells)*2)
	for i, c := range cells {
		binary.LittleEndian.PutUint16(b[i*2:], c)
	}
	_, _ = d.Write(b)
	return d.Sum64()
}

func CapturePath(dir string, key uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%016x.vxmesh", key))
}

// MarshalCapture encodes the buffers as magic, version and a zstd payload of
// slot count, vertex bytes and indices.
func MarshalCapture(buf *Buffers) ([]byte, error) {
	var payload bytes.Buffer
	_ = binary.Write(&payload, binary.LittleEndian, uint32(buf.Slots()))
	_ = binary.Write(&payload, binary.LittleEndian, uint32(len(buf.Vertices)))
	payload.Write(buf.Vertices)
	payload.Write(buf.IndexBytes())

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	var out bytes.Buffer
	out.WriteString(captureMagic)
	out.WriteByte(captureVersion)
	out.Write(enc.EncodeAll(payload.Bytes(), nil))
	return out.Bytes(), nil
}

func UnmarshalCapture(data []byte) (*Buffers, error) {
	if len(data) < len(captureMagic)+1 || string(data[:len(captureMagic)]) != captureMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptCapture)
	}
	if v := data[len(captureMagic)]; v != captureVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCorruptCapture, v)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	payload, err := dec.DecodeAll(data[len(captureMagic)+1:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCapture, err)
	}

	if len(payload) < 8 {
		return nil, fmt.Errorf("%w: short header", ErrCorruptCapture)
	}
	slots := int(binary.LittleEndian.Uint32(payload[0:]))
	vlen := int(binary.LittleEndian.Uint32(payload[4:]))
	// sizes come from the file; check them before allocating
	const slotBytes = VerticesPerVoxel*VertexStride + IndicesPerVoxel*4
	if slots > (len(payload)-8)/slotBytes ||
		vlen != slots*VerticesPerVoxel*VertexStride ||
		len(payload) != 8+slots*slotBytes {
		return nil, fmt.Errorf("%w: size mismatch for %d slots", ErrCorruptCapture, slots)
	}
	buf := NewBuffers(slots)
	copy(buf.Vertices, payload[8:8+vlen])
	ib := payload[8+vlen:]
	for i := range buf.Indices {
		buf.Indices[i] = binary.LittleEndian.Uint32(ib[i*4:])
	}
	return buf, nil
}

// SaveCapture writes buf under dir keyed by the grid content.
func SaveCapture(dir string, g *volume.Grid, buf *Buffers) (string, error) {
	data, err := MarshalCapture(buf)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := CapturePath(dir, Key(g))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	return path, os.Rename(tmp, path)
}

// LoadCapture returns the cached buffers for g. found is false when no
// capture exists.
func LoadCapture(dir string, g *volume.Grid) (buf *Buffers, found bool, err error) {
	data, err := os.ReadFile(CapturePath(dir, Key(g)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	buf, err = UnmarshalCapture(data)
	if err != nil {
		return nil, false, err
	}
	if buf.Slots() != g.Count() {
		return nil, false, fmt.Errorf("%w: %d slots for %d voxels", ErrCorruptCapture, buf.Slots(), g.Count())
	}
	return buf, true, nil
}
