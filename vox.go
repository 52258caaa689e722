package voxmesh

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/gekko3d/voxmesh/voxelrt/rt/volume"
)

const (
	VOXMagicNumber = "VOX "
)

var (
	ErrNotVox       = errors.New("not a valid VOX file")
	ErrMalformedVox = errors.New("malformed VOX file")
	ErrNoModel      = errors.New("VOX file has no such model")
)

type Voxel struct {
	X, Y, Z, ColorIndex byte
}

type VoxModel struct {
	SizeX, SizeY, SizeZ uint32
	Voxels              []Voxel
}

type VoxPalette [256][4]byte // RGBA colors

type VoxFile struct {
	Version      int
	Models       []VoxModel
	Palette      VoxPalette
	VoxMaterials []VoxMaterial
}

type VoxMaterial struct {
	ID       int
	Type     int
	Weight   float32
	Property map[string]string
}

// LoadOptions selects a model from a VoxFile and controls axis conversion.
type LoadOptions struct {
	Model int
	// MagicaVoxel is Z-up. When set, Y and Z are swapped keeping the
	// coordinate system right-handed.
	ConvertZUpToYUp bool
}

func LoadVoxFile(filename string) (*VoxFile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	vf, err := ReadVox(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filename, err)
	}
	return vf, nil
}

// ReadVox parses a MagicaVoxel stream. Chunks other than MAIN, PACK, SIZE,
// XYZI, RGBA and MATL are skipped.
func ReadVox(r io.Reader) (*VoxFile, error) {
	// Read and verify magic number
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotVox, err)
	}
	if string(magic[:]) != VOXMagicNumber {
		return nil, ErrNotVox
	}

	var version int32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: version: %v", ErrMalformedVox, err)
	}

	voxFile := &VoxFile{
		Version: int(version),
		Palette: defaultPalette(),
	}

	packCount := -1
	for {
		var chunkID [4]byte
		if _, err := io.ReadFull(r, chunkID[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("%w: chunk id: %v", ErrMalformedVox, err)
		}

		var chunkSize, childrenSize int32
		if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return nil, fmt.Errorf("%w: chunk %q size: %v", ErrMalformedVox, chunkID[:], err)
		}
		if err := binary.Read(r, binary.LittleEndian, &childrenSize); err != nil {
			return nil, fmt.Errorf("%w: chunk %q children: %v", ErrMalformedVox, chunkID[:], err)
		}
		if chunkSize < 0 || childrenSize < 0 {
			return nil, fmt.Errorf("%w: chunk %q negative size", ErrMalformedVox, chunkID[:])
		}

		chunkData := make([]byte, chunkSize)
		if _, err := io.ReadFull(r, chunkData); err != nil {
			return nil, fmt.Errorf("%w: chunk %q truncated: %v", ErrMalformedVox, chunkID[:], err)
		}

		switch string(chunkID[:]) {
		case "MAIN":
			// children follow inline
			continue
		case "PACK":
			if len(chunkData) < 4 {
				return nil, fmt.Errorf("%w: PACK chunk too small", ErrMalformedVox)
			}
			packCount = int(binary.LittleEndian.Uint32(chunkData[:4]))
		case "SIZE":
			if len(chunkData) < 12 {
				return nil, fmt.Errorf("%w: SIZE chunk too small", ErrMalformedVox)
			}
			voxFile.Models = append(voxFile.Models, VoxModel{
				SizeX: binary.LittleEndian.Uint32(chunkData[0:4]),
				SizeY: binary.LittleEndian.Uint32(chunkData[4:8]),
				SizeZ: binary.LittleEndian.Uint32(chunkData[8:12]),
			})
		case "XYZI":
			if len(voxFile.Models) == 0 {
				return nil, fmt.Errorf("%w: XYZI before SIZE", ErrMalformedVox)
			}
			model := &voxFile.Models[len(voxFile.Models)-1]
			if len(chunkData) < 4 {
				return nil, fmt.Errorf("%w: XYZI chunk too small", ErrMalformedVox)
			}
			numVoxels := int(binary.LittleEndian.Uint32(chunkData[:4]))
			if 4+numVoxels*4 > len(chunkData) {
				return nil, fmt.Errorf("%w: XYZI chunk data overflow (%d voxels in %d bytes)", ErrMalformedVox, numVoxels, len(chunkData))
			}
			model.Voxels = make([]Voxel, numVoxels)
			for i := 0; i < numVoxels; i++ {
				offset := 4 + i*4
				model.Voxels[i] = Voxel{
					X:          chunkData[offset],
					Y:          chunkData[offset+1],
					Z:          chunkData[offset+2],
					ColorIndex: chunkData[offset+3],
				}
			}
		case "RGBA":
			for i := 0; i < 255; i++ {
				offset := i * 4
				if offset+3 >= len(chunkData) {
					break
				}
				voxFile.Palette[i+1][0] = chunkData[offset]
				voxFile.Palette[i+1][1] = chunkData[offset+1]
				voxFile.Palette[i+1][2] = chunkData[offset+2]
				voxFile.Palette[i+1][3] = chunkData[offset+3]
			}
		case "MATL":
			mat, err := parseMaterial(chunkData)
			if err != nil {
				return nil, err
			}
			voxFile.VoxMaterials = append(voxFile.VoxMaterials, mat)
		}
	}

	if packCount >= 0 && packCount != len(voxFile.Models) {
		return nil, fmt.Errorf("%w: PACK announces %d models, found %d", ErrMalformedVox, packCount, len(voxFile.Models))
	}
	return voxFile, nil
}

func readString(data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("%w: MATL string header", ErrMalformedVox)
	}
	n := int(binary.LittleEndian.Uint32(data[:4]))
	data = data[4:]
	if n < 0 || n > len(data) {
		return "", nil, fmt.Errorf("%w: MATL string length %d", ErrMalformedVox, n)
	}
	return string(data[:n]), data[n:], nil
}

func parseMaterial(data []byte) (VoxMaterial, error) {
	mat := VoxMaterial{
		Property: make(map[string]string),
	}
	if len(data) < 8 {
		return mat, fmt.Errorf("%w: MATL chunk too small", ErrMalformedVox)
	}

	mat.ID = int(binary.LittleEndian.Uint32(data[:4]))
	numProps := int(binary.LittleEndian.Uint32(data[4:8]))
	data = data[8:]

	for i := 0; i < numProps; i++ {
		var key, value string
		var err error
		if key, data, err = readString(data); err != nil {
			return mat, err
		}
		if value, data, err = readString(data); err != nil {
			return mat, err
		}

		switch key {
		case "_weight":
			weight, err := strconv.ParseFloat(value, 32)
			if err != nil {
				return mat, fmt.Errorf("%w: MATL _weight %q", ErrMalformedVox, value)
			}
			mat.Weight = float32(weight)
		case "_type":
			mat.Property[key] = value
			switch value {
			case "_diffuse":
				mat.Type = 0
			case "_metal":
				mat.Type = 1
			case "_glass":
				mat.Type = 2
			case "_emit":
				mat.Type = 3
			}
		default:
			mat.Property[key] = value
		}
	}

	return mat, nil
}

func defaultPalette() VoxPalette {
	var palette VoxPalette
	for i := range palette {
		palette[i] = [4]uint8{255, 255, 255, 255} // white as fallback
	}
	return palette
}

// Grid converts one model into a dense grid and its palette. Voxels outside
// the model's SIZE are rejected rather than dropped.
func (f *VoxFile) Grid(opts LoadOptions) (*volume.Grid, *volume.Palette, error) {
	if opts.Model < 0 || opts.Model >= len(f.Models) {
		return nil, nil, fmt.Errorf("%w: model %d of %d", ErrNoModel, opts.Model, len(f.Models))
	}
	m := f.Models[opts.Model]

	sx, sy, sz := int(m.SizeX), int(m.SizeY), int(m.SizeZ)
	if opts.ConvertZUpToYUp {
		sy, sz = sz, sy
	}
	grid, err := volume.NewGrid(sx, sy, sz)
	if err != nil {
		return nil, nil, err
	}

	for _, v := range m.Voxels {
		x, y, z := int(v.X), int(v.Y), int(v.Z)
		if opts.ConvertZUpToYUp {
			y, z = z, int(m.SizeY)-1-y
		}
		if err := grid.Set(x, y, z, v.ColorIndex); err != nil {
			return nil, nil, err
		}
	}

	palette, err := volume.NewPalette(f.Palette[:])
	if err != nil {
		return nil, nil, err
	}
	return grid, palette, nil
}

// LoadVoxGrid reads filename and returns the selected model as a grid.
func LoadVoxGrid(filename string, opts LoadOptions) (*volume.Grid, *volume.Palette, error) {
	vf, err := LoadVoxFile(filename)
	if err != nil {
		return nil, nil, err
	}
	return vf.Grid(opts)
}
