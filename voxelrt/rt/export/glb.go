// Package export writes generated voxel meshes as binary glTF.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gekko3d/voxmesh/voxelrt/rt/mesh"
	"github.com/gekko3d/voxmesh/voxelrt/rt/texture"
	"github.com/gekko3d/voxmesh/voxelrt/rt/volume"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

const generator = "voxmesh"

type Stats struct {
	Faces    int
	Vertices int
	Indices  int
}

type geometry struct {
	positions [][3]float32
	normals   [][3]float32
	colors    [][4]float32
	indices   []uint32
	alpha     bool
}

// compact copies the visible faces of buf into dense arrays, dropping the
// zeroed slots of hidden faces. Positions are centered on the grid.
func compact(buf *mesh.Buffers, colors *texture.Texture) geometry {
	var geo geometry
	half := [3]float32{float32(colors.Width) / 2, float32(colors.Height) / 2, float32(colors.Depth) / 2}

	for slot := 0; slot < buf.Slots(); slot++ {
		for f := 0; f < int(mesh.FaceCount); f++ {
			first := slot*mesh.IndicesPerVoxel + f*mesh.IndicesPerFace
			if buf.Indices[first] == buf.Indices[first+1] && buf.Indices[first+1] == buf.Indices[first+2] {
				continue
			}
			base := uint32(len(geo.positions))
			vertex := slot*mesh.VerticesPerVoxel + f*mesh.VerticesPerFace
			for k := 0; k < mesh.VerticesPerFace; k++ {
				v := buf.Vertex(vertex + k)
				geo.positions = append(geo.positions, [3]float32{
					float32(v.Voxel[0]) + float32(v.Position[0]) - half[0],
					float32(v.Voxel[1]) + float32(v.Position[1]) - half[1],
					float32(v.Voxel[2]) + float32(v.Position[2]) - half[2],
				})
				geo.normals = append(geo.normals, [3]float32{float32(v.Normal[0]), float32(v.Normal[1]), float32(v.Normal[2])})

				texel := colors.Texel(int(v.Voxel[0]), int(v.Voxel[1]), int(v.Voxel[2]))
				rgba := [4]float32{float32(texel[0]) / 255, float32(texel[1]) / 255, float32(texel[2]) / 255, float32(texel[3]) / 255}
				if rgba[3] < 1 {
					geo.alpha = true
				}
				geo.colors = append(geo.colors, rgba)
			}
			for k := 0; k < mesh.IndicesPerFace; k++ {
				// the generated indices are absolute; rebase onto the
				// compacted vertex range
				geo.indices = append(geo.indices, base+buf.Indices[first+k]-uint32(vertex))
			}
		}
	}
	return geo
}

// Document builds a single-mesh glTF document from generated buffers.
func Document(buf *mesh.Buffers, colors *texture.Texture, name string) (*gltf.Document, Stats, error) {
	if colors.Format != texture.FormatRGBA8Uint {
		return nil, Stats{}, fmt.Errorf("export needs an %s color texture, got %s", texture.FormatRGBA8Uint, colors.Format)
	}
	geo := compact(buf, colors)
	stats := Stats{
		Faces:    len(geo.positions) / mesh.VerticesPerFace,
		Vertices: len(geo.positions),
		Indices:  len(geo.indices),
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = generator
	if len(geo.positions) == 0 {
		return doc, stats, nil
	}

	posAccessor := modeler.WritePosition(doc, geo.positions)
	normalAccessor := modeler.WriteNormal(doc, geo.normals)
	colorAccessor := modeler.WriteColor(doc, geo.colors)
	indicesAccessor := modeler.WriteIndices(doc, geo.indices)
	prim := &gltf.Primitive{
		Attributes: map[string]uint32{
			gltf.POSITION: uint32(posAccessor),
			gltf.NORMAL:   uint32(normalAccessor),
			gltf.COLOR_0:  uint32(colorAccessor),
		},
		Indices:  gltf.Index(uint32(indicesAccessor)),
		Material: gltf.Index(0),
	}

	material := &gltf.Material{
		Name: "voxel",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{1, 1, 1, 1},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
		AlphaMode: gltf.AlphaOpaque,
	}
	if geo.alpha {
		material.AlphaMode = gltf.AlphaBlend
	}
	doc.Materials = []*gltf.Material{material}
	doc.Meshes = []*gltf.Mesh{{Name: name, Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Name: name, Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(0))
	return doc, stats, nil
}

// WriteGLB encodes doc as binary glTF.
func WriteGLB(w io.Writer, doc *gltf.Document) error {
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	return enc.Encode(doc)
}

// SaveGrid meshes g and writes it to path as a .glb file.
func SaveGrid(path string, g *volume.Grid, p *volume.Palette) (Stats, error) {
	colors, err := texture.BuildRGBA(g, p)
	if err != nil {
		return Stats{}, fmt.Errorf("build voxel texture: %w", err)
	}
	buf, _, err := mesh.Generate(g)
	if err != nil {
		return Stats{}, fmt.Errorf("generate mesh: %w", err)
	}

	name := filepath.Base(path)
	name = name[:len(name)-len(filepath.Ext(name))]
	doc, stats, err := Document(buf, colors, name)
	if err != nil {
		return Stats{}, err
	}

	f, err := os.Create(path)
	if err != nil {
		return Stats{}, err
	}
	if err := WriteGLB(f, doc); err != nil {
		f.Close()
		return Stats{}, fmt.Errorf("write %s: %w", path, err)
	}
	return stats, f.Close()
}
