package shaders

import (
	_ "embed"
)

//go:embed mesh.wgsl
var MeshWGSL string
