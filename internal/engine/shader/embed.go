// Package shader provides the embedded GLSL programs of the batch registry.
package shader

import _ "embed"

// LitVertexShader transforms and skins every batched instance.
//
//go:embed batch.vert
var LitVertexShader string

// LitFragmentShader shades batched meshes with Phong or metallic/roughness
// materials and samples the shadow maps.
//
//go:embed batch.frag
var LitFragmentShader string

// DepthVertexShader skins instances into world space for the depth passes.
//
//go:embed depth.vert
var DepthVertexShader string

// DepthGeometryShader replicates each triangle into every cascade layer.
//
//go:embed depth.geom
var DepthGeometryShader string

//go:embed depth.frag
var DepthFragmentShader string

// DepthCubeGeometryShader replicates each triangle into the six cube faces.
//
//go:embed depth_cube.geom
var DepthCubeGeometryShader string

// DepthCubeFragmentShader writes normalized distance to the light.
//
//go:embed depth_cube.frag
var DepthCubeFragmentShader string

// LineVertexShader and LineFragmentShader draw colored debug lines.
//
//go:embed line.vert
var LineVertexShader string

//go:embed line.frag
var LineFragmentShader string
