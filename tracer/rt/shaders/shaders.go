package shaders

import (
	_ "embed"
)

// RaytraceEntryPoint is the compute entry point of RaytraceWGSL.
const RaytraceEntryPoint = "render"

//go:embed raytrace.wgsl
var RaytraceWGSL string

//go:embed blit.wgsl
var BlitWGSL string
