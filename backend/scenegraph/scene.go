// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scenegraph

import (
	"fmt"
	"strings"

	"github.com/gogpu/tiledcam"
	"github.com/gogpu/tiledcam/driver"
)

// ProductPath is the scene path of the synthesized render product. One
// product covers all cameras; the renderer returns its frame under this
// key.
const ProductPath = "/Render/TiledProduct"

// renderMode requests progressive path tracing from renderers that
// distinguish render modes.
const renderMode = "RealTimePathTracing"

// synthesizeScene builds the declaration block the backend merges with
// user geometry: one camera prim per environment and a single render
// product referencing all of them at the atlas resolution.
func synthesizeScene(cameraPaths []string, grid tiledcam.Grid, withDepth bool) string {
	var sb strings.Builder

	for _, path := range cameraPaths {
		fmt.Fprintf(&sb, "camera %q {}\n", path)
	}

	fmt.Fprintf(&sb, "renderproduct %q {\n", ProductPath)
	fmt.Fprintf(&sb, "\tresolution = %dx%d\n", grid.AtlasWidth(), grid.AtlasHeight())
	fmt.Fprintf(&sb, "\tmode = %s\n", renderMode)
	if withDepth {
		fmt.Fprintf(&sb, "\tvars = [%s, %s]\n", driver.VarColor, driver.VarDepth)
	} else {
		fmt.Fprintf(&sb, "\tvars = [%s]\n", driver.VarColor)
	}
	sb.WriteString("\tcameras = [\n")
	for _, path := range cameraPaths {
		fmt.Fprintf(&sb, "\t\t%s,\n", path)
	}
	sb.WriteString("\t]\n}\n")

	return sb.String()
}
