//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Shader sources compiled by glslc. Each produces <name>.<stage>.spv next
// to its source, which is the layout the pipeline cache loads from.
var shaders = []string{
	"depth_only",
	"forward_opaque",
	"forward_transparent",
}

const shaderDir = "assets/shaders"

// Compiles every shader pair to SPIR-V.
func (Build) Shaders() error {
	for _, name := range shaders {
		for _, stage := range []string{"vert", "frag"} {
			src := filepath.Join(shaderDir, fmt.Sprintf("%s.%s", name, stage))
			out := filepath.Join(shaderDir, fmt.Sprintf("%s.%s.spv", name, stage))
			if _, err := executeCmd("glslc", withArgs(src, "-o", out), withStream()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Builds the engine binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	if _, err := executeCmd("go", withArgs("build", "-o", "oxygen", "."), withStream()); err != nil {
		return err
	}
	return nil
}
