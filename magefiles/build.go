//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles all GLSL sources in shaders/ to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the engine binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	if _, err := executeCmd("go", withArgs("build", "-o", "diffuse", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the whole test suite.
func (Build) Test() error {
	if _, err := executeCmd("go", withArgs("test", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}

func buildShaders() error {
	shaders := []string{
		"pbr.vert",
		"pbr.frag",
		"skybox.vert",
		"skybox.frag",
		"equirect_to_cube.comp",
	}
	for _, shader := range shaders {
		src := "shaders/" + shader
		out := src + ".spv"
		if _, err := executeCmd("glslc", withArgs(src, "-o", out), withStream()); err != nil {
			return err
		}
	}
	return nil
}
