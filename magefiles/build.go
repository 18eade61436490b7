//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Builds the testbed application.
func (Build) Testbed() error {
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/quiver-testbed", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Builds the quiver-pack manifest builder.
func (Build) Packer() error {
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/quiver-pack", "./cmd/quiver-pack"), withStream()); err != nil {
		return err
	}
	return nil
}
