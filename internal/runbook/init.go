package runbook

import (
	"fmt"
	"os"
)

// starterFile is the canonical example: a Python package release chain
// (clean, build, upload) with an enumerated index prompt.
const starterFile = `version: "1"

env:
  PYTHONUNBUFFERED: "1"

inputs:
  - id: repository
    description: Package index to upload to
    type: pick
    options: [testpypi, pypi]
    default: testpypi

tasks:
  clean:
    description: Remove previous build artifacts
    run: rm -rf dist *.egg-info

  build:
    description: Build sdist and wheel
    run: python -m build
    produces: [dist/*]

  upload:
    description: Upload distributions with twine
    run: twine upload --repository ${input:repository} --skip-existing --verbose dist/*
    consumes: [dist/*]
    retry:
      attempts: 2
      delay: 2s

  release:
    description: Clean, build and upload the package
    deps: [clean, build, upload]
    order: sequence
`

// Init writes the starter task file. It refuses to overwrite an
// existing file unless force is set.
func Init(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.WriteFile(path, []byte(starterFile), 0o644); err != nil {
		return fmt.Errorf("write starter file: %w", err)
	}
	return nil
}
