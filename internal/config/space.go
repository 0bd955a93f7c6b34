package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	cho "github.com/ThatTilux/CCT-Harmonics-Optimizer"
)

// SpaceFile is the YAML layout of a parameter space. Unknown keys are
// ignored, so a space may live in the same file as the settings.
//
//	harmonics:
//	  - {harmonic: B1, offset: 0.0025, slope: 0.000025}
//	  - {harmonic: B3, offset: 0.05}
//	dimensions:
//	  - {name: scale, lower: 0.9, upper: 1.1}
type SpaceFile struct {
	Harmonics  []HarmonicBounds `yaml:"harmonics"`
	Dimensions []cho.Dimension  `yaml:"dimensions"`
}

// HarmonicBounds is the shorthand for the drive of one custom harmonic.
// Offset and Slope are half-widths of symmetric intervals around zero; an
// omitted value means the coordinate is not tuned.
type HarmonicBounds struct {
	Harmonic string   `yaml:"harmonic"`
	Offset   *float64 `yaml:"offset"`
	Slope    *float64 `yaml:"slope"`
}

// LoadSpace loads and parses a parameter space file.
func LoadSpace(path string) ([]cho.Dimension, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read space file %s: %w", path, err)
	}

	dims, err := ParseSpaceYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse space file %s: %w", path, err)
	}

	return dims, nil
}

// ParseSpaceYAML parses a parameter space from YAML data. Harmonics expand
// to "<harmonic>_offset" then "<harmonic>_slope", in file order, followed by
// the explicit dimensions.
func ParseSpaceYAML(data []byte) ([]cho.Dimension, error) {
	var file SpaceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	var dims []cho.Dimension

	for i, h := range file.Harmonics {
		if h.Harmonic == "" {
			return nil, fmt.Errorf("harmonics[%d]: harmonic name cannot be empty", i)
		}

		if h.Offset == nil && h.Slope == nil {
			return nil, fmt.Errorf("harmonic %s: offset or slope must be set", h.Harmonic)
		}

		if h.Offset != nil {
			if *h.Offset <= 0 {
				return nil, fmt.Errorf("harmonic %s: offset must be positive", h.Harmonic)
			}

			dims = append(dims, cho.Dimension{Name: h.Harmonic + "_offset", Lower: -*h.Offset, Upper: *h.Offset})
		}

		if h.Slope != nil {
			if *h.Slope <= 0 {
				return nil, fmt.Errorf("harmonic %s: slope must be positive", h.Harmonic)
			}

			dims = append(dims, cho.Dimension{Name: h.Harmonic + "_slope", Lower: -*h.Slope, Upper: *h.Slope})
		}
	}

	dims = append(dims, file.Dimensions...)

	if len(dims) == 0 {
		return nil, errors.New("at least one harmonic or dimension must be defined")
	}

	if _, err := cho.NewSpace(dims...); err != nil {
		return nil, err
	}

	return dims, nil
}
