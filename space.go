package cho

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
)

// Space is the ordered list of tunable dimensions of a run. It is fixed for
// the lifetime of the run and safe to share read-only.
type Space struct {
	dims []Dimension
}

// HarmonicDrive is the (offset, slope) pair of one custom harmonic, as
// reconstructed from dimensions named "<harmonic>_offset" and
// "<harmonic>_slope". A missing coordinate is reported as zero.
type HarmonicDrive struct {
	Harmonic string  `json:"harmonic"`
	Offset   float64 `json:"offset"`
	Slope    float64 `json:"slope"`
}

//////
// Factory.
//////

// NewSpace validates dims and returns the parameter space they describe.
//
// Returns a *ConfigurationError when:
// - no dimension is given
// - a bound is NaN or infinite
// - Lower >= Upper
// - two dimensions share the same non-empty name
func NewSpace(dims ...Dimension) (*Space, error) {
	if len(dims) == 0 {
		return nil, &ConfigurationError{Field: "Dimensions", Reason: "must contain at least one dimension"}
	}

	seen := make(map[string]bool, len(dims))

	for i, d := range dims {
		name := d.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}

		if math.IsNaN(d.Lower) || math.IsNaN(d.Upper) || math.IsInf(d.Lower, 0) || math.IsInf(d.Upper, 0) {
			return nil, &ConfigurationError{Field: "Dimensions[" + name + "]", Reason: "bounds must be finite"}
		}

		if d.Lower >= d.Upper {
			return nil, &ConfigurationError{
				Field:  "Dimensions[" + name + "]",
				Reason: fmt.Sprintf("lower bound %g must be less than upper bound %g", d.Lower, d.Upper),
			}
		}

		if d.Name != "" {
			if seen[d.Name] {
				return nil, &ConfigurationError{Field: "Dimensions[" + name + "]", Reason: "duplicate name"}
			}

			seen[d.Name] = true
		}
	}

	out := make([]Dimension, len(dims))
	copy(out, dims)

	return &Space{dims: out}, nil
}

//////
// Methods.
//////

// Len returns the number of dimensions.
func (s *Space) Len() int {
	return len(s.dims)
}

// Dimensions returns a copy of the dimension list.
func (s *Space) Dimensions() []Dimension {
	out := make([]Dimension, len(s.dims))
	copy(out, s.dims)

	return out
}

// SampleUniform draws every coordinate independently and uniformly from its
// bounds. rng is the random source owned by the run; the same seed yields
// the same sequence of vectors.
func (s *Space) SampleUniform(rng *rand.Rand) []float64 {
	x := make([]float64, len(s.dims))
	for i, d := range s.dims {
		x[i] = clamp(d.Lower+rng.Float64()*(d.Upper-d.Lower), d.Lower, d.Upper)
	}

	return x
}

// Validate reports whether x has one coordinate per dimension and every
// coordinate lies within its inclusive bounds.
func (s *Space) Validate(x []float64) bool {
	if len(x) != len(s.dims) {
		return false
	}

	for i, d := range s.dims {
		if math.IsNaN(x[i]) || x[i] < d.Lower || x[i] > d.Upper {
			return false
		}
	}

	return true
}

// Normalize maps x to the unit cube, each coordinate rescaled by its
// bounds. The surrogate works on normalized coordinates so that dimensions
// with different physical units (m vs. m/coil) are comparable.
func (s *Space) Normalize(x []float64) []float64 {
	u := make([]float64, len(s.dims))
	for i, d := range s.dims {
		u[i] = (x[i] - d.Lower) / (d.Upper - d.Lower)
	}

	return u
}

// Denormalize maps u from the unit cube back to physical units. The result
// is clamped to the bounds, so it always passes Validate.
func (s *Space) Denormalize(u []float64) []float64 {
	x := make([]float64, len(s.dims))
	for i, d := range s.dims {
		x[i] = clamp(d.Lower+clamp(u[i], 0, 1)*(d.Upper-d.Lower), d.Lower, d.Upper)
	}

	return x
}

// Harmonics groups the coordinates of x by harmonic, using the dimension
// names "<harmonic>_offset" and "<harmonic>_slope". Dimensions that do not
// follow this naming are skipped. Harmonics are returned in the order of
// their first dimension.
func (s *Space) Harmonics(x []float64) []HarmonicDrive {
	var drives []HarmonicDrive

	index := map[string]int{}

	for i, d := range s.dims {
		if i >= len(x) {
			break
		}

		harmonic, kind, ok := splitDriveName(d.Name)
		if !ok {
			continue
		}

		j, found := index[harmonic]
		if !found {
			j = len(drives)
			index[harmonic] = j
			drives = append(drives, HarmonicDrive{Harmonic: harmonic})
		}

		if kind == "offset" {
			drives[j].Offset = x[i]
		} else {
			drives[j].Slope = x[i]
		}
	}

	return drives
}

// splitDriveName splits "B3_offset" into ("B3", "offset").
func splitDriveName(name string) (harmonic, kind string, ok bool) {
	i := strings.LastIndex(name, "_")
	if i <= 0 || i == len(name)-1 {
		return "", "", false
	}

	kind = strings.ToLower(name[i+1:])
	if kind != "offset" && kind != "slope" {
		return "", "", false
	}

	return name[:i], kind, true
}
