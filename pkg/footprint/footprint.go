// Package footprint groups fine-grained image types into coarse deployment
// footprints (edge, private-cloud, bare-metal, and the public clouds).
//
// The mapping is an explicit value rather than a package-level table so
// alternate groupings can be loaded from configuration. Image types without
// a mapping pass through unchanged: the mapping is open, not a closed enum.
// Footprint values are never themselves mapping keys, so applying a mapper
// twice is the same as applying it once.
package footprint

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/osbuild/ibmetrics/pkg/dataset"
)

// Mapper is a many-to-one mapping from image type to footprint.
type Mapper map[string]string

// Default returns the stock image-type grouping.
func Default() Mapper {
	return Mapper{
		"rhel-edge-commit":    "edge",
		"rhel-edge-installer": "edge",
		"vsphere":             "private-cloud",
		"guest-image":         "private-cloud",
		"image-installer":     "bare-metal",
		"gcp":                 "gcp",
		"aws":                 "aws",
		"azure":               "azure",
		"vhd":                 "azure",
	}
}

// Load reads a mapper from a YAML document of image-type: footprint pairs.
func Load(r io.Reader) (Mapper, error) {
	var m Mapper
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing footprint mapping: %w", err)
	}
	return m, nil
}

// Footprint returns the footprint for an image type, or the image type
// itself when it has no mapping.
func (m Mapper) Footprint(imageType string) string {
	if fp, ok := m[imageType]; ok {
		return fp
	}
	return imageType
}

// Apply returns a copy of the dataset with every record's image type
// replaced by its footprint.
func (m Mapper) Apply(ds dataset.Dataset) dataset.Dataset {
	out := make(dataset.Dataset, len(ds))
	copy(out, ds)
	for i := range out {
		out[i].ImageType = m.Footprint(out[i].ImageType)
	}
	return out
}
