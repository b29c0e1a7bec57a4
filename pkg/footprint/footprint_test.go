package footprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/ibmetrics/pkg/dataset"
)

func TestFootprint(t *testing.T) {
	m := Default()

	tests := []struct {
		imageType string
		want      string
	}{
		{"vhd", "azure"},
		{"azure", "azure"},
		{"aws", "aws"},
		{"rhel-edge-commit", "edge"},
		{"rhel-edge-installer", "edge"},
		{"vsphere", "private-cloud"},
		{"guest-image", "private-cloud"},
		{"image-installer", "bare-metal"},
		{"unknown-type", "unknown-type"}, // open mapping: pass through
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Footprint(tt.imageType), "image type %q", tt.imageType)
	}
}

func TestApply(t *testing.T) {
	ds := dataset.Dataset{
		{JobID: "j1", ImageType: "vhd"},
		{JobID: "j2", ImageType: "aws"},
		{JobID: "j3", ImageType: "unknown-type"},
	}

	got := Default().Apply(ds)

	var footprints []string
	for _, r := range got {
		footprints = append(footprints, r.ImageType)
	}
	assert.Equal(t, []string{"azure", "aws", "unknown-type"}, footprints)

	// the input dataset is untouched
	assert.Equal(t, "vhd", ds[0].ImageType)
}

func TestApplyIdempotent(t *testing.T) {
	m := Default()

	// footprint values must not themselves be mapping keys
	for _, fp := range m {
		_, isKey := m[fp]
		if isKey {
			assert.Equal(t, fp, m[fp], "footprint %q maps to something else", fp)
		}
	}

	ds := dataset.Dataset{
		{JobID: "j1", ImageType: "vhd"},
		{JobID: "j2", ImageType: "rhel-edge-installer"},
		{JobID: "j3", ImageType: "gcp"},
	}
	once := m.Apply(ds)
	twice := m.Apply(once)
	assert.Equal(t, once, twice)
}

func TestLoad(t *testing.T) {
	doc := `
container: registry
wsl: desktop
`
	m, err := Load(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "registry", m.Footprint("container"))
	assert.Equal(t, "desktop", m.Footprint("wsl"))
	assert.Equal(t, "aws", m.Footprint("aws"))
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(strings.NewReader("[not, a, mapping]"))
	assert.Error(t, err)
}
