package store

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ahlgreen/tonecraft/internal/arrange"
)

// ExportYAML serializes one arrangement for human-readable interchange.
func ExportYAML(a *arrange.Arrangement) ([]byte, error) {
	data, err := yaml.Marshal(a)
	return data, errors.Wrap(err, "export arrangement yaml")
}

// ImportYAML decodes an arrangement from YAML. The result gets a fresh
// id when the document carries none, and its tempo and length are
// validated against the usual domains.
func ImportYAML(data []byte) (*arrange.Arrangement, error) {
	var a arrange.Arrangement
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrap(err, "import arrangement yaml")
	}
	if a.BPM < arrange.MinBPM || a.BPM > arrange.MaxBPM {
		return nil, arrange.ErrBPMRange
	}
	if a.Bars < arrange.MinBars || a.Bars > arrange.MaxBars {
		return nil, arrange.ErrBarsRange
	}
	if len(a.Lanes) == 0 {
		return nil, errors.New("import arrangement yaml: no lanes")
	}
	if a.ID == "" {
		a.ID = arrange.NewID()
	}
	return &a, nil
}
