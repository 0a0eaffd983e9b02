package report

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/gregtusar/volhedge/pkg/models"
	"github.com/gregtusar/volhedge/pkg/replay"
)

// Metadata describes where a replay's inputs came from. Config is serialised verbatim.
type Metadata struct {
	PricesPath  string `yaml:"prices,omitempty"`
	OptionsPath string `yaml:"options,omitempty"`
	Start       string `yaml:"start,omitempty"`
	End         string `yaml:"end,omitempty"`
	Config      any    `yaml:"-"`
}

type Manifest struct {
	RunID    string         `yaml:"run_id"`
	Mode     models.Mode    `yaml:"mode"`
	Bars     int            `yaml:"bars"`
	Warmup   int            `yaml:"warmup"`
	FirstBar string         `yaml:"first_bar,omitempty"`
	LastBar  string         `yaml:"last_bar,omitempty"`
	Inputs   Metadata       `yaml:"inputs"`
	Outputs  []string       `yaml:"outputs"`
	Summary  models.Summary `yaml:"summary"`
	Config   any            `yaml:"config,omitempty"`
}

func NewManifest(res *replay.Result, meta Metadata, outputs []string) Manifest {
	m := Manifest{
		RunID:   res.RunID,
		Mode:    res.Mode,
		Bars:    len(res.Rows),
		Warmup:  res.Warmup,
		Inputs:  meta,
		Outputs: outputs,
		Summary: res.Summary,
		Config:  meta.Config,
	}
	if n := len(res.Rows); n > 0 {
		m.FirstBar = stamp(res.Rows[0].Timestamp)
		m.LastBar = stamp(res.Rows[n-1].Timestamp)
	}
	return m
}

func WriteManifest(w io.Writer, m Manifest) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return enc.Close()
}
