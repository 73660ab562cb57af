package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlTopology is the on-disk shape of `-config chip.yaml` (SPEC_FULL.md
// §2.2/§6), following the teacher's own YAML-config idiom
// (zeonica/core/program.go's `yaml:"..."`-tagged structs loaded with
// `os.ReadFile` + `yaml.Unmarshal`).
type yamlTopology struct {
	Shires    int    `yaml:"shires"`
	IOShire   int    `yaml:"io_shire"`
	MemShires []int  `yaml:"mem_shires"`
	DRAMGiB   int    `yaml:"dram_gib"`
	BootImage string `yaml:"boot_image"`
}

// LoadTopologyYAML reads a chip.yaml file and applies its fields onto b,
// returning the updated builder. Fields absent from the file leave b's
// existing value untouched, so a caller can layer -shires/-dram-size
// flags underneath a -config file or vice versa. shires, io_shire and
// mem_shires are applied together whenever shires is present, so an
// absent io_shire or mem_shires then becomes 0 or empty.
func (b ChipBuilder) LoadTopologyYAML(path string) (ChipBuilder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return b, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var t yamlTopology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return b, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if t.Shires > 0 {
		b = b.WithShires(t.Shires, t.IOShire, t.MemShires)
	}
	if t.DRAMGiB > 0 {
		b = b.WithDRAMSize(t.DRAMGiB)
	}
	if t.BootImage != "" {
		image, err := os.ReadFile(t.BootImage)
		if err != nil {
			return b, fmt.Errorf("config: reading boot image %s: %w", t.BootImage, err)
		}
		b = b.WithBootImage(image)
	}
	return b, nil
}
