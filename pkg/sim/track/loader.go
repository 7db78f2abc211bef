package track

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/racesim/pkg/geom"
)

const (
	MinFormatVersion = "v1.0.0"
	MaxFormatVersion = "v2.0.0" // exclusive
)

var ErrUnsupportedFormat = errors.New("unsupported track format version")

// Definition is the yaml representation of a track
type Definition struct {
	FormatVersion  string       `yaml:"formatVersion"`
	Name           string       `yaml:"name"`
	Spacing        float64      `yaml:"spacing,omitempty"`
	MaxSpeed       float64      `yaml:"maxSpeed,omitempty"`
	MinCornerSpeed float64      `yaml:"minCornerSpeed,omitempty"`
	Points         [][2]float64 `yaml:"points"`
}

// CheckFormatVersion accepts versions with or without the leading "v".
func CheckFormatVersion(toCheck string) error {
	if !strings.HasPrefix(toCheck, "v") {
		toCheck = "v" + toCheck
	}
	if !semver.IsValid(toCheck) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, toCheck)
	}
	if semver.Compare(toCheck, MinFormatVersion) < 0 ||
		semver.Compare(toCheck, MaxFormatVersion) >= 0 {
		return fmt.Errorf("%w: %s (need >= %s, < %s)",
			ErrUnsupportedFormat, toCheck, MinFormatVersion, MaxFormatVersion)
	}
	return nil
}

// Build creates the racing line described by d
func (d *Definition) Build() (*RacingLine, error) {
	if err := CheckFormatVersion(d.FormatVersion); err != nil {
		return nil, err
	}
	if len(d.Points) == 0 {
		return nil, fmt.Errorf("track %q: %w", d.Name, ErrNoWaypoints)
	}
	control := make([]geom.Vec3, len(d.Points))
	for i, p := range d.Points {
		control[i] = geom.Flat(p[0], p[1])
	}
	return Generate(control, d.Spacing,
		WithName(d.Name),
		WithMaxSpeed(d.MaxSpeed),
		WithMinCornerSpeed(d.MinCornerSpeed),
	)
}

func Parse(data []byte) (*Definition, error) {
	return Decode(bytes.NewReader(data))
}

func Decode(r io.Reader) (*Definition, error) {
	var d Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode track: %w", err)
	}
	return &d, nil
}

// LoadFile reads a track definition file and builds its racing line
func LoadFile(path string) (*RacingLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l, err := d.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Encode writes d as yaml
func (d *Definition) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}
