// SPDX-License-Identifier: GPL-3.0-or-later

package script

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bassosimone/dsl"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScript indicates that a script is not well formed.
var ErrInvalidScript = errors.New("script: invalid script")

// Script is a parsed pipeline script.
type Script struct {
	// Pipeline contains the steps to compose.
	Pipeline []Step `yaml:"pipeline" json:"pipeline"`
}

// Step is a single-key mapping from a [dsl.StageName] to its options.
//
// Step is an alias: the YAML decoder reuses the type of the outer
// mapping for nested mappings, which must be map[string]any.
type Step = map[string]any

// Load reads a script from the given path.
//
// Files with the ".json" extension are parsed as JSON, all the other
// files are parsed as YAML.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		return ParseJSON(data)
	}
	return ParseYAML(data)
}

// ParseYAML parses a YAML script.
func ParseYAML(data []byte) (*Script, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var script Script
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidScript, err.Error())
	}
	return &script, nil
}

// ParseJSON parses a JSON script.
func ParseJSON(data []byte) (*Script, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	decoder.UseNumber()
	var script Script
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidScript, err.Error())
	}
	return &script, nil
}

// Build builds the [*dsl.Stage] tree described by the script.
//
// Errors wrap [ErrInvalidScript] and, when a constructor rejects
// its arguments, [dsl.ErrInvalidArgument].
func (s *Script) Build() (*dsl.Stage, error) {
	steps := make([]any, 0, len(s.Pipeline))
	for _, step := range s.Pipeline {
		steps = append(steps, step)
	}
	return buildSteps("pipeline", steps)
}

func buildSteps(where string, steps []any) (*dsl.Stage, error) {
	if len(steps) <= 0 {
		return nil, fmt.Errorf("%w: %s: no steps", ErrInvalidScript, where)
	}
	var stages []*dsl.Stage
	for idx, step := range steps {
		stage, err := buildStep(fmt.Sprintf("%s[%d]", where, idx), step)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	if len(stages) == 1 {
		return stages[0], nil
	}
	return dsl.Compose(stages...)
}

func buildStep(where string, step any) (*dsl.Stage, error) {
	mapping, ok := step.(map[string]any)
	if !ok || len(mapping) != 1 {
		return nil, fmt.Errorf("%w: %s: a step must be a single-key mapping", ErrInvalidScript, where)
	}
	var (
		name  string
		value any
	)
	for name, value = range mapping {
		// a single iteration
	}
	where = fmt.Sprintf("%s.%s", where, name)

	if dsl.StageName(name) == dsl.StageNewEndpointPipeline {
		steps, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s: expected a list of steps", ErrInvalidScript, where)
		}
		child, err := buildSteps(where, steps)
		if err != nil {
			return nil, err
		}
		return dsl.NewEndpointPipeline(child)
	}

	build, found := builders[dsl.StageName(name)]
	if !found {
		return nil, fmt.Errorf("%w: %s: unknown stage", ErrInvalidScript, where)
	}
	options, err := stepOptions(where, value)
	if err != nil {
		return nil, err
	}
	stage, err := build(options)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidScript, where, err)
	}
	return stage, nil
}

func stepOptions(where string, value any) (dsl.Options, error) {
	switch value := value.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return dsl.Options(value), nil
	default:
		return nil, fmt.Errorf("%w: %s: expected a mapping of options", ErrInvalidScript, where)
	}
}

// decode decodes the options into the given struct pointer.
//
// Options of the wrong type fail with a [*dsl.InvalidArgumentError] for op.
func decode(op string, options dsl.Options, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      false,
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: false,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(map[string]any(options)); err != nil {
		return &dsl.InvalidArgumentError{Op: op, Reason: err.Error()}
	}
	return nil
}
