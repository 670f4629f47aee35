package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	errs "github.com/ducminhle1904/strategy-lab/internal/errors"
)

// JobManager loads job files by extension: .json, or .yaml/.yml.
type JobManager struct {
	validator Validator
}

// NewJobManager creates a manager with the default validator.
func NewJobManager() *JobManager {
	return &JobManager{validator: NewJobValidator()}
}

// Load reads, defaults and validates a job file. Unknown fields are rejected.
func (m *JobManager) Load(path string) (*Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.NewConfigurationError("config", "could not read job file: %v", err)
	}
	job, err := Parse(raw, formatOf(path))
	if err != nil {
		return nil, err
	}
	if err := m.validator.Validate(job); err != nil {
		return nil, err
	}
	return job, nil
}

// Parse decodes a job on top of the defaults of its kind. format is "json" or "yaml".
func Parse(raw []byte, format string) (*Job, error) {
	var head struct {
		Kind JobKind `json:"kind" yaml:"kind"`
	}
	if err := unmarshal(raw, format, &head, false); err != nil {
		return nil, errs.NewConfigurationError("config", "could not parse job file: %v", err)
	}
	if head.Kind == "" {
		head.Kind = JobBacktest
	}

	job := NewDefaultJob(head.Kind)
	if err := unmarshal(raw, format, job, true); err != nil {
		return nil, errs.NewConfigurationError("config", "could not parse job file: %v", err)
	}
	job.Kind = head.Kind
	return job, nil
}

func unmarshal(raw []byte, format string, out interface{}, strict bool) error {
	if format == "yaml" {
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(strict)
		return dec.Decode(out)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if strict {
		dec.DisallowUnknownFields()
	}
	return dec.Decode(out)
}

// Save writes job in the format chosen by the path extension.
func (m *JobManager) Save(job *Job, path string) error {
	var (
		raw []byte
		err error
	)
	if formatOf(path) == "yaml" {
		raw, err = yaml.Marshal(job)
	} else {
		raw, err = json.MarshalIndent(job, "", "  ")
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, raw, 0644)
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}
