package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ducminhle1904/strategy-lab/internal/strategy"
	"github.com/ducminhle1904/strategy-lab/pkg/optimization"
)

// DefaultJSONFormatter implements JSON output functionality
type DefaultJSONFormatter struct {
	paths *DefaultPathManager
}

// NewDefaultJSONFormatter creates a new JSON formatter
func NewDefaultJSONFormatter() *DefaultJSONFormatter {
	return &DefaultJSONFormatter{paths: NewDefaultPathManager()}
}

// Format returns indented JSON.
func (f *DefaultJSONFormatter) Format(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// Print writes v as indented JSON to w.
func (f *DefaultJSONFormatter) Print(w io.Writer, v interface{}) error {
	data, err := f.Format(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// WriteJSON writes v as indented JSON to path, creating its directory.
func (f *DefaultJSONFormatter) WriteJSON(v interface{}, path string) error {
	data, err := f.Format(v)
	if err != nil {
		return err
	}
	if err := f.paths.EnsureDirectoryExists(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// BestDefinition applies the best parameters of an optimization run to its template,
// giving a strategy file that can be backtested directly.
func BestDefinition(template strategy.Definition, result *optimization.Result) (strategy.Definition, error) {
	if result == nil || result.BestTrial == nil {
		return strategy.Definition{}, fmt.Errorf("optimization produced no best trial")
	}
	return strategy.ApplyParams(template, result.BestParams)
}

// WriteBestConfigJSON writes the best strategy definition of an optimization run.
func WriteBestConfigJSON(template strategy.Definition, result *optimization.Result, path string) error {
	def, err := BestDefinition(template, result)
	if err != nil {
		return err
	}
	return NewDefaultJSONFormatter().WriteJSON(def, path)
}
