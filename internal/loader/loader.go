// Package loader decodes survey definitions from YAML, JSON or CUE files
// into the component tree.
//
// All three formats share one shape, the JSON wire form of ir.Component:
//
//	code: Survey
//	children:
//	  - code: G1
//	    children:
//	      - code: Q1
//	        instructions:
//	          - {code: value, return_type: STRING}
//	  - code: Gend
//	    group_type: END
//
// A CUE file may hold the survey at the top level or under a "survey"
// field.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
)

// Format is the encoding of a survey definition.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// Error code constants.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeParse       = "E004" // Syntax error in the file
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE evaluation failed
	ErrCodeFormat      = "E008" // Unsupported file extension
	ErrCodeInvalidTree = "E009" // Well-formed file that is not a survey tree
)

// LoadError represents an error that occurred while loading a survey.
// Line and Column are 1-based and zero when unknown.
type LoadError struct {
	Code    string
	Message string
	File    string
	Line    int
	Column  int
}

func (e *LoadError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.File, e.Line, e.Column, e.Code, e.Message)
	case e.File != "":
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	}
	return "", &LoadError{Code: ErrCodeFormat, Message: "unsupported survey format", File: path}
}

// Load reads and decodes the survey file at path.
func Load(path string) (ir.Component, error) {
	format, err := FormatOf(path)
	if err != nil {
		return ir.Component{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ir.Component{}, &LoadError{Code: ErrCodeNotFound, Message: "survey file not found", File: path}
	}
	if err != nil {
		return ir.Component{}, &LoadError{Code: ErrCodeGeneric, Message: err.Error(), File: path}
	}
	return Decode(data, format, path)
}

// Decode decodes a survey definition. filename is used in error positions.
func Decode(data []byte, format Format, filename string) (ir.Component, error) {
	var (
		raw []byte
		err error
	)
	switch format {
	case FormatJSON:
		raw, err = data, checkJSON(data, filename)
	case FormatYAML:
		raw, err = yamlToJSON(data, filename)
	case FormatCUE:
		raw, err = cueToJSON(data, filename)
	default:
		err = &LoadError{Code: ErrCodeFormat, Message: fmt.Sprintf("unsupported survey format %q", format), File: filename}
	}
	if err != nil {
		return ir.Component{}, err
	}

	var survey ir.Component
	if err := json.Unmarshal(raw, &survey); err != nil {
		return ir.Component{}, &LoadError{Code: ErrCodeInvalidTree, Message: err.Error(), File: filename}
	}
	if survey.Kind() != ir.KindSurvey {
		return ir.Component{}, &LoadError{
			Code:    ErrCodeInvalidTree,
			Message: fmt.Sprintf("root component is %s %q, expected %s", survey.Kind(), survey.Code(), ir.SurveyCode),
			File:    filename,
		}
	}
	return survey, nil
}

func checkJSON(data []byte, filename string) error {
	if json.Valid(data) {
		return nil
	}
	var v any
	err := json.Unmarshal(data, &v)
	le := &LoadError{Code: ErrCodeParse, Message: "invalid JSON", File: filename}
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		le.Message = syn.Error()
		le.Line, le.Column = lineColumn(data, syn.Offset)
	}
	return le
}

// lineColumn converts a byte offset into a 1-based line and column.
func lineColumn(data []byte, offset int64) (int, int) {
	offset = min(max(offset, 0), int64(len(data)))
	before := data[:offset]
	line := bytes.Count(before, []byte("\n")) + 1
	col := int(offset) - bytes.LastIndexByte(before, '\n')
	return line, col
}

func yamlToJSON(data []byte, filename string) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		le := &LoadError{Code: ErrCodeParse, Message: err.Error(), File: filename}
		var line int
		if _, scanErr := fmt.Sscanf(err.Error(), "yaml: line %d:", &line); scanErr == nil {
			le.Line, le.Column = line, 1
		}
		return nil, le
	}
	if len(doc.Content) == 0 {
		return nil, &LoadError{Code: ErrCodeInvalidTree, Message: "empty survey file", File: filename}
	}
	var v any
	if err := doc.Decode(&v); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: err.Error(), File: filename}
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidTree, Message: err.Error(), File: filename}
	}
	return out, nil
}

func cueToJSON(data []byte, filename string) ([]byte, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, cueLoadError(ErrCodeParse, err, filename)
	}
	if s := value.LookupPath(cue.ParsePath("survey")); s.Exists() {
		value = s
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(ErrCodeBuildFailed, err, filename)
	}
	out, err := value.MarshalJSON()
	if err != nil {
		return nil, cueLoadError(ErrCodeBuildFailed, err, filename)
	}
	return out, nil
}

// cueLoadError keeps the position of the first CUE error.
func cueLoadError(code string, err error, filename string) *LoadError {
	le := &LoadError{Code: code, Message: err.Error(), File: filename}
	for _, e := range cueerrors.Errors(err) {
		pos := e.Position()
		if !pos.IsValid() {
			continue
		}
		le.Message = e.Error()
		if pos.Filename() != "" {
			le.File = pos.Filename()
		}
		le.Line, le.Column = pos.Line(), pos.Column()
		break
	}
	return le
}
