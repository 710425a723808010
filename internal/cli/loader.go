package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/incoq/internal/incast"
	"github.com/roach88/incoq/internal/symtab"
)

// LoadError represents an error that occurred while loading a program or
// its configuration.
type LoadError struct {
	Code    string
	Message string
	Path    string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands. Compiler
// failures keep the codes of the compiler package (E1xx, E2xx).
const (
	ErrCodeGeneric          = "E001" // Generic/unknown error
	ErrCodeReadFailed       = "E002" // File read error
	ErrCodeParseFailed      = "E003" // Program is not a valid tree
	ErrCodeConfigFailed     = "E004" // Config could not be loaded
	ErrCodeNotFound         = "E005" // Path not found
	ErrCodeDatabase         = "E006" // Database error
	ErrCodeWriteFailed      = "E007" // File write error
	ErrCodeUnknownQuery     = "E008" // Query not present in the program
	ErrCodeRuntime          = "E009" // Program failed at run time
	ErrCodeNondeterministic = "E010" // Same input compiled to different output
)

// Loaded is a program together with the configuration to compile it with.
type Loaded struct {
	Program    *incast.Program
	Config     *symtab.Config
	ConfigPath string
}

// LoadProgram reads a YAML program file.
func LoadProgram(path string) (*incast.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("program not found: %s", path), Path: path}
		}
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading program: %v", err), Path: path}
	}
	prog, err := incast.ParseProgram(data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("%s: %v", path, err), Path: path}
	}
	return prog, nil
}

// LoadConfig reads a CUE symbol configuration. An empty path yields the
// default configuration.
func LoadConfig(path string) (*symtab.Config, error) {
	if path == "" {
		return symtab.DefaultConfig(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config not found: %s", path), Path: path}
	}
	cfg, err := symtab.LoadConfig(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeConfigFailed, Message: err.Error(), Path: path}
	}
	return cfg, nil
}

// Load reads a program and its optional configuration.
func Load(programPath, configPath string) (*Loaded, error) {
	prog, err := LoadProgram(programPath)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return &Loaded{Program: prog, Config: cfg, ConfigPath: configPath}, nil
}

// writeProgram writes a program as YAML in the format LoadProgram reads.
func writeProgram(p *incast.Program, filename string) error {
	data, err := yaml.Marshal(incast.EncodeProgram(p))
	if err != nil {
		return fmt.Errorf("marshaling program: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// loadErrorCode returns the code of a LoadError, or ErrCodeGeneric.
func loadErrorCode(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}
