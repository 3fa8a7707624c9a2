package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/core-tools/hsu-micromanage/pkg/errors"
)

// ValidateProcessSpec validates a single process spec
func ValidateProcessSpec(spec ProcessSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return errors.NewValidationError("process name is required", nil)
	}

	if strings.TrimSpace(spec.Command) == "" {
		return errors.NewValidationError("command is required", nil).WithContext("name", spec.Name)
	}

	if spec.WorkingDirectory != "" {
		if !filepath.IsAbs(spec.WorkingDirectory) {
			return errors.NewValidationError("working directory must be absolute path", nil).
				WithContext("name", spec.Name)
		}

		if info, err := os.Stat(spec.WorkingDirectory); err != nil {
			return errors.NewValidationError("working directory not accessible: "+spec.WorkingDirectory, err).
				WithContext("name", spec.Name)
		} else if !info.IsDir() {
			return errors.NewValidationError("working directory is not a directory: "+spec.WorkingDirectory, nil).
				WithContext("name", spec.Name)
		}
	}

	for _, env := range spec.Environment {
		if idx := strings.Index(env, "="); idx <= 0 {
			return errors.NewValidationError("invalid environment variable format: "+env, nil).
				WithContext("name", spec.Name)
		}
	}

	return nil
}

// ValidateProcessSpecs validates every spec and that names are unique.
// Errors for all invalid specs are collected, not just the first.
func ValidateProcessSpecs(specs []ProcessSpec) error {
	collection := errors.NewErrorCollection()
	seen := make(map[string]int, len(specs))

	for i, spec := range specs {
		if err := ValidateProcessSpec(spec); err != nil {
			collection.Add(fmt.Errorf("process %d: %w", i, err))
			continue
		}
		if first, ok := seen[spec.Name]; ok {
			collection.Add(errors.NewValidationError(
				fmt.Sprintf("duplicate process name %q (entries %d and %d)", spec.Name, first, i), nil))
			continue
		}
		seen[spec.Name] = i
	}

	return collection.ToError()
}
