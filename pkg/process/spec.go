package process

import (
	"fmt"
	"strings"
)

// ProcessSpec describes how to launch one managed process. It is read once
// from configuration and never mutated afterwards.
type ProcessSpec struct {
	Name             string   `yaml:"name" json:"name"`
	Command          string   `yaml:"command" json:"command"`
	Arguments        []string `yaml:"arguments,omitempty" json:"arguments,omitempty"`
	WorkingDirectory string   `yaml:"working_directory,omitempty" json:"working_directory,omitempty"`
	Environment      []string `yaml:"environment,omitempty" json:"environment,omitempty"`
}

// CommandLine renders the command and its arguments for display and logs.
func (s ProcessSpec) CommandLine() string {
	if len(s.Arguments) == 0 {
		return s.Command
	}
	return fmt.Sprintf("%s %s", s.Command, strings.Join(s.Arguments, " "))
}
