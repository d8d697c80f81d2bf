// Package script loads and runs scripted sequences of SimpleFS operations
package script

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	commonerrors "github.com/deploymenttheory/go-simplefs/internal/common/errors"
	"github.com/deploymenttheory/go-simplefs/internal/config"
	"github.com/deploymenttheory/go-simplefs/internal/logger"
	"github.com/deploymenttheory/go-simplefs/internal/report"
	"github.com/deploymenttheory/go-simplefs/internal/session"
	"github.com/spf13/viper"
)

// LoadScript reads a script from a YAML or JSON file
func LoadScript(filePath string) (*Script, error) {
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: script %s", commonerrors.ErrFileNotFound, filePath)
		}
		return nil, fmt.Errorf("%w: %v", commonerrors.ErrFileReadError, err)
	}
	defer f.Close()

	// Default to YAML if no extension
	format := "yaml"
	if ext := strings.ToLower(filepath.Ext(filePath)); ext != "" {
		format = ext[1:]
	}

	s, err := ParseScript(f, format)
	if err != nil {
		return nil, err
	}
	s.Variables["script_dir"] = filepath.Dir(filePath)
	return s, nil
}

// ParseScript decodes a script in the given viper config type (yaml, json, ...)
func ParseScript(r io.Reader, format string) (*Script, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading script: %w", err)
	}

	s := &Script{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("error parsing script: %w", err)
	}

	if s.Variables == nil {
		s.Variables = make(map[string]interface{})
	}
	addSystemVariables(s)
	return s, nil
}

// addSystemVariables exposes environment details to step templates
func addSystemVariables(s *Script) {
	s.Variables["disk_path"] = config.Instance.Disk.Path
	if s.Disk.Path != "" {
		s.Variables["disk_path"] = s.Disk.Path
	}

	if cwd, err := os.Getwd(); err == nil {
		s.Variables["current_dir"] = cwd
	}

	s.Variables["timestamp"] = fmt.Sprintf("%d", time.Now().Unix())
}

// processTemplate renders a single template string against the variables
func processTemplate(templateString string, variables map[string]interface{}) (string, error) {
	if !strings.Contains(templateString, "{{") {
		return templateString, nil
	}

	tmpl, err := template.New("inline").Option("missingkey=error").Parse(templateString)
	if err != nil {
		return "", err
	}

	var buffer bytes.Buffer
	if err := tmpl.Execute(&buffer, variables); err != nil {
		return "", err
	}
	return buffer.String(), nil
}

// renderParameters resolves templates in the string parameters of a step.
// Variables set by earlier steps are visible here.
func renderParameters(step Step, variables map[string]interface{}) (map[string]interface{}, error) {
	rendered := make(map[string]interface{}, len(step.Parameters))
	for key, value := range step.Parameters {
		strValue, ok := value.(string)
		if !ok {
			rendered[key] = value
			continue
		}
		processed, err := processTemplate(strValue, variables)
		if err != nil {
			return nil, fmt.Errorf("error processing template in parameter %s: %w", key, err)
		}
		rendered[key] = processed
	}
	return rendered, nil
}

// ValidateScript checks the script structure, step types, required parameters
// and template syntax, returning every problem found
func ValidateScript(s *Script) []error {
	var errs []error

	if s.Name == "" {
		errs = append(errs, fmt.Errorf("script name is required"))
	}
	if len(s.Steps) == 0 {
		errs = append(errs, fmt.Errorf("script must contain at least one step"))
	}

	for i, step := range s.Steps {
		if step.Name == "" {
			errs = append(errs, fmt.Errorf("step %d: name is required", i+1))
		}

		if step.Type == "" {
			errs = append(errs, fmt.Errorf("step %d (%s): type is required", i+1, step.Name))
		} else if !isValidStepType(step.Type) {
			errs = append(errs, fmt.Errorf("step %d (%s): invalid type '%s'", i+1, step.Name, step.Type))
		}

		for _, err := range validateStepParameters(step) {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i+1, step.Name, err))
		}
	}

	return errs
}

// isValidStepType checks if a step type has a handler
func isValidStepType(stepType string) bool {
	_, ok := stepHandlers[stepType]
	return ok
}

// requiredParameters lists the parameters each step type cannot run without
var requiredParameters = map[string][]string{
	"write":   {"inode", "data"},
	"copyin":  {"source", "inode"},
	"copyout": {"inode", "destination"},
	"read":    {"inode"},
	"remove":  {"inode"},
	"stat":    {"inode"},
}

// validateStepParameters validates parameters for a specific step type
func validateStepParameters(step Step) []error {
	var errs []error

	for _, name := range requiredParameters[step.Type] {
		if _, ok := step.Parameters[name]; !ok {
			errs = append(errs, fmt.Errorf("missing required parameter '%s'", name))
		}
	}

	if step.Condition != "" {
		if _, err := template.New("condition").Parse(step.Condition); err != nil {
			errs = append(errs, fmt.Errorf("invalid condition: %w", err))
		}
	}
	for key, value := range step.Parameters {
		if strValue, ok := value.(string); ok {
			if _, err := template.New(key).Parse(strValue); err != nil {
				errs = append(errs, fmt.Errorf("invalid template in parameter '%s': %w", key, err))
			}
		}
	}

	return errs
}

// Runner executes scripts against an open session
type Runner struct {
	Session *session.Session
	// Out receives the output of read, stat and debug steps
	Out io.Writer
	// Format is the default report format for stat and debug steps
	Format report.Format
}

// NewRunner returns a runner over s that writes step output to out
func NewRunner(s *session.Session, out io.Writer) *Runner {
	return &Runner{Session: s, Out: out, Format: report.Human}
}

// Execute runs the script steps in order, stopping at the first failure.
// Step outputs are merged into the script variables.
func (r *Runner) Execute(s *Script) error {
	logger.LogInfo("Starting script execution", map[string]interface{}{
		"script": s.Name,
		"steps":  len(s.Steps),
	})

	for i, step := range s.Steps {
		logger.LogInfo(fmt.Sprintf("Executing step %d/%d: %s", i+1, len(s.Steps), step.Name),
			map[string]interface{}{
				"type":        step.Type,
				"description": step.Description,
			})

		if step.Condition != "" {
			shouldRun, err := evaluateCondition(step.Condition, s.Variables)
			if err != nil {
				return fmt.Errorf("error evaluating condition for step '%s': %w", step.Name, err)
			}
			if !shouldRun {
				logger.LogInfo(fmt.Sprintf("Skipping step %d/%d: %s (condition not met)", i+1, len(s.Steps), step.Name), nil)
				continue
			}
		}

		handler, found := stepHandlers[step.Type]
		if !found {
			return fmt.Errorf("no handler found for step type '%s'", step.Type)
		}

		params, err := renderParameters(step, s.Variables)
		if err != nil {
			return fmt.Errorf("error preparing step '%s': %w", step.Name, err)
		}
		step.Parameters = params
		logger.LogDebug("Rendered step parameters", map[string]interface{}{
			"step":       step.Name,
			"parameters": params,
		})

		result, err := handler(r, step)
		if err != nil {
			return fmt.Errorf("error executing step '%s': %w", step.Name, err)
		}

		if len(result) > 0 {
			logger.LogDebug("Step produced outputs", map[string]interface{}{
				"step":    step.Name,
				"outputs": result,
			})
		}
		for k, v := range result {
			s.Variables[k] = v
		}
		if name, ok := params["register"].(string); ok && name != "" && result != nil {
			s.Variables[name] = result
		}

		logger.LogInfo(fmt.Sprintf("Completed step %d/%d: %s", i+1, len(s.Steps), step.Name), nil)
	}

	logger.LogInfo("Script execution completed successfully", map[string]interface{}{
		"script": s.Name,
	})
	return nil
}
