package script

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	commonerrors "github.com/deploymenttheory/go-simplefs/internal/common/errors"
	"github.com/deploymenttheory/go-simplefs/internal/common/fsutil"
	"github.com/deploymenttheory/go-simplefs/internal/logger"
	"github.com/deploymenttheory/go-simplefs/internal/report"
	"github.com/deploymenttheory/go-simplefs/internal/sfs"
)

// StepHandler executes one step with its parameters already rendered and
// returns the values to publish as variables
type StepHandler func(r *Runner, step Step) (map[string]interface{}, error)

var stepHandlers = map[string]StepHandler{
	"format":  handleFormatStep,
	"mount":   handleMountStep,
	"unmount": handleUnmountStep,
	"create":  handleCreateStep,
	"write":   handleWriteStep,
	"copyin":  handleCopyInStep,
	"copyout": handleCopyOutStep,
	"read":    handleReadStep,
	"remove":  handleRemoveStep,
	"stat":    handleStatStep,
	"debug":   handleDebugStep,
}

// evaluateCondition renders the condition and checks whether it reads as true
func evaluateCondition(condition string, variables map[string]interface{}) (bool, error) {
	result, err := processTemplate(condition, variables)
	if err != nil {
		return false, err
	}

	result = strings.TrimSpace(strings.ToLower(result))
	return result == "true" || result == "yes" || result == "1", nil
}

func invalidParameter(step Step, name string, reason string) error {
	logger.LogError(fmt.Sprintf("%s step requires a valid %s parameter", step.Type, name), nil, map[string]interface{}{
		"step": step.Name,
	})
	return fmt.Errorf("%w: parameter '%s' %s", commonerrors.ErrInvalidArgument, name, reason)
}

func stringParam(step Step, name string) (string, error) {
	value, ok := step.Parameters[name]
	if !ok {
		return "", invalidParameter(step, name, "is missing")
	}
	s, ok := value.(string)
	if !ok {
		return fmt.Sprint(value), nil
	}
	return s, nil
}

// uintParam accepts YAML integers, JSON numbers and rendered template strings
func uintParam(step Step, name string, fallback uint32) (uint32, error) {
	value, ok := step.Parameters[name]
	if !ok {
		return fallback, nil
	}

	switch v := value.(type) {
	case int:
		if v >= 0 && int64(v) <= int64(^uint32(0)) {
			return uint32(v), nil
		}
	case int64:
		if v >= 0 && v <= int64(^uint32(0)) {
			return uint32(v), nil
		}
	case uint32:
		return v, nil
	case uint64:
		if v <= uint64(^uint32(0)) {
			return uint32(v), nil
		}
	case float64:
		if v >= 0 && v <= float64(^uint32(0)) && v == float64(uint32(v)) {
			return uint32(v), nil
		}
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err == nil {
			return uint32(n), nil
		}
	}
	return 0, invalidParameter(step, name, fmt.Sprintf("is not an unsigned 32-bit number: %v", value))
}

func boolParam(step Step, name string) bool {
	switch v := step.Parameters[name].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	}
	return false
}

func inodeParam(step Step) (uint32, error) {
	if _, ok := step.Parameters["inode"]; !ok {
		return 0, invalidParameter(step, "inode", "is missing")
	}
	return uintParam(step, "inode", 0)
}

// reportFormat returns the step's format parameter or the runner default
func (r *Runner) reportFormat(step Step) (report.Format, error) {
	name, ok := step.Parameters["format"].(string)
	if !ok || name == "" {
		return r.Format, nil
	}
	return report.ParseFormat(name)
}

func handleFormatStep(r *Runner, step Step) (map[string]interface{}, error) {
	if err := r.Session.Format(boolParam(step, "force")); err != nil {
		return nil, err
	}
	return nil, nil
}

func handleMountStep(r *Runner, step Step) (map[string]interface{}, error) {
	if err := r.Session.Mount(); err != nil {
		return nil, err
	}
	return map[string]interface{}{"free_blocks": r.Session.FileSystem().FreeBlocks()}, nil
}

func handleUnmountStep(r *Runner, step Step) (map[string]interface{}, error) {
	r.Session.Unmount()
	return nil, nil
}

func handleCreateStep(r *Runner, step Step) (map[string]interface{}, error) {
	n, err := r.Session.FileSystem().Create()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"inode": int(n)}, nil
}

func handleWriteStep(r *Runner, step Step) (map[string]interface{}, error) {
	n, err := inodeParam(step)
	if err != nil {
		return nil, err
	}
	data, err := stringParam(step, "data")
	if err != nil {
		return nil, err
	}
	offset, err := uintParam(step, "offset", 0)
	if err != nil {
		return nil, err
	}

	written, err := r.Session.FileSystem().Write(n, []byte(data), offset)
	if err != nil {
		return nil, fmt.Errorf("wrote %d of %d bytes: %w", written, len(data), err)
	}
	return map[string]interface{}{"written": written}, nil
}

func handleCopyInStep(r *Runner, step Step) (map[string]interface{}, error) {
	n, err := inodeParam(step)
	if err != nil {
		return nil, err
	}
	src, err := stringParam(step, "source")
	if err != nil {
		return nil, err
	}

	copied, err := r.Session.CopyIn(src, n)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"bytes": int(copied)}, nil
}

func handleCopyOutStep(r *Runner, step Step) (map[string]interface{}, error) {
	n, err := inodeParam(step)
	if err != nil {
		return nil, err
	}
	dst, err := stringParam(step, "destination")
	if err != nil {
		return nil, err
	}

	copied, err := r.Session.CopyOut(n, dst)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"bytes": int(copied)}, nil
}

func handleReadStep(r *Runner, step Step) (map[string]interface{}, error) {
	n, err := inodeParam(step)
	if err != nil {
		return nil, err
	}
	offset, err := uintParam(step, "offset", 0)
	if err != nil {
		return nil, err
	}

	fs := r.Session.FileSystem()
	size, err := fs.Stat(n)
	if err != nil {
		return nil, err
	}
	var remaining uint32
	if offset < size {
		remaining = size - offset
	}
	length, err := uintParam(step, "length", remaining)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, length)
	read, err := fs.Read(n, buf, offset)
	if err != nil {
		return nil, err
	}
	if !boolParam(step, "quiet") {
		if _, err := r.Out.Write(buf[:read]); err != nil {
			return nil, fmt.Errorf("%w: %v", commonerrors.ErrFileWriteError, err)
		}
	}
	return map[string]interface{}{"data": string(buf[:read]), "bytes": read}, nil
}

func handleRemoveStep(r *Runner, step Step) (map[string]interface{}, error) {
	n, err := inodeParam(step)
	if err != nil {
		return nil, err
	}
	return nil, r.Session.FileSystem().Remove(n)
}

func handleStatStep(r *Runner, step Step) (map[string]interface{}, error) {
	n, err := inodeParam(step)
	if err != nil {
		return nil, err
	}
	format, err := r.reportFormat(step)
	if err != nil {
		return nil, err
	}

	size, err := r.Session.FileSystem().Stat(n)
	if err != nil {
		return nil, err
	}
	if !boolParam(step, "quiet") {
		if err := report.RenderFileInfo(r.Out, report.FileInfo{Inode: n, Size: size}, format); err != nil {
			return nil, err
		}
	}
	return map[string]interface{}{"size": int(size)}, nil
}

func handleDebugStep(r *Runner, step Step) (map[string]interface{}, error) {
	format, err := r.reportFormat(step)
	if err != nil {
		return nil, err
	}

	rep, err := sfs.Debug(r.Session.Disk())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, rep, format); err != nil {
		return nil, err
	}

	if output, ok := step.Parameters["output"].(string); ok && output != "" {
		if err := fsutil.WriteFileAtomic(output, &buf, 0644); err != nil {
			return nil, err
		}
	} else if _, err := buf.WriteTo(r.Out); err != nil {
		return nil, fmt.Errorf("%w: %v", commonerrors.ErrFileWriteError, err)
	}

	return map[string]interface{}{
		"magic_valid":  rep.MagicValid,
		"valid_inodes": len(rep.Inodes),
	}, nil
}
