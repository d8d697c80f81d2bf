// Package shell implements the interactive sfs> command interpreter
package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-simplefs/internal/report"
	"github.com/deploymenttheory/go-simplefs/internal/session"
	"github.com/deploymenttheory/go-simplefs/internal/sfs"
)

// Prompt is printed before every command
const Prompt = "sfs> "

// errQuit ends the command loop
var errQuit = errors.New("quit")

type command struct {
	usage   string
	help    string
	minArgs int
	run     func(sh *Shell, args []string) error
}

// commands is filled in init since help refers back to it
var commands map[string]command

func init() {
	commands = map[string]command{
		"debug":   {"debug", "print the superblock and every valid inode", 0, (*Shell).debug},
		"format":  {"format [-f]", "write a new file system, -f overwrites an existing one", 0, (*Shell).format},
		"mount":   {"mount", "mount the file system", 0, (*Shell).mount},
		"unmount": {"unmount", "unmount the file system", 0, (*Shell).unmount},
		"create":  {"create", "allocate a new inode", 0, (*Shell).create},
		"remove":  {"remove <inode>", "release an inode and its blocks", 1, (*Shell).remove},
		"stat":    {"stat <inode>", "print the size of an inode", 1, (*Shell).stat},
		"cat":     {"cat <inode>", "print the contents of an inode", 1, (*Shell).cat},
		"copyin":  {"copyin <file> <inode>", "copy a host file into an inode", 2, (*Shell).copyin},
		"copyout": {"copyout <inode> <file>", "copy an inode into a host file", 2, (*Shell).copyout},
		"help":    {"help", "list commands", 0, (*Shell).help},
		"exit":    {"exit", "leave the shell", 0, (*Shell).quit},
		"quit":    {"quit", "leave the shell", 0, (*Shell).quit},
	}
}

// Shell reads commands from an input stream and runs them against one session
type Shell struct {
	session      *session.Session
	in           io.Reader
	out          io.Writer
	reportFormat report.Format
	prompt       bool
}

// Option configures a Shell
type Option func(*Shell)

// WithReportFormat selects how debug and stat output is rendered
func WithReportFormat(f report.Format) Option {
	return func(sh *Shell) { sh.reportFormat = f }
}

// WithoutPrompt suppresses the prompt, e.g. when input is not a terminal
func WithoutPrompt() Option {
	return func(sh *Shell) { sh.prompt = false }
}

// New returns a shell over s
func New(s *session.Session, in io.Reader, out io.Writer, opts ...Option) *Shell {
	sh := &Shell{
		session:      s,
		in:           in,
		out:          out,
		reportFormat: report.Human,
		prompt:       true,
	}
	for _, opt := range opts {
		opt(sh)
	}
	return sh
}

// Run executes commands until the input ends or the user quits. Command
// failures are printed and do not stop the loop.
func (sh *Shell) Run() error {
	reader := bufio.NewReader(sh.in)
	for {
		if sh.prompt {
			fmt.Fprint(sh.out, Prompt)
		}

		line, err := reader.ReadString('\n')
		if line == "" && err != nil {
			if sh.prompt {
				fmt.Fprintln(sh.out)
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if execErr := sh.Exec(line); errors.Is(execErr, errQuit) {
			return nil
		} else if execErr != nil {
			fmt.Fprintf(sh.out, "error: %v\n", execErr)
		}
	}
}

// Exec runs a single command line
func (sh *Shell) Exec(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 || strings.HasPrefix(args[0], "#") {
		return nil
	}

	cmd, ok := commands[strings.ToLower(args[0])]
	if !ok {
		return fmt.Errorf("unknown command %q, type help for a list", args[0])
	}
	if len(args)-1 < cmd.minArgs {
		return fmt.Errorf("usage: %s", cmd.usage)
	}
	return cmd.run(sh, args[1:])
}

func parseInode(arg string) (uint32, error) {
	n, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid inode number %q", arg)
	}
	return uint32(n), nil
}

func (sh *Shell) debug(args []string) error {
	r, err := sfs.Debug(sh.session.Disk())
	if err != nil {
		return err
	}
	return report.Render(sh.out, r, sh.reportFormat)
}

func (sh *Shell) format(args []string) error {
	force := len(args) > 0 && (args[0] == "-f" || args[0] == "--force")
	if err := sh.session.Format(force); err != nil {
		return fmt.Errorf("format failed: %w", err)
	}
	fmt.Fprintln(sh.out, "disk formatted.")
	return nil
}

func (sh *Shell) mount(args []string) error {
	if err := sh.session.Mount(); err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	fmt.Fprintln(sh.out, "disk mounted.")
	return nil
}

func (sh *Shell) unmount(args []string) error {
	sh.session.Unmount()
	fmt.Fprintln(sh.out, "disk unmounted.")
	return nil
}

func (sh *Shell) create(args []string) error {
	n, err := sh.session.FileSystem().Create()
	if err != nil {
		return fmt.Errorf("create failed: %w", err)
	}
	fmt.Fprintf(sh.out, "created inode %d.\n", n)
	return nil
}

func (sh *Shell) remove(args []string) error {
	n, err := parseInode(args[0])
	if err != nil {
		return err
	}
	if err := sh.session.FileSystem().Remove(n); err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}
	fmt.Fprintf(sh.out, "removed inode %d.\n", n)
	return nil
}

func (sh *Shell) stat(args []string) error {
	n, err := parseInode(args[0])
	if err != nil {
		return err
	}
	size, err := sh.session.FileSystem().Stat(n)
	if err != nil {
		return fmt.Errorf("stat failed: %w", err)
	}
	return report.RenderFileInfo(sh.out, report.FileInfo{Inode: n, Size: size}, sh.reportFormat)
}

func (sh *Shell) cat(args []string) error {
	n, err := parseInode(args[0])
	if err != nil {
		return err
	}
	if _, err := sh.session.ReadTo(n, sh.out); err != nil {
		return fmt.Errorf("cat failed: %w", err)
	}
	return nil
}

func (sh *Shell) copyin(args []string) error {
	n, err := parseInode(args[1])
	if err != nil {
		return err
	}
	written, err := sh.session.CopyIn(args[0], n)
	if err != nil {
		return fmt.Errorf("copyin failed after %d bytes: %w", written, err)
	}
	fmt.Fprintf(sh.out, "%d bytes copied\n", written)
	return nil
}

func (sh *Shell) copyout(args []string) error {
	n, err := parseInode(args[0])
	if err != nil {
		return err
	}
	read, err := sh.session.CopyOut(n, args[1])
	if err != nil {
		return fmt.Errorf("copyout failed after %d bytes: %w", read, err)
	}
	fmt.Fprintf(sh.out, "%d bytes copied\n", read)
	return nil
}

func (sh *Shell) help(args []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(sh.out, "Commands are:")
	for _, name := range names {
		cmd := commands[name]
		fmt.Fprintf(sh.out, "    %-24s %s\n", cmd.usage, cmd.help)
	}
	return nil
}

func (sh *Shell) quit(args []string) error {
	return errQuit
}
