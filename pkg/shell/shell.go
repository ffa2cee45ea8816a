// Package shell implements the ShellShock command interpreter: a prompt
// driven loop that reads one command per line and applies it to a volume.
package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-shellshock/internal/interfaces"
	"github.com/deploymenttheory/go-shellshock/internal/types"
)

// Banner is printed once when the shell starts.
const Banner = "ShellShock Version 0.000003"

// Prompt precedes every command.
const Prompt = "# "

// errExit stops the command loop.
var errExit = errors.New("exit")

type command struct {
	minArgs int
	maxArgs int
	usage   string
	run     func(s *Shell, args []string, rest string) error
}

var commands = map[string]command{
	"mkfs":   {0, 0, "mkfs", (*Shell).mkfs},
	"create": {2, 2, "create <name> <size>", (*Shell).create},
	"open":   {2, 2, "open <name> <mode>", (*Shell).open},
	"close":  {1, 1, "close <handle>", (*Shell).close},
	"read":   {2, 2, "read <handle> <n>", (*Shell).read},
	"write":  {2, -1, "write <handle> <data>", (*Shell).write},
	"lseek":  {2, 2, "lseek <handle> <offset>", (*Shell).lseek},
	"link":   {2, 2, "link <src> <dst>", (*Shell).link},
	"unlink": {1, 1, "unlink <name>", (*Shell).unlink},
	"mkdir":  {1, 1, "mkdir <name>", (*Shell).mkdir},
	"rmdir":  {1, 1, "rmdir <name>", (*Shell).rmdir},
	"cd":     {1, 1, "cd <name>", (*Shell).cd},
	"ls":     {0, 1, "ls [name]", (*Shell).ls},
	"stat":   {1, 1, "stat <name>", (*Shell).stat},
	"cat":    {1, 1, "cat <name>", (*Shell).cat},
	"pwd":    {0, 0, "pwd", (*Shell).pwd},
	"df":     {0, 0, "df", (*Shell).df},
	"exit":   {0, 0, "exit", (*Shell).exit},
}

// Shell reads commands from an input stream and writes their results to an
// output stream
type Shell struct {
	fs  interfaces.FileSystem
	in  *bufio.Scanner
	out *bufio.Writer
	log *slog.Logger
}

// New creates a shell over fs
func New(fs interfaces.FileSystem, in io.Reader, out io.Writer, log *slog.Logger) *Shell {
	if log == nil {
		log = slog.Default()
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Shell{
		fs:  fs,
		in:  scanner,
		out: bufio.NewWriter(out),
		log: log,
	}
}

// Run prints the banner and executes commands until exit or end of input
func (s *Shell) Run() error {
	fmt.Fprintf(s.out, "%s\n\n", Banner)
	for {
		s.out.WriteString(Prompt)
		if err := s.out.Flush(); err != nil {
			return err
		}

		if !s.in.Scan() {
			if err := s.in.Err(); err != nil {
				return fmt.Errorf("failed to read command: %w", err)
			}
			s.out.WriteString("Goodbye\n")
			return s.out.Flush()
		}

		if err := s.Execute(s.in.Text()); errors.Is(err, errExit) {
			s.out.WriteString("Goodbye\n")
			return s.out.Flush()
		}
	}
}

// Execute runs a single command line. Failures are reported on the output
// as "Error: <message>" and also returned.
func (s *Shell) Execute(line string) error {
	defer s.out.Flush()

	name, rest := cut(strings.TrimRight(line, "\r\n"))
	if name == "" {
		return nil
	}
	cmd, ok := commands[name]
	if !ok {
		return s.fail(fmt.Errorf("unknown command %q", name))
	}

	args := strings.Fields(rest)
	if len(args) < cmd.minArgs || (cmd.maxArgs >= 0 && len(args) > cmd.maxArgs) {
		return s.fail(fmt.Errorf("usage: %s", cmd.usage))
	}

	err := cmd.run(s, args, rest)
	if err != nil && !errors.Is(err, errExit) {
		s.log.Debug("command failed", slog.String("command", name), slog.Any("error", err))
		return s.fail(err)
	}
	return err
}

func (s *Shell) fail(err error) error {
	fmt.Fprintf(s.out, "Error: %v\n", err)
	return err
}

func (s *Shell) ok() error {
	s.out.WriteString("OK\n")
	return nil
}

func (s *Shell) mkfs(args []string, rest string) error {
	return s.fs.Format()
}

func (s *Shell) create(args []string, rest string) error {
	size, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", args[1], types.ErrInvalidArgument)
	}
	return s.fs.Create(args[0], size)
}

func (s *Shell) open(args []string, rest string) error {
	mode, err := strconv.ParseUint(args[1], 10, 8)
	if err != nil {
		return fmt.Errorf("invalid mode %q: %w", args[1], types.ErrBadMode)
	}
	handle, err := s.fs.Open(args[0], types.OpenMode(mode))
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "File handle is : %d\n", handle)
	return nil
}

func (s *Shell) close(args []string, rest string) error {
	handle, err := parseHandle(args[0])
	if err != nil {
		return err
	}
	if err := s.fs.Close(handle); err != nil {
		return err
	}
	return s.ok()
}

func (s *Shell) read(args []string, rest string) error {
	handle, err := parseHandle(args[0])
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 {
		return fmt.Errorf("invalid length %q: %w", args[1], types.ErrInvalidArgument)
	}
	data, err := s.fs.Read(handle, n)
	if err != nil {
		return err
	}
	s.out.Write(data)
	s.out.WriteByte('\n')
	return nil
}

// write takes everything after the handle as the data, spaces included.
func (s *Shell) write(args []string, rest string) error {
	handle, err := parseHandle(args[0])
	if err != nil {
		return err
	}
	_, data := cut(rest)
	if _, err := s.fs.Write(handle, []byte(data)); err != nil {
		return err
	}
	s.out.WriteString("Done\n")
	return nil
}

func (s *Shell) lseek(args []string, rest string) error {
	handle, err := parseHandle(args[0])
	if err != nil {
		return err
	}
	offset, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid offset %q: %w", args[1], types.ErrInvalidArgument)
	}
	if err := s.fs.Lseek(handle, offset); err != nil {
		return err
	}
	return s.ok()
}

func (s *Shell) link(args []string, rest string) error {
	return s.fs.Link(args[0], args[1])
}

func (s *Shell) unlink(args []string, rest string) error {
	if err := s.fs.Unlink(args[0]); err != nil {
		return err
	}
	return s.ok()
}

func (s *Shell) mkdir(args []string, rest string) error {
	if err := s.fs.Mkdir(args[0]); err != nil {
		return err
	}
	return s.ok()
}

func (s *Shell) rmdir(args []string, rest string) error {
	if err := s.fs.Rmdir(args[0]); err != nil {
		return err
	}
	return s.ok()
}

func (s *Shell) cd(args []string, rest string) error {
	if err := s.fs.Cd(args[0]); err != nil {
		return err
	}
	return s.ok()
}

func (s *Shell) ls(args []string, rest string) error {
	var p string
	if len(args) == 1 {
		p = args[0]
	}
	names, err := s.fs.Ls(p)
	if err != nil {
		return err
	}
	for _, name := range names {
		s.out.WriteString(name)
		s.out.WriteByte('\n')
	}
	return nil
}

func (s *Shell) stat(args []string, rest string) error {
	st, err := s.fs.Stat(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "    Inode No         : %d\n", st.Inode)
	fmt.Fprintf(s.out, "    Type             : %s\n", st.Type)
	fmt.Fprintf(s.out, "    Link Count       : %d\n", st.LinkCount)
	fmt.Fprintf(s.out, "    Size             : %d\n", st.Size)
	fmt.Fprintf(s.out, "    Blocks allocated : %d\n", st.Blocks)
	return nil
}

func (s *Shell) cat(args []string, rest string) error {
	data, err := s.fs.Cat(args[0])
	if err != nil {
		return err
	}
	s.out.Write(data)
	s.out.WriteByte('\n')
	return nil
}

func (s *Shell) pwd(args []string, rest string) error {
	s.out.WriteString(s.fs.Pwd())
	s.out.WriteByte('\n')
	return nil
}

func (s *Shell) df(args []string, rest string) error {
	u, err := s.fs.Usage()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "    Blocks           : %d used, %d free, %d total\n", u.UsedBlocks, u.FreeBlocks, u.DataBlocks)
	fmt.Fprintf(s.out, "    Inodes           : %d used, %d free, %d total\n", u.UsedInodes, u.FreeInodes, u.TotalInodes)
	fmt.Fprintf(s.out, "    Open handles     : %d of %d\n", u.OpenHandles, u.MaxHandles)
	return nil
}

func (s *Shell) exit(args []string, rest string) error {
	return errExit
}

func parseHandle(arg string) (int, error) {
	h, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid handle %q: %w", arg, types.ErrInvalidHandle)
	}
	return h, nil
}

// cut splits off the first space-separated word of line.
func cut(line string) (string, string) {
	line = strings.TrimLeft(line, " \t")
	word, rest, _ := strings.Cut(line, " ")
	return strings.TrimRight(word, "\r\t"), strings.TrimLeft(rest, " ")
}
