// Package shell interprets line commands against a mounted file system.
package shell

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/weberc2/sfs/pkg/filesys"
	. "github.com/weberc2/sfs/pkg/types"
)

const ExitErr ConstError = "exit"

type Shell struct {
	fs      *filesys.FileSystem
	session *filesys.Session
	out     io.Writer
}

// New returns a shell with its own session on `fs`, writing command output
// to `out`.
func New(fs *filesys.FileSystem, out io.Writer) *Shell {
	return &Shell{fs: fs, session: fs.Session(), out: out}
}

func (sh *Shell) Close() error { return sh.session.Close() }

// LineReader is satisfied by *term.Terminal.
type LineReader interface {
	ReadLine() (string, error)
}

// Run executes lines from `lines` until `exit` or end of input. Command
// errors are printed and don't stop the loop.
func (sh *Shell) Run(lines LineReader) error {
	for {
		line, err := lines.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading command: %w", err)
		}
		if err := sh.Exec(line); err != nil {
			if errors.Is(err, ExitErr) {
				return nil
			}
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

type command struct {
	usage string
	args  func(n int) bool
	run   func(sh *Shell, args []string) error
}

func exactly(want int) func(int) bool { return func(n int) bool { return n == want } }

func between(lo, hi int) func(int) bool {
	return func(n int) bool { return n >= lo && n <= hi }
}

func atLeast(lo int) func(int) bool { return func(n int) bool { return n >= lo } }

var commands map[string]command

func init() {
	commands = map[string]command{
		"ls":     {usage: "ls [path]", args: between(0, 1), run: (*Shell).ls},
		"cd":     {usage: "cd path", args: exactly(1), run: (*Shell).cd},
		"pwd":    {usage: "pwd", args: exactly(0), run: (*Shell).pwd},
		"mkdir":  {usage: "mkdir path", args: exactly(1), run: (*Shell).mkdir},
		"touch":  {usage: "touch path [size]", args: between(1, 2), run: (*Shell).touch},
		"cat":    {usage: "cat path", args: exactly(1), run: (*Shell).cat},
		"write":  {usage: "write path text...", args: atLeast(1), run: (*Shell).write},
		"append": {usage: "append path text...", args: atLeast(1), run: (*Shell).append},
		"rm":     {usage: "rm path", args: exactly(1), run: (*Shell).rm},
		"stat":   {usage: "stat path", args: exactly(1), run: (*Shell).stat},
		"df":     {usage: "df", args: exactly(0), run: (*Shell).df},
		"help":   {usage: "help", args: exactly(0), run: (*Shell).help},
		"exit":   {usage: "exit", args: exactly(0), run: (*Shell).exit},
	}
}

// Exec runs one command line. Blank lines and lines starting with '#' do
// nothing. `exit` returns `ExitErr`.
func (sh *Shell) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) < 1 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	cmd, found := commands[fields[0]]
	if !found {
		return fmt.Errorf("unknown command `%s`; try `help`", fields[0])
	}
	if !cmd.args(len(fields) - 1) {
		return fmt.Errorf("usage: %s", cmd.usage)
	}
	return cmd.run(sh, fields[1:])
}

func (sh *Shell) ls(args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	f, err := sh.session.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if !f.IsDir() {
		fmt.Fprintln(sh.out, path)
		return nil
	}
	var names []string
	for {
		name, err := f.ReadDir()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(sh.out, name)
	}
	return nil
}

func (sh *Shell) cd(args []string) error { return sh.session.Chdir(args[0]) }

func (sh *Shell) pwd(args []string) error {
	cwd, err := sh.session.Cwd()
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, cwd)
	return nil
}

func (sh *Shell) mkdir(args []string) error { return sh.session.Mkdir(args[0]) }

func (sh *Shell) touch(args []string) error {
	var size Byte
	if len(args) > 1 {
		n, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("parsing size `%s`: %w", args[1], err)
		}
		size = Byte(n)
	}
	return sh.session.Create(args[0], size, KindFile)
}

func (sh *Shell) cat(args []string) error {
	f, err := sh.session.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	if f.IsDir() {
		return fmt.Errorf("cat `%s`: %w", args[0], IsADirErr)
	}
	_, err = io.Copy(sh.out, f)
	return err
}

func (sh *Shell) write(args []string) error {
	return sh.put(args[0], strings.Join(args[1:], " ")+"\n", false)
}

func (sh *Shell) append(args []string) error {
	return sh.put(args[0], strings.Join(args[1:], " ")+"\n", true)
}

// put writes `text` into the file at `path`, creating it if needed. Files
// can't shrink, so overwriting a longer file leaves its tail in place.
func (sh *Shell) put(path, text string, appending bool) error {
	if err := sh.session.Create(path, 0, KindFile); err != nil &&
		!errors.Is(err, ExistsErr) {
		return err
	}
	f, err := sh.session.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if appending {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return err
		}
	}
	_, err = io.WriteString(f, text)
	return err
}

func (sh *Shell) rm(args []string) error { return sh.session.Remove(args[0]) }

func (sh *Shell) stat(args []string) error {
	f, err := sh.session.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshaling stat: %w", err)
	}
	fmt.Fprintf(sh.out, "%s\n", data)
	return nil
}

func (sh *Shell) df(args []string) error {
	sb := sh.fs.Superblock()
	free := sh.fs.FreeSectors()
	fmt.Fprintf(
		sh.out,
		"sectors=%d used=%d free=%d bytes-free=%d\n",
		sb.Sectors,
		sb.Sectors-free,
		free,
		Byte(free)*SectorSize,
	)
	return nil
}

func (sh *Shell) help(args []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(sh.out, commands[name].usage)
	}
	return nil
}

func (sh *Shell) exit(args []string) error { return ExitErr }
