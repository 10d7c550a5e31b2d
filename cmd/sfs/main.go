package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/urfave/cli/v2"
	"github.com/weberc2/sfs/pkg/device"
	"github.com/weberc2/sfs/pkg/filesys"
	sfslog "github.com/weberc2/sfs/pkg/log"
	"github.com/weberc2/sfs/pkg/seed"
	"github.com/weberc2/sfs/pkg/shell"
	. "github.com/weberc2/sfs/pkg/types"
	"golang.org/x/term"
	"golang.org/x/tools/txtar"
)

func main() {
	log.SetPrefix("sfs: ")
	log.SetFlags(0)
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  appName,
		Usage: "format, inspect and edit sfs volumes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "image",
				Usage: "image file for the `file` backend",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "one of `file`, `memory` or `postgres`",
			},
			&cli.StringFlag{
				Name:  "volume",
				Usage: "volume name for the `postgres` backend",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "one of `debug`, `info`, `warn` or `error`",
			},
		},
		Metadata: map[string]interface{}{},
		Before:   before,
		Commands: []*cli.Command{{
			Name:  "format",
			Usage: "write an empty file system onto the device",
			Flags: []cli.Flag{
				&cli.UintFlag{
					Name:  "sectors",
					Usage: "device size in 512-byte sectors",
				},
				&cli.StringFlag{
					Name:  "seed",
					Usage: "txtar archive of files to create after formatting",
				},
			},
			Action: func(ctx *cli.Context) error {
				c := config(ctx)
				if ctx.IsSet("sectors") {
					c.Sectors = uint32(ctx.Uint("sectors"))
				}
				d, closeDevice, err := openDevice(c, Sector(c.Sectors))
				if err != nil {
					return err
				}
				defer closeDevice()
				fs, err := filesys.Format(d, options(ctx)...)
				if err != nil {
					return err
				}
				if err := seedFrom(fs, ctx.String("seed")); err != nil {
					fs.Close()
					return err
				}
				return fs.Close()
			},
		}, {
			Name:  "info",
			Usage: "print the superblock and free space",
			Action: withFS(func(fs *filesys.FileSystem, ctx *cli.Context) error {
				sb := fs.Superblock()
				return printJSON(ctx, struct {
					Superblock
					FreeSectors Sector `json:"freeSectors"`
				}{sb, fs.FreeSectors()})
			}),
		}, {
			Name:      "ls",
			Usage:     "list a directory",
			ArgsUsage: "[PATH]",
			Action: withShell(func(sh *shell.Shell, ctx *cli.Context) error {
				return sh.Exec(command("ls", ctx.Args().Slice()...))
			}),
		}, {
			Name:      "mkdir",
			Usage:     "make a directory",
			ArgsUsage: "PATH",
			Action: withShell(func(sh *shell.Shell, ctx *cli.Context) error {
				return sh.Exec(command("mkdir", ctx.Args().Slice()...))
			}),
		}, {
			Name:      "cat",
			Usage:     "print a file",
			ArgsUsage: "PATH",
			Action: withShell(func(sh *shell.Shell, ctx *cli.Context) error {
				return sh.Exec(command("cat", ctx.Args().Slice()...))
			}),
		}, {
			Name:      "rm",
			Usage:     "remove a file or empty directory",
			ArgsUsage: "PATH",
			Action: withShell(func(sh *shell.Shell, ctx *cli.Context) error {
				return sh.Exec(command("rm", ctx.Args().Slice()...))
			}),
		}, {
			Name:      "stat",
			Usage:     "describe a file",
			ArgsUsage: "PATH",
			Action: withShell(func(sh *shell.Shell, ctx *cli.Context) error {
				return sh.Exec(command("stat", ctx.Args().Slice()...))
			}),
		}, {
			Name:      "put",
			Usage:     "copy a host file in; the name defaults to a slug of the host file's",
			ArgsUsage: "HOSTFILE [PATH]",
			Action: withFS(func(fs *filesys.FileSystem, ctx *cli.Context) error {
				if ctx.NArg() < 1 || ctx.NArg() > 2 {
					return fmt.Errorf("usage: put HOSTFILE [PATH]")
				}
				host := ctx.Args().Get(0)
				dest := ctx.Args().Get(1)
				if dest == "" {
					name, err := deriveName(host)
					if err != nil {
						return err
					}
					dest = "/" + name
				}
				data, err := os.ReadFile(host)
				if err != nil {
					return fmt.Errorf("reading `%s`: %w", host, err)
				}
				return put(fs.Session(), dest, data)
			}),
		}, {
			Name:      "dump",
			Usage:     "write a directory tree out as a txtar archive",
			ArgsUsage: "[PATH]",
			Action: withFS(func(fs *filesys.FileSystem, ctx *cli.Context) error {
				root := ctx.Args().First()
				if root == "" {
					root = "/"
				}
				s := fs.Session()
				defer s.Close()
				ar, err := seed.Export(s, root)
				if err != nil {
					return err
				}
				_, err = ctx.App.Writer.Write(txtar.Format(ar))
				return err
			}),
		}, {
			Name:  "shell",
			Usage: "run commands interactively; the memory backend starts from a fresh volume",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "seed",
					Usage: "txtar archive to load into a fresh memory volume",
				},
			},
			Action: runShell,
		}, {
			Name:      "push",
			Usage:     "upload the device image as a snapshot",
			ArgsUsage: "KEY",
			Action: func(ctx *cli.Context) error {
				c := config(ctx)
				snapshots, err := openSnapshots(c)
				if err != nil {
					return err
				}
				d, closeDevice, err := openDevice(c, 0)
				if err != nil {
					return err
				}
				defer closeDevice()
				digest, err := snapshots.Push(d, snapshotKey(c, ctx))
				if err != nil {
					return err
				}
				fmt.Fprintln(ctx.App.Writer, digest)
				return nil
			},
		}, {
			Name:      "pull",
			Usage:     "overwrite the device with a snapshot",
			ArgsUsage: "KEY",
			Action: func(ctx *cli.Context) error {
				c := config(ctx)
				snapshots, err := openSnapshots(c)
				if err != nil {
					return err
				}
				d, closeDevice, err := openDevice(c, Sector(c.Sectors))
				if err != nil {
					return err
				}
				defer closeDevice()
				digest, err := snapshots.Pull(d, snapshotKey(c, ctx))
				if err != nil {
					return err
				}
				fmt.Fprintln(ctx.App.Writer, digest)
				return nil
			},
		}, {
			Name:  "snapshots",
			Usage: "list snapshots under the configured prefix",
			Action: func(ctx *cli.Context) error {
				c := config(ctx)
				snapshots, err := openSnapshots(c)
				if err != nil {
					return err
				}
				keys, err := snapshots.List(c.Prefix)
				if err != nil {
					return err
				}
				for _, key := range keys {
					fmt.Fprintln(ctx.App.Writer, key)
				}
				return nil
			},
		}, {
			Name:  "drop",
			Usage: "delete the postgres volume",
			Action: func(ctx *cli.Context) error {
				return dropVolume(config(ctx))
			},
		}},
	}
}

// before loads the configuration, overlays the global flags and puts the
// logger in the context.
func before(ctx *cli.Context) error {
	c, err := LoadConfig()
	if err != nil {
		return err
	}
	for flag, field := range map[string]*string{
		"image":     &c.Image,
		"backend":   &c.Backend,
		"volume":    &c.Volume,
		"log-level": &c.LogLevel,
	} {
		if ctx.IsSet(flag) {
			*field = ctx.String(flag)
		}
	}
	if err := c.Validate(); err != nil {
		return err
	}

	logger, err := sfslog.New(ctx.App.ErrWriter, c.LogLevel)
	if err != nil {
		return err
	}
	ctx.Context = sfslog.Context(ctx.Context, logger)
	ctx.App.Metadata["config"] = c
	return nil
}

func config(ctx *cli.Context) *Config {
	return ctx.App.Metadata["config"].(*Config)
}

func options(ctx *cli.Context) []filesys.Option {
	return []filesys.Option{filesys.WithLogger(sfslog.FromContext(ctx.Context))}
}

func withFS(f func(*filesys.FileSystem, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		d, closeDevice, err := openDevice(config(ctx), 0)
		if err != nil {
			return err
		}
		defer closeDevice()
		fs, err := filesys.Mount(d, options(ctx)...)
		if err != nil {
			return err
		}
		if err := f(fs, ctx); err != nil {
			fs.Close()
			return err
		}
		return fs.Close()
	}
}

func withShell(f func(*shell.Shell, *cli.Context) error) cli.ActionFunc {
	return withFS(func(fs *filesys.FileSystem, ctx *cli.Context) error {
		sh := shell.New(fs, ctx.App.Writer)
		defer sh.Close()
		return f(sh, ctx)
	})
}

func command(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func runShell(ctx *cli.Context) error {
	c := config(ctx)
	if c.Backend != BackendMemory {
		if ctx.IsSet("seed") {
			return fmt.Errorf("--seed only applies to the memory backend")
		}
		return withFS(func(fs *filesys.FileSystem, ctx *cli.Context) error {
			return interact(fs, ctx)
		})(ctx)
	}

	d := device.NewMemory(Sector(c.Sectors))
	fs, err := filesys.Format(d, options(ctx)...)
	if err != nil {
		return err
	}
	if err := seedFrom(fs, ctx.String("seed")); err != nil {
		fs.Close()
		return err
	}
	if err := interact(fs, ctx); err != nil {
		fs.Close()
		return err
	}
	return fs.Close()
}

// interact runs a shell on stdin, in raw mode with line editing when stdin
// is a terminal.
func interact(fs *filesys.FileSystem, ctx *cli.Context) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		sh := shell.New(fs, ctx.App.Writer)
		defer sh.Close()
		return sh.Run(scanner{bufio.NewScanner(os.Stdin)})
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("making terminal raw: %w", err)
	}
	defer term.Restore(fd, state)

	t := term.NewTerminal(
		struct {
			io.Reader
			io.Writer
		}{os.Stdin, os.Stdout},
		"sfs> ",
	)
	sh := shell.New(fs, t)
	defer sh.Close()
	return sh.Run(t)
}

type scanner struct{ *bufio.Scanner }

func (s scanner) ReadLine() (string, error) {
	if s.Scan() {
		return s.Text(), nil
	}
	if err := s.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func seedFrom(fs *filesys.FileSystem, archive string) error {
	if archive == "" {
		return nil
	}
	ar, err := txtar.ParseFile(archive)
	if err != nil {
		return fmt.Errorf("reading seed archive: %w", err)
	}
	s := fs.Session()
	defer s.Close()
	return seed.Import(s, ar)
}

// deriveName turns a host file name into a name short enough for a
// directory entry.
func deriveName(host string) (string, error) {
	name := slug.Make(filepath.Base(host))
	if len(name) > NameMax {
		name = strings.TrimRight(name[:NameMax], "-")
	}
	if name == "" {
		return "", fmt.Errorf(
			"deriving a name from `%s`: %w",
			host,
			MalformedPathErr,
		)
	}
	return name, nil
}

func put(s *filesys.Session, dest string, data []byte) error {
	defer s.Close()
	if err := s.Create(dest, 0, KindFile); err != nil {
		return err
	}
	f, err := s.Open(dest)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func snapshotKey(c *Config, ctx *cli.Context) string {
	return path.Join(c.Prefix, ctx.Args().First())
}

func printJSON(ctx *cli.Context, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}
	fmt.Fprintf(ctx.App.Writer, "%s\n", data)
	return nil
}
