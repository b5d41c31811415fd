// Package shell implements the line-oriented command interpreter used to poke
// at a volume by hand or from scenario scripts.
package shell

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/dargueta/labdisk/errors"
	"github.com/dargueta/labdisk/file_systems/flatfs"
)

type Options struct {
	// EchoCommands prints every command before its output, so that a script's
	// transcript reads like an interactive session.
	EchoCommands bool
	Constraints  flatfs.Constraints
}

var DefaultOptions = Options{
	Constraints: flatfs.DefaultConstraints,
}

type command struct {
	minArgs int
	maxArgs int
	run     func(session *session, args []string)
	// needsVolume is true if the command can't run before `in`.
	needsVolume bool
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"cr":   {1, 1, (*session).create, true},
		"de":   {1, 1, (*session).destroy, true},
		"op":   {1, 1, (*session).open, true},
		"cl":   {1, 1, (*session).close, true},
		"rd":   {2, 2, (*session).read, true},
		"wr":   {2, 2, (*session).write, true},
		"sk":   {2, 2, (*session).seek, true},
		"dr":   {0, 0, (*session).directory, true},
		"in":   {2, 5, (*session).initialize, false},
		"sv":   {0, 1, (*session).save, true},
		"help": {0, 0, (*session).help, false},
	}
}

var resultMessages = map[errors.Code]string{
	errors.Success:       "success",
	errors.Exists:        "error: exists",
	errors.NoSpace:       "error: no space",
	errors.NotFound:      "error: not found",
	errors.TooBig:        "warning: file is too big",
	errors.InvalidName:   "error: invalid name",
	errors.InvalidPos:    "error: invalid pos",
	errors.AlreadyOpened: "error: already opened",
	errors.Fail:          "error: something went wrong",
}

// resultMessage gives the shell's one-line summary of an operation's result.
// Errors that narrow down NoSpace get their own message.
func resultMessage(err error) string {
	switch {
	case err == nil:
		return resultMessages[errors.Success]
	case stderrors.Is(err, errors.ErrOFTFull):
		return "error: OFT is full"
	case stderrors.Is(err, errors.ErrNoFreeBlocks):
		return "error: no free blocks"
	}
	return resultMessages[errors.CodeOf(err)]
}

type session struct {
	out     io.Writer
	options Options
	volume  *flatfs.FileSystem
}

func (s *session) println(args ...interface{}) {
	fmt.Fprintln(s.out, args...)
}

func (s *session) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

// Run reads commands from `in` one line at a time until it sees `exit` or runs
// out of input. Output goes to `out`. A volume that's still mounted when Run
// returns is discarded without saving.
func Run(in io.Reader, out io.Writer, options Options) error {
	s := session{out: out, options: options}
	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		line := scanner.Text()
		if options.EchoCommands {
			s.println(line)
		}

		args := strings.Fields(line)
		if len(args) > 0 && args[0] == "exit" {
			if len(args) != 1 {
				s.println("error: wrong arguments number, enter `help` to commands list")
				continue
			}
			return nil
		}

		var cmd command
		ok := false
		if len(args) > 0 {
			cmd, ok = commands[args[0]]
		}
		if !ok {
			s.println("error: wrong command, enter `help` to commands list")
			continue
		}

		argCount := len(args) - 1
		if argCount < cmd.minArgs || argCount > cmd.maxArgs {
			s.println("error: wrong arguments number, enter `help` to commands list")
			continue
		}
		if cmd.needsVolume && s.volume == nil {
			s.println("error: file system is not initialized")
			continue
		}

		cmd.run(&s, args[1:])
	}
	return scanner.Err()
}
