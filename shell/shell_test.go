package shell_test

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/dargueta/labdisk/shell"
	labdisktest "github.com/dargueta/labdisk/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runScript(t *testing.T, options shell.Options, lines ...string) string {
	input := strings.NewReader(strings.Join(lines, "\n") + "\n")
	output := bytes.Buffer{}
	require.NoError(t, shell.Run(input, &output, options))
	return output.String()
}

func TestRun__Transcript(t *testing.T) {
	path := labdisktest.TempImagePath(t, "disk.img")

	output := runScript(
		t,
		shell.DefaultOptions,
		"cr a",
		"in 4 2 2 64 "+path,
		"cr a",
		"cr a",
		"op a",
		"wr 1 130",
		"sk 1 0",
		"rd 1 5",
		"sk 1 128",
		"rd 1 5",
		"wr 1 100",
		"cr longer-name",
		"dr",
		"cl 1",
		"cl 1",
		"cl x",
		"sk 1 0",
		"bogus",
		"",
		"cr",
		"sv",
		"dr",
		"in lab-default "+path,
		"dr",
		"de a",
		"dr",
		"exit",
		"cr never-run",
	)

	expected := strings.Join(
		[]string{
			"error: file system is not initialized",
			"disk initialized",
			"success",
			"error: exists",
			"file index = 1",
			"success, written 130 bytes",
			"success",
			"success, read 5 bytes: 0 1 2 3 4 ",
			"success",
			"success, read 2 bytes: 128 129 ",
			"reached end of file",
			"warning: file is too big, written 62 bytes",
			"success",
			"a           | 192B",
			"longer-name | 0B",
			"success, close file 1",
			"error: not found, close file 1",
			"invalid argument for close command: x",
			"error: not found",
			"error: wrong command, enter `help` to commands list",
			"error: wrong command, enter `help` to commands list",
			"error: wrong arguments number, enter `help` to commands list",
			"disk saved",
			"error: file system is not initialized",
			"disk restored",
			"a           | 192B",
			"longer-name | 0B",
			"success, destroy file a",
			"longer-name | 0B",
		},
		"\n",
	) + "\n"
	assert.Equal(t, expected, output)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 1024, info.Size())
}

func TestRun__EchoCommands(t *testing.T) {
	path := labdisktest.TempImagePath(t, "disk.img")
	options := shell.DefaultOptions
	options.EchoCommands = true

	// No `exit`; running out of input ends the session too.
	output := runScript(t, options, "in tiny "+path, "op missing")
	assert.Equal(
		t,
		fmt.Sprintf("in tiny %s\ndisk initialized\nop missing\nerror: not found\n", path),
		output,
	)

	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist, "volume was saved without `sv`")
}

func TestRun__NoSpaceMessages(t *testing.T) {
	path := labdisktest.TempImagePath(t, "disk.img")

	output := runScript(
		t,
		shell.DefaultOptions,
		"in tiny "+path,
		"cr a",
		"op a",
		"wr 1 150",
		"cr b",
		"op b",
		"wr 2 1",
	)
	assert.Equal(
		t,
		strings.Join(
			[]string{
				"disk initialized",
				"success",
				"file index = 1",
				"error: no free blocks, written 128 bytes",
				"success",
				"file index = 2",
				"error: no free blocks, written 0 bytes",
			},
			"\n",
		)+"\n",
		output,
	)
}

func TestRun__InitErrors(t *testing.T) {
	path := labdisktest.TempImagePath(t, "disk.img")

	output := runScript(
		t,
		shell.DefaultOptions,
		"in 4 2 64 "+path,
		"in no-such-geometry "+path,
		"in 4 2 2 64 "+path,
		"in 4 2 2 64 "+path,
	)
	lines := strings.Split(strings.TrimSuffix(output, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "invalid arguments for init command"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "invalid arguments for init command"), lines[1])
	assert.Equal(t, "disk initialized", lines[2])
	assert.Equal(
		t,
		"error: file system is already loaded; save current file system to create/restore another one",
		lines[3],
	)
}

func TestRun__SaveToOtherPath(t *testing.T) {
	path := labdisktest.TempImagePath(t, "disk.img")
	otherPath := labdisktest.TempImagePath(t, "other.img.gz")

	output := runScript(
		t,
		shell.DefaultOptions,
		"in lab-default "+path,
		"cr x",
		"sv "+otherPath,
		"in lab-default "+otherPath,
		"dr",
	)
	assert.Equal(t, "disk initialized\nsuccess\ndisk saved\ndisk restored\nx | 0B\n", output)
}

func TestRun__Help(t *testing.T) {
	output := runScript(t, shell.DefaultOptions, "help")
	assert.Contains(t, output, "cr <file_name> - create file\n")
	assert.Contains(t, output, "dr - show directory content\n")
}

func TestRun__HugeCountsAreClamped(t *testing.T) {
	path := labdisktest.TempImagePath(t, "disk.img")

	output := runScript(
		t,
		shell.DefaultOptions,
		"in lab-default "+path,
		"cr a",
		"op a",
		"wr 1 2000000000",
		"sk 1 190",
		"rd 1 2000000000",
		"rd 5 2000000000",
	)
	assert.Equal(
		t,
		strings.Join(
			[]string{
				"disk initialized",
				"success",
				"file index = 1",
				"warning: file is too big, written 192 bytes",
				"success",
				"success, read 2 bytes: 190 191 ",
				"reached end of file",
				"error: not found, read 0 bytes: ",
				"reached end of file",
			},
			"\n",
		)+"\n",
		output,
	)
}

func TestRun__SaveClosesOpenFiles(t *testing.T) {
	path := labdisktest.TempImagePath(t, "disk.img")

	output := runScript(
		t,
		shell.DefaultOptions,
		"in lab-default "+path,
		"cr a",
		"op a",
		"wr 1 10",
		"sv",
		"in lab-default "+path,
		"dr",
		"op a",
	)
	assert.Equal(
		t,
		"disk initialized\nsuccess\nfile index = 1\nsuccess, written 10 bytes\n"+
			"disk saved\ndisk restored\na | 10B\nfile index = 1\n",
		output,
	)
}

func TestRun__CorruptedImage(t *testing.T) {
	path := labdisktest.TempImagePath(t, "disk.img")
	runScript(t, shell.DefaultOptions, "in lab-default "+path, "cr a", "op a", "wr 1 10", "sv")

	image, err := os.ReadFile(path)
	require.NoError(t, err)
	// First block slot of descriptor 1.
	image[64+5+2] = 200
	require.NoError(t, os.WriteFile(path, image, 0o644))

	output := runScript(t, shell.DefaultOptions, "in lab-default "+path, "op a", "dr")
	lines := strings.Split(strings.TrimSuffix(output, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "disk restored", lines[0])
	assert.Equal(t, "error: something went wrong", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "error: something went wrong"), lines[2])
}
