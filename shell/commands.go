package shell

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dargueta/labdisk"
	"github.com/dargueta/labdisk/disks"
	"github.com/dargueta/labdisk/file_systems/flatfs"
)

func parseHandle(arg string) (labdisk.Handle, error) {
	value, err := strconv.ParseUint(arg, 10, 0)
	return labdisk.Handle(value), err
}

func (s *session) create(args []string) {
	s.println(resultMessage(s.volume.Create(args[0])))
}

func (s *session) destroy(args []string) {
	err := s.volume.Destroy(args[0])
	s.printf("%s, destroy file %s\n", resultMessage(err), args[0])
}

func (s *session) open(args []string) {
	handle, err := s.volume.Open(args[0])
	if err != nil {
		s.println(resultMessage(err))
		return
	}
	s.printf("file index = %d\n", handle)
}

func (s *session) close(args []string) {
	handle, err := parseHandle(args[0])
	if err != nil {
		s.printf("invalid argument for close command: %s\n", args[0])
		return
	}

	err = s.volume.Close(handle)
	s.printf("%s, close file %d\n", resultMessage(err), handle)
}

// clampCount limits the size of a read or write buffer. No file can be longer
// than the maximum file size, so one byte past it is enough for a write to
// report that it didn't fit.
func (s *session) clampCount(count uint64) uint64 {
	limit := uint64(s.volume.Constraints().MaxFileSize(s.volume.BlockSize())) + 1
	if count > limit {
		return limit
	}
	return count
}

func (s *session) read(args []string) {
	handle, handleErr := parseHandle(args[0])
	count, countErr := strconv.ParseUint(args[1], 10, 31)
	if handleErr != nil || countErr != nil {
		s.printf("invalid arguments for read command: %s %s\n", args[0], args[1])
		return
	}

	buffer := make([]byte, s.clampCount(count))
	n, err := s.volume.Read(handle, buffer)

	text := strings.Builder{}
	for _, b := range buffer[:n] {
		fmt.Fprintf(&text, "%d ", b)
	}
	s.printf("%s, read %d bytes: %s\n", resultMessage(err), n, text.String())

	if uint64(n) != count {
		s.println("reached end of file")
	}
}

func (s *session) write(args []string) {
	handle, handleErr := parseHandle(args[0])
	count, countErr := strconv.ParseUint(args[1], 10, 31)
	if handleErr != nil || countErr != nil {
		s.printf("invalid arguments for write command: %s %s\n", args[0], args[1])
		return
	}

	data := make([]byte, s.clampCount(count))
	for i := range data {
		data[i] = byte(i % 256)
	}

	n, err := s.volume.Write(handle, data)
	s.printf("%s, written %d bytes\n", resultMessage(err), n)
}

func (s *session) seek(args []string) {
	handle, handleErr := parseHandle(args[0])
	position, positionErr := strconv.ParseInt(args[1], 10, 64)
	if handleErr != nil || positionErr != nil {
		s.printf("invalid arguments for seek command: %s %s\n", args[0], args[1])
		return
	}
	s.println(resultMessage(s.volume.Seek(handle, position)))
}

func (s *session) directory(args []string) {
	listing, err := s.volume.Directory()
	if err != nil {
		s.println(resultMessage(err))
		return
	}

	width := 0
	for _, entry := range listing {
		if len(entry.Name()) > width {
			width = len(entry.Name())
		}
	}
	for _, entry := range listing {
		s.printf("%-*s | %dB\n", width, entry.Name(), entry.Size())
	}
}

// parseGeometry accepts either "<cyl> <surf> <sect> <sect_len>" or the slug of
// a predefined geometry.
func parseGeometry(args []string) (disks.Geometry, error) {
	if len(args) == 1 {
		return disks.GetPredefinedGeometry(args[0])
	}
	if len(args) != 4 {
		return disks.Geometry{}, fmt.Errorf("expected 1 or 4 geometry arguments, got %d", len(args))
	}

	var values [4]uint
	for i, arg := range args {
		value, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return disks.Geometry{}, fmt.Errorf("invalid geometry value %q", arg)
		}
		values[i] = uint(value)
	}
	return disks.Geometry{
		Cylinders:     values[0],
		Surfaces:      values[1],
		Sections:      values[2],
		SectionLength: values[3],
	}, nil
}

func (s *session) initialize(args []string) {
	if s.volume != nil {
		s.println(
			"error: file system is already loaded; save current file system to " +
				"create/restore another one",
		)
		return
	}

	path := args[len(args)-1]
	geometry, err := parseGeometry(args[:len(args)-1])
	if err != nil {
		s.printf("invalid arguments for init command: %s\n", err)
		return
	}

	volume, status, err := flatfs.InitWithConstraints(
		geometry.Cylinders,
		geometry.Surfaces,
		geometry.Sections,
		geometry.SectionLength,
		path,
		s.options.Constraints,
	)
	if err != nil {
		s.printf("%s: %s\n", resultMessage(err), err)
		return
	}

	s.volume = volume
	switch status {
	case labdisk.Created:
		s.println("disk initialized")
	case labdisk.Restored:
		s.println("disk restored")
	}
}

// save closes every open file, writes the volume out and unmounts it. If
// saving fails the volume stays mounted so the user can try another path.
func (s *session) save(args []string) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}

	err := s.volume.CloseAll()
	if err == nil {
		err = s.volume.Save(path)
	}
	if err != nil {
		s.printf("%s: %s\n", resultMessage(err), err)
		return
	}
	s.println("disk saved")
	s.volume = nil
}

func (s *session) help(args []string) {
	s.println("in <cyl_no> <surf_no> <sect_no> <sect_len> <disk_filename> - initialize file system")
	s.println("in <geometry> <disk_filename> - initialize file system with a predefined geometry")
	s.println("sv [disk_filename] - save current file system")
	s.println("cr <file_name> - create file")
	s.println("de <file_name> - destroy file")
	s.println("op <file_name> - open file")
	s.println("cl <file_index> - close file")
	s.println("rd <file_index> <number_of_bytes> - read from file")
	s.println(
		"wr <file_index> <number_of_bytes> - write to file " +
			"(writes sequences 0,1,...,255,0,...)",
	)
	s.println("sk <file_index> <position> - seek to position in file")
	s.println("dr - show directory content")
	s.println("exit - leave the shell")
}
