// Result codes returned by the file system engine. Every expected failure maps
// to exactly one of these; anything else is reported as Fail.

package errors

import (
	"fmt"
)

type Code int

const (
	Success Code = iota
	Exists
	NoSpace
	NotFound
	TooBig
	InvalidName
	InvalidPos
	AlreadyOpened
	Fail
)

var ErrExists = New(Exists)
var ErrNoSpace = New(NoSpace)
var ErrNotFound = New(NotFound)
var ErrTooBig = New(TooBig)
var ErrInvalidName = New(InvalidName)
var ErrInvalidPos = New(InvalidPos)
var ErrAlreadyOpened = New(AlreadyOpened)
var ErrFail = New(Fail)

// ErrOFTFull and ErrNoFreeBlocks are the two flavors of NoSpace the engine
// distinguishes in its messages. Both match ErrNoSpace under errors.Is.
var ErrOFTFull = ErrNoSpace.WithMessage("open file table is full")
var ErrNoFreeBlocks = ErrNoSpace.WithMessage("no free blocks")

// messagesByCode must be a literal: the sentinels above read it during package
// variable initialization, before any init() runs.
var messagesByCode = map[Code]string{
	Success:       "Success",
	Exists:        "File exists",
	NoSpace:       "No space left on device",
	NotFound:      "No such file or handle",
	TooBig:        "File too large",
	InvalidName:   "Invalid file name",
	InvalidPos:    "Invalid seek position",
	AlreadyOpened: "File already opened",
	Fail:          "Structure needs cleaning",
}

// StrError returns the default message for a code.
func StrError(code Code) string {
	message, ok := messagesByCode[code]
	if ok {
		return message
	}
	return fmt.Sprintf("error %d not recognized.", int(code))
}

// String gives the short upper-case name of the code, as printed by the shell.
func (code Code) String() string {
	switch code {
	case Success:
		return "SUCCESS"
	case Exists:
		return "EXISTS"
	case NoSpace:
		return "NO_SPACE"
	case NotFound:
		return "NOT_FOUND"
	case TooBig:
		return "TOO_BIG"
	case InvalidName:
		return "INVALID_NAME"
	case InvalidPos:
		return "INVALID_POS"
	case AlreadyOpened:
		return "ALREADY_OPENED"
	case Fail:
		return "FAIL"
	}
	return fmt.Sprintf("Code(%d)", int(code))
}
