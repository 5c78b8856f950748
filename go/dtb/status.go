package dtb

import "fmt"

type Status int

const (
	Unloaded Status = iota
	BadFile
	BadHeaderMagic
	StructuralViolation
	IOFailure
	Loaded
)

var statusNames = []string{
	Unloaded:            "Unloaded",
	BadFile:             "BadFile",
	BadHeaderMagic:      "BadHeaderMagic",
	StructuralViolation: "StructuralViolation",
	IOFailure:           "IOFailure",
	Loaded:              "Loaded",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}
