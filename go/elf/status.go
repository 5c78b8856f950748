package elf

import "fmt"

type Status int

const (
	Unloaded Status = iota
	BadFile
	BadIdentMagic
	BadIdentClass
	BadIdentData
	BadIdentVersion
	BadHeaderVersion
	BadHeaderSize
	StructuralViolation
	IOFailure
	Loaded
)

var statusNames = []string{
	Unloaded:            "Unloaded",
	BadFile:             "BadFile",
	BadIdentMagic:       "BadIdentMagic",
	BadIdentClass:       "BadIdentClass",
	BadIdentData:        "BadIdentData",
	BadIdentVersion:     "BadIdentVersion",
	BadHeaderVersion:    "BadHeaderVersion",
	BadHeaderSize:       "BadHeaderSize",
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
