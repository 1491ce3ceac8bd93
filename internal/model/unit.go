// Package model defines the data structures for test-quality auditing.
package model

import "fmt"

// Path represents a file system path.
type Path string

// UnitKind defines the kind of a code unit.
type UnitKind string

const (
	// UnitFunction represents a package-level function.
	UnitFunction UnitKind = "function"
	// UnitMethod represents a method bound to a receiver type.
	UnitMethod UnitKind = "method"
	// UnitClass represents a type with a method set.
	UnitClass UnitKind = "class"
)

// UnitID identifies a code unit. Qualified name plus kind is a stable key
// within one mapping run.
type UnitID struct {
	Name string
	Kind UnitKind
}

func (id UnitID) String() string {
	return fmt.Sprintf("%s/%s", id.Kind, id.Name)
}

// CodeUnit represents an atomic target of coverage and improvement: a
// function, method, or type. Fields other than Covered are fixed at mapping
// time; Covered is set later by test discovery.
type CodeUnit struct {
	ID         UnitID
	File       Path
	StartLine  int
	EndLine    int
	Complexity int
	// Dependencies holds qualified names of other units referenced in the
	// body. These are weak references: a name may resolve to no node when
	// the target lives outside the mapped tree.
	Dependencies []string
	Source       string
	Covered      bool
}
