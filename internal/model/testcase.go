package model

// TestKind classifies a test case.
type TestKind string

const (
	// TestUnit represents a unit test.
	TestUnit TestKind = "unit"
	// TestIntegration represents an integration test.
	TestIntegration TestKind = "integration"
	// TestUnknown is used when classification heuristics give no signal.
	TestUnknown TestKind = "unknown"
)

// TestCase represents one test function, either discovered on disk or
// produced by the generator.
type TestCase struct {
	ID   string
	Name string
	File Path
	Kind TestKind

	// Target is the qualified name of the unit this test exercises. It is a
	// weak reference: it may name a unit that no longer exists, and it is
	// empty when resolution failed.
	Target UnitID

	Assertions int
	Mocks      int

	// Clarity is the 0-10 judged score. Nil until a judge or scorer has seen
	// the test.
	Clarity *float64

	Source    string
	Generated bool
}

// HasTarget reports whether the test resolved to a code unit.
func (t TestCase) HasTarget() bool {
	return t.Target.Name != ""
}
