package compiler

// Version constants recorded with every compile run.
const (
	// FormatVersion is the version of the program tree encoding.
	FormatVersion = "1"

	// Version is the incoq compiler version.
	Version = "0.1.0"
)
