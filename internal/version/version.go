package version

// Set via -ldflags at build time.
var (
	Version   = ""
	Commit    = ""
	BuildTime = ""
)

// String returns a human-readable version line.
func String() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	if Commit == "" {
		return v
	}
	c := Commit
	if len(c) > 12 {
		c = c[:12]
	}
	return v + " (" + c + ")"
}
