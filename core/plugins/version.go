package plugins

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Version represents a semantic version.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses a semantic version string (e.g., "1.2.3").
// A leading "v" is accepted and missing components default to zero.
func ParseVersion(v string) (*Version, error) {
	if v == "" {
		return nil, fmt.Errorf("version string is empty")
	}
	v = strings.TrimPrefix(v, "v")

	parts := strings.Split(v, ".")
	if len(parts) > 3 {
		return nil, fmt.Errorf("invalid version format: %s (expected X.Y.Z)", v)
	}

	var nums [3]int
	names := [3]string{"major", "minor", "patch"}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s version: %s", names[i], p)
		}
		nums[i] = n
	}
	return &Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParseVersion is ParseVersion for constants.
func MustParseVersion(v string) *Version {
	ver, err := ParseVersion(v)
	if err != nil {
		panic(err)
	}
	return ver
}

func (v *Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or +1 as v is older, equal or newer than other.
func (v *Version) Compare(other *Version) int {
	if c := cmp.Compare(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, other.Minor); c != 0 {
		return c
	}
	return cmp.Compare(v.Patch, other.Patch)
}

// IsCompatibleWith reports whether v can stand in for required: same
// major version, minor at least as new. Patch is ignored.
func (v *Version) IsCompatibleWith(required *Version) bool {
	return v.Major == required.Major && v.Minor >= required.Minor
}

// Constraint is one comparison such as ">=1.2.0" or "<2". "^1.2" accepts
// any version compatible with 1.2 in the IsCompatibleWith sense.
type Constraint struct {
	Operator string
	Version  *Version
}

var operators = []string{">=", "<=", ">", "<", "=", "^"}

// ParseConstraint parses a constraint. No operator means "=".
func ParseConstraint(s string) (*Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("constraint string is empty")
	}
	op := "="
	for _, o := range operators {
		if rest, ok := strings.CutPrefix(s, o); ok {
			op, s = o, strings.TrimSpace(rest)
			break
		}
	}
	ver, err := ParseVersion(s)
	if err != nil {
		return nil, fmt.Errorf("invalid constraint version: %w", err)
	}
	return &Constraint{Operator: op, Version: ver}, nil
}

// Check reports whether v satisfies c.
func (c *Constraint) Check(v *Version) bool {
	n := v.Compare(c.Version)
	switch c.Operator {
	case ">=":
		return n >= 0
	case ">":
		return n > 0
	case "=":
		return n == 0
	case "<":
		return n < 0
	case "<=":
		return n <= 0
	case "^":
		return v.IsCompatibleWith(c.Version)
	}
	return false
}

func (c *Constraint) String() string {
	return c.Operator + c.Version.String()
}

// Requirement is a comma-separated list of constraints that must all
// hold, e.g. ">=1.0,<2".
type Requirement []*Constraint

// ParseRequirement parses a requirement. The empty string accepts every
// version.
func ParseRequirement(s string) (Requirement, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var req Requirement
	for part := range strings.SplitSeq(s, ",") {
		c, err := ParseConstraint(part)
		if err != nil {
			return nil, err
		}
		req = append(req, c)
	}
	return req, nil
}

// Check reports whether v satisfies every constraint.
func (r Requirement) Check(v *Version) bool {
	for _, c := range r {
		if !c.Check(v) {
			return false
		}
	}
	return true
}

func (r Requirement) String() string {
	parts := make([]string, len(r))
	for i, c := range r {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}
