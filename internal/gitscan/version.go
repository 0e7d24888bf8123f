package gitscan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// version is a parsed x.y or x.y.z release number. Original keeps the
// unparsed string because comparison needs it: 5.12.0 must sort above
// 5.12, otherwise changes landing on the 5.12 branch while 5.12.0
// exists would be attributed to 5.12.0 instead of 5.12.1.
type version struct {
	major, minor, patch int
	original            string
}

// parseVersion accepts "x.y" and "x.y.z" with numeric components.
func parseVersion(s string) (version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 && len(parts) != 3 {
		return version{}, fmt.Errorf("gitscan: %q is not a version number", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return version{}, fmt.Errorf("gitscan: %q is not a version number", s)
		}
		nums[i] = n
	}
	v := version{major: nums[0], minor: nums[1], original: s}
	if len(nums) == 3 {
		v.patch = nums[2]
	}
	return v, nil
}

// less orders versions; numerically equal versions fall back to the
// original string so the three-component form sorts higher.
func (v version) less(other version) bool {
	if v.major != other.major {
		return v.major < other.major
	}
	if v.minor != other.minor {
		return v.minor < other.minor
	}
	if v.patch != other.patch {
		return v.patch < other.patch
	}
	return v.original < other.original
}

// guessVersion maps a branch ref to the release its commits will ship
// in. Fully qualified x.y.z branches pass through; dev and master mean
// the next minor after the highest versioned branch; x.y resolves to
// one patch above the highest existing x.y.z branch or tag, or x.y.0
// when none exists yet. Returns "" when no guess is possible.
func guessVersion(ref string, branches, tags []string) string {
	ref = cleanBranchName(ref)
	if strings.Count(ref, ".") == 2 {
		return ref
	}

	var known []version
	for _, b := range branches {
		if v, err := parseVersion(cleanBranchName(b)); err == nil {
			known = append(known, v)
		}
	}
	var branchOnly []version
	branchOnly = append(branchOnly, known...)
	for _, t := range tags {
		if v, err := parseVersion(cleanTagName(t)); err == nil {
			known = append(known, v)
		}
	}
	sort.Slice(known, func(i, j int) bool { return known[j].less(known[i]) })
	sort.Slice(branchOnly, func(i, j int) bool { return branchOnly[j].less(branchOnly[i]) })

	if (ref == "dev" || ref == "master") && len(branchOnly) > 0 {
		highest := branchOnly[0]
		return fmt.Sprintf("%d.%d.0", highest.major, highest.minor+1)
	}

	if strings.Count(ref, ".") == 1 {
		refVersion, err := parseVersion(ref)
		if err != nil {
			return ""
		}
		highest := firstComparableMinor(refVersion, known)
		if highest != nil && strings.Count(highest.original, ".") > 1 {
			// 5.12 becomes 5.12.7 when 5.12.6 exists as a tag or
			// branch; a bare "5.12" match would mean 5.12.0 instead.
			return fmt.Sprintf("%d.%d.%d", highest.major, highest.minor, highest.patch+1)
		}
		return fmt.Sprintf("%d.%d.0", refVersion.major, refVersion.minor)
	}
	return ""
}

// firstComparableMinor finds the highest version sharing major.minor
// with ref in a descending-sorted list.
func firstComparableMinor(ref version, sorted []version) *version {
	for i := range sorted {
		if sorted[i].major == ref.major && sorted[i].minor == ref.minor {
			return &sorted[i]
		}
	}
	return nil
}
