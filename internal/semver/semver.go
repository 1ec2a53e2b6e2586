// Package semver parses and compares the vMAJOR.MINOR.PATCH versions ferry
// binaries are built with.
package semver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
)

var re = regexp.MustCompile(`^v(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)(?:-([0-9A-Za-z.-]+))?$`)

var ErrParse = errors.New("could not parse provided string into semantic version")

type Comparison int

const (
	CompareEqual Comparison = iota
	CompareOldMajor
	CompareNewMajor
	CompareOldMinor
	CompareNewMinor
	CompareOldPatch
	CompareNewPatch
)

type Version struct {
	Major      int
	Minor      int
	Patch      int
	Prerelease string
}

// Parse parses the provided string into a semver representation. A pre-release
// suffix such as -dev is kept but takes no part in comparisons.
func Parse(s string) (Version, error) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return Version{}, ErrParse
	}
	var (
		ver Version
		err error
	)
	if ver.Major, err = strconv.Atoi(m[1]); err != nil {
		return Version{}, fmt.Errorf("parsing major: %w", err)
	}
	if ver.Minor, err = strconv.Atoi(m[2]); err != nil {
		return Version{}, fmt.Errorf("parsing minor: %w", err)
	}
	if ver.Patch, err = strconv.Atoi(m[3]); err != nil {
		return Version{}, fmt.Errorf("parsing patch: %w", err)
	}
	ver.Prerelease = m[4]
	return ver, nil
}

func (sv Version) String() string {
	if sv.Prerelease != "" {
		return fmt.Sprintf("v%d.%d.%d-%s", sv.Major, sv.Minor, sv.Patch, sv.Prerelease)
	}
	return fmt.Sprintf("v%d.%d.%d", sv.Major, sv.Minor, sv.Patch)
}

// Compare compares the semver against the provided oracle statement.
func (sv Version) Compare(oracle Version) Comparison {
	switch {
	case sv.Major < oracle.Major:
		return CompareOldMajor
	case sv.Major > oracle.Major:
		return CompareNewMajor
	case sv.Minor < oracle.Minor:
		return CompareOldMinor
	case sv.Minor > oracle.Minor:
		return CompareNewMinor
	case sv.Patch < oracle.Patch:
		return CompareOldPatch
	case sv.Patch > oracle.Patch:
		return CompareNewPatch
	default:
		return CompareEqual
	}
}

// Compatible reports whether two builds speak the same wire format.
func (sv Version) Compatible(other Version) bool {
	c := sv.Compare(other)
	return c != CompareOldMajor && c != CompareNewMajor
}

// FetchServerVersion asks a server's status endpoint at addr for its version.
func FetchServerVersion(ctx context.Context, addr string) (Version, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/version", addr), nil)
	if err != nil {
		return Version{}, fmt.Errorf("building version request: %w", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return Version{}, fmt.Errorf("fetching version from server: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Version{}, fmt.Errorf("fetching version from server: unexpected status %s", res.Status)
	}
	var body struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return Version{}, fmt.Errorf("decoding version response from server: %w", err)
	}
	return Parse(body.Version)
}
