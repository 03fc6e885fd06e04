package appctl

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"ovs-unixctl/rpcerr"
)

// Command is one entry of list-commands.
type Command struct {
	Name string
	Args string // argument signature, e.g. "[dp]"; empty when none
}

// ListCommands runs "list-commands" and parses its table. The first line is
// a header; every other non-blank line splits at its first whitespace run.
func (c *Ctl) ListCommands(ctx context.Context) ([]Command, error) {
	const method = "list-commands"
	result, ok, err := c.client.CallString(ctx, method)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &rpcerr.InvalidResponseError{Method: method, Detail: "should not be empty"}
	}
	return parseCommands(result), nil
}

func parseCommands(text string) []Command {
	lines := strings.Split(text, "\n")
	commands := make([]Command, 0, len(lines))
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, args := line, ""
		if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
			name, args = line[:i], line[i:]
		}
		commands = append(commands, Command{
			Name: strings.TrimSpace(name),
			Args: strings.TrimSpace(args),
		})
	}
	return commands
}

// Version is a daemon version: Major.Minor.Patch plus an optional Extra
// build or packaging suffix ("3.2.1-4" has Extra "4").
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32
	Extra string
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Extra != "" {
		s += "-" + v.Extra
	}
	return s
}

// versionMarker separates the daemon name from the version number.
const versionMarker = " (Open vSwitch) "

// Version runs "version" and parses "<daemon> (Open vSwitch) X.Y.Z[.E|-E]".
// Lines after the first (DPDK builds append their own version) are ignored.
func (c *Ctl) Version(ctx context.Context) (Version, error) {
	const method = "version"
	result, ok, err := c.client.CallString(ctx, method)
	if err != nil {
		return Version{}, err
	}
	if !ok {
		return Version{}, &rpcerr.InvalidResponseError{Method: method, Detail: "should not be empty"}
	}
	return parseVersion(result)
}

func parseVersion(text string) (Version, error) {
	invalid := func(detail string) error {
		return &rpcerr.InvalidResponseError{Method: "version", Response: text, Detail: detail}
	}

	first, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	name, rest, found := strings.Cut(strings.TrimSpace(first), versionMarker)
	if !found || name == "" || strings.ContainsFunc(name, unicode.IsSpace) {
		return Version{}, invalid("invalid prefix")
	}

	tokens := splitVersion(rest, 4)
	if len(tokens) != 3 && len(tokens) != 4 {
		return Version{}, invalid("parse error")
	}

	var nums [3]uint32
	for i, tok := range tokens[:3] {
		n, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			return Version{}, invalid(fmt.Sprintf("can't parse %s: %v", tok, err))
		}
		nums[i] = uint32(n)
	}

	v := Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}
	if len(tokens) == 4 {
		v.Extra = tokens[3]
	}
	return v, nil
}

// splitVersion splits s on '.' or '-' into at most n tokens; the last token
// keeps the unsplit remainder.
func splitVersion(s string, n int) []string {
	tokens := make([]string, 0, n)
	for len(tokens) < n-1 {
		i := strings.IndexAny(s, ".-")
		if i < 0 {
			break
		}
		tokens = append(tokens, s[:i])
		s = s[i+1:]
	}
	return append(tokens, s)
}
