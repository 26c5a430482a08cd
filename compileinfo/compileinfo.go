// Package compileinfo reports which build of a metacompare command is
// running, so that results can be traced back to the code that made them.
package compileinfo

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
)

type CompileInfo struct {
	Command    string
	Module     string
	Version    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
}

func (c CompileInfo) String() string {
	var sb strings.Builder

	name := c.Command
	if name == "" {
		name = "metacompare"
	}
	fmt.Fprintf(&sb, "%s", name)

	if c.Version != "" && c.Version != "(devel)" {
		fmt.Fprintf(&sb, " %s", c.Version)
	}
	if c.GoVersion != "" {
		fmt.Fprintf(&sb, " built with %s", c.GoVersion)
	}
	if c.Commit != "" {
		fmt.Fprintf(&sb, " at commit %s", c.Commit)
		if c.CommitTime != "" {
			fmt.Fprintf(&sb, " (%s)", c.CommitTime)
		}
	}
	sb.WriteString(".")
	if c.Modified {
		sb.WriteString(" Files in the repo were modified after that commit.")
	}

	return sb.String()
}

// Get reads the build information embedded in the running binary.
func Get() CompileInfo {
	z, ok := debug.ReadBuildInfo()
	if !ok {
		return CompileInfo{}
	}

	return fromBuildInfo(z)
}

func fromBuildInfo(z *debug.BuildInfo) CompileInfo {
	out := CompileInfo{
		Command:   z.Path,
		Module:    z.Main.Path,
		Version:   z.Main.Version,
		GoVersion: z.GoVersion,
	}
	if i := strings.LastIndex(out.Command, "/"); i >= 0 {
		out.Command = out.Command[i+1:]
	}

	for _, s := range z.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	return out
}

func PrintToStdErr() {
	fmt.Fprintln(os.Stderr, Get())
}
