// Package flagx picks a known subset of flags out of the command line so
// several independent flag sets can parse os.Args without tripping over
// each other's flags.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// FilterArgs keeps only the flags named in valued (and the value following
// each) plus the boolean flags named in switches. Both "-name value" and
// "-name=value" are recognised; "--name" is treated like "-name".
//
// A valued flag takes the next argument as its value unless that argument
// starts with '-'. Switches never consume the next argument.
func FilterArgs(args []string, valued []string, switches ...string) []string {
	withValue := toSet(valued)
	bare := toSet(switches)

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		name, _, hasEq := strings.Cut(arg, "=")
		name = canonical(name)
		_, isValued := withValue[name]
		_, isSwitch := bare[name]

		switch {
		case hasEq && (isValued || isSwitch):
			filtered = append(filtered, arg)
		case isSwitch:
			filtered = append(filtered, arg)
		case isValued:
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}
	return filtered
}

// JsonConfigFlags returns the config file path given by -c or -config, or
// "" when neither is present.
func JsonConfigFlags() string {
	return jsonConfigFrom(os.Args[1:])
}

func jsonConfigFrom(args []string) string {
	var path string
	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))
	return path
}

func canonical(name string) string {
	if strings.HasPrefix(name, "--") {
		return name[1:]
	}
	return name
}

func toSet(names []string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[canonical(n)] = struct{}{}
	}
	return m
}
