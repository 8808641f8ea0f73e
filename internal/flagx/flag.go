// Package flagx lets several components parse their own flags from one
// command line without tripping over each other's flags.
package flagx

import (
	"flag"
	"io"
	"strconv"
	"strings"
)

// FilterArgs keeps only the flags listed in allowedFlags, together with
// their values. Both "-f value" and "-f=value" forms are recognised; a
// following token that starts with "-" is never taken as a value.
//
// Flags named in boolFlags take no separate value: flag.Parse would treat
// "-f false" as "-f" and stop at "false". A bool literal right after such a
// flag is folded into "-f=false"; any other token is left alone.
func FilterArgs(args []string, allowedFlags []string, boolFlags ...string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}
	isBool := make(map[string]struct{}, len(boolFlags))
	for _, f := range boolFlags {
		isBool[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, keep := allowed[name]; keep {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, keep := allowed[arg]; !keep {
			continue
		}
		hasNext := i+1 < len(args) && !strings.HasPrefix(args[i+1], "-")

		if _, ok := isBool[arg]; ok {
			if hasNext {
				if _, err := strconv.ParseBool(args[i+1]); err == nil {
					filtered = append(filtered, arg+"="+args[i+1])
					i++
					continue
				}
			}
			filtered = append(filtered, arg)
			continue
		}

		filtered = append(filtered, arg)
		if hasNext {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// ConfigPath returns the JSON config path given with -c or -config in args
// (usually os.Args[1:]), or "" if none. The last occurrence wins.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--config"}))

	return path
}
