// Package flagx contains helpers for parsing only the subset of command-line
// flags a component owns, so several parsers can share one argument list.
package flagx

import (
	"flag"
	"strconv"
	"strings"
	"time"
)

// FilterArgs returns the allowed flags from args together with their values.
//
// Both "-f value" and "-f=value" forms are recognized. A token that follows an
// allowed flag is treated as its value unless it starts with "-".
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// ConfigPath extracts the JSON config file path given via -c or -config.
// It returns "" when neither flag is present.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	return path
}

// minutes is a flag.Value holding a duration expressed in whole minutes.
type minutes struct {
	d *time.Duration
}

func (m minutes) String() string {
	if m.d == nil {
		return "0"
	}
	return strconv.FormatInt(int64(m.d.Minutes()), 10)
}

func (m minutes) Set(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*m.d = time.Duration(n) * time.Minute
	return nil
}

// MinutesVar defines a flag that sets *p from an integer number of minutes.
// The current value of *p is kept as the default.
func MinutesVar(fs *flag.FlagSet, p *time.Duration, name, usage string) {
	fs.Var(minutes{d: p}, name, usage)
}
