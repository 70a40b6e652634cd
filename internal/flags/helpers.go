// Copyright 2020 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package flags

import (
	"fmt"
	"os"
	"strings"

	"github.com/evmlc/evm-light-client/internal/version"
	"github.com/urfave/cli/v2"
)

// NewApp creates an app with sane defaults.
func NewApp(usage string) *cli.App {
	git, _ := version.VCS()
	app := cli.NewApp()
	app.EnableBashCompletion = true
	app.Version = version.WithCommit(git.Commit, git.Date)
	app.Usage = usage
	app.Copyright = "Copyright 2025 The go-ethereum Authors"
	return app
}

// Merge merges the given flag slices.
func Merge(groups ...[]cli.Flag) []cli.Flag {
	var ret []cli.Flag
	for _, group := range groups {
		ret = append(ret, group...)
	}
	return ret
}

// CheckExclusive verifies that only a single instance of the provided flags was
// set by the user. Each flag might optionally be followed by a string type to
// specialize it further.
func CheckExclusive(ctx *cli.Context, args ...cli.Flag) error {
	var set []string
	for _, flag := range args {
		name := flag.Names()[0]
		if ctx.IsSet(name) {
			set = append(set, "--"+name)
		}
	}
	if len(set) > 1 {
		return fmt.Errorf("flags %v can't be used at the same time", strings.Join(set, ", "))
	}
	return nil
}

// CheckEnvVars applies environment variables named after the global flags,
// e.g. EVMLC_BEACON_API for --beacon.api, unless the flag was given on the
// command line. Unknown variables carrying the prefix are reported.
func CheckEnvVars(ctx *cli.Context, prefix string) error {
	known := make(map[string]string)
	for _, flag := range ctx.App.Flags {
		known[envName(prefix, flag.Names()[0])] = flag.Names()[0]
	}
	for _, env := range os.Environ() {
		key := strings.SplitN(env, "=", 2)[0]
		if !strings.HasPrefix(key, prefix+"_") {
			continue
		}
		name, ok := known[key]
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown variable %v in environment\n", key)
			continue
		}
		if !ctx.IsSet(name) {
			if err := ctx.Set(name, os.Getenv(key)); err != nil {
				return fmt.Errorf("environment variable %v: %v", key, err)
			}
		}
	}
	return nil
}

func envName(prefix, flagName string) string {
	return prefix + "_" + strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(flagName, ".", "_"), "-", "_"))
}
