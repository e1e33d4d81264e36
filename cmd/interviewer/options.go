package main

import (
	"log"
	"strings"

	"github.com/jessevdk/go-flags"
)

// Options is the root command. The struct tags are interpreted by
// github.com/jessevdk/go-flags.
type Options struct {
	Config string    `short:"f" long:"config" description:"interview config YAML path"`
	Run    *RunCmd   `command:"run" description:"Run one interview on the configured room"`
	Serve  *ServeCmd `command:"serve" description:"Start the session control API"`
}

// Init instantiates the sub-command named by the first argument so that
// flags.Parse can populate its fields.
func (o *Options) Init(firstArg string) {
	switch firstArg {
	case "run":
		o.Run = &RunCmd{root: o}
	case "serve":
		o.Serve = &ServeCmd{root: o}
	}
}

// Run parses args and executes the selected command.
func Run(args []string) {
	opts := &Options{}
	opts.Init(commandName(args))

	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		log.Fatalf("%v", err)
	}
}

// commandName returns the first argument that is neither a flag nor the
// value of -f/--config, so global flags may precede the sub-command.
func commandName(args []string) string {
	for i := 0; i < len(args); i++ {
		switch a := args[i]; {
		case a == "-f" || a == "--config":
			i++
		case strings.HasPrefix(a, "-"):
		default:
			return a
		}
	}
	return ""
}
