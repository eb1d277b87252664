package main

import "flag"

// Options holds CLI options for the runtime.
type Options struct {
    ConfigPath string
    Script     string
    List       bool
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
    fs := flag.NewFlagSet("nbrun", flag.ExitOnError)
    var opts Options
    fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
    fs.StringVar(&opts.Script, "script", "", "Name of a script to run at startup")
    fs.BoolVar(&opts.List, "list", false, "List available scripts and exit")
    _ = fs.Parse(args)
    return opts
}
