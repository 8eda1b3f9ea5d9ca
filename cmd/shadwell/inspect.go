package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pfmoore/shadwell"
	"github.com/pfmoore/shadwell/candidate"
	"github.com/pfmoore/shadwell/internal/report"
	"github.com/pfmoore/shadwell/tags"
)

func tagsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "print the supported compatibility tags, most preferred first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "python-version", Usage: "target interpreter `X.Y`", Value: shadwell.DefaultPythonVersion},
			&cli.StringSliceFlag{Name: "platform", Usage: "platform `TAG` to enumerate instead of the host's"},
			&cli.StringFlag{Name: "format", Usage: "output `FORMAT`: text, json or yaml", Value: "text"},
		},
		Action: runTags,
	}
}

func runTags(c *cli.Context) error {
	format, err := report.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}

	opts := []shadwell.Option{shadwell.WithPythonVersion(c.String("python-version"))}
	if c.IsSet("platform") {
		supported, err := tags.Supported(c.String("python-version"), c.StringSlice("platform"))
		if err != nil {
			return err
		}
		opts = append(opts, shadwell.WithTags(supported...))
	}

	finder, err := shadwell.NewFinder(opts...)
	if err != nil {
		return err
	}

	ts := finder.Tags()
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return report.WriteList(c.App.Writer, format, out)
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "parse artifact filenames and print their fields",
		ArgsUsage: "FILENAME...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Usage: "output `FORMAT`: text, json or yaml", Value: "text"},
		},
		Action: runParse,
	}
}

func runParse(c *cli.Context) error {
	format, err := report.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	if c.NArg() == 0 {
		return errors.New("parse needs at least one FILENAME")
	}

	var (
		parsed []candidate.Candidate
		failed int
	)
	for _, fn := range c.Args().Slice() {
		cand, err := candidate.ParseFilename(fn)
		if err != nil {
			fmt.Fprintln(c.App.ErrWriter, err)
			failed++
			continue
		}
		parsed = append(parsed, cand)
	}

	rep := report.FromCandidates("", "", parsed)
	if format == report.FormatText {
		for _, e := range rep.Candidates {
			fmt.Fprintf(c.App.Writer, "%s\n  name: %s\n  version: %s\n  kind: %s\n", e.Filename, e.Name, e.Version, e.Kind)
			if len(e.Tags) > 0 {
				fmt.Fprintf(c.App.Writer, "  tags: %v\n", e.Tags)
			}
			if e.BuildTag != "" {
				fmt.Fprintf(c.App.Writer, "  build: %s\n", e.BuildTag)
			}
		}
	} else if err := rep.Write(c.App.Writer, format); err != nil {
		return err
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d filenames could not be parsed", failed, c.NArg()), 1)
	}
	return nil
}
