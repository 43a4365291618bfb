// Package prompt resolves declared input values from flags, the
// environment, an interactive form or declared defaults.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"runbook/internal/runbook"
)

// EnvPrefix is prepended to the uppercased input ID, so input
// "repository" reads RUNBOOK_INPUT_REPOSITORY.
const EnvPrefix = "RUNBOOK_INPUT_"

// Options configures a resolution pass.
type Options struct {
	// Flags holds --input ID=value pairs.
	Flags map[string]string
	// Interactive enables the huh form for inputs nothing else covers.
	Interactive bool
}

// Seams for tests: environment lookup and form execution.
var (
	lookupEnvFn = os.LookupEnv
	runFormFn   = func(form *huh.Form) error { return form.Run() }
)

// EnvVar returns the environment variable consulted for an input ID.
func EnvVar(id string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '-', '.':
			return '_'
		}
		return r
	}, strings.ToUpper(id))
	return EnvPrefix + mapped
}

// ParseFlag splits a repeatable --input ID=value argument.
func ParseFlag(raw string) (id, value string, err error) {
	id, value, ok := strings.Cut(raw, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return "", "", fmt.Errorf("invalid --input %q (want ID=value)", raw)
	}
	return id, value, nil
}

// Resolve returns a value for each requested input ID. First hit wins:
// flag, environment variable, interactive prompt, declared default.
// Pick values from flags and env are validated against the options.
func Resolve(file *runbook.File, ids []string, opts Options) (map[string]string, error) {
	values := make(map[string]string, len(ids))
	var pending []*runbook.Input

	for _, id := range ids {
		in := file.Input(id)
		if in == nil {
			return nil, fmt.Errorf("input %q is not declared", id)
		}

		if val, ok := opts.Flags[id]; ok {
			if err := checkPick(in, val, "--input flag"); err != nil {
				return nil, err
			}
			values[id] = val
			continue
		}

		if val, ok := lookupEnvFn(EnvVar(id)); ok {
			if err := checkPick(in, val, EnvVar(id)); err != nil {
				return nil, err
			}
			values[id] = val
			continue
		}

		if opts.Interactive {
			pending = append(pending, in)
			continue
		}

		if in.Default != "" {
			values[id] = in.Default
			continue
		}
		return nil, fmt.Errorf("no value for input %q (give --input %s=... or set %s)", id, id, EnvVar(id))
	}

	if len(pending) > 0 {
		if err := promptFor(pending, values); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// Aborted reports whether the user canceled an interactive prompt.
func Aborted(err error) bool { return errors.Is(err, huh.ErrUserAborted) }

func checkPick(in *runbook.Input, value, source string) error {
	if in.EffectiveType() != runbook.InputPick {
		return nil
	}
	if !in.HasOption(value) {
		return fmt.Errorf("input %q: %q from %s is not one of %s",
			in.ID, value, source, strings.Join(in.Options, ", "))
	}
	return nil
}

func promptFor(inputs []*runbook.Input, values map[string]string) error {
	fields := make([]huh.Field, 0, len(inputs))
	answers := make([]string, len(inputs))

	for i, in := range inputs {
		answers[i] = in.Default
		title := in.ID
		if in.Description != "" {
			title = in.Description
		}

		switch in.EffectiveType() {
		case runbook.InputPick:
			options := make([]huh.Option[string], 0, len(in.Options))
			for _, opt := range in.Options {
				options = append(options, huh.NewOption(opt, opt))
			}
			fields = append(fields,
				huh.NewSelect[string]().
					Title(title).
					Options(options...).
					Value(&answers[i]))
		default:
			fields = append(fields,
				huh.NewInput().
					Title(title).
					Value(&answers[i]))
		}
	}

	if err := runFormFn(huh.NewForm(huh.NewGroup(fields...))); err != nil {
		return fmt.Errorf("prompt for inputs: %w", err)
	}

	for i, in := range inputs {
		val := answers[i]
		if val == "" {
			val = in.Default
		}
		if val == "" {
			return fmt.Errorf("no value for input %q", in.ID)
		}
		if err := checkPick(in, val, "prompt"); err != nil {
			return err
		}
		values[in.ID] = val
	}
	return nil
}
