package tracks

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/racesim/log"
	"github.com/mpapenbr/racesim/pkg/sim/track"
)

var exportName string

func NewTracksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracks [file...]",
		Short: "lists builtin tracks or validates track files",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if exportName != "" {
				return export(out, exportName)
			}
			if len(args) == 0 {
				return list(out)
			}
			return validate(out, args)
		},
	}
	cmd.Flags().StringVar(&exportName,
		"export",
		"",
		"writes the definition of the named builtin track as yaml")
	return cmd
}

func list(out io.Writer) error {
	for _, name := range track.BuiltinNames() {
		l, err := track.Builtin(name)
		if err != nil {
			return err
		}
		describe(out, name, l)
	}
	return nil
}

func export(out io.Writer, name string) error {
	d, ok := track.BuiltinDefinition(name)
	if !ok {
		return fmt.Errorf("unknown track %q", name)
	}
	return d.Encode(out)
}

func validate(out io.Writer, files []string) error {
	var errs []error
	for _, file := range files {
		l, err := track.LoadFile(file)
		if err != nil {
			log.Warn("invalid track file", log.String("file", file), log.ErrorField(err))
			errs = append(errs, err)
			continue
		}
		describe(out, file, l)
	}
	return errors.Join(errs...)
}

func describe(out io.Writer, name string, l *track.RacingLine) {
	fmt.Fprintf(out, "%-20s %4d waypoints %8.1f m  max %.1f m/s\n",
		name, l.Len(), l.Length(), l.MaxSpeed())
}
