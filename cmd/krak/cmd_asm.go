package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dhamidi/krak/asm"
)

func newAsmCmd() *cobra.Command {
	var outDir string
	var maxNotes int

	cmd := &cobra.Command{
		Use:   "asm <file.j|dir>...",
		Short: "Assemble Krakatau assembly into class files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, _, err := collectInputs(args, ".j", false)
			if err != nil {
				return err
			}

			rep := newReporter(cmd.OutOrStdout(), os.Stderr, maxNotes)
			var failed atomic.Int64
			var eg errgroup.Group
			eg.SetLimit(runtime.GOMAXPROCS(0))
			for _, in := range inputs {
				in := in
				eg.Go(func() error {
					failed.Add(int64(assembleFile(in, outDir, rep)))
					return nil
				})
			}
			eg.Wait()

			if n := failed.Load(); n > 0 {
				return fmt.Errorf("%d classes failed to assemble", n)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().IntVar(&maxNotes, "max-notes", 5, "maximum number of notes printed per error")

	return cmd
}

// assembleFile assembles every class in one source file and returns how
// many failed.
func assembleFile(in input, outDir string, rep *reporter) int {
	data, err := in.open()
	if err != nil {
		rep.failed(in.name, err)
		return 1
	}

	failed := 0
	for i, res := range asm.Assemble(string(data)) {
		if res.Err != nil {
			rep.assembleError(in.name, res.Err)
			failed++
			continue
		}

		fallback := baseName(in.name) + "_CLASS_" + strconv.Itoa(i+1)
		path, err := writeOutput(outputPath(outDir, res.Name, fallback, ".class"), res.Data, true)
		if err != nil {
			rep.failed(in.name, err)
			failed++
			continue
		}
		log.Debugf("assembled %s from %s", res.Name, in.name)
		rep.wrote(path)
	}
	return failed
}
