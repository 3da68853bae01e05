package main

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dhamidi/krak/classfile"
	"github.com/dhamidi/krak/disasm"
)

func newDisCmd() *cobra.Command {
	var outDir string
	var roundtrip, overwrite bool

	cmd := &cobra.Command{
		Use:   "dis <file.class|file.jar|dir>...",
		Short: "Disassemble class files into Krakatau assembly",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, closers, err := collectInputs(args, ".class", true)
			defer func() {
				for _, c := range closers {
					c.Close()
				}
			}()
			if err != nil {
				return err
			}

			rep := newReporter(cmd.OutOrStdout(), os.Stderr, 0)
			var failed atomic.Int64
			var eg errgroup.Group
			eg.SetLimit(runtime.GOMAXPROCS(0))
			for _, in := range inputs {
				in := in
				eg.Go(func() error {
					path, err := disassembleFile(in, outDir, roundtrip, overwrite)
					if err != nil {
						rep.failed(in.name, err)
						failed.Add(1)
						return nil
					}
					rep.wrote(path)
					return nil
				})
			}
			eg.Wait()

			if n := failed.Load(); n > 0 {
				return fmt.Errorf("%d of %d files failed to disassemble", n, len(inputs))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().BoolVarP(&roundtrip, "roundtrip", "r", false, "write output that reassembles to the identical class file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing output files")

	return cmd
}

func disassembleFile(in input, outDir string, roundtrip, overwrite bool) (string, error) {
	data, err := in.open()
	if err != nil {
		return "", err
	}
	cf, err := classfile.Parse(data)
	if err != nil {
		return "", fmt.Errorf("failed to parse class file: %w", err)
	}

	var buf bytes.Buffer
	if err := disasm.NewEncoder(&buf, disasm.WithRoundtrip(roundtrip)).Encode(cf); err != nil {
		return "", err
	}

	name, _ := cf.ClassName()
	log.Debugf("disassembled %s from %s", name, in.name)
	return writeOutput(outputPath(outDir, name, baseName(in.name), ".j"), buf.Bytes(), overwrite)
}
