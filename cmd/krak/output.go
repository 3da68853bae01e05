package main

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// maxPathLen bounds output paths derived from class names.
const maxPathLen = 255

// timestamp distinguishes output files from existing ones when not
// overwriting. It is fixed for the whole run.
var timestamp = strconv.FormatInt(time.Now().UnixMilli(), 10)

// outputPath places a class named like "a/b/C" under dir with extension
// ext. Names that would leave dir or make the path too long fall back to
// fallback, which is relative to dir.
func outputPath(dir, className, fallback, ext string) string {
	if className == "" {
		className = "no_class_name_" + timestamp
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		root = filepath.Clean(dir)
	}

	path := filepath.Join(root, filepath.FromSlash(className)) + ext
	if !isInside(path, root) || len(path) > maxPathLen {
		path = filepath.Join(root, fallback) + ext
	}
	return path
}

func isInside(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// writeOutput writes data to path, creating parent directories. Unless
// overwrite is set an existing file is kept and the output goes next to it
// with the run's timestamp added to its name. It returns the path written.
func writeOutput(path string, data []byte, overwrite bool) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		path = claimPath(path)
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}

// claims holds the output paths handed out during this run, so concurrent
// workers writing classes of the same name never pick the same file.
var claims = struct {
	sync.Mutex
	paths map[string]bool
}{paths: map[string]bool{}}

// claimPath returns path if it is free, and otherwise the first free name
// formed by adding the run's timestamp and then a counter.
func claimPath(path string) string {
	claims.Lock()
	defer claims.Unlock()

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := path
		switch {
		case n == 2:
			candidate = stem + "_" + timestamp + ext
		case n > 2:
			candidate = stem + "_" + timestamp + "_" + strconv.Itoa(n-1) + ext
		}
		if claims.paths[candidate] {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			continue
		}
		claims.paths[candidate] = true
		return candidate
	}
}

// input is one file to process, either on disk or inside a jar.
type input struct {
	name string
	open func() ([]byte, error)
}

// collectInputs expands the command line arguments: directories are
// walked for files with extension ext, and for the disassembler (when
// jars is set) .jar archives contribute their class entries.
func collectInputs(args []string, ext string, jars bool) ([]input, []io.Closer, error) {
	var inputs []input
	var closers []io.Closer

	addFile := func(path string) error {
		if jars && filepath.Ext(path) == ".jar" {
			r, err := zip.OpenReader(path)
			if err != nil {
				return fmt.Errorf("open jar %s: %w", path, err)
			}
			closers = append(closers, r)
			for _, f := range r.File {
				if f.FileInfo().IsDir() || filepath.Ext(f.Name) != ext {
					continue
				}
				inputs = append(inputs, input{name: path + "!" + f.Name, open: zipEntryReader(f)})
			}
			return nil
		}
		inputs = append(inputs, input{name: path, open: func() ([]byte, error) { return os.ReadFile(path) }})
		return nil
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, closers, err
		}
		if !info.IsDir() {
			if err := addFile(arg); err != nil {
				return nil, closers, err
			}
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if filepath.Ext(path) == ext || (jars && filepath.Ext(path) == ".jar") {
				return addFile(path)
			}
			return nil
		})
		if err != nil {
			return nil, closers, err
		}
	}

	if len(inputs) == 0 {
		return nil, closers, errors.New("no input files")
	}
	return inputs, closers, nil
}

func zipEntryReader(f *zip.File) func() ([]byte, error) {
	return func() ([]byte, error) {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
}

// baseName is the input's file name without directories or extension.
func baseName(name string) string {
	if i := strings.LastIndexByte(name, '!'); i >= 0 {
		name = name[i+1:]
	}
	name = filepath.Base(filepath.FromSlash(name))
	return strings.TrimSuffix(name, filepath.Ext(name))
}
