package main

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name      string
		className string
		want      string
	}{
		{"nested", "a/b/C", filepath.Join(dir, "a", "b", "C.class")},
		{"escape", "../../evil", filepath.Join(dir, "in_CLASS_1.class")},
		{"too long", strings.Repeat("x", 300), filepath.Join(dir, "in_CLASS_1.class")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outputPath(dir, tt.className, "in_CLASS_1", ".class"); got != tt.want {
				t.Errorf("outputPath(%q) = %q, want %q", tt.className, got, tt.want)
			}
		})
	}

	got := outputPath(dir, "", "in", ".j")
	if want := filepath.Join(dir, "no_class_name_"+timestamp+".j"); got != want {
		t.Errorf("outputPath(\"\") = %q, want %q", got, want)
	}
}

func TestWriteOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p", "A.j")

	first, err := writeOutput(path, []byte("one"), false)
	if err != nil || first != path {
		t.Fatalf("writeOutput() = %q, %v, want %q", first, err, path)
	}

	second, err := writeOutput(path, []byte("two"), false)
	if err != nil {
		t.Fatalf("writeOutput() error: %v", err)
	}
	if want := filepath.Join(filepath.Dir(path), "A_"+timestamp+".j"); second != want {
		t.Errorf("writeOutput() = %q, want %q", second, want)
	}
	if data, _ := os.ReadFile(path); string(data) != "one" {
		t.Errorf("existing file = %q, want %q", data, "one")
	}

	third, err := writeOutput(path, []byte("three"), false)
	if err != nil {
		t.Fatalf("writeOutput() error: %v", err)
	}
	if want := filepath.Join(filepath.Dir(path), "A_"+timestamp+"_2.j"); third != want {
		t.Errorf("writeOutput() = %q, want %q", third, want)
	}

	if _, err := writeOutput(path, []byte("three"), true); err != nil {
		t.Fatalf("writeOutput() error: %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "three" {
		t.Errorf("overwritten file = %q, want %q", data, "three")
	}
}

func TestWriteOutputConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "B.j")
	paths := make([]string, 8)
	var eg errgroup.Group
	for i := range paths {
		i := i
		eg.Go(func() error {
			p, err := writeOutput(path, []byte("b"), false)
			paths[i] = p
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("writeOutput() error: %v", err)
	}

	seen := map[string]bool{}
	for _, p := range paths {
		if seen[p] {
			t.Errorf("writeOutput() returned %q twice", p)
		}
		seen[p] = true
	}
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"src/Hello.j":             "Hello",
		"lib.jar!com/x/Foo.class": "Foo",
		"Plain":                   "Plain",
	}
	for in, want := range tests {
		if got := baseName(in); got != want {
			t.Errorf("baseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "A.class"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"p/B.class", "META-INF/MANIFEST.MF"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(name))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	jar := filepath.Join(dir, "sub", "lib.jar")
	os.MkdirAll(filepath.Dir(jar), 0o755)
	if err := os.WriteFile(jar, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	inputs, closers, err := collectInputs([]string{dir}, ".class", true)
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	if err != nil {
		t.Fatalf("collectInputs() error: %v", err)
	}
	if len(inputs) != 2 {
		t.Fatalf("collectInputs() returned %d inputs, want 2", len(inputs))
	}
	if want := jar + "!p/B.class"; inputs[1].name != want {
		t.Errorf("inputs[1].name = %q, want %q", inputs[1].name, want)
	}
	data, err := inputs[1].open()
	if err != nil || string(data) != "p/B.class" {
		t.Errorf("open() = %q, %v", data, err)
	}

	if _, _, err := collectInputs([]string{filepath.Join(dir, "notes.txt")}, ".class", true); err != nil {
		t.Errorf("collectInputs() of a named file error: %v", err)
	}
	if _, _, err := collectInputs([]string{filepath.Join(dir, "sub")}, ".j", false); err == nil {
		t.Error("collectInputs() without matching files succeeded")
	}
}

func TestAssembleAndDisassembleFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "hello.j")
	source := ".class public p/Hello\n.super java/lang/Object\n.end class\n" +
		".class Broken\n.super\n.end class\n"
	if err := os.WriteFile(src, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}

	var out, errOut bytes.Buffer
	rep := &reporter{out: &out, errOut: &errOut, maxNotes: 5}
	outDir := filepath.Join(dir, "out")
	in := input{name: src, open: func() ([]byte, error) { return os.ReadFile(src) }}
	if failed := assembleFile(in, outDir, rep); failed != 1 {
		t.Errorf("assembleFile() = %d failures, want 1", failed)
	}
	if !strings.Contains(errOut.String(), "hello.j:5:7: error: Expected") {
		t.Errorf("diagnostics = %q", errOut.String())
	}

	class := filepath.Join(outDir, "p", "Hello.class")
	if _, err := os.Stat(class); err != nil {
		t.Fatalf("class file not written: %v", err)
	}

	classIn := input{name: class, open: func() ([]byte, error) { return os.ReadFile(class) }}
	path, err := disassembleFile(classIn, outDir, false, false)
	if err != nil {
		t.Fatalf("disassembleFile() error: %v", err)
	}
	if want := filepath.Join(outDir, "p", "Hello.j"); path != want {
		t.Errorf("disassembleFile() = %q, want %q", path, want)
	}
	text, _ := os.ReadFile(path)
	if !strings.Contains(string(text), ".class public p/Hello\n") {
		t.Errorf("disassembly = %q", text)
	}
}
