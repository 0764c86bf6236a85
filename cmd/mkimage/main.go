//go:build !tinygo

// Command mkimage writes an image-store file: the built-in programs plus
// files imported from the host.
package main

import (
	"errors"
	"flag"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kestrel/hal"
	"kestrel/kernel/fs"
	"kestrel/user"

	"github.com/google/shlex"
)

const defaultImagePath = "kestrel.img"

type options struct {
	src     string
	add     string
	out     string
	size    int64
	builtin bool
	list    bool
}

func main() {
	var o options
	flag.StringVar(&o.src, "src", "", "Host directory whose files are imported under /.")
	flag.StringVar(&o.add, "add", "", `Extra files as shell-quoted "host=path" pairs.`)
	flag.StringVar(&o.out, "out", defaultImagePath, "Output image path.")
	flag.Int64Var(&o.size, "size", hal.DefaultStorageBytes, "Image size (bytes).")
	flag.BoolVar(&o.builtin, "builtin", true, "Include the built-in programs under /bin.")
	flag.BoolVar(&o.list, "list", false, "List the files in -out instead of writing it.")
	flag.Parse()

	if o.out == "" {
		fmt.Fprintln(os.Stderr, "error: -out is required")
		os.Exit(2)
	}
	var err error
	if o.list {
		err = list(o.out)
	} else {
		err = run(o)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(o options) error {
	var files []fs.StoreFile
	if o.builtin {
		bin, err := user.Files()
		if err != nil {
			return err
		}
		files = append(files, bin...)
	}
	if o.src != "" {
		imported, err := walk(o.src)
		if err != nil {
			return err
		}
		files = append(files, imported...)
	}
	extra, err := parseAdd(o.add)
	if err != nil {
		return err
	}
	files = append(files, extra...)
	if len(files) == 0 {
		return errors.New("nothing to write")
	}

	if err := os.Remove(o.out); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return err
	}
	dev, err := hal.OpenStorage(o.out, o.size)
	if err != nil {
		return err
	}
	defer func() { _ = dev.Close() }()
	if err := fs.Format(dev, files); err != nil {
		return fmt.Errorf("format %q: %w", o.out, err)
	}
	if err := dev.Sync(); err != nil {
		return err
	}
	fmt.Printf("%s: %d files\n", o.out, len(files))
	return nil
}

// walk reads every regular file under dir, named by its slash path
// relative to dir.
func walk(dir string) ([]fs.StoreFile, error) {
	dir = filepath.Clean(dir)
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat src %q: %w", dir, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("src %q is not a directory", dir)
	}

	var files []fs.StoreFile
	err = filepath.WalkDir(dir, func(p string, entry iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, fs.StoreFile{Name: "/" + filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk src %q: %w", dir, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func parseAdd(s string) ([]fs.StoreFile, error) {
	words, err := shlex.Split(s)
	if err != nil {
		return nil, fmt.Errorf("-add: %w", err)
	}
	var files []fs.StoreFile
	for _, w := range words {
		host, name, ok := strings.Cut(w, "=")
		if !ok || host == "" || name == "" {
			return nil, fmt.Errorf("-add: %q is not host=path", w)
		}
		data, err := os.ReadFile(host)
		if err != nil {
			return nil, err
		}
		files = append(files, fs.StoreFile{Name: name, Data: data})
	}
	return files, nil
}

func list(path string) error {
	dev, err := hal.OpenStorage(path, 0)
	if err != nil {
		return err
	}
	defer func() { _ = dev.Close() }()
	s, err := fs.OpenStore(dev)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for _, name := range s.List("/") {
		e, _ := s.Lookup(name)
		fmt.Printf("%8d %s\n", e.Size, name)
	}
	return nil
}
