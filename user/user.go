// Package user holds the programs shipped in the root filesystem image.
// Each one is assembled for the kernel's instruction set at build time.
package user

import (
	"fmt"
	"sort"

	"kestrel/kernel/cpu/asm"
	"kestrel/kernel/exe"
	"kestrel/kernel/fs"
)

// Program is a named executable under /bin.
type Program struct {
	Name  string
	About string
	build func() *asm.Program
}

var programs = []Program{
	{Name: "init", About: "spawn each argument and reap children", build: initProgram},
	{Name: "hello", About: "print a greeting", build: hello},
	{Name: "exit", About: "exit with argc-1", build: exitProgram},
	{Name: "fault", About: "store through a null pointer", build: fault},
	{Name: "sleep", About: "sleep 50ms and report the elapsed time", build: sleep},
	{Name: "cat", About: "copy a file or stdin to stdout", build: cat},
	{Name: "forktest", About: "fork children and reap their exit codes", build: forktest},
	{Name: "pipetest", About: "send a message through a pipe", build: pipetest},
	{Name: "threads", About: "interleave output from three threads", build: threads},
	{Name: "mutextest", About: "count under a blocking mutex", build: mutextest},
	{Name: "semtest", About: "wait on a semaphore", build: semtest},
	{Name: "condtest", About: "wait on a condition variable", build: condtest},
}

// Path returns the absolute path of the program in the image.
func (p Program) Path() string { return "/bin/" + p.Name }

// Image assembles the program.
func (p Program) Image() (*exe.Image, error) {
	img, err := p.build().Image()
	if err != nil {
		return nil, fmt.Errorf("user: %s: %w", p.Name, err)
	}
	return img, nil
}

// Programs lists the built-in programs sorted by name.
func Programs() []Program {
	out := append([]Program(nil), programs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds a program by name or path.
func Lookup(name string) (Program, bool) {
	for _, p := range programs {
		if p.Name == name || p.Path() == name {
			return p, true
		}
	}
	return Program{}, false
}

// Files encodes every program for fs.Format, plus the given extra files.
func Files(extra ...fs.StoreFile) ([]fs.StoreFile, error) {
	files := make([]fs.StoreFile, 0, len(programs)+len(extra))
	for _, p := range Programs() {
		img, err := p.Image()
		if err != nil {
			return nil, err
		}
		data, err := img.Encode()
		if err != nil {
			return nil, fmt.Errorf("user: %s: %w", p.Name, err)
		}
		files = append(files, fs.StoreFile{Name: p.Path(), Data: data})
	}
	return append(files, extra...), nil
}
