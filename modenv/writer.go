package modenv

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/file"
)

// Writer places module files under a module path.
type Writer struct {
	Dir string
	Gen Generator
}

// NewWriter returns a Writer for dir.
func NewWriter(dir string, gen Generator) *Writer {
	return &Writer{Dir: dir, Gen: gen}
}

// Path is <dir>/<name>/<version><ext>.
func (w *Writer) Path(meta Meta) string {
	return filepath.Join(w.Dir, meta.Name, meta.Version+w.Gen.Extension())
}

// Write stores text as the module file of meta and returns its path.
func (w *Writer) Write(meta Meta, text string) (string, error) {
	path := w.Path(meta)
	if err := file.WriteFile(path, []byte(text)); err != nil {
		return "", errors.Wrapf(err, "failed to write module file for %s", meta.ModuleName())
	}
	return path, nil
}

// Render renders and writes the module file in one go.
func (w *Writer) Render(meta Meta, desc *Description) (string, error) {
	text, err := w.Gen.Render(meta, desc)
	if err != nil {
		return "", err
	}
	return w.Write(meta, text)
}

// Read parses the module file previously written for meta.
func (w *Writer) Read(meta Meta) (*Module, error) {
	return ReadFile(w.Gen.Syntax(), w.Path(meta))
}

// ReadFile parses the module file at path.
func ReadFile(syntax config.ModuleSyntax, path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read module file %s", path)
	}
	m, err := Parse(syntax, string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse module file %s", path)
	}
	return m, nil
}

// FakeModule is a transient module file used to activate an installation before its
// real module exists.
type FakeModule struct {
	Dir    string
	Path   string
	Module *Module
	Text   string
}

// NewFakeModule renders meta and desc into a fresh temporary module path.
func NewFakeModule(gen Generator, meta Meta, desc *Description) (*FakeModule, error) {
	text, err := gen.Render(meta, desc)
	if err != nil {
		return nil, err
	}
	if err := file.CreateDir(common.GetTmpDir()); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(common.GetTmpDir(), "fake-module-")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fake module dir")
	}
	w := NewWriter(dir, gen)
	path, err := w.Write(meta, text)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return &FakeModule{
		Dir:    dir,
		Path:   path,
		Module: &Module{Meta: meta, Desc: desc.Clone()},
		Text:   text,
	}, nil
}

// Load applies the fake module to env.
func (f *FakeModule) Load(env Env) {
	Apply(env, f.Module.Meta, f.Module.Desc)
}

// Cleanup removes the temporary module path.
func (f *FakeModule) Cleanup() error {
	if f == nil || f.Dir == "" {
		return nil
	}
	return file.RemoveAll(f.Dir)
}
