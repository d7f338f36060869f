// Package patch applies declarative edits to unpacked sources: regex substitutions with an
// expected match count, file operations, and patch files.
package patch

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/common"
	"github.com/mensylisir/xmbuild/eberr"
	"github.com/mensylisir/xmbuild/file"
	"github.com/mensylisir/xmbuild/runner"
)

const (
	// AtLeastOnce requires one or more matches.
	AtLeastOnce = 0
	// Optional accepts any number of matches, including none.
	Optional = -1
)

// Op is one regex substitution. Pattern is compiled in multi-line mode, so ^ and $ match at
// line boundaries. Replacement may reference groups as ${1}.
type Op struct {
	File        string
	Pattern     string
	Replacement string
	// Count is the exact number of required matches when positive, or AtLeastOnce or Optional.
	Count int
}

// Sub is shorthand for an Op that must match at least once.
func Sub(file, pattern, replacement string) Op {
	return Op{File: file, Pattern: pattern, Replacement: replacement, Count: AtLeastOnce}
}

func (op Op) check(matches int) bool {
	switch {
	case op.Count == Optional:
		return true
	case op.Count == AtLeastOnce:
		return matches > 0
	default:
		return matches == op.Count
	}
}

// Apply runs ops in order against files relative to root. The first time a file changes its
// original content is kept next to it with common.BackupSuffix. The first failing op stops the run.
func Apply(root string, ops ...Op) error {
	backedUp := make(map[string]bool)
	for _, op := range ops {
		if err := applyOne(root, op, backedUp); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(root string, op Op, backedUp map[string]bool) error {
	path := op.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	re, err := regexp.Compile("(?m)" + op.Pattern)
	if err != nil {
		return &eberr.PatchError{File: op.File, Pattern: op.Pattern, Op: "compile", Err: err}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return &eberr.PatchError{File: op.File, Pattern: op.Pattern, Op: "read", Err: err}
	}

	matches := len(re.FindAllIndex(content, -1))
	if !op.check(matches) {
		return &eberr.PatchError{File: op.File, Pattern: op.Pattern, Matches: matches, Want: op.Count}
	}
	if matches == 0 {
		return nil
	}
	updated := re.ReplaceAll(content, []byte(op.Replacement))
	if string(updated) == string(content) {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return &eberr.PatchError{File: op.File, Op: "stat", Err: err}
	}
	if !backedUp[path] {
		backup := path + common.BackupSuffix
		if ok, _ := file.PathExists(backup); !ok {
			if err := os.WriteFile(backup, content, info.Mode().Perm()); err != nil {
				return &eberr.PatchError{File: op.File, Op: "backup", Err: err}
			}
		}
		backedUp[path] = true
	}
	if err := os.WriteFile(path, updated, info.Mode().Perm()); err != nil {
		return &eberr.PatchError{File: op.File, Op: "write", Err: err}
	}
	return nil
}

// FileOpKind selects a file operation.
type FileOpKind string

const (
	Copy    FileOpKind = "copy"
	Move    FileOpKind = "move"
	Symlink FileOpKind = "symlink"
	// Write creates Dst with Content.
	Write FileOpKind = "write"
)

// FileOp is a file operation relative to a root directory. For Symlink, Src is the link target
// and is used verbatim.
type FileOp struct {
	Kind    FileOpKind
	Src     string
	Dst     string
	Content string
}

// ApplyFileOps runs ops in order; a failure is a *eberr.PatchError.
func ApplyFileOps(root string, ops ...FileOp) error {
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}
	for _, op := range ops {
		var err error
		switch op.Kind {
		case Copy:
			var isDir bool
			if isDir, err = file.IsDir(abs(op.Src)); err == nil {
				if isDir {
					err = file.CopyDir(abs(op.Src), abs(op.Dst))
				} else {
					err = file.CopyFile(abs(op.Src), abs(op.Dst))
				}
			}
		case Move:
			err = file.Move(abs(op.Src), abs(op.Dst))
		case Symlink:
			err = file.Symlink(op.Src, abs(op.Dst))
		case Write:
			err = file.WriteFile(abs(op.Dst), []byte(op.Content))
		default:
			err = errors.Errorf("unknown file operation %q", op.Kind)
		}
		if err != nil {
			return &eberr.PatchError{File: op.Dst, Op: string(op.Kind), Err: err}
		}
	}
	return nil
}

// PatchFile is a unified diff applied with the patch tool.
type PatchFile struct {
	Path string
	// Level is the -p strip level; negative means guess from the diff headers.
	Level int
	// SubDir is relative to the source root.
	SubDir string
}

// ApplyPatchFile runs patch(1) for pf inside root.
func ApplyPatchFile(ctx context.Context, r runner.Runner, root string, pf PatchFile) error {
	level := pf.Level
	if level < 0 {
		guessed, err := GuessLevel(pf.Path, filepath.Join(root, pf.SubDir))
		if err != nil {
			return &eberr.PatchError{File: pf.Path, Op: "patch", Err: err}
		}
		level = guessed
	}
	dir := filepath.Join(root, pf.SubDir)
	cmd := runner.Command("patch", "-b", "-p"+strconv.Itoa(level), "-i", pf.Path)
	if _, err := r.Run(ctx, cmd, runner.WithDir(dir)); err != nil {
		return &eberr.PatchError{File: pf.Path, Op: "patch", Err: err}
	}
	return nil
}

var diffTarget = regexp.MustCompile(`(?m)^\+\+\+ (\S+)`)

// GuessLevel finds the smallest strip level at which a file named in the patch exists under dir.
func GuessLevel(patchPath, dir string) (int, error) {
	content, err := os.ReadFile(patchPath)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read patch %s", patchPath)
	}
	targets := diffTarget.FindAllStringSubmatch(string(content), -1)
	if len(targets) == 0 {
		return 0, errors.Errorf("no '+++' lines in patch %s", patchPath)
	}
	for _, m := range targets {
		parts := strings.Split(filepath.ToSlash(m[1]), "/")
		for level := 0; level < len(parts); level++ {
			candidate := filepath.Join(append([]string{dir}, parts[level:]...)...)
			if ok, _ := file.PathExists(candidate); ok {
				return level, nil
			}
		}
	}
	return 0, errors.Errorf("could not determine patch level for %s in %s", patchPath, dir)
}
