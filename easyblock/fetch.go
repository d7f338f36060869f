package easyblock

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	stdtime "time"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmbuild/config"
	"github.com/mensylisir/xmbuild/eberr"
	"github.com/mensylisir/xmbuild/file"
)

const downloadTimeout = 30 * stdtime.Minute

// PatchSpec is an easyconfig patch entry: a file name, optionally with a strip level and a
// sub directory of the source tree.
type PatchSpec struct {
	Name   string
	Path   string
	Level  int
	SubDir string
}

func parsePatches(cfg *config.EasyConfig) ([]PatchSpec, error) {
	var out []PatchSpec
	for _, item := range listOf(cfg.Get(config.ParamPatches)) {
		ps := PatchSpec{Level: -1}
		switch t := item.(type) {
		case string:
			ps.Name = t
		case map[string]interface{}:
			ps.Name, _ = t["name"].(string)
			if lvl, ok := t["level"].(int); ok {
				ps.Level = lvl
			}
			ps.SubDir, _ = t["subdir"].(string)
		default:
			return nil, eberr.NewConfigError(config.ParamPatches, "invalid patch entry %v", item)
		}
		if ps.Name == "" {
			return nil, eberr.NewConfigError(config.ParamPatches, "invalid patch entry %v", item)
		}
		resolved, err := cfg.Resolve(ps.Name)
		if err != nil {
			return nil, err
		}
		ps.Name = resolved
		out = append(out, ps)
	}
	return out, nil
}

// sourceCandidates lists where a file is looked for, in order.
func (c *Context) sourceCandidates(name string) []string {
	sw := c.Config.Name()
	letter := strings.ToLower(sw[:1])
	var out []string
	for _, sp := range c.Settings.SourcePath {
		out = append(out,
			filepath.Join(sp, letter, sw, name),
			filepath.Join(sp, sw, name),
			filepath.Join(sp, name),
		)
	}
	if c.Config.Path != "" {
		out = append(out, filepath.Join(filepath.Dir(c.Config.Path), name))
	}
	return out
}

// downloadTarget is where a downloaded file is stored: under the first source path, or
// in the build dir when no source path is configured.
func (c *Context) downloadTarget(name string) string {
	if len(c.Settings.SourcePath) == 0 {
		return filepath.Join(c.BuildDir(), name)
	}
	sw := c.Config.Name()
	return filepath.Join(c.Settings.SourcePath[0], strings.ToLower(sw[:1]), sw, name)
}

// obtain finds name locally or downloads it from the source URLs.
func (c *Context) obtain(ctx context.Context, name string, urls []string) (string, error) {
	if filepath.IsAbs(name) {
		if ok, _ := file.PathExists(name); ok {
			return name, nil
		}
	}
	for _, cand := range c.sourceCandidates(filepath.Base(name)) {
		if ok, _ := file.PathExists(cand); ok {
			c.Log.Debugf("found %s at %s", name, cand)
			return cand, nil
		}
	}
	if len(urls) == 0 || len(c.Settings.SourcePath) == 0 {
		return "", errors.Errorf("%s not found in source paths %v and no source_urls to download from", name, c.Settings.SourcePath)
	}
	dst := c.downloadTarget(filepath.Base(name))
	var errs []string
	for _, base := range urls {
		url := strings.TrimSuffix(base, "/") + "/" + filepath.Base(name)
		c.Log.Infof("downloading %s", url)
		if err := download(ctx, url, dst); err != nil {
			c.Log.WithError(err).Warnf("download of %s failed", url)
			errs = append(errs, err.Error())
			continue
		}
		return dst, nil
	}
	return "", errors.Errorf("could not download %s: %s", name, strings.Join(errs, "; "))
}

func download(ctx context.Context, url, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("GET %s: %s", url, resp.Status)
	}
	if err := file.CreateFileDir(dst); err != nil {
		return err
	}
	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// defaultFetch locates every source and patch file and verifies the configured checksums,
// which list sources first and patches after them.
func (c *Context) defaultFetch(ctx context.Context) error {
	sources := c.Config.GetStringSlice(config.ParamSources)
	urls := c.Config.GetStringSlice(config.ParamSourceURLs)
	checksums := c.Config.GetStringSlice(config.ParamChecksums)
	patches, err := parsePatches(c.Config)
	if err != nil {
		return err
	}

	c.sources = c.sources[:0]
	for i, name := range sources {
		path, err := c.obtain(ctx, name, urls)
		if err != nil {
			if c.Runtime.DryRun {
				c.Log.Warnf("dry run: %v", err)
				c.sources = append(c.sources, c.downloadTarget(name))
				continue
			}
			return err
		}
		if err := verify(path, checksums, i); err != nil {
			return err
		}
		c.sources = append(c.sources, path)
	}

	c.patches = c.patches[:0]
	for j, ps := range patches {
		path, err := c.obtain(ctx, ps.Name, urls)
		if err != nil {
			if c.Runtime.DryRun {
				c.Log.Warnf("dry run: %v", err)
				continue
			}
			return err
		}
		if err := verify(path, checksums, len(sources)+j); err != nil {
			return err
		}
		ps.Path = path
		c.patches = append(c.patches, ps)
	}
	return nil
}

func verify(path string, checksums []string, idx int) error {
	if idx >= len(checksums) || checksums[idx] == "" {
		return nil
	}
	return file.VerifyChecksum(path, checksums[idx])
}
