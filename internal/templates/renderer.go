// Package templates renders HTML email bodies from two directories: a user
// namespace that overrides a default namespace file by file.
package templates

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"path"
	"strings"

	"github.com/spf13/afero"
)

var ErrTemplateNotFound = errors.New("template not found")

type Renderer struct {
	fs         afero.Fs
	userDir    string
	defaultDir string
	ext        string
}

// NewRenderer looks templates up in userDir then defaultDir. Names without
// an extension get ext appended (".html" when empty).
func NewRenderer(fs afero.Fs, userDir, defaultDir, ext string) *Renderer {
	if ext == "" {
		ext = ".html"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Renderer{fs: fs, userDir: userDir, defaultDir: defaultDir, ext: ext}
}

func (r *Renderer) fileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return "", fmt.Errorf("%w: invalid name %q", ErrTemplateNotFound, name)
	}
	if path.Ext(name) == "" {
		name += r.ext
	}
	return name, nil
}

// Lookup returns the path that would be rendered for name.
func (r *Renderer) Lookup(name string) (string, error) {
	file, err := r.fileName(name)
	if err != nil {
		return "", err
	}
	for _, dir := range []string{r.userDir, r.defaultDir} {
		if dir == "" {
			continue
		}
		p := path.Join(dir, file)
		ok, err := afero.Exists(r.fs, p)
		if err != nil {
			return "", err
		}
		if ok {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, file)
}

func (r *Renderer) Exists(name string) bool {
	_, err := r.Lookup(name)
	return err == nil
}

// Render executes the first matching template with data.
func (r *Renderer) Render(name string, data map[string]any) (string, error) {
	p, err := r.Lookup(name)
	if err != nil {
		return "", err
	}
	src, err := afero.ReadFile(r.fs, p)
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", p, err)
	}
	tpl, err := template.New(path.Base(p)).Parse(string(src))
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", p, err)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", p, err)
	}
	return buf.String(), nil
}
