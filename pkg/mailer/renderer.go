package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"path"
	"sync"
	texttemplate "text/template"

	"github.com/yuin/goldmark"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"
)

// Renderer converts markdown notification templates to HTML email bodies.
// Parsed templates and layouts are cached; rendering is safe for concurrent
// use.
type Renderer struct {
	fs fs.FS
	md goldmark.Markdown

	templates map[string]*parsedTemplate
	layouts   map[string]*htmltemplate.Template

	templateDir string
	layoutDir   string

	mu sync.RWMutex
}

// parsedTemplate holds the pre-parsed subject and body templates.
type parsedTemplate struct {
	subject *texttemplate.Template // nil when frontmatter carries no Subject
	body    *texttemplate.Template
}

// frontmatter is the YAML header recognized at the top of a template.
type frontmatter struct {
	Subject string `yaml:"Subject"`
}

// RendererConfig configures template lookup paths.
type RendererConfig struct {
	TemplateDir string // Default: "."
	LayoutDir   string // Default: "layouts"
}

// NewRenderer creates a renderer with default lookup paths.
func NewRenderer(filesystem fs.FS) *Renderer {
	return NewRendererWithConfig(filesystem, RendererConfig{})
}

// NewRendererWithConfig creates a renderer with custom lookup paths.
func NewRendererWithConfig(filesystem fs.FS, cfg RendererConfig) *Renderer {
	if cfg.TemplateDir == "" {
		cfg.TemplateDir = "."
	}
	if cfg.LayoutDir == "" {
		cfg.LayoutDir = "layouts"
	}

	return &Renderer{
		fs:          filesystem,
		templateDir: cfg.TemplateDir,
		layoutDir:   cfg.LayoutDir,
		// Hard wraps turn single newlines into <br>, so multi-line user
		// input keeps its line breaks in the HTML body.
		md: goldmark.New(
			goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
		),
		templates: make(map[string]*parsedTemplate),
		layouts:   make(map[string]*htmltemplate.Template),
	}
}

// Rendered is the result of rendering a template: the executed subject line,
// the final HTML document, and the plain-text alternative.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Render executes the named template with data, converts the markdown body
// to HTML, and wraps it in the named layout. The frontmatter Subject is
// executed as a template with the same data; it is empty when the template
// declares none.
func (r *Renderer) Render(layout, name string, data any) (*Rendered, error) {
	tmpl, err := r.template(name)
	if err != nil {
		return nil, err
	}

	var markdown bytes.Buffer
	if err := tmpl.body.Execute(&markdown, data); err != nil {
		return nil, fmt.Errorf("%w: execute %s: %v", ErrRenderFailed, name, err)
	}

	var body bytes.Buffer
	if err := r.md.Convert(markdown.Bytes(), &body); err != nil {
		return nil, fmt.Errorf("%w: convert %s: %v", ErrRenderFailed, name, err)
	}

	layoutTmpl, err := r.layout(layout)
	if err != nil {
		return nil, err
	}

	var html bytes.Buffer
	if err := layoutTmpl.Execute(&html, map[string]any{
		"Content": htmltemplate.HTML(body.String()),
	}); err != nil {
		return nil, fmt.Errorf("%w: execute layout %s: %v", ErrRenderFailed, layout, err)
	}

	subject := ""
	if tmpl.subject != nil {
		var buf bytes.Buffer
		if err := tmpl.subject.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("%w: execute subject: %v", ErrRenderFailed, err)
		}
		subject = buf.String()
	}

	return &Rendered{
		Subject: subject,
		HTML:    html.String(),
		Text:    markdown.String(),
	}, nil
}

// template returns a cached parsed template, loading it on first use.
func (r *Renderer) template(name string) (*parsedTemplate, error) {
	r.mu.RLock()
	cached, ok := r.templates[name]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.templates[name]; ok {
		return cached, nil
	}

	content, err := fs.ReadFile(r.fs, path.Join(r.templateDir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateNotFound, name, err)
	}

	meta, bodySrc, err := splitFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	body, err := texttemplate.New(name).Parse(string(bodySrc))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrRenderFailed, name, err)
	}

	parsed := &parsedTemplate{body: body}
	if meta.Subject != "" {
		subject, err := texttemplate.New(name + ":subject").Parse(meta.Subject)
		if err != nil {
			return nil, fmt.Errorf("%w: parse subject of %s: %v", ErrRenderFailed, name, err)
		}
		parsed.subject = subject
	}

	r.templates[name] = parsed
	return parsed, nil
}

// layout returns a cached layout template, loading it on first use.
func (r *Renderer) layout(name string) (*htmltemplate.Template, error) {
	r.mu.RLock()
	cached, ok := r.layouts[name]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.layouts[name]; ok {
		return cached, nil
	}

	content, err := fs.ReadFile(r.fs, path.Join(r.layoutDir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLayoutNotFound, name, err)
	}

	tmpl, err := htmltemplate.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("%w: parse layout %s: %v", ErrRenderFailed, name, err)
	}

	r.layouts[name] = tmpl
	return tmpl, nil
}

// splitFrontmatter separates an optional YAML frontmatter block from the
// markdown body. Templates without frontmatter render with an empty subject.
func splitFrontmatter(content []byte) (frontmatter, []byte, error) {
	delim := []byte("---")
	var meta frontmatter

	if !bytes.HasPrefix(content, delim) {
		return meta, content, nil
	}

	rest := bytes.TrimLeft(bytes.TrimPrefix(content, delim), "\r\n")
	end := bytes.Index(rest, delim)
	if end == -1 {
		return meta, nil, fmt.Errorf("%w: closing delimiter not found", ErrInvalidFrontmatter)
	}

	if err := yaml.Unmarshal(rest[:end], &meta); err != nil {
		return meta, nil, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
	}

	body := bytes.TrimLeft(rest[end+len(delim):], "\r\n")
	return meta, body, nil
}
