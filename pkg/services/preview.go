package services

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"docs-editor/pkg/models"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// DefaultPreviewStyle is the chroma style used for fenced code.
const DefaultPreviewStyle = "github"

// ImagePreviewPath is the endpoint serving document images.
const ImagePreviewPath = "/api/image_preview"

// PreviewRenderer turns document markdown into HTML the way the editor
// preview pane shows it.
type PreviewRenderer struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

func NewPreviewRenderer(styleName string) *PreviewRenderer {
	return &PreviewRenderer{
		style:     styles.Get(styleName),
		formatter: chromahtml.New(chromahtml.WithClasses(false)),
	}
}

// Render converts markdown to HTML. When slug is set, relative ./img/
// image sources are pointed at the image preview endpoint for slug.
func (r *PreviewRenderer) Render(slug string, markdown []byte) ([]byte, error) {
	var transformers []util.PrioritizedValue
	if slug != "" {
		transformers = append(transformers, util.Prioritized(imageRewriter{slug: slug}, 100))
	}

	engine := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(transformers...),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
			renderer.WithNodeRenderers(util.Prioritized(&codeBlockRenderer{r: r}, 200)),
		),
	)

	var buf bytes.Buffer
	if err := engine.Convert(markdown, &buf); err != nil {
		return nil, fmt.Errorf("markdown render: %w", err)
	}
	return buf.Bytes(), nil
}

// ImagePreviewURL is the URL the preview uses for an image of slug.
func ImagePreviewURL(slug, file string) string {
	q := url.Values{}
	q.Set("slug", slug)
	q.Set("file", file)
	return ImagePreviewPath + "?" + q.Encode()
}

type imageRewriter struct {
	slug string
}

func (t imageRewriter) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}
		dest := string(img.Destination)
		for _, prefix := range []string{"./" + ImageDirName + "/", ImageDirName + "/"} {
			if strings.HasPrefix(dest, prefix) {
				img.Destination = []byte(ImagePreviewURL(t.slug, strings.TrimPrefix(dest, prefix)))
				break
			}
		}
		return ast.WalkContinue, nil
	})
}

// codeBlockRenderer highlights fenced code blocks with chroma.
type codeBlockRenderer struct {
	r *PreviewRenderer
}

func (c *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, c.renderFencedCodeBlock)
}

func (c *codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var code strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	lexer := lexers.Get(string(n.Language(source)))
	if lexer == nil {
		lexer = lexers.Fallback
	}
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code.String())
	if err != nil {
		return ast.WalkStop, err
	}
	if err := c.r.formatter.Format(w, c.r.style, iterator); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkSkipChildren, nil
}

// RenderPreview renders content for the editor preview pane. Front matter is
// stripped and its title returned.
func (s *Service) RenderPreview(slug, content string) (*models.Preview, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if slug != "" {
		clean, err := CleanPath(slug)
		if err != nil {
			return nil, err
		}
		slug = clean
	}

	body := content
	var title string
	if fm, rest, _, err := ParseFrontMatter([]byte(content)); err == nil {
		body = rest
		title = FrontMatterTitle(fm)
	}

	out, err := s.preview.Render(slug, []byte(body))
	if err != nil {
		return nil, err
	}
	return &models.Preview{HTML: string(out), Title: title}, nil
}
