package orchestrator

import (
	"fmt"
	"html/template"
	"strings"

	"slideloop/internal/models"
)

// defaultTemplate renders a slide when the carousel carries no template of
// its own. Carousel templates use the same placeholders.
const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  html, body { margin: 0; padding: 0; width: {{.Width}}px; height: {{.Height}}px; overflow: hidden; }
  .slide { position: relative; width: 100%; height: 100%; background: #111; font-family: Helvetica, Arial, sans-serif; }
  .bg { position: absolute; inset: 0; background-size: cover; background-position: center; }
  .content { position: absolute; inset: 0; display: flex; flex-direction: column; justify-content: center; padding: 8%; color: #fff; }
  h1 { font-size: 64px; margin: 0 0 24px; }
  p { font-size: 32px; margin: 0; line-height: 1.4; }
</style>
</head>
<body>
<div class="slide">
{{.BackgroundLayers}}
<div class="content">
<h1>{{.Heading}}</h1>
<p>{{.Body}}</p>
</div>
</div>
</body>
</html>`

type markupData struct {
	Width            int
	Height           int
	Heading          string
	Body             string
	BackgroundLayers template.HTML
}

// BuildSlideMarkup produces the self-contained HTML document the engine
// renders for one slide. Background URLs stack bottom-up as cover layers;
// they must already be fetchable by the browser (signed or proxied).
func BuildSlideMarkup(templateHTML string, slide models.Slide, backgroundURLs []string, width, height int) (string, error) {
	src := templateHTML
	if strings.TrimSpace(src) == "" {
		src = defaultTemplate
	}

	tmpl, err := template.New("slide").Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse slide template: %w", err)
	}

	var layers strings.Builder
	for _, u := range backgroundURLs {
		fmt.Fprintf(&layers, `<div class="bg" style="background-image:url('%s')"></div>`, template.HTMLEscapeString(u))
	}

	var out strings.Builder
	err = tmpl.Execute(&out, markupData{
		Width:            width,
		Height:           height,
		Heading:          slide.Heading,
		Body:             slide.Body,
		BackgroundLayers: template.HTML(layers.String()),
	})
	if err != nil {
		return "", fmt.Errorf("execute slide template: %w", err)
	}
	return out.String(), nil
}
