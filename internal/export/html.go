// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// HTMLExporter writes a standalone page. Answers go through goldmark,
// which drops raw HTML, so the page carries no markup from the service.
type HTMLExporter struct{}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Linkify))

type htmlExchange struct {
	Query   string
	Screen  string
	Asked   string
	Answer  template.HTML
	Stopped bool
}

type htmlPage struct {
	Title     string
	Generated string
	Exchanges []htmlExchange
}

func (HTMLExporter) Export(t Transcript) ([]byte, error) {
	if len(t.Exchanges) == 0 {
		return nil, ErrEmpty
	}

	page := htmlPage{Title: t.Title, Generated: time.Now().Format(time.RFC3339)}
	for _, ex := range t.Exchanges {
		var body bytes.Buffer
		if err := markdown.Convert([]byte(ex.Answer), &body); err != nil {
			return nil, fmt.Errorf("render answer %d: %w", ex.ID, err)
		}
		page.Exchanges = append(page.Exchanges, htmlExchange{
			Query:   ex.Query,
			Screen:  ex.Screen,
			Asked:   formatTimestamp(ex.AskedAt),
			Answer:  template.HTML(body.String()),
			Stopped: ex.Stopped,
		})
	}

	var out bytes.Buffer
	if err := pageTemplate.Execute(&out, page); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (HTMLExporter) FileExtension() string { return ".html" }

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<meta name="generator" content="campusbot">
<meta name="date" content="{{.Generated}}">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; background: #0f172a; color: #e2e8f0; }
h1 { color: #22d3ee; }
.exchange { border-left: 3px solid #a78bfa; margin: 1.5rem 0; padding: 0 1rem; }
.query { color: #22d3ee; font-weight: 600; }
.meta { color: #94a3b8; font-size: 0.8rem; }
.stopped { color: #fbbf24; font-size: 0.8rem; }
table { border-collapse: collapse; }
td, th { border: 1px solid #334155; padding: 0.25rem 0.5rem; }
a { color: #a78bfa; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Exchanges}}<section class="exchange">
<p class="query">{{.Query}}</p>
<p class="meta">{{.Screen}} · {{.Asked}}</p>
<div class="answer">{{.Answer}}</div>
{{if .Stopped}}<p class="stopped">[stopped]</p>{{end}}</section>
{{end}}</body>
</html>
`))
