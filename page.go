package main

import (
	"html/template"
	"strconv"

	"promptlab/models"
)

// pageView is everything the form template renders
type pageView struct {
	Mode          models.Mode
	Modes         []models.Mode
	Prompt        string
	Option        string
	OptionLabel   string
	OptionChoices []string
	Endpoint      string
	Model         string
	Temperature   string
	Credential    string // masked stored credential, never the raw value
	Debug         bool

	Answer string
	Status string
	Kind   string
	Trace  []string
}

func newPageView(mode models.Mode, s models.ConnectionSettings) *pageView {
	return &pageView{
		Mode:          mode,
		Modes:         models.Modes,
		OptionLabel:   mode.OptionLabel(),
		OptionChoices: mode.OptionChoices(),
		Endpoint:      s.Endpoint,
		Model:         s.Model,
		Temperature:   strconv.FormatFloat(s.Temperature, 'f', -1, 64),
		Credential:    maskedOrEmpty(s.APIKey),
	}
}

func maskedOrEmpty(key string) string {
	if key == "" {
		return ""
	}
	return models.MaskCredential(key)
}

// modePath is the page URL for a mode
func modePath(m models.Mode) string {
	if m == models.ModeGeneral {
		return "/"
	}
	return "/" + string(m)
}

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"path": modePath,
}).Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>promptlab - {{.Mode.Title}}</title>
    <style>
        body { font-family: monospace; max-width: 860px; margin: 0 auto; padding: 1rem; }
        nav a { margin-right: 1rem; }
        nav a.active { font-weight: bold; }
        label { display: block; margin-top: .75rem; }
        input[type=text], input[type=password], input[type=number], select, textarea { width: 100%; box-sizing: border-box; }
        textarea { min-height: 8rem; }
        .buttons { margin-top: 1rem; }
        .status { margin-top: 1rem; color: #555; }
        .answer { white-space: pre-wrap; border: 1px solid #ccc; padding: .75rem; margin-top: .5rem; }
        .trace { white-space: pre-wrap; background: #f4f4f4; font-size: .85em; padding: .75rem; }
        details { margin-top: .75rem; }
    </style>
</head>
<body>
    <nav>
        {{- range .Modes}}
        <a href="{{path .}}"{{if eq . $.Mode}} class="active"{{end}}>{{.Title}}</a>
        {{- end}}
    </nav>
    <h1>{{.Mode.Title}}</h1>
    <form method="POST" action="{{path .Mode}}" data-lab-form>
        <label for="prompt">Prompt</label>
        <textarea id="prompt" name="prompt">{{.Prompt}}</textarea>
        {{- if .OptionLabel}}
        <label for="option">{{.OptionLabel}}</label>
        <select id="option" name="option">
            {{- range .OptionChoices}}
            <option value="{{.}}"{{if eq . $.Option}} selected{{end}}>{{.}}</option>
            {{- end}}
        </select>
        {{- end}}
        <details>
            <summary>Connection</summary>
            <label for="api-endpoint">Endpoint</label>
            <input type="text" id="api-endpoint" name="endpoint" value="{{.Endpoint}}">
            <label for="model">Model</label>
            <input type="text" id="model" name="model" value="{{.Model}}">
            <label for="api-key">API key</label>
            <input type="password" id="api-key" name="api_key" autocomplete="off"
                placeholder="{{if .Credential}}stored: {{.Credential}}{{else}}none (demo answers){{end}}">
            <label for="temperature">Temperature</label>
            <input type="number" id="temperature" name="temperature" min="0" max="1" step="0.1" value="{{.Temperature}}">
        </details>
        <label><input type="checkbox" name="debug" value="1"{{if .Debug}} checked{{end}}> Debug</label>
        <div class="buttons">
            <button type="submit" name="action" value="submit">Send</button>
            <button type="submit" name="action" value="save" data-save>Save settings</button>
            <button type="submit" name="action" value="clear" data-clear>Clear settings</button>
        </div>
    </form>
    {{- if .Status}}
    <p class="status" data-status>{{.Status}}</p>
    {{- end}}
    {{- if .Answer}}
    <div class="answer" data-response data-kind="{{.Kind}}">{{.Answer}}</div>
    {{- end}}
    {{- if .Trace}}
    <h2>Debug</h2>
    <div class="trace">{{range .Trace}}{{.}}
{{end}}</div>
    {{- end}}
</body>
</html>`
