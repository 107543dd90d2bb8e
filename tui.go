package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"promptlab/models"
	"promptlab/pipeline"
	"promptlab/settings"
)

const tuiProfile = "terminal"

// terminalUI is the form adapter for a terminal: same fields and buttons as
// the web page, rendered with tview.
type terminalUI struct {
	app      *tview.Application
	form     *tview.Form
	option   *tview.DropDown
	output   *tview.TextView
	status   *tview.TextView
	pipeline *pipeline.Pipeline
	store    settings.Store

	mode        models.Mode
	prompt      string
	optionValue string
	endpoint    string
	model       string
	apiKey      string
	temperature string
	debug       bool
	busy        bool
}

func newTerminalUI(p *pipeline.Pipeline, backend settings.Backend, defaults models.ConnectionSettings) *terminalUI {
	ui := &terminalUI{
		app:      tview.NewApplication(),
		pipeline: p,
		store:    backend.Profile(tuiProfile),
		mode:     models.ModeGeneral,
		debug:    debugMode,
	}

	stored, err := ui.store.Load(context.Background())
	if err != nil {
		stored = models.DefaultSettings()
	}
	// the config file's credential applies when nothing was saved from the terminal
	start := overlay(defaults, stored.Endpoint, stored.Model, stored.APIKey, defaults.Temperature)
	ui.endpoint = start.Endpoint
	ui.model = start.Model
	ui.apiKey = start.APIKey
	ui.temperature = strconv.FormatFloat(start.Temperature, 'f', -1, 64)

	ui.setupViews()
	return ui
}

func (ui *terminalUI) setupViews() {
	modeNames := make([]string, len(models.Modes))
	for i, m := range models.Modes {
		modeNames[i] = m.Title()
	}

	ui.option = tview.NewDropDown().SetLabel("Option")

	ui.form = tview.NewForm().
		AddDropDown("Mode", modeNames, 0, func(_ string, index int) {
			if index >= 0 && index < len(models.Modes) {
				ui.setMode(models.Modes[index])
			}
		}).
		AddTextArea("Prompt", "", 0, 6, 0, func(text string) { ui.prompt = text }).
		AddFormItem(ui.option).
		AddInputField("Endpoint", ui.endpoint, 0, nil, func(text string) { ui.endpoint = text }).
		AddInputField("Model", ui.model, 0, nil, func(text string) { ui.model = text }).
		AddPasswordField("API key", ui.apiKey, 0, '*', func(text string) { ui.apiKey = text }).
		AddInputField("Temperature", ui.temperature, 6, nil, func(text string) { ui.temperature = text }).
		AddCheckbox("Debug", ui.debug, func(checked bool) { ui.debug = checked }).
		AddButton("Send", ui.submit).
		AddButton("Save", ui.save).
		AddButton("Clear", ui.clear).
		AddButton("Quit", ui.app.Stop)
	ui.form.SetBorder(true).SetTitle("promptlab").SetTitleAlign(tview.AlignLeft)

	ui.output = tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(true).
		SetWordWrap(true)
	ui.output.SetBorder(true).SetTitle("Answer").SetTitleAlign(tview.AlignLeft)

	ui.status = tview.NewTextView().SetDynamicColors(true)

	ui.setMode(models.ModeGeneral)

	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			ui.app.Stop()
			return nil
		}
		return event
	})
}

// setMode swaps the option choices for the selected mode
func (ui *terminalUI) setMode(m models.Mode) {
	ui.mode = m
	choices := m.OptionChoices()
	if len(choices) == 0 {
		choices = []string{"(none)"}
		ui.optionValue = ""
	} else {
		ui.optionValue = choices[0]
	}
	label := m.OptionLabel()
	if label == "" {
		label = "Option"
	}
	ui.option.SetLabel(label)
	ui.option.SetOptions(choices, func(text string, _ int) {
		if len(m.OptionChoices()) > 0 {
			ui.optionValue = text
		}
	})
	ui.option.SetCurrentOption(0)
}

func (ui *terminalUI) connection() models.ConnectionSettings {
	return models.ConnectionSettings{
		Endpoint:    ui.endpoint,
		Model:       ui.model,
		APIKey:      ui.apiKey,
		Temperature: models.ParseTemperature(ui.temperature),
	}
}

func (ui *terminalUI) setStatus(msg string) {
	ui.status.SetText(" " + msg)
}

func (ui *terminalUI) submit() {
	if ui.busy {
		return
	}
	ui.busy = true
	ui.setStatus("[yellow]Requesting...[white]")

	sub := pipeline.Submission{
		Mode:     ui.mode,
		Prompt:   ui.prompt,
		Option:   ui.optionValue,
		Settings: ui.connection(),
		Debug:    ui.debug,
	}

	go func() {
		res := ui.pipeline.Submit(context.Background(), sub)
		ui.app.QueueUpdateDraw(func() {
			ui.busy = false
			ui.render(res)
		})
	}()
}

func (ui *terminalUI) render(res *pipeline.Result) {
	var b strings.Builder
	b.WriteString(res.Answer)
	if lines := res.Trace.Lines(); len(lines) > 0 {
		b.WriteString("\n\n--- debug ---\n")
		b.WriteString(strings.Join(lines, "\n"))
	}
	ui.output.SetText(b.String()).ScrollToBeginning()
	ui.setStatus(fmt.Sprintf("%s [%s]", tview.Escape(res.Status), res.Kind()))
}

func (ui *terminalUI) save() {
	if err := ui.store.Save(context.Background(), ui.connection()); err != nil {
		ui.setStatus("[red]Failed to save settings:[white] " + tview.Escape(err.Error()))
		return
	}
	ui.setStatus(statusSaved)
}

func (ui *terminalUI) clear() {
	defaults, err := ui.store.Clear(context.Background())
	if err != nil {
		ui.setStatus("[red]Failed to clear settings:[white] " + tview.Escape(err.Error()))
		return
	}
	ui.endpoint = defaults.Endpoint
	ui.model = defaults.Model
	ui.apiKey = ""
	ui.form.GetFormItemByLabel("Endpoint").(*tview.InputField).SetText(defaults.Endpoint)
	ui.form.GetFormItemByLabel("Model").(*tview.InputField).SetText(defaults.Model)
	ui.form.GetFormItemByLabel("API key").(*tview.InputField).SetText("")
	ui.setStatus(statusCleared)
}

func (ui *terminalUI) Run() error {
	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(tview.NewFlex().
			AddItem(ui.form, 0, 1, true).
			AddItem(ui.output, 0, 1, false), 0, 1, true).
		AddItem(ui.status, 1, 0, false)

	return ui.app.SetRoot(flex, true).EnableMouse(true).Run()
}
