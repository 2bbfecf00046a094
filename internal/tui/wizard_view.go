package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/twindeck/internal/twin"
)

var (
	wizardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#B68CFF"))
	fieldLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	fieldErrStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	selectorOnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	selectorOffStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
	hintStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).MarginTop(1)
)

// Focusable rows on the customize step.
const (
	customizeFocusName = iota
	customizeFocusCharacter
	customizeFocusTone
)

// wizardView drives the 3-step creation flow. The twin.Wizard owns the draft
// and the validation rules; this view only shuttles input into it.
type wizardView struct {
	app     *App
	machine *twin.Wizard

	nameInput     textinput.Model
	dobInput      textinput.Model
	bioInput      textinput.Model
	fileInput     textinput.Model
	twinNameInput textinput.Model

	focus        int
	characterIdx int
	toneIdx      int
	fieldErrs    twin.Validation
}

func newWizardView(app *App) *wizardView {
	name := textinput.New()
	name.Placeholder = "Full legal name"
	name.CharLimit = 120
	dob := textinput.New()
	dob.Placeholder = "YYYY-MM-DD"
	dob.CharLimit = 10
	bio := textinput.New()
	bio.Placeholder = "A short bio (optional)"
	bio.CharLimit = 280
	file := textinput.New()
	file.Placeholder = "File name, e.g. journal.txt"
	file.CharLimit = 200
	twinName := textinput.New()
	twinName.CharLimit = 80

	machine := twin.NewWizard(app.commitDraft)
	draft := machine.Draft()
	twinName.SetValue(draft.TwinName)

	v := &wizardView{
		app:           app,
		machine:       machine,
		nameInput:     name,
		dobInput:      dob,
		bioInput:      bio,
		fileInput:     file,
		twinNameInput: twinName,
		characterIdx:  indexOfFold(twin.Characters, draft.Character),
		toneIdx:       indexOfFold(twin.Tones, draft.Tone),
	}
	v.nameInput.Focus()
	return v
}

func (v *wizardView) focusCmd() tea.Cmd {
	return textinput.Blink
}

func (v *wizardView) cancel() {
	v.machine.Cancel()
}

// syncDraft pushes the current input values into the state machine.
func (v *wizardView) syncDraft() {
	v.machine.SetLegalName(v.nameInput.Value())
	v.machine.SetDateOfBirth(v.dobInput.Value())
	v.machine.SetBio(v.bioInput.Value())
	v.machine.SetTwinName(v.twinNameInput.Value())
	v.machine.SetCharacter(twin.Characters[v.characterIdx])
	v.machine.SetTone(twin.Tones[v.toneIdx])
}

func (v *wizardView) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab":
		v.cycleFocus(1)
		return nil
	case "shift+tab":
		v.cycleFocus(-1)
		return nil
	case "ctrl+b":
		v.machine.Back()
		v.fieldErrs = nil
		v.syncFocus()
		v.announceStep()
		return nil
	case "ctrl+x":
		if v.machine.Step() == twin.StepUploadData {
			files := v.machine.Draft().Files
			v.machine.RemoveFile(len(files) - 1)
		}
		return nil
	case "left", "right":
		if v.machine.Step() == twin.StepCustomize && v.focus != customizeFocusName {
			delta := 1
			if msg.String() == "left" {
				delta = -1
			}
			if v.focus == customizeFocusCharacter {
				v.characterIdx = wrapIndex(v.characterIdx+delta, len(twin.Characters))
			} else {
				v.toneIdx = wrapIndex(v.toneIdx+delta, len(twin.Tones))
			}
			return nil
		}
	case "enter":
		return v.handleEnter()
	}
	return v.updateFocusedInput(msg)
}

func (v *wizardView) handleEnter() tea.Cmd {
	switch v.machine.Step() {
	case twin.StepBasicInfo:
		v.syncDraft()
		v.fieldErrs = v.machine.Next()
		if v.fieldErrs.Valid() {
			v.syncFocus()
			v.announceStep()
		}
	case twin.StepUploadData:
		name := strings.TrimSpace(v.fileInput.Value())
		if name != "" {
			v.machine.AttachFile(twin.FileRef{Name: name})
			v.fileInput.SetValue("")
			v.fieldErrs = nil
			return nil
		}
		v.fieldErrs = v.machine.Next()
		if v.fieldErrs.Valid() {
			v.syncFocus()
			v.announceStep()
		}
	case twin.StepCustomize:
		v.syncDraft()
		created, err := v.machine.Complete()
		_, cmd := v.app.finishWizard(created, err)
		return cmd
	}
	return nil
}

func (v *wizardView) cycleFocus(delta int) {
	switch v.machine.Step() {
	case twin.StepBasicInfo:
		inputs := []*textinput.Model{&v.nameInput, &v.dobInput, &v.bioInput}
		v.focus = wrapIndex(v.focus+delta, len(inputs))
		for i, input := range inputs {
			if i == v.focus {
				input.Focus()
			} else {
				input.Blur()
			}
		}
	case twin.StepCustomize:
		v.focus = wrapIndex(v.focus+delta, 3)
		if v.focus == customizeFocusName {
			v.twinNameInput.Focus()
		} else {
			v.twinNameInput.Blur()
		}
	}
}

// syncFocus resets focus to the first field of the current step.
func (v *wizardView) syncFocus() {
	v.focus = 0
	v.nameInput.Blur()
	v.dobInput.Blur()
	v.bioInput.Blur()
	v.fileInput.Blur()
	v.twinNameInput.Blur()
	switch v.machine.Step() {
	case twin.StepBasicInfo:
		v.nameInput.Focus()
	case twin.StepUploadData:
		v.fileInput.Focus()
	case twin.StepCustomize:
		v.twinNameInput.Focus()
	}
}

func (v *wizardView) announceStep() {
	switch v.machine.Step() {
	case twin.StepBasicInfo:
		v.app.setStatus("Step 1 of 3 · Basic Information")
	case twin.StepUploadData:
		v.app.setStatus("Step 2 of 3 · Upload Your Data")
	case twin.StepCustomize:
		v.app.setStatus("Step 3 of 3 · Customize Your Twin")
	}
}

func (v *wizardView) updateFocusedInput(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch v.machine.Step() {
	case twin.StepBasicInfo:
		switch v.focus {
		case 0:
			v.nameInput, cmd = v.nameInput.Update(msg)
		case 1:
			v.dobInput, cmd = v.dobInput.Update(msg)
		case 2:
			v.bioInput, cmd = v.bioInput.Update(msg)
		}
	case twin.StepUploadData:
		v.fileInput, cmd = v.fileInput.Update(msg)
	case twin.StepCustomize:
		if v.focus == customizeFocusName {
			v.twinNameInput, cmd = v.twinNameInput.Update(msg)
		}
	}
	return cmd
}

func (v *wizardView) View() string {
	switch v.machine.Step() {
	case twin.StepBasicInfo:
		return v.viewBasicInfo()
	case twin.StepUploadData:
		return v.viewUploadData()
	default:
		return v.viewCustomize()
	}
}

func (v *wizardView) viewBasicInfo() string {
	lines := []string{
		wizardTitleStyle.Render("Create Your Digital Twin · Step 1 of 3"),
		"",
		v.renderField("Name", v.nameInput.View(), v.fieldErrs["name"]),
		v.renderField("Date of birth", v.dobInput.View(), v.fieldErrs["dateOfBirth"]),
		v.renderField("Bio", v.bioInput.View(), ""),
		hintStyle.Render("tab next field · enter continue · esc cancel"),
	}
	return strings.Join(lines, "\n")
}

func (v *wizardView) viewUploadData() string {
	files := v.machine.Draft().Files
	var fileLines []string
	for i, f := range files {
		fileLines = append(fileLines, fmt.Sprintf("  %d. %s", i+1, f.Name))
	}
	if len(fileLines) == 0 {
		fileLines = append(fileLines, selectorOffStyle.Render("  no files attached yet"))
	}
	lines := []string{
		wizardTitleStyle.Render("Upload Your Data · Step 2 of 3"),
		"",
		v.renderField("Add file", v.fileInput.View(), v.fieldErrs["files"]),
		"",
		fieldLabelStyle.Render(fmt.Sprintf("Attached files (%d):", len(files))),
	}
	lines = append(lines, fileLines...)
	lines = append(lines, hintStyle.Render("enter add file · enter on empty field to continue · ctrl+x remove last · ctrl+b back"))
	return strings.Join(lines, "\n")
}

func (v *wizardView) viewCustomize() string {
	lines := []string{
		wizardTitleStyle.Render("Customize Your Twin · Step 3 of 3"),
		"",
		v.renderFocusable("Twin name", v.twinNameInput.View(), v.focus == customizeFocusName),
		v.renderFocusable("Character", renderChoices(twin.Characters, v.characterIdx), v.focus == customizeFocusCharacter),
		v.renderFocusable("Tone", renderChoices(twin.Tones, v.toneIdx), v.focus == customizeFocusTone),
		hintStyle.Render("tab switch field · left/right cycle choice · enter create · ctrl+b back"),
	}
	return strings.Join(lines, "\n")
}

func (v *wizardView) renderField(label, input, fieldErr string) string {
	line := fmt.Sprintf("%s\n%s", fieldLabelStyle.Render(label), input)
	if fieldErr != "" {
		line += "\n" + fieldErrStyle.Render(fieldErr)
	}
	return line + "\n"
}

func (v *wizardView) renderFocusable(label, body string, focused bool) string {
	marker := "  "
	if focused {
		marker = "> "
	}
	return fmt.Sprintf("%s%s\n  %s\n", marker, fieldLabelStyle.Render(label), body)
}

func renderChoices(options []string, selected int) string {
	parts := make([]string, len(options))
	for i, option := range options {
		if i == selected {
			parts[i] = selectorOnStyle.Render("[" + option + "]")
		} else {
			parts[i] = selectorOffStyle.Render(option)
		}
	}
	return strings.Join(parts, " ")
}

func indexOfFold(options []string, value string) int {
	for i, option := range options {
		if strings.EqualFold(option, value) {
			return i
		}
	}
	return 0
}

func wrapIndex(idx, length int) int {
	if length == 0 {
		return 0
	}
	idx %= length
	if idx < 0 {
		idx += length
	}
	return idx
}
