package twin

import (
	"errors"
	"strings"
)

// Step identifies a wizard screen. Steps advance 1 → 2 → 3; completion is only
// reachable from step 3.
type Step int

const (
	StepBasicInfo  Step = 1
	StepUploadData Step = 2
	StepCustomize  Step = 3
)

// Characters are the selectable appearance skins, in display order.
var Characters = []string{
	"Geometric", "Minimal", "Tech", "Nature",
	"Cosmic", "Professional", "Creative", "Modern",
}

// Tones are the selectable conversation styles.
var Tones = []string{"Professional", "Casual", "Friendly"}

// ErrWizardIncomplete is returned when Complete is invoked before step 3.
var ErrWizardIncomplete = errors.New("twin: wizard has not reached the final step")

// FileRef describes an attached training file. Only the reference travels
// through the draft; upload happens elsewhere.
type FileRef struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Draft is the mutable, not-yet-committed creation payload. It exists only
// for the lifetime of the flow and is discarded on cancel or completion.
type Draft struct {
	LegalName   string
	DateOfBirth string
	Bio         string
	Files       []FileRef
	Character   string
	TwinName    string
	Tone        string
}

func newDraft() Draft {
	return Draft{
		Character: "geometric",
		TwinName:  FallbackDisplayName,
		Tone:      "Friendly",
	}
}

// Validation maps a field name to its error message. An empty map means the
// transition was accepted.
type Validation map[string]string

// Valid reports whether the step passed validation.
func (v Validation) Valid() bool { return len(v) == 0 }

// Committer receives the mapped draft when the wizard finishes.
type Committer func(CommitInput) (Twin, error)

// Wizard is the 3-step creation state machine. Transitions out of steps 1 and
// 2 are validated; step 3 can always complete. The wizard resets to its
// initial state whenever Complete invokes the committer, regardless of the
// commit outcome.
type Wizard struct {
	step   Step
	draft  Draft
	commit Committer
}

// NewWizard builds a wizard that hands finished drafts to commit.
func NewWizard(commit Committer) *Wizard {
	return &Wizard{step: StepBasicInfo, draft: newDraft(), commit: commit}
}

// Step returns the current step.
func (w *Wizard) Step() Step { return w.step }

// Draft returns a copy of the current draft.
func (w *Wizard) Draft() Draft {
	d := w.draft
	d.Files = append([]FileRef(nil), w.draft.Files...)
	return d
}

// SetLegalName records the user's name.
func (w *Wizard) SetLegalName(name string) { w.draft.LegalName = name }

// SetDateOfBirth records the date of birth.
func (w *Wizard) SetDateOfBirth(dob string) { w.draft.DateOfBirth = dob }

// SetBio records the optional bio.
func (w *Wizard) SetBio(bio string) { w.draft.Bio = bio }

// SetCharacter records the chosen appearance skin.
func (w *Wizard) SetCharacter(character string) {
	w.draft.Character = strings.ToLower(strings.TrimSpace(character))
}

// SetTwinName records the twin display name.
func (w *Wizard) SetTwinName(name string) { w.draft.TwinName = name }

// SetTone records the conversation style.
func (w *Wizard) SetTone(tone string) { w.draft.Tone = tone }

// AttachFile adds a file reference to the draft. No validation happens here;
// the presence check runs when leaving step 2.
func (w *Wizard) AttachFile(ref FileRef) {
	w.draft.Files = append(w.draft.Files, ref)
}

// RemoveFile drops the file at index. Allowed in any step.
func (w *Wizard) RemoveFile(index int) {
	if index < 0 || index >= len(w.draft.Files) {
		return
	}
	w.draft.Files = append(w.draft.Files[:index], w.draft.Files[index+1:]...)
}

// Next validates the current step and advances on success. The returned map
// is empty when the step advanced; otherwise it holds field messages and the
// step is unchanged.
func (w *Wizard) Next() Validation {
	errs := Validation{}
	switch w.step {
	case StepBasicInfo:
		if strings.TrimSpace(w.draft.LegalName) == "" {
			errs["name"] = "Name is required"
		}
		if strings.TrimSpace(w.draft.DateOfBirth) == "" {
			errs["dateOfBirth"] = "Date of birth is required"
		}
	case StepUploadData:
		if len(w.draft.Files) == 0 {
			errs["files"] = "Please upload at least one file"
		}
	}
	if !errs.Valid() {
		return errs
	}
	if w.step < StepCustomize {
		w.step++
	}
	return errs
}

// Back decrements the step without validation.
func (w *Wizard) Back() {
	if w.step > StepBasicInfo {
		w.step--
	}
}

// Cancel discards the draft and returns to the first step.
func (w *Wizard) Cancel() {
	w.step = StepBasicInfo
	w.draft = newDraft()
}

// Complete maps the draft into commit input and invokes the committer, then
// resets the wizard whether or not the commit succeeded.
func (w *Wizard) Complete() (Twin, error) {
	if w.step != StepCustomize {
		return Twin{}, ErrWizardIncomplete
	}
	input := CommitInput{
		DisplayName: strings.TrimSpace(w.draft.TwinName),
		FilesCount:  len(w.draft.Files),
		Character:   w.draft.Character,
		Tone:        w.draft.Tone,
		Bio:         strings.TrimSpace(w.draft.Bio),
	}
	w.Cancel()
	if w.commit == nil {
		return Twin{}, errors.New("twin: wizard has no committer")
	}
	return w.commit(input)
}
