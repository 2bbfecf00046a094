package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/twindeck/internal/twin"
)

// listingView is the price/visibility form shown before a twin is pushed to
// the marketplace. Submitting with public=false is how a listing is taken
// down again.
type listingView struct {
	app      *App
	target   twin.Twin
	price    textinput.Model
	isPublic bool
	formErr  string
}

func newListingView(app *App, target twin.Twin) *listingView {
	price := textinput.New()
	price.Placeholder = "Price in credits"
	price.CharLimit = 12
	isPublic := true
	if target.IsListed {
		price.SetValue(strconv.FormatUint(target.Price, 10))
	}
	price.Focus()
	return &listingView{
		app:      app,
		target:   target,
		price:    price,
		isPublic: isPublic,
	}
}

func (v *listingView) focusCmd() tea.Cmd {
	return textinput.Blink
}

func (v *listingView) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab":
		v.isPublic = !v.isPublic
		return nil
	case "enter":
		raw := strings.TrimSpace(v.price.Value())
		price, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			v.formErr = "Enter a whole number of credits"
			return nil
		}
		v.formErr = ""
		_, cmd := v.app.submitListing(v.target, price, v.isPublic)
		return cmd
	}
	var cmd tea.Cmd
	v.price, cmd = v.price.Update(msg)
	return cmd
}

func (v *listingView) View() string {
	visibility := "Public · visible on the marketplace"
	if !v.isPublic {
		visibility = "Private · hidden from the marketplace"
	}
	state := "not listed yet"
	if v.target.IsListed {
		state = fmt.Sprintf("currently listed at %d credits", v.target.Price)
	}
	lines := []string{
		wizardTitleStyle.Render(fmt.Sprintf("List %s", v.target.DisplayName)),
		selectorOffStyle.Render(state),
		"",
		fieldLabelStyle.Render("Price"),
		v.price.View(),
	}
	if v.formErr != "" {
		lines = append(lines, fieldErrStyle.Render(v.formErr))
	}
	lines = append(lines,
		"",
		fieldLabelStyle.Render("Visibility"),
		"  "+visibility,
		hintStyle.Render("tab toggle visibility · enter confirm · esc cancel"),
	)
	return strings.Join(lines, "\n")
}
