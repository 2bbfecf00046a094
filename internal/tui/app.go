// internal/tui/app.go
//
// This is the main TUI (Terminal User Interface) for twindeck.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/twindeck/internal/auth"
	"github.com/kingrea/twindeck/internal/chat"
	"github.com/kingrea/twindeck/internal/config"
	"github.com/kingrea/twindeck/internal/journal"
	"github.com/kingrea/twindeck/internal/market"
	"github.com/kingrea/twindeck/internal/twin"
	"github.com/kingrea/twindeck/internal/wallet"
)

// appState represents which "screen" we're on
type appState int

const (
	stateDashboard   appState = iota // Twin collection plus the action menu
	stateWizard                      // 3-step twin creation flow
	stateMarketplace                 // Public listing browser
	stateListing                     // Price/visibility form before listing
	stateChat                        // Conversation with one twin
	stateAuth                        // Waiting on the OAuth redirect
)

// Deps carries the wired runtime the TUI drives. Everything is constructed in
// cmd/twindeck so tests can swap in fakes.
type Deps struct {
	Config      *config.Config
	Journal     *journal.Journal
	Registry    *twin.Registry
	Catalog     *market.Catalog
	Wallet      wallet.Wallet
	Handshake   *auth.Handshake
	AuthResults <-chan auth.Result
}

type authResultMsg auth.Result

type chatUpdateMsg struct{}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state     appState
	config    *config.Config
	journal   *journal.Journal
	registry  *twin.Registry
	catalog   *market.Catalog
	wallet    wallet.Wallet
	handshake *auth.Handshake

	authResults <-chan auth.Result
	authURL     string
	zkAddress   string

	wizard      *wizardView
	listingForm *listingView
	chatView    *chatView
	session     *chat.Session

	// UI components
	twinMenu      list.Model
	marketMenu    list.Model
	statusMsg     string
	lastLogStatus string

	twins []twin.Twin

	// Window size (we get this from bubbletea)
	width  int
	height int
}

// twinItem implements list.Item for the dashboard collection.
type twinItem struct {
	t twin.Twin
}

func (i twinItem) Title() string {
	title := fmt.Sprintf("%s  %s", i.t.AvatarGlyph, i.t.DisplayName)
	if i.t.IsListed {
		title += "  · listed"
	}
	return title
}

func (i twinItem) Description() string {
	return fmt.Sprintf("%d file(s) · %d conversation(s) · created %s",
		i.t.FilesCount, i.t.ConversationsCount, i.t.CreatedAt.Format("2006-01-02"))
}

func (i twinItem) FilterValue() string { return i.t.DisplayName }

// listingItem implements list.Item for the marketplace browser.
type listingItem struct {
	l market.Listing
}

func (i listingItem) Title() string {
	return fmt.Sprintf("%s  %s · %d credits", i.l.AvatarGlyph, i.l.DisplayName, i.l.Price)
}

func (i listingItem) Description() string {
	desc := i.l.Description
	if desc == "" {
		desc = "No description"
	}
	if len(i.l.Tags) > 0 {
		desc += " · " + strings.Join(i.l.Tags, ", ")
	}
	return desc
}

func (i listingItem) FilterValue() string { return i.l.DisplayName }

// NewApp creates a new App instance over the wired runtime.
func NewApp(deps Deps) (*App, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("tui: config is required")
	}
	if deps.Registry == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("tui: registry and catalog are required")
	}

	twinMenu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	twinMenu.Title = "◈ YOUR TWINS"
	twinMenu.SetShowStatusBar(false)
	twinMenu.SetFilteringEnabled(false)
	marketMenu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	marketMenu.Title = "◈ MARKETPLACE"
	marketMenu.SetShowStatusBar(false)
	marketMenu.SetFilteringEnabled(false)

	app := &App{
		state:       stateDashboard,
		config:      deps.Config,
		journal:     deps.Journal,
		registry:    deps.Registry,
		catalog:     deps.Catalog,
		wallet:      deps.Wallet,
		handshake:   deps.Handshake,
		authResults: deps.AuthResults,
		twinMenu:    twinMenu,
		marketMenu:  marketMenu,
	}
	app.refreshTwins()
	if app.journal != nil {
		app.journal.Info("Session opened · %d twin(s) in collection", len(app.twins))
	}
	return app, nil
}

func (a *App) refreshTwins() {
	a.twins = a.registry.LoadAll()
	items := make([]list.Item, len(a.twins))
	for i := range a.twins {
		items[i] = twinItem{t: a.twins[i]}
	}
	a.twinMenu.SetItems(items)
	if idx := a.twinMenu.Index(); idx >= len(items) && len(items) > 0 {
		a.twinMenu.Select(len(items) - 1)
	}
}

func (a *App) refreshMarketplace() {
	listings := a.catalog.LoadAll()
	items := make([]list.Item, 0, len(listings))
	for _, l := range listings {
		if !l.IsPublic {
			continue
		}
		items = append(items, listingItem{l: l})
	}
	a.marketMenu.SetItems(items)
	if orphans := a.catalog.Orphans(a.twins); len(orphans) > 0 {
		a.logWarn("%d listing(s) reference deleted twins", len(orphans))
	}
}

func (a *App) selectedTwin() (twin.Twin, bool) {
	item, ok := a.twinMenu.SelectedItem().(twinItem)
	if !ok {
		return twin.Twin{}, false
	}
	return item.t, true
}

// identity resolves the creator address: a connected wallet wins, otherwise
// the address derived from a verified sign-in.
func (a *App) identity() (string, bool) {
	if a.wallet != nil {
		if account, ok := a.wallet.CurrentAccount(); ok {
			return account.Address, true
		}
	}
	if a.zkAddress != "" {
		return a.zkAddress, true
	}
	return "", false
}

func (a *App) logInfo(format string, args ...any) {
	if a.journal == nil {
		return
	}
	a.journal.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.journal == nil {
		return
	}
	a.journal.Warn(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.journal == nil {
		return
	}
	a.journal.Error(format, args...)
}

func (a *App) setStatus(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	a.statusMsg = message
	if message == a.lastLogStatus {
		return
	}
	a.lastLogStatus = message
	a.logInfo(message)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return a.waitForAuthResult()
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.twinMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-14))
		a.marketMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-14))
		return a, nil

	case authResultMsg:
		return a.handleAuthResult(auth.Result(msg))

	case chatUpdateMsg:
		if a.state == stateChat && a.session != nil {
			return a, a.waitForChatUpdate()
		}
		return a, nil

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "ctrl+c":
			a.closeSession()
			return a, tea.Quit
		case "q":
			if a.state == stateDashboard {
				a.closeSession()
				return a, tea.Quit
			}
		case "esc":
			if a.state != stateDashboard {
				return a.returnToDashboard()
			}
		}
		switch a.state {
		case stateDashboard:
			if model, cmd, handled := a.handleDashboardKey(key); handled {
				return model, cmd
			}
		case stateWizard:
			if a.wizard != nil {
				return a, a.wizard.handleKey(msg)
			}
		case stateListing:
			if a.listingForm != nil {
				return a, a.listingForm.handleKey(msg)
			}
		case stateMarketplace:
			if key == "r" {
				a.refreshMarketplace()
				a.setStatus("Marketplace refreshed")
				return a, nil
			}
		case stateChat:
			if a.chatView != nil {
				return a, a.chatView.handleKey(msg)
			}
		}
	}

	var cmds []tea.Cmd
	switch a.state {
	case stateDashboard:
		var menuCmd tea.Cmd
		a.twinMenu, menuCmd = a.twinMenu.Update(msg)
		if menuCmd != nil {
			cmds = append(cmds, menuCmd)
		}
	case stateMarketplace:
		var menuCmd tea.Cmd
		a.marketMenu, menuCmd = a.marketMenu.Update(msg)
		if menuCmd != nil {
			cmds = append(cmds, menuCmd)
		}
	}
	return a, tea.Batch(cmds...)
}

// handleDashboardKey processes the dashboard hotkeys. The bool result reports
// whether the key was consumed; unconsumed keys fall through to the list.
func (a *App) handleDashboardKey(key string) (tea.Model, tea.Cmd, bool) {
	switch key {
	case "n":
		model, cmd := a.beginWizard()
		return model, cmd, true
	case "enter":
		model, cmd := a.openChat()
		return model, cmd, true
	case "m":
		a.state = stateMarketplace
		a.refreshMarketplace()
		a.setStatus("Browsing marketplace · Esc to return")
		return a, nil, true
	case "l":
		model, cmd := a.beginListing()
		return model, cmd, true
	case "d":
		model, cmd := a.deleteSelectedTwin()
		return model, cmd, true
	case "c":
		model, cmd := a.connectWallet()
		return model, cmd, true
	case "g":
		model, cmd := a.beginSignIn()
		return model, cmd, true
	case "r":
		a.refreshTwins()
		a.setStatus("Collection refreshed")
		return a, nil, true
	}
	return a, nil, false
}

func (a *App) beginWizard() (tea.Model, tea.Cmd) {
	if a.registry.Count() >= twin.FreeTwinLimit {
		a.setStatus(fmt.Sprintf("Free plan allows up to %d twins. Delete one to create another.", twin.FreeTwinLimit))
		return a, nil
	}
	a.wizard = newWizardView(a)
	a.state = stateWizard
	a.setStatus("Step 1 of 3 · Basic Information")
	return a, a.wizard.focusCmd()
}

// commitDraft is the wizard's committer. When a wallet is connected and a
// package is configured the twin is minted first, so the mint digest becomes
// the twin's external asset id.
func (a *App) commitDraft(input twin.CommitInput) (twin.Twin, error) {
	packageID := a.config.Project.Chain.PackageID
	if a.wallet != nil && packageID != "" {
		if _, connected := a.wallet.CurrentAccount(); connected {
			tx := wallet.MintTwin(packageID, input.StorageBlobID, input.DisplayName, input.Character, input.Tone, input.Bio)
			result, err := a.wallet.SignAndExecute(context.Background(), tx)
			if err != nil {
				a.logWarn("Mint failed, keeping twin local: %v", err)
			} else {
				input.ExternalAssetID = result.Digest
				a.logInfo("Twin minted · digest %s", result.Digest)
			}
		}
	}
	return a.registry.Create(input)
}

func (a *App) finishWizard(created twin.Twin, err error) (tea.Model, tea.Cmd) {
	a.wizard = nil
	a.state = stateDashboard
	if err != nil {
		a.setStatus(fmt.Sprintf("Twin creation failed: %v", err))
		a.logError("Twin creation failed: %v", err)
		return a, nil
	}
	a.refreshTwins()
	a.setStatus(fmt.Sprintf("Created %s", created.DisplayName))
	return a, nil
}

func (a *App) openChat() (tea.Model, tea.Cmd) {
	selected, ok := a.selectedTwin()
	if !ok {
		a.setStatus("Create a twin first · press n")
		return a, nil
	}
	a.closeSession()
	a.session = chat.NewSession(selected.ID, a.config.ReplyDelay())
	a.chatView = newChatView(a, selected)
	a.state = stateChat
	a.setStatus(fmt.Sprintf("Chatting with %s · Esc to leave", selected.DisplayName))
	count := selected.ConversationsCount + 1
	if _, err := a.registry.Update(selected.ID, twin.Patch{ConversationsCount: &count}); err != nil {
		a.logWarn("Conversation count update failed: %v", err)
	}
	return a, tea.Batch(a.chatView.focusCmd(), a.waitForChatUpdate())
}

func (a *App) beginListing() (tea.Model, tea.Cmd) {
	selected, ok := a.selectedTwin()
	if !ok {
		a.setStatus("Create a twin first · press n")
		return a, nil
	}
	if _, ok := a.identity(); !ok {
		a.setStatus("Listing requires an identity · press c to connect a wallet or g to sign in")
		return a, nil
	}
	a.listingForm = newListingView(a, selected)
	a.state = stateListing
	a.setStatus(fmt.Sprintf("Listing %s · Enter to confirm, Esc to cancel", selected.DisplayName))
	return a, a.listingForm.focusCmd()
}

// submitListing signs the marketplace call and projects the twin into the
// catalog. Capability failures abort before anything is persisted.
func (a *App) submitListing(t twin.Twin, price uint64, isPublic bool) (tea.Model, tea.Cmd) {
	a.listingForm = nil
	a.state = stateDashboard
	creator, ok := a.identity()
	if !ok {
		a.setStatus("Listing requires an identity · press c to connect a wallet or g to sign in")
		return a, nil
	}
	packageID := a.config.Project.Chain.PackageID
	if a.wallet != nil && packageID != "" {
		if _, connected := a.wallet.CurrentAccount(); connected {
			tx := wallet.ListOnMarketplace(packageID, t.ID, price)
			if _, err := a.wallet.SignAndExecute(context.Background(), tx); err != nil {
				a.setStatus(fmt.Sprintf("Marketplace call failed: %v", err))
				a.logError("Marketplace call failed: %v", err)
				return a, nil
			}
		}
	}
	listing, err := a.catalog.ListOrUpdate(t, price, isPublic, creator)
	if err != nil {
		if errors.Is(err, market.ErrIdentityRequired) {
			a.setStatus("Listing requires an identity · press c to connect a wallet or g to sign in")
		} else {
			a.setStatus(fmt.Sprintf("Listing failed: %v", err))
			a.logError("Listing failed: %v", err)
		}
		return a, nil
	}
	a.refreshTwins()
	if listing.IsPublic {
		a.setStatus(fmt.Sprintf("%s listed for %d credits", listing.DisplayName, listing.Price))
	} else {
		a.setStatus(fmt.Sprintf("%s delisted", listing.DisplayName))
	}
	return a, nil
}

func (a *App) deleteSelectedTwin() (tea.Model, tea.Cmd) {
	selected, ok := a.selectedTwin()
	if !ok {
		return a, nil
	}
	if err := a.registry.Delete(selected.ID); err != nil {
		a.setStatus(fmt.Sprintf("Delete failed: %v", err))
		a.logError("Delete failed: %v", err)
		return a, nil
	}
	a.refreshTwins()
	a.setStatus(fmt.Sprintf("Deleted %s", selected.DisplayName))
	return a, nil
}

func (a *App) connectWallet() (tea.Model, tea.Cmd) {
	if a.wallet == nil {
		a.setStatus("No wallet available in this build")
		return a, nil
	}
	if account, ok := a.wallet.CurrentAccount(); ok {
		a.wallet.Disconnect()
		a.setStatus(fmt.Sprintf("Wallet disconnected (%s)", shortAddress(account.Address)))
		return a, nil
	}
	account, err := a.wallet.Connect(context.Background())
	if err != nil {
		a.setStatus(fmt.Sprintf("Wallet connection failed: %v", err))
		a.logError("Wallet connection failed: %v", err)
		return a, nil
	}
	a.setStatus(fmt.Sprintf("Wallet connected · %s", shortAddress(account.Address)))
	return a, nil
}

func (a *App) beginSignIn() (tea.Model, tea.Cmd) {
	if a.handshake == nil {
		a.setStatus("Sign-in is not configured")
		return a, nil
	}
	url, err := a.handshake.Begin()
	if err != nil {
		a.setStatus(fmt.Sprintf("Sign-in failed to start: %v", err))
		a.logError("Sign-in failed to start: %v", err)
		return a, nil
	}
	a.authURL = url
	a.state = stateAuth
	a.setStatus("Waiting for sign-in · open the URL in a browser, Esc to cancel")
	a.logInfo("Sign-in started")
	return a, nil
}

func (a *App) handleAuthResult(result auth.Result) (tea.Model, tea.Cmd) {
	rearm := a.waitForAuthResult()
	if result.Err != nil {
		a.setStatus(fmt.Sprintf("Sign-in failed: %v", result.Err))
		a.logError("Sign-in failed: %v", result.Err)
		if a.state == stateAuth {
			a.state = stateDashboard
			a.authURL = ""
		}
		return a, rearm
	}
	a.zkAddress = result.Address
	a.setStatus(fmt.Sprintf("Signed in · %s", shortAddress(result.Address)))
	if a.state == stateAuth {
		a.state = stateDashboard
		a.authURL = ""
	}
	return a, rearm
}

func (a *App) waitForAuthResult() tea.Cmd {
	if a.authResults == nil {
		return nil
	}
	results := a.authResults
	return func() tea.Msg {
		result, ok := <-results
		if !ok {
			return nil
		}
		return authResultMsg(result)
	}
}

func (a *App) waitForChatUpdate() tea.Cmd {
	if a.session == nil {
		return nil
	}
	updates := a.session.Updates()
	return func() tea.Msg {
		<-updates
		return chatUpdateMsg{}
	}
}

func (a *App) closeSession() {
	if a.session != nil {
		a.session.Close()
		a.session = nil
	}
}

// returnToDashboard transitions back from any sub-screen.
func (a *App) returnToDashboard() (tea.Model, tea.Cmd) {
	if a.state == stateWizard && a.wizard != nil {
		a.wizard.cancel()
		a.wizard = nil
	}
	if a.state == stateChat {
		a.closeSession()
		a.chatView = nil
	}
	if a.state == stateAuth {
		a.authURL = ""
	}
	a.listingForm = nil
	a.state = stateDashboard
	a.refreshTwins()
	a.setStatus("Dashboard")
	return a, nil
}

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	var content string
	switch a.state {
	case stateDashboard:
		content = a.renderDashboard()
	case stateWizard:
		if a.wizard != nil {
			content = a.wizard.View()
		}
	case stateMarketplace:
		content = a.renderMarketplace()
	case stateListing:
		if a.listingForm != nil {
			content = a.listingForm.View()
		}
	case stateChat:
		if a.chatView != nil {
			content = a.chatView.View()
		}
	case stateAuth:
		content = a.renderAuthWait(width)
	}
	return a.renderFrame(content, width)
}

func (a *App) renderFrame(content string, width int) string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#B68CFF")).
		MarginBottom(1).
		Render("◈ TWINDECK")
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(20, width-2)).
		Render(content)
	sections := []string{header, a.renderIdentityLine(), box}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(a.statusMsg)
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

func (a *App) renderIdentityLine() string {
	label := "Identity: none · c connect wallet · g sign in"
	if address, ok := a.identity(); ok {
		source := "wallet"
		if a.wallet != nil {
			if _, connected := a.wallet.CurrentAccount(); !connected {
				source = "sign-in"
			}
		}
		label = fmt.Sprintf("Identity: %s (%s)", shortAddress(address), source)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0")).Render(label)
}

func (a *App) renderDashboard() string {
	menu := a.twinMenu.View()
	if len(a.twins) == 0 {
		menu = "No twins yet. Press n to create your first digital twin."
	}
	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		MarginTop(1).
		Render("n new · enter chat · l list · d delete · m marketplace · q quit")
	return lipgloss.JoinVertical(lipgloss.Left, menu, hint)
}

func (a *App) renderMarketplace() string {
	menu := a.marketMenu.View()
	if len(a.marketMenu.Items()) == 0 {
		menu = "No public listings yet. List one of your twins from the dashboard."
	}
	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		MarginTop(1).
		Render("r refresh · esc back")
	return lipgloss.JoinVertical(lipgloss.Left, menu, hint)
}

func (a *App) renderAuthWait(width int) string {
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("Sign in with Google")
	lines := []string{
		head,
		"",
		"Open this URL in your browser to continue:",
		"",
		wrapText(a.authURL, max(40, width-8)),
		"",
		"Waiting for the provider to redirect back…",
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderLogPanel() string {
	if a.journal == nil {
		return ""
	}
	lines, _ := a.journal.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.journal.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s", fileName))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

func shortAddress(address string) string {
	address = strings.TrimSpace(address)
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}

func wrapText(value string, width int) string {
	if width <= 0 || len(value) <= width {
		return value
	}
	var b strings.Builder
	for len(value) > width {
		b.WriteString(value[:width])
		b.WriteString("\n")
		value = value[width:]
	}
	b.WriteString(value)
	return b.String()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
