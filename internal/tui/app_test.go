package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/twindeck/internal/auth"
	"github.com/kingrea/twindeck/internal/config"
	"github.com/kingrea/twindeck/internal/journal"
	"github.com/kingrea/twindeck/internal/market"
	"github.com/kingrea/twindeck/internal/store"
	"github.com/kingrea/twindeck/internal/twin"
	"github.com/kingrea/twindeck/internal/wallet"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	projectDir := t.TempDir()
	if err := config.InitProjectDir(projectDir); err != nil {
		t.Fatalf("init project dir: %v", err)
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	cfg.Project.Chat.ReplyDelayMS = 1
	jnl, err := journal.New(cfg.JournalPath())
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	mem := store.NewMemory()
	registry := twin.NewRegistry(mem, jnl)
	catalog := market.NewCatalog(mem, registry, jnl)
	handshake := auth.NewHandshake(auth.Settings{
		ClientID:    "test-client",
		AuthURL:     cfg.Project.Auth.AuthURL,
		RedirectURI: cfg.RedirectURI(),
	}, mem)
	app, err := NewApp(Deps{
		Config:    cfg,
		Journal:   jnl,
		Registry:  registry,
		Catalog:   catalog,
		Wallet:    wallet.NewLocalWallet(""),
		Handshake: handshake,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return sendMsg(t, app, tea.WindowSizeMsg{Width: 100, Height: 40})
}

func sendMsg(t *testing.T, app *App, msg tea.Msg) *App {
	t.Helper()
	model, _ := app.Update(msg)
	next, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	return next
}

func pressKey(t *testing.T, app *App, key string) *App {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	return sendMsg(t, app, msg)
}

func seedTwin(t *testing.T, app *App, name string) twin.Twin {
	t.Helper()
	created, err := app.registry.Create(twin.CommitInput{DisplayName: name, FilesCount: 1, Tone: "Friendly"})
	if err != nil {
		t.Fatalf("seed twin: %v", err)
	}
	app.refreshTwins()
	return created
}

func TestWizardFlowCreatesTwin(t *testing.T) {
	app := newTestApp(t)
	app = pressKey(t, app, "n")
	if app.state != stateWizard {
		t.Fatalf("state = %d, want wizard", app.state)
	}

	// Step 1 rejects empty required fields and surfaces the messages.
	app = pressKey(t, app, "enter")
	if app.wizard.machine.Step() != twin.StepBasicInfo {
		t.Fatalf("invalid step 1 advanced to %d", app.wizard.machine.Step())
	}
	if got := app.wizard.fieldErrs["name"]; got != "Name is required" {
		t.Fatalf("name error = %q", got)
	}

	app.wizard.nameInput.SetValue("Ada Lovelace")
	app.wizard.dobInput.SetValue("1815-12-10")
	app = pressKey(t, app, "enter")
	if app.wizard.machine.Step() != twin.StepUploadData {
		t.Fatalf("step after basic info = %d, want upload", app.wizard.machine.Step())
	}

	// Attach one file, then continue on an empty input.
	app.wizard.fileInput.SetValue("notes.txt")
	app = pressKey(t, app, "enter")
	app = pressKey(t, app, "enter")
	if app.wizard.machine.Step() != twin.StepCustomize {
		t.Fatalf("step after upload = %d, want customize", app.wizard.machine.Step())
	}

	app.wizard.twinNameInput.SetValue("Ada Twin")
	app = pressKey(t, app, "enter")
	if app.state != stateDashboard {
		t.Fatalf("state after completion = %d, want dashboard", app.state)
	}
	twins := app.registry.LoadAll()
	if len(twins) != 1 {
		t.Fatalf("got %d twins, want 1", len(twins))
	}
	if twins[0].DisplayName != "Ada Twin" || twins[0].FilesCount != 1 {
		t.Fatalf("unexpected twin %+v", twins[0])
	}
}

func TestWizardEscDiscardsDraft(t *testing.T) {
	app := newTestApp(t)
	app = pressKey(t, app, "n")
	app.wizard.nameInput.SetValue("Ada Lovelace")
	app = pressKey(t, app, "esc")
	if app.state != stateDashboard {
		t.Fatalf("state = %d, want dashboard", app.state)
	}
	if got := app.registry.Count(); got != 0 {
		t.Fatalf("cancelled wizard persisted %d twins", got)
	}
}

func TestFreeLimitBlocksNewWizard(t *testing.T) {
	app := newTestApp(t)
	for _, name := range []string{"One", "Two", "Three"} {
		seedTwin(t, app, name)
	}
	app = pressKey(t, app, "n")
	if app.state != stateDashboard {
		t.Fatalf("state = %d, want dashboard", app.state)
	}
	if !strings.Contains(app.statusMsg, "Free plan") {
		t.Fatalf("statusMsg = %q, want free plan notice", app.statusMsg)
	}
}

func TestListingRequiresIdentity(t *testing.T) {
	app := newTestApp(t)
	seedTwin(t, app, "Marta")
	app = pressKey(t, app, "l")
	if app.state != stateDashboard {
		t.Fatalf("state = %d, want dashboard", app.state)
	}
	if !strings.Contains(app.statusMsg, "identity") {
		t.Fatalf("statusMsg = %q, want identity notice", app.statusMsg)
	}
	if got := len(app.catalog.LoadAll()); got != 0 {
		t.Fatalf("catalog has %d listings, want 0", got)
	}
}

func TestListingFlowPromotesTwin(t *testing.T) {
	app := newTestApp(t)
	seeded := seedTwin(t, app, "Marta")
	if _, err := app.wallet.Connect(context.Background()); err != nil {
		t.Fatalf("connect wallet: %v", err)
	}

	app = pressKey(t, app, "l")
	if app.state != stateListing {
		t.Fatalf("state = %d, want listing form", app.state)
	}
	app.listingForm.price.SetValue("50")
	app = pressKey(t, app, "enter")
	if app.state != stateDashboard {
		t.Fatalf("state after submit = %d, want dashboard", app.state)
	}

	listings := app.catalog.LoadAll()
	if len(listings) != 1 {
		t.Fatalf("got %d listings, want 1", len(listings))
	}
	if listings[0].ID != seeded.ID || listings[0].Price != 50 || !listings[0].IsPublic {
		t.Fatalf("unexpected listing %+v", listings[0])
	}
	updated, err := app.registry.Get(seeded.ID)
	if err != nil {
		t.Fatalf("get twin: %v", err)
	}
	if !updated.IsListed || updated.CreatorAddress == "" {
		t.Fatalf("twin not patched by listing: %+v", updated)
	}
}

func TestListingFormRejectsNonNumericPrice(t *testing.T) {
	app := newTestApp(t)
	seedTwin(t, app, "Marta")
	if _, err := app.wallet.Connect(context.Background()); err != nil {
		t.Fatalf("connect wallet: %v", err)
	}
	app = pressKey(t, app, "l")
	app.listingForm.price.SetValue("lots")
	app = pressKey(t, app, "enter")
	if app.state != stateListing {
		t.Fatalf("invalid price left the form, state = %d", app.state)
	}
	if app.listingForm.formErr == "" {
		t.Fatal("expected a form error for non-numeric price")
	}
}

func TestDeleteSelectedTwin(t *testing.T) {
	app := newTestApp(t)
	seedTwin(t, app, "Marta")
	app = pressKey(t, app, "d")
	if got := app.registry.Count(); got != 0 {
		t.Fatalf("twin survived delete, count = %d", got)
	}
	if len(app.twinMenu.Items()) != 0 {
		t.Fatal("dashboard list not refreshed after delete")
	}
}

func TestSignInRoundTrip(t *testing.T) {
	app := newTestApp(t)
	app = pressKey(t, app, "g")
	if app.state != stateAuth {
		t.Fatalf("state = %d, want auth wait", app.state)
	}
	if !strings.Contains(app.authURL, "nonce=") {
		t.Fatalf("authURL = %q, want nonce parameter", app.authURL)
	}

	app = sendMsg(t, app, authResultMsg(auth.Result{State: auth.StateVerified, Address: "0xabc123abc123abc123"}))
	if app.state != stateDashboard {
		t.Fatalf("state after result = %d, want dashboard", app.state)
	}
	address, ok := app.identity()
	if !ok || address != "0xabc123abc123abc123" {
		t.Fatalf("identity = %q, %t", address, ok)
	}
}

func TestSignInFailureClearsAuthScreen(t *testing.T) {
	app := newTestApp(t)
	app = pressKey(t, app, "g")
	app = sendMsg(t, app, authResultMsg(auth.Result{State: auth.StateFailed, Err: auth.ErrNonceMismatch}))
	if app.state != stateDashboard {
		t.Fatalf("state = %d, want dashboard", app.state)
	}
	if _, ok := app.identity(); ok {
		t.Fatal("failed sign-in must not produce an identity")
	}
}

func TestChatSendProducesReply(t *testing.T) {
	app := newTestApp(t)
	seedTwin(t, app, "Marta")
	app = pressKey(t, app, "enter")
	if app.state != stateChat {
		t.Fatalf("state = %d, want chat", app.state)
	}

	app.chatView.input.SetValue("hello")
	app = pressKey(t, app, "enter")
	deadline := time.After(2 * time.Second)
	for len(app.session.Messages()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("no reply arrived, messages = %d", len(app.session.Messages()))
		case <-time.After(5 * time.Millisecond):
		}
	}

	app = pressKey(t, app, "esc")
	if app.state != stateDashboard || app.session != nil {
		t.Fatal("leaving chat must close the session")
	}
	updated, err := app.registry.Get(app.twins[0].ID)
	if err != nil {
		t.Fatalf("get twin: %v", err)
	}
	if updated.ConversationsCount != 1 {
		t.Fatalf("conversationsCount = %d, want 1", updated.ConversationsCount)
	}
}

func TestMarketplaceShowsOnlyPublicListings(t *testing.T) {
	app := newTestApp(t)
	public := seedTwin(t, app, "Public Twin")
	hidden := seedTwin(t, app, "Hidden Twin")
	if _, err := app.catalog.ListOrUpdate(public, 10, true, "0xcafe"); err != nil {
		t.Fatalf("list public: %v", err)
	}
	if _, err := app.catalog.ListOrUpdate(hidden, 20, false, "0xcafe"); err != nil {
		t.Fatalf("list hidden: %v", err)
	}

	app = pressKey(t, app, "m")
	if app.state != stateMarketplace {
		t.Fatalf("state = %d, want marketplace", app.state)
	}
	items := app.marketMenu.Items()
	if len(items) != 1 {
		t.Fatalf("marketplace shows %d items, want 1", len(items))
	}
	entry, ok := items[0].(listingItem)
	if !ok || entry.l.ID != public.ID {
		t.Fatalf("unexpected marketplace entry %+v", items[0])
	}
}
