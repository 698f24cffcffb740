package host

import (
	"context"
	"sync"

	"moff.io/wemove/pkg/log"
)

const (
	maxAlerts  = 50
	maxJournal = 500
)

type ButtonState struct {
	Text     string `json:"text"`
	Visible  bool   `json:"visible"`
	Enabled  bool   `json:"enabled"`
	Progress bool   `json:"progress"`
}

type Alert struct {
	Seq     int64  `json:"seq"`
	Message string `json:"message"`
}

// State is a snapshot of everything the shell shows.
type State struct {
	Button           ButtonState  `json:"main_button"`
	ConnectedVisible bool         `json:"connected_visible"`
	ActionsEnabled   bool         `json:"actions_enabled"`
	Selected         string       `json:"selected_account"`
	Accounts         []AccountRow `json:"accounts"`
	Users            []UserRow    `json:"users"`
	Expanded         bool         `json:"expanded"`
	Ready            bool         `json:"ready"`
	Closed           bool         `json:"closed"`
	QRCodeAvailable  bool         `json:"qrcode_available"`
	Input            string       `json:"input"`
	Alerts           []Alert      `json:"alerts"`
}

// Shell is the in-memory host. It implements every surface and records a journal of the
// calls made on it.
type Shell struct {
	Input *Field

	mu       sync.Mutex
	state    State
	onClick  func(ctx context.Context)
	alertSeq int64
	alerts   []Alert
	qrcode   []byte
	journal  []string
}

func NewShell() *Shell {
	return &Shell{Input: &Field{}}
}

// record keeps the latest maxJournal entries.
func (s *Shell) record(entry string) {
	s.journal = append(s.journal, entry)
	if len(s.journal) > maxJournal {
		s.journal = append(s.journal[:0], s.journal[len(s.journal)-maxJournal:]...)
	}
}

func (s *Shell) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Button.Text = text
	s.record("button.text:" + text)
}

func (s *Shell) OnClick(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClick = fn
}

func (s *Shell) Show() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Button.Visible = true
	s.record("button.show")
}

func (s *Shell) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Button.Visible = false
	s.record("button.hide")
}

func (s *Shell) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Button.Enabled = true
	s.record("button.enable")
}

func (s *Shell) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Button.Enabled = false
	s.record("button.disable")
}

func (s *Shell) ShowProgress() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Button.Progress = true
	s.record("button.progress.show")
}

func (s *Shell) HideProgress() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Button.Progress = false
	s.record("button.progress.hide")
}

// Click runs the main button handler on the calling goroutine. It reports false when the
// button is hidden, disabled or has no handler.
func (s *Shell) Click(ctx context.Context) bool {
	s.mu.Lock()
	fn := s.onClick
	ok := fn != nil && s.state.Button.Visible && s.state.Button.Enabled
	s.mu.Unlock()
	if !ok {
		return false
	}
	fn(ctx)
	return true
}

func (s *Shell) Alert(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alertSeq++
	s.alerts = append(s.alerts, Alert{Seq: s.alertSeq, Message: message})
	if len(s.alerts) > maxAlerts {
		s.alerts = s.alerts[len(s.alerts)-maxAlerts:]
	}
	s.record("alert:" + message)
	log.Infof("shell - alert:%s", message)
}

// AlertsSince returns the kept alerts with a sequence number above seq.
func (s *Shell) AlertsSince(seq int64) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Alert, 0)
	for _, a := range s.alerts {
		if a.Seq > seq {
			out = append(out, a)
		}
	}
	return out
}

func (s *Shell) RenderAccounts(selected string, rows []AccountRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Selected = selected
	s.state.Accounts = append([]AccountRow(nil), rows...)
	s.record("view.accounts")
}

func (s *Shell) RenderUsers(rows []UserRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Users = append([]UserRow(nil), rows...)
	s.record("view.users")
}

func (s *Shell) SetConnectedVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ConnectedVisible = visible
	if visible {
		s.record("view.connected.show")
	} else {
		s.record("view.connected.hide")
	}
}

func (s *Shell) SetActionsEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ActionsEnabled = enabled
	if enabled {
		s.record("view.actions.enable")
	} else {
		s.record("view.actions.disable")
	}
}

func (s *Shell) Expand() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Expanded = true
	s.record("app.expand")
}

func (s *Shell) Ready() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Ready = true
	s.state.Closed = false
	s.record("app.ready")
}

func (s *Shell) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Closed = true
	s.qrcode = nil
	s.record("app.close")
}

func (s *Shell) DisplayQRCode(png []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qrcode = append([]byte(nil), png...)
	s.record("qrcode.display")
	return nil
}

// QRCode returns the last pairing code shown, nil when none.
func (s *Shell) QRCode() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qrcode
}

// Snapshot returns the current state with the alerts issued after sinceAlert.
func (s *Shell) Snapshot(sinceAlert int64) State {
	alerts := s.AlertsSince(sinceAlert)
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Accounts = append([]AccountRow{}, s.state.Accounts...)
	st.Users = append([]UserRow{}, s.state.Users...)
	st.QRCodeAvailable = len(s.qrcode) > 0
	st.Input = s.Input.Value()
	st.Alerts = alerts
	return st
}

// Journal returns every recorded surface call in order.
func (s *Shell) Journal() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.journal...)
}

// Field is the log name text input.
type Field struct {
	mu    sync.Mutex
	value string
}

func (f *Field) Set(value string) {
	f.mu.Lock()
	f.value = value
	f.mu.Unlock()
}

func (f *Field) Value() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

func (f *Field) Clear() {
	f.Set("")
}
