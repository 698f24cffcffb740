package host

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellClick(t *testing.T) {
	s := NewShell()
	clicks := 0
	s.OnClick(func(context.Context) { clicks++ })

	assert.False(t, s.Click(context.Background()))
	s.Show()
	assert.False(t, s.Click(context.Background()))
	s.Enable()
	assert.True(t, s.Click(context.Background()))
	s.Disable()
	assert.False(t, s.Click(context.Background()))
	assert.Equal(t, 1, clicks)
}

func TestShellAlerts(t *testing.T) {
	s := NewShell()
	s.Alert("one")
	s.Alert("two")
	assert.Equal(t, []Alert{{Seq: 1, Message: "one"}, {Seq: 2, Message: "two"}}, s.AlertsSince(0))
	assert.Equal(t, []Alert{{Seq: 2, Message: "two"}}, s.AlertsSince(1))
	assert.Empty(t, s.AlertsSince(2))

	for i := 0; i < maxAlerts+10; i++ {
		s.Alert("x")
	}
	all := s.AlertsSince(0)
	assert.Len(t, all, maxAlerts)
	assert.Equal(t, int64(maxAlerts+12), all[len(all)-1].Seq)
}

func TestShellSnapshotAndJournal(t *testing.T) {
	s := NewShell()
	s.Expand()
	s.Ready()
	s.SetText("CONNECT WALLET")
	s.RenderAccounts("0xabc", []AccountRow{{Address: "0xabc", Balance: "1.0000"}})
	s.RenderUsers([]UserRow{{Name: "Alice", Calls: "3"}})
	s.SetConnectedVisible(true)
	s.Input.Set("Bob")
	assert.NoError(t, s.DisplayQRCode([]byte{1, 2}))

	st := s.Snapshot(0)
	assert.Equal(t, "CONNECT WALLET", st.Button.Text)
	assert.Equal(t, "0xabc", st.Selected)
	assert.Equal(t, "1.0000", st.Accounts[0].Balance)
	assert.Equal(t, "Alice", st.Users[0].Name)
	assert.True(t, st.ConnectedVisible)
	assert.True(t, st.QRCodeAvailable)
	assert.Equal(t, "Bob", st.Input)
	assert.True(t, st.Expanded)

	s.Close()
	assert.Nil(t, s.QRCode())
	assert.True(t, s.Snapshot(0).Closed)
	assert.Equal(t, []string{
		"app.expand", "app.ready", "button.text:CONNECT WALLET", "view.accounts", "view.users",
		"view.connected.show", "qrcode.display", "app.close",
	}, s.Journal())
}

func TestShellJournalIsBounded(t *testing.T) {
	s := NewShell()
	for i := 0; i < maxJournal+20; i++ {
		s.SetText(strconv.Itoa(i))
	}
	journal := s.Journal()
	assert.Len(t, journal, maxJournal)
	assert.Equal(t, "button.text:20", journal[0])
	assert.Equal(t, "button.text:"+strconv.Itoa(maxJournal+19), journal[len(journal)-1])
}
