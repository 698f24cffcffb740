// Package host describes the chat mini-app surfaces the controller drives: the main
// button, alerts, the account/users view and the app container.
package host

import "context"

type MainButton interface {
	SetText(text string)
	// OnClick replaces the click handler.
	OnClick(fn func(ctx context.Context))
	Show()
	Hide()
	Enable()
	Disable()
	ShowProgress()
	HideProgress()
}

type Alerter interface {
	Alert(message string)
}

type AccountRow struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type UserRow struct {
	Name  string `json:"name"`
	Calls string `json:"calls"`
}

type View interface {
	// RenderAccounts replaces the account rows. selected is empty when no account is active.
	RenderAccounts(selected string, rows []AccountRow)
	RenderUsers(rows []UserRow)
	SetConnectedVisible(visible bool)
	SetActionsEnabled(enabled bool)
}

type App interface {
	Expand()
	Ready()
	Close()
}

type TextField interface {
	Value() string
	Clear()
}

// QRDisplay shows the WalletConnect pairing code.
type QRDisplay interface {
	DisplayQRCode(png []byte) error
}
