package action

const (
	ConnectLabel    = "CONNECT WALLET"
	DisconnectLabel = "DISCONNECT WALLET"

	MsgLogged       = "Successfully logged your name."
	MsgIncremented  = "Successfully incremented the number of times you've interacted with the smart contract."
	MsgLoggedName   = "The name you logged was %s."
	MsgCalls        = "You've called the contract %s times."
	MsgEmptyInput   = "Nothing was entered into the text field."
	MsgNotConnected = "Connect your wallet first."
	MsgWalletGone   = "Your wallet ended the session."
)
