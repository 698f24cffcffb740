package bridge

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
)

const (
	alphanumerical  = "abcdefghijklmnopqrstuvwxyz0123456789"
	bridgeURLFormat = "https://%v.bridge.walletconnect.org"
)

// RandomBridgeURL picks one of the public v1 bridge shards.
func RandomBridgeURL() string {
	c := alphanumerical[rand.Intn(len(alphanumerical))]
	return fmt.Sprintf(bridgeURLFormat, string(c))
}

// GetWebSocketURL turns a bridge http(s) url into the websocket endpoint.
func GetWebSocketURL(bridgeURL, protocol, version string) string {
	switch {
	case strings.HasPrefix(bridgeURL, "https://"):
		bridgeURL = "wss://" + strings.TrimPrefix(bridgeURL, "https://")
	case strings.HasPrefix(bridgeURL, "http://"):
		bridgeURL = "ws://" + strings.TrimPrefix(bridgeURL, "http://")
	}
	q := url.Values{}
	q.Set("protocol", protocol)
	q.Set("version", version)
	q.Set("env", "browser")
	return bridgeURL + "?" + q.Encode()
}

// PairingURI builds the wc: uri that wallets scan to join the handshake topic.
func PairingURI(handshakeTopic, bridgeURL string, key []byte) string {
	return fmt.Sprintf("wc:%s@1?bridge=%s&key=%x", handshakeTopic, url.QueryEscape(bridgeURL), key)
}
