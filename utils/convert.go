package utils

import (
	"errors"
	"fmt"

	"github.com/coolray-dev/rayfleet/models"
	"v2ray.com/core/common/protocol"
	"v2ray.com/core/common/serial"
	"v2ray.com/core/proxy/shadowsocks"
	"v2ray.com/core/proxy/vmess"
)

// ErrUnsupportedProtocol marks a protocol whose accounts cannot be applied
// through the core's live handler API. Callers fall back to a config
// rebuild and restart.
var ErrUnsupportedProtocol = errors.New("protocol does not support live updates")

// ConvertUser builds the core account entry for one of a user's assigned
// protocols. VLESS and Trojan accounts can only be installed via the
// startup configuration, not the handler API.
func ConvertUser(user *models.User, proto models.ProxyType) (*protocol.User, error) {
	settings, ok := user.Proxies[proto]
	if !ok {
		return nil, fmt.Errorf("user %s has no %s settings", user.Username, proto)
	}

	switch s := settings.(type) {
	case models.VMessSettings:
		return &protocol.User{
			Level: 0,
			Email: user.Username,
			Account: serial.ToTypedMessage(&vmess.Account{
				Id:      s.ID,
				AlterId: 0,
			}),
		}, nil
	case models.ShadowsocksSettings:
		return &protocol.User{
			Level: 0,
			Email: user.Username,
			Account: serial.ToTypedMessage(&shadowsocks.Account{
				Password:   s.Password,
				CipherType: convertCipher(s.Method),
			}),
		}, nil
	case models.VLESSSettings, models.TrojanSettings:
		return nil, fmt.Errorf("%s: %w", proto, ErrUnsupportedProtocol)
	default:
		return nil, fmt.Errorf("unknown proxy type %q", proto)
	}
}

func convertCipher(method string) shadowsocks.CipherType {
	switch method {
	case "aes-128-gcm":
		return shadowsocks.CipherType_AES_128_GCM
	case "aes-256-gcm":
		return shadowsocks.CipherType_AES_256_GCM
	default:
		return shadowsocks.CipherType_CHACHA20_POLY1305
	}
}
