package models

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ProxyType enumerates the protocols a proxy core can serve.
type ProxyType string

const (
	VMess       ProxyType = "vmess"
	VLESS       ProxyType = "vless"
	Trojan      ProxyType = "trojan"
	Shadowsocks ProxyType = "shadowsocks"
)

// Valid reports whether t is one of the known protocols
func (t ProxyType) Valid() bool {
	switch t {
	case VMess, VLESS, Trojan, Shadowsocks:
		return true
	}
	return false
}

// ProxySettings is the per-protocol credential payload attached to a user.
// Exactly one settings value exists per protocol the user is assigned to.
type ProxySettings interface {
	Protocol() ProxyType
}

type VMessSettings struct {
	ID string `json:"id" validate:"required,uuid4"`
}

func (VMessSettings) Protocol() ProxyType { return VMess }

type VLESSSettings struct {
	ID   string `json:"id" validate:"required,uuid4"`
	Flow string `json:"flow"`
}

func (VLESSSettings) Protocol() ProxyType { return VLESS }

type TrojanSettings struct {
	Password string `json:"password" validate:"required"`
	Flow     string `json:"flow"`
}

func (TrojanSettings) Protocol() ProxyType { return Trojan }

type ShadowsocksSettings struct {
	Password string `json:"password" validate:"required"`
	Method   string `json:"method" validate:"required,oneof=aes-128-gcm aes-256-gcm chacha20-ietf-poly1305"`
}

func (ShadowsocksSettings) Protocol() ProxyType { return Shadowsocks }

// DefaultSettings returns a freshly generated credential payload for the
// given protocol. Adding a protocol to the enum without a case here is a
// build-time-visible omission for every caller that switches on the result.
func DefaultSettings(t ProxyType) (ProxySettings, error) {
	switch t {
	case VMess:
		return VMessSettings{ID: uuid.New().String()}, nil
	case VLESS:
		return VLESSSettings{ID: uuid.New().String()}, nil
	case Trojan:
		return TrojanSettings{Password: randomPassword()}, nil
	case Shadowsocks:
		return ShadowsocksSettings{Password: randomPassword(), Method: "chacha20-ietf-poly1305"}, nil
	default:
		return nil, fmt.Errorf("unknown proxy type %q", t)
	}
}

func randomPassword() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the platform entropy source is broken
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// AllowedInbounds is an administrator policy mapping each granted protocol
// to the inbound tags its users may occupy.
type AllowedInbounds map[ProxyType][]string

// Validate rejects unknown protocols and empty tags before a sync touches
// any user record.
func (a AllowedInbounds) Validate() error {
	for proto, tags := range a {
		if !proto.Valid() {
			return fmt.Errorf("unknown proxy type %q", proto)
		}
		for _, tag := range tags {
			if tag == "" {
				return fmt.Errorf("empty inbound tag for %s", proto)
			}
		}
	}
	return nil
}

// ProxyMap maps a protocol to its settings payload. A custom unmarshaller is
// needed because the element type is an interface.
type ProxyMap map[ProxyType]ProxySettings

func (m *ProxyMap) UnmarshalJSON(data []byte) error {
	var raw map[ProxyType]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(ProxyMap, len(raw))
	for proto, payload := range raw {
		var (
			s   ProxySettings
			err error
		)
		switch proto {
		case VMess:
			var v VMessSettings
			err = json.Unmarshal(payload, &v)
			s = v
		case VLESS:
			var v VLESSSettings
			err = json.Unmarshal(payload, &v)
			s = v
		case Trojan:
			var v TrojanSettings
			err = json.Unmarshal(payload, &v)
			s = v
		case Shadowsocks:
			var v ShadowsocksSettings
			err = json.Unmarshal(payload, &v)
			s = v
		default:
			return fmt.Errorf("unknown proxy type %q", proto)
		}
		if err != nil {
			return fmt.Errorf("decode %s settings: %w", proto, err)
		}
		out[proto] = s
	}
	*m = out
	return nil
}
