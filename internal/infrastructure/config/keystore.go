package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/zono819/token-seller/internal/adapter/gateway"
)

// keySuffix is appended to an exchange key to name its credential entry.
const keySuffix = "_keys"

// proxyEntry is the reserved keystore entry holding proxy settings.
const proxyEntry = "proxy_keys"

// placeholder marks an unset field in a keystore template.
const placeholder = "***"

// Keystore holds per-exchange credentials and an optional proxy, loaded
// from the api_keys.json file.
type Keystore struct {
	creds map[string]gateway.Credentials
	proxy *gateway.Proxy
}

// LoadKeystore reads the credential file. An entry "<exchange>_keys" maps
// to {apiKey, secret, password, uid}; "proxy_keys" maps to {host, port,
// username, password}.
func LoadKeystore(path string) (*Keystore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keys file: %w", err)
	}
	return ParseKeystore(data)
}

// ParseKeystore parses keystore JSON
func ParseKeystore(data []byte) (*Keystore, error) {
	var raw map[string]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse keys file: %w", err)
	}

	ks := &Keystore{creds: make(map[string]gateway.Credentials)}
	for name, entry := range raw {
		if name == proxyEntry {
			p := gateway.Proxy{
				Host:     entry["host"],
				Port:     entry["port"],
				Username: entry["username"],
				Password: entry["password"],
			}
			if validProxy(p) {
				ks.proxy = &p
			}
			continue
		}
		exchange, ok := strings.CutSuffix(name, keySuffix)
		if !ok || exchange == "" {
			continue
		}
		ks.creds[strings.ToLower(exchange)] = gateway.Credentials{
			APIKey:   entry["apiKey"],
			Secret:   entry["secret"],
			Password: entry["password"],
			UID:      entry["uid"],
		}
	}
	return ks, nil
}

// Credentials returns the credentials for an exchange key, false if the
// keystore has none
func (k *Keystore) Credentials(exchangeKey string) (gateway.Credentials, bool) {
	c, ok := k.creds[strings.ToLower(exchangeKey)]
	if !ok || c.Empty() {
		return gateway.Credentials{}, false
	}
	return c, true
}

// Proxy returns the proxy configuration, nil when absent or invalid
func (k *Keystore) Proxy() *gateway.Proxy {
	return k.proxy
}

// Exchanges lists exchange keys with usable credentials
func (k *Keystore) Exchanges() []string {
	keys := make([]string, 0, len(k.creds))
	for key, c := range k.creds {
		if !c.Empty() {
			keys = append(keys, key)
		}
	}
	return keys
}

// validProxy requires every field non-empty and not a placeholder marker;
// a partial proxy config is treated as no proxy.
func validProxy(p gateway.Proxy) bool {
	for _, v := range []string{p.Host, p.Port, p.Username, p.Password} {
		if strings.TrimSpace(v) == "" || strings.TrimSpace(v) == placeholder {
			return false
		}
	}
	return true
}
