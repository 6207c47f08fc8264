package session

import "github.com/rsuppersahabatan/baileys-api/internal/config"

// DefaultSessionName is used when neither the flag nor the config names one.
const DefaultSessionName = "main"

// Resolve picks the active session name. An explicit flag value wins; next
// comes default_session from config.toml; otherwise DefaultSessionName.
// A missing or unreadable config file is treated as naming nothing.
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if cfg, err := config.Load(ConfigPath()); err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
