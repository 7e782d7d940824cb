package broker

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

const redacted = "[REDACTED]"

// Credentials are exchange API keys. They format as redacted in every
// fmt verb and in slog output.
type Credentials struct {
	APIKey    string
	APISecret string
	// Extra carries venue-specific fields such as a passphrase.
	Extra map[string]string
}

func (c Credentials) IsZero() bool {
	return c.APIKey == "" && c.APISecret == "" && len(c.Extra) == 0
}

func (c Credentials) String() string {
	if c.IsZero() {
		return "Credentials{}"
	}
	return "Credentials{" + redacted + "}"
}

func (c Credentials) GoString() string {
	return c.String()
}

func (c Credentials) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

// CredentialSource resolves the credentials a user trades with on an
// exchange.
type CredentialSource interface {
	Credentials(ctx context.Context, userID, exchange string) (Credentials, error)
}

// NoCredentials always returns empty credentials, which paper adapters
// accept.
type NoCredentials struct{}

func (NoCredentials) Credentials(context.Context, string, string) (Credentials, error) {
	return Credentials{}, nil
}

// StaticCredentials maps "exchange" or "exchange/user" to credentials.
// The per-user entry wins.
type StaticCredentials map[string]Credentials

func (s StaticCredentials) Credentials(_ context.Context, userID, exchange string) (Credentials, error) {
	if c, ok := s[exchange+"/"+userID]; ok {
		return c, nil
	}
	return s[exchange], nil
}

// EnvCredentials reads TRADEGATE_<EXCHANGE>_<USER>_API_KEY and
// _API_SECRET, falling back to TRADEGATE_<EXCHANGE>_API_KEY and
// _API_SECRET. Missing variables yield empty credentials.
type EnvCredentials struct {
	Prefix string
	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

func (e EnvCredentials) Credentials(_ context.Context, userID, exchange string) (Credentials, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	prefix := e.Prefix
	if prefix == "" {
		prefix = "TRADEGATE"
	}

	base := prefix + "_" + envName(exchange)
	for _, p := range []string{base + "_" + envName(userID), base} {
		key, okKey := lookup(p + "_API_KEY")
		secret, okSecret := lookup(p + "_API_SECRET")
		if okKey || okSecret {
			return Credentials{APIKey: key, APISecret: secret}, nil
		}
	}
	return Credentials{}, nil
}

func envName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
