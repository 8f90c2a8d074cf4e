package session

import (
	"crypto/tls"
	"fmt"

	"github.com/ergochat/irc-go/ircevent"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/matt0x6f/cascade-core/internal/model"
)

// EngineConfig is the built engine configuration for one connection attempt
type EngineConfig struct {
	Conn     *ircevent.Connection
	Encoding encoding.Encoding
	AutoJoin []string
}

// BuildEngineConfig turns a connection descriptor into an engine
// configuration. The engine's own reconnection is disabled; reconnection is
// owned by the session, not the engine.
func BuildEngineConfig(desc model.Descriptor) *EngineConfig {
	username := desc.Username
	if username == "" {
		username = desc.Nickname
	}
	realname := desc.Realname
	if realname == "" {
		realname = desc.Nickname
	}

	conn := &ircevent.Connection{
		Server:        fmt.Sprintf("%s:%d", desc.Server, desc.Port),
		Nick:          desc.Nickname,
		User:          username,
		RealName:      realname,
		UseTLS:        desc.TLS,
		ReconnectFreq: 0, // Disable automatic reconnection - we handle it ourselves
	}

	if desc.TLS {
		// Trust-all fallback: many community servers run self-signed
		// certificates, so certificate verification stays off
		conn.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if desc.SASLLogin != "" {
		conn.SASLLogin = desc.SASLLogin
		conn.SASLPassword = desc.SASLPass
	}

	return &EngineConfig{
		Conn:     conn,
		Encoding: ResolveEncoding(desc.Encoding),
		AutoJoin: append([]string(nil), desc.AutoJoin...),
	}
}

// ResolveEncoding resolves a character encoding by its IANA name. Unknown or
// invalid names fall back to UTF-8 (returned as nil, meaning pass-through).
func ResolveEncoding(name string) encoding.Encoding {
	if name == "" || name == "UTF-8" || name == "utf-8" {
		return nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		logger.Log.Warn().Str("encoding", name).Msg("Unknown character encoding, falling back to UTF-8")
		return nil
	}
	return enc
}

// DecodeText converts inbound text from the configured encoding to UTF-8.
// Decode failures keep the original text.
func (c *EngineConfig) DecodeText(text string) string {
	if c == nil || c.Encoding == nil {
		return text
	}
	decoded, err := c.Encoding.NewDecoder().String(text)
	if err != nil {
		return text
	}
	return decoded
}

// EncodeText converts outbound UTF-8 text to the configured encoding.
// Encode failures keep the original text.
func (c *EngineConfig) EncodeText(text string) string {
	if c == nil || c.Encoding == nil {
		return text
	}
	encoded, err := c.Encoding.NewEncoder().String(text)
	if err != nil {
		return text
	}
	return encoded
}
