package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/TheusHen/secchan/secchan"
	"github.com/TheusHen/secchan/secchan/crypto"
	"github.com/TheusHen/secchan/secchan/identity"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the secchan-cat runtime configuration.
type Config struct {
	Listen           string
	Dial             string
	Carrier          string
	Protocol         string
	Prologue         string
	StaticKeyFile    string
	IdentityKeyFile  string
	RequireIdentity  bool
	HandshakeTimeout time.Duration
	MetricsAddr      string
	LogLevel         string
}

type fileConfig struct {
	Listen           string `toml:"listen"`
	Dial             string `toml:"dial"`
	Carrier          string `toml:"carrier"`
	Protocol         string `toml:"protocol"`
	Prologue         string `toml:"prologue"`
	StaticKeyFile    string `toml:"static_key_file"`
	IdentityKeyFile  string `toml:"identity_key_file"`
	RequireIdentity  bool   `toml:"require_identity"`
	HandshakeTimeout string `toml:"handshake_timeout"`
	MetricsAddr      string `toml:"metrics_addr"`
	LogLevel         string `toml:"log_level"`
}

func Default() Config {
	return Config{
		Carrier:          "tcp",
		Protocol:         secchan.DefaultProtocol,
		HandshakeTimeout: 10 * time.Second,
		LogLevel:         "info",
	}
}

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default value. The result is not validated; flags may still
// override it.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, undecoded[0].String())
	}

	set := func(key string, dst *string, v string) {
		if meta.IsDefined(key) {
			*dst = strings.TrimSpace(v)
		}
	}
	set("listen", &cfg.Listen, raw.Listen)
	set("dial", &cfg.Dial, raw.Dial)
	set("carrier", &cfg.Carrier, raw.Carrier)
	set("protocol", &cfg.Protocol, raw.Protocol)
	set("static_key_file", &cfg.StaticKeyFile, raw.StaticKeyFile)
	set("identity_key_file", &cfg.IdentityKeyFile, raw.IdentityKeyFile)
	set("metrics_addr", &cfg.MetricsAddr, raw.MetricsAddr)
	set("log_level", &cfg.LogLevel, raw.LogLevel)
	if meta.IsDefined("prologue") {
		cfg.Prologue = raw.Prologue
	}
	if meta.IsDefined("require_identity") {
		cfg.RequireIdentity = raw.RequireIdentity
	}
	if meta.IsDefined("handshake_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HandshakeTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse handshake_timeout: %w", err)
		}
		cfg.HandshakeTimeout = d
	}
	return cfg, nil
}

// Validate checks a fully merged configuration.
func (c Config) Validate() error {
	if (c.Listen == "") == (c.Dial == "") {
		return fmt.Errorf("%w: exactly one of listen and dial is required", ErrInvalidConfig)
	}
	switch c.Carrier {
	case "tcp", "quic":
	default:
		return fmt.Errorf("%w: carrier %q (want tcp or quic)", ErrInvalidConfig, c.Carrier)
	}
	if _, err := crypto.ParseSuite(c.Protocol); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("%w: negative handshake_timeout", ErrInvalidConfig)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// SessionConfig loads the key files and builds the channel configuration.
// Without a static key file every session uses a fresh key.
func (c Config) SessionConfig() (secchan.Config, error) {
	sc := secchan.Config{
		Protocol:              c.Protocol,
		Prologue:              []byte(c.Prologue),
		RequireRemoteIdentity: c.RequireIdentity,
	}
	if c.StaticKeyFile != "" {
		kp, err := LoadStaticKey(c.StaticKeyFile)
		if err != nil {
			return secchan.Config{}, err
		}
		sc.StaticKeypair = kp
	}
	if c.IdentityKeyFile != "" {
		kp, err := LoadIdentity(c.IdentityKeyFile)
		if err != nil {
			return secchan.Config{}, err
		}
		sc.Identity = kp
	}
	return sc, nil
}

// LoadStaticKey reads a hex encoded X25519 private key.
func LoadStaticKey(path string) (crypto.DHKey, error) {
	b, err := readHexFile(path)
	if err != nil {
		return crypto.DHKey{}, err
	}
	kp, err := crypto.KeypairFromPrivate(b)
	clear(b)
	if err != nil {
		return crypto.DHKey{}, fmt.Errorf("static key (%s): %w", path, err)
	}
	return kp, nil
}

// LoadIdentity reads a hex encoded Ed25519 seed.
func LoadIdentity(path string) (identity.KeyPair, error) {
	b, err := readHexFile(path)
	if err != nil {
		return identity.KeyPair{}, err
	}
	kp, err := identity.KeyPairFromSeed(b)
	clear(b)
	if err != nil {
		return identity.KeyPair{}, fmt.Errorf("identity key (%s): %w", path, err)
	}
	return kp, nil
}

// WriteKeyFile stores key hex encoded, readable by the owner only.
func WriteKeyFile(path string, key []byte) error {
	return os.WriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0o600)
}

func readHexFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key (%s): %w", path, err)
	}
	b, err := hex.DecodeString(strings.TrimSpace(string(data)))
	clear(data)
	if err != nil {
		return nil, fmt.Errorf("decode key (%s): %w", path, err)
	}
	return b, nil
}
