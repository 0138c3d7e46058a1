// Package config loads the trustring YAML configuration file.
//
//	handle: LUgbt7WE1gz
//	passphrase_env: TRUSTRING_PASSPHRASE
//	long_term_key: {type: rsa, pem_file: ./id_rsa.pub}
//	log: {level: info, json: false}
//	storage:
//	  write_policy: first
//	  backends:
//	    - {name: localfs, config: {localfs-dir: /var/lib/trustring}}
package config

import (
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"xdao.co/trustring/internal/logging"
	"xdao.co/trustring/model"
	"xdao.co/trustring/storage/storeconfig"
)

const DefaultPassphraseEnv = "TRUSTRING_PASSPHRASE"

type Config struct {
	Handle        string             `yaml:"handle"`
	PassphraseEnv string             `yaml:"passphrase_env,omitempty"`
	LongTermKey   LongTermKey        `yaml:"long_term_key"`
	Log           Log                `yaml:"log,omitempty"`
	Storage       storeconfig.Config `yaml:"storage"`

	// dir is the directory of the loaded file; relative paths resolve against it.
	dir string
}

// LongTermKey names the local long-term public key. Exactly one of PEMFile
// and Hex is set. Hex is the raw 32-byte key for ed25519 and
// "<modulus>:<exponent>" for rsa.
type LongTermKey struct {
	Type    string `yaml:"type"`
	PEMFile string `yaml:"pem_file,omitempty"`
	Hex     string `yaml:"hex,omitempty"`
}

type Log struct {
	Level string `yaml:"level,omitempty"`
	JSON  bool   `yaml:"json,omitempty"`
}

func LoadFile(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes and validates a YAML document. Unknown fields are rejected.
func Parse(b []byte) (*Config, error) {
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := model.ParseHandle(c.Handle); err != nil {
		return fmt.Errorf("handle: %w", err)
	}
	if _, err := model.ParseKeyType(c.LongTermKey.Type); err != nil {
		return fmt.Errorf("long_term_key.type: %w", err)
	}
	if (c.LongTermKey.PEMFile == "") == (c.LongTermKey.Hex == "") {
		return errors.New("long_term_key: exactly one of pem_file and hex is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

func (c *Config) HandleValue() (model.Handle, error) {
	return model.ParseHandle(c.Handle)
}

// Passphrase reads the signing-key passphrase from the configured environment
// variable. An unset variable yields "" (seed stored unsealed).
func (c *Config) Passphrase() string {
	env := c.PassphraseEnv
	if env == "" {
		env = DefaultPassphraseEnv
	}
	return os.Getenv(env)
}

func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, JSON: c.Log.JSON}
}

// LoadLongTermKey reads the configured long-term public key.
func (c *Config) LoadLongTermKey() (model.KeyMaterial, error) {
	kt, err := model.ParseKeyType(c.LongTermKey.Type)
	if err != nil {
		return model.KeyMaterial{}, err
	}
	var k model.KeyMaterial
	if c.LongTermKey.Hex != "" {
		k, err = ParseKeyHex(kt, c.LongTermKey.Hex)
	} else {
		path := c.LongTermKey.PEMFile
		if !filepath.IsAbs(path) && c.dir != "" {
			path = filepath.Join(c.dir, path)
		}
		k, err = ReadPublicKeyPEM(path)
	}
	if err != nil {
		return model.KeyMaterial{}, err
	}
	if k.Type != kt {
		return model.KeyMaterial{}, fmt.Errorf("config: long_term_key is %s, configured as %s", k.Type, kt)
	}
	if _, err := k.Canonical(); err != nil {
		return model.KeyMaterial{}, err
	}
	return k, nil
}

// ParseKeyHex decodes the hex key forms accepted by long_term_key.hex.
func ParseKeyHex(kt model.KeyType, s string) (model.KeyMaterial, error) {
	if err := kt.Check(); err != nil {
		return model.KeyMaterial{}, err
	}
	switch kt {
	case model.KeyTypeEd25519:
		b, err := hex.DecodeString(s)
		if err != nil {
			return model.KeyMaterial{}, fmt.Errorf("config: ed25519 key hex: %w", err)
		}
		return model.Ed25519Key(b), nil
	default:
		n, e, ok := strings.Cut(s, ":")
		if !ok {
			return model.KeyMaterial{}, errors.New(`config: rsa key hex must be "<modulus>:<exponent>"`)
		}
		nb, err := hex.DecodeString(n)
		if err != nil {
			return model.KeyMaterial{}, fmt.Errorf("config: rsa modulus: %w", err)
		}
		eb, err := hex.DecodeString(e)
		if err != nil {
			return model.KeyMaterial{}, fmt.Errorf("config: rsa exponent: %w", err)
		}
		return model.RSAKey(nb, eb), nil
	}
}

// ReadPublicKeyPEM reads a PKIX ("PUBLIC KEY") or PKCS#1 ("RSA PUBLIC KEY")
// encoded public key.
func ReadPublicKeyPEM(path string) (model.KeyMaterial, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return model.KeyMaterial{}, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return model.KeyMaterial{}, fmt.Errorf("config: %s: no PEM block", path)
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return model.KeyMaterial{}, fmt.Errorf("config: %s: %w", path, err)
		}
		return model.RSAKeyFromPublic(pub), nil
	case "PUBLIC KEY":
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return model.KeyMaterial{}, fmt.Errorf("config: %s: %w", path, err)
		}
		switch p := pub.(type) {
		case *rsa.PublicKey:
			return model.RSAKeyFromPublic(p), nil
		case ed25519.PublicKey:
			return model.Ed25519Key(p), nil
		default:
			return model.KeyMaterial{}, model.NewError(model.KindUnsupportedKeyType, "TRUST-CFG-001", fmt.Sprintf("unsupported public key %T", pub))
		}
	default:
		return model.KeyMaterial{}, fmt.Errorf("config: %s: unexpected PEM block %q", path, block.Type)
	}
}
