package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"xdao.co/trustring/bootstrap"
	"xdao.co/trustring/config"
	"xdao.co/trustring/identity"
	"xdao.co/trustring/internal/logging"
	"xdao.co/trustring/model"
	"xdao.co/trustring/storage"
	"xdao.co/trustring/storage/registry"
)

// keyFlags selects a public key by type plus PEM file or hex.
type keyFlags struct {
	keyType string
	pem     string
	hex     string
}

func (k *keyFlags) add(fs *flag.FlagSet, prefix string) {
	fs.StringVar(&k.keyType, prefix+"type", "", "Key type: ed25519 or rsa")
	fs.StringVar(&k.pem, prefix+"pem", "", "Public key PEM file")
	fs.StringVar(&k.hex, prefix+"hex", "", "Public key hex (rsa: <modulus>:<exponent>)")
}

func (k *keyFlags) material() (model.KeyMaterial, error) {
	kt, err := model.ParseKeyType(k.keyType)
	if err != nil {
		return model.KeyMaterial{}, err
	}
	if (k.pem == "") == (k.hex == "") {
		return model.KeyMaterial{}, errors.New("exactly one of --pem and --hex is required")
	}
	var m model.KeyMaterial
	if k.hex != "" {
		m, err = config.ParseKeyHex(kt, k.hex)
	} else {
		m, err = config.ReadPublicKeyPEM(k.pem)
	}
	if err != nil {
		return model.KeyMaterial{}, err
	}
	if m.Type != kt {
		return model.KeyMaterial{}, fmt.Errorf("key is %s, --type says %s", m.Type, kt)
	}
	return m, nil
}

// identityFlags select the local identity and its attribute store, either
// from a config file or from flags.
type identityFlags struct {
	configPath string
	backend    string
	handle     string
	longTerm   keyFlags
	logLevel   string
	logJSON    bool
}

func (f *identityFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "trustring YAML config file")
	fs.StringVar(&f.backend, "backend", "", "Attribute store backend (default localfs; with --config, the preferred write backend)")
	fs.StringVar(&f.handle, "handle", "", "Local identity handle (base58)")
	f.longTerm.add(fs, "key-")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&f.logJSON, "log-json", false, "Log as JSON")
	registry.RegisterFlags(fs, registry.UsageCLI)
}

type session struct {
	local    *identity.Local
	report   *bootstrap.Report
	closeFns []func() error
}

func (s *session) Close() {
	if s.local != nil {
		_ = s.local.Close()
	}
	for i := len(s.closeFns) - 1; i >= 0; i-- {
		_ = s.closeFns[i]()
	}
}

// open resolves the identity, opens its store and runs bootstrap.
func (f *identityFlags) open(errOut io.Writer) (*session, error) {
	var (
		handle     model.Handle
		longTerm   model.KeyMaterial
		passphrase string
		store      storage.Store
		closeFn    func() error
		logOpts    = logging.Options{Level: f.logLevel, JSON: f.logJSON, Writer: errOut}
		err        error
	)

	if f.configPath != "" {
		cfg, err := config.LoadFile(f.configPath)
		if err != nil {
			return nil, err
		}
		if handle, err = cfg.HandleValue(); err != nil {
			return nil, err
		}
		if longTerm, err = cfg.LoadLongTermKey(); err != nil {
			return nil, err
		}
		passphrase = cfg.Passphrase()
		if f.logLevel == "" {
			logOpts.Level = cfg.Log.Level
			logOpts.JSON = logOpts.JSON || cfg.Log.JSON
		}
		if store, closeFn, err = cfg.Storage.Open(registry.UsageCLI, f.backend); err != nil {
			return nil, err
		}
	} else {
		if handle, err = model.ParseHandle(f.handle); err != nil {
			return nil, fmt.Errorf("--handle: %w", err)
		}
		if longTerm, err = f.longTerm.material(); err != nil {
			return nil, fmt.Errorf("long-term key: %w", err)
		}
		passphrase = os.Getenv(config.DefaultPassphraseEnv)
		backend := f.backend
		if backend == "" {
			backend = "localfs"
		}
		if store, closeFn, err = registry.Open(backend, registry.UsageCLI); err != nil {
			return nil, err
		}
	}

	s := &session{}
	if closeFn != nil {
		s.closeFns = append(s.closeFns, closeFn)
	}

	logger, err := logging.New(logOpts)
	if err != nil {
		s.Close()
		return nil, err
	}
	ctrl, err := bootstrap.New(bootstrap.Config{
		Handle:      handle,
		Attributes:  storage.Bind(store, handle.String()),
		LongTermKey: longTerm,
		Passphrase:  passphrase,
		Logger:      logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	local, report, err := ctrl.Run(context.Background())
	if err != nil {
		s.Close()
		return nil, err
	}
	s.local, s.report = local, report
	for kt, lerr := range report.LoadErrors {
		fmt.Fprintf(errOut, "warning: %s trust ring not loaded: %v\n", kt, lerr)
	}
	return s, nil
}
