package api

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/AaronLay10/SentientNarrative/internal/config"
)

// ErrTLSHalfConfigured is returned when only one of the certificate and
// key paths is set.
var ErrTLSHalfConfigured = errors.New("SENTIENT_TLS_CERT and SENTIENT_TLS_KEY must be set together")

// TLSConfig holds the certificate and key the API serves HTTPS with.
type TLSConfig struct {
	CertFile string `env:"SENTIENT_TLS_CERT"`
	KeyFile  string `env:"SENTIENT_TLS_KEY"`
}

var tlsConfig *TLSConfig

// InitTLS reads SENTIENT_TLS_CERT and SENTIENT_TLS_KEY. With neither set the
// API serves plain HTTP.
func InitTLS() error {
	var cfg TLSConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return err
	}
	tlsConfig = nil
	switch {
	case cfg.CertFile == "" && cfg.KeyFile == "":
		return nil
	case cfg.CertFile == "" || cfg.KeyFile == "":
		return ErrTLSHalfConfigured
	}
	tlsConfig = &cfg
	return nil
}

// IsTLSEnabled returns true if TLS is configured.
func IsTLSEnabled() bool {
	return tlsConfig != nil
}

// GetTLSConfig returns the current TLS configuration (may be nil).
func GetTLSConfig() *TLSConfig {
	return tlsConfig
}

// LoadTLSConfig loads the configured key pair. It returns nil, nil when TLS
// is off; an unreadable key pair is an error so the API never silently falls
// back to plain HTTP.
func LoadTLSConfig() (*tls.Config, error) {
	if !IsTLSEnabled() {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS key pair %s: %w", tlsConfig.CertFile, err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// SetTLSConfigForTest allows tests to set TLS config directly.
func SetTLSConfigForTest(cfg *TLSConfig) {
	tlsConfig = cfg
}
