package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/Unknwon/goconfig"

	"github.com/sitepush/sitepush/publish"
)

// passwordEnv overrides the config file's password so it can stay out of
// files and shell history.
const passwordEnv = "SITEPUSH_PASSWORD"

// globalFlags holds the persistent flag values shared by all commands.
type globalFlags struct {
	flags *pflag.FlagSet

	configPath         string
	host               string
	port               int
	user               string
	password           string
	remoteDir          string
	useTLS             bool
	insecure           bool
	clientCert         string
	clientCertPassword string
	jsonLog            bool
	verbose            bool
}

func (g *globalFlags) bind(flags *pflag.FlagSet) {
	g.flags = flags

	flags.StringVar(&g.configPath, "config", defaultConfigPath(), "Path to the INI config file")
	flags.StringVar(&g.host, "host", "", "Server host name or address")
	flags.IntVar(&g.port, "port", 0, "Control port (default 21)")
	flags.StringVar(&g.user, "user", "", "Login user")
	flags.StringVar(&g.password, "password", "", "Login password (prefer "+passwordEnv+")")
	flags.StringVar(&g.remoteDir, "dir", "", "Remote directory uploads land in")
	flags.BoolVar(&g.useTLS, "tls", false, "Use implicit TLS on both channels")
	flags.BoolVar(&g.insecure, "insecure", false, "Skip TLS certificate verification")
	flags.StringVar(&g.clientCert, "client-cert", "", "PKCS#12 client certificate for mutual TLS")
	flags.StringVar(&g.clientCertPassword, "client-cert-password", "", "Password for the client certificate bundle")
	flags.BoolVar(&g.jsonLog, "json-log", false, "Log in JSON format")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "Debug logging, including the command/reply trace")
}

// settings are the fully resolved connection parameters for one run.
type settings struct {
	creds              publish.Credentials
	insecure           bool
	clientCert         string
	clientCertPassword string
}

// resolve merges the config file, environment, and flags. Flags beat the
// environment, which beats the file.
func (g *globalFlags) resolve() (settings, error) {
	var s settings

	cfg, err := loadConfigFile(g.configPath, g.flags.Changed("config"))
	if err != nil {
		return settings{}, err
	}
	if cfg != nil {
		s.creds.Host = cfg.MustValue("remote", "host", "")
		s.creds.Port = cfg.MustInt("remote", "port", 0)
		s.creds.User = cfg.MustValue("remote", "user", "")
		s.creds.Password = cfg.MustValue("remote", "password", "")
		s.creds.RemoteDir = cfg.MustValue("remote", "dir", "")
		s.creds.TLS = cfg.MustBool("remote", "tls", false)
		s.insecure = cfg.MustBool("remote", "insecure", false)
		s.clientCert = cfg.MustValue("remote", "client_cert", "")
		s.clientCertPassword = cfg.MustValue("remote", "client_cert_password", "")
	}

	if password, ok := os.LookupEnv(passwordEnv); ok {
		s.creds.Password = password
	}

	if g.flags.Changed("host") {
		s.creds.Host = g.host
	}
	if g.flags.Changed("port") {
		s.creds.Port = g.port
	}
	if g.flags.Changed("user") {
		s.creds.User = g.user
	}
	if g.flags.Changed("password") {
		s.creds.Password = g.password
	}
	if g.flags.Changed("dir") {
		s.creds.RemoteDir = g.remoteDir
	}
	if g.flags.Changed("tls") {
		s.creds.TLS = g.useTLS
	}
	if g.flags.Changed("insecure") {
		s.insecure = g.insecure
	}
	if g.flags.Changed("client-cert") {
		s.clientCert = g.clientCert
	}
	if g.flags.Changed("client-cert-password") {
		s.clientCertPassword = g.clientCertPassword
	}

	return s, nil
}

// publisherOptions converts resolved settings into publish options.
func (s settings) publisherOptions(bwlimit int64) ([]publish.Option, error) {
	opts := []publish.Option{
		publish.WithLogger(libraryLogger()),
	}

	if bwlimit > 0 {
		opts = append(opts, publish.WithUploadLimit(bwlimit))
	}

	tlsConfig := &tls.Config{}
	needed := false
	if s.insecure {
		tlsConfig.InsecureSkipVerify = true
		needed = true
	}
	if s.clientCert != "" {
		cert, err := publish.LoadClientCertificate(s.clientCert, s.clientCertPassword)
		if err != nil {
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
		needed = true
	}
	if needed {
		opts = append(opts, publish.WithTLSConfig(tlsConfig))
	}

	return opts, nil
}

// loadConfigFile reads the INI file. A missing file is only an error
// when the user asked for that file explicitly.
func loadConfigFile(path string, explicit bool) (*goconfig.ConfigFile, error) {
	cfg, err := goconfig.LoadConfigFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return cfg, nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sitepush.ini"
	}
	return filepath.Join(home, ".sitepush.ini")
}

// parseBandwidth converts "512k" style limits into bytes per second.
// Suffixes are binary: k=KiB, M=MiB, G=GiB. Empty or "0" means
// unlimited.
func parseBandwidth(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	multiplier := int64(1)
	switch s[len(s)-1] {
	case 'k', 'K':
		multiplier = 1 << 10
		s = s[:len(s)-1]
	case 'm', 'M':
		multiplier = 1 << 20
		s = s[:len(s)-1]
	case 'g', 'G':
		multiplier = 1 << 30
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bandwidth limit %q", s)
	}
	if value < 0 {
		return 0, fmt.Errorf("bandwidth limit cannot be negative, got %q", s)
	}
	return int64(value * float64(multiplier)), nil
}
