package gumble

import (
	"crypto/tls"

	"github.com/pkg/errors"

	"github.com/diamondburned/gumble-go/mumbleproto"
	"github.com/diamondburned/gumble-go/version"
)

// DefaultPort is Mumble's conventional server port.
const DefaultPort = 64738

// Config is the core connection configuration, mirroring the
// teacher's gateway.State / ws.GatewayOpts pattern: a plain struct
// built once by NewConfig and passed to Dial, mutated only before the
// connection starts.
type Config struct {
	Host string
	Port int

	// Verify enables TLS certificate and hostname validation. Set
	// false only for self-signed servers under the caller's control.
	Verify bool

	// CertificatePEM and KeyPEM optionally supply a PEM-encoded client
	// certificate chain for servers that authenticate connections by
	// certificate rather than (or in addition to) password/tokens.
	CertificatePEM []byte
	KeyPEM         []byte
}

// NewConfig returns a Config for host on DefaultPort with verification
// enabled, the sane default for connecting to a public server.
func NewConfig(host string) Config {
	return Config{Host: host, Port: DefaultPort, Verify: true}
}

func (cfg Config) tlsConfig() (*tls.Config, error) {
	tc := &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: !cfg.Verify,
	}

	if len(cfg.CertificatePEM) > 0 {
		cert, err := tls.X509KeyPair(cfg.CertificatePEM, cfg.KeyPEM)
		if err != nil {
			return nil, errors.Wrap(ErrTLSHandshakeFailed, err.Error())
		}
		tc.Certificates = []tls.Certificate{cert}
	}

	return tc, nil
}

// Identity is the bot-level configuration layered on top of Config,
// mirroring the teacher's gateway.Identifier: username/credentials the
// core needs to perform the post-handshake Authenticate exchange but
// has no opinion about otherwise.
type Identity struct {
	Username string
	Password string
	Tokens   []string

	// ClientVersion is the protocol version advertised in the initial
	// Version message. Defaults to version.Client when zero.
	ClientVersion version.Version

	Opus bool
}

func (id Identity) clientVersion() version.Version {
	if id.ClientVersion == (version.Version{}) {
		return version.Client
	}
	return id.ClientVersion
}

// authenticate builds the Authenticate message sent once, immediately
// after the initial Version exchange.
func (id Identity) authenticate() *mumbleproto.Authenticate {
	return &mumbleproto.Authenticate{
		Username: id.Username,
		Password: id.Password,
		Tokens:   append([]string(nil), id.Tokens...),
		Opus:     id.Opus,
	}
}
