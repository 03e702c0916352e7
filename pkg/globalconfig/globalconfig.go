// Package globalconfig models ~/.agpm/config.toml, which is out of scope
// beyond the interface it exposes for resolving source URLs with
// credentials (spec §1, §9 "Global configuration"). The resolver interface
// is the only contract the rest of AGPM depends on; the core never reads
// credentials inline.
package globalconfig

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ghauth "github.com/cli/go-gh/v2/pkg/auth"

	"github.com/agpm-dev/agpm/pkg/agpmerr"
	"github.com/agpm-dev/agpm/pkg/logger"
)

var log = logger.New("agpm:globalconfig")

// Resolver resolves a source's configured URL into one carrying whatever
// credentials are needed to clone or fetch it, per spec §4.3 "Credentials
// are resolved at clone/fetch time from the global-config interface."
type Resolver interface {
	ResolveURL(sourceName, configuredURL string) (string, error)
}

// SourceCredential is one [sources.<name>] table in config.toml.
type SourceCredential struct {
	Token    string `toml:"token"`
	Username string `toml:"username"`
}

// Config is the decoded shape of ~/.agpm/config.toml.
type Config struct {
	Sources map[string]SourceCredential `toml:"sources"`
}

// FileResolver is the default Resolver, backed by a TOML config file with a
// fallback to GitHub CLI-style token discovery (via github.com/cli/go-gh)
// for github.com source URLs lacking an explicit entry.
type FileResolver struct {
	cfg Config
}

// DefaultPath returns ~/.agpm/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", agpmerr.Wrap(agpmerr.KindIO, err, "resolving home directory")
	}
	return filepath.Join(home, ".agpm", "config.toml"), nil
}

// Load reads and decodes the config file at path. A missing file yields an
// empty, usable FileResolver rather than an error, since the global config
// is entirely optional.
func Load(path string) (*FileResolver, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &FileResolver{cfg: Config{Sources: map[string]SourceCredential{}}}, nil
	}
	if err != nil {
		return nil, agpmerr.Wrap(agpmerr.KindIO, err, "reading global config %s", path)
	}
	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, agpmerr.Wrap(agpmerr.KindSyntax, err, "invalid global config %s", path)
	}
	if cfg.Sources == nil {
		cfg.Sources = map[string]SourceCredential{}
	}
	return &FileResolver{cfg: cfg}, nil
}

// LoadDefault loads the config file at DefaultPath.
func LoadDefault() (*FileResolver, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// ResolveURL implements Resolver. An explicit [sources.<name>] entry always
// wins; otherwise, for github.com HTTPS URLs, it falls back to whatever
// token github.com/cli/go-gh discovers from the environment or gh's own
// credential store (GITHUB_TOKEN, gh auth login, etc.).
func (r *FileResolver) ResolveURL(sourceName, configuredURL string) (string, error) {
	if cred, ok := r.cfg.Sources[sourceName]; ok {
		resolved, err := injectCredentials(configuredURL, cred.Username, cred.Token)
		if err != nil {
			return "", err
		}
		log.Printf("resolved %s credentials from config.toml entry", sourceName)
		return resolved, nil
	}

	if host := githubHost(configuredURL); host != "" {
		token, source := ghauth.TokenForHost(host)
		if token != "" {
			log.Printf("resolved %s credentials from go-gh (%s)", sourceName, source)
			return injectCredentials(configuredURL, "x-access-token", token)
		}
	}

	return configuredURL, nil
}

func githubHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	if host == "github.com" || strings.HasSuffix(host, ".github.com") {
		return "github.com"
	}
	return ""
}

func injectCredentials(rawURL, username, token string) (string, error) {
	if token == "" {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", agpmerr.Wrap(agpmerr.KindValidation, err, "parsing source URL %q", rawURL)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return rawURL, nil
	}
	if username == "" {
		username = "x-access-token"
	}
	u.User = url.UserPassword(username, token)
	return u.String(), nil
}
