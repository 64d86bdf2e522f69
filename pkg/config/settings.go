// Package config turns the viper configuration (flags, DOCCHAT_* environment
// variables, config file) into validated settings.
package config

import (
	"strings"

	"github.com/go-go-golems/docchat/pkg/api"
	"github.com/go-go-golems/docchat/pkg/identity"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	KeyAPIURL       = "api-url"
	KeyUserID       = "user-id"
	KeyIdentityFile = "identity-file"
	KeyOutput       = "output"
	KeyAllowHTTP    = "allow-http"
	KeyAllowLocal   = "allow-local-networks"

	OutputYAML = "yaml"
	OutputJSON = "json"
)

type Settings struct {
	APIURL       string
	UserID       string
	IdentityFile string
	Output       string
	URLOptions   BaseURLOptions
}

// SetDefaults registers the defaults on v, so that they apply even when the
// corresponding flag is not defined.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIURL, api.DefaultBaseURL)
	v.SetDefault(KeyOutput, OutputYAML)
	v.SetDefault(KeyAllowHTTP, true)
	v.SetDefault(KeyAllowLocal, true)
}

// FromViper reads and validates the settings.
func FromViper(v *viper.Viper) (*Settings, error) {
	ret := &Settings{
		APIURL:       strings.TrimSpace(v.GetString(KeyAPIURL)),
		UserID:       strings.TrimSpace(v.GetString(KeyUserID)),
		IdentityFile: strings.TrimSpace(v.GetString(KeyIdentityFile)),
		Output:       strings.ToLower(strings.TrimSpace(v.GetString(KeyOutput))),
		URLOptions: BaseURLOptions{
			AllowHTTP:          v.GetBool(KeyAllowHTTP),
			AllowLocalNetworks: v.GetBool(KeyAllowLocal),
		},
	}
	if ret.APIURL == "" {
		ret.APIURL = api.DefaultBaseURL
	}
	if ret.Output == "" {
		ret.Output = OutputYAML
	}

	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Settings) Validate() error {
	if err := ValidateBaseURL(s.APIURL, s.URLOptions); err != nil {
		return errors.Wrapf(err, "invalid %s %q", KeyAPIURL, s.APIURL)
	}
	switch s.Output {
	case OutputYAML, OutputJSON:
	default:
		return errors.Errorf("invalid %s %q, expected yaml or json", KeyOutput, s.Output)
	}
	return nil
}

// ResolveUserID returns the configured user id, or the one kept in the
// identity file, creating it on first use.
func (s *Settings) ResolveUserID() (string, error) {
	if s.UserID != "" {
		return s.UserID, nil
	}

	path, err := s.IdentityPath()
	if err != nil {
		return "", err
	}

	id, err := identity.NewStore(path).LoadOrCreate()
	if err != nil {
		return "", err
	}
	log.Debug().Str("identity_file", path).Msg("Resolved user id")
	return id, nil
}

// IdentityPath is the file the generated user id is kept in.
func (s *Settings) IdentityPath() (string, error) {
	if s.IdentityFile != "" {
		return s.IdentityFile, nil
	}
	return identity.DefaultPath()
}

func (s *Settings) NewClient(options ...api.Option) *api.Client {
	return api.NewClient(s.APIURL, options...)
}
