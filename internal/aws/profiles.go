package aws

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws/defaults"
	"gopkg.in/ini.v1"
)

const defaultProfile = "default"

// Profile is a named profile from the shared AWS files
type Profile struct {
	Name   string
	Region string
	// Sources lists which shared files define the profile
	Sources []string
}

// SharedFilePaths returns the credentials and config file locations,
// honoring AWS_SHARED_CREDENTIALS_FILE and AWS_CONFIG_FILE.
func SharedFilePaths() (credentials, config string) {
	credentials = os.Getenv("AWS_SHARED_CREDENTIALS_FILE")
	if credentials == "" {
		credentials = defaults.SharedCredentialsFilename()
	}
	config = os.Getenv("AWS_CONFIG_FILE")
	if config == "" {
		config = defaults.SharedConfigFilename()
	}
	return credentials, config
}

// LoadProfiles reads the profiles defined in the shared credentials and
// config files, sorted by name. Missing files are skipped.
func LoadProfiles() ([]Profile, error) {
	credsPath, configPath := SharedFilePaths()
	profiles := make(map[string]*Profile)

	get := func(name string) *Profile {
		p, ok := profiles[name]
		if !ok {
			p = &Profile{Name: name}
			profiles[name] = p
		}
		return p
	}

	if err := readProfileFile(credsPath, func(section *ini.Section) {
		p := get(section.Name())
		p.Sources = append(p.Sources, "credentials")
		if p.Region == "" {
			p.Region = section.Key("region").String()
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to load credentials file: %w", err)
	}

	if err := readProfileFile(configPath, func(section *ini.Section) {
		// Config file sections are "profile <name>" except for default
		p := get(strings.TrimPrefix(section.Name(), "profile "))
		p.Sources = append(p.Sources, "config")
		if region := section.Key("region").String(); region != "" {
			p.Region = region
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	result := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func readProfileFile(path string, fn func(*ini.Section)) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	file, err := ini.Load(path)
	if err != nil {
		return err
	}
	for _, section := range file.Sections() {
		name := section.Name()
		if name == ini.DefaultSection || strings.HasPrefix(name, "sso-session ") || strings.HasPrefix(name, "services ") {
			continue
		}
		fn(section)
	}
	return nil
}

// ListProfiles returns the names of the available AWS profiles
func ListProfiles() ([]string, error) {
	profiles, err := LoadProfiles()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	return names, nil
}

// HasProfile checks if a profile exists
func HasProfile(name string) bool {
	names, err := ListProfiles()
	if err != nil {
		return false
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// ErrProfileNotFound is returned for a named profile missing from the shared files
var ErrProfileNotFound = errors.New("profile not found")

// CheckProfile fails fast on a profile that no shared file defines. The
// default profile is always accepted since credentials may come from the
// environment or an instance role instead.
func CheckProfile(name string) error {
	if name == "" || name == defaultProfile {
		return nil
	}
	if !HasProfile(name) {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return nil
}
