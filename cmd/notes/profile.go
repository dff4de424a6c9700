package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultServer = "http://localhost:8080"

// Profile is what "notes login" remembers between runs.
type Profile struct {
	Server   string `yaml:"server"`
	Token    string `yaml:"token,omitempty"`
	Email    string `yaml:"email,omitempty"`
	Username string `yaml:"username,omitempty"`
}

func defaultProfilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "notes", "profile.yaml"), nil
}

func profilePath() (string, error) {
	if profileFlag != "" {
		return profileFlag, nil
	}
	return defaultProfilePath()
}

// loadProfile returns an empty profile when the file does not exist yet.
func loadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Profile{}, nil
	}
	if err != nil {
		return Profile{}, err
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

// saveProfile writes the profile readable by the owner only; it holds a token.
func saveProfile(path string, p Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// resolve applies the overrides: flags first, then NOTES_TOKEN, then the file.
func (p Profile) resolve(server string, token string, envToken string) Profile {
	out := p
	if server != "" {
		out.Server = server
	}
	if out.Server == "" {
		out.Server = defaultServer
	}

	switch {
	case token != "":
		out.Token = token
	case envToken != "":
		out.Token = envToken
	}
	return out
}
