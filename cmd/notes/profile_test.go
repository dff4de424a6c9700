package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileResolve(t *testing.T) {
	stored := Profile{Server: "https://notes.example.com", Token: "file"}

	tests := []struct {
		name       string
		server     string
		token      string
		envToken   string
		wantServer string
		wantToken  string
	}{
		{"file only", "", "", "", "https://notes.example.com", "file"},
		{"env beats file", "", "", "env", "https://notes.example.com", "env"},
		{"flag beats env", "", "flag", "env", "https://notes.example.com", "flag"},
		{"server flag", "http://localhost:9000", "", "", "http://localhost:9000", "file"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := stored.resolve(tc.server, tc.token, tc.envToken)
			assert.Equal(t, tc.wantServer, p.Server)
			assert.Equal(t, tc.wantToken, p.Token)
		})
	}

	assert.Equal(t, defaultServer, Profile{}.resolve("", "", "").Server)
}

func TestProfileSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profile.yaml")

	p, err := loadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, Profile{}, p)

	want := Profile{Server: "http://localhost:8080", Token: "tok", Email: "a@example.com", Username: "alice"}
	require.NoError(t, saveProfile(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := loadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadProfile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0600))

	_, err := loadProfile(path)
	assert.Error(t, err)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "hello", firstLine("  hello\nworld"))
	long := ""
	for range 70 {
		long += "é"
	}
	out := firstLine(long)
	assert.Equal(t, 60, len([]rune(out)))
	assert.Equal(t, "...", out[len(out)-3:])
}
