package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogFile_KeepsNewestBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	lf, err := openLogFile(path, 10, 4)
	require.NoError(t, err)

	_, err = lf.Write([]byte("0123456789"))
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "0123456789", string(data))

	_, err = lf.Write([]byte("ab"))
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "89ab", string(data))

	_, err = lf.Write([]byte("c"))
	require.NoError(t, err)
	require.NoError(t, lf.Close())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "89abc", string(data))
}

func TestLogFile_TrimsOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 20)+"tail"), 0o644))

	lf, err := openLogFile(path, 10, 4)
	require.NoError(t, err)
	require.NoError(t, lf.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "tail", string(data))
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLogLevel("debug").String())
	require.Equal(t, "WARN", parseLogLevel("warn").String())
	require.Equal(t, "ERROR", parseLogLevel("error").String())
	require.Equal(t, "INFO", parseLogLevel("bogus").String())
}
