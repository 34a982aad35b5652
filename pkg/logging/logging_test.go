package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]logrus.Level{
		"silent":  logrus.PanicLevel,
		"error":   logrus.ErrorLevel,
		"WARN":    logrus.WarnLevel,
		"info":    logrus.InfoLevel,
		" debug ": logrus.DebugLevel,
		"bogus":   logrus.InfoLevel,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNew_WritesJSONToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "ccet.log")
	logger, closer, err := New("info", "json", path)
	require.NoError(t, err)

	logger.WithField("sheet", "2024 (GAA)").Info("parsed sheet")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(b), `"sheet":"2024 (GAA)"`), string(b))
}

func TestOrNop(t *testing.T) {
	t.Parallel()

	require.NotNil(t, OrNop(nil))
	e := logrus.NewEntry(logrus.New())
	require.Same(t, e, OrNop(e))
}
