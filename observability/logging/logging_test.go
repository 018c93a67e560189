package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("airdropd", "test", Options{Writer: &buf, Level: "debug"})
	logger.Debug("claim settled", slog.String("claimant", "nhb1xyz"), slog.String("jwt_secret", "hunter2"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "claim settled", line["message"])
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "airdropd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "nhb1xyz", line["claimant"])
	require.Equal(t, RedactedValue, line["jwt_secret"])
	require.Contains(t, line, "timestamp")
}

func TestSetupRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("airdropd", "", Options{Writer: &buf, Level: "warn"})
	logger.Info("hidden")
	require.Zero(t, buf.Len())
	logger.Warn("shown")
	require.True(t, strings.Contains(buf.String(), "shown"))
}

func TestSetupPretty(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("airdropd", "dev", Options{Writer: &buf, Pretty: true})
	logger.Info("ready", slog.String("token", "abc"))
	require.Contains(t, buf.String(), "ready")
	require.NotContains(t, buf.String(), "abc")
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("keystore", "/secret/path").Value.String())
	require.Equal(t, "nhb1", MaskField("claimant", "nhb1").Value.String())
	require.Equal(t, "", MaskField("keystore", "").Value.String())
	require.True(t, IsSensitive("Authorization"))
	require.False(t, IsSensitive("pool"))
}
