package log

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  zerolog.Level
	}{
		{DebugLevel, zerolog.DebugLevel},
		{InfoLevel, zerolog.InfoLevel},
		{WarnLevel, zerolog.WarnLevel},
		{ErrorLevel, zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.level))
		})
	}
}

func TestInitJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	logger := WithComponent("enrollment")
	logger.Info().Str("participant_id", "p1").Msg("joined")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "enrollment", entry["component"])
	assert.Equal(t, "p1", entry["participant_id"])
	assert.Equal(t, "joined", entry["message"])
}

func TestInitWithRotatingFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "streakline.log")
	Init(Config{
		Level:      InfoLevel,
		JSONOutput: true,
		Output:     &buf,
		File:       &FileConfig{Path: path},
	})

	logger := WithChallengeID("c1")
	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"challenge_id":"c1"`)
	assert.FileExists(t, path)
}
