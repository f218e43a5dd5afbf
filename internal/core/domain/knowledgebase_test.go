package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestDescriptionStatus_IsValid tests all valid and invalid states
func TestDescriptionStatus_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		status   DescriptionStatus
		expected bool
	}{
		{
			name:     "empty is valid",
			status:   DescriptionEmpty,
			expected: true,
		},
		{
			name:     "pending is valid",
			status:   DescriptionPending,
			expected: true,
		},
		{
			name:     "ready is valid",
			status:   DescriptionReady,
			expected: true,
		},
		{
			name:     "failed is valid",
			status:   DescriptionFailed,
			expected: true,
		},
		{
			name:     "blank string is invalid",
			status:   DescriptionStatus(""),
			expected: false,
		},
		{
			name:     "unknown status is invalid",
			status:   DescriptionStatus("generating"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.IsValid())
		})
	}
}

// TestParseLegacyDescription_SentinelMapping tests sentinel recognition
func TestParseLegacyDescription_SentinelMapping(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantStatus DescriptionStatus
		wantText   string
	}{
		{
			name:       "empty string is empty status",
			raw:        "",
			wantStatus: DescriptionEmpty,
			wantText:   "",
		},
		{
			name:       "auto sentinel is pending",
			raw:        "-auto",
			wantStatus: DescriptionPending,
			wantText:   "",
		},
		{
			name:       "timeout sentinel is failed",
			raw:        "-auto-timeout",
			wantStatus: DescriptionFailed,
			wantText:   "",
		},
		{
			name:       "failed sentinel is failed",
			raw:        "-auto-failed",
			wantStatus: DescriptionFailed,
			wantText:   "",
		},
		{
			name:       "error sentinel is failed",
			raw:        "-auto-error",
			wantStatus: DescriptionFailed,
			wantText:   "",
		},
		{
			name:       "real text is ready",
			raw:        "该库主要涵盖技术笔记",
			wantStatus: DescriptionReady,
			wantText:   "该库主要涵盖技术笔记",
		},
		{
			name:       "text starting with dash is ready",
			raw:        "-notes about dashes",
			wantStatus: DescriptionReady,
			wantText:   "-notes about dashes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, text := ParseLegacyDescription(tt.raw)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

// TestLegacyDescription_RoundTrip tests status re-encoding
func TestLegacyDescription_RoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		status      DescriptionStatus
		description string
		expected    string
	}{
		{
			name:     "pending encodes as auto sentinel",
			status:   DescriptionPending,
			expected: "-auto",
		},
		{
			name:     "failed encodes as failed sentinel",
			status:   DescriptionFailed,
			expected: "-auto-failed",
		},
		{
			name:     "empty encodes as blank",
			status:   DescriptionEmpty,
			expected: "",
		},
		{
			name:        "ready passes text through",
			status:      DescriptionReady,
			description: "Python 开发 AI 代理",
			expected:    "Python 开发 AI 代理",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LegacyDescription(tt.status, tt.description))
		})
	}
}

// TestKnowledgeBase_HasDescription tests routability checks
func TestKnowledgeBase_HasDescription(t *testing.T) {
	tests := []struct {
		name     string
		kb       KnowledgeBase
		expected bool
	}{
		{
			name: "ready with text is routable",
			kb: KnowledgeBase{
				Description:       "股票 投资",
				DescriptionStatus: DescriptionReady,
			},
			expected: true,
		},
		{
			name:     "empty is not routable",
			kb:       KnowledgeBase{DescriptionStatus: DescriptionEmpty},
			expected: false,
		},
		{
			name:     "pending is not routable",
			kb:       KnowledgeBase{DescriptionStatus: DescriptionPending},
			expected: false,
		},
		{
			name:     "failed is not routable",
			kb:       KnowledgeBase{DescriptionStatus: DescriptionFailed},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kb.HasDescription())
		})
	}
}

// TestKnowledgeBase_Touch tests the last-updated stamp format
func TestKnowledgeBase_Touch(t *testing.T) {
	kb := KnowledgeBase{Name: "tech"}
	kb.Touch(time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))
	assert.Equal(t, "2026-03-14 09:26", kb.LastUpdated)
}

// TestSelectionMode_IsValid tests caller-facing mode validation
func TestSelectionMode_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		mode     SelectionMode
		expected bool
	}{
		{name: "none is valid", mode: ModeNone, expected: true},
		{name: "default is valid", mode: ModeDefault, expected: true},
		{name: "auto is valid", mode: ModeAuto, expected: true},
		{name: "all is valid", mode: ModeAll, expected: true},
		{name: "explicit is internal only", mode: ModeExplicit, expected: false},
		{name: "unknown mode is invalid", mode: SelectionMode("broadcast"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.mode.IsValid())
		})
	}
}

// TestDefaultGlobalSettings tests documented defaults
func TestDefaultGlobalSettings(t *testing.T) {
	settings := DefaultGlobalSettings()
	assert.True(t, settings.Refs)
	assert.Empty(t, settings.OutputDir)
}
