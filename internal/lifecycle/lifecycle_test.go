package lifecycle

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/cangjie-tools/cangjie-mcp/internal/config"
)

func TestSanitizeIdentifierReplacesNonAlnum(t *testing.T) {
	if got := sanitizeIdentifier("v1.0.0-rc1"); got != "v1_0_0_rc1" {
		t.Errorf("expected v1_0_0_rc1, got %q", got)
	}
}

func TestCollectionNameForCombinesBaseVersionLang(t *testing.T) {
	if got := collectionNameFor("cangjie_docs", "v1.0.0", "zh"); got != "cangjie_docs_v1_0_0_zh" {
		t.Errorf("unexpected collection name: %q", got)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Docs.DataDir = t.TempDir()
	return cfg
}

func TestMarkerRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	m := New(cfg)

	if _, ok := m.readMarker(); ok {
		t.Fatal("expected no marker before any write")
	}

	m.writeMarker(prebuiltMarker{URL: "https://example.com/archive", Version: "v1.0.0", Lang: "zh"})

	marker, ok := m.readMarker()
	if !ok {
		t.Fatal("expected marker to be present after write")
	}
	if marker.URL != "https://example.com/archive" || marker.Version != "v1.0.0" || marker.Lang != "zh" {
		t.Fatalf("unexpected marker contents: %+v", marker)
	}
}

// A marker written for one prebuilt_url must still be treated as present
// when the configured prebuilt_url differs — reuse is gated on presence of
// installed metadata, not on which URL produced it.
func TestMarkerReusablePresentRegardlessOfConfiguredURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Docs.PrebuiltURL = "https://example.com/new-archive"
	m := New(cfg)

	m.writeMarker(prebuiltMarker{URL: "https://example.com/old-archive", Version: "v1.0.0", Lang: "zh"})

	marker, ok := m.readMarker()
	if !ok {
		t.Fatal("expected marker to be present regardless of configured prebuilt_url")
	}
	if marker.Version != "v1.0.0" || marker.Lang != "zh" {
		t.Fatalf("unexpected marker contents: %+v", marker)
	}
}

func TestWarnIgnoredSettingsLogsOverriddenFields(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Docs.PrebuiltURL = "https://example.com/archive"
	cfg.Docs.Version = "v2.0.0"
	cfg.Embeddings.Model = "custom-model"

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	warnIgnoredSettings(cfg)

	out := buf.String()
	if !strings.Contains(out, "docs.version") || !strings.Contains(out, "embeddings.model") {
		t.Fatalf("expected warning to name overridden settings, got: %q", out)
	}
	if strings.Contains(out, "docs.lang") || strings.Contains(out, "embeddings.provider") {
		t.Fatalf("expected warning to omit unoverridden settings, got: %q", out)
	}
}

func TestWarnIgnoredSettingsSilentWhenNothingOverridden(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Docs.PrebuiltURL = "https://example.com/archive"

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	warnIgnoredSettings(cfg)

	if buf.Len() != 0 {
		t.Fatalf("expected no warning when all settings match defaults, got: %q", buf.String())
	}
}
