package commands

import (
	"testing"

	"github.com/clawdbot/sheep/pkg/blob"
)

func TestResolveAgentID(t *testing.T) {
	t.Setenv("SHEEP_AGENT_ID", "")
	t.Setenv("AGENT_ID", "")

	if got := resolveAgentID(); got != "default" {
		t.Errorf("resolveAgentID() = %q, want default", got)
	}

	t.Setenv("AGENT_ID", "fallback")
	if got := resolveAgentID(); got != "fallback" {
		t.Errorf("resolveAgentID() = %q, want fallback", got)
	}

	t.Setenv("SHEEP_AGENT_ID", "primary")
	if got := resolveAgentID(); got != "primary" {
		t.Errorf("resolveAgentID() = %q, want primary (SHEEP_AGENT_ID wins)", got)
	}

	agentFlag = "flagged"
	defer func() { agentFlag = "" }()
	if got := resolveAgentID(); got != "flagged" {
		t.Errorf("resolveAgentID() = %q, want flagged (flag wins)", got)
	}
}

func TestDestStore(t *testing.T) {
	if _, err := destStore("s3://"); err == nil {
		t.Error("empty bucket should error")
	}

	fs, err := destStore("s3://bucket/pfx")
	if err != nil {
		t.Fatalf("destStore(s3) error = %v", err)
	}
	if _, ok := fs.(*blob.S3Store); !ok {
		t.Errorf("destStore(s3) = %T, want *blob.S3Store", fs)
	}

	local, err := destStore(t.TempDir())
	if err != nil {
		t.Fatalf("destStore(dir) error = %v", err)
	}
	if _, ok := local.(*blob.Local); !ok {
		t.Errorf("destStore(dir) = %T, want *blob.Local", local)
	}
}
