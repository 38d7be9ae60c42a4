package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	pb := NewProgressBar(&buf, 4, "import")
	pb.Add(1)
	if !strings.Contains(buf.String(), "1/4 25.0%") {
		t.Fatalf("output = %q", buf.String())
	}
	pb.Add(10)
	if pb.Current() != 4 {
		t.Fatalf("current = %d, want capped at 4", pb.Current())
	}
	pb.Finish()
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Fatal("Finish should end the line")
	}
}

func TestProgressBarEmptyTotal(t *testing.T) {
	var buf bytes.Buffer
	NewProgressBar(&buf, 0, "x").Finish()
	if !strings.Contains(buf.String(), "0/0 100.0%") {
		t.Fatalf("output = %q", buf.String())
	}
}
