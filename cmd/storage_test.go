package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"beatmarket/storage"

	"github.com/spf13/cobra"
)

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	stats := storage.Summarize([]storage.ObjectInfo{
		{Key: "images/a.png", Size: 2048, ContentType: "image/png", LastModified: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{Key: "audio/b.mp3", Size: 1 << 20, ContentType: "audio/mpeg", LastModified: time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)},
	})
	printStats(cmd, stats)

	got := buf.String()
	for _, want := range []string{
		"Objects:       2\n",
		"Total size:    1.0 MB\n",
		"Last modified: 2024-03-02 09:30:00\n",
		"  audio:   1.0 MB\n",
		"  image:   2.0 KB\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "audio:") > strings.Index(got, "image:") {
		t.Errorf("classes are not sorted:\n%s", got)
	}
}

func TestPrintStatsEmpty(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	printStats(cmd, storage.Summarize(nil))

	if got := buf.String(); got != "Objects:       0\nTotal size:    0 B\n" {
		t.Fatalf("unexpected output %q", got)
	}
}
