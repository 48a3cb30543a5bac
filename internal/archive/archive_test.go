package archive

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/me/megpipe/pkg/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDirSinkPut(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirSink(dir, discardLogger())

	err := sink.Put(context.Background(), "runs/abc.json", strings.NewReader(`{"ok":true}`))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "runs", "abc.json"))
	if err != nil {
		t.Fatalf("read archived file: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("archived content = %q", data)
	}
}

func TestWriteSummary(t *testing.T) {
	dir := t.TempDir()
	sink := NewDirSink(dir, discardLogger())

	summary := model.Summarize("epochs", []model.OutcomeRecord{
		{Unit: model.WorkUnit{Subject: "SB01"}, Step: "epochs", Status: model.StatusSuccess},
		{Unit: model.WorkUnit{Subject: "SB02"}, Step: "epochs", Status: model.StatusFailed,
			ErrorKind: model.ErrKindComputation, ErrorMsg: "exit status 1"},
	}, time.Now(), 2*time.Second)

	if err := WriteSummary(context.Background(), sink, "run-xyz", summary); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "runs", "run-xyz.json"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var got model.RunSummary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if got.Step != "epochs" || len(got.Records) != 2 {
		t.Errorf("got step=%s records=%d", got.Step, len(got.Records))
	}
	if got.Records[1].ErrorKind != model.ErrKindComputation {
		t.Errorf("error kind = %s", got.Records[1].ErrorKind)
	}
}

func TestSummaryKey(t *testing.T) {
	if k := SummaryKey("abc"); k != "runs/abc.json" {
		t.Errorf("key = %s", k)
	}
}
