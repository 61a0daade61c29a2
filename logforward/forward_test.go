package logforward

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestForwardParsesFramedRecords(t *testing.T) {
	logger := logrus.New()
	var out strings.Builder
	logger.SetOutput(&out)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})

	input := strings.NewReader(`{"level":"warning","msg":"disk low"}{"level":"info","msg":"ready"}`)
	done := Start(input, logger)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("forward returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("forward did not complete")
	}

	got := out.String()
	if !strings.Contains(got, "disk low") || !strings.Contains(got, "ready") {
		t.Errorf("output = %q, want both forwarded messages", got)
	}
}

func TestForwardDiscardsPartialTrailingRecord(t *testing.T) {
	logger := logrus.New()
	var out strings.Builder
	logger.SetOutput(&out)

	input := strings.NewReader(`{"level":"info","msg":"ok"}{"level":"info","msg":"truncat`)
	done := Start(input, logger)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("forward returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("forward did not complete")
	}

	got := out.String()
	if !strings.Contains(got, "ok") {
		t.Errorf("output = %q, want the complete record to have been forwarded", got)
	}
	if strings.Contains(got, "truncat") {
		t.Errorf("output = %q, want the partial trailing record discarded", got)
	}
}

func TestForwardFallsBackToInfoForUnknownLevel(t *testing.T) {
	logger := logrus.New()
	var out strings.Builder
	logger.SetOutput(&out)
	logger.SetLevel(logrus.InfoLevel)

	input := strings.NewReader(`{"level":"bogus","msg":"hi"}`)
	done := Start(input, logger)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("forward returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("forward did not complete")
	}

	if !strings.Contains(out.String(), "hi") {
		t.Errorf("output = %q, want the record logged at the info fallback level", out.String())
	}
}
