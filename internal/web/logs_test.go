package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLogBuffer_JoinsPartialWrites(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("2024/06/01 wind: sta"))
	_, _ = b.Write([]byte("rted\r\nsecond\n\nthird"))

	lines, dropped := b.Tail(0)
	if dropped != 0 {
		t.Fatalf("dropped=%d", dropped)
	}
	if strings.Join(lines, "|") != "2024/06/01 wind: started|second" {
		t.Fatalf("lines=%q", lines)
	}

	_, _ = b.Write([]byte("\n"))
	lines, _ = b.Tail(1)
	if len(lines) != 1 || lines[0] != "third" {
		t.Fatalf("lines=%q", lines)
	}
}

func TestLogBuffer_DropsOldest(t *testing.T) {
	b := NewLogBuffer(3)
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		_, _ = b.Write([]byte(l + "\n"))
	}
	lines, dropped := b.Tail(10)
	if dropped != 2 || strings.Join(lines, "") != "cde" {
		t.Fatalf("lines=%q dropped=%d", lines, dropped)
	}
}

func TestAPILogs(t *testing.T) {
	logs := NewLogBuffer(100)
	_, _ = logs.Write([]byte("one\ntwo\nthree\n"))
	ts := httptest.NewServer(Handler(NewStatus(), nil, logs, nil))
	defer ts.Close()

	var out LogsResponse
	getJSON(t, ts.URL+"/api/logs?tail=2", &out)
	if strings.Join(out.Lines, ",") != "two,three" {
		t.Fatalf("lines=%q", out.Lines)
	}

	resp, err := http.Get(ts.URL + "/api/logs?format=text")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "one\ntwo\nthree\n" {
		t.Fatalf("body=%q", body)
	}

	resp, err = http.Get(ts.URL + "/api/logs?tail=0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
}

func TestAPILogs_DisabledWithoutBuffer(t *testing.T) {
	ts := httptest.NewServer(Handler(NewStatus(), nil, nil, nil))
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/api/logs")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
}
