package parser

import (
	"testing"

	"github.com/nodestream-io/httpcore/pkg/errors"
	"github.com/nodestream-io/httpcore/pkg/header"
	"github.com/nodestream-io/httpcore/pkg/message"
)

func TestParseRequestLine(t *testing.T) {
	req := message.NewRequest()
	if err := ParseRequestLine([]byte("POST /submit HTTP/1.1"), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "POST" || req.URI != "/submit" || req.Version != "HTTP/1.1" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestParseRequestLineMissingFieldsIsProtocolError(t *testing.T) {
	cases := []string{"GET /", "GET", ""}
	for _, line := range cases {
		req := message.NewRequest()
		if err := ParseRequestLine([]byte(line), req); err == nil {
			t.Fatalf("expected protocol error for %q", line)
		}
	}
}

func TestParseStatusLine(t *testing.T) {
	res := message.NewResponse()
	if err := ParseStatusLine([]byte("HTTP/1.1 404 Not Found"), res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Version != "HTTP/1.1" || res.Status != 404 || res.Reason != "Not Found" {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestParseStatusLineNoReasonPhrase(t *testing.T) {
	res := message.NewResponse()
	if err := ParseStatusLine([]byte("HTTP/1.1 200"), res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != 200 || res.Reason != "" {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestParseStatusLineRejectsOutOfRangeOrNonNumeric(t *testing.T) {
	cases := []string{"HTTP/1.1 99 Too Low", "HTTP/1.1 1000 Too High", "HTTP/1.1 abc Bad", "HTTP/1.1 1 Short"}
	for _, line := range cases {
		res := message.NewResponse()
		if err := ParseStatusLine([]byte(line), res); err == nil {
			t.Fatalf("expected protocol error for %q", line)
		}
	}
}

func TestParseHeaderLineAppendsAndSignalsEndOfBlock(t *testing.T) {
	tb := header.New()

	done, err := ParseHeaderLine([]byte("Host: example.com"), tb)
	if err != nil || done {
		t.Fatalf("unexpected result: done=%v err=%v", done, err)
	}
	v, ok := tb.Find("Host")
	if !ok || v != "example.com" {
		t.Fatalf("expected Host=example.com, got %q (ok=%v)", v, ok)
	}

	done, err = ParseHeaderLine(nil, tb)
	if err != nil || !done {
		t.Fatalf("expected empty line to signal end of header block")
	}
}

func TestParseHeaderLineTrimsOWS(t *testing.T) {
	tb := header.New()
	if _, err := ParseHeaderLine([]byte("X-Test: \t  padded value  \t"), tb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := tb.Find("X-Test")
	if v != "padded value" {
		t.Fatalf("expected trimmed value, got %q", v)
	}
}

func TestParseHeaderLineMissingColonIsProtocolError(t *testing.T) {
	tb := header.New()
	if _, err := ParseHeaderLine([]byte("NoColonHere"), tb); err == nil {
		t.Fatalf("expected protocol error")
	}
}

func TestParseHeaderLineMalformedNameIsProtocolError(t *testing.T) {
	cases := []string{": no name", "Bad Name: spaced", "Bad\tName: tabbed"}
	for _, line := range cases {
		tb := header.New()
		_, err := ParseHeaderLine([]byte(line), tb)
		if err == nil {
			t.Fatalf("expected error for %q", line)
		}
		if !errors.IsProtocolError(err) {
			t.Fatalf("malformed wire header %q must be a protocol error, got %v", line, err)
		}
	}
}

func TestParseHeaderLineFoldsDuplicates(t *testing.T) {
	tb := header.New()
	ParseHeaderLine([]byte("Connection: keep-alive"), tb)
	ParseHeaderLine([]byte("Connection: upgrade"), tb)
	v, _ := tb.Find("Connection")
	if v != "keep-alive, upgrade" {
		t.Fatalf("expected folded value, got %q", v)
	}
}
