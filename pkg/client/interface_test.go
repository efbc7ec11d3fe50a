package client

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractDataURL(t *testing.T) {
	tests := []struct {
		content string
		want    string
		ok      bool
	}{
		{"data:image/png;base64,iVBORw0KGgo=", "data:image/png;base64,iVBORw0KGgo=", true},
		{"Here is your photo: data:image/jpeg;base64,/9j/4AAQ== enjoy", "data:image/jpeg;base64,/9j/4AAQ==", true},
		{"I cannot edit images.", "", false},
		{"data:text/plain;base64,aGVsbG8=", "", false},
	}

	for _, test := range tests {
		got, ok := ExtractDataURL(test.content)
		if got != test.want || ok != test.ok {
			t.Errorf("ExtractDataURL(%q) = %q, %v; expected %q, %v", test.content, got, ok, test.want, test.ok)
		}
	}
}

func TestCheckStatus(t *testing.T) {
	if err := CheckStatus(200, nil); err != nil {
		t.Errorf("Expected nil for 200, got %v", err)
	}

	tests := []struct {
		code int
		want error
	}{
		{401, ErrUnauthorized},
		{403, ErrUnauthorized},
		{429, ErrRateLimited},
		{500, ErrUpstream},
		{503, ErrUpstream},
	}
	for _, test := range tests {
		if err := CheckStatus(test.code, []byte("boom")); !errors.Is(err, test.want) {
			t.Errorf("CheckStatus(%d) = %v, expected %v", test.code, err, test.want)
		}
	}

	err := CheckStatus(400, []byte(strings.Repeat("x", 2000)))
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Errorf("unexpected error for 400: %v", err)
	}
	if len(err.Error()) > 600 {
		t.Errorf("Expected body to be truncated, got %d bytes", len(err.Error()))
	}
}
