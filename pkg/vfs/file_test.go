package vfs

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestExactReaderFullStream(t *testing.T) {
	r := ExactReader(strings.NewReader("hello world"), 11)

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("got %q, expected %q", string(data), "hello world")
	}
}

func TestExactReaderTruncatesLongStream(t *testing.T) {
	r := ExactReader(strings.NewReader("hello world"), 5)

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("got %q, expected %q", string(data), "hello")
	}
}

func TestExactReaderShortStream(t *testing.T) {
	r := ExactReader(strings.NewReader("hi"), 10)

	_, err := io.ReadAll(r)
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("got %v, expected ErrExtraction", err)
	}
}
