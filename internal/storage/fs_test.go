package storage

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFSStoreRoundTrip(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := "theory/alice/12/essay.pdf"
	if s.Exists(key) {
		t.Fatal("exists before put")
	}
	if _, err := s.Put(key, strings.NewReader("hello")); err != nil {
		t.Fatal(err)
	}
	if !s.Exists(key) {
		t.Fatal("missing after put")
	}
	rc, err := s.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "hello" {
		t.Fatalf("content = %q", b)
	}
}

func TestFSStoreMissingAndEscapes(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := s.Put("", strings.NewReader("x")); err == nil {
		t.Fatal("empty key accepted")
	}
	// Clean("/../x") is "/x", so this lands inside base
	if _, err := s.Put("../outside", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if !s.Exists("outside") {
		t.Fatal("key was not confined to base")
	}
}
