package telnet

import (
	"bytes"
	"testing"
)

func TestFilterPassesPlainText(t *testing.T) {
	var f Filter
	text, replies := f.Feed([]byte("hello world\r\n"))
	if string(text) != "hello world\n" {
		t.Errorf("text = %q", text)
	}
	if len(replies) != 0 {
		t.Errorf("replies = %v", replies)
	}
}

func TestFilterDeclinesNegotiation(t *testing.T) {
	var f Filter
	in := []byte{'a', IAC, WILL, 201, 'b', IAC, DO, 69, 'c'}
	text, replies := f.Feed(in)
	if string(text) != "abc" {
		t.Errorf("text = %q", text)
	}
	want := []byte{IAC, DONT, 201, IAC, WONT, 69}
	if !bytes.Equal(replies, want) {
		t.Errorf("replies = %v, want %v", replies, want)
	}
}

func TestFilterIgnoresWontDont(t *testing.T) {
	var f Filter
	text, replies := f.Feed([]byte{IAC, WONT, 1, IAC, DONT, 3, 'x'})
	if string(text) != "x" || len(replies) != 0 {
		t.Errorf("text = %q, replies = %v", text, replies)
	}
}

func TestFilterStripsSubnegotiation(t *testing.T) {
	var f Filter
	in := []byte{'a', IAC, SB, 201, 'j', 'u', 'n', 'k', IAC, SE, 'b'}
	text, _ := f.Feed(in)
	if string(text) != "ab" {
		t.Errorf("text = %q", text)
	}
}

func TestFilterEscapedIAC(t *testing.T) {
	var f Filter
	text, _ := f.Feed([]byte{IAC, IAC})
	if !bytes.Equal(text, []byte{255}) {
		t.Errorf("text = %v", text)
	}
}

func TestFilterSequenceSplitAcrossReads(t *testing.T) {
	var f Filter
	text1, replies1 := f.Feed([]byte{'a', IAC})
	text2, replies2 := f.Feed([]byte{WILL})
	text3, replies3 := f.Feed([]byte{86, 'b'})

	text := append(append(text1, text2...), text3...)
	if string(text) != "ab" {
		t.Errorf("text = %q", text)
	}
	replies := append(append(replies1, replies2...), replies3...)
	want := []byte{IAC, DONT, 86}
	if !bytes.Equal(replies, want) {
		t.Errorf("replies = %v, want %v", replies, want)
	}
}
