package util

import "testing"

func TestNormalizeQuery(t *testing.T) {
    cases := []struct {
        in   string
        want string
    }{
        {"laptop", "Laptop"},
        {"  gaming   laptop  ", "Gaming Laptop"},
        {"LAPTOP", "Laptop"},
        {"rtx 4070 ti", "Rtx 4070 Ti"},
        {"", ""},
        {"   ", ""},
    }
    for _, c := range cases {
        if got := NormalizeQuery(c.in); got != c.want {
            t.Fatalf("NormalizeQuery(%q) = %q, want %q", c.in, got, c.want)
        }
    }
}

func TestNormalizeQueryIdempotent(t *testing.T) {
    q := NormalizeQuery("mechanical KEYBOARD")
    if NormalizeQuery(q) != q {
        t.Fatalf("normalization not idempotent for %q", q)
    }
}

func TestSlugify(t *testing.T) {
    if got := Slugify("Mercado Libre"); got != "mercado-libre" {
        t.Fatalf("unexpected slug %q", got)
    }
    if got := Slugify("  DDtech "); got != "ddtech" {
        t.Fatalf("unexpected slug %q", got)
    }
}

func TestParseIntDefault(t *testing.T) {
    if got := ParseIntDefault("", 7); got != 7 {
        t.Fatalf("expected default, got %d", got)
    }
    if got := ParseIntDefault("12", 7); got != 12 {
        t.Fatalf("expected 12, got %d", got)
    }
    if got := ParseIntDefault("x", 7); got != 7 {
        t.Fatalf("expected default on invalid, got %d", got)
    }
}
