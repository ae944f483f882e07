package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v", args, err)
	}
	return out.String()
}

func TestChatScript(t *testing.T) {
	script := filepath.Join(t.TempDir(), "script.txt")
	lines := "merhaba\nmobil uygulama fiyatı nedir\nmobil uygulama fiyatı nedir\nbütçem sınırlı, fiyat nedir\n"
	if err := os.WriteFile(script, []byte(lines), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}

	out := execute(t, "chat", "--seed", "7", "--script", script)

	for _, want := range []string{"Deniz", "~ Sizi", "Elif", "[teklif formu açıldı]", "4 tur"} {
		if !strings.Contains(out, want) {
			t.Fatalf("transcript missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "~ Sizi") != 2 {
		t.Fatalf("expected two handoff notices:\n%s", out)
	}
}

func TestRouteCommand(t *testing.T) {
	out := execute(t, "route", "e-ticaret", "sitesi", "istiyorum")

	if !strings.Contains(out, "selected: ecommerce") {
		t.Fatalf("unexpected route output:\n%s", out)
	}
	if !strings.Contains(out, `project="ecommerce"`) {
		t.Fatalf("expected inferred project type:\n%s", out)
	}
}
