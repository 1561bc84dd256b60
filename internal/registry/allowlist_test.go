package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAllowlist_PutRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.json")
	a := OpenAllowlist(path)

	if err := a.Put("dev-1", Entry{Name: "Base station", Frequency: 945_000_000}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	e, ok := a.Get("dev-1")
	if !ok {
		t.Fatal("entry missing after Put")
	}
	if !e.Whitelisted {
		t.Error("entry not marked whitelisted")
	}
	if e.FirstSeen.IsZero() || e.LastSeen.IsZero() {
		t.Error("timestamps not defaulted on Put")
	}

	if err := a.Remove("dev-1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if a.Contains("dev-1") {
		t.Error("entry present after Remove")
	}
	if err := a.Remove("dev-1"); err != ErrNotFound {
		t.Errorf("Remove of absent id = %v, want ErrNotFound", err)
	}
}

func TestAllowlist_PutKeepsProvidedFirstSeen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.json")
	a := OpenAllowlist(path)

	firstSeen := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if err := a.Put("dev-1", Entry{Name: "Known phone", FirstSeen: firstSeen}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	e, _ := a.Get("dev-1")
	if !e.FirstSeen.Equal(firstSeen) {
		t.Errorf("first_seen = %v, want provided %v", e.FirstSeen, firstSeen)
	}
}

func TestAllowlist_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.json")

	a := OpenAllowlist(path)
	if err := a.Put("dev-1", Entry{Name: "Known phone", Type: "authorized", Frequency: 870_000_000}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	b := OpenAllowlist(path)
	e, ok := b.Get("dev-1")
	if !ok {
		t.Fatal("entry missing after reload")
	}
	if e.Name != "Known phone" || e.Type != "authorized" || e.Frequency != 870_000_000 {
		t.Errorf("entry lost fields in round trip: %+v", e)
	}
}

func TestAllowlist_CorruptPrimaryRestoresFromBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.json")

	// Seed a store; every save refreshes the .bak sibling.
	a := OpenAllowlist(path)
	if err := a.Put("dev-1", Entry{Name: "Known phone"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Fatalf("backup not written: %v", err)
	}

	// Corrupt the primary store.
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := OpenAllowlist(path)
	if !b.Contains("dev-1") {
		t.Fatal("entry not restored from backup")
	}

	// The primary was rewritten from the restored state.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("rewritten primary is not valid JSON: %v", err)
	}
	if _, ok := entries["dev-1"]; !ok {
		t.Error("rewritten primary missing restored entry")
	}
}

func TestAllowlist_BothStoresCorruptStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+".bak", []byte("also broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	a := OpenAllowlist(path)
	if a.Len() != 0 {
		t.Errorf("allow-list size = %d from corrupt stores, want 0", a.Len())
	}

	// Still usable.
	if err := a.Put("dev-1", Entry{Name: "Recovered"}); err != nil {
		t.Fatalf("Put after corruption failed: %v", err)
	}
}

func TestAllowlist_EmptyPrimaryFallsBackToBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.json")

	a := OpenAllowlist(path)
	if err := a.Put("dev-1", Entry{Name: "Known phone"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Truncate the primary to an empty object; the backup still has content.
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := OpenAllowlist(path)
	if !b.Contains("dev-1") {
		t.Error("empty primary did not fall back to backup")
	}
}
