// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"testing"
	"time"
)

// =============================================================================
// BANNER MANAGER TESTS
// =============================================================================

func TestBannerAddAndDismiss(t *testing.T) {
	m := NewBannerManager(time.Minute)

	id := m.AddError("boom")
	if len(m.Active()) != 1 {
		t.Fatalf("Expected 1 banner, got %d", len(m.Active()))
	}

	m.Dismiss(id)
	if len(m.Active()) != 0 {
		t.Error("Banner should be gone after dismissal")
	}

	m.Dismiss(999) // unknown id is a no-op
}

func TestBannerAutoExpiry(t *testing.T) {
	m := NewBannerManager(10 * time.Millisecond)
	m.AddWarning("transient")

	time.Sleep(20 * time.Millisecond)
	if remaining := m.Tick(); len(remaining) != 0 {
		t.Errorf("Expected expiry after duration, got %d banners", len(remaining))
	}
}

func TestBannerDefaultDuration(t *testing.T) {
	m := NewBannerManager(0)
	m.Add(BannerInfo, "hello")

	banners := m.Active()
	if len(banners) != 1 {
		t.Fatalf("Expected 1 banner, got %d", len(banners))
	}
	if banners[0].Duration != 5*time.Second {
		t.Errorf("Expected 5s default, got %v", banners[0].Duration)
	}
}

func TestBannerDismissAll(t *testing.T) {
	m := NewBannerManager(time.Minute)
	m.AddError("a")
	m.AddWarning("b")

	m.DismissAll()
	if len(m.Active()) != 0 {
		t.Error("DismissAll should clear the queue")
	}
}
